package main

import (
	"log"

	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/models"
)

// Standalone migration job for deployments that run with SKIP_MIGRATIONS=true.
func main() {
	config.ConnectDatabaseWithRetry()
	models.MigrateTable()
	log.Println("migrations completed")
}
