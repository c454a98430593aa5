package models

import "github.com/mmdatafocus/pos_backend/config"

// MigrateTable creates/updates all schema. Called from cmd/migrate and from
// package tests against the in-memory driver.
func MigrateTable() error {
	db := config.GetDB()
	return db.AutoMigrate(
		&Branch{},
		&Warehouse{},
		&Product{},
		&BomComponent{},
		&Shift{},
		&Order{},
		&OrderItem{},
		&OrderPayment{},
		&OrderStatusHistory{},
		&StockBalance{},
		&StockMovement{},
		&ProductionOrder{},
		&ProductionOrderIngredient{},
		&PurchaseOrder{},
		&PurchaseOrderDetail{},
		&JournalEntry{},
		&IdempotencyClaim{},
	)
}
