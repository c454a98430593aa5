package models_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupJournalDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	config.SetDB(db)
	if err := models.MigrateTable(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestPostDoubleEntry_AppendsBalancedFact(t *testing.T) {
	db := setupJournalDB(t)
	ctx := context.Background()

	entry, err := models.PostDoubleEntry(ctx, db, &models.NewJournalEntry{
		Description:   "POS sale ORD-000001",
		Amount:        decimal.RequireFromString("25.20"),
		DebitAccount:  models.AccountCashReceivable,
		CreditAccount: models.AccountSalesRevenue,
		ReferenceId:   "ORD-000001",
		Source:        "pos_sale",
	})
	if err != nil {
		t.Fatalf("PostDoubleEntry: %v", err)
	}
	if entry.ID == 0 {
		t.Fatal("entry not persisted")
	}

	var stored models.JournalEntry
	if err := db.First(&stored, entry.ID).Error; err != nil {
		t.Fatalf("fetch entry: %v", err)
	}
	if stored.DebitAccount != models.AccountCashReceivable || stored.CreditAccount != models.AccountSalesRevenue {
		t.Fatalf("accounts %s/%s", stored.DebitAccount, stored.CreditAccount)
	}
	if !stored.Amount.Equal(decimal.RequireFromString("25.20")) {
		t.Fatalf("amount = %s", stored.Amount)
	}
}

func TestPostDoubleEntry_RejectsNonPositiveAmount(t *testing.T) {
	db := setupJournalDB(t)
	ctx := context.Background()

	for _, amount := range []string{"0", "-5"} {
		_, err := models.PostDoubleEntry(ctx, db, &models.NewJournalEntry{
			Description:   "no-op",
			Amount:        decimal.RequireFromString(amount),
			DebitAccount:  models.AccountInventoryAsset,
			CreditAccount: models.AccountCostOfGoodsSold,
		})
		if err == nil {
			t.Fatalf("amount %s must be rejected", amount)
		}
	}

	var count int64
	if err := db.Model(&models.JournalEntry{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("no rows expected, got %d", count)
	}
}

func TestPostDoubleEntry_RejectsDegenerateAccounts(t *testing.T) {
	db := setupJournalDB(t)
	ctx := context.Background()

	cases := []models.NewJournalEntry{
		{Description: "missing credit", Amount: decimal.NewFromInt(1), DebitAccount: models.AccountInventoryAsset},
		{Description: "missing debit", Amount: decimal.NewFromInt(1), CreditAccount: models.AccountSalesRevenue},
		{Description: "same account", Amount: decimal.NewFromInt(1), DebitAccount: models.AccountSalesRevenue, CreditAccount: models.AccountSalesRevenue},
	}
	for _, input := range cases {
		in := input
		if _, err := models.PostDoubleEntry(ctx, db, &in); err == nil {
			t.Fatalf("%s: expected rejection", input.Description)
		}
	}
}
