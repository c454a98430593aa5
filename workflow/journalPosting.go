package workflow

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/mmdatafocus/pos_backend/monitoring"
	"github.com/shopspring/decimal"
)

// Journal posting happens strictly after the business transaction commits
// and is best-effort: a posting failure is counted and logged, never
// propagated to the caller and never rolled back against.

func postEntryBestEffort(ctx context.Context, entry *models.NewJournalEntry) {
	if entry.Amount.LessThanOrEqual(decimal.Zero) {
		// No-op postings are skipped upstream, never written.
		return
	}
	db := config.GetDB()
	if _, err := models.PostDoubleEntry(ctx, db, entry); err != nil {
		logger := config.GetLogger()
		config.LogError(logger, "journalPosting.go", "postEntryBestEffort", entry.Source, entry.ReferenceId, err)
		monitoring.RecordSideEffectFailure("journal", entry.ReferenceId, err)
	}
}

// PostPosSaleEntry records the revenue side of a committed order.
func PostPosSaleEntry(ctx context.Context, order *models.Order) {
	postEntryBestEffort(ctx, &models.NewJournalEntry{
		Description:   fmt.Sprintf("POS sale %s", order.OrderNumber),
		Amount:        order.TotalAmount,
		DebitAccount:  models.AccountCashReceivable,
		CreditAccount: models.AccountSalesRevenue,
		ReferenceId:   order.OrderNumber,
		Source:        "pos_sale",
	})
}

// PostAdjustmentEntry values a stock adjustment delta at cost: losses move
// inventory asset into COGS, gains reverse the pairing.
func PostAdjustmentEntry(ctx context.Context, referenceId string, delta, costPrice decimal.Decimal) {
	amount := delta.Abs().Mul(costPrice)
	if amount.LessThanOrEqual(decimal.Zero) {
		return
	}
	entry := &models.NewJournalEntry{
		Amount:      amount,
		ReferenceId: referenceId,
		Source:      "inventory_adjustment",
	}
	if delta.IsNegative() {
		entry.Description = "Inventory adjustment loss"
		entry.DebitAccount = models.AccountCostOfGoodsSold
		entry.CreditAccount = models.AccountInventoryAsset
	} else {
		entry.Description = "Inventory adjustment gain"
		entry.DebitAccount = models.AccountInventoryAsset
		entry.CreditAccount = models.AccountCostOfGoodsSold
	}
	postEntryBestEffort(ctx, entry)
}

// PostPurchaseReceiptEntry records received goods against accounts payable.
func PostPurchaseReceiptEntry(ctx context.Context, po *models.PurchaseOrder) {
	postEntryBestEffort(ctx, &models.NewJournalEntry{
		Description:   fmt.Sprintf("Purchase receipt %s", po.OrderNumber),
		Amount:        po.TotalAmount,
		DebitAccount:  models.AccountInventoryAsset,
		CreditAccount: models.AccountAccountsPayable,
		ReferenceId:   po.OrderNumber,
		Source:        "purchase_receipt",
	})
}

// PostProductionCompletionEntry moves the actual ingredient cost from raw
// material inventory into finished goods.
func PostProductionCompletionEntry(ctx context.Context, batchNumber string, actualCost decimal.Decimal) {
	postEntryBestEffort(ctx, &models.NewJournalEntry{
		Description:   fmt.Sprintf("Production completion %s", batchNumber),
		Amount:        actualCost,
		DebitAccount:  models.AccountFinishedGoods,
		CreditAccount: models.AccountInventoryAsset,
		ReferenceId:   batchNumber,
		Source:        "production_completion",
	})
}

// PostProductionWasteEntry books over-consumption beyond the reservation as
// a separate audit fact.
func PostProductionWasteEntry(ctx context.Context, batchNumber string, wasteCost decimal.Decimal) {
	postEntryBestEffort(ctx, &models.NewJournalEntry{
		Description:   fmt.Sprintf("Production waste %s", batchNumber),
		Amount:        wasteCost,
		DebitAccount:  models.AccountCostOfGoodsSold,
		CreditAccount: models.AccountInventoryAsset,
		ReferenceId:   batchNumber,
		Source:        "production_waste",
	})
}
