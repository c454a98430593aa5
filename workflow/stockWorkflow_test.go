package workflow

import (
	"testing"

	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
)

func TestAdjustStock_SetsAbsoluteQtyAndLogsDelta(t *testing.T) {
	setupTestDB(t)
	ctx := testContext("MANAGER", 1)
	f := seedPosFixture(t, ctx)
	seedStock(t, ctx, f.patty.ID, f.storage.ID, "10")

	result, err := AdjustStock(ctx, &StockAdjustmentInput{
		ProductId:   f.patty.ID,
		WarehouseId: f.storage.ID,
		NewQty:      decimal.RequireFromString("7.5"),
		Reason:      "cycle count",
		ReferenceId: "count-2024-01",
	})
	if err != nil {
		t.Fatalf("AdjustStock: %v", err)
	}
	requireQty(t, result.PreviousQty, "10", "previous qty")
	requireQty(t, result.Delta, "-2.5", "delta")
	requireQty(t, stockQty(t, ctx, f.patty.ID, f.storage.ID), "7.5", "balance after adjust")
}

func TestAdjustStock_ReplaySameReferenceIsNoOp(t *testing.T) {
	setupTestDB(t)
	ctx := testContext("MANAGER", 1)
	f := seedPosFixture(t, ctx)
	seedStock(t, ctx, f.patty.ID, f.storage.ID, "10")

	input := &StockAdjustmentInput{
		ProductId:   f.patty.ID,
		WarehouseId: f.storage.ID,
		NewQty:      decimal.NewFromInt(4),
		Reason:      "cycle count",
		ReferenceId: "count-dup",
	}
	if _, err := AdjustStock(ctx, input); err != nil {
		t.Fatalf("first AdjustStock: %v", err)
	}

	// Retried command with the same reference must not move stock again,
	// even with a different target qty.
	input.NewQty = decimal.NewFromInt(99)
	result, err := AdjustStock(ctx, input)
	if err != nil {
		t.Fatalf("replayed AdjustStock: %v", err)
	}
	if !result.Replayed {
		t.Fatal("expected replayed result")
	}
	requireQty(t, stockQty(t, ctx, f.patty.ID, f.storage.ID), "4", "balance after replay")
}

func TestAdjustStock_RejectsNegativeTarget(t *testing.T) {
	setupTestDB(t)
	ctx := testContext("MANAGER", 1)
	f := seedPosFixture(t, ctx)

	_, err := AdjustStock(ctx, &StockAdjustmentInput{
		ProductId:   f.patty.ID,
		WarehouseId: f.storage.ID,
		NewQty:      decimal.NewFromInt(-1),
		Reason:      "bad",
		ReferenceId: "neg-1",
	})
	if !utils.IsCode(err, utils.ErrCodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAdjustStock_MovementLogReconcilesToBalance(t *testing.T) {
	setupTestDB(t)
	ctx := testContext("MANAGER", 1)
	f := seedPosFixture(t, ctx)

	// Each adjustment's logged delta is computed inside its own transaction,
	// so replaying the signed log must land exactly on the projected balance.
	for i, target := range []string{"10", "4", "9.5"} {
		if _, err := AdjustStock(ctx, &StockAdjustmentInput{
			ProductId:   f.patty.ID,
			WarehouseId: f.storage.ID,
			NewQty:      decimal.RequireFromString(target),
			Reason:      "cycle count",
			ReferenceId: "count-seq-" + string(rune('a'+i)),
		}); err != nil {
			t.Fatalf("AdjustStock to %s: %v", target, err)
		}
	}

	db := config.GetDB()
	var movements []models.StockMovement
	if err := db.Where("product_id = ? AND movement_type = ?", f.patty.ID, models.MovementTypeAdjustment).
		Order("id").Find(&movements).Error; err != nil {
		t.Fatalf("fetch movements: %v", err)
	}

	replayed := decimal.Zero
	for _, m := range movements {
		if m.FromWarehouseId != nil {
			replayed = replayed.Sub(m.Qty)
		} else {
			replayed = replayed.Add(m.Qty)
		}
	}
	requireQty(t, replayed, "9.5", "log replay")
	requireQty(t, stockQty(t, ctx, f.patty.ID, f.storage.ID), "9.5", "projected balance")
}

func TestTransferStock_ConservesTotalQty(t *testing.T) {
	setupTestDB(t)
	ctx := testContext("MANAGER", 1)
	f := seedPosFixture(t, ctx)
	seedStock(t, ctx, f.bun.ID, f.storage.ID, "20")

	movement, err := TransferStock(ctx, &StockTransferInput{
		ProductId:       f.bun.ID,
		FromWarehouseId: f.storage.ID,
		ToWarehouseId:   f.kitchen.ID,
		Qty:             decimal.NewFromInt(8),
		ReferenceId:     "tr-1",
	})
	if err != nil {
		t.Fatalf("TransferStock: %v", err)
	}
	if movement.MovementType != models.MovementTypeTransfer {
		t.Fatalf("movement type = %s", movement.MovementType)
	}

	from := stockQty(t, ctx, f.bun.ID, f.storage.ID)
	to := stockQty(t, ctx, f.bun.ID, f.kitchen.ID)
	requireQty(t, from, "12", "source after transfer")
	requireQty(t, to, "8", "destination after transfer")
	requireQty(t, from.Add(to), "20", "total conserved")
}

func TestTransferStock_RejectsSameWarehouse(t *testing.T) {
	setupTestDB(t)
	ctx := testContext("MANAGER", 1)
	f := seedPosFixture(t, ctx)

	_, err := TransferStock(ctx, &StockTransferInput{
		ProductId:       f.bun.ID,
		FromWarehouseId: f.storage.ID,
		ToWarehouseId:   f.storage.ID,
		Qty:             decimal.NewFromInt(1),
		ReferenceId:     "tr-same",
	})
	if !utils.IsCode(err, utils.ErrCodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTransferStock_InsufficientSourceFailsClosed(t *testing.T) {
	setupTestDB(t)
	ctx := testContext("MANAGER", 1)
	f := seedPosFixture(t, ctx)
	seedStock(t, ctx, f.bun.ID, f.storage.ID, "3")

	_, err := TransferStock(ctx, &StockTransferInput{
		ProductId:       f.bun.ID,
		FromWarehouseId: f.storage.ID,
		ToWarehouseId:   f.kitchen.ID,
		Qty:             decimal.NewFromInt(5),
		ReferenceId:     "tr-short",
	})
	if !utils.IsCode(err, utils.ErrCodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	requireQty(t, stockQty(t, ctx, f.bun.ID, f.storage.ID), "3", "source untouched")
	requireQty(t, stockQty(t, ctx, f.bun.ID, f.kitchen.ID), "0", "destination untouched")
}

func TestReceivePurchaseOrder_BooksAllLinesOnce(t *testing.T) {
	setupTestDB(t)
	ctx := testContext("MANAGER", 1)
	f := seedPosFixture(t, ctx)

	po, err := models.CreatePurchaseOrder(ctx, &models.NewPurchaseOrder{
		WarehouseId:  f.storage.ID,
		SupplierName: "Metro Foods",
		Details: []models.NewPurchaseOrderDetail{
			{ProductId: f.patty.ID, Qty: decimal.NewFromInt(40), UnitCost: decimal.RequireFromString("2.50")},
			{ProductId: f.bun.ID, Qty: decimal.NewFromInt(40), UnitCost: decimal.RequireFromString("0.50")},
		},
	})
	if err != nil {
		t.Fatalf("CreatePurchaseOrder: %v", err)
	}

	received, err := ReceivePurchaseOrder(ctx, po.ID)
	if err != nil {
		t.Fatalf("ReceivePurchaseOrder: %v", err)
	}
	if received.Status != models.PurchaseOrderStatusReceived {
		t.Fatalf("status = %s", received.Status)
	}
	requireQty(t, stockQty(t, ctx, f.patty.ID, f.storage.ID), "40", "patty received")
	requireQty(t, stockQty(t, ctx, f.bun.ID, f.storage.ID), "40", "bun received")

	// Receiving again is a no-op, not a double booking.
	if _, err := ReceivePurchaseOrder(ctx, po.ID); err != nil {
		t.Fatalf("second ReceivePurchaseOrder: %v", err)
	}
	requireQty(t, stockQty(t, ctx, f.patty.ID, f.storage.ID), "40", "patty unchanged on replay")
}
