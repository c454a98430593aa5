package workflow

import (
	"context"
	"testing"

	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
)

func createDineInOrder(t *testing.T, ctx context.Context, f *posFixture, table string, qty int64) *models.Order {
	t.Helper()
	input := &models.NewOrder{
		BranchId:    f.branch.ID,
		OrderType:   models.OrderTypeDineIn,
		TableNumber: table,
		Items: []models.NewOrderItem{
			{ProductId: f.burger.ID, Qty: decimal.NewFromInt(qty)},
		},
	}
	order, _, err := CreateOrder(ctx, input, nil, "")
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	return order
}

func TestTransferTable_MovesSeatOnly(t *testing.T) {
	setupTestDB(t)
	ctx := testContext("WAITER", 1)
	f := seedPosFixture(t, ctx)
	seedStock(t, ctx, f.patty.ID, f.kitchen.ID, "10")
	seedStock(t, ctx, f.bun.ID, f.kitchen.ID, "10")

	order := createDineInOrder(t, ctx, f, "T1", 2)
	originalTotal := order.TotalAmount

	moved, err := TransferTable(ctx, order.ID, &TableTransferInput{TableNumber: "T8"})
	if err != nil {
		t.Fatalf("TransferTable: %v", err)
	}
	if moved.TableNumber != "T8" {
		t.Fatalf("table = %s", moved.TableNumber)
	}
	if !moved.TotalAmount.Equal(originalTotal) {
		t.Fatalf("total changed on transfer: %s -> %s", originalTotal, moved.TotalAmount)
	}
}

func TestSplitOrder_PreservesCombinedTotal(t *testing.T) {
	setupTestDB(t)
	ctx := testContext("WAITER", 1)
	f := seedPosFixture(t, ctx)
	seedStock(t, ctx, f.patty.ID, f.kitchen.ID, "10")
	seedStock(t, ctx, f.bun.ID, f.kitchen.ID, "10")

	order := createDineInOrder(t, ctx, f, "T1", 4)
	originalTotal := order.TotalAmount

	fresh, err := models.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if len(fresh.Items) != 1 {
		t.Fatalf("expected 1 item row, got %d", len(fresh.Items))
	}

	newOrder, err := SplitOrder(ctx, order.ID, &SplitOrderInput{
		ItemIds:     []int{fresh.Items[0].ID},
		TableNumber: "T2",
	})
	if err == nil {
		t.Fatalf("splitting the only item must fail, got order %d", newOrder.ID)
	}
	if !utils.IsCode(err, utils.ErrCodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	// Add a second line, then split it off.
	db := config.GetDB()
	extra := models.OrderItem{
		OrderId:   order.ID,
		ProductId: f.burger.ID,
		Name:      f.burger.Name,
		Qty:       decimal.NewFromInt(2),
		UnitPrice: f.burger.SalesPrice,
		LineTotal: f.burger.SalesPrice.Mul(decimal.NewFromInt(2)),
	}
	if err := db.Create(&extra).Error; err != nil {
		t.Fatalf("add extra item: %v", err)
	}

	split, err := SplitOrder(ctx, order.ID, &SplitOrderInput{
		ItemIds:     []int{extra.ID},
		TableNumber: "T2",
	})
	if err != nil {
		t.Fatalf("SplitOrder: %v", err)
	}

	remaining, err := models.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder source: %v", err)
	}

	// The moved row must live on the split order and only there.
	if len(split.Items) != 1 || split.Items[0].ID != extra.ID {
		t.Fatalf("split order must own the moved item, got %+v", split.Items)
	}
	if len(remaining.Items) != 1 {
		t.Fatalf("source must keep exactly its remaining item, got %d rows", len(remaining.Items))
	}
	if remaining.Items[0].ID == extra.ID {
		t.Fatal("moved item re-attached to the source order")
	}

	// The original rates were derived from a 4-burger order; the extra line
	// made it 6 before the split. Combined totals after the split must equal
	// the re-derived 6-burger charge.
	combined := remaining.TotalAmount.Add(split.TotalAmount)
	expected := remaining.SubTotal.Add(split.SubTotal).
		Add(remaining.TaxAmount).Add(split.TaxAmount).
		Add(remaining.ServiceChargeAmount).Add(split.ServiceChargeAmount)
	if !combined.Equal(expected) {
		t.Fatalf("combined %s != component sum %s", combined, expected)
	}
	if split.ShiftId != order.ShiftId {
		t.Fatalf("split order must stay on the same shift")
	}
	if originalTotal.GreaterThanOrEqual(combined) {
		t.Fatalf("combined total %s should exceed the original 4-burger total %s", combined, originalTotal)
	}
}

func TestMergeOrders_MovesItemsAndCancelsSource(t *testing.T) {
	setupTestDB(t)
	ctx := testContext("MANAGER", 1)
	f := seedPosFixture(t, ctx)
	seedStock(t, ctx, f.patty.ID, f.kitchen.ID, "10")
	seedStock(t, ctx, f.bun.ID, f.kitchen.ID, "10")
	ctx = utils.SetBranchIdInContext(ctx, f.branch.ID)

	target := createDineInOrder(t, ctx, f, "T1", 2)
	source := createDineInOrder(t, ctx, f, "T2", 1)

	merged, err := MergeOrders(ctx, target.ID, &MergeOrdersInput{SourceOrderId: source.ID})
	if err != nil {
		t.Fatalf("MergeOrders: %v", err)
	}
	if len(merged.Items) != 2 {
		t.Fatalf("expected 2 item rows on target, got %d", len(merged.Items))
	}
	// 3 burgers total at the target's dine-in rates: 30 + 4.20 + 3.60.
	requireQty(t, merged.SubTotal, "30", "merged subtotal")
	requireQty(t, merged.TotalAmount, "37.8", "merged total")

	cancelledSource, err := models.GetOrder(ctx, source.ID)
	if err != nil {
		t.Fatalf("GetOrder source: %v", err)
	}
	if cancelledSource.Status != models.OrderStatusCancelled {
		t.Fatalf("source status = %s", cancelledSource.Status)
	}
	if cancelledSource.CancellationReason == "" {
		t.Fatal("source must carry an audit reason")
	}
	if len(cancelledSource.Items) != 0 {
		t.Fatalf("source kept %d items", len(cancelledSource.Items))
	}
}

func TestMergeOrders_RequiresManagerTier(t *testing.T) {
	setupTestDB(t)
	ctx := testContext("WAITER", 1)
	f := seedPosFixture(t, ctx)
	seedStock(t, ctx, f.patty.ID, f.kitchen.ID, "10")
	seedStock(t, ctx, f.bun.ID, f.kitchen.ID, "10")

	target := createDineInOrder(t, ctx, f, "T1", 1)
	source := createDineInOrder(t, ctx, f, "T2", 1)

	_, err := MergeOrders(ctx, target.ID, &MergeOrdersInput{SourceOrderId: source.ID})
	if !utils.IsCode(err, utils.ErrCodeStatusTransitionForbidden) {
		t.Fatalf("expected STATUS_TRANSITION_FORBIDDEN, got %v", err)
	}
}
