package workflow

import (
	"context"
	"testing"

	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
)

// seedSauceBatch creates a manufactured product (1 sauce = 2 tomato + 1 oil)
// and a production order for 3 units in the kitchen warehouse.
func seedSauceBatch(t *testing.T, ctx context.Context, f *posFixture) (*models.Product, *models.Product, *models.ProductionOrder) {
	t.Helper()

	tomato, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:      "Tomato",
		CostPrice: decimal.RequireFromString("1.00"),
	})
	if err != nil {
		t.Fatalf("CreateProduct tomato: %v", err)
	}
	oil, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:      "Olive Oil",
		CostPrice: decimal.RequireFromString("4.00"),
	})
	if err != nil {
		t.Fatalf("CreateProduct oil: %v", err)
	}
	sauce, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:           "House Sauce",
		IsManufactured: utils.NewTrue(),
		BomComponents: []models.NewBomComponent{
			{ComponentId: tomato.ID, Qty: decimal.NewFromInt(2)},
			{ComponentId: oil.ID, Qty: decimal.NewFromInt(1)},
		},
	})
	if err != nil {
		t.Fatalf("CreateProduct sauce: %v", err)
	}

	po, err := models.CreateProductionOrder(ctx, &models.NewProductionOrder{
		ProductId:    sauce.ID,
		WarehouseId:  f.kitchen.ID,
		QtyRequested: decimal.NewFromInt(3),
	})
	if err != nil {
		t.Fatalf("CreateProductionOrder: %v", err)
	}
	if po.Status != models.ProductionStatusPending {
		t.Fatalf("status = %s", po.Status)
	}
	return tomato, oil, po
}

func TestStartProduction_NoPartialReservation(t *testing.T) {
	setupTestDB(t)
	ctx := testContext("MANAGER", 1)
	f := seedPosFixture(t, ctx)
	tomato, oil, po := seedSauceBatch(t, ctx, f)

	// Planned: 6 tomato, 3 oil. Oil is short.
	seedStock(t, ctx, tomato.ID, f.kitchen.ID, "6")
	seedStock(t, ctx, oil.ID, f.kitchen.ID, "2")

	_, err := StartProductionOrder(ctx, po.ID)
	if !utils.IsCode(err, utils.ErrCodeInsufficientStock) {
		t.Fatalf("expected INSUFFICIENT_STOCK, got %v", err)
	}
	// The tomato reservation must have rolled back with the oil failure.
	requireQty(t, stockQty(t, ctx, tomato.ID, f.kitchen.ID), "6", "tomato untouched")

	seedStock(t, ctx, oil.ID, f.kitchen.ID, "1")
	started, err := StartProductionOrder(ctx, po.ID)
	if err != nil {
		t.Fatalf("StartProductionOrder: %v", err)
	}
	if started.Status != models.ProductionStatusInProgress {
		t.Fatalf("status = %s", started.Status)
	}
	requireQty(t, stockQty(t, ctx, tomato.ID, f.kitchen.ID), "0", "tomato reserved")
	requireQty(t, stockQty(t, ctx, oil.ID, f.kitchen.ID), "0", "oil reserved")
	for _, ing := range started.Ingredients {
		if !ing.ReservedQty.Equal(ing.PlannedQty) {
			t.Fatalf("ingredient %d reserved %s != planned %s", ing.ComponentId, ing.ReservedQty, ing.PlannedQty)
		}
	}

	// Starting twice is a lifecycle error, not a second deduction.
	if _, err := StartProductionOrder(ctx, po.ID); !utils.IsCode(err, utils.ErrCodeInvalidLifecycleState) {
		t.Fatalf("expected INVALID_LIFECYCLE_STATE, got %v", err)
	}
}

func TestCompleteProduction_SettlesVarianceAndBooksOutput(t *testing.T) {
	setupTestDB(t)
	ctx := testContext("MANAGER", 1)
	f := seedPosFixture(t, ctx)
	tomato, oil, po := seedSauceBatch(t, ctx, f)
	seedStock(t, ctx, tomato.ID, f.kitchen.ID, "6")
	seedStock(t, ctx, oil.ID, f.kitchen.ID, "3")

	if _, err := StartProductionOrder(ctx, po.ID); err != nil {
		t.Fatalf("StartProductionOrder: %v", err)
	}

	// Used one tomato less than reserved; oil defaults to its reservation.
	completed, err := CompleteProductionOrder(ctx, po.ID, &CompleteProductionInput{
		QtyProduced: decimal.RequireFromString("2.5"),
		Ingredients: []ActualIngredientInput{
			{ComponentId: tomato.ID, ActualQty: decimal.NewFromInt(5)},
		},
	})
	if err != nil {
		t.Fatalf("CompleteProductionOrder: %v", err)
	}
	if completed.Status != models.ProductionStatusCompleted {
		t.Fatalf("status = %s", completed.Status)
	}
	requireQty(t, completed.YieldVarianceQty, "-0.5", "yield variance")
	requireQty(t, stockQty(t, ctx, tomato.ID, f.kitchen.ID), "1", "unused tomato returned")
	requireQty(t, stockQty(t, ctx, oil.ID, f.kitchen.ID), "0", "oil fully consumed")
	requireQty(t, stockQty(t, ctx, completed.ProductId, f.kitchen.ID), "2.5", "finished goods booked")

	// Completion journal entry values actual consumption at cost:
	// 5 tomato x 1.00 + 3 oil x 4.00 = 17.00.
	db := config.GetDB()
	var entry models.JournalEntry
	if err := db.Where("reference_id = ? AND source = ?", po.BatchNumber, "production_completion").First(&entry).Error; err != nil {
		t.Fatalf("fetch completion entry: %v", err)
	}
	requireQty(t, entry.Amount, "17", "completion entry amount")
}

func TestCompleteProduction_OverConsumptionDeductsAndBooksWaste(t *testing.T) {
	setupTestDB(t)
	ctx := testContext("MANAGER", 1)
	f := seedPosFixture(t, ctx)
	tomato, oil, po := seedSauceBatch(t, ctx, f)
	seedStock(t, ctx, tomato.ID, f.kitchen.ID, "8")
	seedStock(t, ctx, oil.ID, f.kitchen.ID, "3")

	if _, err := StartProductionOrder(ctx, po.ID); err != nil {
		t.Fatalf("StartProductionOrder: %v", err)
	}

	completed, err := CompleteProductionOrder(ctx, po.ID, &CompleteProductionInput{
		QtyProduced: decimal.NewFromInt(3),
		Ingredients: []ActualIngredientInput{
			{ComponentId: tomato.ID, ActualQty: decimal.NewFromInt(7)},
		},
	})
	if err != nil {
		t.Fatalf("CompleteProductionOrder: %v", err)
	}
	requireQty(t, completed.YieldVarianceQty, "0", "yield variance")
	// 8 seeded - 6 reserved - 1 extra = 1 left.
	requireQty(t, stockQty(t, ctx, tomato.ID, f.kitchen.ID), "1", "tomato after over-consumption")

	db := config.GetDB()
	var waste models.JournalEntry
	if err := db.Where("reference_id = ? AND source = ?", po.BatchNumber, "production_waste").First(&waste).Error; err != nil {
		t.Fatalf("fetch waste entry: %v", err)
	}
	requireQty(t, waste.Amount, "1", "waste amount (1 tomato at cost)")
}

func TestCompleteProduction_UnplannedIngredientSettlesAsWaste(t *testing.T) {
	setupTestDB(t)
	ctx := testContext("MANAGER", 1)
	f := seedPosFixture(t, ctx)
	tomato, oil, po := seedSauceBatch(t, ctx, f)
	seedStock(t, ctx, tomato.ID, f.kitchen.ID, "6")
	seedStock(t, ctx, oil.ID, f.kitchen.ID, "3")

	salt, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:      "Sea Salt",
		CostPrice: decimal.RequireFromString("0.50"),
	})
	if err != nil {
		t.Fatalf("CreateProduct salt: %v", err)
	}
	seedStock(t, ctx, salt.ID, f.kitchen.ID, "5")

	if _, err := StartProductionOrder(ctx, po.ID); err != nil {
		t.Fatalf("StartProductionOrder: %v", err)
	}

	// Salt was never in the BOM, so it has no reservation to settle against.
	completed, err := CompleteProductionOrder(ctx, po.ID, &CompleteProductionInput{
		QtyProduced: decimal.NewFromInt(3),
		Ingredients: []ActualIngredientInput{
			{ComponentId: salt.ID, ActualQty: decimal.NewFromInt(2)},
		},
	})
	if err != nil {
		t.Fatalf("CompleteProductionOrder: %v", err)
	}
	requireQty(t, stockQty(t, ctx, salt.ID, f.kitchen.ID), "3", "salt deducted")

	db := config.GetDB()
	var movement models.StockMovement
	if err := db.Where("product_id = ? AND movement_type = ?", salt.ID, models.MovementTypeWaste).
		First(&movement).Error; err != nil {
		t.Fatalf("fetch salt waste movement: %v", err)
	}
	requireQty(t, movement.Qty, "2", "salt movement qty")

	var snapshot models.ProductionOrderIngredient
	if err := db.Where("production_order_id = ? AND component_id = ?", completed.ID, salt.ID).
		First(&snapshot).Error; err != nil {
		t.Fatalf("fetch salt ingredient row: %v", err)
	}
	requireQty(t, snapshot.PlannedQty, "0", "salt planned")
	requireQty(t, snapshot.ActualQty, "2", "salt actual")

	// Waste entry carries the full unplanned cost: 2 x 0.50.
	var waste models.JournalEntry
	if err := db.Where("reference_id = ? AND source = ?", po.BatchNumber, "production_waste").First(&waste).Error; err != nil {
		t.Fatalf("fetch waste entry: %v", err)
	}
	requireQty(t, waste.Amount, "1", "unplanned waste amount")

	// And the completion entry values all consumption, planned and not:
	// 6 tomato + 12 oil + 1 salt = 19.
	var entry models.JournalEntry
	if err := db.Where("reference_id = ? AND source = ?", po.BatchNumber, "production_completion").First(&entry).Error; err != nil {
		t.Fatalf("fetch completion entry: %v", err)
	}
	requireQty(t, entry.Amount, "19", "completion entry amount")
}

func TestCancelProduction_ReleasesReservations(t *testing.T) {
	setupTestDB(t)
	ctx := testContext("MANAGER", 1)
	f := seedPosFixture(t, ctx)
	tomato, oil, po := seedSauceBatch(t, ctx, f)
	seedStock(t, ctx, tomato.ID, f.kitchen.ID, "6")
	seedStock(t, ctx, oil.ID, f.kitchen.ID, "3")

	if _, err := StartProductionOrder(ctx, po.ID); err != nil {
		t.Fatalf("StartProductionOrder: %v", err)
	}
	requireQty(t, stockQty(t, ctx, tomato.ID, f.kitchen.ID), "0", "tomato reserved")

	cancelled, err := CancelProductionOrder(ctx, po.ID, "power outage")
	if err != nil {
		t.Fatalf("CancelProductionOrder: %v", err)
	}
	if cancelled.Status != models.ProductionStatusCancelled {
		t.Fatalf("status = %s", cancelled.Status)
	}
	requireQty(t, stockQty(t, ctx, tomato.ID, f.kitchen.ID), "6", "tomato released")
	requireQty(t, stockQty(t, ctx, oil.ID, f.kitchen.ID), "3", "oil released")

	// Completed/cancelled batches cannot be cancelled again.
	if _, err := CancelProductionOrder(ctx, po.ID, ""); !utils.IsCode(err, utils.ErrCodeInvalidLifecycleState) {
		t.Fatalf("expected INVALID_LIFECYCLE_STATE, got %v", err)
	}
}
