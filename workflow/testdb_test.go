package workflow

import (
	"context"
	"fmt"
	"testing"

	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// setupTestDB points the global handle at a fresh in-memory database so the
// ledger workflows run unchanged against it.
func setupTestDB(t *testing.T) {
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
}

func testContext(role string, branchId int) context.Context {
	ctx := utils.SetUserIdInContext(context.Background(), 1)
	ctx = utils.SetUsernameInContext(ctx, "test@local")
	ctx = utils.SetUserRoleInContext(ctx, role)
	ctx = utils.SetBranchIdInContext(ctx, branchId)
	return ctx
}

type posFixture struct {
	branch  *models.Branch
	kitchen *models.Warehouse
	storage *models.Warehouse
	patty   *models.Product
	bun     *models.Product
	burger  *models.Product
	shift   *models.Shift
}

// seedPosFixture builds one branch with a kitchen and storage warehouse, a
// burger menu item with a two-ingredient BOM, and an open shift.
func seedPosFixture(t *testing.T, ctx context.Context) *posFixture {
	t.Helper()

	branch, err := models.CreateBranch(ctx, &models.NewBranch{Name: "Downtown"})
	if err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	kitchen, err := models.CreateWarehouse(ctx, &models.NewWarehouse{
		BranchId:      branch.ID,
		Name:          "Downtown Kitchen",
		WarehouseType: models.WarehouseTypeKitchen,
	})
	if err != nil {
		t.Fatalf("CreateWarehouse kitchen: %v", err)
	}
	storage, err := models.CreateWarehouse(ctx, &models.NewWarehouse{
		BranchId:      branch.ID,
		Name:          "Downtown Storage",
		WarehouseType: models.WarehouseTypeStorage,
	})
	if err != nil {
		t.Fatalf("CreateWarehouse storage: %v", err)
	}

	patty, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:      "Beef Patty",
		CostPrice: decimal.RequireFromString("2.50"),
	})
	if err != nil {
		t.Fatalf("CreateProduct patty: %v", err)
	}
	bun, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:      "Burger Bun",
		CostPrice: decimal.RequireFromString("0.50"),
	})
	if err != nil {
		t.Fatalf("CreateProduct bun: %v", err)
	}
	burger, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:           "Classic Burger",
		SalesPrice:     decimal.RequireFromString("10.00"),
		TrackInventory: utils.NewFalse(),
		BomComponents: []models.NewBomComponent{
			{ComponentId: patty.ID, Qty: decimal.NewFromInt(1)},
			{ComponentId: bun.ID, Qty: decimal.NewFromInt(1)},
		},
	})
	if err != nil {
		t.Fatalf("CreateProduct burger: %v", err)
	}

	shift, err := models.OpenShift(ctx, &models.NewShift{BranchId: branch.ID})
	if err != nil {
		t.Fatalf("OpenShift: %v", err)
	}

	return &posFixture{
		branch:  branch,
		kitchen: kitchen,
		storage: storage,
		patty:   patty,
		bun:     bun,
		burger:  burger,
		shift:   shift,
	}
}

func seedStock(t *testing.T, ctx context.Context, productId, warehouseId int, qty string) {
	t.Helper()
	db := config.GetDB()
	if err := models.AddStock(ctx, db, productId, warehouseId, decimal.RequireFromString(qty)); err != nil {
		t.Fatalf("seed stock: %v", err)
	}
}

func stockQty(t *testing.T, ctx context.Context, productId, warehouseId int) decimal.Decimal {
	t.Helper()
	qty, err := models.GetStockQty(ctx, productId, warehouseId)
	if err != nil {
		t.Fatalf("GetStockQty: %v", err)
	}
	return qty
}

func requireQty(t *testing.T, got decimal.Decimal, want string, label string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("%s: got %s, want %s", label, got, want)
	}
}
