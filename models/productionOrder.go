package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
)

// ProductionOrder converts raw ingredients into a finished good. PENDING
// orders have touched no stock; starting one reserves (deducts) ingredients,
// completing one settles the variance between reserved and actual
// consumption and adds the finished good to stock.
type ProductionOrder struct {
	ID               int                         `gorm:"primary_key" json:"id"`
	BatchNumber      string                      `gorm:"size:100;not null;uniqueIndex" json:"batch_number"`
	ProductId        int                         `gorm:"not null;index" json:"product_id"`
	WarehouseId      int                         `gorm:"not null;index" json:"warehouse_id"`
	QtyRequested     decimal.Decimal             `gorm:"type:decimal(20,4);not null" json:"qty_requested"`
	QtyProduced      decimal.Decimal             `gorm:"type:decimal(20,4);default:0" json:"qty_produced"`
	YieldVarianceQty decimal.Decimal             `gorm:"type:decimal(20,4);default:0" json:"yield_variance_qty"`
	Status           ProductionOrderStatus       `gorm:"size:20;not null;index" json:"status"`
	Ingredients      []ProductionOrderIngredient `gorm:"foreignKey:ProductionOrderId;constraint:OnDelete:CASCADE" json:"ingredients"`
	CreatedById      int                         `json:"created_by_id"`
	StartedAt        *time.Time                  `json:"started_at"`
	CompletedAt      *time.Time                  `json:"completed_at"`
	CreatedAt        time.Time                   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`
}

// ProductionOrderIngredient snapshots one BOM component for a production
// run: planned at creation, reserved at start, actual at completion.
type ProductionOrderIngredient struct {
	ID                int             `gorm:"primary_key" json:"id"`
	ProductionOrderId int             `gorm:"not null;index:uniq_po_ingredient,unique" json:"production_order_id"`
	ComponentId       int             `gorm:"not null;index:uniq_po_ingredient,unique" json:"component_id"`
	PlannedQty        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"planned_qty"`
	ReservedQty       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"reserved_qty"`
	ActualQty         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"actual_qty"`
}

type NewProductionOrder struct {
	ProductId    int             `json:"product_id" binding:"required"`
	WarehouseId  int             `json:"warehouse_id" binding:"required"`
	QtyRequested decimal.Decimal `json:"qty_requested" binding:"required"`
}

func (input *NewProductionOrder) validate(ctx context.Context) (*Product, error) {
	if input.QtyRequested.LessThanOrEqual(decimal.Zero) {
		return nil, utils.NewValidationError("requested qty must be positive")
	}
	if err := utils.ValidateResourceId[Warehouse](ctx, input.WarehouseId); err != nil {
		return nil, errors.New("warehouse not found")
	}
	product, err := GetProduct(ctx, input.ProductId)
	if err != nil {
		return nil, errors.New("product not found")
	}
	if len(product.BomComponents) == 0 {
		return nil, utils.NewValidationError("product has no bill of materials")
	}
	return product, nil
}

// CreateProductionOrder expands the target product's BOM by the requested
// quantity into a planned ingredient list. No stock is touched yet.
func CreateProductionOrder(ctx context.Context, input *NewProductionOrder) (*ProductionOrder, error) {
	userId, _ := utils.GetUserIdFromContext(ctx)

	product, err := input.validate(ctx)
	if err != nil {
		return nil, err
	}

	ingredients := make([]ProductionOrderIngredient, 0, len(product.BomComponents))
	for _, component := range product.BomComponents {
		ingredients = append(ingredients, ProductionOrderIngredient{
			ComponentId: component.ComponentId,
			PlannedQty:  component.Qty.Mul(input.QtyRequested),
		})
	}

	order := ProductionOrder{
		BatchNumber:  fmt.Sprintf("PRD-%s", uuid.NewString()[:8]),
		ProductId:    input.ProductId,
		WarehouseId:  input.WarehouseId,
		QtyRequested: input.QtyRequested,
		Status:       ProductionStatusPending,
		Ingredients:  ingredients,
		CreatedById:  userId,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func GetProductionOrder(ctx context.Context, id int) (*ProductionOrder, error) {
	return utils.FetchSingleModel[ProductionOrder](ctx, id, "Ingredients")
}
