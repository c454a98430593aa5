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

type PurchaseOrder struct {
	ID           int                   `gorm:"primary_key" json:"id"`
	OrderNumber  string                `gorm:"size:100;not null;uniqueIndex" json:"order_number"`
	SupplierName string                `gorm:"size:100;not null" json:"supplier_name"`
	WarehouseId  int                   `gorm:"not null;index" json:"warehouse_id"`
	Status       PurchaseOrderStatus   `gorm:"size:20;not null;index" json:"status"`
	TotalAmount  decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	Details      []PurchaseOrderDetail `gorm:"foreignKey:PurchaseOrderId;constraint:OnDelete:CASCADE" json:"details"`
	CreatedById  int                   `json:"created_by_id"`
	ReceivedAt   *time.Time            `json:"received_at"`
	CreatedAt    time.Time             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time             `gorm:"autoUpdateTime" json:"updated_at"`
}

type PurchaseOrderDetail struct {
	ID              int             `gorm:"primary_key" json:"id"`
	PurchaseOrderId int             `gorm:"not null;index" json:"purchase_order_id"`
	ProductId       int             `gorm:"not null;index" json:"product_id"`
	Qty             decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	UnitCost        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_cost"`
}

type NewPurchaseOrder struct {
	SupplierName string                   `json:"supplier_name" binding:"required"`
	WarehouseId  int                      `json:"warehouse_id" binding:"required"`
	Details      []NewPurchaseOrderDetail `json:"details" binding:"required,min=1,dive"`
}

type NewPurchaseOrderDetail struct {
	ProductId int             `json:"product_id" binding:"required"`
	Qty       decimal.Decimal `json:"qty" binding:"required"`
	UnitCost  decimal.Decimal `json:"unit_cost" binding:"required"`
}

func (input *NewPurchaseOrder) validate(ctx context.Context) error {
	if err := utils.ValidateResourceId[Warehouse](ctx, input.WarehouseId); err != nil {
		return errors.New("warehouse not found")
	}
	for _, d := range input.Details {
		if err := utils.ValidateResourceId[Product](ctx, d.ProductId); err != nil {
			return errors.New("product not found")
		}
		if d.Qty.LessThanOrEqual(decimal.Zero) || d.UnitCost.IsNegative() {
			return utils.NewValidationError("detail qty must be positive and unit cost non-negative")
		}
	}
	return nil
}

func CreatePurchaseOrder(ctx context.Context, input *NewPurchaseOrder) (*PurchaseOrder, error) {
	userId, _ := utils.GetUserIdFromContext(ctx)

	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	details := make([]PurchaseOrderDetail, 0, len(input.Details))
	totalAmount := decimal.Zero
	for _, d := range input.Details {
		details = append(details, PurchaseOrderDetail{
			ProductId: d.ProductId,
			Qty:       d.Qty,
			UnitCost:  d.UnitCost,
		})
		totalAmount = totalAmount.Add(d.Qty.Mul(d.UnitCost))
	}

	po := PurchaseOrder{
		OrderNumber:  fmt.Sprintf("PO-%s", uuid.NewString()[:8]),
		SupplierName: input.SupplierName,
		WarehouseId:  input.WarehouseId,
		Status:       PurchaseOrderStatusIssued,
		TotalAmount:  totalAmount,
		Details:      details,
		CreatedById:  userId,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&po).Error; err != nil {
		return nil, err
	}
	return &po, nil
}

func GetPurchaseOrder(ctx context.Context, id int) (*PurchaseOrder, error) {
	return utils.FetchSingleModel[PurchaseOrder](ctx, id, "Details")
}
