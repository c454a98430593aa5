package models

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockBalance is the materialized projection of the movement log for one
// (product, warehouse) pair. It is only ever written through the movement
// helpers below, inside the caller's transaction.
type StockBalance struct {
	ID          int             `gorm:"primary_key" json:"id"`
	ProductId   int             `gorm:"not null;index:uniq_stock,unique" json:"product_id"`
	WarehouseId int             `gorm:"not null;index:uniq_stock,unique" json:"warehouse_id"`
	Qty         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// StockMovement is the append-only record of every stock change. Qty is
// always positive; direction is carried by the warehouse columns and type.
type StockMovement struct {
	ID              int               `gorm:"primary_key" json:"id"`
	ProductId       int               `gorm:"not null;index" json:"product_id"`
	FromWarehouseId *int              `gorm:"index" json:"from_warehouse_id"`
	ToWarehouseId   *int              `gorm:"index" json:"to_warehouse_id"`
	Qty             decimal.Decimal   `gorm:"type:decimal(20,4);not null" json:"qty"`
	MovementType    StockMovementType `gorm:"size:20;not null;index" json:"movement_type"`
	Reason          string            `gorm:"size:255" json:"reason"`
	ReferenceId     string            `gorm:"size:255;index" json:"reference_id"`
	ActorId         int               `json:"actor_id"`
	CreatedAt       time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

var errInsufficientStock = utils.NewAppError(utils.ErrCodeInsufficientStock, http.StatusUnprocessableEntity, "insufficient stock")

// GetStockQty reads the current projected quantity (zero when no row exists).
func GetStockQty(ctx context.Context, productId, warehouseId int) (decimal.Decimal, error) {
	return GetStockQtyIn(ctx, config.GetDB(), productId, warehouseId)
}

// GetStockQtyIn reads the projection through the caller's transaction.
// Workflows that compute a delta from the balance must read it here so the
// delta and the movement they log come from the same snapshot.
func GetStockQtyIn(ctx context.Context, tx *gorm.DB, productId, warehouseId int) (decimal.Decimal, error) {
	balance, err := fetchBalance(ctx, tx, productId, warehouseId)
	if err != nil {
		return decimal.Zero, err
	}
	if balance == nil {
		return decimal.Zero, nil
	}
	return balance.Qty, nil
}

func fetchBalance(ctx context.Context, tx *gorm.DB, productId, warehouseId int) (*StockBalance, error) {
	var balance StockBalance
	err := tx.WithContext(ctx).
		Where("product_id = ? AND warehouse_id = ?", productId, warehouseId).
		First(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &balance, nil
}

// DeductStock decrements a balance inside tx, failing closed if the result
// would go below zero.
func DeductStock(ctx context.Context, tx *gorm.DB, productId, warehouseId int, qty decimal.Decimal) error {
	if qty.LessThanOrEqual(decimal.Zero) {
		return errors.New("deduction qty must be positive")
	}
	balance, err := fetchBalance(ctx, tx, productId, warehouseId)
	if err != nil {
		return err
	}
	if balance == nil || balance.Qty.LessThan(qty) {
		return errInsufficientStock.WithMeta("product_id", productId).WithMeta("warehouse_id", warehouseId)
	}
	return tx.WithContext(ctx).Model(balance).
		Update("qty", balance.Qty.Sub(qty)).Error
}

// AddStock increments (or creates) a balance inside tx.
func AddStock(ctx context.Context, tx *gorm.DB, productId, warehouseId int, qty decimal.Decimal) error {
	if qty.LessThanOrEqual(decimal.Zero) {
		return errors.New("addition qty must be positive")
	}
	balance, err := fetchBalance(ctx, tx, productId, warehouseId)
	if err != nil {
		return err
	}
	if balance == nil {
		return tx.WithContext(ctx).Create(&StockBalance{
			ProductId:   productId,
			WarehouseId: warehouseId,
			Qty:         qty,
		}).Error
	}
	return tx.WithContext(ctx).Model(balance).
		Update("qty", balance.Qty.Add(qty)).Error
}

// SetStockQty overwrites a balance to an absolute non-negative value
// (historical adjustment path only).
func SetStockQty(ctx context.Context, tx *gorm.DB, productId, warehouseId int, qty decimal.Decimal) error {
	if qty.IsNegative() {
		return errors.New("stock qty cannot be negative")
	}
	balance, err := fetchBalance(ctx, tx, productId, warehouseId)
	if err != nil {
		return err
	}
	if balance == nil {
		return tx.WithContext(ctx).Create(&StockBalance{
			ProductId:   productId,
			WarehouseId: warehouseId,
			Qty:         qty,
		}).Error
	}
	return tx.WithContext(ctx).Model(balance).Update("qty", qty).Error
}

// AppendMovement writes one append-only log row inside tx.
func AppendMovement(ctx context.Context, tx *gorm.DB, movement *StockMovement) error {
	if movement.Qty.LessThanOrEqual(decimal.Zero) {
		return errors.New("movement qty must be positive")
	}
	return tx.WithContext(ctx).Create(movement).Error
}

// MovementExistsByReference guards offline/retry replays at the stock layer:
// a reference id that already produced a movement must not produce another.
func MovementExistsByReference(ctx context.Context, tx *gorm.DB, referenceId string) (bool, error) {
	if referenceId == "" {
		return false, nil
	}
	var count int64
	err := tx.WithContext(ctx).Model(&StockMovement{}).
		Where("reference_id = ?", referenceId).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
