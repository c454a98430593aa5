package workflow

import (
	"context"
	"net/http"
	"time"

	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
)

type StockAdjustmentInput struct {
	ProductId   int             `json:"product_id" binding:"required"`
	WarehouseId int             `json:"warehouse_id" binding:"required"`
	NewQty      decimal.Decimal `json:"new_qty"`
	Reason      string          `json:"reason" binding:"required"`
	ReferenceId string          `json:"reference_id" binding:"required"`
}

type StockAdjustmentResult struct {
	PreviousQty decimal.Decimal `json:"previous_qty"`
	NewQty      decimal.Decimal `json:"new_qty"`
	Delta       decimal.Decimal `json:"delta"`
	Replayed    bool            `json:"replayed"`
}

// AdjustStock overwrites a balance to an absolute value and logs the delta.
// A reference id that already produced a movement makes the whole call a
// no-op replay, which is what guards offline/retry replays at this layer.
func AdjustStock(ctx context.Context, input *StockAdjustmentInput) (*StockAdjustmentResult, error) {
	userId, _ := utils.GetUserIdFromContext(ctx)

	if input.NewQty.IsNegative() {
		return nil, utils.NewValidationError("adjusted qty cannot be negative")
	}
	product, err := models.GetProduct(ctx, input.ProductId)
	if err != nil {
		return nil, utils.NewNotFoundError("product not found")
	}
	if err := utils.ValidateResourceId[models.Warehouse](ctx, input.WarehouseId); err != nil {
		return nil, utils.NewNotFoundError("warehouse not found")
	}

	db := config.GetDB()
	tx := db.Begin()

	replayed, err := models.MovementExistsByReference(ctx, tx, input.ReferenceId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if replayed {
		tx.Rollback()
		qty, err := models.GetStockQty(ctx, input.ProductId, input.WarehouseId)
		if err != nil {
			return nil, err
		}
		return &StockAdjustmentResult{PreviousQty: qty, NewQty: qty, Replayed: true}, nil
	}

	previousQty, err := models.GetStockQtyIn(ctx, tx, input.ProductId, input.WarehouseId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	delta := input.NewQty.Sub(previousQty)

	if delta.IsZero() {
		tx.Rollback()
		return &StockAdjustmentResult{PreviousQty: previousQty, NewQty: previousQty}, nil
	}

	if err := models.SetStockQty(ctx, tx, input.ProductId, input.WarehouseId, input.NewQty); err != nil {
		tx.Rollback()
		return nil, err
	}

	movement := &models.StockMovement{
		ProductId:    input.ProductId,
		Qty:          delta.Abs(),
		MovementType: models.MovementTypeAdjustment,
		Reason:       input.Reason,
		ReferenceId:  input.ReferenceId,
		ActorId:      userId,
	}
	if delta.IsNegative() {
		movement.FromWarehouseId = &input.WarehouseId
	} else {
		movement.ToWarehouseId = &input.WarehouseId
	}
	if err := models.AppendMovement(ctx, tx, movement); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	// Best-effort after commit; valuation failures never undo the movement.
	PostAdjustmentEntry(ctx, input.ReferenceId, delta, product.CostPrice)

	return &StockAdjustmentResult{
		PreviousQty: previousQty,
		NewQty:      input.NewQty,
		Delta:       delta,
	}, nil
}

type StockTransferInput struct {
	ProductId       int             `json:"product_id" binding:"required"`
	FromWarehouseId int             `json:"from_warehouse_id" binding:"required"`
	ToWarehouseId   int             `json:"to_warehouse_id" binding:"required"`
	Qty             decimal.Decimal `json:"qty" binding:"required"`
	Reason          string          `json:"reason"`
	ReferenceId     string          `json:"reference_id" binding:"required"`
}

// TransferStock moves quantity between warehouses as one atomic unit:
// source check + decrement, destination increment, one TRANSFER movement.
func TransferStock(ctx context.Context, input *StockTransferInput) (*models.StockMovement, error) {
	userId, _ := utils.GetUserIdFromContext(ctx)

	if input.FromWarehouseId == input.ToWarehouseId {
		return nil, utils.NewValidationError("source and destination warehouse must differ")
	}
	if input.Qty.LessThanOrEqual(decimal.Zero) {
		return nil, utils.NewValidationError("transfer qty must be positive")
	}
	if err := utils.ValidateResourceId[models.Product](ctx, input.ProductId); err != nil {
		return nil, utils.NewNotFoundError("product not found")
	}
	if err := utils.ValidateResourceId[models.Warehouse](ctx, input.FromWarehouseId); err != nil {
		return nil, utils.NewNotFoundError("source warehouse not found")
	}
	if err := utils.ValidateResourceId[models.Warehouse](ctx, input.ToWarehouseId); err != nil {
		return nil, utils.NewNotFoundError("destination warehouse not found")
	}

	db := config.GetDB()
	tx := db.Begin()

	replayed, err := models.MovementExistsByReference(ctx, tx, input.ReferenceId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if replayed {
		tx.Rollback()
		var movement models.StockMovement
		if err := db.WithContext(ctx).Where("reference_id = ?", input.ReferenceId).First(&movement).Error; err != nil {
			return nil, err
		}
		return &movement, nil
	}

	if err := models.DeductStock(ctx, tx, input.ProductId, input.FromWarehouseId, input.Qty); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := models.AddStock(ctx, tx, input.ProductId, input.ToWarehouseId, input.Qty); err != nil {
		tx.Rollback()
		return nil, err
	}

	movement := &models.StockMovement{
		ProductId:       input.ProductId,
		FromWarehouseId: &input.FromWarehouseId,
		ToWarehouseId:   &input.ToWarehouseId,
		Qty:             input.Qty,
		MovementType:    models.MovementTypeTransfer,
		Reason:          input.Reason,
		ReferenceId:     input.ReferenceId,
		ActorId:         userId,
	}
	if err := models.AppendMovement(ctx, tx, movement); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return movement, nil
}

// ReceivePurchaseOrder books all PO lines into the destination warehouse and
// marks the PO received. Replays (by the PO's receive reference) are no-ops.
func ReceivePurchaseOrder(ctx context.Context, poId int) (*models.PurchaseOrder, error) {
	userId, _ := utils.GetUserIdFromContext(ctx)

	po, err := models.GetPurchaseOrder(ctx, poId)
	if err != nil {
		return nil, utils.NewNotFoundError("purchase order not found")
	}
	if po.Status == models.PurchaseOrderStatusReceived {
		return po, nil
	}
	if po.Status != models.PurchaseOrderStatusIssued {
		return nil, utils.NewAppError(utils.ErrCodeInvalidLifecycleState, http.StatusUnprocessableEntity,
			"purchase order cannot be received in its current status")
	}

	referenceId := po.OrderNumber + ":receive"
	db := config.GetDB()
	tx := db.Begin()

	replayed, err := models.MovementExistsByReference(ctx, tx, referenceId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if replayed {
		tx.Rollback()
		return po, nil
	}

	for _, detail := range po.Details {
		if err := models.AddStock(ctx, tx, detail.ProductId, po.WarehouseId, detail.Qty); err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := models.AppendMovement(ctx, tx, &models.StockMovement{
			ProductId:     detail.ProductId,
			ToWarehouseId: &po.WarehouseId,
			Qty:           detail.Qty,
			MovementType:  models.MovementTypePurchase,
			Reason:        "purchase order receipt",
			ReferenceId:   referenceId,
			ActorId:       userId,
		}); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	now := time.Now().UTC()
	if err := tx.WithContext(ctx).Model(po).Updates(map[string]interface{}{
		"Status":     models.PurchaseOrderStatusReceived,
		"ReceivedAt": &now,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	PostPurchaseReceiptEntry(ctx, po)
	if warehouse, werr := models.GetWarehouse(ctx, po.WarehouseId); werr == nil {
		PublishBranchEvent(ctx, warehouse.BranchId, "purchase_order.received", po)
	}

	return po, nil
}
