package workflow

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Table operations move seats and items around without recomputing pricing
// policy: splits and merges hold each order's original discount/tax/service
// rates constant and reallocate amounts proportionally.

type TableTransferInput struct {
	TableNumber string `json:"table_number" binding:"required"`
}

func requireOpenDineIn(order *models.Order) error {
	if order.OrderType != models.OrderTypeDineIn {
		return utils.NewValidationError("only dine-in orders have a table")
	}
	if order.Status.IsTerminal() {
		return utils.NewAppError(utils.ErrCodeInvalidLifecycleState, http.StatusUnprocessableEntity,
			"order is already closed")
	}
	return nil
}

// TransferTable moves an open dine-in order to another table. Money fields
// are untouched.
func TransferTable(ctx context.Context, orderId int, input *TableTransferInput) (*models.Order, error) {
	if strings.TrimSpace(input.TableNumber) == "" {
		return nil, utils.NewValidationError("table number is required")
	}

	order, err := utils.FetchSingleModel[models.Order](ctx, orderId)
	if err != nil {
		return nil, utils.NewNotFoundError("order not found")
	}
	if err := requireOpenDineIn(order); err != nil {
		return nil, err
	}
	if order.TableNumber == input.TableNumber {
		return order, nil
	}

	previousTable := order.TableNumber
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(order).
		Update("TableNumber", input.TableNumber).Error; err != nil {
		return nil, err
	}
	order.TableNumber = input.TableNumber

	PublishBranchEvent(ctx, order.BranchId, "order.table_transferred", map[string]interface{}{
		"order_id":   order.ID,
		"from_table": previousTable,
		"to_table":   input.TableNumber,
	})
	return order, nil
}

type SplitOrderInput struct {
	ItemIds     []int  `json:"item_ids" binding:"required,min=1"`
	TableNumber string `json:"table_number" binding:"required"`
}

// SplitOrder moves a strict subset of an open dine-in order's items onto a
// new order at another table, on the same shift. Both orders are re-priced
// with the source order's original rates so the combined charge is preserved.
func SplitOrder(ctx context.Context, orderId int, input *SplitOrderInput) (*models.Order, error) {
	userId, _ := utils.GetUserIdFromContext(ctx)

	order, err := utils.FetchSingleModel[models.Order](ctx, orderId, "Items")
	if err != nil {
		return nil, utils.NewNotFoundError("order not found")
	}
	if err := requireOpenDineIn(order); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.TableNumber) == "" {
		return nil, utils.NewValidationError("table number is required")
	}

	moveSet := map[int]bool{}
	for _, id := range input.ItemIds {
		moveSet[id] = true
	}

	var moved, remaining []models.OrderItem
	for _, item := range order.Items {
		if moveSet[item.ID] {
			moved = append(moved, item)
			delete(moveSet, item.ID)
		} else {
			remaining = append(remaining, item)
		}
	}
	if len(moveSet) > 0 {
		return nil, utils.NewValidationError("item does not belong to this order")
	}
	if len(moved) == 0 {
		return nil, utils.NewValidationError("no items selected to split")
	}
	if len(remaining) == 0 {
		return nil, utils.NewValidationError("cannot split all items off an order")
	}

	db := config.GetDB()
	tx := db.Begin()

	newOrder := models.Order{
		OrderNumber: nextOrderNumber(ctx),
		BranchId:    order.BranchId,
		ShiftId:     order.ShiftId,
		OrderType:   models.OrderTypeDineIn,
		Status:      order.Status,
		TableNumber: input.TableNumber,
		CreatedById: userId,
		StatusHistory: []models.OrderStatusHistory{{
			ToStatus:    order.Status,
			ChangedById: userId,
			Notes:       fmt.Sprintf("split from %s", order.OrderNumber),
		}},
	}
	models.RederiveTotalsWithRates(order, moved).ApplyTo(&newOrder)

	if err := tx.WithContext(ctx).Create(&newOrder).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.WithContext(ctx).Model(&models.OrderItem{}).
		Where("id IN ?", input.ItemIds).
		Update("order_id", newOrder.ID).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := applyTotals(ctx, tx, order.ID, models.RederiveTotalsWithRates(order, remaining)); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	PublishBranchEvent(ctx, order.BranchId, "order.split", map[string]interface{}{
		"source_order_id": order.ID,
		"new_order_id":    newOrder.ID,
		"item_ids":        input.ItemIds,
	})

	return models.GetOrder(ctx, newOrder.ID)
}

type MergeOrdersInput struct {
	SourceOrderId int `json:"source_order_id" binding:"required"`
}

// MergeOrders folds one open dine-in order into another on the same branch
// and shift. All items and payments move to the target, the target is
// re-priced with its own rates, and the emptied source is cancelled with an
// audit reason. Cancelling is a manager-tier action, so merging is too.
func MergeOrders(ctx context.Context, targetId int, input *MergeOrdersInput) (*models.Order, error) {
	userId, _ := utils.GetUserIdFromContext(ctx)
	roleStr, _ := utils.GetUserRoleFromContext(ctx)
	if !models.UserRole(roleStr).IsManagerTier() {
		return nil, utils.NewAppError(utils.ErrCodeStatusTransitionForbidden, http.StatusForbidden,
			"merging orders requires a manager role")
	}
	if targetId == input.SourceOrderId {
		return nil, utils.NewValidationError("cannot merge an order into itself")
	}

	target, err := utils.FetchSingleModel[models.Order](ctx, targetId, "Items")
	if err != nil {
		return nil, utils.NewNotFoundError("target order not found")
	}
	source, err := utils.FetchSingleModel[models.Order](ctx, input.SourceOrderId, "Items")
	if err != nil {
		return nil, utils.NewNotFoundError("source order not found")
	}
	for _, order := range []*models.Order{target, source} {
		if err := requireOpenDineIn(order); err != nil {
			return nil, err
		}
	}
	if target.BranchId != source.BranchId || target.ShiftId != source.ShiftId {
		return nil, utils.NewValidationError("orders must belong to the same branch and shift")
	}

	db := config.GetDB()
	tx := db.Begin()

	if err := tx.WithContext(ctx).Model(&models.OrderItem{}).
		Where("order_id = ?", source.ID).
		Update("order_id", target.ID).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Model(&models.OrderPayment{}).
		Where("order_id = ?", source.ID).
		Update("order_id", target.ID).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	combined := append(append([]models.OrderItem{}, target.Items...), source.Items...)
	totals := models.RederiveTotalsWithRates(target, combined)
	if err := applyTotals(ctx, tx, target.ID, totals); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", target.ID).
		Update("PaidAmount", target.PaidAmount.Add(source.PaidAmount)).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	cancelReason := fmt.Sprintf("merged into %s", target.OrderNumber)
	if err := tx.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", source.ID).Updates(map[string]interface{}{
		"Status":             models.OrderStatusCancelled,
		"CancellationReason": cancelReason,
		"PaidAmount":         decimal.Zero,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Create(&models.OrderStatusHistory{
		OrderId:     source.ID,
		FromStatus:  source.Status,
		ToStatus:    models.OrderStatusCancelled,
		ChangedById: userId,
		Notes:       cancelReason,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	PublishBranchEvent(ctx, target.BranchId, "order.merged", map[string]interface{}{
		"target_order_id": target.ID,
		"source_order_id": source.ID,
	})

	return models.GetOrder(ctx, target.ID)
}

// applyTotals writes money columns through a fresh model value. The loaded
// order structs still carry the pre-move Items association, and saving
// through them would re-attach the moved rows to their old order.
func applyTotals(ctx context.Context, tx *gorm.DB, orderId int, totals models.OrderTotals) error {
	return tx.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", orderId).Updates(map[string]interface{}{
		"SubTotal":            totals.SubTotal,
		"DiscountAmount":      totals.DiscountAmount,
		"TaxAmount":           totals.TaxAmount,
		"ServiceChargeAmount": totals.ServiceChargeAmount,
		"DeliveryFee":         totals.DeliveryFee,
		"TotalAmount":         totals.TotalAmount,
	}).Error
}
