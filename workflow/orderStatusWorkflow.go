package workflow

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/mmdatafocus/pos_backend/utils"
)

// EvaluateTransition is the policy gate for order status changes. It rejects
// before any side effect; callers only persist once it passes.
func EvaluateTransition(current, next models.OrderStatus, role models.UserRole, actorBranchId, orderBranchId int, notes string) error {
	// Same-status updates are no-ops, always allowed.
	if current == next {
		return nil
	}

	if !role.IsSuperAdminTier() && actorBranchId != orderBranchId {
		return utils.NewAppError(utils.ErrCodeForbiddenBranchScope, http.StatusForbidden,
			"order belongs to a different branch")
	}

	if !current.CanTransitionTo(next) {
		return utils.NewAppError(utils.ErrCodeInvalidStatusTransition, http.StatusUnprocessableEntity,
			"status transition is not allowed")
	}

	if next == models.OrderStatusCancelled {
		if !role.IsManagerTier() {
			return utils.NewAppError(utils.ErrCodeStatusTransitionForbidden, http.StatusForbidden,
				"cancelling an order requires a manager role")
		}
		if strings.TrimSpace(notes) == "" {
			return utils.NewAppError(utils.ErrCodeCancellationReasonRequired, http.StatusBadRequest,
				"a cancellation reason is required")
		}
	}

	return nil
}

type StatusUpdateInput struct {
	Status            models.OrderStatus `json:"status" binding:"required"`
	Notes             string             `json:"notes"`
	ExpectedUpdatedAt *time.Time         `json:"expected_updated_at"`
}

// UpdateOrderStatus applies one lifecycle transition with optimistic
// concurrency: when the caller supplies the timestamp it last saw and it no
// longer matches, the update is rejected with the true current value so the
// client can re-fetch and retry.
func UpdateOrderStatus(ctx context.Context, orderId int, input *StatusUpdateInput) (*models.Order, error) {
	userId, _ := utils.GetUserIdFromContext(ctx)
	roleStr, _ := utils.GetUserRoleFromContext(ctx)
	actorBranchId, _ := utils.GetBranchIdFromContext(ctx)
	role := models.UserRole(roleStr)

	db := config.GetDB()
	tx := db.Begin()

	// The policy gate and version check evaluate the row as read in this
	// transaction, and the UPDATE is conditioned on that same status: a racing
	// transition that commits in between leaves RowsAffected at zero instead
	// of silently overwriting it.
	var order models.Order
	if err := tx.WithContext(ctx).First(&order, orderId).Error; err != nil {
		tx.Rollback()
		return nil, utils.NewNotFoundError("order not found")
	}

	if err := EvaluateTransition(order.Status, input.Status, role, actorBranchId, order.BranchId, input.Notes); err != nil {
		tx.Rollback()
		return nil, err
	}
	if order.Status == input.Status {
		tx.Rollback()
		return &order, nil
	}

	if input.ExpectedUpdatedAt != nil && !order.UpdatedAt.Equal(*input.ExpectedUpdatedAt) {
		tx.Rollback()
		return nil, utils.NewAppError(utils.ErrCodeOrderVersionConflict, http.StatusConflict,
			"order was modified by another request").
			WithMeta("current_updated_at", order.UpdatedAt)
	}

	previousStatus := order.Status

	updates := map[string]interface{}{"Status": input.Status}
	if input.Status == models.OrderStatusCancelled {
		updates["CancellationReason"] = input.Notes
	}
	result := tx.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, previousStatus).
		Updates(updates)
	if result.Error != nil {
		tx.Rollback()
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return nil, utils.NewAppError(utils.ErrCodeOrderVersionConflict, http.StatusConflict,
			"order was modified by another request").
			WithMeta("current_updated_at", order.UpdatedAt)
	}

	if err := tx.WithContext(ctx).Create(&models.OrderStatusHistory{
		OrderId:     order.ID,
		FromStatus:  previousStatus,
		ToStatus:    input.Status,
		ChangedById: userId,
		Notes:       input.Notes,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	order.Status = input.Status
	if input.Status == models.OrderStatusCancelled {
		order.CancellationReason = input.Notes
	}

	PublishBranchEvent(ctx, order.BranchId, "order.status_changed", map[string]interface{}{
		"order_id":    order.ID,
		"from_status": previousStatus,
		"to_status":   input.Status,
	})

	return &order, nil
}
