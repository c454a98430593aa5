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

// StartProductionOrder reserves every planned ingredient in one transaction.
// Any single shortage aborts the whole start: a batch never begins with a
// partial reservation.
func StartProductionOrder(ctx context.Context, poId int) (*models.ProductionOrder, error) {
	userId, _ := utils.GetUserIdFromContext(ctx)

	po, err := models.GetProductionOrder(ctx, poId)
	if err != nil {
		return nil, utils.NewNotFoundError("production order not found")
	}
	if po.Status != models.ProductionStatusPending {
		return nil, utils.NewAppError(utils.ErrCodeInvalidLifecycleState, http.StatusUnprocessableEntity,
			"production order can only be started from PENDING")
	}

	warehouse, err := models.GetWarehouse(ctx, po.WarehouseId)
	if err != nil {
		return nil, err
	}

	if release, lockErr := utils.BranchLock(ctx, warehouse.BranchId, "production_start"); lockErr == nil {
		defer release()
	} else {
		logger := config.GetLogger()
		config.LogError(logger, "productionWorkflow.go", "StartProductionOrder", "BranchLock", po.ID, lockErr)
	}

	reference := po.BatchNumber + ":start"
	db := config.GetDB()
	tx := db.Begin()

	for i := range po.Ingredients {
		ingredient := &po.Ingredients[i]
		if err := models.DeductStock(ctx, tx, ingredient.ComponentId, po.WarehouseId, ingredient.PlannedQty); err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := models.AppendMovement(ctx, tx, &models.StockMovement{
			ProductId:       ingredient.ComponentId,
			FromWarehouseId: &po.WarehouseId,
			Qty:             ingredient.PlannedQty,
			MovementType:    models.MovementTypeProductionOut,
			Reason:          "production reservation",
			ReferenceId:     reference,
			ActorId:         userId,
		}); err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := tx.WithContext(ctx).Model(ingredient).
			Update("ReservedQty", ingredient.PlannedQty).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		ingredient.ReservedQty = ingredient.PlannedQty
	}

	now := time.Now().UTC()
	if err := tx.WithContext(ctx).Model(po).Updates(map[string]interface{}{
		"Status":    models.ProductionStatusInProgress,
		"StartedAt": &now,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	PublishBranchEvent(ctx, warehouse.BranchId, "production.started", po)
	return po, nil
}

type ActualIngredientInput struct {
	ComponentId int             `json:"component_id" binding:"required"`
	ActualQty   decimal.Decimal `json:"actual_qty"`
}

type CompleteProductionInput struct {
	QtyProduced decimal.Decimal         `json:"qty_produced" binding:"required"`
	Ingredients []ActualIngredientInput `json:"ingredients"`
}

// CompleteProductionOrder settles each ingredient against its reservation:
// unused quantity returns to stock, over-consumption is deducted fail-closed,
// and the finished good is booked into the warehouse. The yield variance
// (produced minus requested) is recorded but never blocks completion.
func CompleteProductionOrder(ctx context.Context, poId int, input *CompleteProductionInput) (*models.ProductionOrder, error) {
	userId, _ := utils.GetUserIdFromContext(ctx)

	if input.QtyProduced.LessThanOrEqual(decimal.Zero) {
		return nil, utils.NewValidationError("produced qty must be positive")
	}
	for _, actual := range input.Ingredients {
		if actual.ActualQty.IsNegative() {
			return nil, utils.NewValidationError("actual ingredient qty cannot be negative")
		}
	}

	po, err := models.GetProductionOrder(ctx, poId)
	if err != nil {
		return nil, utils.NewNotFoundError("production order not found")
	}
	if po.Status != models.ProductionStatusInProgress {
		return nil, utils.NewAppError(utils.ErrCodeInvalidLifecycleState, http.StatusUnprocessableEntity,
			"production order can only be completed from IN_PROGRESS")
	}

	actualByComponent := map[int]decimal.Decimal{}
	for _, actual := range input.Ingredients {
		actualByComponent[actual.ComponentId] = actual.ActualQty
	}

	reference := po.BatchNumber + ":complete"
	db := config.GetDB()
	tx := db.Begin()

	actualCost := decimal.Zero
	wasteCost := decimal.Zero
	for i := range po.Ingredients {
		ingredient := &po.Ingredients[i]

		actualQty, reported := actualByComponent[ingredient.ComponentId]
		if !reported {
			actualQty = ingredient.ReservedQty
		}
		delete(actualByComponent, ingredient.ComponentId)

		diff := actualQty.Sub(ingredient.ReservedQty)
		if diff.IsNegative() {
			// Consumed less than reserved: the unused part goes back.
			if err := models.AddStock(ctx, tx, ingredient.ComponentId, po.WarehouseId, diff.Abs()); err != nil {
				tx.Rollback()
				return nil, err
			}
			if err := models.AppendMovement(ctx, tx, &models.StockMovement{
				ProductId:     ingredient.ComponentId,
				ToWarehouseId: &po.WarehouseId,
				Qty:           diff.Abs(),
				MovementType:  models.MovementTypeProductionIn,
				Reason:        "unused ingredient return",
				ReferenceId:   reference,
				ActorId:       userId,
			}); err != nil {
				tx.Rollback()
				return nil, err
			}
		} else if diff.IsPositive() {
			// Consumed beyond the reservation: deduct the excess fail-closed.
			if err := models.DeductStock(ctx, tx, ingredient.ComponentId, po.WarehouseId, diff); err != nil {
				tx.Rollback()
				return nil, err
			}
			if err := models.AppendMovement(ctx, tx, &models.StockMovement{
				ProductId:       ingredient.ComponentId,
				FromWarehouseId: &po.WarehouseId,
				Qty:             diff,
				MovementType:    models.MovementTypeWaste,
				Reason:          "over-consumption",
				ReferenceId:     reference,
				ActorId:         userId,
			}); err != nil {
				tx.Rollback()
				return nil, err
			}
		}

		if err := tx.WithContext(ctx).Model(ingredient).
			Update("ActualQty", actualQty).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		ingredient.ActualQty = actualQty

		var component models.Product
		if err := tx.WithContext(ctx).First(&component, ingredient.ComponentId).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		actualCost = actualCost.Add(actualQty.Mul(component.CostPrice))
		if diff.IsPositive() {
			wasteCost = wasteCost.Add(diff.Mul(component.CostPrice))
		}
	}

	// Ingredients reported at completion that were never planned consume stock
	// all the same: they settle against a zero reservation, entirely as waste.
	for _, actual := range input.Ingredients {
		actualQty, pending := actualByComponent[actual.ComponentId]
		if !pending {
			continue
		}
		delete(actualByComponent, actual.ComponentId)
		if actualQty.IsZero() {
			continue
		}

		if err := models.DeductStock(ctx, tx, actual.ComponentId, po.WarehouseId, actualQty); err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := models.AppendMovement(ctx, tx, &models.StockMovement{
			ProductId:       actual.ComponentId,
			FromWarehouseId: &po.WarehouseId,
			Qty:             actualQty,
			MovementType:    models.MovementTypeWaste,
			Reason:          "unplanned consumption",
			ReferenceId:     reference,
			ActorId:         userId,
		}); err != nil {
			tx.Rollback()
			return nil, err
		}

		extra := models.ProductionOrderIngredient{
			ProductionOrderId: po.ID,
			ComponentId:       actual.ComponentId,
			ActualQty:         actualQty,
		}
		if err := tx.WithContext(ctx).Create(&extra).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		po.Ingredients = append(po.Ingredients, extra)

		var component models.Product
		if err := tx.WithContext(ctx).First(&component, actual.ComponentId).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		actualCost = actualCost.Add(actualQty.Mul(component.CostPrice))
		wasteCost = wasteCost.Add(actualQty.Mul(component.CostPrice))
	}

	if err := models.AddStock(ctx, tx, po.ProductId, po.WarehouseId, input.QtyProduced); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := models.AppendMovement(ctx, tx, &models.StockMovement{
		ProductId:     po.ProductId,
		ToWarehouseId: &po.WarehouseId,
		Qty:           input.QtyProduced,
		MovementType:  models.MovementTypeProductionIn,
		Reason:        "finished goods",
		ReferenceId:   reference,
		ActorId:       userId,
	}); err != nil {
		tx.Rollback()
		return nil, err
	}

	now := time.Now().UTC()
	variance := input.QtyProduced.Sub(po.QtyRequested)
	if err := tx.WithContext(ctx).Model(po).Updates(map[string]interface{}{
		"Status":           models.ProductionStatusCompleted,
		"QtyProduced":      input.QtyProduced,
		"YieldVarianceQty": variance,
		"CompletedAt":      &now,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	po.QtyProduced = input.QtyProduced
	po.YieldVarianceQty = variance
	po.Status = models.ProductionStatusCompleted

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	PostProductionCompletionEntry(ctx, po.BatchNumber, actualCost)
	if wasteCost.IsPositive() {
		PostProductionWasteEntry(ctx, po.BatchNumber, wasteCost)
	}
	if warehouse, werr := models.GetWarehouse(ctx, po.WarehouseId); werr == nil {
		PublishBranchEvent(ctx, warehouse.BranchId, "production.completed", po)
	}

	return po, nil
}

// CancelProductionOrder aborts a batch. A PENDING cancel touches no stock;
// an IN_PROGRESS cancel returns every reservation before closing.
func CancelProductionOrder(ctx context.Context, poId int, reason string) (*models.ProductionOrder, error) {
	userId, _ := utils.GetUserIdFromContext(ctx)

	po, err := models.GetProductionOrder(ctx, poId)
	if err != nil {
		return nil, utils.NewNotFoundError("production order not found")
	}
	if po.Status != models.ProductionStatusPending && po.Status != models.ProductionStatusInProgress {
		return nil, utils.NewAppError(utils.ErrCodeInvalidLifecycleState, http.StatusUnprocessableEntity,
			"production order can only be cancelled from PENDING or IN_PROGRESS")
	}

	reference := po.BatchNumber + ":cancel"
	db := config.GetDB()
	tx := db.Begin()

	if po.Status == models.ProductionStatusInProgress {
		for _, ingredient := range po.Ingredients {
			if ingredient.ReservedQty.LessThanOrEqual(decimal.Zero) {
				continue
			}
			if err := models.AddStock(ctx, tx, ingredient.ComponentId, po.WarehouseId, ingredient.ReservedQty); err != nil {
				tx.Rollback()
				return nil, err
			}
			if err := models.AppendMovement(ctx, tx, &models.StockMovement{
				ProductId:     ingredient.ComponentId,
				ToWarehouseId: &po.WarehouseId,
				Qty:           ingredient.ReservedQty,
				MovementType:  models.MovementTypeProductionIn,
				Reason:        "cancelled batch release",
				ReferenceId:   reference,
				ActorId:       userId,
			}); err != nil {
				tx.Rollback()
				return nil, err
			}
		}
	}

	if err := tx.WithContext(ctx).Model(po).
		Update("Status", models.ProductionStatusCancelled).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	po.Status = models.ProductionStatusCancelled

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	if warehouse, werr := models.GetWarehouse(ctx, po.WarehouseId); werr == nil {
		PublishBranchEvent(ctx, warehouse.BranchId, "production.cancelled", map[string]interface{}{
			"production_order_id": po.ID,
			"batch_number":        po.BatchNumber,
			"reason":              reason,
		})
	}
	return po, nil
}
