package workflow

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	ScopeOrderCreate = "order:create"
	// IdempotencyControlField is stripped from payloads before hashing so the
	// key itself does not perturb the canonical hash.
	IdempotencyControlField = "idempotency_key"
)

func nextOrderNumber(ctx context.Context) string {
	seq, err := config.GetRedisCounter(ctx, "order_seq")
	if err == nil && seq > 0 {
		return fmt.Sprintf("ORD-%06d", seq)
	}
	// Redis unavailable: fall back to a collision-safe random number.
	return "ORD-" + strings.ToUpper(uuid.NewString()[:8])
}

// CreateOrder turns one POS request into a single atomic unit of work:
// shift check, server-side totals, order + items insert, BOM ingredient
// deduction against the branch kitchen warehouse, status history and
// payment rows. Post-commit side effects (notification, POS sale journal,
// fiscal submission for paid orders) are best-effort and never undo the
// committed order.
func CreateOrder(ctx context.Context, input *models.NewOrder, rawPayload []byte, idempotencyKey string) (*models.Order, *ReplayResponse, error) {
	userId, _ := utils.GetUserIdFromContext(ctx)

	if idempotencyKey != "" {
		payloadHash, err := utils.CanonicalPayloadHash(rawPayload, IdempotencyControlField)
		if err != nil {
			return nil, nil, utils.NewValidationError("request body is not valid JSON")
		}
		claim, err := BeginClaim(ctx, idempotencyKey, ScopeOrderCreate, payloadHash, DefaultClaimTTL)
		if err != nil {
			return nil, nil, err
		}
		if claim.Replay != nil {
			return nil, claim.Replay, nil
		}
	}

	// Reject before any side effect; also clears the fresh claim.
	if err := input.Validate(ctx); err != nil {
		return nil, nil, failOrderCreate(ctx, nil, idempotencyKey, err)
	}

	db := config.GetDB()
	tx := db.Begin()

	shift, err := models.GetOpenShiftForBranch(ctx, tx, input.BranchId)
	if err != nil {
		return nil, nil, failOrderCreate(ctx, tx, idempotencyKey, err)
	}

	kitchen, err := models.GetBranchKitchenWarehouse(ctx, tx, input.BranchId)
	if err != nil {
		return nil, nil, failOrderCreate(ctx, tx, idempotencyKey, err)
	}

	// Price line items from the catalog; client-submitted amounts are never
	// trusted beyond qty and modifiers.
	items := make([]models.OrderItem, 0, len(input.Items))
	deductions := map[int]decimal.Decimal{}
	for _, line := range input.Items {
		var product models.Product
		if err := tx.WithContext(ctx).Preload("BomComponents").First(&product, line.ProductId).Error; err != nil {
			return nil, nil, failOrderCreate(ctx, tx, idempotencyKey, utils.NewValidationError("order item product not found"))
		}
		items = append(items, models.OrderItem{
			ProductId: product.ID,
			Name:      product.Name,
			Qty:       line.Qty,
			UnitPrice: product.SalesPrice,
			LineTotal: product.SalesPrice.Mul(line.Qty),
			Modifiers: line.Modifiers,
			Notes:     line.Notes,
		})

		if len(product.BomComponents) > 0 {
			for _, component := range product.BomComponents {
				deductions[component.ComponentId] = deductions[component.ComponentId].Add(component.Qty.Mul(line.Qty))
			}
		} else if product.TrackInventory != nil && *product.TrackInventory {
			deductions[product.ID] = deductions[product.ID].Add(line.Qty)
		}
	}

	totals := models.ComputeOrderTotals(input.OrderType, items, input.Discount, input.DiscountType, input.DeliveryFee)

	order := models.Order{
		OrderNumber:     nextOrderNumber(ctx),
		BranchId:        input.BranchId,
		ShiftId:         shift.ID,
		OrderType:       input.OrderType,
		Status:          models.OrderStatusPending,
		TableNumber:     input.TableNumber,
		CustomerName:    input.CustomerName,
		CustomerPhone:   input.CustomerPhone,
		DeliveryAddress: input.DeliveryAddress,
		Notes:           input.Notes,
		CreatedById:     userId,
		Items:           items,
	}
	totals.ApplyTo(&order)

	// Deterministic synthetic payment numbers keep a retried insert from
	// duplicating payment rows.
	paidAmount := decimal.Zero
	for i, p := range input.Payments {
		order.Payments = append(order.Payments, models.OrderPayment{
			PaymentNumber: fmt.Sprintf("%s-P%02d", order.OrderNumber, i+1),
			Method:        p.Method,
			Amount:        p.Amount,
		})
		paidAmount = paidAmount.Add(p.Amount)
	}
	order.PaidAmount = paidAmount

	order.StatusHistory = []models.OrderStatusHistory{{
		ToStatus:    models.OrderStatusPending,
		ChangedById: userId,
	}}

	if err := tx.WithContext(ctx).Create(&order).Error; err != nil {
		return nil, nil, failOrderCreate(ctx, tx, idempotencyKey, err)
	}

	posReference := order.OrderNumber + ":pos"
	for componentId, qty := range deductions {
		if err := models.DeductStock(ctx, tx, componentId, kitchen.ID, qty); err != nil {
			return nil, nil, failOrderCreate(ctx, tx, idempotencyKey, err)
		}
		if err := models.AppendMovement(ctx, tx, &models.StockMovement{
			ProductId:       componentId,
			FromWarehouseId: &kitchen.ID,
			Qty:             qty,
			MovementType:    models.MovementTypePos,
			Reason:          "POS deduction",
			ReferenceId:     posReference,
			ActorId:         userId,
		}); err != nil {
			return nil, nil, failOrderCreate(ctx, tx, idempotencyKey, err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, nil, failOrderCreate(ctx, nil, idempotencyKey, err)
	}

	if idempotencyKey != "" {
		responseBody, merr := utils.MarshalToJSON(&order)
		if merr == nil {
			if cerr := CompleteClaim(ctx, idempotencyKey, ScopeOrderCreate, http.StatusCreated, fmt.Sprint(order.ID), responseBody); cerr != nil {
				logger := config.GetLogger()
				config.LogError(logger, "orderWorkflow.go", "CreateOrder", "CompleteClaim", order.ID, cerr)
			}
		}
	}

	PublishBranchEvent(ctx, order.BranchId, "order.created", &order)
	PostPosSaleEntry(ctx, &order)
	if order.IsPaid() {
		ScheduleFiscalSubmission(order.ID)
	}

	return &order, nil, nil
}

// failOrderCreate rolls back and releases the claim so the key can be
// retried; a failed attempt must leave nothing behind.
func failOrderCreate(ctx context.Context, tx *gorm.DB, idempotencyKey string, err error) error {
	if tx != nil {
		tx.Rollback()
	}
	if idempotencyKey != "" {
		if cerr := ClearClaim(ctx, idempotencyKey, ScopeOrderCreate); cerr != nil {
			logger := config.GetLogger()
			config.LogError(logger, "orderWorkflow.go", "failOrderCreate", "ClearClaim", idempotencyKey, cerr)
		}
	}
	return err
}
