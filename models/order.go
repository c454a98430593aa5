package models

import (
	"context"
	"strings"
	"time"

	"github.com/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
)

var (
	// StandardTaxRate is the VAT rate applied to the net amount of every order.
	StandardTaxRate = decimal.NewFromInt(14)
	// DineInServiceChargeRate applies to DINE_IN orders only.
	DineInServiceChargeRate = decimal.NewFromInt(12)
)

// Order monetary fields are always recomputed server-side from line items;
// client-submitted totals are discarded.
type Order struct {
	ID                  int                  `gorm:"primary_key" json:"id"`
	OrderNumber         string               `gorm:"size:100;not null;uniqueIndex" json:"order_number"`
	BranchId            int                  `gorm:"not null;index" json:"branch_id"`
	ShiftId             int                  `gorm:"not null;index" json:"shift_id"`
	OrderType           OrderType            `gorm:"size:20;not null" json:"order_type"`
	Status              OrderStatus          `gorm:"size:20;not null;index" json:"status"`
	TableNumber         string               `gorm:"size:20" json:"table_number"`
	CustomerName        string               `gorm:"size:100" json:"customer_name"`
	CustomerPhone       string               `gorm:"size:20" json:"customer_phone"`
	DeliveryAddress     string               `gorm:"type:text" json:"delivery_address"`
	SubTotal            decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"sub_total"`
	DiscountAmount      decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"discount_amount"`
	TaxAmount           decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"tax_amount"`
	ServiceChargeAmount decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"service_charge_amount"`
	DeliveryFee         decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"delivery_fee"`
	TotalAmount         decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	PaidAmount          decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"paid_amount"`
	Notes               string               `gorm:"type:text" json:"notes"`
	CancellationReason  string               `gorm:"type:text" json:"cancellation_reason"`
	CreatedById         int                  `json:"created_by_id"`
	Items               []OrderItem          `gorm:"foreignKey:OrderId;constraint:OnDelete:CASCADE" json:"items"`
	Payments            []OrderPayment       `gorm:"foreignKey:OrderId;constraint:OnDelete:CASCADE" json:"payments"`
	StatusHistory       []OrderStatusHistory `gorm:"foreignKey:OrderId;constraint:OnDelete:CASCADE" json:"status_history"`
	CreatedAt           time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

type OrderItem struct {
	ID        int             `gorm:"primary_key" json:"id"`
	OrderId   int             `gorm:"not null;index" json:"order_id"`
	ProductId int             `gorm:"not null;index" json:"product_id"`
	Name      string          `gorm:"size:100;not null" json:"name"`
	Qty       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	LineTotal decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"line_total"`
	Modifiers string          `gorm:"type:text" json:"modifiers"`
	Notes     string          `gorm:"size:255" json:"notes"`
}

// OrderPayment rows carry a deterministic synthetic payment number
// (<orderNumber>-P<n>) so a retried creation cannot double-insert them.
type OrderPayment struct {
	ID            int             `gorm:"primary_key" json:"id"`
	OrderId       int             `gorm:"not null;index" json:"order_id"`
	PaymentNumber string          `gorm:"size:120;not null;uniqueIndex" json:"payment_number"`
	Method        string          `gorm:"size:30;not null" json:"method"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// OrderStatusHistory is append-only: one row per transition.
type OrderStatusHistory struct {
	ID          int         `gorm:"primary_key" json:"id"`
	OrderId     int         `gorm:"not null;index" json:"order_id"`
	FromStatus  OrderStatus `gorm:"size:20" json:"from_status"`
	ToStatus    OrderStatus `gorm:"size:20;not null" json:"to_status"`
	ChangedById int         `json:"changed_by_id"`
	Notes       string      `gorm:"type:text" json:"notes"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
}

type NewOrder struct {
	BranchId        int               `json:"branch_id" binding:"required"`
	OrderType       OrderType         `json:"order_type" binding:"required"`
	TableNumber     string            `json:"table_number"`
	CustomerName    string            `json:"customer_name"`
	CustomerPhone   string            `json:"customer_phone"`
	DeliveryAddress string            `json:"delivery_address"`
	Discount        decimal.Decimal   `json:"discount"`
	DiscountType    DiscountType      `json:"discount_type"`
	DeliveryFee     decimal.Decimal   `json:"delivery_fee"`
	Notes           string            `json:"notes"`
	Items           []NewOrderItem    `json:"items" binding:"required,min=1,dive"`
	Payments        []NewOrderPayment `json:"payments"`
}

type NewOrderItem struct {
	ProductId int             `json:"product_id" binding:"required"`
	Qty       decimal.Decimal `json:"qty" binding:"required"`
	Modifiers string          `json:"modifiers"`
	Notes     string          `json:"notes"`
}

type NewOrderPayment struct {
	Method string          `json:"method" binding:"required"`
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// Validate rejects malformed input before any side effect.
func (input *NewOrder) Validate(ctx context.Context) error {
	if !input.OrderType.Valid() {
		return utils.NewValidationError("invalid order type")
	}
	if err := utils.ValidateResourceId[Branch](ctx, input.BranchId); err != nil {
		return utils.NewValidationError("branch not found")
	}
	if input.OrderType == OrderTypeDineIn && strings.TrimSpace(input.TableNumber) == "" {
		return utils.NewValidationError("table number is required for dine-in orders")
	}
	if input.OrderType == OrderTypeDelivery {
		if strings.TrimSpace(input.DeliveryAddress) == "" {
			return utils.NewValidationError("delivery address is required for delivery orders")
		}
		if strings.TrimSpace(input.CustomerPhone) == "" {
			return utils.NewValidationError("customer phone is required for delivery orders")
		}
		if err := utils.ValidatePhoneNumber(input.CustomerPhone, utils.CountryCode); err != nil {
			return utils.NewValidationError("customer phone is not valid")
		}
	}
	if input.Discount.IsNegative() || input.DeliveryFee.IsNegative() {
		return utils.NewValidationError("discount and delivery fee cannot be negative")
	}
	for _, item := range input.Items {
		if item.Qty.LessThanOrEqual(decimal.Zero) {
			return utils.NewValidationError("item qty must be positive")
		}
	}
	for _, p := range input.Payments {
		if p.Amount.LessThanOrEqual(decimal.Zero) {
			return utils.NewValidationError("payment amount must be positive")
		}
	}
	return nil
}

type OrderTotals struct {
	SubTotal            decimal.Decimal
	DiscountAmount      decimal.Decimal
	TaxAmount           decimal.Decimal
	ServiceChargeAmount decimal.Decimal
	DeliveryFee         decimal.Decimal
	TotalAmount         decimal.Decimal
}

// ComputeOrderTotals derives all money fields from priced line items.
// total = (subtotal - discount) + tax + serviceCharge + deliveryFee, with tax
// at the standard rate of the net amount and the service charge applied to
// DINE_IN orders only.
func ComputeOrderTotals(orderType OrderType, items []OrderItem, discount decimal.Decimal, discountType DiscountType, deliveryFee decimal.Decimal) OrderTotals {
	subTotal := decimal.Zero
	for _, item := range items {
		subTotal = subTotal.Add(item.LineTotal)
	}

	discountAmount := utils.CalculateDiscountAmount(subTotal, discount, string(discountType))
	if discountAmount.GreaterThan(subTotal) {
		discountAmount = subTotal
	}
	net := subTotal.Sub(discountAmount)

	taxAmount := utils.CalculateRateAmount(net, StandardTaxRate)

	serviceCharge := decimal.Zero
	if orderType == OrderTypeDineIn {
		serviceCharge = utils.CalculateRateAmount(net, DineInServiceChargeRate)
	}

	fee := decimal.Zero
	if orderType.HasDeliveryFee() {
		fee = deliveryFee
	}

	return OrderTotals{
		SubTotal:            subTotal,
		DiscountAmount:      discountAmount,
		TaxAmount:           taxAmount,
		ServiceChargeAmount: serviceCharge,
		DeliveryFee:         fee,
		TotalAmount:         net.Add(taxAmount).Add(serviceCharge).Add(fee),
	}
}

// RederiveTotalsWithRates re-prices an order after a table split/merge by
// holding the original order's discount/tax/service *rates* constant and
// applying them to the new subtotal. This is a proportional allocation, not
// a policy recomputation.
func RederiveTotalsWithRates(original *Order, items []OrderItem) OrderTotals {
	subTotal := decimal.Zero
	for _, item := range items {
		subTotal = subTotal.Add(item.LineTotal)
	}

	discountAmount := decimal.Zero
	if original.SubTotal.IsPositive() && original.DiscountAmount.IsPositive() {
		discountAmount = subTotal.Mul(original.DiscountAmount).DivRound(original.SubTotal, 4)
	}
	net := subTotal.Sub(discountAmount)

	originalNet := original.SubTotal.Sub(original.DiscountAmount)
	taxAmount := decimal.Zero
	serviceCharge := decimal.Zero
	if originalNet.IsPositive() {
		taxAmount = net.Mul(original.TaxAmount).DivRound(originalNet, 4)
		serviceCharge = net.Mul(original.ServiceChargeAmount).DivRound(originalNet, 4)
	}

	return OrderTotals{
		SubTotal:            subTotal,
		DiscountAmount:      discountAmount,
		TaxAmount:           taxAmount,
		ServiceChargeAmount: serviceCharge,
		DeliveryFee:         original.DeliveryFee,
		TotalAmount:         net.Add(taxAmount).Add(serviceCharge).Add(original.DeliveryFee),
	}
}

func (t OrderTotals) ApplyTo(order *Order) {
	order.SubTotal = t.SubTotal
	order.DiscountAmount = t.DiscountAmount
	order.TaxAmount = t.TaxAmount
	order.ServiceChargeAmount = t.ServiceChargeAmount
	order.DeliveryFee = t.DeliveryFee
	order.TotalAmount = t.TotalAmount
}

func GetOrder(ctx context.Context, id int) (*Order, error) {
	return utils.FetchSingleModel[Order](ctx, id, "Items", "Payments", "StatusHistory")
}

// IsPaid reports whether recorded payments fully cover the order total.
func (o *Order) IsPaid() bool {
	return o.TotalAmount.IsPositive() && o.PaidAmount.GreaterThanOrEqual(o.TotalAmount)
}
