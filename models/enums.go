package models

type OrderType string

const (
	OrderTypeDineIn     OrderType = "DINE_IN"
	OrderTypeDelivery   OrderType = "DELIVERY"
	OrderTypePickup     OrderType = "PICKUP"
	OrderTypeCallCenter OrderType = "CALL_CENTER"
)

func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeDineIn, OrderTypeDelivery, OrderTypePickup, OrderTypeCallCenter:
		return true
	}
	return false
}

// HasDeliveryFee reports whether the order type may carry a delivery fee.
func (t OrderType) HasDeliveryFee() bool {
	return t == OrderTypeDelivery || t == OrderTypeCallCenter
}

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "PENDING"
	OrderStatusPreparing      OrderStatus = "PREPARING"
	OrderStatusReady          OrderStatus = "READY"
	OrderStatusOutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	OrderStatusDelivered      OrderStatus = "DELIVERED"
	OrderStatusCompleted      OrderStatus = "COMPLETED"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
)

func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusDelivered, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// orderStatusSuccessors is the allowed-successor set per status. CANCELLED is
// handled separately because it carries its own role/reason policy.
var orderStatusSuccessors = map[OrderStatus][]OrderStatus{
	OrderStatusPending:        {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing:      {OrderStatusReady, OrderStatusCancelled},
	OrderStatusReady:          {OrderStatusOutForDelivery, OrderStatusDelivered, OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusOutForDelivery: {OrderStatusDelivered, OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusDelivered:      {},
	OrderStatusCompleted:      {},
	OrderStatusCancelled:      {},
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderStatusSuccessors[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type UserRole string

const (
	UserRoleOwner   UserRole = "OWNER"
	UserRoleManager UserRole = "MANAGER"
	UserRoleCashier UserRole = "CASHIER"
	UserRoleWaiter  UserRole = "WAITER"
	UserRoleKitchen UserRole = "KITCHEN"
)

// IsSuperAdminTier roles may act across branches.
func (r UserRole) IsSuperAdminTier() bool {
	return r == UserRoleOwner
}

// IsManagerTier roles may cancel orders.
func (r UserRole) IsManagerTier() bool {
	return r == UserRoleOwner || r == UserRoleManager
}

type ShiftStatus string

const (
	ShiftStatusOpen   ShiftStatus = "OPEN"
	ShiftStatusClosed ShiftStatus = "CLOSED"
)

type StockMovementType string

const (
	MovementTypeAdjustment    StockMovementType = "ADJUSTMENT"
	MovementTypeTransfer      StockMovementType = "TRANSFER"
	MovementTypePurchase      StockMovementType = "PURCHASE"
	MovementTypeProductionOut StockMovementType = "PRODUCTION_OUT"
	MovementTypeProductionIn  StockMovementType = "PRODUCTION_IN"
	MovementTypeWaste         StockMovementType = "WASTE"
	MovementTypePos           StockMovementType = "POS"
)

type ProductionOrderStatus string

const (
	ProductionStatusPending    ProductionOrderStatus = "PENDING"
	ProductionStatusInProgress ProductionOrderStatus = "IN_PROGRESS"
	ProductionStatusCompleted  ProductionOrderStatus = "COMPLETED"
	ProductionStatusCancelled  ProductionOrderStatus = "CANCELLED"
)

type PurchaseOrderStatus string

const (
	PurchaseOrderStatusDraft     PurchaseOrderStatus = "DRAFT"
	PurchaseOrderStatusIssued    PurchaseOrderStatus = "ISSUED"
	PurchaseOrderStatusReceived  PurchaseOrderStatus = "RECEIVED"
	PurchaseOrderStatusCancelled PurchaseOrderStatus = "CANCELLED"
)

type WarehouseType string

const (
	WarehouseTypeKitchen WarehouseType = "KITCHEN"
	WarehouseTypeStorage WarehouseType = "STORAGE"
)

type DiscountType string

const (
	DiscountTypePercent DiscountType = "P"
	DiscountTypeFlat    DiscountType = "F"
)

type IdempotencyStatus string

const (
	IdempotencyStatusInProgress IdempotencyStatus = "IN_PROGRESS"
	IdempotencyStatusCompleted  IdempotencyStatus = "COMPLETED"
)
