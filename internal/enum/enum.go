package enum

// ── Order lifecycle (CHECK constrained in DB) ──

const (
	OrderStatusPending   = "PENDING"
	OrderStatusAccepted  = "ACCEPTED"
	OrderStatusRejected  = "REJECTED"
	OrderStatusCancelled = "CANCELLED"
	OrderStatusInKitchen = "IN_KITCHEN"
	OrderStatusReady     = "READY"
	OrderStatusServed    = "SERVED"
	OrderStatusCompleted = "COMPLETED"
)

const (
	BillStatusClosed = "CLOSED"
)

const (
	ServiceRequestTypeBill   = "BILL"
	ServiceRequestTypeWaiter = "WAITER"
)

const (
	ServiceRequestStatusOpen   = "OPEN"
	ServiceRequestStatusAck    = "ACK"
	ServiceRequestStatusClosed = "CLOSED"
)

// ── Roles ──

const (
	RoleSuperAdmin      = "SUPER_ADMIN"
	RoleRestaurantAdmin = "RESTAURANT_ADMIN"
	RoleStaff           = "STAFF"
)

// ── Subscription labels (no DB constraint) ──

const (
	PlanFree     = "FREE"
	PlanStandard = "STANDARD"
	PlanPremium  = "PREMIUM"
)

const (
	SubscriptionActive    = "ACTIVE"
	SubscriptionSuspended = "SUSPENDED"
)
