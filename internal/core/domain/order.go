package domain

import "time"

// OrderLifecycle is the authoritative status owned by the order store.
type OrderLifecycle string

const (
	LifecycleCreated   OrderLifecycle = "created"
	LifecyclePickedUp  OrderLifecycle = "picked_up"
	LifecycleInTransit OrderLifecycle = "in_transit"
	LifecycleDelivered OrderLifecycle = "delivered"
	LifecycleCancelled OrderLifecycle = "cancelled"
)

// IsPickedUp reports whether the order has left the pickup point.
func (l OrderLifecycle) IsPickedUp() bool {
	return l == LifecyclePickedUp || l == LifecycleInTransit
}

// TimeWindow is a promised delivery window.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// OrderContext is the minimal read-only view of an order the worker needs.
type OrderContext struct {
	OrderID        string
	Lifecycle      OrderLifecycle
	Destination    *Point      // nil when unknown
	PromisedWindow *TimeWindow // nil when not promised
}
