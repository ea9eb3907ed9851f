package reconciler

import "github.com/liftme/liftme-go/internal/entities"

type EventType string

const (
	// EventPhaseChanged fires on every UI phase transition.
	EventPhaseChanged EventType = "phase_changed"
	// EventOrderUpdated fires when a poll or action brought fresh order data,
	// even if the phase did not move.
	EventOrderUpdated EventType = "order_updated"
	// EventOrderCleared fires when local order state is dropped (server
	// reports no active order, local cancel, or rating finished).
	EventOrderCleared EventType = "order_cleared"
	// EventSearchTakingLong fires once when the search countdown runs out
	// while the order is still unassigned. It is a UI affordance only: the
	// phase stays SEARCHING and polling continues until the server actually
	// assigns a driver.
	EventSearchTakingLong EventType = "search_taking_long"
	// EventRatingRequired asks the frontend to show the blocking rating
	// prompt. The order cannot be cleared until a rating is accepted.
	EventRatingRequired EventType = "rating_required"
	// EventRatingSubmitted confirms the rating went through and state was
	// reset.
	EventRatingSubmitted EventType = "rating_submitted"
	// EventAvailableOrders carries a fresh list of orders the driver may
	// accept.
	EventAvailableOrders EventType = "available_orders"
)

type Event struct {
	Type   EventType
	Phase  Phase
	Order  *entities.Order
	Orders []entities.Order
}

// Listener receives events after the reconciler has released its lock, so it
// may call back into Snapshot or action methods.
type Listener func(Event)
