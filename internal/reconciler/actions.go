package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/liftme/liftme-go/internal/entities"
	"github.com/liftme/liftme-go/internal/geo"
	"github.com/liftme/liftme-go/internal/pricing"
)

var (
	ErrOrderInFlight = errors.New("an order is already in flight")
	ErrNotOnline     = errors.New("driver is not online")
)

// SelectVehicle switches the customer's vehicle class and reprices the
// pre-order estimate. It is a no-op once an order exists; the order's own
// equipment type wins from then on.
func (r *Reconciler) SelectVehicle(code string) {
	var events []Event
	r.mu.Lock()
	r.vehicle = pricing.VehicleByCode(code)
	if r.order == nil {
		r.repriceEstimateLocked(&events)
	}
	r.mu.Unlock()
	r.fire(events)
}

// SetPickup records the pickup point and, optionally, the driving route to a
// destination, then reprices the estimate.
func (r *Reconciler) SetPickup(address string, coord geo.Coordinate, route *geo.Route) {
	var events []Event
	r.mu.Lock()
	r.pickupAddress = address
	c := coord
	r.pickupCoord = &c
	r.route = route
	if r.order == nil {
		r.repriceEstimateLocked(&events)
	}
	r.mu.Unlock()
	r.fire(events)
}

func (r *Reconciler) repriceEstimateLocked(events *[]Event) {
	var km float64
	if r.route != nil {
		km = r.route.DistanceKm
	}
	price := pricing.Estimate(r.vehicle, km)
	if price != r.price {
		r.price = price
		*events = append(*events, Event{Type: EventOrderUpdated, Phase: r.phase})
	}
}

// CreateOrder submits the draft and, on success, adopts the created order as
// the current one. Only one order may be in flight per role.
func (r *Reconciler) CreateOrder(ctx context.Context, draft entities.OrderDraft) (entities.Order, error) {
	r.mu.Lock()
	if r.order != nil || r.pendingRating != nil {
		r.mu.Unlock()
		return entities.Order{}, ErrOrderInFlight
	}
	gen := r.gen
	r.mu.Unlock()

	order, err := r.api.CreateOrder(ctx, draft)
	if err != nil {
		return entities.Order{}, fmt.Errorf("create order: %w", err)
	}

	var events []Event
	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		staleDropped.Inc()
		return order, nil
	}
	r.applyOrderLocked(order, &events)
	r.mu.Unlock()

	r.logger.Info("order created", slog.String("order_id", order.ID))
	r.fire(events)
	return order, nil
}

// CancelOrder drops the order locally. The gateway has no cancel endpoint,
// so the server copy lives on; the generation bump makes sure a poll answer
// for the old order cannot resurrect it here.
func (r *Reconciler) CancelOrder() error {
	var events []Event
	r.mu.Lock()
	if r.order == nil {
		r.mu.Unlock()
		return entities.ErrNoActiveOrder
	}
	id := r.order.ID
	// A completed order still owes a rating; cancelling parks it in the gate
	// instead of letting it vanish unrated.
	if r.cfg.Role == entities.RoleCustomer && r.order.Status == entities.StatusCompleted && r.pendingRating == nil {
		o := *r.order
		r.pendingRating = &o
		events = append(events, Event{Type: EventRatingRequired, Phase: r.phase, Order: copyOrder(&o)})
	}
	r.clearLocked(&events)
	r.mu.Unlock()

	r.logger.Info("order cancelled locally", slog.String("order_id", id))
	r.fire(events)
	return nil
}

// SetDriverProfile installs the driver's vehicle and document status, which
// gate going online and filter the available-orders feed.
func (r *Reconciler) SetDriverProfile(vehicle *entities.DriverVehicle, docsCompleted bool) {
	r.mu.Lock()
	r.driverVehicle = vehicle
	r.docsCompleted = docsCompleted
	r.mu.Unlock()
}

// SetOnline toggles the driver shift. Going online requires a registered
// vehicle and completed documents; going offline drops any local order state
// and the available feed.
func (r *Reconciler) SetOnline(online bool) error {
	var events []Event
	r.mu.Lock()
	if r.cfg.Role != entities.RoleDriver {
		r.mu.Unlock()
		return entities.ErrInvalidStatus
	}
	if online == r.online {
		r.mu.Unlock()
		return nil
	}

	if online {
		if r.driverVehicle == nil {
			r.mu.Unlock()
			return entities.ErrVehicleMissing
		}
		if !r.docsCompleted {
			r.mu.Unlock()
			return entities.ErrDocsMissing
		}
		r.online = true
		if r.order == nil {
			r.setPhaseLocked(PhaseIdle, &events)
		}
	} else {
		r.online = false
		r.available = nil
		if r.order != nil {
			r.clearLocked(&events)
		} else {
			r.setPhaseLocked(PhaseOffline, &events)
		}
	}
	r.mu.Unlock()

	r.logger.Info("driver shift toggled", slog.Bool("online", online))
	r.fire(events)
	return nil
}

// AcceptOrder claims an order from the available feed. The server response
// is authoritative for the accepted order's content.
func (r *Reconciler) AcceptOrder(ctx context.Context, orderID string) (entities.Order, error) {
	r.mu.Lock()
	if r.cfg.Role != entities.RoleDriver || !r.online {
		r.mu.Unlock()
		return entities.Order{}, ErrNotOnline
	}
	if r.order != nil {
		r.mu.Unlock()
		return entities.Order{}, ErrOrderInFlight
	}
	gen := r.gen
	r.mu.Unlock()

	order, err := r.api.DriverAcceptOrder(ctx, orderID)
	if err != nil {
		return entities.Order{}, fmt.Errorf("accept order: %w", err)
	}

	var events []Event
	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		staleDropped.Inc()
		return order, nil
	}
	r.available = nil
	r.applyOrderLocked(order, &events)
	r.mu.Unlock()

	r.logger.Info("order accepted", slog.String("order_id", order.ID))
	r.fire(events)
	return order, nil
}

// MarkArrived is a local-only phase advance. The server has no ARRIVED
// status; the reconciler keeps the phase sticky until work actually starts.
func (r *Reconciler) MarkArrived() error {
	var events []Event
	r.mu.Lock()
	if r.phase != PhaseAccepted {
		r.mu.Unlock()
		return entities.ErrInvalidStatus
	}
	r.setPhaseLocked(PhaseArrived, &events)
	r.mu.Unlock()
	r.fire(events)
	return nil
}

// StartWork transitions the order to IN_PROGRESS on the server and starts
// the local work timer.
func (r *Reconciler) StartWork(ctx context.Context) (entities.Order, error) {
	r.mu.Lock()
	if r.order == nil {
		r.mu.Unlock()
		return entities.Order{}, entities.ErrNoActiveOrder
	}
	if r.phase != PhaseAccepted && r.phase != PhaseArrived {
		r.mu.Unlock()
		return entities.Order{}, entities.ErrInvalidStatus
	}
	id := r.order.ID
	gen := r.gen
	r.mu.Unlock()

	order, err := r.api.DriverStartOrder(ctx, id)
	if err != nil {
		return entities.Order{}, fmt.Errorf("start order: %w", err)
	}

	var events []Event
	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		staleDropped.Inc()
		return order, nil
	}
	r.applyOrderLocked(order, &events)
	r.mu.Unlock()

	r.logger.Info("work started", slog.String("order_id", order.ID))
	r.fire(events)
	return order, nil
}

// FinishWork completes the order on the server. The final TotalPrice in the
// response wins over any live estimate.
func (r *Reconciler) FinishWork(ctx context.Context) (entities.Order, error) {
	r.mu.Lock()
	if r.order == nil {
		r.mu.Unlock()
		return entities.Order{}, entities.ErrNoActiveOrder
	}
	if r.phase != PhaseInProgress {
		r.mu.Unlock()
		return entities.Order{}, entities.ErrInvalidStatus
	}
	id := r.order.ID
	gen := r.gen
	r.mu.Unlock()

	order, err := r.api.DriverFinishOrder(ctx, id)
	if err != nil {
		return entities.Order{}, fmt.Errorf("finish order: %w", err)
	}

	var events []Event
	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		staleDropped.Inc()
		return order, nil
	}
	r.applyOrderLocked(order, &events)
	total := r.price
	r.mu.Unlock()

	r.logger.Info("work finished", slog.String("order_id", order.ID), slog.Int64("total", total))
	r.fire(events)
	return order, nil
}

// AcknowledgeCompleted is the driver's final tap on a completed order: state
// resets and the driver returns to the available feed.
func (r *Reconciler) AcknowledgeCompleted() error {
	var events []Event
	r.mu.Lock()
	if r.order == nil || r.phase != PhaseCompleted {
		r.mu.Unlock()
		return entities.ErrInvalidStatus
	}
	r.clearLocked(&events)
	r.mu.Unlock()
	r.fire(events)
	return nil
}

// RequestPayment acknowledges the completed order on the customer side and
// opens the blocking rating gate. Payment capture itself is out of scope for
// the client; the amount is returned for display.
func (r *Reconciler) RequestPayment() (int64, error) {
	var events []Event
	r.mu.Lock()
	if r.order == nil || r.phase != PhaseCompleted {
		r.mu.Unlock()
		return 0, entities.ErrInvalidStatus
	}
	amount := pricing.FromOrder(*r.order, r.vehicleClassFor(*r.order))
	if r.pendingRating == nil {
		o := *r.order
		r.pendingRating = &o
		events = append(events, Event{Type: EventRatingRequired, Phase: r.phase, Order: copyOrder(&o)})
	}
	r.mu.Unlock()

	r.logger.Info("payment requested", slog.Int64("amount", amount))
	r.fire(events)
	return amount, nil
}

// SubmitRating sends the rating for the pending order and, on acceptance,
// clears all order state. The gate stays shut on any error, including an
// out-of-range score.
func (r *Reconciler) SubmitRating(ctx context.Context, score int, comment *string) error {
	if score < 1 || score > 5 {
		return entities.ErrInvalidRating
	}

	r.mu.Lock()
	pending := r.pendingRating
	r.mu.Unlock()
	if pending == nil {
		return entities.ErrNoActiveOrder
	}

	if err := r.api.RateOrder(ctx, pending.ID, entities.Rating{Score: score, Comment: comment}); err != nil {
		return fmt.Errorf("rate order: %w", err)
	}
	ratingsSubmitted.Inc()

	var events []Event
	r.mu.Lock()
	r.pendingRating = nil
	if r.order != nil && r.order.ID == pending.ID {
		r.clearLocked(&events)
	}
	events = append(events, Event{Type: EventRatingSubmitted, Phase: r.phase, Order: copyOrder(pending)})
	r.mu.Unlock()

	r.logger.Info("rating submitted", slog.String("order_id", pending.ID), slog.Int("score", score))
	r.fire(events)
	return nil
}
