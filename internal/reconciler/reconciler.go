package reconciler

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/liftme/liftme-go/internal/entities"
	"github.com/liftme/liftme-go/internal/geo"
	"github.com/liftme/liftme-go/internal/pricing"
	"github.com/liftme/liftme-go/pkg/utils"
)

// OrdersAPI is the slice of the gateway client the reconciler depends on.
type OrdersAPI interface {
	CreateOrder(ctx context.Context, draft entities.OrderDraft) (entities.Order, error)
	MyActiveOrders(ctx context.Context) ([]entities.Order, error)
	DriverAvailableOrders(ctx context.Context) ([]entities.Order, error)
	DriverActiveOrders(ctx context.Context) ([]entities.Order, error)
	DriverAcceptOrder(ctx context.Context, orderID string) (entities.Order, error)
	DriverStartOrder(ctx context.Context, orderID string) (entities.Order, error)
	DriverFinishOrder(ctx context.Context, orderID string) (entities.Order, error)
	LastCompletedUnratedOrder(ctx context.Context) (*entities.Order, error)
	RateOrder(ctx context.Context, orderID string, rating entities.Rating) error
}

type Config struct {
	Role entities.Role

	// PollInterval is the fixed active-order poll period. SearchTimeout is
	// how long the searching countdown runs; its expiry is cosmetic only.
	// TimerTick is the countdown/work-timer resolution, one second in
	// production and shortened in tests.
	PollInterval  time.Duration
	SearchTimeout time.Duration
	TimerTick     time.Duration
}

func (c *Config) withDefaults() {
	if c.Role == "" {
		c.Role = entities.RoleCustomer
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = 3 * time.Minute
	}
	if c.TimerTick <= 0 {
		c.TimerTick = time.Second
	}
}

var ErrAlreadyStarted = errors.New("reconciler already started")

// Reconciler keeps a single local "current order" consistent with server
// state and derives the UI phase from it. It is the only writer of that
// state; frontends read snapshots and invoke action methods.
//
// The server is always authoritative: the most recently received response
// wins, and responses that raced a local clear are discarded by generation
// check.
type Reconciler struct {
	logger   *slog.Logger
	api      OrdersAPI
	cfg      Config
	listener Listener

	mu       sync.Mutex
	gen      uint64
	inFlight bool

	online        bool
	phase         Phase
	order         *entities.Order
	pendingRating *entities.Order
	available     []entities.Order

	vehicle pricing.VehicleClass
	price   int64

	pickupAddress string
	pickupCoord   *geo.Coordinate
	route         *geo.Route

	searchRemaining int
	workedSeconds   int

	countdownCancel context.CancelFunc
	workCancel      context.CancelFunc

	driverVehicle *entities.DriverVehicle
	docsCompleted bool

	runCtx    context.Context
	runCancel context.CancelFunc
}

func New(logger *slog.Logger, api OrdersAPI, cfg Config, listener Listener) *Reconciler {
	cfg.withDefaults()

	phase := PhaseIdle
	if cfg.Role == entities.RoleDriver {
		phase = PhaseOffline
	}

	return &Reconciler{
		logger:          logger.With(slog.String("component", "reconciler"), slog.String("role", string(cfg.Role))),
		api:             api,
		cfg:             cfg,
		listener:        listener,
		phase:           phase,
		vehicle:         pricing.Vehicles[0],
		searchRemaining: int(cfg.SearchTimeout / time.Second),
	}
}

// Start performs the initial load (active order, plus the unrated-order check
// for customers) and launches the poll loop. Initial load failures leave
// prior state untouched; the loop will catch up on its next tick.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.runCtx != nil {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.runCtx, r.runCancel = runCtx, cancel
	r.mu.Unlock()

	load := func() error { return r.LoadActiveOrder(runCtx) }
	if err := utils.Retry(utils.RetryConfig{MaxAttempts: 3, InitialDelay: 500 * time.Millisecond}, load); err != nil {
		r.logger.Warn("initial order load failed", slog.Any("error", err))
	}
	if r.cfg.Role == entities.RoleCustomer {
		r.checkUnrated(runCtx)
	}

	go r.pollLoop(runCtx)
	return nil
}

// Stop cancels the poll loop and every timer.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	cancel := r.runCancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// LoadActiveOrder fetches the role's active orders and reconciles local
// state. An empty result clears the local order; a fetch error changes
// nothing.
func (r *Reconciler) LoadActiveOrder(ctx context.Context) error {
	fetch := r.api.MyActiveOrders
	if r.cfg.Role == entities.RoleDriver {
		fetch = r.api.DriverActiveOrders
	}

	r.mu.Lock()
	gen := r.gen
	r.inFlight = true
	r.mu.Unlock()

	orders, err := fetch(ctx)

	r.mu.Lock()
	r.inFlight = false
	if err != nil {
		r.mu.Unlock()
		pollsTotal.WithLabelValues("error").Inc()
		r.logger.Warn("active order fetch failed", slog.Any("error", err))
		return err
	}
	pollsTotal.WithLabelValues("ok").Inc()
	if r.gen != gen {
		r.mu.Unlock()
		staleDropped.Inc()
		return nil
	}

	var events []Event
	// A driver restored into an active order is implicitly on the line.
	if r.cfg.Role == entities.RoleDriver && len(orders) > 0 {
		r.online = true
	}
	r.applyActiveLocked(orders, &events)
	r.mu.Unlock()

	r.fire(events)
	return nil
}

func (r *Reconciler) checkUnrated(ctx context.Context) {
	order, err := r.api.LastCompletedUnratedOrder(ctx)
	if err != nil {
		r.logger.Warn("unrated order check failed", slog.Any("error", err))
		return
	}
	if order == nil {
		return
	}

	var events []Event
	r.mu.Lock()
	if r.pendingRating == nil {
		o := *order
		r.pendingRating = &o
		events = append(events, Event{Type: EventRatingRequired, Phase: r.phase, Order: copyOrder(&o)})
	}
	r.mu.Unlock()
	r.fire(events)
}

func (r *Reconciler) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

const (
	fetchNone = iota
	fetchActive
	fetchAvailable
)

// tick runs one poll. A tick that fires while the previous fetch is still in
// flight is skipped outright, so polls never overlap and cannot race each
// other; the next tick simply observes newer state.
func (r *Reconciler) tick(ctx context.Context) {
	r.mu.Lock()
	if r.inFlight {
		r.mu.Unlock()
		pollsTotal.WithLabelValues("skipped").Inc()
		return
	}

	mode := fetchNone
	switch {
	case r.order != nil:
		mode = fetchActive
	case r.cfg.Role == entities.RoleDriver && r.online && r.phase == PhaseIdle:
		mode = fetchAvailable
	}
	if mode == fetchNone {
		r.mu.Unlock()
		return
	}

	gen := r.gen
	r.inFlight = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.inFlight = false
		r.mu.Unlock()
	}()

	switch mode {
	case fetchActive:
		fetch := r.api.MyActiveOrders
		if r.cfg.Role == entities.RoleDriver {
			fetch = r.api.DriverActiveOrders
		}
		orders, err := fetch(ctx)
		if err != nil {
			pollsTotal.WithLabelValues("error").Inc()
			r.logger.Warn("poll failed", slog.Any("error", err))
			return
		}
		pollsTotal.WithLabelValues("ok").Inc()

		var events []Event
		r.mu.Lock()
		if r.gen != gen {
			r.mu.Unlock()
			staleDropped.Inc()
			return
		}
		r.applyActiveLocked(orders, &events)
		r.mu.Unlock()
		r.fire(events)

	case fetchAvailable:
		orders, err := r.api.DriverAvailableOrders(ctx)
		if err != nil {
			pollsTotal.WithLabelValues("error").Inc()
			r.logger.Warn("available orders poll failed", slog.Any("error", err))
			return
		}
		pollsTotal.WithLabelValues("ok").Inc()

		var events []Event
		r.mu.Lock()
		if r.gen != gen {
			r.mu.Unlock()
			staleDropped.Inc()
			return
		}
		r.applyAvailableLocked(orders, &events)
		r.mu.Unlock()
		r.fire(events)
	}
}

// applyActiveLocked reconciles the fetched active-order list into local
// state. The server list is the source of truth for existence: empty means
// clear, whatever optimistic state we held.
func (r *Reconciler) applyActiveLocked(orders []entities.Order, events *[]Event) {
	if len(orders) == 0 {
		if r.order == nil {
			return
		}
		// A completed order that fell off the active list still owes a
		// rating; park it so the gate survives the clear.
		if r.cfg.Role == entities.RoleCustomer && r.order.Status == entities.StatusCompleted && r.pendingRating == nil {
			o := *r.order
			r.pendingRating = &o
			*events = append(*events, Event{Type: EventRatingRequired, Phase: r.phase, Order: copyOrder(&o)})
		}
		r.clearLocked(events)
		return
	}

	o := orders[0]
	r.applyOrderLocked(o, events)
}

func (r *Reconciler) applyOrderLocked(o entities.Order, events *[]Event) {
	changed := r.order == nil || !reflect.DeepEqual(*r.order, o)
	r.order = &o

	next := MapStatusToPhase(o.Status, r.cfg.Role)
	// The driver advanced to ARRIVED locally; the server still says ACCEPTED
	// because it has no such state. Do not demote.
	if r.cfg.Role == entities.RoleDriver && r.phase == PhaseArrived && o.Status == entities.StatusAccepted {
		next = PhaseArrived
	}
	r.setPhaseLocked(next, events)

	price := pricing.FromOrder(o, r.vehicleClassFor(o))
	if price != r.price {
		r.price = price
		changed = true
	}

	if changed {
		*events = append(*events, Event{Type: EventOrderUpdated, Phase: r.phase, Order: copyOrder(&o)})
	}
}

func (r *Reconciler) applyAvailableLocked(orders []entities.Order, events *[]Event) {
	if r.driverVehicle != nil && r.driverVehicle.EquipmentTypeID != 0 {
		filtered := orders[:0]
		for _, o := range orders {
			if o.EquipmentTypeID == r.driverVehicle.EquipmentTypeID {
				filtered = append(filtered, o)
			}
		}
		orders = filtered
	}

	if len(orders) == 0 && len(r.available) == 0 {
		return
	}
	if reflect.DeepEqual(r.available, orders) {
		return
	}
	r.available = orders
	*events = append(*events, Event{Type: EventAvailableOrders, Phase: r.phase, Orders: append([]entities.Order(nil), orders...)})
}

// setPhaseLocked is the single place phases change. Timers whose purpose a
// transition makes obsolete are stopped here, and timers the new phase needs
// are started, so they can never leak across phases.
func (r *Reconciler) setPhaseLocked(next Phase, events *[]Event) {
	if next == r.phase {
		return
	}

	prev := r.phase
	r.phase = next
	phaseTransitions.WithLabelValues(string(r.cfg.Role), string(next)).Inc()

	if prev == PhaseSearching {
		r.stopCountdownLocked()
	}
	if prev == PhaseInProgress {
		r.stopWorkTimerLocked()
	}
	if next == PhaseSearching && r.cfg.Role == entities.RoleCustomer {
		r.startCountdownLocked()
	}
	if next == PhaseInProgress && r.cfg.Role == entities.RoleDriver {
		r.startWorkTimerLocked()
	}

	*events = append(*events, Event{Type: EventPhaseChanged, Phase: next, Order: copyOrder(r.order)})
}

// clearLocked drops the current order and every piece of state derived from
// it, bumps the generation so late responses for the old order are rejected,
// and resets the phase to the role's resting phase.
func (r *Reconciler) clearLocked(events *[]Event) {
	r.gen++
	r.order = nil
	r.price = 0
	r.route = nil
	r.pickupAddress = ""
	r.pickupCoord = nil
	r.searchRemaining = int(r.cfg.SearchTimeout / time.Second)
	r.stopCountdownLocked()
	r.stopWorkTimerLocked()
	r.setPhaseLocked(r.restingPhaseLocked(), events)
	*events = append(*events, Event{Type: EventOrderCleared, Phase: r.phase})
}

func (r *Reconciler) restingPhaseLocked() Phase {
	if r.cfg.Role == entities.RoleDriver && !r.online {
		return PhaseOffline
	}
	return PhaseIdle
}

func (r *Reconciler) vehicleClassFor(o entities.Order) pricing.VehicleClass {
	if vc, ok := pricing.VehicleByBackendID(o.EquipmentTypeID); ok {
		return vc
	}
	return r.vehicle
}

func (r *Reconciler) fire(events []Event) {
	if r.listener == nil {
		return
	}
	for _, e := range events {
		r.listener(e)
	}
}

func copyOrder(o *entities.Order) *entities.Order {
	if o == nil {
		return nil
	}
	c := *o
	return &c
}
