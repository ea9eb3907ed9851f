package reconciler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/liftme/liftme-go/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	createOrder     func(ctx context.Context, draft entities.OrderDraft) (entities.Order, error)
	myActive        func(ctx context.Context) ([]entities.Order, error)
	driverAvailable func(ctx context.Context) ([]entities.Order, error)
	driverActive    func(ctx context.Context) ([]entities.Order, error)
	accept          func(ctx context.Context, orderID string) (entities.Order, error)
	start           func(ctx context.Context, orderID string) (entities.Order, error)
	finish          func(ctx context.Context, orderID string) (entities.Order, error)
	lastUnrated     func(ctx context.Context) (*entities.Order, error)
	rate            func(ctx context.Context, orderID string, rating entities.Rating) error
}

func (f *fakeAPI) CreateOrder(ctx context.Context, draft entities.OrderDraft) (entities.Order, error) {
	if f.createOrder == nil {
		return entities.Order{}, errors.New("unexpected CreateOrder call")
	}
	return f.createOrder(ctx, draft)
}

func (f *fakeAPI) MyActiveOrders(ctx context.Context) ([]entities.Order, error) {
	if f.myActive == nil {
		return nil, nil
	}
	return f.myActive(ctx)
}

func (f *fakeAPI) DriverAvailableOrders(ctx context.Context) ([]entities.Order, error) {
	if f.driverAvailable == nil {
		return nil, nil
	}
	return f.driverAvailable(ctx)
}

func (f *fakeAPI) DriverActiveOrders(ctx context.Context) ([]entities.Order, error) {
	if f.driverActive == nil {
		return nil, nil
	}
	return f.driverActive(ctx)
}

func (f *fakeAPI) DriverAcceptOrder(ctx context.Context, orderID string) (entities.Order, error) {
	if f.accept == nil {
		return entities.Order{}, errors.New("unexpected DriverAcceptOrder call")
	}
	return f.accept(ctx, orderID)
}

func (f *fakeAPI) DriverStartOrder(ctx context.Context, orderID string) (entities.Order, error) {
	if f.start == nil {
		return entities.Order{}, errors.New("unexpected DriverStartOrder call")
	}
	return f.start(ctx, orderID)
}

func (f *fakeAPI) DriverFinishOrder(ctx context.Context, orderID string) (entities.Order, error) {
	if f.finish == nil {
		return entities.Order{}, errors.New("unexpected DriverFinishOrder call")
	}
	return f.finish(ctx, orderID)
}

func (f *fakeAPI) LastCompletedUnratedOrder(ctx context.Context) (*entities.Order, error) {
	if f.lastUnrated == nil {
		return nil, nil
	}
	return f.lastUnrated(ctx)
}

func (f *fakeAPI) RateOrder(ctx context.Context, orderID string, rating entities.Rating) error {
	if f.rate == nil {
		return errors.New("unexpected RateOrder call")
	}
	return f.rate(ctx, orderID, rating)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) has(t EventType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Type == t {
			return true
		}
	}
	return false
}

func (r *eventRecorder) last(t EventType) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == t {
			return r.events[i], true
		}
	}
	return Event{}, false
}

func newTestReconciler(t *testing.T, role entities.Role, api OrdersAPI) (*Reconciler, *eventRecorder) {
	t.Helper()
	rec := &eventRecorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := New(logger, api, Config{
		Role: role,
		// Long poll interval keeps the loop quiet; tests drive polls by hand.
		PollInterval:  time.Hour,
		SearchTimeout: 3 * time.Second,
		TimerTick:     2 * time.Millisecond,
	}, rec.record)
	return r, rec
}

func newOrder(status entities.Status) entities.Order {
	return entities.Order{
		ID:               "ord-1",
		Status:           status,
		EquipmentTypeID:  1,
		OriginAddress:    "Абая 10",
		OriginLat:        43.238,
		OriginLon:        76.889,
		PricePerMinute:   300,
		EstimatedMinutes: 40,
	}
}

func TestReconciler_LoadActiveOrder(t *testing.T) {
	api := &fakeAPI{
		myActive: func(ctx context.Context) ([]entities.Order, error) {
			return []entities.Order{newOrder(entities.StatusNew)}, nil
		},
	}
	r, rec := newTestReconciler(t, entities.RoleCustomer, api)

	require.NoError(t, r.LoadActiveOrder(context.Background()))

	snap := r.Snapshot()
	assert.Equal(t, PhaseSearching, snap.Phase)
	require.NotNil(t, snap.Order)
	assert.Equal(t, "ord-1", snap.Order.ID)
	assert.EqualValues(t, 300*40, snap.Price)
	assert.True(t, rec.has(EventPhaseChanged))
	assert.True(t, rec.has(EventOrderUpdated))
}

func TestReconciler_LoadActiveOrder_FetchErrorKeepsState(t *testing.T) {
	orders := []entities.Order{newOrder(entities.StatusAccepted)}
	var fail bool
	api := &fakeAPI{
		myActive: func(ctx context.Context) ([]entities.Order, error) {
			if fail {
				return nil, errors.New("gateway down")
			}
			return orders, nil
		},
	}
	r, _ := newTestReconciler(t, entities.RoleCustomer, api)

	require.NoError(t, r.LoadActiveOrder(context.Background()))
	require.Equal(t, PhaseAssigned, r.Snapshot().Phase)

	fail = true
	require.Error(t, r.LoadActiveOrder(context.Background()))

	snap := r.Snapshot()
	assert.Equal(t, PhaseAssigned, snap.Phase)
	require.NotNil(t, snap.Order)
}

func TestReconciler_EmptyListClears(t *testing.T) {
	orders := []entities.Order{newOrder(entities.StatusNew)}
	api := &fakeAPI{
		myActive: func(ctx context.Context) ([]entities.Order, error) {
			return orders, nil
		},
	}
	r, rec := newTestReconciler(t, entities.RoleCustomer, api)

	require.NoError(t, r.LoadActiveOrder(context.Background()))
	require.Equal(t, PhaseSearching, r.Snapshot().Phase)

	orders = nil
	require.NoError(t, r.LoadActiveOrder(context.Background()))

	snap := r.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Nil(t, snap.Order)
	assert.True(t, rec.has(EventOrderCleared))
	// The order never reached COMPLETED, so no rating is owed.
	assert.False(t, rec.has(EventRatingRequired))
}

func TestReconciler_CompletedOrderFallsOff_RatingGate(t *testing.T) {
	orders := []entities.Order{newOrder(entities.StatusCompleted)}
	api := &fakeAPI{
		myActive: func(ctx context.Context) ([]entities.Order, error) {
			return orders, nil
		},
	}
	r, rec := newTestReconciler(t, entities.RoleCustomer, api)

	require.NoError(t, r.LoadActiveOrder(context.Background()))
	orders = nil
	require.NoError(t, r.LoadActiveOrder(context.Background()))

	snap := r.Snapshot()
	assert.Nil(t, snap.Order)
	require.NotNil(t, snap.PendingRating)
	assert.Equal(t, "ord-1", snap.PendingRating.ID)
	assert.True(t, rec.has(EventRatingRequired))
}

func TestReconciler_TickSkippedWhileInFlight(t *testing.T) {
	var calls int
	api := &fakeAPI{
		myActive: func(ctx context.Context) ([]entities.Order, error) {
			calls++
			return []entities.Order{newOrder(entities.StatusNew)}, nil
		},
	}
	r, _ := newTestReconciler(t, entities.RoleCustomer, api)
	require.NoError(t, r.LoadActiveOrder(context.Background()))
	calls = 0

	r.mu.Lock()
	r.inFlight = true
	r.mu.Unlock()

	r.tick(context.Background())
	assert.Zero(t, calls)

	r.mu.Lock()
	r.inFlight = false
	r.mu.Unlock()

	r.tick(context.Background())
	assert.Equal(t, 1, calls)
}

func TestReconciler_StaleResponseDropped(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	first := true
	api := &fakeAPI{
		myActive: func(ctx context.Context) ([]entities.Order, error) {
			if first {
				first = false
				return []entities.Order{newOrder(entities.StatusNew)}, nil
			}
			close(started)
			<-release
			return []entities.Order{newOrder(entities.StatusAccepted)}, nil
		},
	}
	r, _ := newTestReconciler(t, entities.RoleCustomer, api)
	require.NoError(t, r.LoadActiveOrder(context.Background()))

	done := make(chan struct{})
	go func() {
		r.tick(context.Background())
		close(done)
	}()

	<-started
	// The user cancels while the poll response is still in flight.
	require.NoError(t, r.CancelOrder())
	close(release)
	<-done

	snap := r.Snapshot()
	assert.Nil(t, snap.Order, "stale response must not resurrect the order")
	assert.Equal(t, PhaseIdle, snap.Phase)
}

func TestReconciler_DriverArrivedIsSticky(t *testing.T) {
	orders := []entities.Order{newOrder(entities.StatusAccepted)}
	api := &fakeAPI{
		driverActive: func(ctx context.Context) ([]entities.Order, error) {
			return orders, nil
		},
	}
	r, _ := newTestReconciler(t, entities.RoleDriver, api)

	require.NoError(t, r.LoadActiveOrder(context.Background()))
	require.Equal(t, PhaseAccepted, r.Snapshot().Phase)

	require.NoError(t, r.MarkArrived())
	require.Equal(t, PhaseArrived, r.Snapshot().Phase)

	// The server still says ACCEPTED; the local advance must survive.
	require.NoError(t, r.LoadActiveOrder(context.Background()))
	assert.Equal(t, PhaseArrived, r.Snapshot().Phase)

	orders = []entities.Order{newOrder(entities.StatusInProgress)}
	require.NoError(t, r.LoadActiveOrder(context.Background()))
	assert.Equal(t, PhaseInProgress, r.Snapshot().Phase)
}

func TestReconciler_SearchCountdownExpiry(t *testing.T) {
	api := &fakeAPI{
		createOrder: func(ctx context.Context, draft entities.OrderDraft) (entities.Order, error) {
			return newOrder(entities.StatusNew), nil
		},
	}
	r, rec := newTestReconciler(t, entities.RoleCustomer, api)

	require.NoError(t, r.Start(context.Background()))
	t.Cleanup(r.Stop)

	_, err := r.CreateOrder(context.Background(), entities.OrderDraft{EquipmentTypeID: 1, OriginAddress: "Абая 10"})
	require.NoError(t, err)
	require.Equal(t, PhaseSearching, r.Snapshot().Phase)

	require.Eventually(t, func() bool {
		return rec.has(EventSearchTakingLong)
	}, time.Second, 5*time.Millisecond)

	// Expiry is an affordance, not a state change.
	snap := r.Snapshot()
	assert.Equal(t, PhaseSearching, snap.Phase)
	require.NotNil(t, snap.Order)
}

func TestReconciler_WorkTimerAndLiveEarnings(t *testing.T) {
	orders := []entities.Order{newOrder(entities.StatusInProgress)}
	api := &fakeAPI{
		driverActive: func(ctx context.Context) ([]entities.Order, error) {
			return orders, nil
		},
	}
	r, _ := newTestReconciler(t, entities.RoleDriver, api)

	require.NoError(t, r.Start(context.Background()))
	t.Cleanup(r.Stop)

	require.Eventually(t, func() bool {
		return r.Snapshot().WorkedSeconds >= 3
	}, time.Second, 5*time.Millisecond)

	snap := r.Snapshot()
	// 300 per minute: every tracked second is worth 5.
	assert.GreaterOrEqual(t, snap.LiveEarnings, int64(15))

	orders = []entities.Order{newOrder(entities.StatusCompleted)}
	require.NoError(t, r.LoadActiveOrder(context.Background()))

	snap = r.Snapshot()
	assert.Equal(t, PhaseCompleted, snap.Phase)
	assert.Zero(t, snap.WorkedSeconds)
	assert.Zero(t, snap.LiveEarnings)
}

func TestReconciler_SetOnlineGates(t *testing.T) {
	r, _ := newTestReconciler(t, entities.RoleDriver, &fakeAPI{})

	assert.ErrorIs(t, r.SetOnline(true), entities.ErrVehicleMissing)

	r.SetDriverProfile(&entities.DriverVehicle{EquipmentTypeID: 2}, false)
	assert.ErrorIs(t, r.SetOnline(true), entities.ErrDocsMissing)

	r.SetDriverProfile(&entities.DriverVehicle{EquipmentTypeID: 2}, true)
	require.NoError(t, r.SetOnline(true))
	assert.Equal(t, PhaseIdle, r.Snapshot().Phase)

	require.NoError(t, r.SetOnline(false))
	assert.Equal(t, PhaseOffline, r.Snapshot().Phase)
}

func TestReconciler_AvailableOrdersFilteredByVehicle(t *testing.T) {
	crane := newOrder(entities.StatusNew)
	crane.ID = "ord-crane"
	crane.EquipmentTypeID = 2
	tow := newOrder(entities.StatusNew)
	tow.ID = "ord-tow"
	tow.EquipmentTypeID = 1

	api := &fakeAPI{
		driverAvailable: func(ctx context.Context) ([]entities.Order, error) {
			return []entities.Order{crane, tow}, nil
		},
	}
	r, rec := newTestReconciler(t, entities.RoleDriver, api)
	r.SetDriverProfile(&entities.DriverVehicle{EquipmentTypeID: 2}, true)
	require.NoError(t, r.SetOnline(true))

	r.tick(context.Background())

	e, ok := rec.last(EventAvailableOrders)
	require.True(t, ok)
	require.Len(t, e.Orders, 1)
	assert.Equal(t, "ord-crane", e.Orders[0].ID)
}

func TestReconciler_AcceptOrder(t *testing.T) {
	accepted := newOrder(entities.StatusAccepted)
	api := &fakeAPI{
		accept: func(ctx context.Context, orderID string) (entities.Order, error) {
			assert.Equal(t, "ord-1", orderID)
			return accepted, nil
		},
	}
	r, _ := newTestReconciler(t, entities.RoleDriver, api)

	_, err := r.AcceptOrder(context.Background(), "ord-1")
	assert.ErrorIs(t, err, ErrNotOnline)

	r.SetDriverProfile(&entities.DriverVehicle{EquipmentTypeID: 1}, true)
	require.NoError(t, r.SetOnline(true))

	order, err := r.AcceptOrder(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, entities.StatusAccepted, order.Status)
	assert.Equal(t, PhaseAccepted, r.Snapshot().Phase)

	_, err = r.AcceptOrder(context.Background(), "ord-2")
	assert.ErrorIs(t, err, ErrOrderInFlight)
}

func TestReconciler_SubmitRating(t *testing.T) {
	var rated []entities.Rating
	orders := []entities.Order{newOrder(entities.StatusCompleted)}
	api := &fakeAPI{
		myActive: func(ctx context.Context) ([]entities.Order, error) {
			return orders, nil
		},
		rate: func(ctx context.Context, orderID string, rating entities.Rating) error {
			assert.Equal(t, "ord-1", orderID)
			rated = append(rated, rating)
			return nil
		},
	}
	r, rec := newTestReconciler(t, entities.RoleCustomer, api)
	require.NoError(t, r.LoadActiveOrder(context.Background()))

	_, err := r.RequestPayment()
	require.NoError(t, err)
	require.NotNil(t, r.Snapshot().PendingRating)

	assert.ErrorIs(t, r.SubmitRating(context.Background(), 0, nil), entities.ErrInvalidRating)
	assert.ErrorIs(t, r.SubmitRating(context.Background(), 6, nil), entities.ErrInvalidRating)
	assert.Empty(t, rated)

	require.NoError(t, r.SubmitRating(context.Background(), 5, nil))
	require.Len(t, rated, 1)
	assert.Equal(t, 5, rated[0].Score)

	snap := r.Snapshot()
	assert.Nil(t, snap.PendingRating)
	assert.Nil(t, snap.Order)
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.True(t, rec.has(EventRatingSubmitted))

	assert.ErrorIs(t, r.SubmitRating(context.Background(), 5, nil), entities.ErrNoActiveOrder)
}

func TestReconciler_SubmitRatingFailureKeepsGate(t *testing.T) {
	var attempts int
	orders := []entities.Order{newOrder(entities.StatusCompleted)}
	api := &fakeAPI{
		myActive: func(ctx context.Context) ([]entities.Order, error) {
			return orders, nil
		},
		rate: func(ctx context.Context, orderID string, rating entities.Rating) error {
			attempts++
			if attempts == 1 {
				return errors.New("gateway returned 500")
			}
			return nil
		},
	}
	r, rec := newTestReconciler(t, entities.RoleCustomer, api)
	require.NoError(t, r.LoadActiveOrder(context.Background()))

	_, err := r.RequestPayment()
	require.NoError(t, err)

	// The first submission fails server-side; the gate must stay shut and
	// the order must survive untouched.
	require.Error(t, r.SubmitRating(context.Background(), 4, nil))

	snap := r.Snapshot()
	require.NotNil(t, snap.PendingRating)
	assert.Equal(t, "ord-1", snap.PendingRating.ID)
	require.NotNil(t, snap.Order)
	assert.Equal(t, PhaseCompleted, snap.Phase)
	assert.False(t, rec.has(EventRatingSubmitted))

	// The retry goes through and clears everything.
	require.NoError(t, r.SubmitRating(context.Background(), 4, nil))
	assert.Equal(t, 2, attempts)

	snap = r.Snapshot()
	assert.Nil(t, snap.PendingRating)
	assert.Nil(t, snap.Order)
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.True(t, rec.has(EventRatingSubmitted))
}

func TestReconciler_AssignmentCancelsCountdown(t *testing.T) {
	orders := []entities.Order{newOrder(entities.StatusNew)}
	api := &fakeAPI{
		myActive: func(ctx context.Context) ([]entities.Order, error) {
			return orders, nil
		},
	}
	rec := &eventRecorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := New(logger, api, Config{
		Role:         entities.RoleCustomer,
		PollInterval: time.Hour,
		// Long enough that the countdown cannot run out on its own during
		// the test; a timer surviving assignment is caught by SearchRemaining
		// moving again below.
		SearchTimeout: 10 * time.Minute,
		TimerTick:     2 * time.Millisecond,
	}, rec.record)

	require.NoError(t, r.Start(context.Background()))
	t.Cleanup(r.Stop)

	require.Equal(t, PhaseSearching, r.Snapshot().Phase)
	require.Eventually(t, func() bool {
		return r.Snapshot().SearchRemaining < 600
	}, time.Second, 2*time.Millisecond, "countdown must be running")

	assigned := newOrder(entities.StatusAccepted)
	assigned.DriverName = "Бауыржан Т."
	orders = []entities.Order{assigned}
	require.NoError(t, r.LoadActiveOrder(context.Background()))

	snap := r.Snapshot()
	assert.Equal(t, PhaseAssigned, snap.Phase)
	require.NotNil(t, snap.Order)
	assert.Equal(t, "Бауыржан Т.", snap.Order.DriverName)
	assert.Equal(t, 600, snap.SearchRemaining, "countdown resets on leaving SEARCHING")

	assert.Never(t, func() bool {
		return rec.has(EventSearchTakingLong) || r.Snapshot().SearchRemaining != 600
	}, 300*time.Millisecond, 10*time.Millisecond)
}

func TestReconciler_CancelCompletedOrderKeepsRatingGate(t *testing.T) {
	api := &fakeAPI{
		myActive: func(ctx context.Context) ([]entities.Order, error) {
			return []entities.Order{newOrder(entities.StatusCompleted)}, nil
		},
	}
	r, rec := newTestReconciler(t, entities.RoleCustomer, api)
	require.NoError(t, r.LoadActiveOrder(context.Background()))

	require.NoError(t, r.CancelOrder())

	snap := r.Snapshot()
	assert.Nil(t, snap.Order)
	require.NotNil(t, snap.PendingRating, "a completed order must be rated even after cancel")
	assert.Equal(t, "ord-1", snap.PendingRating.ID)
	assert.True(t, rec.has(EventRatingRequired))

	// The parked order still blocks new ones until rated.
	_, err := r.CreateOrder(context.Background(), entities.OrderDraft{EquipmentTypeID: 1, OriginAddress: "Абая 10"})
	assert.ErrorIs(t, err, ErrOrderInFlight)
}

func TestReconciler_RequestPaymentUsesTotalPrice(t *testing.T) {
	order := newOrder(entities.StatusCompleted)
	total := int64(17500)
	order.TotalPrice = &total
	api := &fakeAPI{
		myActive: func(ctx context.Context) ([]entities.Order, error) {
			return []entities.Order{order}, nil
		},
	}
	r, _ := newTestReconciler(t, entities.RoleCustomer, api)
	require.NoError(t, r.LoadActiveOrder(context.Background()))

	amount, err := r.RequestPayment()
	require.NoError(t, err)
	assert.Equal(t, total, amount)
}

func TestReconciler_CreateOrderBlockedWhileInFlight(t *testing.T) {
	api := &fakeAPI{
		createOrder: func(ctx context.Context, draft entities.OrderDraft) (entities.Order, error) {
			return newOrder(entities.StatusNew), nil
		},
	}
	r, _ := newTestReconciler(t, entities.RoleCustomer, api)

	_, err := r.CreateOrder(context.Background(), entities.OrderDraft{EquipmentTypeID: 1, OriginAddress: "Абая 10"})
	require.NoError(t, err)

	_, err = r.CreateOrder(context.Background(), entities.OrderDraft{EquipmentTypeID: 1, OriginAddress: "Абая 10"})
	assert.ErrorIs(t, err, ErrOrderInFlight)
}

func TestReconciler_StartRestoresUnratedOrder(t *testing.T) {
	unrated := newOrder(entities.StatusCompleted)
	api := &fakeAPI{
		lastUnrated: func(ctx context.Context) (*entities.Order, error) {
			return &unrated, nil
		},
	}
	r, rec := newTestReconciler(t, entities.RoleCustomer, api)

	require.NoError(t, r.Start(context.Background()))
	t.Cleanup(r.Stop)

	require.Eventually(t, func() bool {
		return rec.has(EventRatingRequired)
	}, time.Second, 5*time.Millisecond)
	require.NotNil(t, r.Snapshot().PendingRating)
}
