package devserver

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/liftme/liftme-go/internal/entities"
)

// AutoAssigner pretends to be the driver fleet: any order left NEW for longer
// than the delay gets a synthetic driver. It lets the customer flow be
// exercised end to end without a second account.
type AutoAssigner struct {
	logger   *slog.Logger
	store    *Store
	delay    time.Duration
	interval time.Duration
}

func NewAutoAssigner(logger *slog.Logger, store *Store, delay time.Duration) *AutoAssigner {
	if delay <= 0 {
		delay = 15 * time.Second
	}
	return &AutoAssigner{
		logger:   logger.With(slog.String("component", "auto_assigner")),
		store:    store,
		delay:    delay,
		interval: time.Second,
	}
}

func (a *AutoAssigner) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, order := range a.store.assignStale(a.delay) {
				a.logger.Info("order auto-assigned", slog.String("order_id", order.ID))
			}
		}
	}
}

// assignStale accepts every NEW order older than the given age on behalf of
// a synthetic driver account.
func (s *Store) assignStale(age time.Duration) []entities.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-age)
	var assigned []entities.Order
	for _, id := range s.seq {
		rec := s.orders[id]
		if rec.Status != entities.StatusNew || rec.CreatedAt.After(cutoff) {
			continue
		}
		driver := s.syntheticDriverLocked()
		rec.Status = entities.StatusAccepted
		rec.driverID = driver.ID
		rec.DriverName = driver.FirstName + " " + driver.LastName
		rec.DriverPhone = driver.Phone
		assigned = append(assigned, rec.Order)
	}
	return assigned
}

const syntheticDriverPhone = "+77000000000"

func (s *Store) syntheticDriverLocked() *account {
	if id, ok := s.byPhone[syntheticDriverPhone]; ok {
		return s.users[id]
	}
	acc := &account{
		User: entities.User{
			ID:        uuid.NewString(),
			Phone:     syntheticDriverPhone,
			Role:      entities.RoleDriver,
			FirstName: "Бауыржан",
			LastName:  "Т.",
		},
	}
	s.users[acc.ID] = acc
	s.byPhone[acc.Phone] = acc.ID
	return acc
}
