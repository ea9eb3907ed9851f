package reconciler

import (
	"context"
	"log/slog"
	"time"

	"github.com/liftme/liftme-go/internal/entities"
)

// Timers are owned by phase transitions: setPhaseLocked starts them on entry
// and stops them on exit, and each goroutine additionally re-checks the phase
// under lock before every mutation. Either side alone would leave a race
// window; together a tick can never touch state for a phase it no longer
// belongs to.

func (r *Reconciler) startCountdownLocked() {
	if r.countdownCancel != nil || r.runCtx == nil {
		return
	}
	r.searchRemaining = int(r.cfg.SearchTimeout / time.Second)
	ctx, cancel := context.WithCancel(r.runCtx)
	r.countdownCancel = cancel
	go r.runCountdown(ctx)
}

func (r *Reconciler) stopCountdownLocked() {
	if r.countdownCancel == nil {
		return
	}
	r.countdownCancel()
	r.countdownCancel = nil
	r.searchRemaining = int(r.cfg.SearchTimeout / time.Second)
}

func (r *Reconciler) runCountdown(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.TimerTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var events []Event
			r.mu.Lock()
			if r.phase != PhaseSearching {
				r.mu.Unlock()
				return
			}
			if r.searchRemaining > 0 {
				r.searchRemaining--
			}
			if r.searchRemaining > 0 {
				r.mu.Unlock()
				continue
			}

			// Expiry is informational only. The order stays SEARCHING and
			// polling keeps going; only the server can assign a driver.
			r.logger.Info("search countdown expired", slog.String("order_id", orderID(r.order)))
			events = append(events, Event{Type: EventSearchTakingLong, Phase: r.phase, Order: copyOrder(r.order)})
			cancel := r.countdownCancel
			r.countdownCancel = nil
			r.mu.Unlock()

			if cancel != nil {
				cancel()
			}
			r.fire(events)
			return
		}
	}
}

func (r *Reconciler) startWorkTimerLocked() {
	if r.workCancel != nil || r.runCtx == nil {
		return
	}
	r.workedSeconds = 0
	if r.order != nil && r.order.StartedAt != nil {
		// Resume from the server's start time so a restarted client does not
		// reset the driver's earnings display.
		if elapsed := int(time.Since(*r.order.StartedAt) / time.Second); elapsed > 0 {
			r.workedSeconds = elapsed
		}
	}
	ctx, cancel := context.WithCancel(r.runCtx)
	r.workCancel = cancel
	go r.runWorkTimer(ctx)
}

func (r *Reconciler) stopWorkTimerLocked() {
	if r.workCancel == nil {
		return
	}
	r.workCancel()
	r.workCancel = nil
	r.workedSeconds = 0
}

func (r *Reconciler) runWorkTimer(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.TimerTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.mu.Lock()
			if r.phase != PhaseInProgress || r.order == nil || r.order.Status != entities.StatusInProgress {
				r.mu.Unlock()
				return
			}
			r.workedSeconds++
			r.mu.Unlock()
		}
	}
}

func orderID(o *entities.Order) string {
	if o == nil {
		return ""
	}
	return o.ID
}
