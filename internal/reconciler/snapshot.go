package reconciler

import (
	"github.com/liftme/liftme-go/internal/entities"
	"github.com/liftme/liftme-go/internal/geo"
	"github.com/liftme/liftme-go/internal/pricing"
)

// Snapshot is a point-in-time copy of the reconciler state, safe to hold and
// serialize after the call returns.
type Snapshot struct {
	Role   entities.Role `json:"role"`
	Phase  Phase         `json:"phase"`
	Online bool          `json:"online"`

	Order         *entities.Order  `json:"order,omitempty"`
	PendingRating *entities.Order  `json:"pendingRating,omitempty"`
	Available     []entities.Order `json:"available,omitempty"`

	VehicleCode string `json:"vehicleCode"`
	Price       int64  `json:"price"`

	PickupAddress string          `json:"pickupAddress,omitempty"`
	PickupCoord   *geo.Coordinate `json:"pickupCoord,omitempty"`
	Route         *geo.Route      `json:"route,omitempty"`

	SearchRemaining int   `json:"searchRemaining"`
	WorkedSeconds   int   `json:"workedSeconds"`
	LiveEarnings    int64 `json:"liveEarnings"`
}

func (r *Reconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Snapshot{
		Role:            r.cfg.Role,
		Phase:           r.phase,
		Online:          r.online,
		Order:           copyOrder(r.order),
		PendingRating:   copyOrder(r.pendingRating),
		VehicleCode:     r.vehicle.Code,
		Price:           r.price,
		PickupAddress:   r.pickupAddress,
		SearchRemaining: r.searchRemaining,
		WorkedSeconds:   r.workedSeconds,
	}
	if len(r.available) > 0 {
		s.Available = append([]entities.Order(nil), r.available...)
	}
	if r.pickupCoord != nil {
		c := *r.pickupCoord
		s.PickupCoord = &c
	}
	if r.route != nil {
		rt := *r.route
		rt.Points = append([]geo.Coordinate(nil), r.route.Points...)
		s.Route = &rt
	}
	if r.order != nil && r.order.Status == entities.StatusInProgress {
		s.LiveEarnings = pricing.LiveEarnings(r.order.PricePerMinute, r.workedSeconds)
	}
	return s
}
