package entities

import (
	"errors"
	"time"
)

// Status is the order status vocabulary owned by the server. The client only
// observes it; unknown values are kept as-is and mapped to a safe phase by the
// reconciler.
type Status string

const (
	StatusNew        Status = "NEW"
	StatusAccepted   Status = "ACCEPTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// Known reports whether the status is part of the documented vocabulary.
func (s Status) Known() bool {
	switch s {
	case StatusNew, StatusAccepted, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Order is the server-owned order as observed by the client. Fields that are
// absent until a certain lifecycle point are pointers, so "not reported yet"
// is distinguishable from a zero value.
type Order struct {
	ID     string `json:"id"`
	Status Status `json:"status"`

	EquipmentTypeID int64  `json:"equipmentTypeId"`
	EquipmentName   string `json:"equipmentName,omitempty"`

	OriginAddress string  `json:"originAddress"`
	OriginLat     float64 `json:"originLat"`
	OriginLon     float64 `json:"originLon"`

	DestinationAddress *string  `json:"destinationAddress,omitempty"`
	DestinationLat     *float64 `json:"destinationLat,omitempty"`
	DestinationLon     *float64 `json:"destinationLon,omitempty"`

	// TotalPrice is authoritative once present (post-completion). Until then
	// the client derives an estimate from PricePerMinute.
	PricePerMinute   int64  `json:"pricePerMinute,omitempty"`
	EstimatedMinutes int    `json:"estimatedMinutes,omitempty"`
	TotalPrice       *int64 `json:"totalPrice,omitempty"`

	DriverName  string `json:"driverName,omitempty"`
	DriverPhone string `json:"driverPhone,omitempty"`

	CreatedAt   time.Time  `json:"createdAt,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// OrderDraft is what the customer submits to create an order.
type OrderDraft struct {
	EquipmentTypeID    int64    `json:"equipmentTypeId" validate:"required,gt=0"`
	OriginAddress      string   `json:"originAddress" validate:"required"`
	OriginLat          float64  `json:"originLat" validate:"latitude"`
	OriginLon          float64  `json:"originLon" validate:"longitude"`
	DestinationAddress *string  `json:"destinationAddress"`
	DestinationLat     *float64 `json:"destinationLat"`
	DestinationLon     *float64 `json:"destinationLon"`
	EstimatedMinutes   int      `json:"estimatedMinutes" validate:"gte=0"`
}

// Rating is the payload of POST /ratings/orders/{id}.
type Rating struct {
	Score   int     `json:"score" validate:"required,min=1,max=5"`
	Comment *string `json:"comment,omitempty"`
}

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrNoActiveOrder  = errors.New("no active order")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRating  = errors.New("rating score must be between 1 and 5")
	ErrOrderNotYours  = errors.New("order belongs to another driver")
	ErrInvalidStatus  = errors.New("order status does not allow this action")
	ErrVehicleMissing = errors.New("driver vehicle profile is not filled in")
	ErrDocsMissing    = errors.New("driver documents are not uploaded")
)
