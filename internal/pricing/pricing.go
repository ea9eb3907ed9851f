package pricing

import (
	"math"

	"github.com/liftme/liftme-go/internal/entities"
)

// Tariff constants, in tenge. The server owns real pricing; these only feed
// the pre-order estimate shown before the server quotes anything.
const (
	RatePerKm = 120

	// fallbackMinutes matches the default estimate a draft order is created
	// with when the customer gives no duration.
	fallbackMinutes = 30
)

// VehicleClass is a client-side vehicle catalog entry with its base price.
// The catalog mirrors GET /equipment-types and is used as an offline
// fallback.
type VehicleClass struct {
	Code      string
	Name      string
	BasePrice int64
	BackendID int64
}

var Vehicles = []VehicleClass{
	{Code: "tow_truck", Name: "Tow truck", BasePrice: 8000, BackendID: 1},
	{Code: "crane", Name: "Crane manipulator", BasePrice: 9500, BackendID: 2},
	{Code: "heavy", Name: "Heavy hauler", BasePrice: 12000, BackendID: 3},
}

// VehicleByCode falls back to the first class for unknown codes, so a stale
// saved selection never breaks the order form.
func VehicleByCode(code string) VehicleClass {
	for _, v := range Vehicles {
		if v.Code == code {
			return v
		}
	}
	return Vehicles[0]
}

func VehicleByBackendID(id int64) (VehicleClass, bool) {
	for _, v := range Vehicles {
		if v.BackendID == id {
			return v, true
		}
	}
	return VehicleClass{}, false
}

// Estimate is the pre-order price guess: base price plus a per-kilometer
// rate over the driving distance. With no route it is just the base price.
func Estimate(vehicle VehicleClass, distanceKm float64) int64 {
	if distanceKm <= 0 {
		return vehicle.BasePrice
	}
	return int64(math.Round(float64(vehicle.BasePrice) + distanceKm*RatePerKm))
}

// FromOrder derives the displayed price from a server order. A present
// TotalPrice is authoritative and always wins; otherwise the estimate is
// rate times estimated minutes, with coarse fallbacks when the server has
// not quoted a rate yet.
func FromOrder(order entities.Order, vehicle VehicleClass) int64 {
	if order.TotalPrice != nil {
		return *order.TotalPrice
	}

	perMinute := order.PricePerMinute
	if perMinute == 0 {
		perMinute = int64(math.Round(float64(vehicle.BasePrice) / fallbackMinutes))
	}
	minutes := order.EstimatedMinutes
	if minutes == 0 {
		minutes = fallbackMinutes
	}
	return perMinute * int64(minutes)
}

// LiveEarnings projects the driver's running income while work is in
// progress.
func LiveEarnings(perMinute int64, workedSeconds int) int64 {
	if perMinute <= 0 || workedSeconds <= 0 {
		return 0
	}
	return int64(math.Round(float64(workedSeconds) / 60 * float64(perMinute)))
}
