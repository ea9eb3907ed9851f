package entities

// Role of the authenticated user. The reconciler is parameterized by it.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleDriver   Role = "DRIVER"
)

type User struct {
	ID        string `json:"id"`
	Phone     string `json:"phone"`
	Email     string `json:"email,omitempty"`
	Role      Role   `json:"role"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	AvatarURL string `json:"avatarUrl,omitempty"`

	// DriverDocsCompleted gates going online together with the vehicle
	// profile. Customer accounts always report false.
	DriverDocsCompleted bool `json:"driverDocsCompleted,omitempty"`
}

// EquipmentType is a vehicle class served by GET /equipment-types.
type EquipmentType struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// PerMinuteRate is the answer of GET /pricing/per-minute.
type PerMinuteRate struct {
	EquipmentCode  string `json:"equipmentCode"`
	RegionID       int64  `json:"regionId"`
	PricePerMinute int64  `json:"pricePerMinute"`
}
