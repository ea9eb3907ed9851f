package entities

import "time"

// DriverVehicle is the driver's equipment profile. A driver cannot go online
// until it is filled in.
type DriverVehicle struct {
	EquipmentTypeID int64  `json:"equipmentTypeId"`
	TypeName        string `json:"typeName,omitempty"`
	Model           string `json:"model,omitempty"`
	PlateNumber     string `json:"plateNumber,omitempty"`
	Color           string `json:"color,omitempty"`
	Year            int    `json:"year,omitempty"`
	PhotoURL        string `json:"photoUrl,omitempty"`
}

type DocumentType string

const (
	DocumentDriverLicense DocumentType = "DRIVER_LICENSE"
	DocumentIDCard        DocumentType = "ID_CARD"
)

type DocumentSide string

const (
	DocumentFront DocumentSide = "FRONT"
	DocumentBack  DocumentSide = "BACK"
)

type DriverDocument struct {
	ID           string       `json:"id"`
	DocumentType DocumentType `json:"documentType"`
	Side         DocumentSide `json:"side"`
	URL          string       `json:"url"`
	Status       string       `json:"status,omitempty"`
	UploadedAt   time.Time    `json:"uploadedAt,omitempty"`
}

// RatingSummary is the driver's aggregate rating with individual reviews.
type RatingSummary struct {
	AverageScore float64       `json:"averageScore"`
	RatingsCount int           `json:"ratingsCount"`
	Ratings      []RatingEntry `json:"ratings,omitempty"`
}

type RatingEntry struct {
	OrderID   string    `json:"orderId"`
	Score     int       `json:"score"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// EarningsSummary aggregates completed orders over a period.
type EarningsSummary struct {
	TotalEarnings int64   `json:"totalEarnings"`
	TotalOrders   int     `json:"totalOrders"`
	Orders        []Order `json:"orders,omitempty"`
}

type ChatMessage struct {
	ID       string    `json:"id"`
	OrderID  string    `json:"orderId"`
	SenderID string    `json:"senderId"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sentAt"`
}

type SupportTicket struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}
