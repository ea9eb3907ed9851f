package devserver

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/liftme/liftme-go/internal/entities"
)

// Store is the in-memory backend behind the development gateway. It mimics
// the production gateway's lifecycle rules closely enough for the client to
// be developed against it: one active order per customer, driver ownership
// checks, and final pricing on completion.
type Store struct {
	mu      sync.Mutex
	users   map[string]*account
	byPhone map[string]string
	orders  map[string]*orderRecord
	seq     []string
	ratings map[string][]entities.RatingEntry
	chat    map[string][]entities.ChatMessage
	tickets map[string][]entities.SupportTicket

	equipment []entities.EquipmentType
	tariffs   map[string]int64
}

type account struct {
	entities.User
	password  string
	vehicle   *entities.DriverVehicle
	documents []entities.DriverDocument
}

type orderRecord struct {
	entities.Order
	customerID string
	driverID   string
	rated      bool
}

func NewStore() *Store {
	return &Store{
		users:   make(map[string]*account),
		byPhone: make(map[string]string),
		orders:  make(map[string]*orderRecord),
		ratings: make(map[string][]entities.RatingEntry),
		chat:    make(map[string][]entities.ChatMessage),
		tickets: make(map[string][]entities.SupportTicket),
		equipment: []entities.EquipmentType{
			{ID: 1, Code: "tow_truck", Name: "Эвакуатор"},
			{ID: 2, Code: "crane", Name: "Кран-манипулятор"},
			{ID: 3, Code: "heavy", Name: "Тяжёлый эвакуатор"},
		},
		tariffs: map[string]int64{
			"tow_truck": 267,
			"crane":     317,
			"heavy":     400,
		},
	}
}

func (s *Store) Register(phone, email, password string, role entities.Role, firstName, lastName string) (entities.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byPhone[phone]; exists {
		return entities.User{}, errPhoneTaken
	}

	acc := &account{
		User: entities.User{
			ID:        uuid.NewString(),
			Phone:     phone,
			Email:     email,
			Role:      role,
			FirstName: firstName,
			LastName:  lastName,
		},
		password: password,
	}
	s.users[acc.ID] = acc
	s.byPhone[phone] = acc.ID
	return acc.User, nil
}

func (s *Store) Login(phone, password string) (entities.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byPhone[phone]
	if !ok {
		return entities.User{}, entities.ErrUnauthorized
	}
	acc := s.users[id]
	if acc.password != password {
		return entities.User{}, entities.ErrUnauthorized
	}
	return acc.User, nil
}

func (s *Store) User(id string) (entities.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.users[id]
	if !ok {
		return entities.User{}, entities.ErrUnauthorized
	}
	return acc.User, nil
}

func (s *Store) UpdateUser(id, firstName, lastName, email string) (entities.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.users[id]
	if !ok {
		return entities.User{}, entities.ErrUnauthorized
	}
	if firstName != "" {
		acc.FirstName = firstName
	}
	if lastName != "" {
		acc.LastName = lastName
	}
	if email != "" {
		acc.Email = email
	}
	return acc.User, nil
}

func (s *Store) SetAvatar(id, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.users[id]
	if !ok {
		return entities.ErrUnauthorized
	}
	acc.AvatarURL = url
	return nil
}

func (s *Store) EquipmentTypes() []entities.EquipmentType {
	return s.equipment
}

func (s *Store) PerMinuteRate(equipmentCode string, regionID int64) (entities.PerMinuteRate, bool) {
	rate, ok := s.tariffs[equipmentCode]
	if !ok {
		return entities.PerMinuteRate{}, false
	}
	return entities.PerMinuteRate{
		EquipmentCode:  equipmentCode,
		RegionID:       regionID,
		PricePerMinute: rate,
	}, true
}

func (s *Store) CreateOrder(customerID string, draft entities.OrderDraft) (entities.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.seq {
		rec := s.orders[id]
		if rec.customerID == customerID && rec.activeForCustomer() {
			return entities.Order{}, errOrderExists
		}
	}

	var equipmentName, equipmentCode string
	for _, e := range s.equipment {
		if e.ID == draft.EquipmentTypeID {
			equipmentName = e.Name
			equipmentCode = e.Code
		}
	}

	minutes := draft.EstimatedMinutes
	if minutes == 0 {
		minutes = 30
	}

	rec := &orderRecord{
		Order: entities.Order{
			ID:                 uuid.NewString(),
			Status:             entities.StatusNew,
			EquipmentTypeID:    draft.EquipmentTypeID,
			EquipmentName:      equipmentName,
			OriginAddress:      draft.OriginAddress,
			OriginLat:          draft.OriginLat,
			OriginLon:          draft.OriginLon,
			DestinationAddress: draft.DestinationAddress,
			DestinationLat:     draft.DestinationLat,
			DestinationLon:     draft.DestinationLon,
			PricePerMinute:     s.tariffs[equipmentCode],
			EstimatedMinutes:   minutes,
			CreatedAt:          time.Now(),
		},
		customerID: customerID,
	}
	s.orders[rec.ID] = rec
	s.seq = append(s.seq, rec.ID)
	return rec.Order, nil
}

func (r *orderRecord) activeForCustomer() bool {
	switch r.Status {
	case entities.StatusNew, entities.StatusAccepted, entities.StatusInProgress:
		return true
	case entities.StatusCompleted:
		return !r.rated
	}
	return false
}

func (s *Store) CustomerActiveOrders(customerID string) []entities.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	var orders []entities.Order
	for _, id := range s.seq {
		rec := s.orders[id]
		if rec.customerID == customerID && rec.activeForCustomer() {
			orders = append(orders, rec.Order)
		}
	}
	return orders
}

func (s *Store) LastCompletedUnrated(customerID string) (entities.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.seq) - 1; i >= 0; i-- {
		rec := s.orders[s.seq[i]]
		if rec.customerID == customerID && rec.Status == entities.StatusCompleted && !rec.rated {
			return rec.Order, true
		}
	}
	return entities.Order{}, false
}

func (s *Store) AvailableOrders() []entities.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	var orders []entities.Order
	for _, id := range s.seq {
		rec := s.orders[id]
		if rec.Status == entities.StatusNew {
			orders = append(orders, rec.Order)
		}
	}
	return orders
}

func (s *Store) DriverActiveOrders(driverID string) []entities.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	var orders []entities.Order
	for _, id := range s.seq {
		rec := s.orders[id]
		if rec.driverID != driverID {
			continue
		}
		if rec.Status == entities.StatusAccepted || rec.Status == entities.StatusInProgress {
			orders = append(orders, rec.Order)
		}
	}
	return orders
}

func (s *Store) AcceptOrder(driverID, orderID string) (entities.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.users[driverID]
	if !ok {
		return entities.Order{}, entities.ErrUnauthorized
	}
	rec, ok := s.orders[orderID]
	if !ok {
		return entities.Order{}, entities.ErrOrderNotFound
	}
	if rec.Status != entities.StatusNew {
		return entities.Order{}, entities.ErrInvalidStatus
	}

	rec.Status = entities.StatusAccepted
	rec.driverID = driverID
	rec.DriverName = acc.FirstName + " " + acc.LastName
	rec.DriverPhone = acc.Phone
	return rec.Order, nil
}

func (s *Store) StartOrder(driverID, orderID string) (entities.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.orders[orderID]
	if !ok {
		return entities.Order{}, entities.ErrOrderNotFound
	}
	if rec.driverID != driverID {
		return entities.Order{}, entities.ErrOrderNotYours
	}
	if rec.Status != entities.StatusAccepted {
		return entities.Order{}, entities.ErrInvalidStatus
	}

	now := time.Now()
	rec.Status = entities.StatusInProgress
	rec.StartedAt = &now
	return rec.Order, nil
}

func (s *Store) FinishOrder(driverID, orderID string) (entities.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.orders[orderID]
	if !ok {
		return entities.Order{}, entities.ErrOrderNotFound
	}
	if rec.driverID != driverID {
		return entities.Order{}, entities.ErrOrderNotYours
	}
	if rec.Status != entities.StatusInProgress {
		return entities.Order{}, entities.ErrInvalidStatus
	}

	now := time.Now()
	rec.Status = entities.StatusCompleted
	rec.CompletedAt = &now

	minutes := 1.0
	if rec.StartedAt != nil {
		if worked := now.Sub(*rec.StartedAt).Minutes(); worked > minutes {
			minutes = worked
		}
	}
	total := int64(math.Round(minutes * float64(rec.PricePerMinute)))
	rec.TotalPrice = &total
	return rec.Order, nil
}

func (s *Store) RateOrder(customerID, orderID string, rating entities.Rating) error {
	if rating.Score < 1 || rating.Score > 5 {
		return entities.ErrInvalidRating
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.orders[orderID]
	if !ok {
		return entities.ErrOrderNotFound
	}
	if rec.customerID != customerID {
		return entities.ErrOrderNotYours
	}
	if rec.Status != entities.StatusCompleted {
		return entities.ErrInvalidStatus
	}
	if rec.rated {
		return errAlreadyRated
	}

	rec.rated = true
	entry := entities.RatingEntry{
		OrderID:   orderID,
		Score:     rating.Score,
		CreatedAt: time.Now(),
	}
	if rating.Comment != nil {
		entry.Comment = *rating.Comment
	}
	s.ratings[rec.driverID] = append(s.ratings[rec.driverID], entry)
	return nil
}

func (s *Store) DriverRating(driverID string) entities.RatingSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.ratings[driverID]
	summary := entities.RatingSummary{RatingsCount: len(entries)}
	if len(entries) == 0 {
		return summary
	}

	var sum int
	for _, e := range entries {
		sum += e.Score
	}
	summary.AverageScore = math.Round(float64(sum)/float64(len(entries))*10) / 10
	summary.Ratings = append([]entities.RatingEntry(nil), entries...)
	sort.Slice(summary.Ratings, func(i, j int) bool {
		return summary.Ratings[i].CreatedAt.After(summary.Ratings[j].CreatedAt)
	})
	return summary
}

func (s *Store) DriverEarnings(driverID string, from, to time.Time) entities.EarningsSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	var summary entities.EarningsSummary
	for _, id := range s.seq {
		rec := s.orders[id]
		if rec.driverID != driverID || rec.Status != entities.StatusCompleted {
			continue
		}
		if rec.CompletedAt == nil || rec.CompletedAt.Before(from) || rec.CompletedAt.After(to) {
			continue
		}
		summary.TotalOrders++
		if rec.TotalPrice != nil {
			summary.TotalEarnings += *rec.TotalPrice
		}
		summary.Orders = append(summary.Orders, rec.Order)
	}
	return summary
}

func (s *Store) DriverVehicle(driverID string) (entities.DriverVehicle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.users[driverID]
	if !ok || acc.vehicle == nil {
		return entities.DriverVehicle{}, false
	}
	return *acc.vehicle, true
}

func (s *Store) SaveDriverVehicle(driverID string, vehicle entities.DriverVehicle) (entities.DriverVehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.users[driverID]
	if !ok {
		return entities.DriverVehicle{}, entities.ErrUnauthorized
	}
	for _, e := range s.equipment {
		if e.ID == vehicle.EquipmentTypeID {
			vehicle.TypeName = e.Name
		}
	}
	acc.vehicle = &vehicle
	return vehicle, nil
}

func (s *Store) DriverDocuments(driverID string) []entities.DriverDocument {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.users[driverID]
	if !ok {
		return nil
	}
	return append([]entities.DriverDocument(nil), acc.documents...)
}

// AddDriverDocument replaces a previous upload of the same type and side and
// flips DriverDocsCompleted once all four document slots are filled.
func (s *Store) AddDriverDocument(driverID string, docType entities.DocumentType, side entities.DocumentSide, url string) (entities.DriverDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.users[driverID]
	if !ok {
		return entities.DriverDocument{}, entities.ErrUnauthorized
	}

	doc := entities.DriverDocument{
		ID:           uuid.NewString(),
		DocumentType: docType,
		Side:         side,
		URL:          url,
		Status:       "PENDING",
		UploadedAt:   time.Now(),
	}

	kept := acc.documents[:0]
	for _, d := range acc.documents {
		if d.DocumentType != docType || d.Side != side {
			kept = append(kept, d)
		}
	}
	acc.documents = append(kept, doc)

	slots := make(map[string]bool)
	for _, d := range acc.documents {
		slots[string(d.DocumentType)+":"+string(d.Side)] = true
	}
	acc.DriverDocsCompleted = len(slots) >= 4
	return doc, nil
}

func (s *Store) ChatMessages(orderID, lastID string) []entities.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := s.chat[orderID]
	if lastID == "" {
		return append([]entities.ChatMessage(nil), messages...)
	}
	for i, m := range messages {
		if m.ID == lastID {
			return append([]entities.ChatMessage(nil), messages[i+1:]...)
		}
	}
	return append([]entities.ChatMessage(nil), messages...)
}

func (s *Store) SendChatMessage(orderID, senderID, text string) (entities.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[orderID]; !ok {
		return entities.ChatMessage{}, entities.ErrOrderNotFound
	}

	msg := entities.ChatMessage{
		ID:       uuid.NewString(),
		OrderID:  orderID,
		SenderID: senderID,
		Text:     text,
		SentAt:   time.Now(),
	}
	s.chat[orderID] = append(s.chat[orderID], msg)
	return msg, nil
}

func (s *Store) CreateSupportTicket(userID, subject, message string) entities.SupportTicket {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket := entities.SupportTicket{
		ID:        uuid.NewString(),
		Subject:   subject,
		Message:   message,
		Status:    "OPEN",
		CreatedAt: time.Now(),
	}
	s.tickets[userID] = append(s.tickets[userID], ticket)
	return ticket
}

func (s *Store) SupportTickets(userID string) []entities.SupportTicket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entities.SupportTicket(nil), s.tickets[userID]...)
}
