// Package devserver is a self-contained stand-in for the LiftMe gateway. It
// serves the same API surface from memory, so the client and its reconciler
// can be exercised end to end without the real backend.
package devserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/liftme/liftme-go/internal/entities"
	"github.com/liftme/liftme-go/pkg/utils"
)

type Handler struct {
	logger   *slog.Logger
	validate *validator.Validate
	store    *Store
	secret   []byte
}

func NewHandler(logger *slog.Logger, store *Store, secret []byte) *Handler {
	return &Handler{
		logger:   logger.With(slog.String("handler", "devserver")),
		validate: validator.New(),
		store:    store,
		secret:   secret,
	}
}

func (h *Handler) Init(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.register)
		r.Post("/auth/login", h.login)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)

			r.Get("/auth/me", h.me)
			r.Put("/auth/me", h.updateProfile)
			r.Post("/files/avatar", h.uploadAvatar)

			r.Get("/equipment-types", h.equipmentTypes)
			r.Get("/pricing/per-minute", h.perMinuteRate)

			r.Group(func(r chi.Router) {
				r.Use(h.requireRole(entities.RoleCustomer))
				r.Post("/orders", h.createOrder)
				r.Get("/orders/me/active", h.customerActiveOrders)
				r.Get("/orders/customer/last-completed-unrated", h.lastUnrated)
				r.Post("/ratings/orders/{order_id}", h.rateOrder)
			})

			r.Group(func(r chi.Router) {
				r.Use(h.requireRole(entities.RoleDriver))
				r.Get("/orders/driver/available", h.availableOrders)
				r.Get("/orders/driver/active", h.driverActiveOrders)
				r.Post("/orders/driver/{order_id}/accept", h.acceptOrder)
				r.Post("/orders/driver/{order_id}/start", h.startOrder)
				r.Post("/orders/driver/{order_id}/finish", h.finishOrder)
				r.Get("/orders/driver/earnings", h.driverEarnings)
				r.Get("/ratings/driver/me", h.driverRating)
				r.Get("/driver/vehicle", h.driverVehicle)
				r.Post("/driver/vehicle", h.saveDriverVehicle)
				r.Get("/driver/documents", h.driverDocuments)
				r.Post("/driver/documents", h.uploadDriverDocument)
			})

			r.Get("/chat/orders/{order_id}", h.chatMessages)
			r.Post("/chat/orders/{order_id}", h.sendChatMessage)
			r.Post("/support", h.createSupportTicket)
			r.Get("/support/my", h.supportTickets)
		})
	})
}

type registerRequest struct {
	Phone     string        `json:"phone" validate:"required"`
	Email     string        `json:"email" validate:"omitempty,email"`
	Password  string        `json:"password" validate:"required,min=6"`
	Role      entities.Role `json:"role" validate:"required,oneof=CUSTOMER DRIVER"`
	FirstName string        `json:"firstName" validate:"required"`
	LastName  string        `json:"lastName" validate:"required"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	user, err := h.store.Register(req.Phone, req.Email, req.Password, req.Role, req.FirstName, req.LastName)
	if errors.Is(err, errPhoneTaken) {
		utils.WriteError(w, "phone already registered", http.StatusConflict)
		return
	}
	if err != nil {
		h.internal(w, r, "register failed", err)
		return
	}

	h.writeToken(w, r, user)
}

type loginRequest struct {
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	user, err := h.store.Login(req.Phone, req.Password)
	if errors.Is(err, entities.ErrUnauthorized) {
		utils.WriteError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if err != nil {
		h.internal(w, r, "login failed", err)
		return
	}

	h.writeToken(w, r, user)
}

func (h *Handler) writeToken(w http.ResponseWriter, r *http.Request, user entities.User) {
	token, err := issueToken(h.secret, user)
	if err != nil {
		h.internal(w, r, "token issue failed", err)
		return
	}
	utils.WriteJSON(w, map[string]string{"token": token}, http.StatusOK)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	user, err := h.store.User(userFrom(r.Context()).ID)
	if err != nil {
		utils.WriteError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	utils.WriteJSON(w, user, http.StatusOK)
}

type profileUpdate struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email" validate:"omitempty,email"`
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileUpdate
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	user, err := h.store.UpdateUser(userFrom(r.Context()).ID, req.FirstName, req.LastName, req.Email)
	if err != nil {
		utils.WriteError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	utils.WriteJSON(w, user, http.StatusOK)
}

// uploadAvatar accepts the file but only records a synthetic URL; the dev
// gateway stores no binaries.
func (h *Handler) uploadAvatar(w http.ResponseWriter, r *http.Request) {
	if _, _, err := r.FormFile("file"); err != nil {
		utils.WriteError(w, "file part is required", http.StatusBadRequest)
		return
	}

	url := "/files/avatar/" + uuid.NewString() + ".png"
	if err := h.store.SetAvatar(userFrom(r.Context()).ID, url); err != nil {
		utils.WriteError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	utils.WriteJSON(w, map[string]string{"url": url}, http.StatusOK)
}

func (h *Handler) equipmentTypes(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, h.store.EquipmentTypes(), http.StatusOK)
}

func (h *Handler) perMinuteRate(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("equipmentCode")
	regionID, _ := strconv.ParseInt(r.URL.Query().Get("regionId"), 10, 64)

	rate, ok := h.store.PerMinuteRate(code, regionID)
	if !ok {
		utils.WriteError(w, "unknown equipment code", http.StatusNotFound)
		return
	}
	utils.WriteJSON(w, rate, http.StatusOK)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var draft entities.OrderDraft
	if err := utils.DecodeBody(r, &draft); err != nil {
		utils.WriteError(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(draft); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	order, err := h.store.CreateOrder(userFrom(r.Context()).ID, draft)
	if errors.Is(err, errOrderExists) {
		utils.WriteError(w, "active order already exists", http.StatusConflict)
		return
	}
	if err != nil {
		h.internal(w, r, "create order failed", err)
		return
	}
	utils.WriteJSON(w, order, http.StatusCreated)
}

func (h *Handler) customerActiveOrders(w http.ResponseWriter, r *http.Request) {
	orders := h.store.CustomerActiveOrders(userFrom(r.Context()).ID)
	utils.WriteJSON(w, emptyIfNil(orders), http.StatusOK)
}

func (h *Handler) lastUnrated(w http.ResponseWriter, r *http.Request) {
	order, ok := h.store.LastCompletedUnrated(userFrom(r.Context()).ID)
	if !ok {
		utils.WriteError(w, "nothing to rate", http.StatusNotFound)
		return
	}
	utils.WriteJSON(w, order, http.StatusOK)
}

func (h *Handler) availableOrders(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, emptyIfNil(h.store.AvailableOrders()), http.StatusOK)
}

func (h *Handler) driverActiveOrders(w http.ResponseWriter, r *http.Request) {
	orders := h.store.DriverActiveOrders(userFrom(r.Context()).ID)
	utils.WriteJSON(w, emptyIfNil(orders), http.StatusOK)
}

func (h *Handler) acceptOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.store.AcceptOrder)
}

func (h *Handler) startOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.store.StartOrder)
}

func (h *Handler) finishOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.store.FinishOrder)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(driverID, orderID string) (entities.Order, error)) {
	orderID := chi.URLParam(r, "order_id")
	order, err := op(userFrom(r.Context()).ID, orderID)

	switch {
	case errors.Is(err, entities.ErrOrderNotFound):
		utils.WriteError(w, "order not found", http.StatusNotFound)
	case errors.Is(err, entities.ErrOrderNotYours):
		utils.WriteError(w, "order belongs to another driver", http.StatusForbidden)
	case errors.Is(err, entities.ErrInvalidStatus):
		utils.WriteError(w, "invalid order status", http.StatusConflict)
	case err != nil:
		h.internal(w, r, "order transition failed", err)
	default:
		utils.WriteJSON(w, order, http.StatusOK)
	}
}

func (h *Handler) driverEarnings(w http.ResponseWriter, r *http.Request) {
	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		utils.WriteError(w, "invalid from", http.StatusBadRequest)
		return
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		utils.WriteError(w, "invalid to", http.StatusBadRequest)
		return
	}

	utils.WriteJSON(w, h.store.DriverEarnings(userFrom(r.Context()).ID, from, to), http.StatusOK)
}

func (h *Handler) rateOrder(w http.ResponseWriter, r *http.Request) {
	var rating entities.Rating
	if err := utils.DecodeBody(r, &rating); err != nil {
		utils.WriteError(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(rating); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	err := h.store.RateOrder(userFrom(r.Context()).ID, chi.URLParam(r, "order_id"), rating)
	switch {
	case errors.Is(err, entities.ErrOrderNotFound):
		utils.WriteError(w, "order not found", http.StatusNotFound)
	case errors.Is(err, entities.ErrOrderNotYours):
		utils.WriteError(w, "not your order", http.StatusForbidden)
	case errors.Is(err, entities.ErrInvalidStatus):
		utils.WriteError(w, "order is not completed", http.StatusConflict)
	case errors.Is(err, errAlreadyRated):
		utils.WriteError(w, "already rated", http.StatusConflict)
	case errors.Is(err, entities.ErrInvalidRating):
		utils.WriteError(w, "score must be between 1 and 5", http.StatusBadRequest)
	case err != nil:
		h.internal(w, r, "rate order failed", err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) driverRating(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, h.store.DriverRating(userFrom(r.Context()).ID), http.StatusOK)
}

func (h *Handler) driverVehicle(w http.ResponseWriter, r *http.Request) {
	vehicle, ok := h.store.DriverVehicle(userFrom(r.Context()).ID)
	if !ok {
		utils.WriteError(w, "vehicle not registered", http.StatusNotFound)
		return
	}
	utils.WriteJSON(w, vehicle, http.StatusOK)
}

// saveDriverVehicle takes either plain JSON or multipart with an optional
// photo part, matching how the client sends it.
func (h *Handler) saveDriverVehicle(w http.ResponseWriter, r *http.Request) {
	var vehicle entities.DriverVehicle

	if isMultipart(r) {
		if err := r.ParseMultipartForm(8 << 20); err != nil {
			utils.WriteError(w, "invalid multipart body", http.StatusBadRequest)
			return
		}
		vehicle.EquipmentTypeID, _ = strconv.ParseInt(r.FormValue("equipmentTypeId"), 10, 64)
		vehicle.Model = r.FormValue("model")
		vehicle.PlateNumber = r.FormValue("plateNumber")
		vehicle.Color = r.FormValue("color")
		vehicle.Year, _ = strconv.Atoi(r.FormValue("year"))
		if _, _, err := r.FormFile("photo"); err == nil {
			vehicle.PhotoURL = "/files/vehicle/" + uuid.NewString() + ".png"
		}
	} else if err := utils.DecodeBody(r, &vehicle); err != nil {
		utils.WriteError(w, "invalid body", http.StatusBadRequest)
		return
	}

	if vehicle.EquipmentTypeID <= 0 {
		utils.WriteError(w, "equipmentTypeId is required", http.StatusBadRequest)
		return
	}

	saved, err := h.store.SaveDriverVehicle(userFrom(r.Context()).ID, vehicle)
	if err != nil {
		utils.WriteError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	utils.WriteJSON(w, saved, http.StatusOK)
}

func (h *Handler) driverDocuments(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, emptyIfNilDocs(h.store.DriverDocuments(userFrom(r.Context()).ID)), http.StatusOK)
}

func (h *Handler) uploadDriverDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		utils.WriteError(w, "invalid multipart body", http.StatusBadRequest)
		return
	}

	docType := entities.DocumentType(r.FormValue("documentType"))
	side := entities.DocumentSide(r.FormValue("side"))
	if docType != entities.DocumentDriverLicense && docType != entities.DocumentIDCard {
		utils.WriteError(w, "unknown document type", http.StatusBadRequest)
		return
	}
	if side != entities.DocumentFront && side != entities.DocumentBack {
		utils.WriteError(w, "unknown document side", http.StatusBadRequest)
		return
	}
	if _, _, err := r.FormFile("file"); err != nil {
		utils.WriteError(w, "file part is required", http.StatusBadRequest)
		return
	}

	url := "/files/documents/" + uuid.NewString() + ".png"
	doc, err := h.store.AddDriverDocument(userFrom(r.Context()).ID, docType, side, url)
	if err != nil {
		utils.WriteError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	utils.WriteJSON(w, doc, http.StatusCreated)
}

func (h *Handler) chatMessages(w http.ResponseWriter, r *http.Request) {
	messages := h.store.ChatMessages(chi.URLParam(r, "order_id"), r.URL.Query().Get("lastId"))
	utils.WriteJSON(w, emptyIfNilChat(messages), http.StatusOK)
}

type chatRequest struct {
	Text string `json:"text" validate:"required"`
}

func (h *Handler) sendChatMessage(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	msg, err := h.store.SendChatMessage(chi.URLParam(r, "order_id"), userFrom(r.Context()).ID, req.Text)
	if errors.Is(err, entities.ErrOrderNotFound) {
		utils.WriteError(w, "order not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.internal(w, r, "send message failed", err)
		return
	}
	utils.WriteJSON(w, msg, http.StatusCreated)
}

type supportRequest struct {
	Subject string `json:"subject" validate:"required"`
	Message string `json:"message" validate:"required"`
}

func (h *Handler) createSupportTicket(w http.ResponseWriter, r *http.Request) {
	var req supportRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	ticket := h.store.CreateSupportTicket(userFrom(r.Context()).ID, req.Subject, req.Message)
	utils.WriteJSON(w, ticket, http.StatusCreated)
}

func (h *Handler) supportTickets(w http.ResponseWriter, r *http.Request) {
	tickets := h.store.SupportTickets(userFrom(r.Context()).ID)
	utils.WriteJSON(w, tickets, http.StatusOK)
}

func (h *Handler) internal(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.ErrorContext(r.Context(), msg, slog.Any("error", err))
	utils.WriteError(w, "internal server error", http.StatusInternalServerError)
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// The client treats null and [] the same, but real gateways send [].
func emptyIfNil(orders []entities.Order) []entities.Order {
	if orders == nil {
		return []entities.Order{}
	}
	return orders
}

func emptyIfNilDocs(docs []entities.DriverDocument) []entities.DriverDocument {
	if docs == nil {
		return []entities.DriverDocument{}
	}
	return docs
}

func emptyIfNilChat(messages []entities.ChatMessage) []entities.ChatMessage {
	if messages == nil {
		return []entities.ChatMessage{}
	}
	return messages
}
