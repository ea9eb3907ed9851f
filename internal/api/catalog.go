package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/liftme/liftme-go/internal/entities"
)

func (c *Client) EquipmentTypes(ctx context.Context) ([]entities.EquipmentType, error) {
	var types []entities.EquipmentType
	err := c.do(ctx, http.MethodGet, "/equipment-types", nil, &types)
	return types, err
}

type PerMinuteQuery struct {
	EquipmentCode string
	RegionID      int64
	Lat, Lon      *float64
}

func (c *Client) PerMinuteRate(ctx context.Context, query PerMinuteQuery) (entities.PerMinuteRate, error) {
	q := url.Values{}
	q.Set("equipmentCode", query.EquipmentCode)
	q.Set("regionId", strconv.FormatInt(query.RegionID, 10))
	if query.Lat != nil {
		q.Set("lat", strconv.FormatFloat(*query.Lat, 'f', -1, 64))
	}
	if query.Lon != nil {
		q.Set("lon", strconv.FormatFloat(*query.Lon, 'f', -1, 64))
	}

	var rate entities.PerMinuteRate
	err := c.do(ctx, http.MethodGet, "/pricing/per-minute?"+q.Encode(), nil, &rate)
	return rate, err
}

// ChatMessages returns messages for an order, optionally only those after
// lastID for incremental fetches.
func (c *Client) ChatMessages(ctx context.Context, orderID, lastID string) ([]entities.ChatMessage, error) {
	path := "/chat/orders/" + url.PathEscape(orderID)
	if lastID != "" {
		path += "?lastId=" + url.QueryEscape(lastID)
	}
	var messages []entities.ChatMessage
	err := c.do(ctx, http.MethodGet, path, nil, &messages)
	return messages, err
}

func (c *Client) SendChatMessage(ctx context.Context, orderID, text string) (entities.ChatMessage, error) {
	body := struct {
		Text string `json:"text"`
	}{Text: text}

	var message entities.ChatMessage
	err := c.do(ctx, http.MethodPost, "/chat/orders/"+url.PathEscape(orderID), body, &message)
	return message, err
}

func (c *Client) CreateSupportTicket(ctx context.Context, subject, message string) (entities.SupportTicket, error) {
	body := struct {
		Subject string `json:"subject"`
		Message string `json:"message"`
	}{Subject: subject, Message: message}

	var ticket entities.SupportTicket
	err := c.do(ctx, http.MethodPost, "/support", body, &ticket)
	return ticket, err
}

func (c *Client) MySupportTickets(ctx context.Context) ([]entities.SupportTicket, error) {
	var tickets []entities.SupportTicket
	err := c.do(ctx, http.MethodGet, "/support/my", nil, &tickets)
	return tickets, err
}
