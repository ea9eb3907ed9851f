package api

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/liftme/liftme-go/internal/entities"
)

// CreateOrder submits a customer order. The response is the server's
// confirmation and carries the initial NEW status.
func (c *Client) CreateOrder(ctx context.Context, draft entities.OrderDraft) (entities.Order, error) {
	var order entities.Order
	err := c.do(ctx, http.MethodPost, "/orders", draft, &order)
	return order, err
}

// MyActiveOrders returns the customer's active orders. An empty slice means
// the customer has no order in flight and local state must be cleared.
func (c *Client) MyActiveOrders(ctx context.Context) ([]entities.Order, error) {
	var orders []entities.Order
	err := c.do(ctx, http.MethodGet, "/orders/me/active", nil, &orders)
	return orders, err
}

func (c *Client) DriverAvailableOrders(ctx context.Context) ([]entities.Order, error) {
	var orders []entities.Order
	err := c.do(ctx, http.MethodGet, "/orders/driver/available", nil, &orders)
	return orders, err
}

func (c *Client) DriverActiveOrders(ctx context.Context) ([]entities.Order, error) {
	var orders []entities.Order
	err := c.do(ctx, http.MethodGet, "/orders/driver/active", nil, &orders)
	return orders, err
}

func (c *Client) DriverAcceptOrder(ctx context.Context, orderID string) (entities.Order, error) {
	var order entities.Order
	err := c.do(ctx, http.MethodPost, "/orders/driver/"+url.PathEscape(orderID)+"/accept", nil, &order)
	return order, err
}

func (c *Client) DriverStartOrder(ctx context.Context, orderID string) (entities.Order, error) {
	var order entities.Order
	err := c.do(ctx, http.MethodPost, "/orders/driver/"+url.PathEscape(orderID)+"/start", nil, &order)
	return order, err
}

func (c *Client) DriverFinishOrder(ctx context.Context, orderID string) (entities.Order, error) {
	var order entities.Order
	err := c.do(ctx, http.MethodPost, "/orders/driver/"+url.PathEscape(orderID)+"/finish", nil, &order)
	return order, err
}

// LastCompletedUnratedOrder drives the rating gate at startup. Both an empty
// body and 404 mean there is nothing to rate.
func (c *Client) LastCompletedUnratedOrder(ctx context.Context) (*entities.Order, error) {
	var order entities.Order
	err := c.do(ctx, http.MethodGet, "/orders/customer/last-completed-unrated", nil, &order)
	if IsStatus(err, http.StatusNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if order.ID == "" {
		return nil, nil
	}
	return &order, nil
}

func (c *Client) DriverEarnings(ctx context.Context, from, to time.Time) (entities.EarningsSummary, error) {
	q := url.Values{}
	q.Set("from", from.UTC().Format(time.RFC3339))
	q.Set("to", to.UTC().Format(time.RFC3339))

	var summary entities.EarningsSummary
	err := c.do(ctx, http.MethodGet, "/orders/driver/earnings?"+q.Encode(), nil, &summary)
	return summary, err
}

// DriverEarningsLastDays is the preset used by the earnings screen tabs
// (7, 30 or 90 days).
func (c *Client) DriverEarningsLastDays(ctx context.Context, days int) (entities.EarningsSummary, error) {
	now := time.Now()
	return c.DriverEarnings(ctx, now.AddDate(0, 0, -days), now)
}

func (c *Client) RateOrder(ctx context.Context, orderID string, rating entities.Rating) error {
	return c.do(ctx, http.MethodPost, "/ratings/orders/"+url.PathEscape(orderID), rating, nil)
}

// MyDriverRating returns the driver's aggregate rating with reviews.
func (c *Client) MyDriverRating(ctx context.Context) (entities.RatingSummary, error) {
	var summary entities.RatingSummary
	err := c.do(ctx, http.MethodGet, "/ratings/driver/me", nil, &summary)
	return summary, err
}
