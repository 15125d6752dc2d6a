package client

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

// Alert lifecycle actions accepted by AlertAction.
const (
	ActionPause  = "pause"
	ActionResume = "resume"
	ActionReset  = "reset"
	ActionExpire = "expire"
)

// AlertListOptions narrows an alert listing.
type AlertListOptions struct {
	UserID   string
	FilterID string
	Statuses []string
	OrderBy  string
	Limit    int
	Offset   int
}

// AlertList is one page of alerts.
type AlertList struct {
	Alerts []domain.FlightAlert `json:"alerts"`
	Total  int                  `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// AlertHistory holds an alert's transitions and notification deliveries.
type AlertHistory struct {
	Transitions   []domain.TransitionRecord   `json:"transitions"`
	Notifications []domain.NotificationRecord `json:"notifications"`
}

// ListAlerts returns one page of alerts.
func (c *Client) ListAlerts(ctx context.Context, opts AlertListOptions) (*AlertList, error) {
	q := url.Values{}
	if opts.UserID != "" {
		q.Set("user_id", opts.UserID)
	}
	if opts.FilterID != "" {
		q.Set("filter_id", opts.FilterID)
	}
	if len(opts.Statuses) > 0 {
		q.Set("status", strings.Join(opts.Statuses, ","))
	}
	if opts.OrderBy != "" {
		q.Set("order_by", opts.OrderBy)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}

	var out AlertList
	if err := c.get(ctx, "/api/v1/alerts", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAlert returns a single alert.
func (c *Client) GetAlert(ctx context.Context, id string) (*domain.FlightAlert, error) {
	var a domain.FlightAlert
	if err := c.get(ctx, "/api/v1/alerts/"+url.PathEscape(id), nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAlertHistory returns an alert's transitions and notifications.
func (c *Client) GetAlertHistory(ctx context.Context, id string, limit int) (*AlertHistory, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var out AlertHistory
	if err := c.get(ctx, "/api/v1/alerts/"+url.PathEscape(id)+"/history", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AlertAction applies pause, resume, reset or expire to an alert and returns
// the updated alert.
func (c *Client) AlertAction(ctx context.Context, id, action, reason string) (*domain.FlightAlert, error) {
	path := "/api/v1/alerts/" + url.PathEscape(id) + "/" + action
	if reason != "" {
		path += "?" + url.Values{"reason": {reason}}.Encode()
	}

	var a domain.FlightAlert
	if err := c.post(ctx, path, nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
