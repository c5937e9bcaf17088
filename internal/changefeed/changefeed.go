// Package changefeed signals committed store writes to live subscribers.
//
// Events carry no document payload: subscribers reload a complete, consistently ordered
// snapshot whenever a topic they watch changes. Delivery is therefore allowed to coalesce;
// a subscriber whose buffer is full already has a pending signal that will trigger a
// reload reflecting the newest state.
package changefeed

import (
	"context"
	"strings"
)

// Event announces a committed change on a topic.
type Event struct {
	Topic string `json:"topic"`
	Kind  string `json:"kind,omitempty"`
	ID    string `json:"id,omitempty"`
}

// Broker fans committed-change events out to topic subscribers.
type Broker interface {
	Publish(ctx context.Context, events ...Event) error
	Subscribe(topics ...string) *Subscription
}

// Change kinds.
const (
	KindCreated = "created"
	KindUpdated = "updated"
)

// RequestTopic carries changes to a single service request document.
func RequestTopic(requestID string) string {
	return "request:" + strings.TrimSpace(requestID)
}

// MessagesTopic carries appends to a request's message log.
func MessagesTopic(requestID string) string {
	return "request:" + strings.TrimSpace(requestID) + ":messages"
}

// CustomerTopic carries changes to any request submitted by the customer.
func CustomerTopic(userID string) string {
	return "customer:" + strings.TrimSpace(userID) + ":requests"
}

// VendorTopic carries changes to any request addressed to the vendor.
func VendorTopic(vendorID string) string {
	return "vendor:" + strings.TrimSpace(vendorID) + ":requests"
}

// InboxTopic carries read-state changes of a viewer.
func InboxTopic(userID string) string {
	return "user:" + strings.TrimSpace(userID) + ":inbox"
}

// NotificationsTopic carries notification changes for a recipient.
func NotificationsTopic(userID string) string {
	return "user:" + strings.TrimSpace(userID) + ":notifications"
}
