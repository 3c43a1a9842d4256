// Package queue defines message payloads exchanged over the message broker
// and the background consumer that audits them.
package queue

// RegistrationCapturedEvent is published after a paid registration is
// captured. It contains enough information for downstream consumers
// (notifications, finance exports, audit logs) to act without calling back
// into the backend API.
type RegistrationCapturedEvent struct {
	OrderID       string   `json:"order_id"`
	InstanceID    string   `json:"event_instance_id"`
	EventTitle    string   `json:"event_title"`
	EventStartsAt string   `json:"event_starts_at"`
	Persons       []string `json:"persons"`
	TotalCharged  float64  `json:"total_charged"`
	TotalRefunded float64  `json:"total_refunded"`
	CapturedAt    string   `json:"captured_at"`
}
