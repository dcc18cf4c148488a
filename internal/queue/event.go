// Package queue defines message payloads exchanged over the message broker.
package queue

// AssignmentCreatedEvent is published after an event is bound to a venue
// slot.  It carries enough context for downstream consumers (notifications,
// analytics) without a trip back to the primary database.  MessageID is a
// UUID assigned at publish time so consumers can deduplicate redeliveries.
type AssignmentCreatedEvent struct {
	MessageID    string `json:"message_id"`
	AssignmentID uint64 `json:"assignment_id"`
	EventID      uint64 `json:"event_id"`
	EventTitle   string `json:"event_title"`
	SlotID       uint64 `json:"slot_id"`
	VenueID      uint64 `json:"venue_id"`
	VenueName    string `json:"venue_name"`
	StartsAt     string `json:"starts_at"`
	EndsAt       string `json:"ends_at"`
	CreatedBy    uint64 `json:"created_by"`
	CreatedAt    string `json:"created_at"`
}
