// Package domain contains core concepts of the marketplace messaging system.
// This file defines Message entities and their delivery lifecycle.
// Messages are immutable once confirmed; only DeliveryState moves.
package domain

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// DeliveryState tracks a message through its optimistic write lifecycle.
type DeliveryState int

const (
	// DeliveryPending is a tentative message awaiting server confirmation.
	DeliveryPending DeliveryState = iota
	// DeliveryConfirmed is a message acknowledged by the backend or
	// observed through a push event.
	DeliveryConfirmed
	// DeliveryFailed is a tentative message the backend rejected.
	// It stays visible so the sender can see the send did not go through.
	DeliveryFailed
)

func (s DeliveryState) String() string {
	switch s {
	case DeliveryPending:
		return "pending"
	case DeliveryConfirmed:
		return "confirmed"
	case DeliveryFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Message represents one entry of a conversation.
type Message struct {
	ID             uuid.UUID // unique identifier
	ConversationID uuid.UUID
	SenderID       string
	Content        string
	CreatedAt      time.Time
	State          DeliveryState
}

// Before defines the total order of messages within a conversation:
// CreatedAt first, ID as tie-break so rendering stays deterministic
// when two timestamps coincide.
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return bytes.Compare(m.ID[:], other.ID[:]) < 0
}
