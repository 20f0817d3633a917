// Package event defines the push notifications the backend emits
// and the merger consumes.
package event

import (
	"market-chat/domain"

	"github.com/google/uuid"
)

// DomainEvent is any external notification scoped to one conversation.
type DomainEvent interface {
	ConversationID() uuid.UUID
}

// MessageInserted reports a message persisted by the backend,
// whether written by this client or by the other participant.
type MessageInserted struct {
	Message domain.Message
}

func (e MessageInserted) ConversationID() uuid.UUID {
	return e.Message.ConversationID
}

// ConversationChanged reports conversation metadata created or updated
// on the backend.
type ConversationChanged struct {
	Conversation domain.Conversation
}

func (e ConversationChanged) ConversationID() uuid.UUID {
	return e.Conversation.ID
}
