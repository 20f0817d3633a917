//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"market-chat/domain"
	"market-chat/domain/event"
	"time"

	"github.com/google/uuid"
)

// Backend is the persistence and notification collaborator.
// It owns the authoritative state; this client only merges it locally.
type Backend interface {
	FetchConversationsFor(ctx context.Context, participantID string) ([]domain.Conversation, error)
	FetchMessages(ctx context.Context, conversationID uuid.UUID) ([]domain.Message, error)
	CreateConversation(ctx context.Context, listingID, buyerID, sellerID string) (domain.Conversation, error)
	CreateMessage(ctx context.Context, conversationID uuid.UUID, senderID, content string) (domain.Message, error)
	SubscribeMessageInserts(sink EventSink) Subscription
	SubscribeConversationChanges(sink EventSink) Subscription
}

// Subscription is a live push channel handle.
// Unsubscribe is synchronous: once it returns, the sink receives no
// further events. This is what makes identity switches race-free.
type Subscription interface {
	Unsubscribe()
}

type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

type IConversationIndex interface {
	Upsert(conversation domain.Conversation)
	Touch(conversationID uuid.UUID, at time.Time)
	NoteMessage(conversationID uuid.UUID, content string, at time.Time)
	Get(conversationID uuid.UUID) (domain.Conversation, bool)
	GetByKey(key domain.TripleKey) (domain.Conversation, bool)
	ListByActivity() []domain.Conversation
	Clear()
}

type IMessageLog interface {
	Append(message domain.Message) error
	Confirm(tentativeID uuid.UUID, confirmed domain.Message) error
	MarkFailed(messageID uuid.UUID)
	ListOrdered(conversationID uuid.UUID) []domain.Message
	Clear()
}

// IMerger folds push events into the local stores for one identity at a time.
type IMerger interface {
	EventSink
	Activate(ctx context.Context, participantID string) error
	Deactivate()
}
