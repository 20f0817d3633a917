package backend

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"market-chat/contract"
	"market-chat/domain"
	"market-chat/domain/event"
	apperrors "market-chat/errors"

	"github.com/google/uuid"
)

// Memory is the mock collaborator: authoritative state held in maps, push
// events delivered synchronously. It backs tests and offline development
// the way the live store backs production.
type Memory struct {
	mu            sync.Mutex
	log           *slog.Logger
	notifier      *notifier
	conversations map[uuid.UUID]domain.Conversation
	byKey         map[domain.TripleKey]uuid.UUID
	messages      map[uuid.UUID][]domain.Message

	failConversationCreates bool
	failMessageCreates      bool
}

func NewMemory(log *slog.Logger) *Memory {
	return &Memory{
		log:           log,
		notifier:      newNotifier(log),
		conversations: make(map[uuid.UUID]domain.Conversation),
		byKey:         make(map[domain.TripleKey]uuid.UUID),
		messages:      make(map[uuid.UUID][]domain.Message),
	}
}

// FailConversationCreates scripts CreateConversation rejections, to
// exercise the CreationFailed path without a network.
func (b *Memory) FailConversationCreates(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failConversationCreates = fail
}

// FailMessageCreates scripts CreateMessage rejections.
func (b *Memory) FailMessageCreates(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failMessageCreates = fail
}

func (b *Memory) FetchConversationsFor(_ context.Context, participantID string) ([]domain.Conversation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var conversations []domain.Conversation
	for _, c := range b.conversations {
		if c.HasParticipant(participantID) {
			conversations = append(conversations, c)
		}
	}
	sort.Slice(conversations, func(a, c int) bool {
		return conversations[a].LastActivityAt.After(conversations[c].LastActivityAt)
	})
	return conversations, nil
}

func (b *Memory) FetchMessages(_ context.Context, conversationID uuid.UUID) ([]domain.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	messages := append([]domain.Message{}, b.messages[conversationID]...)
	sort.Slice(messages, func(a, c int) bool {
		return messages[a].Before(messages[c])
	})
	return messages, nil
}

// CreateConversation creates the thread for the triple, or returns the
// existing one: the store enforces the natural key, not only the client.
func (b *Memory) CreateConversation(ctx context.Context, listingID, buyerID, sellerID string) (domain.Conversation, error) {
	b.mu.Lock()
	if b.failConversationCreates {
		b.mu.Unlock()
		return domain.Conversation{}, fmt.Errorf("backend unavailable")
	}

	key := domain.TripleKey{ListingID: listingID, BuyerID: buyerID, SellerID: sellerID}
	if id, ok := b.byKey[key]; ok {
		existing := b.conversations[id]
		b.mu.Unlock()
		return existing, nil
	}

	now := time.Now().UTC()
	conversation := domain.Conversation{
		ID:             uuid.New(),
		ListingID:      listingID,
		BuyerID:        buyerID,
		SellerID:       sellerID,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	b.conversations[conversation.ID] = conversation
	b.byKey[key] = conversation.ID
	b.mu.Unlock()

	b.notifier.broadcastConversation(ctx, event.ConversationChanged{Conversation: conversation})
	return conversation, nil
}

// CreateMessage persists a message and pushes it to subscribers before
// returning, like a realtime store whose push channel can beat the write
// acknowledgement. The client's idempotent merge absorbs the echo.
func (b *Memory) CreateMessage(ctx context.Context, conversationID uuid.UUID, senderID, content string) (domain.Message, error) {
	b.mu.Lock()
	if b.failMessageCreates {
		b.mu.Unlock()
		return domain.Message{}, fmt.Errorf("backend unavailable")
	}
	conversation, ok := b.conversations[conversationID]
	if !ok {
		b.mu.Unlock()
		return domain.Message{}, fmt.Errorf("%w: %s", apperrors.ErrUnknownConversation, conversationID)
	}

	message := domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
		State:          domain.DeliveryConfirmed,
	}
	b.messages[conversationID] = append(b.messages[conversationID], message)

	conversation.LastActivityAt = message.CreatedAt
	conversation.LastMessagePreview = message.Content
	b.conversations[conversationID] = conversation
	b.mu.Unlock()

	b.notifier.broadcastMessage(ctx, event.MessageInserted{Message: message})
	b.notifier.broadcastConversation(ctx, event.ConversationChanged{Conversation: conversation})
	return message, nil
}

func (b *Memory) SubscribeMessageInserts(sink contract.EventSink) contract.Subscription {
	return b.notifier.subscribeMessages(sink)
}

func (b *Memory) SubscribeConversationChanges(sink contract.EventSink) contract.Subscription {
	return b.notifier.subscribeConversations(sink)
}

// EmitMessageInserted injects a push event directly, as if the other
// participant's client had written it. Test hook.
func (b *Memory) EmitMessageInserted(ctx context.Context, message domain.Message) {
	b.mu.Lock()
	b.messages[message.ConversationID] = append(b.messages[message.ConversationID], message)
	b.mu.Unlock()
	b.notifier.broadcastMessage(ctx, event.MessageInserted{Message: message})
}

// EmitConversationChanged injects a conversation push event. Test hook.
func (b *Memory) EmitConversationChanged(ctx context.Context, conversation domain.Conversation) {
	b.mu.Lock()
	b.conversations[conversation.ID] = conversation
	b.byKey[conversation.Key()] = conversation.ID
	b.mu.Unlock()
	b.notifier.broadcastConversation(ctx, event.ConversationChanged{Conversation: conversation})
}
