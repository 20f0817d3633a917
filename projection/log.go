package projection

import (
	"fmt"
	"sort"
	"sync"

	"market-chat/domain"
	apperrors "market-chat/errors"

	"github.com/google/uuid"
)

// MessageLog is the per-conversation, append-only message collection.
// Append is idempotent by message id, which is what lets the optimistic
// coordinator and the live merger both observe the same server-confirmed
// message without duplicating it.
type MessageLog struct {
	mu             sync.RWMutex
	index          *ConversationIndex
	byConversation map[uuid.UUID]map[uuid.UUID]domain.Message
	locate         map[uuid.UUID]uuid.UUID // message id -> conversation id
}

func NewMessageLog(index *ConversationIndex) *MessageLog {
	return &MessageLog{
		index:          index,
		byConversation: make(map[uuid.UUID]map[uuid.UUID]domain.Message),
		locate:         make(map[uuid.UUID]uuid.UUID),
	}
}

// Append inserts a message once. A second append with the same id is a
// successful no-op. A message naming a conversation absent from the index
// is an invariant violation and fails with ErrUnknownConversation.
func (l *MessageLog) Append(message domain.Message) error {
	if !l.index.Has(message.ConversationID) {
		return fmt.Errorf("%w: %s", apperrors.ErrUnknownConversation, message.ConversationID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.locate[message.ID]; exists {
		return nil
	}
	entries, ok := l.byConversation[message.ConversationID]
	if !ok {
		entries = make(map[uuid.UUID]domain.Message)
		l.byConversation[message.ConversationID] = entries
	}
	entries[message.ID] = message
	l.locate[message.ID] = message.ConversationID
	return nil
}

// Confirm reconciles a tentative entry with the authoritative one the
// backend returned. The tentative entry is removed by its local id and the
// confirmed message is merged by its final id, so a push event that already
// delivered the confirmed message does not produce a duplicate.
func (l *MessageLog) Confirm(tentativeID uuid.UUID, confirmed domain.Message) error {
	if !l.index.Has(confirmed.ConversationID) {
		return fmt.Errorf("%w: %s", apperrors.ErrUnknownConversation, confirmed.ConversationID)
	}
	confirmed.State = domain.DeliveryConfirmed

	l.mu.Lock()
	defer l.mu.Unlock()

	if convID, ok := l.locate[tentativeID]; ok && tentativeID != confirmed.ID {
		delete(l.byConversation[convID], tentativeID)
		delete(l.locate, tentativeID)
	}

	entries, ok := l.byConversation[confirmed.ConversationID]
	if !ok {
		entries = make(map[uuid.UUID]domain.Message)
		l.byConversation[confirmed.ConversationID] = entries
	}
	// Merge by final id: the push channel may have delivered it already.
	entries[confirmed.ID] = confirmed
	l.locate[confirmed.ID] = confirmed.ConversationID
	return nil
}

// MarkFailed flags a tentative message the backend rejected. The entry is
// kept: the sender must see that the message did not go through.
func (l *MessageLog) MarkFailed(messageID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	convID, ok := l.locate[messageID]
	if !ok {
		return
	}
	message := l.byConversation[convID][messageID]
	message.State = domain.DeliveryFailed
	l.byConversation[convID][messageID] = message
}

// ListOrdered returns a snapshot of the conversation's messages sorted by
// (CreatedAt, ID). Later appends do not mutate a returned slice, and
// repeated calls always reflect the current state.
func (l *MessageLog) ListOrdered(conversationID uuid.UUID) []domain.Message {
	l.mu.RLock()
	entries := l.byConversation[conversationID]
	messages := make([]domain.Message, 0, len(entries))
	for _, m := range entries {
		messages = append(messages, m)
	}
	l.mu.RUnlock()

	sort.Slice(messages, func(a, b int) bool {
		return messages[a].Before(messages[b])
	})
	return messages
}

// Clear drops all messages. Used on sign-out together with the index.
func (l *MessageLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byConversation = make(map[uuid.UUID]map[uuid.UUID]domain.Message)
	l.locate = make(map[uuid.UUID]uuid.UUID)
}
