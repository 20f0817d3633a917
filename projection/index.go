// Package projection holds the local live view of conversations and
// messages. Every mutation is an idempotent or monotonic merge, so that
// arbitrary interleavings of optimistic writes, server confirmations and
// push events converge to the same state.
package projection

import (
	"sort"
	"sync"
	"time"

	"market-chat/domain"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// ConversationIndex maps conversation ids to metadata and keeps the
// (listing, buyer, seller) natural key unique.
type ConversationIndex struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]domain.Conversation
	byKey map[domain.TripleKey]uuid.UUID
}

func NewConversationIndex() *ConversationIndex {
	return &ConversationIndex{
		byID:  make(map[uuid.UUID]domain.Conversation),
		byKey: make(map[domain.TripleKey]uuid.UUID),
	}
}

// Upsert merges a conversation by id. An existing entry is overwritten
// only when the incoming LastActivityAt is not older than the stored one,
// so an out-of-order push event can never regress the timestamp.
func (i *ConversationIndex) Upsert(conversation domain.Conversation) {
	i.mu.Lock()
	defer i.mu.Unlock()

	stored, ok := i.byID[conversation.ID]
	if ok && conversation.LastActivityAt.Before(stored.LastActivityAt) {
		return
	}
	i.byID[conversation.ID] = conversation
	i.byKey[conversation.Key()] = conversation.ID
}

// Touch advances LastActivityAt to max(current, at). Monotonic, never decreases.
func (i *ConversationIndex) Touch(conversationID uuid.UUID, at time.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()

	stored, ok := i.byID[conversationID]
	if !ok || at.Before(stored.LastActivityAt) {
		return
	}
	stored.LastActivityAt = at
	i.byID[conversationID] = stored
}

// NoteMessage records a message against the conversation: it touches the
// activity timestamp and refreshes the preview shown on the thread list.
// Older messages leave both untouched.
func (i *ConversationIndex) NoteMessage(conversationID uuid.UUID, content string, at time.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()

	stored, ok := i.byID[conversationID]
	if !ok || at.Before(stored.LastActivityAt) {
		return
	}
	stored.LastActivityAt = at
	stored.LastMessagePreview = content
	i.byID[conversationID] = stored
}

func (i *ConversationIndex) Get(conversationID uuid.UUID) (domain.Conversation, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	c, ok := i.byID[conversationID]
	return c, ok
}

func (i *ConversationIndex) GetByKey(key domain.TripleKey) (domain.Conversation, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	id, ok := i.byKey[key]
	if !ok {
		return domain.Conversation{}, false
	}
	c, ok := i.byID[id]
	return c, ok
}

func (i *ConversationIndex) Has(conversationID uuid.UUID) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.byID[conversationID]
	return ok
}

// ListByActivity returns a snapshot ordered by LastActivityAt descending,
// ties broken by id so the thread list renders deterministically.
func (i *ConversationIndex) ListByActivity() []domain.Conversation {
	i.mu.RLock()
	conversations := lo.Values(i.byID)
	i.mu.RUnlock()

	sort.Slice(conversations, func(a, b int) bool {
		ca, cb := conversations[a], conversations[b]
		if !ca.LastActivityAt.Equal(cb.LastActivityAt) {
			return ca.LastActivityAt.After(cb.LastActivityAt)
		}
		return ca.ID.String() < cb.ID.String()
	})
	return conversations
}

// Clear drops the whole view. Used on sign-out so the next identity
// never sees the previous identity's conversations.
func (i *ConversationIndex) Clear() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.byID = make(map[uuid.UUID]domain.Conversation)
	i.byKey = make(map[domain.TripleKey]uuid.UUID)
}
