package runtime

import (
	"context"
	"log/slog"
	"sync"

	"market-chat/contract"
	"market-chat/domain"
	"market-chat/domain/event"
	apperrors "market-chat/errors"

	"github.com/samber/lo"
)

// Merger is the single point where external state enters the local view.
// It subscribes to the backend's two push channels for the signed-in
// participant and folds every event through the idempotent store
// operations, so the arrival order of {optimistic write, confirmation,
// push event} never changes the final state.
type Merger struct {
	mu       sync.Mutex
	log      *slog.Logger
	backend  contract.Backend
	index    contract.IConversationIndex
	messages contract.IMessageLog
	subs     []contract.Subscription

	// idMu guards participantID alone: Consume runs on broadcast
	// goroutines and must not contend for mu, which Deactivate holds
	// while waiting out in-flight deliveries.
	idMu          sync.RWMutex
	participantID string
}

func NewMerger(log *slog.Logger, backend contract.Backend,
	index contract.IConversationIndex, messages contract.IMessageLog) *Merger {
	return &Merger{log: log, backend: backend, index: index, messages: messages}
}

// Activate binds the merger to a participant: any previous identity's
// subscriptions are torn down first, the conversation list is bootstrapped
// from the backend, then both push channels are established. Events from a
// previous identity can never leak into the new identity's state because
// Unsubscribe is synchronous.
func (m *Merger) Activate(ctx context.Context, participantID string) error {
	if participantID == "" {
		return apperrors.ErrNoIdentity
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.deactivateLocked()

	conversations, err := m.backend.FetchConversationsFor(ctx, participantID)
	if err != nil {
		return err
	}
	lo.ForEach(conversations, func(c domain.Conversation, _ int) {
		m.index.Upsert(c)
	})

	m.idMu.Lock()
	m.participantID = participantID
	m.idMu.Unlock()
	m.subs = []contract.Subscription{
		m.backend.SubscribeMessageInserts(m),
		m.backend.SubscribeConversationChanges(m),
	}
	m.log.Info("Live updates activated", "participant", participantID, "conversations", len(conversations))
	return nil
}

// Deactivate tears down all subscriptions and clears the local view.
// When it returns, no further events will be folded.
func (m *Merger) Deactivate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deactivateLocked()
}

func (m *Merger) deactivateLocked() {
	for _, sub := range m.subs {
		sub.Unsubscribe()
	}
	if m.participantID != "" {
		m.log.Info("Live updates deactivated", "participant", m.participantID)
	}
	m.subs = nil
	m.idMu.Lock()
	m.participantID = ""
	m.idMu.Unlock()
	m.index.Clear()
	m.messages.Clear()
}

func (m *Merger) activeParticipant() string {
	m.idMu.RLock()
	defer m.idMu.RUnlock()
	return m.participantID
}

// Consume folds one push event. Both channels deliver here; the stores'
// idempotence and monotonicity make the fold correct under any
// interleaving with local writes. Conversation events for pairs the
// active participant is not part of are dropped, so a shared push
// channel cannot grow the view beyond the participant's own threads.
func (m *Merger) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessageInserted:
		m.foldMessage(evt.Message)
	case event.ConversationChanged:
		if !evt.Conversation.HasParticipant(m.activeParticipant()) {
			m.log.Debug("Dropping conversation for another pair", "conversation", evt.Conversation.ID)
			return nil
		}
		m.index.Upsert(evt.Conversation)
	default:
		m.log.Debug("Ignoring unhandled event", "conversation", e.ConversationID())
	}
	return nil
}

func (m *Merger) foldMessage(message domain.Message) {
	// Push-observed messages are authoritative by definition.
	message.State = domain.DeliveryConfirmed
	if err := m.messages.Append(message); err != nil {
		// A message naming a conversation we have never seen is an
		// invariant violation; the conversation-changed channel normally
		// delivers the thread first. Fail loudly, drop the event.
		m.log.Error("Dropping push message", "message", message.ID, "error", err)
		return
	}
	m.index.NoteMessage(message.ConversationID, message.Content, message.CreatedAt)
}
