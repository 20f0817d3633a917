package runtime

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"market-chat/backend"
	"market-chat/domain"
	apperrors "market-chat/errors"
	"market-chat/projection"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newMerger(t *testing.T) (*Merger, *backend.Memory, *projection.ConversationIndex, *projection.MessageLog) {
	t.Helper()
	mock := backend.NewMemory(slog.Default())
	index := projection.NewConversationIndex()
	messages := projection.NewMessageLog(index)
	return NewMerger(slog.Default(), mock, index, messages), mock, index, messages
}

func seedConversation(req *require.Assertions, mock *backend.Memory, buyerID string) domain.Conversation {
	conversation, err := mock.CreateConversation(context.Background(), "listing-"+buyerID, buyerID, "seller-1")
	req.NoError(err)
	return conversation
}

func TestMerger_Activate_Requires_Identity(t *testing.T) {
	req := require.New(t)
	merger, _, _, _ := newMerger(t)

	err := merger.Activate(context.Background(), "")

	req.True(errors.Is(err, apperrors.ErrNoIdentity))
}

func TestMerger_Activate_Bootstraps_Conversations(t *testing.T) {
	req := require.New(t)
	merger, mock, index, _ := newMerger(t)
	ctx := context.Background()

	// Given the backend already holds threads for two participants
	mine := seedConversation(req, mock, "buyer-1")
	seedConversation(req, mock, "buyer-2")

	// When buyer-1 signs in
	req.NoError(merger.Activate(ctx, "buyer-1"))
	defer merger.Deactivate()

	// Then only buyer-1's conversations are in the local view
	conversations := index.ListByActivity()
	req.Len(conversations, 1)
	req.Equal(mine.ID, conversations[0].ID)
}

func TestMerger_Folds_Push_Message_Idempotently(t *testing.T) {
	req := require.New(t)
	merger, mock, index, messages := newMerger(t)
	ctx := context.Background()

	conversation := seedConversation(req, mock, "buyer-1")
	req.NoError(merger.Activate(ctx, "buyer-1"))
	defer merger.Deactivate()

	message := domain.Message{
		ID:             uuid.New(),
		ConversationID: conversation.ID,
		SenderID:       "seller-1",
		Content:        "Yes, still available",
		CreatedAt:      time.Now().UTC(),
	}

	// When the push channel delivers the same message twice
	mock.EmitMessageInserted(ctx, message)
	mock.EmitMessageInserted(ctx, message)

	// Then the log holds it once, confirmed
	entries := messages.ListOrdered(conversation.ID)
	req.Len(entries, 1)
	req.Equal(domain.DeliveryConfirmed, entries[0].State)

	// And the conversation surfaced the activity
	stored, _ := index.Get(conversation.ID)
	req.Equal("Yes, still available", stored.LastMessagePreview)
	req.Equal(message.CreatedAt, stored.LastActivityAt)
}

func TestMerger_Out_Of_Order_Conversation_Event_Does_Not_Regress(t *testing.T) {
	req := require.New(t)
	merger, mock, index, _ := newMerger(t)
	ctx := context.Background()

	conversation := seedConversation(req, mock, "buyer-1")
	req.NoError(merger.Activate(ctx, "buyer-1"))
	defer merger.Deactivate()

	// Given local activity advanced past the snapshot
	later := conversation.LastActivityAt.Add(1 * time.Minute)
	index.Touch(conversation.ID, later)

	// When a stale conversation-changed event arrives
	stale := conversation
	stale.LastActivityAt = conversation.LastActivityAt.Add(-1 * time.Minute)
	mock.EmitConversationChanged(ctx, stale)

	stored, _ := index.Get(conversation.ID)
	req.Equal(later, stored.LastActivityAt)
}

func TestMerger_Drops_Message_For_Unknown_Conversation(t *testing.T) {
	req := require.New(t)
	merger, mock, _, messages := newMerger(t)
	ctx := context.Background()

	seedConversation(req, mock, "buyer-1")
	req.NoError(merger.Activate(ctx, "buyer-1"))
	defer merger.Deactivate()

	// When a push message names a conversation the view has never seen
	orphan := domain.Message{
		ID:             uuid.New(),
		ConversationID: uuid.New(),
		SenderID:       "seller-1",
		Content:        "hello",
		CreatedAt:      time.Now().UTC(),
	}
	mock.EmitMessageInserted(ctx, orphan)

	// Then the event is dropped without disturbing the view
	req.Empty(messages.ListOrdered(orphan.ConversationID))
}

func TestMerger_Ignores_Conversations_Of_Other_Pairs(t *testing.T) {
	req := require.New(t)
	merger, mock, index, messages := newMerger(t)
	ctx := context.Background()

	mine := seedConversation(req, mock, "buyer-2")
	req.NoError(merger.Activate(ctx, "buyer-2"))
	defer merger.Deactivate()

	// When another pair opens a thread on the shared backend
	foreign, err := mock.CreateConversation(ctx, "listing-9", "buyer-1", "seller-1")
	req.NoError(err)

	// Then buyer-2's view still holds only buyer-2's thread
	conversations := index.ListByActivity()
	req.Len(conversations, 1)
	req.Equal(mine.ID, conversations[0].ID)

	// And a follow-up message in the foreign thread cannot land either
	mock.EmitMessageInserted(ctx, domain.Message{
		ID:             uuid.New(),
		ConversationID: foreign.ID,
		SenderID:       "seller-1",
		Content:        "between buyer-1 and seller-1",
		CreatedAt:      time.Now().UTC(),
	})
	req.Empty(messages.ListOrdered(foreign.ID))
}

func TestMerger_Deactivate_Stops_Event_Delivery(t *testing.T) {
	req := require.New(t)
	merger, mock, index, messages := newMerger(t)
	ctx := context.Background()

	conversation := seedConversation(req, mock, "buyer-1")
	req.NoError(merger.Activate(ctx, "buyer-1"))

	// When the participant signs out
	merger.Deactivate()

	// Then the local view is gone
	req.Empty(index.ListByActivity())

	// And later push events no longer reach it
	mock.EmitMessageInserted(ctx, domain.Message{
		ID:             uuid.New(),
		ConversationID: conversation.ID,
		SenderID:       "seller-1",
		Content:        "anyone there?",
		CreatedAt:      time.Now().UTC(),
	})
	req.Empty(messages.ListOrdered(conversation.ID))
	req.Empty(index.ListByActivity())
}

func TestMerger_Identity_Switch_Replaces_The_View(t *testing.T) {
	req := require.New(t)
	merger, mock, index, messages := newMerger(t)
	ctx := context.Background()

	previous := seedConversation(req, mock, "buyer-1")
	mine := seedConversation(req, mock, "buyer-2")

	req.NoError(merger.Activate(ctx, "buyer-1"))

	// When a second identity activates without an explicit sign-out
	req.NoError(merger.Activate(ctx, "buyer-2"))
	defer merger.Deactivate()

	// Then only the new identity's conversations remain
	conversations := index.ListByActivity()
	req.Len(conversations, 1)
	req.Equal(mine.ID, conversations[0].ID)

	// And a push into the previous identity's thread cannot land in the
	// new identity's state
	mock.EmitMessageInserted(ctx, domain.Message{
		ID:             uuid.New(),
		ConversationID: previous.ID,
		SenderID:       "seller-1",
		Content:        "for buyer-1 only",
		CreatedAt:      time.Now().UTC(),
	})
	req.Empty(messages.ListOrdered(previous.ID))
}
