package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"market-chat/contract"
	"market-chat/domain"
	apperrors "market-chat/errors"

	"github.com/google/uuid"
)

// Coordinator runs the two-phase optimistic writes: the local view is
// mutated first, then reconciled against the backend's answer. Each send
// moves Pending -> Confirmed or Pending -> Failed; a failed entry is
// flagged, never silently removed.
type Coordinator struct {
	log      *slog.Logger
	backend  contract.Backend
	index    contract.IConversationIndex
	messages contract.IMessageLog
	resolver *Resolver
}

func NewCoordinator(log *slog.Logger, backend contract.Backend,
	index contract.IConversationIndex, messages contract.IMessageLog) *Coordinator {
	return &Coordinator{
		log:      log,
		backend:  backend,
		index:    index,
		messages: messages,
		resolver: NewResolver(log, backend, index),
	}
}

// StartConversation resolves or creates the thread and returns its id for
// navigation. On failure nothing is mutated locally.
func (c *Coordinator) StartConversation(ctx context.Context, cmd domain.StartConversationCommand) (uuid.UUID, error) {
	return c.resolver.Resolve(ctx, cmd)
}

// Send posts a message optimistically: the tentative entry lands in the
// log before any network round trip, so the sender's own view updates
// immediately. The backend's confirmation then replaces the tentative id
// with the authoritative one.
func (c *Coordinator) Send(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	if strings.TrimSpace(cmd.Content) == "" {
		return domain.Message{}, apperrors.ErrEmptyContent
	}
	if err := validate.Struct(cmd); err != nil {
		return domain.Message{}, err
	}

	tentative := domain.Message{
		ID:             uuid.New(),
		ConversationID: cmd.ConversationID,
		SenderID:       cmd.SenderID,
		Content:        cmd.Content,
		CreatedAt:      time.Now().UTC(),
		State:          domain.DeliveryPending,
	}
	if err := c.messages.Append(tentative); err != nil {
		return domain.Message{}, err
	}
	// Conversation ordering stays responsive before any confirmation.
	c.index.NoteMessage(tentative.ConversationID, tentative.Content, tentative.CreatedAt)

	confirmed, err := c.backend.CreateMessage(ctx, cmd.ConversationID, cmd.SenderID, cmd.Content)
	if err != nil {
		c.messages.MarkFailed(tentative.ID)
		c.log.Warn("Send rejected by backend", "conversation", cmd.ConversationID, "error", err)
		tentative.State = domain.DeliveryFailed
		return tentative, fmt.Errorf("%w: %s", apperrors.ErrSendFailed, err)
	}

	if err = c.messages.Confirm(tentative.ID, confirmed); err != nil {
		return domain.Message{}, err
	}
	c.index.NoteMessage(confirmed.ConversationID, confirmed.Content, confirmed.CreatedAt)
	confirmed.State = domain.DeliveryConfirmed
	return confirmed, nil
}
