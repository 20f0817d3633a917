// Package runtime coordinates local optimistic writes and push-event
// merging over the backend collaborator. It contains no domain rules
// beyond ordering of the two-phase write.
package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"market-chat/contract"
	"market-chat/domain"
	apperrors "market-chat/errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// Resolver derives the conversation for a (listing, buyer, seller) triple:
// an existing thread is reused, otherwise the backend creates one exactly
// once. No retry happens here; retry policy belongs to the caller.
type Resolver struct {
	log     *slog.Logger
	backend contract.Backend
	index   contract.IConversationIndex
}

func NewResolver(log *slog.Logger, backend contract.Backend, index contract.IConversationIndex) *Resolver {
	return &Resolver{log: log, backend: backend, index: index}
}

func (r *Resolver) Resolve(ctx context.Context, cmd domain.StartConversationCommand) (uuid.UUID, error) {
	if cmd.BuyerID != "" && cmd.BuyerID == cmd.SellerID {
		return uuid.Nil, apperrors.ErrSameParticipant
	}
	if err := validate.Struct(cmd); err != nil {
		return uuid.Nil, err
	}

	key := domain.TripleKey{ListingID: cmd.ListingID, BuyerID: cmd.BuyerID, SellerID: cmd.SellerID}
	if existing, ok := r.index.GetByKey(key); ok {
		return existing.ID, nil
	}

	conversation, err := r.backend.CreateConversation(ctx, cmd.ListingID, cmd.BuyerID, cmd.SellerID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s", apperrors.ErrCreationFailed, err)
	}

	r.index.Upsert(conversation)
	r.log.Debug("Conversation resolved", "conversation", conversation.ID, "listing", cmd.ListingID)
	return conversation.ID, nil
}
