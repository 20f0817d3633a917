package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"market-chat/contract"
	"market-chat/domain"
	"market-chat/domain/event"
	apperrors "market-chat/errors"
	"market-chat/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Badger is the live collaborator: conversations and messages persisted in
// BadgerDB, push events emitted after each successful write.
type Badger struct {
	log           *slog.Logger
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	notifier      *notifier
}

func NewBadger(db *badger.DB, log *slog.Logger, limitMessages *int) *Badger {
	return &Badger{
		log:           log,
		conversations: repositories.NewConversationRepository(db, log),
		messages:      repositories.NewMessageRepository(db, log, limitMessages),
		notifier:      newNotifier(log),
	}
}

func (b *Badger) FetchConversationsFor(_ context.Context, participantID string) ([]domain.Conversation, error) {
	conversations, err := b.conversations.ListFor(participantID)
	if err != nil {
		return nil, err
	}
	return lo.Map(conversations, func(c repositories.DiskConversation, _ int) domain.Conversation {
		return fromDiskConversation(c)
	}), nil
}

func (b *Badger) FetchMessages(_ context.Context, conversationID uuid.UUID) ([]domain.Message, error) {
	messages, err := b.messages.GetMessages(conversationID)
	if err != nil {
		return nil, err
	}
	return lo.Map(messages, func(m repositories.DiskMessage, _ int) domain.Message {
		return fromDiskMessage(m)
	}), nil
}

func (b *Badger) CreateConversation(ctx context.Context, listingID, buyerID, sellerID string) (domain.Conversation, error) {
	existing, found, err := b.conversations.GetByTriple(listingID, buyerID, sellerID)
	if err != nil {
		return domain.Conversation{}, err
	}
	if found {
		return fromDiskConversation(existing), nil
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
	if err = b.conversations.StoreConversation(toDiskConversation(conversation)); err != nil {
		return domain.Conversation{}, err
	}

	b.notifier.broadcastConversation(ctx, event.ConversationChanged{Conversation: conversation})
	return conversation, nil
}

func (b *Badger) CreateMessage(ctx context.Context, conversationID uuid.UUID, senderID, content string) (domain.Message, error) {
	diskConversation, found, err := b.conversations.GetConversation(conversationID)
	if err != nil {
		return domain.Message{}, err
	}
	if !found {
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
	if err = b.messages.StoreMessage(toDiskMessage(message)); err != nil {
		return domain.Message{}, err
	}

	diskConversation.LastActivityAt = message.CreatedAt
	diskConversation.LastMessage = message.Content
	if err = b.conversations.StoreConversation(diskConversation); err != nil {
		return domain.Message{}, err
	}

	b.notifier.broadcastMessage(ctx, event.MessageInserted{Message: message})
	b.notifier.broadcastConversation(ctx, event.ConversationChanged{Conversation: fromDiskConversation(diskConversation)})
	return message, nil
}

func (b *Badger) SubscribeMessageInserts(sink contract.EventSink) contract.Subscription {
	return b.notifier.subscribeMessages(sink)
}

func (b *Badger) SubscribeConversationChanges(sink contract.EventSink) contract.Subscription {
	return b.notifier.subscribeConversations(sink)
}

func toDiskConversation(c domain.Conversation) repositories.DiskConversation {
	return repositories.DiskConversation{
		ID:             c.ID,
		ListingID:      c.ListingID,
		BuyerID:        c.BuyerID,
		SellerID:       c.SellerID,
		CreatedAt:      c.CreatedAt,
		LastActivityAt: c.LastActivityAt,
		LastMessage:    c.LastMessagePreview,
	}
}

func fromDiskConversation(c repositories.DiskConversation) domain.Conversation {
	return domain.Conversation{
		ID:                 c.ID,
		ListingID:          c.ListingID,
		BuyerID:            c.BuyerID,
		SellerID:           c.SellerID,
		CreatedAt:          c.CreatedAt,
		LastActivityAt:     c.LastActivityAt,
		LastMessagePreview: c.LastMessage,
	}
}

func toDiskMessage(m domain.Message) repositories.DiskMessage {
	return repositories.DiskMessage{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		At:             m.CreatedAt,
	}
}

func fromDiskMessage(m repositories.DiskMessage) domain.Message {
	return domain.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		CreatedAt:      m.At,
		State:          domain.DeliveryConfirmed,
	}
}
