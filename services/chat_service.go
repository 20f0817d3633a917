//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	"log/slog"
	"sync"

	"market-chat/contract"
	"market-chat/domain"
	apperrors "market-chat/errors"
	"market-chat/projection"
	"market-chat/runtime"

	"github.com/google/uuid"
)

type IChatService interface {
	SignIn(ctx context.Context, participantID string) error
	SignOut()
	Conversations() []domain.Conversation
	MessagesFor(ctx context.Context, conversationID uuid.UUID) ([]domain.Message, error)
	StartConversation(ctx context.Context, listingID, sellerID string) (uuid.UUID, error)
	Send(ctx context.Context, conversationID uuid.UUID, content string) (domain.Message, error)
}

// ChatService is the surface the UI layer talks to. It owns the local
// stores and wires the coordinator and merger over a backend.
type ChatService struct {
	log         *slog.Logger
	backend     contract.Backend
	index       *projection.ConversationIndex
	messages    *projection.MessageLog
	coordinator *runtime.Coordinator
	merger      *runtime.Merger

	mu            sync.Mutex
	participantID string
	hydrated      map[uuid.UUID]struct{}
}

func NewChatService(log *slog.Logger, backend contract.Backend) *ChatService {
	index := projection.NewConversationIndex()
	messages := projection.NewMessageLog(index)
	return &ChatService{
		log:         log,
		backend:     backend,
		index:       index,
		messages:    messages,
		coordinator: runtime.NewCoordinator(log, backend, index, messages),
		merger:      runtime.NewMerger(log, backend, index, messages),
		hydrated:    make(map[uuid.UUID]struct{}),
	}
}

// SignIn activates live updates for the participant. A second SignIn with
// a different identity tears the previous one down first.
func (s *ChatService) SignIn(ctx context.Context, participantID string) error {
	if err := s.merger.Activate(ctx, participantID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participantID = participantID
	s.hydrated = make(map[uuid.UUID]struct{})
	return nil
}

func (s *ChatService) SignOut() {
	s.merger.Deactivate()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participantID = ""
	s.hydrated = make(map[uuid.UUID]struct{})
}

// Conversations returns the live thread list, most recent activity first.
func (s *ChatService) Conversations() []domain.Conversation {
	return s.index.ListByActivity()
}

// MessagesFor returns the ordered messages of one conversation. The first
// call per conversation hydrates history from the backend; push events and
// optimistic writes keep it current afterwards.
func (s *ChatService) MessagesFor(ctx context.Context, conversationID uuid.UUID) ([]domain.Message, error) {
	if err := s.hydrate(ctx, conversationID); err != nil {
		return nil, err
	}
	return s.messages.ListOrdered(conversationID), nil
}

func (s *ChatService) hydrate(ctx context.Context, conversationID uuid.UUID) error {
	s.mu.Lock()
	_, done := s.hydrated[conversationID]
	s.mu.Unlock()
	if done {
		return nil
	}

	history, err := s.backend.FetchMessages(ctx, conversationID)
	if err != nil {
		return err
	}
	for _, message := range history {
		message.State = domain.DeliveryConfirmed
		if err = s.messages.Append(message); err != nil {
			return err
		}
		s.index.NoteMessage(message.ConversationID, message.Content, message.CreatedAt)
	}

	s.mu.Lock()
	s.hydrated[conversationID] = struct{}{}
	s.mu.Unlock()
	return nil
}

// StartConversation opens (or finds) the signed-in buyer's thread with a
// seller about a listing and returns its id for navigation.
func (s *ChatService) StartConversation(ctx context.Context, listingID, sellerID string) (uuid.UUID, error) {
	s.mu.Lock()
	buyerID := s.participantID
	s.mu.Unlock()
	if buyerID == "" {
		return uuid.Nil, apperrors.ErrNoIdentity
	}

	return s.coordinator.StartConversation(ctx, domain.StartConversationCommand{
		ListingID: listingID,
		BuyerID:   buyerID,
		SellerID:  sellerID,
	})
}

// Send posts content as the signed-in participant.
func (s *ChatService) Send(ctx context.Context, conversationID uuid.UUID, content string) (domain.Message, error) {
	s.mu.Lock()
	senderID := s.participantID
	s.mu.Unlock()
	if senderID == "" {
		return domain.Message{}, apperrors.ErrNoIdentity
	}

	return s.coordinator.Send(ctx, domain.SendMessageCommand{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
	})
}
