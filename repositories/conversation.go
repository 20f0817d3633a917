//go:generate go run go.uber.org/mock/mockgen -source=conversation.go -destination=../mocks/mock_conversation_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IConversationRepository interface {
	StoreConversation(conversation DiskConversation) error
	GetConversation(id uuid.UUID) (DiskConversation, bool, error)
	GetByTriple(listingID, buyerID, sellerID string) (DiskConversation, bool, error)
	ListAll() ([]DiskConversation, error)
	ListFor(participantID string) ([]DiskConversation, error)
}

type ConversationRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewConversationRepository(db *badger.DB, log *slog.Logger) ConversationRepository {
	return ConversationRepository{db: db, log: log}
}

type DiskConversation struct {
	ID             uuid.UUID `json:"id"`
	ListingID      string    `json:"listing_id"`
	BuyerID        string    `json:"buyer_id"`
	SellerID       string    `json:"seller_id"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	LastMessage    string    `json:"last_message,omitempty"`
}

func conversationKey(id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("conv:%s", id))
}

// tripleKey is the secondary index that keeps the
// (listing, buyer, seller) natural key unique on disk.
func tripleKey(listingID, buyerID, sellerID string) []byte {
	return []byte(fmt.Sprintf("convkey:%s:%s:%s", listingID, buyerID, sellerID))
}

// StoreConversation writes the conversation record and its natural-key
// index entry in a single transaction.
func (r ConversationRepository) StoreConversation(conversation DiskConversation) error {
	bytes, err := json.Marshal(conversation)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(conversationKey(conversation.ID), bytes); err != nil {
			return err
		}
		return txn.Set(
			tripleKey(conversation.ListingID, conversation.BuyerID, conversation.SellerID),
			[]byte(conversation.ID.String()),
		)
	})
}

func (r ConversationRepository) GetConversation(id uuid.UUID) (DiskConversation, bool, error) {
	var conversation DiskConversation
	found := false
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(conversationKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		found = true
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &conversation)
		})
	})
	return conversation, found, err
}

// GetByTriple resolves the natural key to its conversation, if any.
func (r ConversationRepository) GetByTriple(listingID, buyerID, sellerID string) (DiskConversation, bool, error) {
	var id uuid.UUID
	found := false
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(tripleKey(listingID, buyerID, sellerID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		found = true
		return item.Value(func(value []byte) error {
			id, err = uuid.Parse(string(value))
			return err
		})
	})
	if err != nil || !found {
		return DiskConversation{}, false, err
	}
	return r.GetConversation(id)
}

// ListAll prefix-scans every conversation record. The "conv:" prefix never
// collides with "convkey:" entries because ':' terminates it.
func (r ConversationRepository) ListAll() ([]DiskConversation, error) {
	var conversations []DiskConversation
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("conv:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var conversation DiskConversation
				if err := json.Unmarshal(value, &conversation); err != nil {
					return err
				}
				conversations = append(conversations, conversation)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return conversations, err
}

// ListFor keeps the conversations where the participant is buyer or
// seller. The conversation set of a single user stays small, so a full
// prefix scan is acceptable here.
func (r ConversationRepository) ListFor(participantID string) ([]DiskConversation, error) {
	all, err := r.ListAll()
	if err != nil {
		return nil, err
	}
	return lo.Filter(all, func(c DiskConversation, _ int) bool {
		return c.BuyerID == participantID || c.SellerID == participantID
	}), nil
}
