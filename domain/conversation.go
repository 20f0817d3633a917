// Package domain contains core concepts of the marketplace messaging system.
// This file defines Conversation entities and their natural key.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is a buyer/seller thread about a single listing.
// At most one Conversation exists for a given (listing, buyer, seller) triple.
type Conversation struct {
	ID                 uuid.UUID
	ListingID          string
	BuyerID            string
	SellerID           string
	CreatedAt          time.Time
	LastActivityAt     time.Time
	LastMessagePreview string
}

// TripleKey is the natural key of a Conversation.
type TripleKey struct {
	ListingID string
	BuyerID   string
	SellerID  string
}

func (c Conversation) Key() TripleKey {
	return TripleKey{ListingID: c.ListingID, BuyerID: c.BuyerID, SellerID: c.SellerID}
}

// HasParticipant reports whether the given identifier is one of the two
// parties of the conversation.
func (c Conversation) HasParticipant(participantID string) bool {
	return c.BuyerID == participantID || c.SellerID == participantID
}
