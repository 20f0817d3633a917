package domain

import (
	"github.com/google/uuid"
)

// StartConversationCommand requests a conversation for a listing.
// The resolver returns the existing thread when the triple already has one.
type StartConversationCommand struct {
	ListingID string `validate:"required"`
	BuyerID   string `validate:"required,nefield=SellerID"`
	SellerID  string `validate:"required"`
}

// SendMessageCommand posts content into an existing conversation.
type SendMessageCommand struct {
	ConversationID uuid.UUID `validate:"required"`
	SenderID       string    `validate:"required"`
	Content        string    `validate:"required"`
}
