package projection

import (
	"testing"
	"time"

	"market-chat/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func conversationAt(at time.Time) domain.Conversation {
	return domain.Conversation{
		ID:             uuid.New(),
		ListingID:      "listing-1",
		BuyerID:        "buyer-1",
		SellerID:       "seller-1",
		CreatedAt:      at,
		LastActivityAt: at,
	}
}

func TestIndex_Upsert_Inserts_And_Resolves_By_Triple(t *testing.T) {
	req := require.New(t)
	index := NewConversationIndex()
	conversation := conversationAt(time.Now().UTC())

	// When the conversation is upserted
	index.Upsert(conversation)

	// Then it is found by id and by natural key
	byID, ok := index.Get(conversation.ID)
	req.True(ok)
	req.Equal(conversation, byID)

	byKey, ok := index.GetByKey(conversation.Key())
	req.True(ok)
	req.Equal(conversation.ID, byKey.ID)
}

func TestIndex_Upsert_Ignores_Older_Activity(t *testing.T) {
	req := require.New(t)
	index := NewConversationIndex()
	at := time.Now().UTC()
	conversation := conversationAt(at)
	index.Upsert(conversation)

	// When an out-of-order push event carries an older snapshot
	stale := conversation
	stale.LastActivityAt = at.Add(-1 * time.Minute)
	stale.LastMessagePreview = "stale preview"
	index.Upsert(stale)

	// Then the stored entry is unchanged
	stored, ok := index.Get(conversation.ID)
	req.True(ok)
	req.Equal(at, stored.LastActivityAt)
	req.Empty(stored.LastMessagePreview)
}

func TestIndex_Touch_Is_Monotonic(t *testing.T) {
	req := require.New(t)
	index := NewConversationIndex()
	at := time.Now().UTC()
	conversation := conversationAt(at)
	index.Upsert(conversation)

	// Given the activity advanced to t+1m
	later := at.Add(1 * time.Minute)
	index.Touch(conversation.ID, later)

	// When an older touch arrives
	index.Touch(conversation.ID, at.Add(-1*time.Hour))

	// Then LastActivityAt did not regress
	stored, _ := index.Get(conversation.ID)
	req.Equal(later, stored.LastActivityAt)
}

func TestIndex_ListByActivity_Orders_Descending_With_ID_Tiebreak(t *testing.T) {
	req := require.New(t)
	index := NewConversationIndex()
	at := time.Now().UTC()

	oldest := conversationAt(at.Add(-2 * time.Hour))
	oldest.ListingID = "listing-old"
	newest := conversationAt(at)
	newest.ListingID = "listing-new"

	tiedA := conversationAt(at.Add(-1 * time.Hour))
	tiedA.ListingID = "listing-tied-a"
	tiedB := tiedA
	tiedB.ID = uuid.New()
	tiedB.ListingID = "listing-tied-b"

	index.Upsert(oldest)
	index.Upsert(tiedA)
	index.Upsert(tiedB)
	index.Upsert(newest)

	conversations := index.ListByActivity()
	req.Len(conversations, 4)
	req.Equal(newest.ID, conversations[0].ID)
	req.Equal(oldest.ID, conversations[3].ID)

	// Equal timestamps break ties by id for a stable rendering
	first, second := conversations[1], conversations[2]
	req.True(first.ID.String() < second.ID.String())
}

func TestIndex_NoteMessage_Updates_Preview_And_Activity(t *testing.T) {
	req := require.New(t)
	index := NewConversationIndex()
	at := time.Now().UTC()
	conversation := conversationAt(at)
	index.Upsert(conversation)

	// When a newer message is noted
	index.NoteMessage(conversation.ID, "Is this available?", at.Add(1*time.Minute))

	stored, _ := index.Get(conversation.ID)
	req.Equal("Is this available?", stored.LastMessagePreview)
	req.Equal(at.Add(1*time.Minute), stored.LastActivityAt)

	// And an older message leaves preview and activity untouched
	index.NoteMessage(conversation.ID, "older", at.Add(-1*time.Minute))
	stored, _ = index.Get(conversation.ID)
	req.Equal("Is this available?", stored.LastMessagePreview)
}
