package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_Record_Multiple_Messages(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewMessageRepository(db, slog.Default(), nil)
	conversationID := uuid.New()
	at := time.Now().UTC()
	diskMessages := []DiskMessage{
		{uuid.New(), conversationID, "Alice", "Is this available?", at},
		{uuid.New(), conversationID, "Bob", "Yes, still here", at.Add(1 * time.Minute)},
		{uuid.New(), conversationID, "Alice", "Great, I'll take it", at.Add(2 * time.Minute)},
	}
	for _, dm := range diskMessages {
		req.NoError(repository.StoreMessage(dm))
	}

	fetchedMessages, err := repository.GetMessages(conversationID)
	req.NoError(err)
	req.Len(fetchedMessages, len(diskMessages))
	req.Equal(diskMessages, fetchedMessages)
}

func Test_Record_Multiple_Messages_And_Limit(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	limit := 2
	repository := NewMessageRepository(db, slog.Default(), &limit)
	conversationID := uuid.New()
	at := time.Now().UTC()
	diskMessages := []DiskMessage{
		{uuid.New(), conversationID, "Alice", "one", at},
		{uuid.New(), conversationID, "Bob", "two", at.Add(1 * time.Minute)},
		{uuid.New(), conversationID, "Alice", "three", at.Add(2 * time.Minute)},
	}
	for _, dm := range diskMessages {
		req.NoError(repository.StoreMessage(dm))
	}

	// The newest messages win when the limit applies, oldest first
	fetchedMessages, err := repository.GetMessages(conversationID)
	req.NoError(err)
	req.Len(fetchedMessages, limit)
	req.Equal("two", fetchedMessages[0].Content)
	req.Equal("three", fetchedMessages[1].Content)
}

func Test_Messages_Are_Scoped_To_Their_Conversation(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewMessageRepository(db, slog.Default(), nil)
	conversationID := uuid.New()
	otherID := uuid.New()
	at := time.Now().UTC()

	req.NoError(repository.StoreMessage(DiskMessage{uuid.New(), conversationID, "Alice", "mine", at}))
	req.NoError(repository.StoreMessage(DiskMessage{uuid.New(), otherID, "Clara", "other thread", at}))

	fetchedMessages, err := repository.GetMessages(conversationID)
	req.NoError(err)
	req.Len(fetchedMessages, 1)
	req.Equal("mine", fetchedMessages[0].Content)
}
