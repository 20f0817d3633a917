package main

import (
	"fmt"
	"log"
	"os"

	"market-chat/internal"
	"market-chat/repositories"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

// Read-only inspector for the message store. Renders every conversation
// and, when a conversation id is given as first argument, its messages.
func main() {
	// 1. Load config
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. Open Badger in Read-Only mode
	// Note: BypassLockGuard allows opening if another process (the client) holds the lock
	opts := badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	conversations := repositories.NewConversationRepository(db, logger)
	messages := repositories.NewMessageRepository(db, logger, config.LimitMessages)

	if len(os.Args) > 1 {
		conversationID, err := uuid.Parse(os.Args[1])
		if err != nil {
			log.Fatalf("Invalid conversation id: %v", err)
		}
		renderMessages(messages, conversationID)
		return
	}
	renderConversations(conversations)
}

func renderConversations(repository repositories.ConversationRepository) {
	fmt.Println(color.New(color.BgBlack, color.FgGreen).Render("Conversations"))

	all, err := repository.ListAll()
	if err != nil {
		log.Fatalf("Scan failed: %v", err)
	}

	table := newTable([]string{"ID", "Listing", "Buyer", "Seller", "Last Activity", "Last Message"})
	for _, c := range all {
		table.Append([]string{
			c.ID.String(), c.ListingID, c.BuyerID, c.SellerID,
			c.LastActivityAt.Format("2006-01-02 15:04:05"), c.LastMessage,
		})
	}
	table.Render()
}

func renderMessages(repository repositories.MessageRepository, conversationID uuid.UUID) {
	fmt.Println(color.New(color.BgBlack, color.FgGreen).Render(fmt.Sprintf("Messages of %s", conversationID)))

	diskMessages, err := repository.GetMessages(conversationID)
	if err != nil {
		log.Fatalf("Scan failed: %v", err)
	}

	table := newTable([]string{"At", "Sender", "Content", "ID"})
	for _, m := range diskMessages {
		table.Append([]string{
			m.At.Format("2006-01-02 15:04:05"), m.SenderID, m.Content, m.ID.String(),
		})
	}
	table.Render()
}

func newTable(header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}
