package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"market-chat/backend"
	"market-chat/internal"
	"market-chat/services"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the live backend and drives one client action from the
// command line:
//
//	client conversations
//	client start <listingID> <sellerID>
//	client send <conversationID> <content...>
//
// Returning the error to main (instead of exiting inline) guarantees the
// deferred database close runs.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	if config.ParticipantID == "" {
		return fmt.Errorf("PARTICIPANT_ID must be set")
	}

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Backend, service, identity
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chat := services.NewChatService(log, backend.NewBadger(db, log, config.LimitMessages))
	if err = chat.SignIn(ctx, config.ParticipantID); err != nil {
		return fmt.Errorf("sign-in failed: %w", err)
	}
	defer chat.SignOut()

	// 4. One action per invocation
	args := os.Args[1:]
	if len(args) == 0 {
		args = []string{"conversations"}
	}

	switch args[0] {
	case "conversations":
		for _, c := range chat.Conversations() {
			fmt.Printf("%s  listing=%s buyer=%s seller=%s  last=%s %q\n",
				c.ID, c.ListingID, c.BuyerID, c.SellerID,
				c.LastActivityAt.Format("2006-01-02 15:04:05"), c.LastMessagePreview)
		}
	case "start":
		if len(args) != 3 {
			return fmt.Errorf("usage: client start <listingID> <sellerID>")
		}
		id, err := chat.StartConversation(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Printf("conversation %s\n", id)
	case "send":
		if len(args) < 3 {
			return fmt.Errorf("usage: client send <conversationID> <content...>")
		}
		conversationID, err := uuid.Parse(args[1])
		if err != nil {
			return fmt.Errorf("invalid conversation id: %w", err)
		}
		message, err := chat.Send(ctx, conversationID, strings.Join(args[2:], " "))
		if err != nil {
			return err
		}
		fmt.Printf("message %s (%s)\n", message.ID, message.State)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}

	return nil
}
