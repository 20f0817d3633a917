// Package backend provides the persistence/notification collaborator in
// two variants: an in-memory mock and a BadgerDB-backed live store. Both
// share the notifier below for their push channels.
package backend

import (
	"context"
	"log/slog"
	"sync"

	"market-chat/contract"
	"market-chat/domain/event"
)

// notifier fans push events out to subscribed sinks.
//
// Broadcasts run under the read lock and Unsubscribe takes the write lock,
// so Unsubscribe blocks until every in-flight delivery has finished. Once
// it returns, the sink is guaranteed to receive no further events, which
// is the property the merger relies on when switching identities.
type notifier struct {
	mu                sync.RWMutex
	log               *slog.Logger
	nextID            int
	messageSinks      map[int]contract.EventSink
	conversationSinks map[int]contract.EventSink
}

func newNotifier(log *slog.Logger) *notifier {
	return &notifier{
		log:               log,
		messageSinks:      make(map[int]contract.EventSink),
		conversationSinks: make(map[int]contract.EventSink),
	}
}

type subscription struct {
	cancel func()
}

func (s *subscription) Unsubscribe() {
	s.cancel()
}

func (n *notifier) subscribeMessages(sink contract.EventSink) contract.Subscription {
	return n.subscribe(sink, func(nf *notifier) map[int]contract.EventSink { return nf.messageSinks })
}

func (n *notifier) subscribeConversations(sink contract.EventSink) contract.Subscription {
	return n.subscribe(sink, func(nf *notifier) map[int]contract.EventSink { return nf.conversationSinks })
}

func (n *notifier) subscribe(sink contract.EventSink, sinks func(*notifier) map[int]contract.EventSink) contract.Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	sinks(n)[id] = sink

	return &subscription{cancel: func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(sinks(n), id)
	}}
}

func (n *notifier) broadcastMessage(ctx context.Context, e event.MessageInserted) {
	n.broadcast(ctx, n.messageSinks, e)
}

func (n *notifier) broadcastConversation(ctx context.Context, e event.ConversationChanged) {
	n.broadcast(ctx, n.conversationSinks, e)
}

func (n *notifier) broadcast(ctx context.Context, sinks map[int]contract.EventSink, e event.DomainEvent) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, sink := range sinks {
		if err := sink.Consume(ctx, e); err != nil {
			n.log.Error("Sink rejected event", "conversation", e.ConversationID(), "error", err)
		}
	}
}
