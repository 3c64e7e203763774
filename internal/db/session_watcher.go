package db

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/TeamHubHQ/teamhub-gateway/internal/models"
)

// RedisSessionWatcher implements models.SessionEventWatcher on top of redis
// pub/sub. Events published through RedisAdapter.SetLoggedIn in any process
// sharing the store are delivered to every watcher, best effort.
type RedisSessionWatcher struct {
	sub Subscriber
}

func NewRedisSessionWatcher(sub Subscriber) *RedisSessionWatcher {
	return &RedisSessionWatcher{sub: sub}
}

func (w *RedisSessionWatcher) WatchSessionEvents(ctx context.Context) (<-chan models.SessionEvent, error) {
	pubsub := w.sub.Subscribe(ctx, SessionEventsChannel)
	// the first receive confirms the subscription
	_, err := pubsub.Receive(ctx)
	if err != nil {
		return nil, err
	}
	events := make(chan models.SessionEvent)
	go func() {
		defer close(events)
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				event := models.SessionEvent{}
				err := json.Unmarshal([]byte(msg.Payload), &event)
				if err != nil {
					slog.Error("SESSION WATCHER", "message", "cannot decode session event", "error", err)
					continue
				}
				select {
				case events <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return events, nil
}

// InMemorySessionWatcher is a process-local models.SessionEventWatcher used in
// tests and in the mock redis setup where there is no pub/sub backend.
type InMemorySessionWatcher struct {
	lock        *sync.Mutex
	subscribers []chan models.SessionEvent
}

func NewInMemorySessionWatcher() *InMemorySessionWatcher {
	return &InMemorySessionWatcher{lock: &sync.Mutex{}}
}

func (w *InMemorySessionWatcher) WatchSessionEvents(ctx context.Context) (<-chan models.SessionEvent, error) {
	w.lock.Lock()
	defer w.lock.Unlock()
	events := make(chan models.SessionEvent, 16)
	w.subscribers = append(w.subscribers, events)
	return events, nil
}

// Notify delivers an event to all watchers, dropping it for watchers that
// cannot keep up.
func (w *InMemorySessionWatcher) Notify(event models.SessionEvent) {
	w.lock.Lock()
	defer w.lock.Unlock()
	for _, sub := range w.subscribers {
		select {
		case sub <- event:
		default:
		}
	}
}
