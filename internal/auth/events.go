package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventsChannel is the Redis pub/sub channel carrying auth events.
const EventsChannel = "auth.events"

// ErrAlreadyListening is returned by a second call to Events.Listen.
var ErrAlreadyListening = errors.New("auth: events already subscribed")

// Events publishes and consumes auth state changes over Redis pub/sub.
type Events struct {
	client *redis.Client
	logger *slog.Logger
	once   sync.Once
}

// NewEvents constructs the event bus. A nil client turns publishing into a no-op.
func NewEvents(client *redis.Client, logger *slog.Logger) *Events {
	if logger == nil {
		logger = slog.Default()
	}
	return &Events{client: client, logger: logger}
}

// Publish sends ev to every listener.
func (e *Events) Publish(ctx context.Context, ev Event) error {
	if e == nil || e.client == nil {
		return nil
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return e.client.Publish(ctx, EventsChannel, payload).Err()
}

// Listen subscribes once for the process lifetime and calls fn for every
// event until ctx is cancelled. ready is closed once the subscription is live.
func (e *Events) Listen(ctx context.Context, ready chan<- struct{}, fn func(Event)) error {
	started := false
	e.once.Do(func() { started = true })
	if !started {
		return ErrAlreadyListening
	}
	if e.client == nil {
		return errors.New("auth: events need a redis client")
	}
	sub := e.client.Subscribe(ctx, EventsChannel)
	defer func() { _ = sub.Close() }()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	if ready != nil {
		close(ready)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				e.logger.Warn("auth event decode", slog.Any("error", err))
				continue
			}
			fn(ev)
		}
	}
}

// LogEvent is the default listener used by the server.
func LogEvent(logger *slog.Logger) func(Event) {
	return func(ev Event) {
		logger.Info("auth event",
			slog.String("type", string(ev.Type)),
			slog.String("user_id", ev.UserID),
			slog.String("role", ev.Role))
	}
}
