package events

import (
	"context"
	"encoding/json"
	"log"

	"github.com/go-redis/redis/v8"
)

// RedisPublisher publishes events to the execution:<uuid> channel over
// Redis pub/sub, for a remote UI (or the WebSocket bridge) subscribing
// to one execution's events. Publish failures are logged and
// swallowed — a subscriber that isn't listening, or a momentarily
// unreachable Redis, must never fail or block the execution it is
// reporting on.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher wraps an existing client. The caller owns the
// client's lifecycle (creation and Close).
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) {
	if p.client == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("events: failed to marshal event for execution %s: %v", ev.ExecutionID, err)
		return
	}
	if err := p.client.Publish(ctx, Channel(ev.ExecutionID), payload).Err(); err != nil {
		log.Printf("events: failed to publish to %s: %v", Channel(ev.ExecutionID), err)
	}
}

// Subscribe returns a channel of decoded Events for one execution. The
// returned channel is closed when ctx is canceled or the subscription
// is closed; malformed payloads are logged and skipped rather than
// sent.
func Subscribe(ctx context.Context, client *redis.Client, executionID string) (<-chan Event, func() error) {
	sub := client.Subscribe(ctx, Channel(executionID))
	out := make(chan Event)

	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					log.Printf("events: dropping malformed payload on %s: %v", msg.Channel, err)
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, sub.Close
}
