package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/gophnotes/internal/logging"
	"github.com/redis/go-redis/v9"
)

const channelPrefix = "gophnotes:user:"

// Channel returns the pub/sub channel of username.
func Channel(username string) string {
	return channelPrefix + username + ":events"
}

// RedisPublisher publishes events with PUBLISH.
type RedisPublisher struct {
	client redis.UniversalClient
}

func NewRedisPublisher(client redis.UniversalClient) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, username string, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, Channel(username), data).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// RedisSubscriber streams a user's events from Redis.
type RedisSubscriber struct {
	client redis.UniversalClient
	logger logging.Logger
}

func NewRedisSubscriber(client redis.UniversalClient, logger logging.Logger) *RedisSubscriber {
	if logger == nil {
		logger = logging.Nop()
	}
	return &RedisSubscriber{client: client, logger: logger}
}

// Subscribe starts listening on username's channel. The returned channel is
// closed when ctx is done or the close function is called; the close
// function releases the Redis subscription and must always be called.
func (s *RedisSubscriber) Subscribe(ctx context.Context, username string) (<-chan Event, func() error, error) {
	ps := s.client.Subscribe(ctx, Channel(username))

	// wait for the subscription confirmation so no publish is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan Event)
	msgs := ps.Channel()

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					s.logger.Warn(ctx, "skipping malformed account event", "channel", msg.Channel, "error", err)
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

	return out, ps.Close, nil
}
