package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the Redis channel reload events are published on
const DefaultChannel = "mapping:reload"

// RedisConfig holds the connection settings of a RedisNotifier
type RedisConfig struct {
	// URL is a redis:// URL, e.g. redis://localhost:6379/0
	URL string
	// Channel defaults to DefaultChannel
	Channel string
}

// RedisNotifier shares reload events between instances serving the same
// domain through a Redis channel
type RedisNotifier struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisNotifier connects to the Redis server of cfg
func NewRedisNotifier(cfg RedisConfig, logger *zap.Logger) (*RedisNotifier, error) {
	options, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisNotifierWithClient(client, cfg.Channel, logger), nil
}

// NewRedisNotifierWithClient creates a notifier using an existing client
func NewRedisNotifierWithClient(client *redis.Client, channel string, logger *zap.Logger) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisNotifier{client: client, channel: channel, logger: logger}
}

// Channel returns the channel name
func (n *RedisNotifier) Channel() string {
	return n.channel
}

// Publish sends event to every subscribed instance
func (n *RedisNotifier) Publish(ctx context.Context, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subscribe calls handle for every event published on the channel until
// ctx is cancelled. Malformed messages are logged and skipped. The
// subscription is active when Subscribe returns.
func (n *RedisNotifier) Subscribe(ctx context.Context, handle func(*Event)) error {
	sub := n.client.Subscribe(ctx, n.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", n.channel, err)
	}

	go func() {
		defer sub.Close()
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					n.logger.Warn("ignoring malformed reload event", zap.Error(err))
					continue
				}
				handle(&event)
			}
		}
	}()

	return nil
}

// Close closes the Redis client
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
