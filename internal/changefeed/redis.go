package changefeed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisFeed relays changes through a Redis pub/sub channel so every server
// instance sharing the store sees every write. Local listeners are fed only
// from the channel, never directly, so each change is seen exactly once.
type RedisFeed struct {
	client  *redis.Client
	channel string
	hub     *Hub
	pubsub  *redis.PubSub
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  *slog.Logger
}

// NewRedisFeed connects to Redis and starts relaying the channel.
func NewRedisFeed(ctx context.Context, url, channel string) (*RedisFeed, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	defer cancelPing()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	pubsub := client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(pingCtx); err != nil {
		_ = pubsub.Close()
		_ = client.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	relayCtx, cancel := context.WithCancel(context.Background())
	f := &RedisFeed{
		client:  client,
		channel: channel,
		hub:     NewHub(),
		pubsub:  pubsub,
		cancel:  cancel,
		logger:  slog.Default(),
	}
	f.wg.Add(1)
	go f.relay(relayCtx)
	return f, nil
}

// Publish sends the change to the Redis channel.
func (f *RedisFeed) Publish(ctx context.Context, c Change) error {
	data, err := Encode(c)
	if err != nil {
		return err
	}
	if err := f.client.Publish(ctx, f.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}
	return nil
}

// Listen registers a local listener.
func (f *RedisFeed) Listen() *Listener {
	return f.hub.Listen()
}

// Close stops relaying and releases the Redis connection.
func (f *RedisFeed) Close() error {
	f.cancel()
	err := f.pubsub.Close()
	f.wg.Wait()
	_ = f.hub.Close()
	if cerr := f.client.Close(); err == nil {
		err = cerr
	}
	return err
}

func (f *RedisFeed) relay(ctx context.Context) {
	defer f.wg.Done()
	msgs := f.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			c, err := Decode([]byte(msg.Payload))
			if err != nil {
				f.logger.WarnContext(ctx, "dropping malformed change", "channel", msg.Channel, "error", err)
				continue
			}
			_ = f.hub.Publish(ctx, c)
		}
	}
}
