package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/logger"
)

const defaultRedisChannel = "directory:changefeed"

// RedisConfig captures the connection parameters for the cross-instance broker.
type RedisConfig struct {
	Address  string
	Username string
	Password string
	DB       int
	Channel  string
	Timeout  time.Duration
}

// RedisBroker relays events through Redis pub/sub so every server instance observes
// writes committed by its peers. Local subscribers are served by an embedded MemoryBroker
// fed from a single forwarder subscription.
type RedisBroker struct {
	rdb     *redis.Client
	channel string
	local   *MemoryBroker
	log     *zap.Logger
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewRedisBroker connects to Redis and verifies the connection with PING.
func NewRedisBroker(ctx context.Context, cfg RedisConfig) (*RedisBroker, error) {
	addr := strings.TrimSpace(cfg.Address)
	if addr == "" {
		return nil, errors.New("changefeed: redis address is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = defaultRedisChannel
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("changefeed: redis ping: %w", err)
	}

	return &RedisBroker{
		rdb:     rdb,
		channel: channel,
		local:   NewMemoryBroker(),
		log:     logger.WithModule("changefeed"),
	}, nil
}

// Start launches the forwarder that copies Redis messages into the local broker.
func (b *RedisBroker) Start(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("changefeed: redis subscribe: %w", err)
	}

	fwdCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})

	go func() {
		defer close(b.done)
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-fwdCtx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				event, err := decodeEvent(m.Payload)
				if err != nil {
					b.log.Warn("bad changefeed payload", zap.Error(err))
					continue
				}
				_ = b.local.Publish(fwdCtx, event)
			}
		}
	}()
	return nil
}

// Publish sends events to every instance. If Redis is unreachable the events are still
// delivered locally so this instance's subscribers stay current.
func (b *RedisBroker) Publish(ctx context.Context, events ...Event) error {
	var failed error
	for _, event := range events {
		raw, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("changefeed: encode event: %w", err)
		}
		if err := b.rdb.Publish(ctx, b.channel, raw).Err(); err != nil {
			failed = err
			break
		}
	}
	if failed != nil {
		b.log.Warn("redis publish failed; delivering locally", zap.Error(failed))
		_ = b.local.Publish(ctx, events...)
		return fmt.Errorf("changefeed: redis publish: %w", failed)
	}
	return nil
}

// Subscribe registers a local subscription.
func (b *RedisBroker) Subscribe(topics ...string) *Subscription {
	return b.local.Subscribe(topics...)
}

// Client exposes the underlying connection for components that share it.
func (b *RedisBroker) Client() *redis.Client {
	return b.rdb
}

// Ping checks the Redis connection.
func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

// Close stops the forwarder and closes the Redis client.
func (b *RedisBroker) Close() error {
	if b == nil {
		return nil
	}
	if b.cancel != nil {
		b.cancel()
		<-b.done
	}
	return b.rdb.Close()
}

func decodeEvent(payload string) (Event, error) {
	var event Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return Event{}, err
	}
	if strings.TrimSpace(event.Topic) == "" {
		return Event{}, errors.New("event topic is empty")
	}
	return event, nil
}
