// Package redisbus fans committed ledger events out over Redis Pub/Sub.
package redisbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"lendchain/core/events"
	"lendchain/core/types"
)

const (
	// DefaultChannel receives every event when no channel is configured.
	DefaultChannel = "lendchain.events"

	publishTimeout = 2 * time.Second
	queueSize      = 256
)

// Options configures Dial.
type Options struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Publisher is an events.Emitter that publishes each event as JSON. Publishing
// happens on a background worker so the node is never blocked by Redis.
type Publisher struct {
	client  publisher
	closer  func() error
	channel string
	logger  *slog.Logger

	queue   chan []byte
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// Dial connects to Redis, verifies the connection and starts the publisher.
func Dial(ctx context.Context, opts Options, logger *slog.Logger) (*Publisher, error) {
	if strings.TrimSpace(opts.Addr) == "" {
		return nil, errors.New("redisbus: address required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redisbus: ping: %w", err)
	}
	p := New(rdb, opts.Channel, logger)
	p.closer = rdb.Close
	return p, nil
}

// New wraps an existing client.
func New(client publisher, channel string, logger *slog.Logger) *Publisher {
	if strings.TrimSpace(channel) == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{
		client:  client,
		channel: channel,
		logger:  logger.With(slog.String("component", "redisbus")),
		queue:   make(chan []byte, queueSize),
		done:    make(chan struct{}),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// Channel returns the Pub/Sub channel events are published on.
func (p *Publisher) Channel() string { return p.channel }

// Emit implements events.Emitter.
func (p *Publisher) Emit(evt events.Event) {
	payload, ok := evt.(events.Payload)
	if !ok || payload.Event() == nil {
		return
	}
	data, err := Encode(payload.Event())
	if err != nil {
		p.logger.Warn("encode event failed", slog.String("type", evt.EventType()), slog.Any("error", err))
		return
	}
	select {
	case <-p.done:
		return
	default:
	}
	select {
	case p.queue <- data:
	default:
		p.dropped.Add(1)
	}
}

// Encode renders evt as published on the channel.
func Encode(evt *types.Event) ([]byte, error) {
	if evt == nil {
		return nil, errors.New("redisbus: nil event")
	}
	return json.Marshal(evt)
}

// Stats reports how many events were dropped on a full queue and how many
// publishes failed.
func (p *Publisher) Stats() (dropped, failed uint64) {
	return p.dropped.Load(), p.failed.Load()
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for {
		select {
		case data := <-p.queue:
			p.publish(data)
		case <-p.done:
			for {
				select {
				case data := <-p.queue:
					p.publish(data)
				default:
					return
				}
			}
		}
	}
}

func (p *Publisher) publish(data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		p.failed.Add(1)
		p.logger.Warn("publish event failed", slog.String("channel", p.channel), slog.Any("error", err))
	}
}

// Close drains queued events and releases the connection.
func (p *Publisher) Close() error {
	p.once.Do(func() { close(p.done) })
	p.wg.Wait()
	if p.closer != nil {
		return p.closer()
	}
	return nil
}
