package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"market-chart-lab/internal/observability"
)

// DefaultChannel is the Redis pub/sub channel carrying notifications.
const DefaultChannel = "market-chart:notifications"

// RelayOptions configures a RedisRelay.
type RelayOptions struct {
	Channel string
	Logger  *zerolog.Logger
}

// RedisRelay bridges a Redis pub/sub channel and the in-process bus so that
// confirmations published by other processes reach local subscribers.
type RedisRelay struct {
	client  redis.UniversalClient
	channel string
	bus     Publisher
	logger  zerolog.Logger
}

// NewRedisRelay creates a relay republishing messages from Redis onto bus.
func NewRedisRelay(client redis.UniversalClient, bus Publisher, opts *RelayOptions) *RedisRelay {
	channel := DefaultChannel
	logger := log.Logger
	if opts != nil {
		if opts.Channel != "" {
			channel = opts.Channel
		}
		if opts.Logger != nil {
			logger = *opts.Logger
		}
	}
	return &RedisRelay{
		client:  client,
		channel: channel,
		bus:     bus,
		logger:  logger.With().Str("component", "redis-relay").Str("channel", channel).Logger(),
	}
}

// Run subscribes to the channel and republishes until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.logger.Info().Msg("relay subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(m.Payload)
		}
	}
}

// handle decodes one payload and publishes it; malformed payloads are dropped.
func (r *RedisRelay) handle(payload string) bool {
	msg, err := DecodeMessage([]byte(payload))
	if err != nil {
		observability.RecordMalformed("redis")
		r.logger.Warn().Err(err).Msg("dropping malformed notification")
		return false
	}
	r.bus.Publish(msg)
	return true
}

// Forward publishes msg to the Redis channel for other processes.
func (r *RedisRelay) Forward(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", r.channel, err)
	}
	return nil
}

// forwardTimeout bounds one Publish through a relay publisher.
const forwardTimeout = 5 * time.Second

// Publisher returns a Publisher that forwards every message to the Redis
// channel instead of the local bus. Publish reports one delivery per
// successful forward.
func (r *RedisRelay) Publisher(ctx context.Context) Publisher {
	return &relayPublisher{relay: r, ctx: ctx}
}

type relayPublisher struct {
	relay *RedisRelay
	ctx   context.Context
}

func (p *relayPublisher) Publish(msg Message) int {
	ctx, cancel := context.WithTimeout(p.ctx, forwardTimeout)
	defer cancel()
	if err := p.relay.Forward(ctx, msg); err != nil {
		p.relay.logger.Warn().Err(err).Str("market", msg.MarketID).Msg("forward notification failed")
		return 0
	}
	return 1
}
