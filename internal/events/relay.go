package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"videoapi/internal/config"
	"videoapi/internal/metrics"
	"videoapi/internal/model"
)

const relayQueueSize = 256

type envelope struct {
	Partitions []string            `json:"partitions"`
	Event      model.ProgressEvent `json:"event"`
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Relay forwards published events through a Redis channel so that observers
// connected to any API instance receive them. Events that arrive on the
// channel, including this instance's own, are delivered to the local Hub.
type Relay struct {
	client  *redis.Client
	channel string
	hub     *Hub
	queue   chan envelope
	ready   chan struct{}
	log     zerolog.Logger
	metrics *metrics.Metrics
}

var _ Publisher = (*Relay)(nil)

func NewRelay(client *redis.Client, channel string, hub *Hub, log zerolog.Logger, m *metrics.Metrics) *Relay {
	return &Relay{
		client:  client,
		channel: channel,
		hub:     hub,
		queue:   make(chan envelope, relayQueueSize),
		ready:   make(chan struct{}),
		log:     log.With().Str("component", "events").Str("channel", channel).Logger(),
		metrics: m,
	}
}

// Publish queues ev for the channel. A full queue drops the event.
func (r *Relay) Publish(ev model.ProgressEvent, partitions ...string) {
	select {
	case r.queue <- envelope{Partitions: partitions, Event: ev}:
	default:
		r.metrics.EventDropped()
		r.log.Warn().Str("video_id", ev.VideoID).Int("progress", ev.Progress).Msg("relay queue full, event dropped")
	}
}

// Ready is closed once the channel subscription is confirmed.
func (r *Relay) Ready() <-chan struct{} { return r.ready }

// Run subscribes to the channel and pumps events both ways until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	close(r.ready)
	r.log.Info().Msg("relay subscribed")

	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-r.queue:
			r.send(ctx, env)
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("relay subscription closed")
			}
			r.deliver(msg.Payload)
		}
	}
}

func (r *Relay) send(ctx context.Context, env envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		r.log.Error().Err(err).Msg("relay marshal failed")
		return
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.metrics.EventDropped()
		r.log.Error().Err(err).Str("video_id", env.Event.VideoID).Msg("relay publish failed")
	}
}

func (r *Relay) deliver(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.log.Warn().Err(err).Msg("relay decode failed")
		return
	}
	r.hub.Publish(env.Event, env.Partitions...)
}
