package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/progression-engine/internal/domain/shared"
	"github.com/alem-hub/progression-engine/pkg/circuitbreaker"
)

// DefaultChannel is the pub/sub channel progression events are fanned out on.
const DefaultChannel = "events:progression"

// ══════════════════════════════════════════════════════════════════════════════
// REDIS EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// RedisEventBus delivers events to local handlers and mirrors them on a Redis
// channel. Events received from other instances are delivered locally; an
// instance ignores its own messages because it already handled them.
type RedisEventBus struct {
	client     *redis.Client
	local      *InMemoryEventBus
	channel    string
	instanceID string
	breaker    *circuitbreaker.CircuitBreaker
	newID      func() string
	logger     *slog.Logger

	mu      sync.Mutex
	closed  bool
	pubsub  *redis.PubSub
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	timeout time.Duration
}

// RedisEventBusConfig contains configuration for RedisEventBus.
type RedisEventBusConfig struct {
	// Client is the Redis client to use
	Client *redis.Client

	// Local receives every event, published here or remotely.
	Local *InMemoryEventBus

	// Channel is the Redis channel for events (default: DefaultChannel)
	Channel string

	// InstanceID uniquely identifies this instance (default: random uuid)
	InstanceID string

	// Breaker guards PUBLISH; nil means circuitbreaker.EventBusBreaker.
	Breaker *circuitbreaker.CircuitBreaker

	// PublishTimeout bounds a single PUBLISH (default: 2s).
	PublishTimeout time.Duration

	// NewID generates envelope ids (default: uuid.NewString).
	NewID func() string

	// Logger for structured logging
	Logger *slog.Logger
}

// NewRedisEventBus creates a Redis-backed bus. Call Start to receive remote events.
func NewRedisEventBus(config RedisEventBusConfig) (*RedisEventBus, error) {
	if config.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Local == nil {
		config.Local = NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, Logger: config.Logger})
	}
	if config.Channel == "" {
		config.Channel = DefaultChannel
	}
	if config.InstanceID == "" {
		config.InstanceID = uuid.NewString()
	}
	if config.NewID == nil {
		config.NewID = uuid.NewString
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = 2 * time.Second
	}

	logger := config.Logger.With("component", "redis_event_bus", "instance_id", config.InstanceID)
	if config.Breaker == nil {
		config.Breaker = circuitbreaker.EventBusBreaker(func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		})
	}

	return &RedisEventBus{
		client:     config.Client,
		local:      config.Local,
		channel:    config.Channel,
		instanceID: config.InstanceID,
		breaker:    config.Breaker,
		newID:      config.NewID,
		logger:     logger,
		timeout:    config.PublishTimeout,
	}, nil
}

// Subscribe registers a handler for a specific event type.
func (b *RedisEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.local.Subscribe(eventType, handler)
}

// SubscribeAll registers a handler for all events.
func (b *RedisEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.local.SubscribeAll(handler)
}

// Publish delivers the event locally and mirrors it on Redis. A Redis failure
// is logged; local delivery still counts as success.
func (b *RedisEventBus) Publish(event shared.Event) error {
	if event == nil {
		return ErrNilEvent
	}

	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrEventBusClosed
	}

	if err := b.local.Publish(event); err != nil {
		return err
	}

	data, err := EncodeEvent(event, b.newID(), b.instanceID)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	err = b.breaker.Execute(ctx, func(ctx context.Context) error {
		return b.client.Publish(ctx, b.channel, string(data)).Err()
	})
	if err != nil {
		b.logger.Warn("failed to mirror event to redis",
			"event_type", event.EventType(),
			"user_id", event.AggregateID(),
			"error", err,
		)
	}

	return nil
}

// Start subscribes to the channel and delivers remote events until ctx is
// done or Close is called.
func (b *RedisEventBus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}
	if b.pubsub != nil {
		return errors.New("redis event bus already started")
	}

	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	b.pubsub = pubsub
	b.cancel = cancel

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.subscriptionLoop(loopCtx, pubsub.Channel())
	}()

	b.logger.Info("subscribed to redis channel", "channel", b.channel)
	return nil
}

func (b *RedisEventBus) subscriptionLoop(ctx context.Context, messages <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			b.handleMessage(msg)
		}
	}
}

// handleMessage delivers a remote event to local handlers.
func (b *RedisEventBus) handleMessage(msg *redis.Message) {
	event, origin, err := DecodeEvent([]byte(msg.Payload))
	if err != nil {
		b.logger.Error("failed to decode remote event", "channel", msg.Channel, "error", err)
		return
	}

	if origin == b.instanceID {
		return
	}

	if err := b.local.Publish(event); err != nil {
		b.logger.Error("failed to deliver remote event", "event_type", event.EventType(), "error", err)
	}
}

// Close stops the subscription and the local bus.
func (b *RedisEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	pubsub, cancel := b.pubsub, b.cancel
	b.mu.Unlock()

	var errs []error
	if cancel != nil {
		cancel()
	}
	if pubsub != nil {
		if err := pubsub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pubsub: %w", err))
		}
	}
	b.wg.Wait()

	if err := b.local.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close local bus: %w", err))
	}

	b.logger.Info("redis event bus closed")
	return errors.Join(errs...)
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRE FORMAT
// ══════════════════════════════════════════════════════════════════════════════

type wireEnvelope struct {
	shared.EventEnvelope
	Origin string `json:"origin"`
}

type correlated interface {
	Correlation() string
}

// EncodeEvent renders an event as a JSON envelope tagged with its origin.
func EncodeEvent(event shared.Event, id, origin string) ([]byte, error) {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return nil, err
	}

	env := wireEnvelope{
		EventEnvelope: shared.EventEnvelope{
			ID:          id,
			Type:        event.EventType(),
			AggregateID: event.AggregateID(),
			Timestamp:   event.OccurredAt(),
			Version:     1,
			Payload:     payload,
		},
		Origin: origin,
	}
	if c, ok := event.(correlated); ok {
		env.CorrelationID = c.Correlation()
	}

	return json.Marshal(env)
}

// DecodeEvent parses an envelope produced by EncodeEvent.
func DecodeEvent(data []byte) (*RemoteEvent, string, error) {
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, "", err
	}
	if env.Type == "" {
		return nil, "", errors.New("envelope without event type")
	}

	payload := make(map[string]interface{})
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, "", fmt.Errorf("payload: %w", err)
		}
	}

	return &RemoteEvent{envelope: env.EventEnvelope, payload: payload}, env.Origin, nil
}

// RemoteEvent is an event received from another instance.
type RemoteEvent struct {
	envelope shared.EventEnvelope
	payload  map[string]interface{}
}

// EventType implements shared.Event.
func (e *RemoteEvent) EventType() shared.EventType { return e.envelope.Type }

// AggregateID implements shared.Event.
func (e *RemoteEvent) AggregateID() string { return e.envelope.AggregateID }

// OccurredAt implements shared.Event.
func (e *RemoteEvent) OccurredAt() time.Time { return e.envelope.Timestamp }

// Payload implements shared.Event. JSON numbers decode as float64.
func (e *RemoteEvent) Payload() map[string]interface{} { return e.payload }

// Correlation returns the correlation id carried by the envelope.
func (e *RemoteEvent) Correlation() string { return e.envelope.CorrelationID }

// ID returns the envelope id.
func (e *RemoteEvent) ID() string { return e.envelope.ID }

var _ shared.EventBus = (*RedisEventBus)(nil)
