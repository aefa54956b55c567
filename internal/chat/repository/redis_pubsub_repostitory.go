package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	errprocess "hiresphere/pkg/err"
	"hiresphere/pkg/logger"
	"hiresphere/pkg/token"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// RedisPubSub renders the Channel contract on Redis pub/sub. One
// redis.PubSub is held per subscribed topic; Redis guarantees delivery
// order per channel, which is the per-destination ordering the core needs.
type RedisPubSub struct {
	client        *redis.Client
	probeInterval time.Duration

	mu           sync.Mutex
	connected    bool
	onDisconnect func(error)
	probeCancel  context.CancelFunc
}

// NewRedisPubSub create RedisPubSub
func NewRedisPubSub(client *redis.Client, probeInterval time.Duration) *RedisPubSub {
	if probeInterval <= 0 {
		probeInterval = 10 * time.Second
	}
	return &RedisPubSub{
		client:        client,
		probeInterval: probeInterval,
	}
}

// OnDisconnect installs the connection-loss callback.
func (r *RedisPubSub) OnDisconnect(cb func(err error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onDisconnect = cb
}

// Connect validates the bearer token, pings Redis and starts the liveness
// probe. The probe reports loss through the OnDisconnect callback.
func (r *RedisPubSub) Connect(ctx context.Context, authToken string) error {
	if _, err := token.ParseJWT(authToken); err != nil {
		return errprocess.Wrap("handshake rejected", err)
	}
	if err := r.client.Ping(ctx).Err(); err != nil {
		return errprocess.Wrap("handshake failed", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.connected {
		return nil
	}
	r.connected = true

	probeCtx, cancel := context.WithCancel(context.Background())
	r.probeCancel = cancel
	go r.probe(probeCtx)

	return nil
}

// probe pings on an interval and reports the first failure as a drop.
func (r *RedisPubSub) probe(ctx context.Context) {
	ticker := time.NewTicker(r.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.client.Ping(ctx).Err(); err != nil {
				r.reportLoss(err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (r *RedisPubSub) reportLoss(err error) {
	r.mu.Lock()
	if !r.connected {
		r.mu.Unlock()
		return
	}
	r.connected = false
	if r.probeCancel != nil {
		r.probeCancel()
		r.probeCancel = nil
	}
	cb := r.onDisconnect
	r.mu.Unlock()

	logger.Log.Errorf("pubsub connection lost:", err)
	if cb != nil {
		cb(err)
	}
}

// Subscribe opens one redis.PubSub on topic and pumps raw payloads into
// handler until the subscription is cancelled.
func (r *RedisPubSub) Subscribe(topic string, handler func(payload []byte)) (Subscription, error) {
	sub := r.client.Subscribe(context.Background(), topic)
	// Receive forces the SUBSCRIBE round-trip so failures surface here,
	// not silently inside the pump goroutine.
	if _, err := sub.Receive(context.Background()); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	handle := &redisSubscription{
		id:    uuid.New().String(),
		topic: topic,
		sub:   sub,
	}

	go func() {
		ch := sub.Channel()
		for m := range ch {
			handler([]byte(m.Payload))
		}
		logger.Log.Debug(fmt.Sprintf("%s , sub close", topic))
	}()

	return handle, nil
}

// Publish serializes message and publishes it to destination.
func (r *RedisPubSub) Publish(destination string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return r.client.Publish(context.Background(), destination, data).Err()
}

// Close stops the probe and marks the channel disconnected. The redis
// client itself stays open, it belongs to the caller.
func (r *RedisPubSub) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected = false
	if r.probeCancel != nil {
		r.probeCancel()
		r.probeCancel = nil
	}
	return nil
}

type redisSubscription struct {
	id    string
	topic string
	sub   *redis.PubSub
}

func (s *redisSubscription) ID() string    { return s.id }
func (s *redisSubscription) Topic() string { return s.topic }

// Cancel closes the underlying pubsub, which ends the pump goroutine.
func (s *redisSubscription) Cancel() error {
	return s.sub.Close()
}
