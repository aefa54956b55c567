package repository

import "context"

// Subscription is the cancellable handle bound to one topic.
type Subscription interface {
	ID() string
	Topic() string
	Cancel() error
}

// Channel is the persistent pub/sub connection the sync core runs on.
// Exactly one Channel is held per client session.
type Channel interface {
	// Connect authenticates with the bearer token and establishes the
	// connection. Loss after a successful Connect is reported through the
	// OnDisconnect callback, never as a Connect return.
	Connect(ctx context.Context, authToken string) error
	// Subscribe binds handler to topic. Handler calls are ordered per topic.
	Subscribe(topic string, handler func(payload []byte)) (Subscription, error)
	// Publish serializes payload and sends it to destination.
	Publish(destination string, payload interface{}) error
	// OnDisconnect installs the connection-loss callback. Must be set
	// before Connect.
	OnDisconnect(cb func(err error))
	// Close drops the connection. Idempotent.
	Close() error
}
