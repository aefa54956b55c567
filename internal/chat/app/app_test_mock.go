package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"hiresphere/internal/chat/domain"
	"hiresphere/internal/chat/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockPortalAPI Mock PortalAPI
type MockPortalAPI struct {
	mock.Mock
}

// FetchRooms mock fetch room list
func (m *MockPortalAPI) FetchRooms(ctx context.Context) ([]domain.Room, error) {
	args := m.Called(ctx)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Room), args.Error(1)
	}
	return nil, args.Error(1)
}

// FetchHistory mock fetch room history
func (m *MockPortalAPI) FetchHistory(ctx context.Context, roomID int64) ([]domain.ChatMessage, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.ChatMessage), args.Error(1)
	}
	return nil, args.Error(1)
}

// MarkRoomRead mock read receipt
func (m *MockPortalAPI) MarkRoomRead(ctx context.Context, roomID int64) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

// fakeChannel is an in-memory Channel: it records publishes, delivers
// payloads straight into topic handlers and can simulate a mid-session drop.
type fakeChannel struct {
	mu           sync.Mutex
	connectErr   error
	connectCount int
	connected    bool
	onDisconnect func(error)
	subs         map[string]*fakeSubscription
	subscribeErr map[string]error
	published    []publishedMessage
}

type publishedMessage struct {
	destination string
	payload     interface{}
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		subs:         make(map[string]*fakeSubscription),
		subscribeErr: make(map[string]error),
	}
}

func (c *fakeChannel) OnDisconnect(cb func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = cb
}

func (c *fakeChannel) Connect(ctx context.Context, authToken string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectCount++
	if c.connectErr != nil {
		return c.connectErr
	}
	c.connected = true
	return nil
}

func (c *fakeChannel) Subscribe(topic string, handler func(payload []byte)) (repository.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.subscribeErr[topic]; err != nil {
		return nil, err
	}
	if _, ok := c.subs[topic]; ok {
		return nil, errors.New("duplicate subscription: " + topic)
	}
	sub := &fakeSubscription{
		id:      uuid.New().String(),
		topic:   topic,
		handler: handler,
		channel: c,
	}
	c.subs[topic] = sub
	return sub, nil
}

func (c *fakeChannel) Publish(destination string, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, publishedMessage{destination: destination, payload: payload})
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return nil
}

// Drop simulates a mid-session connection loss.
func (c *fakeChannel) Drop(err error) {
	c.mu.Lock()
	c.connected = false
	cb := c.onDisconnect
	c.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

// Deliver marshals v and hands it to the topic's handler, as the transport
// would on a live event.
func (c *fakeChannel) Deliver(topic string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	c.mu.Lock()
	sub := c.subs[topic]
	c.mu.Unlock()
	if sub != nil {
		sub.handler(data)
	}
}

func (c *fakeChannel) connects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectCount
}

func (c *fakeChannel) setConnectErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectErr = err
}

func (c *fakeChannel) subCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func (c *fakeChannel) hasSub(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subs[topic]
	return ok
}

func (c *fakeChannel) publishedTo(destination string) []publishedMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []publishedMessage
	for _, p := range c.published {
		if p.destination == destination {
			out = append(out, p)
		}
	}
	return out
}

type fakeSubscription struct {
	id      string
	topic   string
	handler func(payload []byte)
	channel *fakeChannel
}

func (s *fakeSubscription) ID() string    { return s.id }
func (s *fakeSubscription) Topic() string { return s.topic }

func (s *fakeSubscription) Cancel() error {
	s.channel.mu.Lock()
	defer s.channel.mu.Unlock()
	delete(s.channel.subs, s.topic)
	return nil
}
