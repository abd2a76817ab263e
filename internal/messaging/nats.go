// Package messaging carries chat change events over NATS. The reference
// backend publishes one event per affected user; clients use them only as a
// hint to poll early.
package messaging

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectUser is the per-user event subject prefix: chat.user.<user_id>.
const SubjectUser = "chat.user"

// Event types.
const (
	EventMessage      = "message"
	EventTyping       = "typing"
	EventRead         = "read"
	EventRoom         = "room"
	EventNotification = "notification"
)

// UserEvent tells a user that something they can see has changed.
type UserEvent struct {
	Type       string    `json:"type"`
	ChatroomID int64     `json:"chatroom_id,omitempty"`
	MessageID  int64     `json:"message_id,omitempty"`
	At         time.Time `json:"at"`
}

// UserSubject returns the subject events for userID are published on.
func UserSubject(userID int64) string {
	return SubjectUser + "." + strconv.FormatInt(userID, 10)
}

// NATSClient wraps the NATS connection with helper methods for pub/sub.
type NATSClient struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
	Timeout       time.Duration // initial connect timeout
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Name:          "chatsync",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
		Timeout:       2 * time.Second,
	}
}

// NewNATSClient connects to NATS with the given config. It returns an error
// if the initial connection fails.
func NewNATSClient(config NATSConfig) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.Timeout(config.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &NATSClient{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// Publish sends data to the given NATS subject.
func (c *NATSClient) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// PublishUserEvent sends event to userID's subject.
func (c *NATSClient) PublishUserEvent(userID int64, event UserEvent) error {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("messaging: marshal %s event: %w", event.Type, err)
	}
	if err := c.Publish(UserSubject(userID), data); err != nil {
		return fmt.Errorf("messaging: publish to user %d: %w", userID, err)
	}
	return nil
}

// Subscribe registers a handler for the given subject and stores the
// subscription for later cleanup.
func (c *NATSClient) Subscribe(subject string, handler func(msg *nats.Msg)) error {
	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	if old, ok := c.subs[subject]; ok {
		old.Unsubscribe()
	}
	c.subs[subject] = sub
	c.mu.Unlock()
	return nil
}

// SubscribeUserEvents decodes events on userID's subject. Undecodable
// payloads are delivered as an event with an empty Type.
func (c *NATSClient) SubscribeUserEvents(userID int64, handler func(UserEvent)) error {
	return c.Subscribe(UserSubject(userID), func(msg *nats.Msg) {
		var event UserEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			log.Printf("[nats] bad event on %s: %v", msg.Subject, err)
			event = UserEvent{}
		}
		handler(event)
	})
}

// UnsubscribeUserEvents stops delivery for userID.
func (c *NATSClient) UnsubscribeUserEvents(userID int64) error {
	return c.unsubscribe(UserSubject(userID))
}

// Flush waits until the server has processed everything sent so far.
func (c *NATSClient) Flush() error {
	return c.conn.Flush()
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for subject, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("[nats] drain %s: %v", subject, err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}
	log.Printf("[nats] client closed")
}

func (c *NATSClient) unsubscribe(subject string) error {
	c.mu.Lock()
	sub, ok := c.subs[subject]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("nats: no subscription for subject %s", subject)
	}
	delete(c.subs, subject)
	c.mu.Unlock()

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe %s: %w", subject, err)
	}
	return nil
}
