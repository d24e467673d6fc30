package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/angelmondragon/linkedge-backend/pkg/config"
	"github.com/angelmondragon/linkedge-backend/pkg/eventbus"
	"github.com/angelmondragon/linkedge-backend/pkg/logger"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Client adapts Google Cloud Pub/Sub v2 to eventbus.Bus. Publishing is
// ordered by message key.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
	logg      *logger.Logger

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

var _ eventbus.Bus = (*Client)(nil)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoSubscriptions   = errors.New("pubsub subscription name is required")
)

// NewClient creates a Pub/Sub v2 client and ensures the configured subscriptions exist.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errProjectIDRequired
	}

	psClient, err := pubsub.NewClient(ctx, gcp.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		client:     psClient,
		projectID:  gcp.ProjectID,
		cfg:        cfg,
		logg:       logg,
		publishers: make(map[string]*pubsub.Publisher),
	}

	if err := c.ensureSubscriptionsConfigured(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(ctx, "pubsub client initialized")
	}

	return c, nil
}

func (c *Client) ensureSubscriptionsConfigured(ctx context.Context) error {
	names := subscriptionNames(c.cfg)
	if len(names) == 0 {
		return errNoSubscriptions
	}
	for _, name := range names {
		if err := c.ensureSubscriptionExists(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func subscriptionNames(cfg config.PubSubConfig) []string {
	names := []string{}
	for _, name := range cfg.Subscriptions() {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}

func (c *Client) ensureSubscriptionExists(ctx context.Context, name string) error {
	fullName := resourceName(c.projectID, "subscriptions", name)
	if fullName == "" {
		return fmt.Errorf("subscription %q not configured", name)
	}

	_, err := c.client.SubscriptionAdminClient.GetSubscription(
		ctx,
		&pubsubpb.GetSubscriptionRequest{Subscription: fullName},
	)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("subscription %q does not exist", name)
		}
		return fmt.Errorf("checking subscription %q: %w", name, err)
	}

	return nil
}

// Publish sends msg to msg.Topic and waits for the server id. A failed
// ordered publish pauses the ordering key inside the library, so the key is
// resumed before returning the error and the relay can retry it.
func (c *Client) Publish(ctx context.Context, msg *eventbus.Message) (string, error) {
	if msg == nil {
		return "", errors.New("message required")
	}
	publisher := c.publisher(msg.Topic)
	if publisher == nil {
		return "", fmt.Errorf("publisher not configured for topic %q", msg.Topic)
	}

	result := publisher.Publish(ctx, &pubsub.Message{
		Data:        msg.Data,
		Attributes:  msg.Attributes,
		OrderingKey: msg.Key,
	})
	id, err := result.Get(ctx)
	if err != nil {
		if msg.Key != "" {
			publisher.ResumePublish(msg.Key)
		}
		return "", err
	}
	return id, nil
}

func (c *Client) publisher(topic string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := resourceName(c.projectID, "topics", topic)
	if fullName == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.publishers[fullName]; ok {
		return p
	}
	p := c.client.Publisher(fullName)
	p.EnableMessageOrdering = true
	c.publishers[fullName] = p
	return p
}

// Subscribe receives from the subscription named sub.Name. The topic is bound
// to the subscription on the Pub/Sub side.
func (c *Client) Subscribe(ctx context.Context, sub eventbus.Subscription, handler eventbus.Handler) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	fullName := resourceName(c.projectID, "subscriptions", sub.Name)
	if fullName == "" {
		return fmt.Errorf("subscription %q not configured", sub.Name)
	}
	subscriber := c.client.Subscriber(fullName)
	if c.cfg.MaxOutstandingMessages > 0 {
		subscriber.ReceiveSettings.MaxOutstandingMessages = c.cfg.MaxOutstandingMessages
	}

	return subscriber.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		if handler(ctx, fromPubSub(sub.Topic, m)) == eventbus.Nack {
			m.Nack()
			return
		}
		m.Ack()
	})
}

func fromPubSub(topic string, m *pubsub.Message) *eventbus.Message {
	msg := &eventbus.Message{
		ID:          m.ID,
		Topic:       topic,
		Key:         m.OrderingKey,
		Data:        m.Data,
		Attributes:  m.Attributes,
		PublishTime: m.PublishTime,
	}
	if m.DeliveryAttempt != nil {
		msg.DeliveryAttempt = *m.DeliveryAttempt
	}
	if msg.Key == "" {
		msg.Key = m.Attributes[eventbus.AttrPartitionKey]
	}
	return msg
}

// Ping verifies Pub/Sub connectivity by checking configured subscriptions exist.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil {
		return errors.New("pubsub client not initialized")
	}
	return c.ensureSubscriptionsConfigured(ctx)
}

// Close flushes pending publishes and releases the client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for _, p := range c.publishers {
		p.Stop()
	}
	c.publishers = map[string]*pubsub.Publisher{}
	c.mu.Unlock()
	return c.client.Close()
}

// resourceName expands a bare id into projects/<project>/<kind>/<id>. Names
// already in resource form are returned unchanged.
func resourceName(projectID, kind, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+kind+"/") {
		return n
	}
	p := strings.TrimSpace(projectID)
	if p == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/%s/%s", p, kind, n)
}
