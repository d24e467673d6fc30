package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/angelmondragon/linkedge-backend/pkg/config"
	"github.com/angelmondragon/linkedge-backend/pkg/eventbus"
	"github.com/angelmondragon/linkedge-backend/pkg/logger"
)

// Client adapts a Kafka cluster to eventbus.Bus. Messages are keyed by the
// partition key, so per-key order follows partition order.
type Client struct {
	client   sarama.Client
	producer sarama.SyncProducer
	cfg      config.KafkaConfig
	logg     *logger.Logger
}

var _ eventbus.Bus = (*Client)(nil)

// NewClient connects to the configured brokers and prepares a sync producer.
func NewClient(ctx context.Context, cfg config.KafkaConfig, logg *logger.Logger) (*Client, error) {
	brokers := cfg.BrokerList()
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	saramaCfg, err := newSaramaConfig(cfg)
	if err != nil {
		return nil, err
	}

	client, err := sarama.NewClient(brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("creating kafka client: %w", err)
	}
	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("creating kafka producer: %w", err)
	}

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("kafka client initialized brokers=%v", brokers))
	}
	return &Client{client: client, producer: producer, cfg: cfg, logg: logg}, nil
}

func newSaramaConfig(cfg config.KafkaConfig) (*sarama.Config, error) {
	c := sarama.NewConfig()
	version := sarama.V2_8_0_0
	if cfg.Version != "" {
		parsed, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return nil, fmt.Errorf("parsing kafka version: %w", err)
		}
		version = parsed
	}
	c.Version = version
	if cfg.ClientID != "" {
		c.ClientID = cfg.ClientID
	}

	c.Producer.RequiredAcks = sarama.WaitForAll
	c.Producer.Partitioner = sarama.NewHashPartitioner
	c.Producer.Return.Successes = true
	c.Producer.Return.Errors = true
	c.Producer.Idempotent = true
	c.Net.MaxOpenRequests = 1
	if cfg.PublishTimeout > 0 {
		c.Producer.Timeout = cfg.PublishTimeout
		c.Net.DialTimeout = cfg.PublishTimeout
		c.Net.ReadTimeout = cfg.PublishTimeout
		c.Net.WriteTimeout = cfg.PublishTimeout
	}

	c.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	c.Consumer.Offsets.Initial = sarama.OffsetOldest
	if cfg.SessionTimeout > 0 {
		c.Consumer.Group.Session.Timeout = cfg.SessionTimeout
	}
	if cfg.HeartbeatTimeout > 0 {
		c.Consumer.Group.Heartbeat.Interval = cfg.HeartbeatTimeout
	}
	return c, nil
}

type sendResult struct {
	partition int32
	offset    int64
	err       error
}

// Publish sends msg synchronously and returns "topic/partition/offset".
// Sarama cannot abort an in-flight send, so when ctx ends first Publish
// returns ctx.Err() and the send finishes under the producer timeouts. The
// message may still land; consumers dedupe on event id.
func (c *Client) Publish(ctx context.Context, msg *eventbus.Message) (string, error) {
	if c == nil || c.producer == nil {
		return "", errors.New("kafka producer not initialized")
	}
	if msg == nil {
		return "", errors.New("message required")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	pm := toProducerMessage(msg)
	done := make(chan sendResult, 1)
	go func() {
		partition, offset, err := c.producer.SendMessage(pm)
		done <- sendResult{partition: partition, offset: offset, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("sending to %s: %w", msg.Topic, ctx.Err())
	case res := <-done:
		if res.err != nil {
			return "", fmt.Errorf("sending to %s: %w", msg.Topic, res.err)
		}
		return fmt.Sprintf("%s/%d/%d", msg.Topic, res.partition, res.offset), nil
	}
}

func toProducerMessage(msg *eventbus.Message) *sarama.ProducerMessage {
	pm := &sarama.ProducerMessage{
		Topic: msg.Topic,
		Value: sarama.ByteEncoder(msg.Data),
	}
	if msg.Key != "" {
		pm.Key = sarama.StringEncoder(msg.Key)
	}
	for k, v := range msg.Attributes {
		pm.Headers = append(pm.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}
	return pm
}

// Subscribe joins the consumer group "<prefix>-<sub.Name>" on sub.Topic and
// blocks until ctx is canceled.
func (c *Client) Subscribe(ctx context.Context, sub eventbus.Subscription, handler eventbus.Handler) error {
	if c == nil || c.client == nil {
		return errors.New("kafka client not initialized")
	}
	group, err := sarama.NewConsumerGroupFromClient(groupID(c.cfg.GroupPrefix, sub.Name), c.client)
	if err != nil {
		return fmt.Errorf("creating consumer group: %w", err)
	}
	defer group.Close()

	go func() {
		for err := range group.Errors() {
			if c.logg != nil {
				c.logg.Error(ctx, "kafka consumer group error", err)
			}
		}
	}()

	h := &groupHandler{
		handler:         handler,
		maxRedeliveries: c.cfg.MaxRedeliveries,
		redeliveryDelay: c.cfg.RedeliveryDelay,
		logg:            c.logg,
	}
	for {
		if err := group.Consume(ctx, []string{sub.Topic}, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return fmt.Errorf("consuming %s: %w", sub.Topic, err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func groupID(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "-" + name
}

// Ping refreshes cluster metadata.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("kafka client not initialized")
	}
	if c.client.Closed() {
		return errors.New("kafka client closed")
	}
	return c.client.RefreshMetadata()
}

// Close stops the producer and the underlying client.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.producer != nil {
		if err := c.producer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.client != nil && !c.client.Closed() {
		if err := c.client.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// groupHandler runs the eventbus handler per claimed message. Kafka has no
// per-message nack, so a Nack is redelivered in place with a delay up to
// maxRedeliveries before the offset is committed anyway.
type groupHandler struct {
	handler         eventbus.Handler
	maxRedeliveries int
	redeliveryDelay time.Duration
	logg            *logger.Logger
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if !h.deliver(ctx, m) {
				return nil
			}
			session.MarkMessage(m, "")
		}
	}
}

// deliver returns false when ctx ended before the message was settled.
func (h *groupHandler) deliver(ctx context.Context, m *sarama.ConsumerMessage) bool {
	for attempt := 1; ; attempt++ {
		msg := fromConsumerMessage(m)
		msg.DeliveryAttempt = attempt
		if h.handler(ctx, msg) == eventbus.Ack {
			return true
		}
		if attempt > h.maxRedeliveries {
			if h.logg != nil {
				h.logg.Warn(ctx, fmt.Sprintf("kafka message dropped after %d attempts topic=%s partition=%d offset=%d", attempt, m.Topic, m.Partition, m.Offset))
			}
			return true
		}
		if h.redeliveryDelay > 0 {
			t := time.NewTimer(h.redeliveryDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				return false
			case <-t.C:
			}
		} else if ctx.Err() != nil {
			return false
		}
	}
}

func fromConsumerMessage(m *sarama.ConsumerMessage) *eventbus.Message {
	attrs := make(map[string]string, len(m.Headers))
	for _, h := range m.Headers {
		if h == nil {
			continue
		}
		attrs[string(h.Key)] = string(h.Value)
	}
	return &eventbus.Message{
		ID:          fmt.Sprintf("%s/%d/%d", m.Topic, m.Partition, m.Offset),
		Topic:       m.Topic,
		Key:         string(m.Key),
		Data:        m.Value,
		Attributes:  attrs,
		PublishTime: m.Timestamp,
	}
}
