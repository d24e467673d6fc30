package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/linkedge-backend/pkg/config"
	"github.com/angelmondragon/linkedge-backend/pkg/eventbus"
)

func TestPublishSendsKeyAndHeaders(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndSucceed()
	c := &Client{producer: producer}

	id, err := c.Publish(context.Background(), &eventbus.Message{
		Topic:      "post-created-topic",
		Key:        "post-1",
		Data:       []byte(`{"postId":"post-1"}`),
		Attributes: map[string]string{eventbus.AttrEventType: "post_created"},
	})
	require.NoError(t, err)
	require.Contains(t, id, "post-created-topic/")
	require.NoError(t, producer.Close())
}

func TestPublishWrapsProducerError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	c := &Client{producer: producer}

	_, err := c.Publish(context.Background(), &eventbus.Message{Topic: "t", Key: "k"})
	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, producer.Close())
}

type stalledProducer struct {
	sarama.SyncProducer
	release chan struct{}
}

func (p *stalledProducer) SendMessage(*sarama.ProducerMessage) (int32, int64, error) {
	<-p.release
	return 0, 0, nil
}

func TestPublishReturnsWhenContextExpires(t *testing.T) {
	producer := &stalledProducer{release: make(chan struct{})}
	defer close(producer.release)
	c := &Client{producer: producer}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := c.Publish(ctx, &eventbus.Message{Topic: "t", Key: "k"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), time.Second)
}

func TestToProducerMessage(t *testing.T) {
	pm := toProducerMessage(&eventbus.Message{
		Topic:      "t",
		Key:        "a:b",
		Data:       []byte("x"),
		Attributes: map[string]string{eventbus.AttrPartitionKey: "a:b"},
	})
	key, err := pm.Key.Encode()
	require.NoError(t, err)
	require.Equal(t, "a:b", string(key))
	require.Len(t, pm.Headers, 1)
	require.Equal(t, eventbus.AttrPartitionKey, string(pm.Headers[0].Key))

	unkeyed := toProducerMessage(&eventbus.Message{Topic: "t"})
	require.Nil(t, unkeyed.Key)
}

func TestNewSaramaConfig(t *testing.T) {
	cfg, err := newSaramaConfig(config.KafkaConfig{
		ClientID:       "linkedge",
		Version:        "3.6.0",
		SessionTimeout: 20 * time.Second,
		PublishTimeout: 4 * time.Second,
	})
	require.NoError(t, err)
	require.Equal(t, "linkedge", cfg.ClientID)
	require.True(t, cfg.Producer.Return.Successes)
	require.Equal(t, 20*time.Second, cfg.Consumer.Group.Session.Timeout)
	require.Equal(t, 4*time.Second, cfg.Producer.Timeout)
	require.Equal(t, 4*time.Second, cfg.Net.WriteTimeout)

	_, err = newSaramaConfig(config.KafkaConfig{Version: "not-a-version"})
	require.Error(t, err)
}

func TestGroupID(t *testing.T) {
	require.Equal(t, "linkedge-connection-notifier-requested", groupID("linkedge", "connection-notifier-requested"))
	require.Equal(t, "solo", groupID("", "solo"))
}

func TestConsumeClaimMarksAfterAck(t *testing.T) {
	session := newFakeSession()
	claim := newFakeClaim(consumerMessage(0), consumerMessage(1))

	var seen []int
	h := &groupHandler{handler: func(ctx context.Context, msg *eventbus.Message) eventbus.Result {
		seen = append(seen, msg.DeliveryAttempt)
		require.Equal(t, "evt-1", msg.Attr(eventbus.AttrEventID))
		return eventbus.Ack
	}}

	require.NoError(t, h.ConsumeClaim(session, claim))
	require.Equal(t, []int{1, 1}, seen)
	require.Len(t, session.marked, 2)
}

func TestConsumeClaimRedeliversNackInPlace(t *testing.T) {
	session := newFakeSession()
	claim := newFakeClaim(consumerMessage(7))

	calls := 0
	h := &groupHandler{
		maxRedeliveries: 5,
		handler: func(ctx context.Context, msg *eventbus.Message) eventbus.Result {
			calls++
			if calls < 3 {
				return eventbus.Nack
			}
			return eventbus.Ack
		},
	}

	require.NoError(t, h.ConsumeClaim(session, claim))
	require.Equal(t, 3, calls)
	require.Len(t, session.marked, 1)
}

func TestConsumeClaimGivesUpAfterMaxRedeliveries(t *testing.T) {
	session := newFakeSession()
	claim := newFakeClaim(consumerMessage(1))

	calls := 0
	h := &groupHandler{
		maxRedeliveries: 2,
		handler: func(ctx context.Context, msg *eventbus.Message) eventbus.Result {
			calls++
			return eventbus.Nack
		},
	}

	require.NoError(t, h.ConsumeClaim(session, claim))
	require.Equal(t, 3, calls)
	require.Len(t, session.marked, 1)
}

func TestConsumeClaimStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	session := &fakeSession{ctx: ctx}
	claim := newFakeClaim(consumerMessage(1))

	h := &groupHandler{
		maxRedeliveries: 10,
		redeliveryDelay: time.Hour,
		handler: func(context.Context, *eventbus.Message) eventbus.Result {
			cancel()
			return eventbus.Nack
		},
	}

	require.NoError(t, h.ConsumeClaim(session, claim))
	require.Empty(t, session.marked)
}

func TestNilClientGuards(t *testing.T) {
	var c *Client
	require.NoError(t, c.Close())
	require.Error(t, c.Ping(context.Background()))
	_, err := c.Publish(context.Background(), &eventbus.Message{})
	require.Error(t, err)
	require.Error(t, c.Subscribe(context.Background(), eventbus.Subscription{}, nil))
	_, err = NewClient(context.Background(), config.KafkaConfig{}, nil)
	require.Error(t, err)
}

type fakeSession struct {
	sarama.ConsumerGroupSession
	ctx    context.Context
	marked []*sarama.ConsumerMessage
}

func newFakeSession() *fakeSession {
	return &fakeSession{ctx: context.Background()}
}

func (s *fakeSession) Context() context.Context { return s.ctx }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	ch chan *sarama.ConsumerMessage
}

func newFakeClaim(msgs ...*sarama.ConsumerMessage) *fakeClaim {
	ch := make(chan *sarama.ConsumerMessage, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	close(ch)
	return &fakeClaim{ch: ch}
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.ch }

func consumerMessage(offset int64) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{
		Topic:     "send-connection-request-topic",
		Partition: 0,
		Offset:    offset,
		Key:       []byte("a:b"),
		Value:     []byte(`{}`),
		Headers:   []*sarama.RecordHeader{{Key: []byte(eventbus.AttrEventID), Value: []byte("evt-1")}},
	}
}
