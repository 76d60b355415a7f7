// Package feed carries orders and account snapshots between processes over
// watermill topics: redis streams in production, go channels in process.
package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Feed struct {
	logger     *zap.SugaredLogger
	publisher  message.Publisher
	subscriber message.Subscriber
	shared     bool
}

// NewRedis publishes to and consumes from redis streams. Every process
// sharing consumerGroup sees each message once.
func NewRedis(client redis.UniversalClient, consumerGroup string, logger *zap.SugaredLogger) (*Feed, error) {
	adapter := newZapAdapter(logger)
	pub, err := redisstream.NewPublisher(redisstream.PublisherConfig{
		Client: client,
	}, adapter)
	if err != nil {
		return nil, fmt.Errorf("redis publisher: %w", err)
	}
	sub, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
		Client:        client,
		ConsumerGroup: consumerGroup,
	}, adapter)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("redis subscriber: %w", err)
	}
	return &Feed{logger: logger, publisher: pub, subscriber: sub}, nil
}

// NewLocal keeps messages in memory. Subscribers joining late still receive
// what was published before.
func NewLocal(logger *zap.SugaredLogger) *Feed {
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 1024,
		Persistent:          true,
	}, newZapAdapter(logger))
	return &Feed{logger: logger, publisher: ch, subscriber: ch, shared: true}
}

func (f *Feed) Publish(topic string, payload []byte) error {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := f.publisher.Publish(topic, msg); err != nil {
		f.logger.Errorw("publish failed", "topic", topic, "msg_uuid", msg.UUID, "err", err)
		return err
	}
	f.logger.Debugw("publish ok", "topic", topic, "msg_uuid", msg.UUID, "len", len(payload))
	return nil
}

// Subscribe returns the payloads published on topic. Each message is acked
// once its payload has been handed over; on cancellation the message in hand
// is nacked for redelivery.
func (f *Feed) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	msgs, err := f.subscriber.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	out := make(chan []byte)
	go func() {
		defer close(out)
		for msg := range msgs {
			select {
			case out <- msg.Payload:
				msg.Ack()
			case <-ctx.Done():
				msg.Nack()
				return
			}
		}
	}()
	return out, nil
}

func (f *Feed) Close() error {
	err := f.publisher.Close()
	if !f.shared {
		err = errors.Join(err, f.subscriber.Close())
	}
	return err
}
