package events

import (
	"context"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/DrGermanius/orderingest/internal/model"
)

type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaPublisher sends one Avro-encoded order.created record per persisted order, keyed by
// order_id.
type KafkaPublisher struct {
	client producer
	codec  *Codec
	topic  string
	logger *zap.SugaredLogger
}

// NewKafkaPublisher creates the producer. deliveryTimeout fails records that cannot be delivered
// in time; without it kgo retries an unreachable broker forever.
func NewKafkaPublisher(brokers []string, topic string, deliveryTimeout time.Duration, logger *zap.SugaredLogger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.RecordDeliveryTimeout(deliveryTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return newKafkaPublisher(client, topic, logger)
}

func newKafkaPublisher(client producer, topic string, logger *zap.SugaredLogger) (*KafkaPublisher, error) {
	codec, err := NewCodec()
	if err != nil {
		return nil, err
	}
	return &KafkaPublisher{client: client, codec: codec, topic: topic, logger: logger}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, orders []model.Order) error {
	records := make([]*kgo.Record, 0, len(orders))
	for _, o := range orders {
		value, err := p.codec.Encode(OrderCreated(o))
		if err != nil {
			return err
		}
		records = append(records, &kgo.Record{
			Topic:     p.topic,
			Key:       []byte(o.OrderID),
			Value:     value,
			Timestamp: o.CreatedAt,
		})
	}

	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce %d order events: %w", len(records), err)
	}
	p.logger.Debugf("published %d order events to %s", len(records), p.topic)
	return nil
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}
