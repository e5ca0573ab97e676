package downstream

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"

	"seq-aggregator/protocol/frame"
	"seq-aggregator/shared/middleware"
)

// KafkaPublisher mirrors the result frame onto a Kafka topic. The record key is the
// payload hashcode and the value is the full wire frame.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaPublisher connects a synchronous producer to brokers
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.MaxMessageBytes = frame.HeaderSize + frame.MaxPayloadLength

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return NewKafkaPublisherWithProducer(producer, topic), nil
}

// NewKafkaPublisherWithProducer wraps an existing producer
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// Name identifies the publisher in logs
func (p *KafkaPublisher) Name() string {
	return "kafka://" + p.topic
}

// Forward publishes the package frame
func (p *KafkaPublisher) Forward(ctx context.Context, pkg *frame.Package) error {
	data, err := frame.EncodePackage(pkg)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(pkg.Header.Hashcode.String()),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("data_type"), Value: []byte(pkg.Header.DataType.String())},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to publish result to topic %s: %w", p.topic, err)
	}
	middleware.LogDebug(publisherComponent, "Published result to %s partition %d offset %d", p.topic, partition, offset)
	return nil
}

// Close shuts the producer down
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
