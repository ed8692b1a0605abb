package events

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
)

// KafkaSink writes lifecycle events to a Kafka topic keyed by ride id.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink creates a KafkaSink.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.Hash{}})
	return &KafkaSink{writer: w}
}

func (k *KafkaSink) Name() string { return "kafka" }

// Write publishes e as JSON.
func (k *KafkaSink) Write(ctx context.Context, e LifecycleEvent) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(e.Key()), Value: b})
}

// Close flushes and closes the writer.
func (k *KafkaSink) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
