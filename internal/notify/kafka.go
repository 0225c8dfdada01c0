package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer used by Kafka.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Kafka publishes notifications as JSON to a topic.
type Kafka struct {
	Writer MessageWriter
}

// NewKafkaWriter builds a writer for the given comma-separated brokers.
func NewKafkaWriter(brokers, topic string) *kafkago.Writer {
	var addrs []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			addrs = append(addrs, b)
		}
	}
	return &kafkago.Writer{
		Addr:                   kafkago.TCP(addrs...),
		Topic:                  topic,
		Balancer:               &kafkago.LeastBytes{},
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

func (k Kafka) Notify(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	if err := k.Writer.WriteMessages(ctx, kafkago.Message{Key: []byte(n.CoinID), Value: payload}); err != nil {
		return fmt.Errorf("kafka write alert: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (k Kafka) Close() error {
	return k.Writer.Close()
}
