package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event types emitted on the ride lifecycle topic.
const (
	TypeRideRequested = "ride_requested"
	TypeRideAccepted  = "ride_accepted"
	TypeRideCompleted = "ride_completed"
	TypeRideCancelled = "ride_cancelled"
)

// RideEvent is the wire form published to Kafka for every lifecycle
// transition. Key is the ride id so a partition sees a ride's events
// in order.
type RideEvent struct {
	Type      string    `json:"type"`
	RideID    string    `json:"ride_id"`
	CaptainID string    `json:"captain_id,omitempty"`
	Status    string    `json:"status"`
	Fare      float64   `json:"fare,omitempty"`
	At        time.Time `json:"at"`
}

// Producer publishes ride lifecycle events.
type Producer interface {
	Publish(ev RideEvent) error
	Close() error
}

type KafkaProducer struct {
	writer *kafka.Writer
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &KafkaProducer{writer: w}
}

func (k *KafkaProducer) Publish(ev RideEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b, _ := json.Marshal(ev)
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.RideID), Value: b})
}

func (k *KafkaProducer) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}

// NopProducer drops events. Used when Kafka is not configured.
type NopProducer struct{}

func (NopProducer) Publish(RideEvent) error { return nil }
func (NopProducer) Close() error            { return nil }
