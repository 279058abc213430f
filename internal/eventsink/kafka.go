// Package eventsink forwards domain events to external systems.
package eventsink

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/chainagent/chainagent/internal/eventbus"
)

const sinkBuffer = 256

// KafkaSink subscribes to the event bus and writes every event to a
// Kafka topic, keyed by the event's resource so per-user ordering is
// preserved across partitions.
type KafkaSink struct {
	bus    *eventbus.Bus
	writer *kafka.Writer
}

func NewKafkaSink(bus *eventbus.Bus, brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		bus: bus,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

// Run forwards events until ctx is cancelled. Delivery is best-effort:
// a write failure is logged and the event is skipped, never retried.
func (s *KafkaSink) Run(ctx context.Context) error {
	id, events := s.bus.Subscribe(sinkBuffer)
	defer s.bus.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return s.writer.Close()
		case ev, ok := <-events:
			if !ok {
				return s.writer.Close()
			}
			data, err := json.Marshal(ev)
			if err != nil {
				slog.ErrorContext(ctx, "failed to marshal event for kafka", "id", ev.ID, "error", err)
				continue
			}
			msg := kafka.Message{
				Key:   []byte(ev.ResourceID),
				Value: data,
			}
			if err := s.writer.WriteMessages(ctx, msg); err != nil {
				slog.WarnContext(ctx, "failed to write event to kafka", "id", ev.ID, "type", ev.Type, "error", err)
			}
		}
	}
}
