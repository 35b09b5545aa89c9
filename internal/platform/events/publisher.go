// Package events publishes patient state changes so downstream consumers
// (caregiver notification, audit) can react to a sync without polling.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// StateChange is emitted after a sync commits.
type StateChange struct {
	PatientID uuid.UUID `json:"patient_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	At        time.Time `json:"at"`
}

// Publisher delivers state-change events.
type Publisher interface {
	PublishStateChange(ctx context.Context, evt StateChange) error
	Close() error
}

// NopPublisher discards events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishStateChange(context.Context, StateChange) error { return nil }
func (NopPublisher) Close() error                                         { return nil }

// KafkaPublisher writes events to a Kafka topic keyed by patient id, so all
// events for one patient land on one partition in order.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates an async writer. Delivery failures are reported
// through logger; they never fail the request that triggered them.
func NewKafkaPublisher(brokers []string, topic string, logger zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
			WriteTimeout: 5 * time.Second,
			Async:        true,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					logger.Error().Err(err).
						Str("topic", topic).
						Int("messages", len(messages)).
						Msg("state change delivery failed")
				}
			},
		},
	}
}

func (p *KafkaPublisher) PublishStateChange(ctx context.Context, evt StateChange) error {
	msg, err := newStateChangeMessage(evt)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write state change: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func newStateChangeMessage(evt StateChange) (kafka.Message, error) {
	value, err := json.Marshal(evt)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal state change: %w", err)
	}
	return kafka.Message{
		Key:   []byte(evt.PatientID.String()),
		Value: value,
		Time:  evt.At,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("patient.state_changed")},
		},
	}, nil
}
