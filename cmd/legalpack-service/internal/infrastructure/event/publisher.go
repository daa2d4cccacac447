package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"dealtracker/cmd/legalpack-service/internal/biz"
	"dealtracker/cmd/legalpack-service/internal/conf"
)

// Event types emitted by the pipeline.
const (
	TypeAnalysisCompleted = "legalpack.analysis.completed"
	TypeDocumentFailed    = "legalpack.document.failed"
)

// envelope wraps every published event with an id and type.
type envelope struct {
	EventID      string      `json:"event_id"`
	EventType    string      `json:"event_type"`
	EventVersion string      `json:"event_version"`
	Payload      interface{} `json:"payload"`
	Timestamp    time.Time   `json:"timestamp"`
}

// Publisher emits pipeline events to Kafka.
type Publisher struct {
	writer *kafka.Writer
}

var _ biz.EventPublisher = (*Publisher)(nil)

// NewPublisher builds a Kafka publisher. Returns nil when events are
// disabled in config.
func NewPublisher(cfg *conf.Config) *Publisher {
	if !cfg.Events.Enabled || len(cfg.Events.Brokers) == 0 {
		return nil
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Events.Brokers...),
			Topic:        cfg.Events.Topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
	}
}

// PublishAnalysisCompleted emits the analysis-completed event.
func (p *Publisher) PublishAnalysisCompleted(ctx context.Context, event *biz.AnalysisCompletedEvent) error {
	return p.publish(ctx, TypeAnalysisCompleted, event.SessionID, event)
}

// PublishDocumentFailed emits one document-failed event.
func (p *Publisher) PublishDocumentFailed(ctx context.Context, event *biz.DocumentFailedEvent) error {
	return p.publish(ctx, TypeDocumentFailed, event.UploadID, event)
}

func (p *Publisher) publish(ctx context.Context, eventType, key string, payload interface{}) error {
	data, err := json.Marshal(envelope{
		EventID:      uuid.New().String(),
		EventType:    eventType,
		EventVersion: "1.0",
		Payload:      payload,
		Timestamp:    time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	})
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
