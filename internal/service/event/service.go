package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/careportal/internal/model"
	"github.com/jwalitptl/careportal/pkg/messaging"
	"github.com/jwalitptl/careportal/pkg/metrics"
)

// Emitter publishes domain events. Delivery is best effort.
type Emitter interface {
	Emit(ctx context.Context, eventType model.EventType, payload interface{}) error
}

type EventService struct {
	broker  messaging.Broker
	channel string
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewEventService(broker messaging.Broker, channel string, m *metrics.Metrics) *EventService {
	return &EventService{
		broker:  broker,
		channel: channel,
		metrics: m,
		now:     time.Now,
	}
}

func (s *EventService) Emit(ctx context.Context, eventType model.EventType, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		s.metrics.EventsPublished.WithLabelValues(string(eventType), "error").Inc()
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	evt := model.Event{
		ID:         uuid.New(),
		Type:       eventType,
		OccurredAt: s.now().UTC(),
		Payload:    payloadJSON,
	}

	if err := s.broker.Publish(ctx, s.channel, evt); err != nil {
		s.metrics.EventsPublished.WithLabelValues(string(eventType), "error").Inc()
		return fmt.Errorf("failed to publish event: %w", err)
	}

	s.metrics.EventsPublished.WithLabelValues(string(eventType), "ok").Inc()
	return nil
}

// Decode parses a message received from the broker channel.
func Decode(raw []byte) (*model.Event, error) {
	var evt model.Event
	if err := json.Unmarshal(raw, &evt); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	if evt.Type == "" {
		return nil, fmt.Errorf("event has no type")
	}
	return &evt, nil
}
