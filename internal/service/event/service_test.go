package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/careportal/internal/model"
	"github.com/jwalitptl/careportal/pkg/metrics"
)

type captureBroker struct {
	channel string
	msg     interface{}
	err     error
}

func (b *captureBroker) Publish(_ context.Context, channel string, message interface{}) error {
	b.channel = channel
	b.msg = message
	return b.err
}

func (b *captureBroker) Subscribe(context.Context, string) (<-chan []byte, error) { return nil, nil }
func (b *captureBroker) Close() error                                               { return nil }

func TestEmitWrapsPayload(t *testing.T) {
	b := &captureBroker{}
	m := metrics.New(prometheus.NewRegistry(), "test")
	svc := NewEventService(b, "careportal.events", m)

	payload := model.AppointmentEvent{AppointmentID: uuid.New(), Reason: "checkup"}
	require.NoError(t, svc.Emit(context.Background(), model.EventAppointmentBooked, payload))

	assert.Equal(t, "careportal.events", b.channel)
	evt, ok := b.msg.(model.Event)
	require.True(t, ok)
	assert.Equal(t, model.EventAppointmentBooked, evt.Type)

	var got model.AppointmentEvent
	require.NoError(t, json.Unmarshal(evt.Payload, &got))
	assert.Equal(t, payload.AppointmentID, got.AppointmentID)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("appointment.booked", "ok")))
}

func TestEmitCountsBrokerFailure(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry(), "test")
	svc := NewEventService(&captureBroker{err: errors.New("down")}, "c", m)

	err := svc.Emit(context.Background(), model.EventRecordUploaded, model.RecordEvent{})
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("record.uploaded", "error")))
}

func TestDecode(t *testing.T) {
	raw, err := json.Marshal(model.Event{ID: uuid.New(), Type: model.EventAppointmentCancelled, Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)

	evt, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, model.EventAppointmentCancelled, evt.Type)

	_, err = Decode([]byte(`{"id":"` + uuid.NewString() + `"}`))
	assert.Error(t, err)

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}
