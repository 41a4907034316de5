package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/careportal/internal/email"
	"github.com/jwalitptl/careportal/internal/model"
	"github.com/jwalitptl/careportal/internal/service/event"
	"github.com/jwalitptl/careportal/pkg/logger"
	"github.com/jwalitptl/careportal/pkg/messaging"
	"github.com/jwalitptl/careportal/pkg/metrics"
)

// Directory looks up who an event is about.
type Directory interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Profile, error)
}

type NotifierConfig struct {
	Channel       string
	RetryAttempts int
	RetryDelay    time.Duration
	// Location is the clinic time zone appointment times are written in.
	Location *time.Location
}

// Notifier emails patients about changes to their appointments and records.
type Notifier struct {
	broker    messaging.Broker
	directory Directory
	mailer    email.Service
	config    NotifierConfig
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewNotifier(
	broker messaging.Broker,
	directory Directory,
	mailer email.Service,
	config NotifierConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Notifier {
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 1
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &Notifier{
		broker:    broker,
		directory: directory,
		mailer:    mailer,
		config:    config,
		logger:    logger,
		metrics:   metrics,
	}
}

// Start consumes the event channel until ctx is done or the subscription closes.
func (n *Notifier) Start(ctx context.Context) error {
	messages, err := n.broker.Subscribe(ctx, n.config.Channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	n.logger.Info("Starting notifier", "channel", n.config.Channel)

	for {
		select {
		case <-ctx.Done():
			n.logger.Info("Shutting down notifier")
			return nil
		case raw, ok := <-messages:
			if !ok {
				n.logger.Info("Event subscription closed")
				return nil
			}
			n.handle(ctx, raw)
		}
	}
}

func (n *Notifier) handle(ctx context.Context, raw []byte) {
	evt, err := event.Decode(raw)
	if err != nil {
		n.logger.Warn(err, "Dropping malformed event")
		return
	}

	err = n.notify(ctx, evt)
	status := "ok"
	switch {
	case errors.Is(err, errSkipped):
		return
	case err != nil:
		status = "error"
		n.logger.Error(err, "Failed to send notification",
			"event_id", evt.ID.String(),
			"event_type", string(evt.Type))
	}
	n.metrics.NotificationsSent.WithLabelValues(string(evt.Type), status).Inc()
}

var errSkipped = errors.New("no notification for event")

func (n *Notifier) notify(ctx context.Context, evt *model.Event) error {
	var (
		patientID uuid.UUID
		subject   string
		body      string
	)

	switch evt.Type {
	case model.EventAppointmentBooked, model.EventAppointmentCancelled, model.EventAppointmentRescheduled:
		var p model.AppointmentEvent
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return fmt.Errorf("failed to decode appointment payload: %w", err)
		}
		patientID = p.PatientID
		subject, body = n.appointmentMessage(evt.Type, p)
	case model.EventRecordUploaded:
		var p model.RecordEvent
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return fmt.Errorf("failed to decode record payload: %w", err)
		}
		// Patients already know about what they uploaded themselves.
		if p.UploaderID == p.PatientID {
			return errSkipped
		}
		patientID = p.PatientID
		subject = "A new document was added to your records"
		body = fmt.Sprintf("<p>Your doctor added <strong>%s</strong> to your medical records.</p>", html.EscapeString(p.FileName))
	default:
		return errSkipped
	}

	patient, err := n.directory.Get(ctx, patientID)
	if err != nil {
		return fmt.Errorf("failed to look up patient %s: %w", patientID, err)
	}
	if patient.Email == "" {
		return errSkipped
	}

	return retry(ctx, n.config.RetryAttempts, n.config.RetryDelay, func() error {
		return n.mailer.SendCustom(ctx, patient.Email, subject, body)
	})
}

func (n *Notifier) appointmentMessage(t model.EventType, p model.AppointmentEvent) (string, string) {
	when := p.Date.In(n.config.Location).Format("Monday 2 January 2006 at 15:04")
	switch t {
	case model.EventAppointmentCancelled:
		return "Your appointment was cancelled",
			fmt.Sprintf("<p>Your appointment on %s has been cancelled.</p>", when)
	case model.EventAppointmentRescheduled:
		return "Your appointment was rescheduled",
			fmt.Sprintf("<p>Your appointment has moved to %s.</p>", when)
	default:
		return "Your appointment is confirmed",
			fmt.Sprintf("<p>Your appointment is booked for %s.</p>", when)
	}
}

// retry stops waiting between attempts once ctx is done.
func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(err, ctx.Err())
		case <-t.C:
		}
	}
	return err
}
