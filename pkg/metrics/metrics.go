package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Booking
	AppointmentsBooked      prometheus.Counter
	BookingRejections       *prometheus.CounterVec
	AppointmentsCancelled   prometheus.Counter
	AppointmentsRescheduled prometheus.Counter
	AppointmentsCompleted   prometheus.Counter
	CompanionRecordFailures prometheus.Counter

	// Records
	RecordUploads     *prometheus.CounterVec
	SignedURLFailures prometheus.Counter

	// Events and notifications
	EventsPublished   *prometheus.CounterVec
	NotificationsSent *prometheus.CounterVec
}

// New registers every metric on reg. Tests pass a fresh prometheus.NewRegistry().
func New(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AppointmentsBooked: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "appointments_booked_total",
			Help:      "Appointments successfully booked",
		}),
		BookingRejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "rejections_total",
			Help:      "Bookings rejected before insert, by reason",
		}, []string{"reason"}),
		AppointmentsCancelled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "appointments_cancelled_total",
			Help:      "Appointments cancelled",
		}),
		AppointmentsRescheduled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "appointments_rescheduled_total",
			Help:      "Appointments moved to a new time",
		}),
		AppointmentsCompleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "appointments_completed_total",
			Help:      "Past appointments marked completed by the sweep",
		}),
		CompanionRecordFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "companion_record_failures_total",
			Help:      "Care-link record writes that failed after a successful booking",
		}),
		RecordUploads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "records",
			Name:      "uploads_total",
			Help:      "Record uploads, by uploader role and outcome",
		}, []string{"role", "status"}),
		SignedURLFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "records",
			Name:      "signed_url_failures_total",
			Help:      "Signed download URLs that could not be generated",
		}),
		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Domain events handed to the broker, by type and outcome",
		}, []string{"type", "status"}),
		NotificationsSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "sent_total",
			Help:      "Notification emails, by event type and outcome",
		}, []string{"type", "status"}),
	}
}
