package worker

import (
	"context"
	"time"

	"github.com/jwalitptl/careportal/pkg/logger"
)

// Completer marks appointments whose time has passed as completed.
type Completer interface {
	CompletePast(ctx context.Context) (int64, error)
}

type CompletionWorker struct {
	appointments Completer
	interval     time.Duration
	logger       *logger.Logger
}

func NewCompletionWorker(appointments Completer, interval time.Duration, logger *logger.Logger) *CompletionWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &CompletionWorker{
		appointments: appointments,
		interval:     interval,
		logger:       logger,
	}
}

// Start sweeps once immediately, then on every tick until ctx is done.
func (w *CompletionWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *CompletionWorker) sweep(ctx context.Context) {
	rows, err := w.appointments.CompletePast(ctx)
	if err != nil {
		w.logger.Error(err, "Failed to complete past appointments")
		return
	}
	if rows > 0 {
		w.logger.Info("Completed past appointments", "count", rows)
	}
}
