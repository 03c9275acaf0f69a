package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/artha-erp/artha/internal/documents"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeOverdueScan flips payable documents past their due date.
	TaskTypeOverdueScan = "docs:overdue_scan"
	// TaskTypeQuoteExpiry expires sent quotes past their expiry date.
	TaskTypeQuoteExpiry = "docs:quote_expiry"
)

// SweepPayload carries the as-of instant for a document sweep.
type SweepPayload struct {
	AsOf time.Time `json:"as_of"`
}

// NewOverdueScanTask constructs an Asynq task.
func NewOverdueScanTask(payload SweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeOverdueScan, data), nil
}

// NewQuoteExpiryTask constructs an Asynq task.
func NewQuoteExpiryTask(payload SweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeQuoteExpiry, data), nil
}

// Sweeper runs the periodic document sweeps.
type Sweeper struct {
	logger  *slog.Logger
	service *documents.Service
}

// NewSweeper constructs a Sweeper.
func NewSweeper(logger *slog.Logger, service *documents.Service) *Sweeper {
	return &Sweeper{logger: logger, service: service}
}

// HandleOverdueScan processes TaskTypeOverdueScan tasks.
func (s *Sweeper) HandleOverdueScan(ctx context.Context, t *asynq.Task) error {
	asOf, err := sweepAsOf(t)
	if err != nil {
		return err
	}
	count, err := s.service.MarkOverdue(ctx, asOf)
	if err != nil {
		return err
	}
	s.logger.Info("overdue scan complete", slog.Int("flipped", count))
	return nil
}

// HandleQuoteExpiry processes TaskTypeQuoteExpiry tasks.
func (s *Sweeper) HandleQuoteExpiry(ctx context.Context, t *asynq.Task) error {
	asOf, err := sweepAsOf(t)
	if err != nil {
		return err
	}
	count, err := s.service.ExpireQuotes(ctx, asOf)
	if err != nil {
		return err
	}
	s.logger.Info("quote expiry complete", slog.Int("expired", count))
	return nil
}

func sweepAsOf(t *asynq.Task) (time.Time, error) {
	var payload SweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return time.Time{}, asynq.SkipRetry
	}
	if payload.AsOf.IsZero() {
		return time.Now(), nil
	}
	return payload.AsOf, nil
}
