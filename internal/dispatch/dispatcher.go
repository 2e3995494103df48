package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/haiminhle/storefront-backend/pkg/config"
	"github.com/haiminhle/storefront-backend/pkg/db/models"
	"github.com/haiminhle/storefront-backend/pkg/logger"
	"github.com/haiminhle/storefront-backend/pkg/metrics"
	"github.com/haiminhle/storefront-backend/pkg/outbox"
)

// notifier receives the decoded event; today that means a notification row.
type notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, eventType string, payload json.RawMessage) error
}

// Dispatcher drains pending outbox rows into notifications. Rows that keep
// failing are dead-lettered after the configured attempt budget.
type Dispatcher struct {
	repo    *outbox.Repository
	notify  notifier
	logg    *logger.Logger
	metrics *metrics.OutboxMetrics
	cfg     config.OutboxConfig
}

// New builds a dispatcher.
func New(repo *outbox.Repository, notify notifier, logg *logger.Logger, m *metrics.OutboxMetrics, cfg config.OutboxConfig) (*Dispatcher, error) {
	if repo == nil {
		return nil, fmt.Errorf("dispatch: outbox repository is required")
	}
	if notify == nil {
		return nil, fmt.Errorf("dispatch: notifier is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("dispatch: logger is required")
	}
	return &Dispatcher{repo: repo, notify: notify, logg: logg, metrics: m, cfg: cfg}, nil
}

// Run polls until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := d.DrainOnce(ctx); err != nil {
				d.logg.Error(ctx, "outbox drain failed", err)
			}
		}
	}
}

// DrainOnce processes at most one batch and reports how many rows dispatched.
func (d *Dispatcher) DrainOnce(ctx context.Context) (int, error) {
	rows, err := d.repo.FetchPending(d.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	d.metrics.SetBacklog(len(rows))

	dispatched := 0
	for i := range rows {
		row := rows[i]
		if err := d.deliver(ctx, row); err != nil {
			d.logg.Warn(ctx, fmt.Sprintf("dispatching outbox event %s: %v", row.ID, err))
			if merr := d.repo.MarkFailed(row.ID, err, d.cfg.MaxAttempts); merr != nil {
				d.logg.Error(ctx, "recording outbox failure", merr)
			}
			d.metrics.IncFailed()
			continue
		}
		if err := d.repo.MarkDispatched(row.ID); err != nil {
			d.logg.Error(ctx, "marking outbox event dispatched", err)
			continue
		}
		dispatched++
		d.metrics.IncDispatched()
	}
	return dispatched, nil
}

func (d *Dispatcher) deliver(ctx context.Context, row models.OutboxEvent) error {
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &envelope); err != nil {
		return fmt.Errorf("decoding envelope: %w", err)
	}
	return d.notify.Notify(ctx, envelope.RecipientID, string(row.EventType), envelope.Data)
}
