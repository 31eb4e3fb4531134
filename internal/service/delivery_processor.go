package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/WossMusic/woss-royalties/internal/domain"
	"github.com/WossMusic/woss-royalties/internal/metrics"
)

const (
	deliveryBatchSize   = 10
	deliveryConcurrency = 4
)

type deliveryEventRepo interface {
	ClaimPending(ctx context.Context, tx *sql.Tx, limit int) ([]domain.DeliveryEvent, error)
	RecordAttempt(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.DeliveryEventStatus, lastErr *string) error
}

type withdrawalReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRecord, error)
}

type settlementDeliverer interface {
	RenderAndAttach(ctx context.Context, w *domain.WithdrawalRecord) error
	NotifyGenerated(ctx context.Context, w *domain.WithdrawalRecord) error
}

// DeliveryProcessor retries settlement side effects that failed after commit.
type DeliveryProcessor struct {
	events      deliveryEventRepo
	withdrawals withdrawalReader
	deliverer   settlementDeliverer
	db          txBeginner
	metrics     *metrics.Metrics
	logger      *slog.Logger
	interval    time.Duration
	maxAttempts int
}

func NewDeliveryProcessor(
	events deliveryEventRepo,
	withdrawals withdrawalReader,
	deliverer settlementDeliverer,
	db txBeginner,
	m *metrics.Metrics,
	logger *slog.Logger,
	interval time.Duration,
	maxAttempts int,
) *DeliveryProcessor {
	return &DeliveryProcessor{
		events:      events,
		withdrawals: withdrawals,
		deliverer:   deliverer,
		db:          db,
		metrics:     m,
		logger:      logger,
		interval:    interval,
		maxAttempts: maxAttempts,
	}
}

func (p *DeliveryProcessor) Start(ctx context.Context) {
	p.logger.Info("delivery processor started", "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("delivery processor stopped")
			return
		case <-ticker.C:
			if _, err := p.Poll(ctx); err != nil {
				p.logger.Error("delivery poll failed", "error", err)
			}
		}
	}
}

// Poll claims one batch of pending events, retries them and records the
// outcome. It returns the number of events claimed.
func (p *DeliveryProcessor) Poll(ctx context.Context) (int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("Poll: begin tx: %w", err)
	}
	defer tx.Rollback()

	events, err := p.events.ClaimPending(ctx, tx, deliveryBatchSize)
	if err != nil {
		return 0, fmt.Errorf("Poll: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	results := make([]error, len(events))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(deliveryConcurrency)
	for i, event := range events {
		g.Go(func() error {
			results[i] = p.process(gctx, event)
			return nil
		})
	}
	_ = g.Wait()

	for i, event := range events {
		status, lastErr := p.outcome(event, results[i])
		if err := p.events.RecordAttempt(ctx, tx, event.ID, status, lastErr); err != nil {
			return 0, fmt.Errorf("Poll: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("Poll: commit: %w", err)
	}
	return len(events), nil
}

func (p *DeliveryProcessor) outcome(event domain.DeliveryEvent, err error) (domain.DeliveryEventStatus, *string) {
	if err == nil {
		p.metrics.DeliveryRetries.WithLabelValues(string(event.Kind), "dispatched").Inc()
		p.logger.Info("delivery event dispatched",
			"delivery_event_id", event.ID,
			"withdrawal_id", event.WithdrawalID,
			"kind", event.Kind,
		)
		return domain.DeliveryEventStatusDispatched, nil
	}

	msg := err.Error()
	if event.Attempts+1 >= p.maxAttempts {
		p.metrics.DeliveryRetries.WithLabelValues(string(event.Kind), "failed").Inc()
		p.logger.Error("delivery event exhausted retries",
			"delivery_event_id", event.ID,
			"withdrawal_id", event.WithdrawalID,
			"kind", event.Kind,
			"attempts", event.Attempts+1,
			"error", err,
		)
		return domain.DeliveryEventStatusFailed, &msg
	}

	p.metrics.DeliveryRetries.WithLabelValues(string(event.Kind), "retry").Inc()
	p.logger.Warn("delivery event retry failed",
		"delivery_event_id", event.ID,
		"withdrawal_id", event.WithdrawalID,
		"kind", event.Kind,
		"attempts", event.Attempts+1,
		"error", err,
	)
	return domain.DeliveryEventStatusPending, &msg
}

func (p *DeliveryProcessor) process(ctx context.Context, event domain.DeliveryEvent) error {
	w, err := p.withdrawals.GetByID(ctx, event.WithdrawalID)
	if err != nil {
		return fmt.Errorf("process: %w", err)
	}

	// A reverted settlement has nothing left to deliver.
	if w.Status == domain.WithdrawalStatusReverted {
		p.logger.Info("withdrawal reverted, skipping delivery",
			"delivery_event_id", event.ID,
			"withdrawal_id", w.ID,
		)
		return nil
	}

	switch event.Kind {
	case domain.DeliveryEventKindRender:
		if w.DocumentArtifactRef != nil {
			return nil
		}
		err = p.deliverer.RenderAndAttach(ctx, w)
	case domain.DeliveryEventKindNotify:
		err = p.deliverer.NotifyGenerated(ctx, w)
	default:
		err = fmt.Errorf("unknown delivery kind %q", event.Kind)
	}
	if err != nil {
		return fmt.Errorf("process: %w", err)
	}
	return nil
}
