package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/WossMusic/woss-royalties/internal/domain"
	"github.com/WossMusic/woss-royalties/internal/logging"
	"github.com/WossMusic/woss-royalties/internal/metrics"
	"github.com/WossMusic/woss-royalties/internal/money"
	"github.com/WossMusic/woss-royalties/internal/notify"
)

type artifactAttacher interface {
	AttachArtifact(ctx context.Context, id uuid.UUID, ref string, size int64) error
}

type documentRenderer interface {
	Render(ctx context.Context, w *domain.WithdrawalRecord) (string, int64, error)
	Discard(ctx context.Context, ref string) error
}

type userNotifier interface {
	Notify(ctx context.Context, userID uuid.UUID, event notify.Event) error
}

type deliveryOutbox interface {
	Create(ctx context.Context, event *domain.DeliveryEvent) error
}

// Deliverer runs the post-commit side effects of a generated settlement:
// rendering the payment advice and telling the artist about it.
type Deliverer struct {
	withdrawals artifactAttacher
	renderer    documentRenderer
	notifier    userNotifier
	outbox      deliveryOutbox
	metrics     *metrics.Metrics
}

func NewDeliverer(
	withdrawals artifactAttacher,
	renderer documentRenderer,
	notifier userNotifier,
	outbox deliveryOutbox,
	m *metrics.Metrics,
) *Deliverer {
	return &Deliverer{
		withdrawals: withdrawals,
		renderer:    renderer,
		notifier:    notifier,
		outbox:      outbox,
		metrics:     m,
	}
}

func (d *Deliverer) RenderAndAttach(ctx context.Context, w *domain.WithdrawalRecord) error {
	ref, size, err := d.renderer.Render(ctx, w)
	if err != nil {
		return fmt.Errorf("RenderAndAttach: %w", err)
	}
	if err := d.withdrawals.AttachArtifact(ctx, w.ID, ref, size); err != nil {
		// The record was reverted meanwhile or the write failed; the stored
		// document belongs to nothing.
		if derr := d.renderer.Discard(ctx, ref); derr != nil {
			logging.FromContext(ctx).Warn("failed to discard unattached payment advice",
				"withdrawal_id", w.ID, "ref", ref, "error", derr)
		}
		return fmt.Errorf("RenderAndAttach: %w", err)
	}
	w.DocumentArtifactRef = &ref
	w.DocumentSize = size
	return nil
}

func (d *Deliverer) NotifyGenerated(ctx context.Context, w *domain.WithdrawalRecord) error {
	err := d.notifier.Notify(ctx, w.UserID, notify.Event{
		Type: notify.EventSettlementReady,
		Data: map[string]string{
			"withdrawal_id":         w.ID.String(),
			"period":                w.PeriodLabel,
			"settlement_doc_number": w.SettlementDocNumber,
			"vendor_invoice_number": w.VendorInvoiceNumber,
			"closing_payable":       money.String(w.ClosingPayableAmount),
		},
	})
	if err != nil {
		return fmt.Errorf("NotifyGenerated: %w", err)
	}
	return nil
}

// Deliver attempts both side effects once. Each failure is logged, counted
// and recorded for the retry worker; the returned warnings describe them.
// Cancelling ctx does not stop delivery or the retry record.
func (d *Deliverer) Deliver(ctx context.Context, w *domain.WithdrawalRecord) []string {
	ctx = context.WithoutCancel(ctx)
	var warnings []string

	if err := d.RenderAndAttach(ctx, w); err != nil {
		warnings = append(warnings, "payment advice rendering deferred")
		d.enqueue(ctx, w, domain.DeliveryEventKindRender, err)
	}
	if err := d.NotifyGenerated(ctx, w); err != nil {
		warnings = append(warnings, "settlement notification deferred")
		d.enqueue(ctx, w, domain.DeliveryEventKindNotify, err)
	}
	return warnings
}

func (d *Deliverer) enqueue(ctx context.Context, w *domain.WithdrawalRecord, kind domain.DeliveryEventKind, cause error) {
	log := logging.FromContext(ctx)
	log.Warn("settlement side effect failed",
		"withdrawal_id", w.ID,
		"kind", kind,
		"error", cause,
	)
	d.metrics.CollaboratorFailures.WithLabelValues(string(kind)).Inc()

	msg := cause.Error()
	event := &domain.DeliveryEvent{
		ID:           uuid.New(),
		WithdrawalID: w.ID,
		Kind:         kind,
		Status:       domain.DeliveryEventStatusPending,
		LastError:    &msg,
		CreatedAt:    time.Now().UTC(),
	}
	if err := d.outbox.Create(ctx, event); err != nil {
		log.Error("failed to record delivery event, side effect will not be retried",
			"withdrawal_id", w.ID,
			"kind", kind,
			"error", err,
		)
		return
	}
	log.Info("delivery event recorded for retry", "withdrawal_id", w.ID, "kind", kind, "event_id", event.ID)
}
