package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/WossMusic/woss-royalties/internal/domain"
)

type txBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

type sequenceRepo interface {
	Next(ctx context.Context, tx *sql.Tx, prefix string) (int64, error)
}

var documentPrefixes = map[string]string{
	domain.SequencePrefixSettlementDoc: "SD",
	domain.SequencePrefixVendorInvoice: "VI",
}

// SequenceAllocator issues gap-tolerant, never-reused document numbers.
type SequenceAllocator struct {
	seq sequenceRepo
	db  txBeginner
}

func NewSequenceAllocator(seq sequenceRepo, db txBeginner) *SequenceAllocator {
	return &SequenceAllocator{seq: seq, db: db}
}

// NextTx allocates on the caller's transaction, so a rollback also
// rolls back the counter increment.
func (a *SequenceAllocator) NextTx(ctx context.Context, tx *sql.Tx, prefix string) (string, error) {
	short, ok := documentPrefixes[prefix]
	if !ok {
		return "", fmt.Errorf("NextTx: unknown prefix %q: %w", prefix, domain.ErrSequenceAllocationFailed)
	}
	n, err := a.seq.Next(ctx, tx, prefix)
	if err != nil {
		return "", fmt.Errorf("NextTx: %w", err)
	}
	return FormatDocumentNumber(short, n), nil
}

// Next allocates in a dedicated transaction.
func (a *SequenceAllocator) Next(ctx context.Context, prefix string) (string, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("Next: begin tx: %w", err)
	}
	defer tx.Rollback()

	number, err := a.NextTx(ctx, tx, prefix)
	if err != nil {
		return "", fmt.Errorf("Next: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("Next: commit: %w", err)
	}
	return number, nil
}

func FormatDocumentNumber(short string, n int64) string {
	return fmt.Sprintf("%s-%06d", short, n)
}
