// Package split negotiates royalty splits between a track owner and the
// collaborators they invite.
package split

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/WossMusic/woss-royalties/internal/domain"
	"github.com/WossMusic/woss-royalties/internal/metrics"
	"github.com/WossMusic/woss-royalties/internal/notify"
)

type splitRepo interface {
	Create(ctx context.Context, tx *sql.Tx, s *domain.RoyaltySplit) error
	SumActiveForTrack(ctx context.Context, tx *sql.Tx, trackID uuid.UUID) (decimal.Decimal, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.RoyaltySplit, error)
	ListByInviter(ctx context.Context, inviterID uuid.UUID) ([]domain.RoyaltySplit, error)
	ListIncoming(ctx context.Context, userID uuid.UUID, email string) ([]domain.RoyaltySplit, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.SplitStatus, inviteeID uuid.UUID, respondedAt time.Time, acceptedAt *time.Time) error
	Delete(ctx context.Context, tx *sql.Tx, id uuid.UUID) error
}

type trackRepo interface {
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Track, error)
}

type userRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// identityResolver looks an invitee up before the transaction and issues a
// registration invitation inside it once the split is known to be valid.
type identityResolver interface {
	Resolve(ctx context.Context, email string) (*uuid.UUID, error)
	Invite(ctx context.Context, tx *sql.Tx, email string) (string, error)
}

type notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, event notify.Event) error
}

type txBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

type Service struct {
	splits     splitRepo
	tracks     trackRepo
	users      userRepo
	identities identityResolver
	notifier   notifier
	db         txBeginner
	metrics    *metrics.Metrics
}

func NewService(
	splits splitRepo,
	tracks trackRepo,
	users userRepo,
	identities identityResolver,
	n notifier,
	db txBeginner,
	m *metrics.Metrics,
) *Service {
	return &Service{
		splits:     splits,
		tracks:     tracks,
		users:      users,
		identities: identities,
		notifier:   n,
		db:         db,
		metrics:    m,
	}
}

// Listing is a user's view of the splits they give and receive.
type Listing struct {
	SharingWith   []domain.RoyaltySplit
	ReceivingFrom []domain.RoyaltySplit
}

func (s *Service) List(ctx context.Context, userID uuid.UUID) (*Listing, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}

	sharing, err := s.splits.ListByInviter(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	receiving, err := s.splits.ListIncoming(ctx, userID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}

	return &Listing{SharingWith: sharing, ReceivingFrom: receiving}, nil
}
