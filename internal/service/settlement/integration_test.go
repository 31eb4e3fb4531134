package settlement_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WossMusic/woss-royalties/internal/domain"
	"github.com/WossMusic/woss-royalties/internal/metrics"
	"github.com/WossMusic/woss-royalties/internal/notify"
	"github.com/WossMusic/woss-royalties/internal/render"
	"github.com/WossMusic/woss-royalties/internal/repository"
	"github.com/WossMusic/woss-royalties/internal/service"
	"github.com/WossMusic/woss-royalties/internal/service/settlement"
	"github.com/WossMusic/woss-royalties/internal/testutil"
)

type stubNotifier struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (n *stubNotifier) Notify(_ context.Context, _ uuid.UUID, event notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

type failingRenderer struct{}

func (failingRenderer) Render(context.Context, *domain.WithdrawalRecord) (string, int64, error) {
	return "", 0, errors.New("renderer unavailable")
}

func (failingRenderer) Discard(context.Context, string) error { return nil }

type harness struct {
	db       *sql.DB
	svc      *settlement.Service
	notifier *stubNotifier
	artifact string
}

type options struct {
	failRender bool
	notifyErr  error
}

func setup(t *testing.T, db *sql.DB, opts options) *harness {
	t.Helper()

	dir := t.TempDir()
	store, err := render.NewFileStore(dir)
	require.NoError(t, err)
	renderer, err := render.NewRenderer(store, "seal-secret")
	require.NoError(t, err)

	pool := repository.NewDB(db)
	withdrawals := repository.NewWithdrawalRepository(db)
	m := metrics.New()
	n := &stubNotifier{err: opts.notifyErr}

	var docs interface {
		Render(context.Context, *domain.WithdrawalRecord) (string, int64, error)
		Discard(context.Context, string) error
	} = renderer
	if opts.failRender {
		docs = failingRenderer{}
	}
	deliverer := service.NewDeliverer(withdrawals, docs, n, repository.NewDeliveryEventRepository(db), m)

	svc := settlement.NewService(
		withdrawals,
		repository.NewLedgerAccountRepository(db),
		repository.NewLedgerMovementRepository(db),
		repository.NewPayoutProfileRepository(db),
		service.NewSequenceAllocator(repository.NewSequenceRepository(db), pool),
		renderer,
		deliverer,
		n,
		pool,
		m,
		decimal.RequireFromString("100.00"),
	)
	return &harness{db: db, svc: svc, notifier: n, artifact: dir}
}

func q3() settlement.Request {
	return settlement.Request{
		Period:            "2026-Q3",
		SettlementDate:    time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		VendorInvoiceDate: time.Date(2026, 10, 2, 0, 0, 0, 0, time.UTC),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedPayee(t *testing.T, db *sql.DB, email, gross string) *domain.User {
	t.Helper()
	u := testutil.SeedArtist(t, db, email, "Payee")
	testutil.SeedLedger(t, db, u.ID, gross, "15", "50.00", "20.00")
	testutil.SeedPayoutProfile(t, db, u.ID)
	return u
}

func TestGenerate_DebitsLedgerAndRendersAdvice(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := setup(t, db, options{})
	ctx := context.Background()
	user := seedPayee(t, db, "payee@test.com", "1000.00")

	res, err := h.svc.Generate(ctx, user.ID, q3())
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.False(t, res.Replayed)

	w := res.Record
	assert.Equal(t, "SD-000001", w.SettlementDocNumber)
	assert.Equal(t, "VI-000001", w.VendorInvoiceNumber)
	assert.Equal(t, settlement.RoyaltyAccountNumber(user.ID), w.RoyaltyAccountNumber)
	assert.Equal(t, domain.PaymentMethodBankTransfer, w.PaymentMethod)
	assert.True(t, w.FeeAmount.Equal(dec("150.00")))
	assert.True(t, w.NetAmount.Equal(dec("850.00")))
	assert.True(t, w.ClosingPayableAmount.Equal(dec("880.00")))

	account := testutil.GetLedgerAccount(t, db, user.ID)
	assert.True(t, account.ClosingBalance.IsZero())
	assert.True(t, account.GrossRoyaltyEarnings.IsZero())
	assert.True(t, account.IncomingShared.IsZero())
	assert.True(t, account.OutgoingShared.IsZero())

	require.NotNil(t, w.DocumentArtifactRef)
	_, err = os.Stat(filepath.Join(h.artifact, *w.DocumentArtifactRef))
	require.NoError(t, err)

	stored, err := h.svc.Get(ctx, user.ID, w.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.DocumentArtifactRef)
	assert.Equal(t, *w.DocumentArtifactRef, *stored.DocumentArtifactRef)

	assert.Equal(t, 1, testutil.CountRows(t, db,
		`SELECT COUNT(*) FROM ledger_movements WHERE withdrawal_id = $1 AND kind = 'settlement_debit'`, w.ID))
	require.Len(t, h.notifier.events, 1)
	assert.Equal(t, notify.EventSettlementReady, h.notifier.events[0].Type)
}

func TestGenerateRevert_RestoresLedgerExactly(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := setup(t, db, options{})
	ctx := context.Background()
	user := seedPayee(t, db, "payee@test.com", "1234.57")

	before := testutil.GetLedgerAccount(t, db, user.ID)

	res, err := h.svc.Generate(ctx, user.ID, q3())
	require.NoError(t, err)
	artifact := *res.Record.DocumentArtifactRef

	reverted, err := h.svc.Revert(ctx, res.Record.ID)
	require.NoError(t, err)
	assert.Empty(t, reverted.Warnings)
	assert.Equal(t, domain.WithdrawalStatusReverted, reverted.Record.Status)
	assert.NotNil(t, reverted.Record.RevertedAt)

	after := testutil.GetLedgerAccount(t, db, user.ID)
	assert.True(t, before.GrossRoyaltyEarnings.Equal(after.GrossRoyaltyEarnings))
	assert.True(t, before.DistributionFeeAmount.Equal(after.DistributionFeeAmount))
	assert.True(t, before.NetActivity.Equal(after.NetActivity))
	assert.True(t, before.IncomingShared.Equal(after.IncomingShared))
	assert.True(t, before.OutgoingShared.Equal(after.OutgoingShared))
	assert.True(t, before.ClosingBalance.Equal(after.ClosingBalance))

	_, err = os.Stat(filepath.Join(h.artifact, artifact))
	assert.True(t, os.IsNotExist(err))

	_, err = h.svc.Revert(ctx, res.Record.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = h.svc.Revert(ctx, uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGenerate_MinimumThreshold(t *testing.T) {
	tests := []struct {
		name    string
		gross   string
		wantErr error
	}{
		// fee 15% with +50 incoming and -20 outgoing: closing = gross*0.85 + 30
		{name: "one cent short", gross: "82.34", wantErr: domain.ErrBelowMinimumThreshold},
		{name: "exactly at minimum", gross: "82.35"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			h := setup(t, db, options{})
			user := seedPayee(t, db, "payee@test.com", tc.gross)

			res, err := h.svc.Generate(context.Background(), user.ID, q3())
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				account := testutil.GetLedgerAccount(t, db, user.ID)
				assert.True(t, account.ClosingBalance.Equal(dec("99.99")))
				assert.Equal(t, 0, testutil.CountRows(t, db, `SELECT COUNT(*) FROM withdrawals`))
				return
			}
			require.NoError(t, err)
			assert.True(t, res.Record.ClosingPayableAmount.Equal(dec("100.00")))
		})
	}
}

func TestGenerate_MissingPayoutProfile(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := setup(t, db, options{})
	user := testutil.SeedArtist(t, db, "payee@test.com", "Payee")
	testutil.SeedLedger(t, db, user.ID, "1000.00", "15", "0", "0")

	_, err := h.svc.Generate(context.Background(), user.ID, q3())
	require.ErrorIs(t, err, domain.ErrMissingPayoutProfile)

	_, err = h.svc.Preview(context.Background(), user.ID, q3())
	require.ErrorIs(t, err, domain.ErrMissingPayoutProfile)
}

func TestGenerate_NoLedgerAccount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := setup(t, db, options{})
	user := testutil.SeedArtist(t, db, "payee@test.com", "Payee")
	testutil.SeedPayoutProfile(t, db, user.ID)

	_, err := h.svc.Generate(context.Background(), user.ID, q3())
	require.ErrorIs(t, err, domain.ErrBelowMinimumThreshold)
}

func TestPreview_DoesNotPersist(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := setup(t, db, options{})
	user := seedPayee(t, db, "payee@test.com", "1000.00")

	res, err := h.svc.Preview(context.Background(), user.ID, q3())
	require.NoError(t, err)
	assert.Equal(t, settlement.PreviewSettlementDocNumber, res.Record.SettlementDocNumber)
	assert.Equal(t, settlement.PreviewVendorInvoiceNumber, res.Record.VendorInvoiceNumber)
	assert.True(t, res.Record.ClosingPayableAmount.Equal(dec("880.00")))
	assert.Contains(t, string(res.Document), "PREVIEW")

	assert.Equal(t, 0, testutil.CountRows(t, db, `SELECT COUNT(*) FROM withdrawals`))
	assert.Equal(t, 0, testutil.CountRows(t, db, `SELECT COUNT(*) FROM sequence_counters`))
	assert.True(t, testutil.GetLedgerAccount(t, db, user.ID).ClosingBalance.Equal(dec("880.00")))
}

func TestGenerate_ReplayAndDuplicate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := setup(t, db, options{})
	ctx := context.Background()
	user := seedPayee(t, db, "payee@test.com", "1000.00")

	first, err := h.svc.Generate(ctx, user.ID, q3())
	require.NoError(t, err)

	again, err := h.svc.Generate(ctx, user.ID, q3())
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Record.ID, again.Record.ID)

	other := q3()
	other.VendorInvoiceDate = other.VendorInvoiceDate.AddDate(0, 0, 1)
	_, err = h.svc.Generate(ctx, user.ID, other)
	require.ErrorIs(t, err, domain.ErrDuplicateSettlement)

	assert.Equal(t, 1, testutil.CountRows(t, db, `SELECT COUNT(*) FROM withdrawals`))
}

func TestGenerate_ConcurrentSameUserDebitsOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := setup(t, db, options{})
	ctx := context.Background()
	user := seedPayee(t, db, "payee@test.com", "1000.00")

	const callers = 5
	periods := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := q3()
			req.Period = fmt.Sprintf("2026-Q3-run%d", i)
			periods[i] = req.Period
			_, errs[i] = h.svc.Generate(ctx, user.ID, req)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, domain.ErrBelowMinimumThreshold)
	}
	assert.Equal(t, 1, succeeded)
	assert.True(t, testutil.GetLedgerAccount(t, db, user.ID).ClosingBalance.IsZero())
	assert.Equal(t, 1, testutil.CountRows(t, db, `SELECT COUNT(*) FROM withdrawals`))
}

func TestGenerate_ConcurrentDocumentNumbersAreUnique(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := setup(t, db, options{})
	ctx := context.Background()

	const users = 8
	payees := make([]*domain.User, users)
	for i := range users {
		payees[i] = seedPayee(t, db, fmt.Sprintf("payee%d@test.com", i), "500.00")
	}

	results := make([]*settlement.GenerateResult, users)
	errs := make([]error, users)
	var wg sync.WaitGroup
	for i := range users {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = h.svc.Generate(ctx, payees[i].ID, q3())
		}()
	}
	wg.Wait()

	docs := map[string]bool{}
	invoices := map[string]bool{}
	for i := range users {
		require.NoError(t, errs[i])
		docs[results[i].Record.SettlementDocNumber] = true
		invoices[results[i].Record.VendorInvoiceNumber] = true
	}
	assert.Len(t, docs, users)
	assert.Len(t, invoices, users)
	for n := 1; n <= users; n++ {
		assert.True(t, docs[fmt.Sprintf("SD-%06d", n)], "missing SD-%06d", n)
	}
}

func TestGenerate_NumbersNotReusedAfterRevert(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := setup(t, db, options{})
	ctx := context.Background()
	user := seedPayee(t, db, "payee@test.com", "1000.00")

	first, err := h.svc.Generate(ctx, user.ID, q3())
	require.NoError(t, err)
	_, err = h.svc.Revert(ctx, first.Record.ID)
	require.NoError(t, err)

	second, err := h.svc.Generate(ctx, user.ID, q3())
	require.NoError(t, err)
	assert.False(t, second.Replayed)
	assert.NotEqual(t, first.Record.ID, second.Record.ID)
	assert.Equal(t, "SD-000002", second.Record.SettlementDocNumber)
	assert.Equal(t, "VI-000002", second.Record.VendorInvoiceNumber)

	seq := repository.NewSequenceRepository(db)
	for _, prefix := range []string{domain.SequencePrefixSettlementDoc, domain.SequencePrefixVendorInvoice} {
		last, err := seq.Current(ctx, prefix)
		require.NoError(t, err)
		assert.Equal(t, int64(2), last, prefix)
	}

	records, err := h.svc.List(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestGenerate_SideEffectFailuresAreWarnings(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := setup(t, db, options{failRender: true, notifyErr: errors.New("gateway down")})
	ctx := context.Background()
	user := seedPayee(t, db, "payee@test.com", "1000.00")

	res, err := h.svc.Generate(ctx, user.ID, q3())
	require.NoError(t, err)
	assert.Len(t, res.Warnings, 2)
	assert.Nil(t, res.Record.DocumentArtifactRef)

	assert.True(t, testutil.GetLedgerAccount(t, db, user.ID).ClosingBalance.IsZero())

	events, err := repository.NewDeliveryEventRepository(db).ListByWithdrawal(ctx, res.Record.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	kinds := []domain.DeliveryEventKind{events[0].Kind, events[1].Kind}
	assert.ElementsMatch(t, []domain.DeliveryEventKind{domain.DeliveryEventKindRender, domain.DeliveryEventKindNotify}, kinds)
	for _, e := range events {
		assert.Equal(t, domain.DeliveryEventStatusPending, e.Status)
	}
}

func TestGet_OtherUsersRecordIsNotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := setup(t, db, options{})
	ctx := context.Background()
	owner := seedPayee(t, db, "payee@test.com", "1000.00")
	other := testutil.SeedArtist(t, db, "other@test.com", "Other")

	res, err := h.svc.Generate(ctx, owner.ID, q3())
	require.NoError(t, err)

	_, err = h.svc.Get(ctx, other.ID, res.Record.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}
