package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WossMusic/woss-royalties/internal/domain"
	"github.com/WossMusic/woss-royalties/internal/render"
	"github.com/WossMusic/woss-royalties/internal/service/settlement"
)

type mockSettlementService struct {
	gotReq   settlement.Request
	record   *domain.WithdrawalRecord
	warnings []string
	replayed bool
	err      error
}

func (m *mockSettlementService) Preview(_ context.Context, _ uuid.UUID, req settlement.Request) (*settlement.PreviewResult, error) {
	m.gotReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &settlement.PreviewResult{Record: m.record, Document: []byte("<html>PREVIEW</html>")}, nil
}

func (m *mockSettlementService) Generate(_ context.Context, _ uuid.UUID, req settlement.Request) (*settlement.GenerateResult, error) {
	m.gotReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &settlement.GenerateResult{Record: m.record, Warnings: m.warnings, Replayed: m.replayed}, nil
}

func (m *mockSettlementService) Get(_ context.Context, _, _ uuid.UUID) (*domain.WithdrawalRecord, error) {
	return m.record, m.err
}

func (m *mockSettlementService) List(_ context.Context, _ uuid.UUID) ([]domain.WithdrawalRecord, error) {
	if m.record == nil {
		return nil, m.err
	}
	return []domain.WithdrawalRecord{*m.record}, m.err
}

type mockDocuments struct {
	body []byte
	err  error
}

func (m *mockDocuments) Open(_ context.Context, _ string) ([]byte, *render.SealClaims, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	return m.body, &render.SealClaims{}, nil
}

func sampleWithdrawal() *domain.WithdrawalRecord {
	ref := "withdrawals/sample.html"
	return &domain.WithdrawalRecord{
		ID:                   uuid.New(),
		PeriodLabel:          "2026-Q3",
		SettlementDate:       time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		VendorInvoiceDate:    time.Date(2026, 10, 2, 0, 0, 0, 0, time.UTC),
		SettlementDocNumber:  "SD-000001",
		VendorInvoiceNumber:  "VI-000001",
		RoyaltyAccountNumber: "RA-0000000001",
		PaymentMethod:        domain.PaymentMethodBankTransfer,
		GrossAmount:          decimal.RequireFromString("1000"),
		FeePercent:           decimal.RequireFromString("15"),
		FeeAmount:            decimal.RequireFromString("150"),
		NetAmount:            decimal.RequireFromString("850"),
		IncomingSharedAmount: decimal.RequireFromString("50"),
		OutgoingSharedAmount: decimal.RequireFromString("20"),
		ClosingPayableAmount: decimal.RequireFromString("880"),
		DocumentArtifactRef:  &ref,
		Status:               domain.WithdrawalStatusGenerated,
	}
}

func settlementBody(period, sd, vid string) string {
	b, _ := json.Marshal(map[string]string{
		"period":              period,
		"settlement_date":     sd,
		"vendor_invoice_date": vid,
	})
	return string(b)
}

func TestSettlementHandler_Generate(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		svcErr     error
		replayed   bool
		wantStatus int
		wantCode   string
	}{
		{
			name:       "generated",
			body:       settlementBody("2026-Q3", "2026-10-01", "2026-10-02"),
			wantStatus: http.StatusCreated,
		},
		{
			name:       "replayed returns 200",
			body:       settlementBody("2026-Q3", "2026-10-01", "2026-10-02"),
			replayed:   true,
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing period",
			body:       settlementBody(" ", "2026-10-01", "2026-10-02"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "bad date",
			body:       settlementBody("2026-Q3", "01/10/2026", "2026-10-02"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "below threshold",
			body:       settlementBody("2026-Q3", "2026-10-01", "2026-10-02"),
			svcErr:     fmt.Errorf("Generate: %w", domain.ErrBelowMinimumThreshold),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "BELOW_MINIMUM_THRESHOLD",
		},
		{
			name:       "missing payout profile",
			body:       settlementBody("2026-Q3", "2026-10-01", "2026-10-02"),
			svcErr:     fmt.Errorf("Generate: %w", domain.ErrMissingPayoutProfile),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "MISSING_PAYOUT_PROFILE",
		},
		{
			name:       "duplicate period",
			body:       settlementBody("2026-Q3", "2026-10-01", "2026-10-03"),
			svcErr:     fmt.Errorf("Generate: %w", domain.ErrDuplicateSettlement),
			wantStatus: http.StatusConflict,
			wantCode:   "DUPLICATE_SETTLEMENT",
		},
		{
			name:       "sequence failure is retryable",
			body:       settlementBody("2026-Q3", "2026-10-01", "2026-10-02"),
			svcErr:     fmt.Errorf("Generate: %w", domain.ErrSequenceAllocationFailed),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "SEQUENCE_ALLOCATION_FAILED",
		},
		{
			name:       "lost update",
			body:       settlementBody("2026-Q3", "2026-10-01", "2026-10-02"),
			svcErr:     fmt.Errorf("Generate: %w", domain.ErrConflict),
			wantStatus: http.StatusConflict,
			wantCode:   "CONCURRENT_MODIFICATION",
		},
		{
			name:       "unexpected failure",
			body:       settlementBody("2026-Q3", "2026-10-01", "2026-10-02"),
			svcErr:     errors.New("connection reset"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockSettlementService{record: sampleWithdrawal(), replayed: tc.replayed, err: tc.svcErr}
			h := NewSettlementHandler(svc, &mockDocuments{})

			req := httptest.NewRequest(http.MethodPost, "/settlements", strings.NewReader(tc.body))
			req = withUser(req, uuid.New(), domain.UserRoleArtist)
			rr := httptest.NewRecorder()

			h.Generate(rr, req)

			assertErrorCode(t, rr, tc.wantStatus, tc.wantCode)
		})
	}
}

func TestSettlementHandler_Generate_ResponseShape(t *testing.T) {
	svc := &mockSettlementService{
		record:   sampleWithdrawal(),
		warnings: []string{"payment advice rendering deferred"},
	}
	h := NewSettlementHandler(svc, &mockDocuments{})

	req := httptest.NewRequest(http.MethodPost, "/settlements",
		strings.NewReader(settlementBody("2026-Q3", "2026-10-01", "2026-10-02")))
	req = withUser(req, uuid.New(), domain.UserRoleArtist)
	rr := httptest.NewRecorder()

	h.Generate(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "/api/v1/settlements/"+svc.record.ID.String(), rr.Header().Get("Location"))
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), svc.gotReq.SettlementDate)

	data := decodeResponse(t, rr).Data.(map[string]any)
	s := data["settlement"].(map[string]any)
	assert.Equal(t, "880.00", s["closing_payable_amount"])
	assert.Equal(t, "15.00", s["fee_percent"])
	assert.Equal(t, "2026-10-02", s["vendor_invoice_date"])
	assert.Equal(t, true, s["document_available"])
	assert.Equal(t, []any{"payment advice rendering deferred"}, data["warnings"])
}

func TestSettlementHandler_Preview(t *testing.T) {
	rec := sampleWithdrawal()
	rec.SettlementDocNumber = settlement.PreviewSettlementDocNumber
	rec.DocumentArtifactRef = nil

	t.Run("json envelope", func(t *testing.T) {
		h := NewSettlementHandler(&mockSettlementService{record: rec}, &mockDocuments{})
		req := httptest.NewRequest(http.MethodGet,
			"/settlements/preview?period=2026-Q3&settlement_date=2026-10-01&vendor_invoice_date=2026-10-02", nil)
		req = withUser(req, uuid.New(), domain.UserRoleArtist)
		rr := httptest.NewRecorder()

		h.Preview(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		data := decodeResponse(t, rr).Data.(map[string]any)
		assert.Equal(t, "SD-PREVIEW", data["settlement"].(map[string]any)["settlement_doc_number"])
		assert.Contains(t, data["document_html"], "PREVIEW")
	})

	t.Run("raw html", func(t *testing.T) {
		h := NewSettlementHandler(&mockSettlementService{record: rec}, &mockDocuments{})
		req := httptest.NewRequest(http.MethodGet,
			"/settlements/preview?period=2026-Q3&settlement_date=2026-10-01&vendor_invoice_date=2026-10-02&format=html", nil)
		req = withUser(req, uuid.New(), domain.UserRoleArtist)
		rr := httptest.NewRecorder()

		h.Preview(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
		assert.Equal(t, "<html>PREVIEW</html>", rr.Body.String())
	})

	t.Run("missing query params", func(t *testing.T) {
		h := NewSettlementHandler(&mockSettlementService{record: rec}, &mockDocuments{})
		req := withUser(httptest.NewRequest(http.MethodGet, "/settlements/preview", nil), uuid.New(), domain.UserRoleArtist)
		rr := httptest.NewRecorder()

		h.Preview(rr, req)

		assertErrorCode(t, rr, http.StatusBadRequest, "VALIDATION_FAILED")
		resp := decodeResponse(t, rr)
		assert.Len(t, resp.Error.Details, 3)
	})
}

func TestSettlementHandler_Document(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*domain.WithdrawalRecord)
		getErr     error
		openErr    error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "served",
			wantStatus: http.StatusOK,
		},
		{
			name:       "other user's record",
			getErr:     fmt.Errorf("Get: %w", domain.ErrNotFound),
			wantStatus: http.StatusNotFound,
			wantCode:   "RESOURCE_NOT_FOUND",
		},
		{
			name:       "not rendered yet",
			mutate:     func(w *domain.WithdrawalRecord) { w.DocumentArtifactRef = nil },
			wantStatus: http.StatusNotFound,
			wantCode:   "DOCUMENT_NOT_AVAILABLE",
		},
		{
			name:       "reverted",
			mutate:     func(w *domain.WithdrawalRecord) { w.Status = domain.WithdrawalStatusReverted },
			wantStatus: http.StatusNotFound,
			wantCode:   "DOCUMENT_NOT_AVAILABLE",
		},
		{
			name:       "seal mismatch",
			openErr:    fmt.Errorf("Open: %w", render.ErrSealInvalid),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := sampleWithdrawal()
			if tc.mutate != nil {
				tc.mutate(rec)
			}
			svc := &mockSettlementService{record: rec, err: tc.getErr}
			h := NewSettlementHandler(svc, &mockDocuments{body: []byte("<html>SD-000001</html>"), err: tc.openErr})

			req := httptest.NewRequest(http.MethodGet, "/settlements/"+rec.ID.String()+"/document", nil)
			req.SetPathValue("id", rec.ID.String())
			req = withUser(req, uuid.New(), domain.UserRoleArtist)
			rr := httptest.NewRecorder()

			h.Document(rr, req)

			if tc.wantCode == "" {
				require.Equal(t, http.StatusOK, rr.Code)
				assert.Equal(t, "<html>SD-000001</html>", rr.Body.String())
				assert.Contains(t, rr.Header().Get("Content-Disposition"), "SD-000001.html")
				return
			}
			assertErrorCode(t, rr, tc.wantStatus, tc.wantCode)
		})
	}
}
