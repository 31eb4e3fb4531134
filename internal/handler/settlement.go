package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/WossMusic/woss-royalties/internal/auth"
	"github.com/WossMusic/woss-royalties/internal/domain"
	"github.com/WossMusic/woss-royalties/internal/logging"
	"github.com/WossMusic/woss-royalties/internal/money"
	"github.com/WossMusic/woss-royalties/internal/render"
	"github.com/WossMusic/woss-royalties/internal/service/settlement"
)

const dateLayout = "2006-01-02"

type settlementService interface {
	Preview(ctx context.Context, userID uuid.UUID, req settlement.Request) (*settlement.PreviewResult, error)
	Generate(ctx context.Context, userID uuid.UUID, req settlement.Request) (*settlement.GenerateResult, error)
	Get(ctx context.Context, userID, withdrawalID uuid.UUID) (*domain.WithdrawalRecord, error)
	List(ctx context.Context, userID uuid.UUID) ([]domain.WithdrawalRecord, error)
}

type documentOpener interface {
	Open(ctx context.Context, ref string) ([]byte, *render.SealClaims, error)
}

type SettlementHandler struct {
	settlements settlementService
	documents   documentOpener
}

func NewSettlementHandler(settlements settlementService, documents documentOpener) *SettlementHandler {
	return &SettlementHandler{settlements: settlements, documents: documents}
}

type settlementRequest struct {
	Period            string `json:"period"`
	SettlementDate    string `json:"settlement_date"`
	VendorInvoiceDate string `json:"vendor_invoice_date"`
}

func (r settlementRequest) Validate() (settlement.Request, []FieldError) {
	var (
		errs []FieldError
		out  settlement.Request
	)

	out.Period = strings.TrimSpace(r.Period)
	if out.Period == "" {
		errs = append(errs, FieldError{Field: "period", Message: "required"})
	}

	if d, err := time.Parse(dateLayout, r.SettlementDate); err != nil {
		errs = append(errs, FieldError{Field: "settlement_date", Message: "must be a date in YYYY-MM-DD format"})
	} else {
		out.SettlementDate = d
	}

	if d, err := time.Parse(dateLayout, r.VendorInvoiceDate); err != nil {
		errs = append(errs, FieldError{Field: "vendor_invoice_date", Message: "must be a date in YYYY-MM-DD format"})
	} else {
		out.VendorInvoiceDate = d
	}

	return out, errs
}

type withdrawalDTO struct {
	ID                   uuid.UUID  `json:"id"`
	Period               string     `json:"period"`
	SettlementDate       string     `json:"settlement_date"`
	VendorInvoiceDate    string     `json:"vendor_invoice_date"`
	SettlementDocNumber  string     `json:"settlement_doc_number"`
	VendorInvoiceNumber  string     `json:"vendor_invoice_number"`
	RoyaltyAccountNumber string     `json:"royalty_account_number"`
	PaymentMethod        string     `json:"payment_method"`
	GrossAmount          string     `json:"gross_amount"`
	FeePercent           string     `json:"fee_percent"`
	FeeAmount            string     `json:"fee_amount"`
	NetAmount            string     `json:"net_amount"`
	IncomingSharedAmount string     `json:"incoming_shared_amount"`
	OutgoingSharedAmount string     `json:"outgoing_shared_amount"`
	ClosingPayableAmount string     `json:"closing_payable_amount"`
	DocumentAvailable    bool       `json:"document_available"`
	DocumentSize         int64      `json:"document_size,omitempty"`
	Status               string     `json:"status"`
	CreatedAt            time.Time  `json:"created_at,omitzero"`
	RevertedAt           *time.Time `json:"reverted_at,omitempty"`
}

func toWithdrawalDTO(w *domain.WithdrawalRecord) withdrawalDTO {
	return withdrawalDTO{
		ID:                   w.ID,
		Period:               w.PeriodLabel,
		SettlementDate:       w.SettlementDate.Format(dateLayout),
		VendorInvoiceDate:    w.VendorInvoiceDate.Format(dateLayout),
		SettlementDocNumber:  w.SettlementDocNumber,
		VendorInvoiceNumber:  w.VendorInvoiceNumber,
		RoyaltyAccountNumber: w.RoyaltyAccountNumber,
		PaymentMethod:        string(w.PaymentMethod),
		GrossAmount:          money.String(w.GrossAmount),
		FeePercent:           money.String(w.FeePercent),
		FeeAmount:            money.String(w.FeeAmount),
		NetAmount:            money.String(w.NetAmount),
		IncomingSharedAmount: money.String(w.IncomingSharedAmount),
		OutgoingSharedAmount: money.String(w.OutgoingSharedAmount),
		ClosingPayableAmount: money.String(w.ClosingPayableAmount),
		DocumentAvailable:    w.DocumentArtifactRef != nil,
		DocumentSize:         w.DocumentSize,
		Status:               string(w.Status),
		CreatedAt:            w.CreatedAt,
		RevertedAt:           w.RevertedAt,
	}
}

type previewDTO struct {
	Settlement withdrawalDTO `json:"settlement"`
	Document   string        `json:"document_html"`
}

type generateDTO struct {
	Settlement withdrawalDTO `json:"settlement"`
	Warnings   []string      `json:"warnings,omitempty"`
}

// Preview renders the would-be settlement. With format=html the document is
// returned as the response body instead of inside the JSON envelope.
func (h *SettlementHandler) Preview(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	q := r.URL.Query()
	req, fields := settlementRequest{
		Period:            q.Get("period"),
		SettlementDate:    q.Get("settlement_date"),
		VendorInvoiceDate: q.Get("vendor_invoice_date"),
	}.Validate()
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	result, err := h.settlements.Preview(r.Context(), userID, req)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	if q.Get("format") == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Document)
		return
	}

	RespondSuccess(w, http.StatusOK, previewDTO{
		Settlement: toWithdrawalDTO(result.Record),
		Document:   string(result.Document),
	})
}

func (h *SettlementHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var body settlementRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	req, fields := body.Validate()
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	result, err := h.settlements.Generate(r.Context(), userID, req)
	if err != nil {
		logging.FromContext(r.Context()).Warn("settlement generation failed", "period", req.Period, "error", err)
		RespondDomainError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/settlements/%s", result.Record.ID))
	RespondSuccess(w, status, generateDTO{
		Settlement: toWithdrawalDTO(result.Record),
		Warnings:   result.Warnings,
	})
}

func (h *SettlementHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	rec, err := h.settlements.Get(r.Context(), userID, id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toWithdrawalDTO(rec))
}

func (h *SettlementHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	records, err := h.settlements.List(r.Context(), userID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	out := make([]withdrawalDTO, 0, len(records))
	for i := range records {
		out = append(out, toWithdrawalDTO(&records[i]))
	}
	RespondSuccess(w, http.StatusOK, out)
}

// Document serves the stored payment advice after re-checking its seal.
func (h *SettlementHandler) Document(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	rec, err := h.settlements.Get(r.Context(), userID, id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	if rec.Status != domain.WithdrawalStatusGenerated || rec.DocumentArtifactRef == nil {
		RespondAppError(w, ErrDocumentUnavailable, nil)
		return
	}

	body, _, err := h.documents.Open(r.Context(), *rec.DocumentArtifactRef)
	if err != nil {
		logging.FromContext(r.Context()).Error("payment advice failed verification",
			"withdrawal_id", id, "error", err)
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s.html"`, rec.SettlementDocNumber))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
