package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/WossMusic/woss-royalties/internal/domain"
	"github.com/WossMusic/woss-royalties/internal/logging"
)

type userGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type payoutProfileStore interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.PayoutProfile, error)
	Upsert(ctx context.Context, p *domain.PayoutProfile) error
}

type UserHandler struct {
	users    userGetter
	profiles payoutProfileStore
}

func NewUserHandler(users userGetter, profiles payoutProfileStore) *UserHandler {
	return &UserHandler{users: users, profiles: profiles}
}

func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	userID, appErr := ownerFromPath(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to get user", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toUserDTO(user))
}

type payoutProfileRequest struct {
	PaymentMethod string  `json:"payment_method"`
	AccountHolder string  `json:"account_holder"`
	BankName      *string `json:"bank_name"`
	AccountNumber *string `json:"account_number"`
	PayPalEmail   *string `json:"paypal_email"`
	Address       string  `json:"address"`
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func (r payoutProfileRequest) Validate() []FieldError {
	var errs []FieldError

	method := domain.PaymentMethod(r.PaymentMethod)
	if r.PaymentMethod == "" {
		errs = append(errs, FieldError{Field: "payment_method", Message: "required"})
	} else if !method.IsValid() {
		errs = append(errs, FieldError{Field: "payment_method", Message: "must be bank_transfer, paypal, or wire"})
	}

	if strings.TrimSpace(r.AccountHolder) == "" {
		errs = append(errs, FieldError{Field: "account_holder", Message: "required"})
	}

	switch method {
	case domain.PaymentMethodBankTransfer, domain.PaymentMethodWire:
		if blank(r.BankName) {
			errs = append(errs, FieldError{Field: "bank_name", Message: "required for bank payouts"})
		}
		if blank(r.AccountNumber) {
			errs = append(errs, FieldError{Field: "account_number", Message: "required for bank payouts"})
		}
	case domain.PaymentMethodPayPal:
		if blank(r.PayPalEmail) {
			errs = append(errs, FieldError{Field: "paypal_email", Message: "required for paypal payouts"})
		} else if _, err := mail.ParseAddress(*r.PayPalEmail); err != nil {
			errs = append(errs, FieldError{Field: "paypal_email", Message: "must be a valid e-mail address"})
		}
	}

	return errs
}

type payoutProfileDTO struct {
	PaymentMethod string    `json:"payment_method"`
	AccountHolder string    `json:"account_holder"`
	BankName      *string   `json:"bank_name,omitempty"`
	AccountNumber *string   `json:"account_number,omitempty"`
	PayPalEmail   *string   `json:"paypal_email,omitempty"`
	Address       string    `json:"address"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toPayoutProfileDTO(p *domain.PayoutProfile) payoutProfileDTO {
	return payoutProfileDTO{
		PaymentMethod: string(p.PaymentMethod),
		AccountHolder: p.AccountHolder,
		BankName:      p.BankName,
		AccountNumber: maskAccountNumber(p.AccountNumber),
		PayPalEmail:   p.PayPalEmail,
		Address:       p.Address,
		UpdatedAt:     p.UpdatedAt,
	}
}

func maskAccountNumber(n *string) *string {
	if n == nil {
		return nil
	}
	s := *n
	if len(s) > 4 {
		s = strings.Repeat("*", len(s)-4) + s[len(s)-4:]
	}
	return &s
}

func (h *UserHandler) GetPayoutProfile(w http.ResponseWriter, r *http.Request) {
	userID, appErr := ownerFromPath(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	p, err := h.profiles.GetByUserID(r.Context(), userID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toPayoutProfileDTO(p))
}

func (h *UserHandler) PutPayoutProfile(w http.ResponseWriter, r *http.Request) {
	userID, appErr := ownerFromPath(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req payoutProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	p := &domain.PayoutProfile{
		UserID:        userID,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		AccountHolder: strings.TrimSpace(req.AccountHolder),
		BankName:      req.BankName,
		AccountNumber: req.AccountNumber,
		PayPalEmail:   req.PayPalEmail,
		Address:       strings.TrimSpace(req.Address),
		UpdatedAt:     time.Now().UTC(),
	}
	if err := h.profiles.Upsert(r.Context(), p); err != nil {
		logging.FromContext(r.Context()).Error("failed to save payout profile", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toPayoutProfileDTO(p))
}
