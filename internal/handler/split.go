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
	"github.com/WossMusic/woss-royalties/internal/service/split"
)

type splitService interface {
	Create(ctx context.Context, inviterID uuid.UUID, req split.CreateRequest) (*domain.RoyaltySplit, error)
	Respond(ctx context.Context, inviteeID, splitID uuid.UUID, action domain.SplitAction) (*domain.RoyaltySplit, error)
	Cancel(ctx context.Context, inviterID, splitID uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID) (*split.Listing, error)
}

type SplitHandler struct {
	splits splitService
}

func NewSplitHandler(splits splitService) *SplitHandler {
	return &SplitHandler{splits: splits}
}

type createSplitRequest struct {
	TrackID      string `json:"track_id"`
	InviteeEmail string `json:"invitee_email"`
	InviteeName  string `json:"invitee_name"`
	Percentage   string `json:"percentage"`
	Role         string `json:"role"`
}

func (r createSplitRequest) Validate() (split.CreateRequest, []FieldError) {
	var (
		errs []FieldError
		out  split.CreateRequest
	)

	id, err := uuid.Parse(r.TrackID)
	if err != nil {
		errs = append(errs, FieldError{Field: "track_id", Message: "must be a valid UUID"})
	}
	out.TrackID = id

	if strings.TrimSpace(r.InviteeEmail) == "" {
		errs = append(errs, FieldError{Field: "invitee_email", Message: "required"})
	}
	out.InviteeEmail = r.InviteeEmail
	out.InviteeName = r.InviteeName

	pct, err := money.ParsePercentage(r.Percentage)
	if err != nil {
		errs = append(errs, FieldError{Field: "percentage", Message: "must be greater than 0 and at most 100 with up to 2 decimal places"})
	}
	out.Percentage = pct

	role := domain.SplitRole(r.Role)
	if !role.IsValid() {
		errs = append(errs, FieldError{Field: "role", Message: "unrecognized collaborator role"})
	}
	out.Role = role

	return out, errs
}

type splitDTO struct {
	ID            uuid.UUID  `json:"id"`
	TrackID       uuid.UUID  `json:"track_id"`
	InviterUserID uuid.UUID  `json:"inviter_user_id"`
	InviteeUserID *uuid.UUID `json:"invitee_user_id,omitempty"`
	InviteeEmail  string     `json:"invitee_email"`
	InviteeName   string     `json:"invitee_name,omitempty"`
	Percentage    string     `json:"percentage"`
	Role          string     `json:"role"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	AcceptedAt    *time.Time `json:"accepted_at,omitempty"`
	RespondedAt   *time.Time `json:"responded_at,omitempty"`
}

func toSplitDTO(s *domain.RoyaltySplit) splitDTO {
	return splitDTO{
		ID:            s.ID,
		TrackID:       s.TrackID,
		InviterUserID: s.InviterUserID,
		InviteeUserID: s.InviteeUserID,
		InviteeEmail:  s.InviteeEmail,
		InviteeName:   s.InviteeName,
		Percentage:    money.String(s.Percentage),
		Role:          string(s.Role),
		Status:        string(s.Status),
		CreatedAt:     s.CreatedAt,
		AcceptedAt:    s.AcceptedAt,
		RespondedAt:   s.RespondedAt,
	}
}

func toSplitDTOs(splits []domain.RoyaltySplit) []splitDTO {
	out := make([]splitDTO, 0, len(splits))
	for i := range splits {
		out = append(out, toSplitDTO(&splits[i]))
	}
	return out
}

type splitListingDTO struct {
	SharingWith   []splitDTO `json:"sharing_with"`
	ReceivingFrom []splitDTO `json:"receiving_from"`
}

func (h *SplitHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req createSplitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	createReq, fields := req.Validate()
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	s, err := h.splits.Create(r.Context(), userID, createReq)
	if err != nil {
		logging.FromContext(r.Context()).Warn("split creation failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/splits/%s", s.ID))
	RespondSuccess(w, http.StatusCreated, toSplitDTO(s))
}

func (h *SplitHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	listing, err := h.splits.List(r.Context(), userID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, splitListingDTO{
		SharingWith:   toSplitDTOs(listing.SharingWith),
		ReceivingFrom: toSplitDTOs(listing.ReceivingFrom),
	})
}

type respondSplitRequest struct {
	Action string `json:"action"`
}

func (h *SplitHandler) Respond(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	splitID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrSplitNotFound, nil)
		return
	}

	var req respondSplitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	action := domain.SplitAction(req.Action)
	if !action.IsValid() {
		RespondValidationError(w, []FieldError{{Field: "action", Message: "must be accept or reject"}})
		return
	}

	s, err := h.splits.Respond(r.Context(), userID, splitID, action)
	if err != nil {
		logging.FromContext(r.Context()).Warn("split response failed", "split_id", splitID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toSplitDTO(s))
}

func (h *SplitHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	splitID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrSplitNotFound, nil)
		return
	}

	if err := h.splits.Cancel(r.Context(), userID, splitID); err != nil {
		RespondDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
