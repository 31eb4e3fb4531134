package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WossMusic/woss-royalties/internal/auth"
	"github.com/WossMusic/woss-royalties/internal/domain"
	"github.com/WossMusic/woss-royalties/internal/service/split"
)

type mockSplitService struct {
	createReq split.CreateRequest
	action    domain.SplitAction
	result    *domain.RoyaltySplit
	listing   *split.Listing
	err       error
}

func (m *mockSplitService) Create(_ context.Context, inviterID uuid.UUID, req split.CreateRequest) (*domain.RoyaltySplit, error) {
	m.createReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &domain.RoyaltySplit{
		ID:            uuid.New(),
		TrackID:       req.TrackID,
		InviterUserID: inviterID,
		InviteeEmail:  req.InviteeEmail,
		Percentage:    req.Percentage,
		Role:          req.Role,
		Status:        domain.SplitStatusPending,
	}, nil
}

func (m *mockSplitService) Respond(_ context.Context, _, _ uuid.UUID, action domain.SplitAction) (*domain.RoyaltySplit, error) {
	m.action = action
	return m.result, m.err
}

func (m *mockSplitService) Cancel(_ context.Context, _, _ uuid.UUID) error {
	return m.err
}

func (m *mockSplitService) List(_ context.Context, _ uuid.UUID) (*split.Listing, error) {
	return m.listing, m.err
}

func withUser(req *http.Request, userID uuid.UUID, role domain.UserRole) *http.Request {
	ctx := auth.ContextWithClaims(req.Context(), &auth.Claims{
		UserID: userID,
		Email:  "artist@woss.test",
		Role:   role,
	})
	return req.WithContext(ctx)
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func assertErrorCode(t *testing.T, rr *httptest.ResponseRecorder, wantStatus int, wantCode string) {
	t.Helper()
	assert.Equal(t, wantStatus, rr.Code)
	resp := decodeResponse(t, rr)
	if wantCode == "" {
		assert.True(t, resp.Success)
		return
	}
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, wantCode, resp.Error.Code)
}

func splitBody(trackID, email, pct, role string) string {
	b, _ := json.Marshal(map[string]string{
		"track_id":      trackID,
		"invitee_email": email,
		"percentage":    pct,
		"role":          role,
	})
	return string(b)
}

func TestSplitHandler_Create(t *testing.T) {
	trackID := uuid.NewString()

	tests := []struct {
		name       string
		body       string
		svcErr     error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "created",
			body:       splitBody(trackID, "Producer@Woss.test", "25.50", "producer"),
			wantStatus: http.StatusCreated,
		},
		{
			name:       "invalid JSON",
			body:       "{",
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "bad track id",
			body:       splitBody("not-a-uuid", "p@woss.test", "10", "producer"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "percentage over 100",
			body:       splitBody(trackID, "p@woss.test", "100.01", "producer"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "percentage with three decimals",
			body:       splitBody(trackID, "p@woss.test", "10.005", "producer"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "unknown role",
			body:       splitBody(trackID, "p@woss.test", "10", "drummer"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "cap exceeded",
			body:       splitBody(trackID, "p@woss.test", "60", "producer"),
			svcErr:     fmt.Errorf("Create: %w", domain.ErrSplitAllocationExceeded),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "SPLIT_ALLOCATION_EXCEEDED",
		},
		{
			name:       "not the track owner",
			body:       splitBody(trackID, "p@woss.test", "10", "producer"),
			svcErr:     fmt.Errorf("Create: %w", domain.ErrNotOwner),
			wantStatus: http.StatusForbidden,
			wantCode:   "NOT_OWNER",
		},
		{
			name:       "self invite",
			body:       splitBody(trackID, "artist@woss.test", "10", "producer"),
			svcErr:     fmt.Errorf("Create: %w", domain.ErrSelfInvite),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "SELF_INVITE_NOT_ALLOWED",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockSplitService{err: tc.svcErr}
			h := NewSplitHandler(svc)

			req := httptest.NewRequest(http.MethodPost, "/splits", strings.NewReader(tc.body))
			req = withUser(req, uuid.New(), domain.UserRoleArtist)
			rr := httptest.NewRecorder()

			h.Create(rr, req)

			assertErrorCode(t, rr, tc.wantStatus, tc.wantCode)
		})
	}
}

func TestSplitHandler_Create_PassesParsedRequest(t *testing.T) {
	svc := &mockSplitService{}
	h := NewSplitHandler(svc)
	trackID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/splits",
		strings.NewReader(splitBody(trackID.String(), "p@woss.test", "33.33", "songwriter")))
	req = withUser(req, uuid.New(), domain.UserRoleArtist)
	rr := httptest.NewRecorder()

	h.Create(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, trackID, svc.createReq.TrackID)
	assert.True(t, decimal.RequireFromString("33.33").Equal(svc.createReq.Percentage))
	assert.Equal(t, domain.SplitRoleSongwriter, svc.createReq.Role)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Location"), "/api/v1/splits/"))

	resp := decodeResponse(t, rr)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "33.33", data["percentage"])
	assert.Equal(t, "pending", data["status"])
}

func TestSplitHandler_Create_RequiresAuth(t *testing.T) {
	h := NewSplitHandler(&mockSplitService{})
	req := httptest.NewRequest(http.MethodPost, "/splits", strings.NewReader("{}"))
	rr := httptest.NewRecorder()

	h.Create(rr, req)

	assertErrorCode(t, rr, http.StatusUnauthorized, "MISSING_TOKEN")
}

func TestSplitHandler_Respond(t *testing.T) {
	splitID := uuid.New()

	tests := []struct {
		name       string
		pathID     string
		body       string
		svcErr     error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "accepted",
			pathID:     splitID.String(),
			body:       `{"action":"accept"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown action",
			pathID:     splitID.String(),
			body:       `{"action":"maybe"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "malformed id",
			pathID:     "abc",
			body:       `{"action":"accept"}`,
			wantStatus: http.StatusNotFound,
			wantCode:   "SPLIT_NOT_FOUND",
		},
		{
			name:       "not the invitee",
			pathID:     splitID.String(),
			body:       `{"action":"reject"}`,
			svcErr:     fmt.Errorf("Respond: %w", domain.ErrNotInvitee),
			wantStatus: http.StatusForbidden,
			wantCode:   "NOT_INVITEE",
		},
		{
			name:       "already responded",
			pathID:     splitID.String(),
			body:       `{"action":"accept"}`,
			svcErr:     fmt.Errorf("Respond: %w", domain.ErrSplitTerminal),
			wantStatus: http.StatusConflict,
			wantCode:   "SPLIT_ALREADY_RESPONDED",
		},
		{
			name:       "missing split",
			pathID:     splitID.String(),
			body:       `{"action":"accept"}`,
			svcErr:     fmt.Errorf("Respond: %w", domain.ErrSplitNotFound),
			wantStatus: http.StatusNotFound,
			wantCode:   "SPLIT_NOT_FOUND",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockSplitService{
				err: tc.svcErr,
				result: &domain.RoyaltySplit{
					ID:         splitID,
					Percentage: decimal.NewFromInt(10),
					Status:     domain.SplitStatusAccepted,
				},
			}
			h := NewSplitHandler(svc)

			req := httptest.NewRequest(http.MethodPost, "/splits/"+tc.pathID+"/respond", strings.NewReader(tc.body))
			req.SetPathValue("id", tc.pathID)
			req = withUser(req, uuid.New(), domain.UserRoleArtist)
			rr := httptest.NewRecorder()

			h.Respond(rr, req)

			assertErrorCode(t, rr, tc.wantStatus, tc.wantCode)
		})
	}
}

func TestSplitHandler_List(t *testing.T) {
	svc := &mockSplitService{listing: &split.Listing{
		SharingWith: []domain.RoyaltySplit{
			{ID: uuid.New(), Percentage: decimal.NewFromInt(40), Status: domain.SplitStatusAccepted},
		},
	}}
	h := NewSplitHandler(svc)

	req := withUser(httptest.NewRequest(http.MethodGet, "/splits", nil), uuid.New(), domain.UserRoleArtist)
	rr := httptest.NewRecorder()

	h.List(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	data := decodeResponse(t, rr).Data.(map[string]any)
	assert.Len(t, data["sharing_with"], 1)
	assert.NotNil(t, data["receiving_from"], "empty list is serialized as [] not null")
	assert.Empty(t, data["receiving_from"])
}

func TestSplitHandler_Cancel(t *testing.T) {
	h := NewSplitHandler(&mockSplitService{})
	id := uuid.NewString()

	req := httptest.NewRequest(http.MethodDelete, "/splits/"+id, nil)
	req.SetPathValue("id", id)
	req = withUser(req, uuid.New(), domain.UserRoleArtist)
	rr := httptest.NewRecorder()

	h.Cancel(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.Bytes())
}
