package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/WossMusic/woss-royalties/internal/auth"
	"github.com/WossMusic/woss-royalties/internal/domain"
)

type mockUsers struct {
	user *domain.User
}

func (m *mockUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	if m.user == nil || !strings.EqualFold(m.user.Email, email) {
		return nil, domain.ErrNotFound
	}
	return m.user, nil
}

func (m *mockUsers) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	if m.user == nil || m.user.ID != id {
		return nil, domain.ErrNotFound
	}
	return m.user, nil
}

type mockProfiles struct {
	saved *domain.PayoutProfile
}

func (m *mockProfiles) GetByUserID(_ context.Context, _ uuid.UUID) (*domain.PayoutProfile, error) {
	if m.saved == nil {
		return nil, domain.ErrNotFound
	}
	return m.saved, nil
}

func (m *mockProfiles) Upsert(_ context.Context, p *domain.PayoutProfile) error {
	m.saved = p
	return nil
}

func testUser(t *testing.T, status domain.UserStatus) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	return &domain.User{
		ID:           uuid.New(),
		Email:        "artist@woss.test",
		Name:         "Test Artist",
		PasswordHash: string(hash),
		Role:         domain.UserRoleArtist,
		Status:       status,
	}
}

func TestAuthHandler_Login(t *testing.T) {
	tests := []struct {
		name       string
		status     domain.UserStatus
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "valid credentials",
			status:     domain.UserStatusActive,
			body:       `{"email":"artist@woss.test","password":"correct-horse"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong password",
			status:     domain.UserStatusActive,
			body:       `{"email":"artist@woss.test","password":"nope"}`,
			wantStatus: http.StatusUnauthorized,
			wantCode:   "INVALID_CREDENTIALS",
		},
		{
			name:       "unknown email",
			status:     domain.UserStatusActive,
			body:       `{"email":"ghost@woss.test","password":"correct-horse"}`,
			wantStatus: http.StatusUnauthorized,
			wantCode:   "INVALID_CREDENTIALS",
		},
		{
			name:       "suspended account",
			status:     domain.UserStatusSuspended,
			body:       `{"email":"artist@woss.test","password":"correct-horse"}`,
			wantStatus: http.StatusForbidden,
			wantCode:   "ACCOUNT_SUSPENDED",
		},
		{
			name:       "missing fields",
			status:     domain.UserStatusActive,
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewAuthHandler(&mockUsers{user: testUser(t, tc.status)}, "jwt-secret", time.Hour)

			req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()

			h.Login(rr, req)

			assertErrorCode(t, rr, tc.wantStatus, tc.wantCode)
		})
	}
}

func TestAuthHandler_Login_IssuesUsableToken(t *testing.T) {
	user := testUser(t, domain.UserStatusActive)
	h := NewAuthHandler(&mockUsers{user: user}, "jwt-secret", time.Hour)

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"artist@woss.test","password":"correct-horse"}`))
	rr := httptest.NewRecorder()

	h.Login(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data loginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	claims, err := auth.ValidateToken(resp.Data.Token, "jwt-secret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, domain.UserRoleArtist, claims.Role)
	assert.Equal(t, "artist", resp.Data.User.Role)
}

func TestPayoutProfileRequest_Validate(t *testing.T) {
	bank := "First Bank"
	acct := "0123456789"
	badEmail := "not-an-email"
	goodEmail := "pay@woss.test"

	tests := []struct {
		name      string
		req       payoutProfileRequest
		wantField string
	}{
		{
			name: "bank transfer",
			req:  payoutProfileRequest{PaymentMethod: "bank_transfer", AccountHolder: "A", BankName: &bank, AccountNumber: &acct},
		},
		{
			name: "paypal",
			req:  payoutProfileRequest{PaymentMethod: "paypal", AccountHolder: "A", PayPalEmail: &goodEmail},
		},
		{
			name:      "unknown method",
			req:       payoutProfileRequest{PaymentMethod: "cheque", AccountHolder: "A"},
			wantField: "payment_method",
		},
		{
			name:      "wire without bank name",
			req:       payoutProfileRequest{PaymentMethod: "wire", AccountHolder: "A", AccountNumber: &acct},
			wantField: "bank_name",
		},
		{
			name:      "paypal with bad email",
			req:       payoutProfileRequest{PaymentMethod: "paypal", AccountHolder: "A", PayPalEmail: &badEmail},
			wantField: "paypal_email",
		},
		{
			name:      "missing holder",
			req:       payoutProfileRequest{PaymentMethod: "paypal", PayPalEmail: &goodEmail},
			wantField: "account_holder",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			errs := tc.req.Validate()
			if tc.wantField == "" {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, 1)
			assert.Equal(t, tc.wantField, errs[0].Field)
		})
	}
}

func TestUserHandler_PutPayoutProfile(t *testing.T) {
	userID := uuid.New()
	profiles := &mockProfiles{}
	h := NewUserHandler(&mockUsers{}, profiles)

	body := `{"payment_method":"bank_transfer","account_holder":" Test Artist ","bank_name":"First Bank","account_number":"0123456789"}`
	req := httptest.NewRequest(http.MethodPut, "/users/"+userID.String()+"/payout-profile", strings.NewReader(body))
	req.SetPathValue("id", userID.String())
	req = withUser(req, userID, domain.UserRoleArtist)
	rr := httptest.NewRecorder()

	h.PutPayoutProfile(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, profiles.saved)
	assert.Equal(t, userID, profiles.saved.UserID)
	assert.Equal(t, "Test Artist", profiles.saved.AccountHolder)
	assert.Equal(t, "0123456789", *profiles.saved.AccountNumber)

	data := decodeResponse(t, rr).Data.(map[string]any)
	assert.Equal(t, "******6789", data["account_number"])
}

func TestUserHandler_OtherUsersProfileIsNotFound(t *testing.T) {
	h := NewUserHandler(&mockUsers{}, &mockProfiles{})
	other := uuid.NewString()

	req := httptest.NewRequest(http.MethodGet, "/users/"+other+"/payout-profile", nil)
	req.SetPathValue("id", other)
	req = withUser(req, uuid.New(), domain.UserRoleArtist)
	rr := httptest.NewRecorder()

	h.GetPayoutProfile(rr, req)

	assertErrorCode(t, rr, http.StatusNotFound, "RESOURCE_NOT_FOUND")
}
