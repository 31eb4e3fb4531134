package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/royalties")
	t.Setenv("JWT_SECRET", "jwt-secret")
	t.Setenv("DOCUMENT_SEAL_SECRET", "seal-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	minimum, err := cfg.MinWithdrawalAmount()
	require.NoError(t, err)
	assert.Equal(t, "100.00", minimum.StringFixed(2))
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiry())
	assert.Equal(t, 30*time.Second, cfg.DeliveryPollInterval())
	assert.Empty(t, cfg.NotifierURL)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T)
	}{
		{
			name: "missing seal secret",
			setup: func(t *testing.T) {
				t.Setenv("DATABASE_URL", "postgres://localhost/royalties")
				t.Setenv("JWT_SECRET", "jwt-secret")
				t.Setenv("DOCUMENT_SEAL_SECRET", "")
			},
		},
		{
			name: "unparseable minimum",
			setup: func(t *testing.T) {
				setRequired(t)
				t.Setenv("MIN_WITHDRAWAL", "one hundred")
			},
		},
		{
			name: "negative minimum",
			setup: func(t *testing.T) {
				setRequired(t)
				t.Setenv("MIN_WITHDRAWAL", "-1")
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.setup(t)
			_, err := Load()
			require.Error(t, err)
		})
	}
}
