package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/WossMusic/woss-royalties/internal/domain"
)

const issuer = "woss-royalties"

type Claims struct {
	UserID uuid.UUID
	Email  string
	Role   domain.UserRole
}

func (c *Claims) IsAdmin() bool {
	return c.Role == domain.UserRoleAdmin
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

func GenerateToken(claims Claims, secret string, expiry time.Duration) (string, error) {
	now := time.Now()
	tc := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   claims.UserID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Email: claims.Email,
		Role:  string(claims.Role),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tc)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("GenerateToken: %w", err)
	}
	return signed, nil
}

func ValidateToken(tokenString string, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, fmt.Errorf("ValidateToken: %w", err)
	}

	tc, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("ValidateToken: invalid token claims")
	}

	userID, err := uuid.Parse(tc.Subject)
	if err != nil {
		return nil, fmt.Errorf("ValidateToken: invalid subject in token: %w", err)
	}

	role := domain.UserRole(tc.Role)
	if role != domain.UserRoleArtist && role != domain.UserRoleAdmin {
		return nil, fmt.Errorf("ValidateToken: unknown role %q", tc.Role)
	}

	return &Claims{
		UserID: userID,
		Email:  tc.Email,
		Role:   role,
	}, nil
}
