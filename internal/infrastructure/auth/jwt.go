// Package auth issues and validates admin access tokens.
package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/veilnet-io/veilnet/internal/domain/admin"
	"github.com/veilnet-io/veilnet/internal/shared/config"
	apperrors "github.com/veilnet-io/veilnet/internal/shared/errors"
)

// AdminClaims is the decoded admin token payload.
type AdminClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	IsSudo   bool   `json:"is_sudo"`
}

// JWTService signs and verifies admin access tokens.
type JWTService struct {
	secret        []byte
	expiry        time.Duration
	sudoUsernames map[string]struct{}
}

// NewJWTService creates a token service from the auth configuration.
func NewJWTService(cfg *config.AuthConfig) *JWTService {
	expMinutes := cfg.AccessExpMinutes
	if expMinutes <= 0 {
		expMinutes = 1440
	}
	sudo := make(map[string]struct{}, len(cfg.SudoUsernames))
	for _, name := range cfg.SudoUsernames {
		sudo[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}
	return &JWTService{
		secret:        []byte(cfg.JWTSecret),
		expiry:        time.Duration(expMinutes) * time.Minute,
		sudoUsernames: sudo,
	}
}

// IsEnvSudo reports whether the username is a configuration-declared super
// admin, which overrides the stored sudo flag at auth time.
func (s *JWTService) IsEnvSudo(username string) bool {
	_, ok := s.sudoUsernames[strings.ToLower(username)]
	return ok
}

// Issue returns a signed access token for the admin.
func (s *JWTService) Issue(a *admin.Admin, now time.Time) (string, error) {
	isSudo := a.IsSudo() || s.IsEnvSudo(a.Username())
	claims := AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", a.ID()),
			IssuedAt:  jwt.NewNumericDate(now.UTC()),
			ExpiresAt: jwt.NewNumericDate(now.UTC().Add(s.expiry)),
		},
		Username: a.Username(),
		IsSudo:   isSudo,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign admin token: %w", err)
	}
	return signed, nil
}

// Verify checks the token and returns its claims.
func (s *JWTService) Verify(tokenStr string) (*AdminClaims, error) {
	var claims AdminClaims
	parsed, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, apperrors.NewUnauthorizedError("invalid or expired token")
	}
	return &claims, nil
}

// ValidateFreshness rejects tokens issued before the admin's last password
// reset.
func (s *JWTService) ValidateFreshness(a *admin.Admin, claims *AdminClaims) error {
	if resetAt := a.PasswordResetAt(); resetAt != nil && claims.IssuedAt != nil {
		if claims.IssuedAt.Time.Add(time.Second).Before(*resetAt) {
			return apperrors.NewUnauthorizedError("token invalidated by password reset")
		}
	}
	return nil
}
