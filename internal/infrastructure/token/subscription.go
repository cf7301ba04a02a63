// Package token issues and validates subscription tokens. A token binds an
// account number to its issue time; rotation of the user's credentials
// invalidates everything issued before the rotation.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/veilnet-io/veilnet/internal/domain/user"
	apperrors "github.com/veilnet-io/veilnet/internal/shared/errors"
)

// SubscriptionIssuer signs and verifies subscription tokens.
type SubscriptionIssuer struct {
	secret []byte
}

// NewSubscriptionIssuer creates an issuer with the panel signing secret.
func NewSubscriptionIssuer(secret string) *SubscriptionIssuer {
	return &SubscriptionIssuer{secret: []byte(secret)}
}

type subscriptionClaims struct {
	jwt.RegisteredClaims
	Access string `json:"access"`
}

// Issue returns a token for the account number, stamped with now.
func (i *SubscriptionIssuer) Issue(accountNumber string, now time.Time) (string, error) {
	claims := subscriptionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  accountNumber,
			IssuedAt: jwt.NewNumericDate(now.UTC()),
		},
		Access: "subscription",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign subscription token: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature and returns the account number and issue
// time. Structural failures come back as unauthorized errors.
func (i *SubscriptionIssuer) Parse(tokenStr string) (accountNumber string, issuedAt time.Time, err error) {
	var claims subscriptionClaims
	parsed, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", time.Time{}, apperrors.NewUnauthorizedError("invalid subscription token")
	}
	if claims.Subject == "" || claims.IssuedAt == nil {
		return "", time.Time{}, apperrors.NewUnauthorizedError("invalid subscription token")
	}
	return claims.Subject, claims.IssuedAt.Time, nil
}

// ValidateFor rejects tokens issued before the user existed or before the
// last subscription revocation.
func (i *SubscriptionIssuer) ValidateFor(u *user.User, issuedAt time.Time) error {
	// One second of slack absorbs issue-time truncation to whole seconds.
	if issuedAt.Add(time.Second).Before(u.CreatedAt()) {
		return apperrors.NewUnauthorizedError("subscription token predates account")
	}
	if revokedAt := u.SubRevokedAt(); revokedAt != nil && issuedAt.Add(time.Second).Before(*revokedAt) {
		return apperrors.NewUnauthorizedError("subscription token has been revoked")
	}
	return nil
}
