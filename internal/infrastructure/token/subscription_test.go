package token

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilnet-io/veilnet/internal/domain/user"
)

func TestSubscriptionIssuer_Roundtrip(t *testing.T) {
	issuer := NewSubscriptionIssuer("test-secret")
	account := uuid.NewString()
	now := time.Now().UTC().Truncate(time.Second)

	signed, err := issuer.Issue(account, now)
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	gotAccount, issuedAt, err := issuer.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, account, gotAccount)
	assert.Equal(t, now, issuedAt.UTC())
}

func TestSubscriptionIssuer_Parse(t *testing.T) {
	issuer := NewSubscriptionIssuer("test-secret")

	t.Run("rejects garbage", func(t *testing.T) {
		_, _, err := issuer.Parse("not-a-token")
		assert.Error(t, err)
	})

	t.Run("rejects tokens signed with another secret", func(t *testing.T) {
		other := NewSubscriptionIssuer("other-secret")
		signed, err := other.Issue(uuid.NewString(), time.Now().UTC())
		require.NoError(t, err)

		_, _, err = issuer.Parse(signed)
		assert.Error(t, err)
	})
}

func TestSubscriptionIssuer_ValidateFor(t *testing.T) {
	issuer := NewSubscriptionIssuer("test-secret")

	newUser := func(t *testing.T) *user.User {
		u, err := user.NewUser(uuid.NewString(), user.StatusActive, nil)
		require.NoError(t, err)
		return u
	}

	t.Run("accepts token issued after creation", func(t *testing.T) {
		u := newUser(t)
		assert.NoError(t, issuer.ValidateFor(u, u.CreatedAt().Add(time.Minute)))
	})

	t.Run("accepts token issued in the same second as creation", func(t *testing.T) {
		u := newUser(t)
		assert.NoError(t, issuer.ValidateFor(u, u.CreatedAt().Truncate(time.Second)))
	})

	t.Run("rejects token predating the account", func(t *testing.T) {
		u := newUser(t)
		err := issuer.ValidateFor(u, u.CreatedAt().Add(-time.Hour))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "predates")
	})

	t.Run("rejects token issued before revocation", func(t *testing.T) {
		u := newUser(t)
		issuedAt := u.CreatedAt().Add(time.Minute)
		require.NoError(t, u.RevokeSubscription(issuedAt.Add(time.Hour)))

		err := issuer.ValidateFor(u, issuedAt)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "revoked")
	})

	t.Run("accepts token issued after revocation", func(t *testing.T) {
		u := newUser(t)
		revokedAt := u.CreatedAt().Add(time.Minute)
		require.NoError(t, u.RevokeSubscription(revokedAt))

		assert.NoError(t, issuer.ValidateFor(u, revokedAt.Add(time.Minute)))
	})
}
