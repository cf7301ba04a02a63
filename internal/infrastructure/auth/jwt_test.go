package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilnet-io/veilnet/internal/domain/admin"
	"github.com/veilnet-io/veilnet/internal/shared/config"
)

func testService(sudoUsernames ...string) *JWTService {
	return NewJWTService(&config.AuthConfig{
		JWTSecret:        "test-secret",
		AccessExpMinutes: 60,
		SudoUsernames:    sudoUsernames,
	})
}

func testAdmin(t *testing.T, username string, isSudo bool) *admin.Admin {
	a, err := admin.NewAdmin(username, "password123", isSudo, 4)
	require.NoError(t, err)
	require.NoError(t, a.SetID(1))
	return a
}

func TestJWTService_IssueVerify(t *testing.T) {
	svc := testService()
	a := testAdmin(t, "operator", false)

	signed, err := svc.Issue(a, time.Now().UTC())
	require.NoError(t, err)

	claims, err := svc.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "1", claims.Subject)
	assert.Equal(t, "operator", claims.Username)
	assert.False(t, claims.IsSudo)
}

func TestJWTService_Verify(t *testing.T) {
	svc := testService()

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := svc.Verify("garbage")
		assert.Error(t, err)
	})

	t.Run("rejects other secret", func(t *testing.T) {
		other := NewJWTService(&config.AuthConfig{JWTSecret: "different", AccessExpMinutes: 60})
		signed, err := other.Issue(testAdmin(t, "operator", false), time.Now().UTC())
		require.NoError(t, err)

		_, err = svc.Verify(signed)
		assert.Error(t, err)
	})

	t.Run("rejects expired token", func(t *testing.T) {
		signed, err := svc.Issue(testAdmin(t, "operator", false), time.Now().UTC().Add(-2*time.Hour))
		require.NoError(t, err)

		_, err = svc.Verify(signed)
		assert.Error(t, err)
	})
}

func TestJWTService_SudoElevation(t *testing.T) {
	t.Run("stored sudo flag carries through", func(t *testing.T) {
		svc := testService()
		signed, err := svc.Issue(testAdmin(t, "root", true), time.Now().UTC())
		require.NoError(t, err)

		claims, err := svc.Verify(signed)
		require.NoError(t, err)
		assert.True(t, claims.IsSudo)
	})

	t.Run("config-declared usernames are sudo regardless of the flag", func(t *testing.T) {
		svc := testService("Boss")

		assert.True(t, svc.IsEnvSudo("boss"))
		assert.True(t, svc.IsEnvSudo("BOSS"))
		assert.False(t, svc.IsEnvSudo("operator"))

		signed, err := svc.Issue(testAdmin(t, "boss", false), time.Now().UTC())
		require.NoError(t, err)
		claims, err := svc.Verify(signed)
		require.NoError(t, err)
		assert.True(t, claims.IsSudo)
	})
}

func TestJWTService_ValidateFreshness(t *testing.T) {
	svc := testService()
	a := testAdmin(t, "operator", false)

	issuedAt := time.Now().UTC()
	signed, err := svc.Issue(a, issuedAt)
	require.NoError(t, err)
	claims, err := svc.Verify(signed)
	require.NoError(t, err)

	t.Run("fresh token passes", func(t *testing.T) {
		assert.NoError(t, svc.ValidateFreshness(a, claims))
	})

	t.Run("password reset invalidates earlier tokens", func(t *testing.T) {
		time.Sleep(1100 * time.Millisecond)
		require.NoError(t, a.SetPassword("new-password", 4))

		err := svc.ValidateFreshness(a, claims)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "password reset")
	})

	t.Run("token issued after the reset passes", func(t *testing.T) {
		fresh, err := svc.Issue(a, time.Now().UTC().Add(time.Minute))
		require.NoError(t, err)
		freshClaims, err := svc.Verify(fresh)
		require.NoError(t, err)

		assert.NoError(t, svc.ValidateFreshness(a, freshClaims))
	})
}
