package user

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	t.Run("should generate account number when empty", func(t *testing.T) {
		u, err := NewUser("", StatusActive, nil)

		require.NoError(t, err)
		assert.NotEmpty(t, u.AccountNumber())
		_, err = uuid.Parse(u.AccountNumber())
		assert.NoError(t, err)
		assert.Equal(t, StatusActive, u.Status())
	})

	t.Run("should lowercase provided account number", func(t *testing.T) {
		u, err := NewUser("  0E3F8E57-5E0F-4E0B-9F5A-1B2C3D4E5F60 ", StatusActive, nil)

		require.NoError(t, err)
		assert.Equal(t, "0e3f8e57-5e0f-4e0b-9f5a-1b2c3d4e5f60", u.AccountNumber())
	})

	t.Run("should reject non-UUID account number", func(t *testing.T) {
		u, err := NewUser("not-a-uuid", StatusActive, nil)

		assert.Error(t, err)
		assert.Nil(t, u)
		assert.Contains(t, err.Error(), "must be a UUID")
	})

	t.Run("should default to disabled status", func(t *testing.T) {
		u, err := NewUser("", "", nil)

		require.NoError(t, err)
		assert.Equal(t, StatusDisabled, u.Status())
	})

	t.Run("should reject unknown status", func(t *testing.T) {
		u, err := NewUser("", Status("frozen"), nil)

		assert.Error(t, err)
		assert.Nil(t, u)
	})

	t.Run("should record admin ownership", func(t *testing.T) {
		adminID := uint(7)
		u, err := NewUser("", StatusActive, &adminID)

		require.NoError(t, err)
		require.NotNil(t, u.AdminID())
		assert.Equal(t, uint(7), *u.AdminID())
	})
}

func TestUser_SetDataLimit(t *testing.T) {
	newActive := func(t *testing.T) *User {
		u, err := NewUser("", StatusActive, nil)
		require.NoError(t, err)
		return u
	}

	t.Run("should reject negative limit", func(t *testing.T) {
		u := newActive(t)
		limit := int64(-1)

		assert.Error(t, u.SetDataLimit(&limit))
	})

	t.Run("should demote active user when usage reached new limit", func(t *testing.T) {
		u := newActive(t)
		u.AddUsedTraffic(100, time.Now().UTC())
		limit := int64(100)

		require.NoError(t, u.SetDataLimit(&limit))
		assert.Equal(t, StatusLimited, u.Status())
		assert.True(t, u.IsDataLimitReached())
	})

	t.Run("should reactivate limited user when limit raised", func(t *testing.T) {
		u := newActive(t)
		u.AddUsedTraffic(100, time.Now().UTC())
		low := int64(100)
		require.NoError(t, u.SetDataLimit(&low))
		require.Equal(t, StatusLimited, u.Status())

		high := int64(200)
		require.NoError(t, u.SetDataLimit(&high))
		assert.Equal(t, StatusActive, u.Status())
	})

	t.Run("should reactivate limited user when limit cleared", func(t *testing.T) {
		u := newActive(t)
		u.AddUsedTraffic(100, time.Now().UTC())
		low := int64(50)
		require.NoError(t, u.SetDataLimit(&low))
		require.Equal(t, StatusLimited, u.Status())

		require.NoError(t, u.SetDataLimit(nil))
		assert.Equal(t, StatusActive, u.Status())
		assert.False(t, u.IsDataLimitReached())
	})

	t.Run("should not touch disabled users", func(t *testing.T) {
		u, err := NewUser("", StatusDisabled, nil)
		require.NoError(t, err)
		u.AddUsedTraffic(100, time.Now().UTC())
		limit := int64(50)

		require.NoError(t, u.SetDataLimit(&limit))
		assert.Equal(t, StatusDisabled, u.Status())
	})
}

func TestUser_SetExpire(t *testing.T) {
	t.Run("should expire active user with past expiry", func(t *testing.T) {
		u, err := NewUser("", StatusActive, nil)
		require.NoError(t, err)
		past := time.Now().UTC().Add(-time.Hour)

		require.NoError(t, u.SetExpire(&past))
		assert.Equal(t, StatusExpired, u.Status())
		assert.True(t, u.IsExpired(time.Now().UTC()))
	})

	t.Run("should reactivate expired user with future expiry", func(t *testing.T) {
		u, err := NewUser("", StatusActive, nil)
		require.NoError(t, err)
		past := time.Now().UTC().Add(-time.Hour)
		require.NoError(t, u.SetExpire(&past))
		require.Equal(t, StatusExpired, u.Status())

		future := time.Now().UTC().Add(time.Hour)
		require.NoError(t, u.SetExpire(&future))
		assert.Equal(t, StatusActive, u.Status())
	})

	t.Run("should reactivate expired user when expiry cleared", func(t *testing.T) {
		u, err := NewUser("", StatusActive, nil)
		require.NoError(t, err)
		past := time.Now().UTC().Add(-time.Hour)
		require.NoError(t, u.SetExpire(&past))

		require.NoError(t, u.SetExpire(nil))
		assert.Equal(t, StatusActive, u.Status())
		assert.Nil(t, u.ExpireAt())
	})

	t.Run("should reject expiry on on-hold user", func(t *testing.T) {
		u, err := NewUser("", StatusActive, nil)
		require.NoError(t, err)
		require.NoError(t, u.SetOnHold(3600, nil))
		future := time.Now().UTC().Add(time.Hour)

		assert.Error(t, u.SetExpire(&future))
	})
}

func TestUser_OnHoldLifecycle(t *testing.T) {
	t.Run("SetOnHold should clear expiry and switch status", func(t *testing.T) {
		u, err := NewUser("", StatusActive, nil)
		require.NoError(t, err)
		future := time.Now().UTC().Add(time.Hour)
		require.NoError(t, u.SetExpire(&future))

		require.NoError(t, u.SetOnHold(7200, nil))
		assert.Equal(t, StatusOnHold, u.Status())
		assert.Nil(t, u.ExpireAt())
		require.NotNil(t, u.OnHoldExpireDuration())
		assert.Equal(t, int64(7200), *u.OnHoldExpireDuration())
	})

	t.Run("SetOnHold should reject non-positive duration", func(t *testing.T) {
		u, err := NewUser("", StatusActive, nil)
		require.NoError(t, err)

		assert.Error(t, u.SetOnHold(0, nil))
		assert.Error(t, u.SetOnHold(-10, nil))
	})

	t.Run("ReleaseHold should convert duration to expiry from now", func(t *testing.T) {
		u, err := NewUser("", StatusActive, nil)
		require.NoError(t, err)
		require.NoError(t, u.SetOnHold(3600, nil))
		now := time.Now().UTC()

		require.NoError(t, u.ReleaseHold(now))
		assert.Equal(t, StatusActive, u.Status())
		require.NotNil(t, u.ExpireAt())
		assert.Equal(t, now.Add(time.Hour), *u.ExpireAt())
		assert.Nil(t, u.OnHoldExpireDuration())
		assert.Nil(t, u.OnHoldTimeout())
	})

	t.Run("ReleaseHold should fail when not on hold", func(t *testing.T) {
		u, err := NewUser("", StatusActive, nil)
		require.NoError(t, err)

		assert.Error(t, u.ReleaseHold(time.Now().UTC()))
	})

	t.Run("ShouldReleaseHold triggers when user comes online after hold", func(t *testing.T) {
		u, err := NewUser("", StatusActive, nil)
		require.NoError(t, err)
		require.NoError(t, u.SetOnHold(3600, nil))
		now := time.Now().UTC()

		assert.False(t, u.ShouldReleaseHold(now))

		u.AddUsedTraffic(1, now.Add(time.Minute))
		assert.True(t, u.ShouldReleaseHold(now.Add(time.Minute)))
	})

	t.Run("ShouldReleaseHold triggers when timeout passed", func(t *testing.T) {
		u, err := NewUser("", StatusActive, nil)
		require.NoError(t, err)
		timeout := time.Now().UTC().Add(time.Minute)
		require.NoError(t, u.SetOnHold(3600, &timeout))

		assert.False(t, u.ShouldReleaseHold(timeout.Add(-time.Second)))
		assert.True(t, u.ShouldReleaseHold(timeout))
		assert.True(t, u.ShouldReleaseHold(timeout.Add(time.Hour)))
	})

	t.Run("ShouldReleaseHold ignores non-on-hold users", func(t *testing.T) {
		u, err := NewUser("", StatusActive, nil)
		require.NoError(t, err)
		u.AddUsedTraffic(1, time.Now().UTC())

		assert.False(t, u.ShouldReleaseHold(time.Now().UTC()))
	})
}

func TestUser_ResetUsage(t *testing.T) {
	t.Run("should zero counter and return prior value", func(t *testing.T) {
		u, err := NewUser("", StatusActive, nil)
		require.NoError(t, err)
		u.AddUsedTraffic(500, time.Now().UTC())

		before := u.ResetUsage(time.Now().UTC())
		assert.Equal(t, int64(500), before)
		assert.Equal(t, int64(0), u.UsedTraffic())
	})

	t.Run("should reactivate limited user and drop pending plan", func(t *testing.T) {
		u, err := NewUser("", StatusActive, nil)
		require.NoError(t, err)
		u.AddUsedTraffic(100, time.Now().UTC())
		limit := int64(100)
		require.NoError(t, u.SetDataLimit(&limit))
		require.Equal(t, StatusLimited, u.Status())
		u.SetNextPlan(&NextPlan{DataLimit: 1 << 30})

		u.ResetUsage(time.Now().UTC())
		assert.Equal(t, StatusActive, u.Status())
		assert.Nil(t, u.NextPlan())
	})
}

func TestUser_IsResetDue(t *testing.T) {
	reconstruct := func(t *testing.T, strategy ResetStrategy, lastReset time.Time) *User {
		u, err := ReconstructUser(
			1, uuid.NewString(), nil, StatusActive,
			nil, 0, nil, nil, nil,
			strategy, nil, nil, nil, nil, nil,
			lastReset, lastReset, nil, nil, nil, lastReset,
		)
		require.NoError(t, err)
		return u
	}

	now := time.Now().UTC()

	t.Run("none strategy is never due", func(t *testing.T) {
		u := reconstruct(t, ResetStrategyNone, now.Add(-365*24*time.Hour))
		assert.False(t, u.IsResetDue(now))
	})

	t.Run("day strategy comes due after a day", func(t *testing.T) {
		u := reconstruct(t, ResetStrategyDay, now.Add(-25*time.Hour))
		assert.True(t, u.IsResetDue(now))

		u = reconstruct(t, ResetStrategyDay, now.Add(-23*time.Hour))
		assert.False(t, u.IsResetDue(now))
	})

	t.Run("month strategy uses 30 days", func(t *testing.T) {
		u := reconstruct(t, ResetStrategyMonth, now.Add(-31*24*time.Hour))
		assert.True(t, u.IsResetDue(now))

		u = reconstruct(t, ResetStrategyMonth, now.Add(-29*24*time.Hour))
		assert.False(t, u.IsResetDue(now))
	})
}

func TestUser_ApplyNextPlan(t *testing.T) {
	t.Run("should fail with no pending plan", func(t *testing.T) {
		u, err := NewUser("", StatusActive, nil)
		require.NoError(t, err)

		assert.Error(t, u.ApplyNextPlan(time.Now().UTC()))
	})

	t.Run("should apply fresh limits and reactivate", func(t *testing.T) {
		u, err := NewUser("", StatusActive, nil)
		require.NoError(t, err)
		u.AddUsedTraffic(100, time.Now().UTC())
		limit := int64(100)
		require.NoError(t, u.SetDataLimit(&limit))
		require.Equal(t, StatusLimited, u.Status())

		expireSeconds := int64(86400)
		u.SetNextPlan(&NextPlan{DataLimit: 1000, ExpireSeconds: &expireSeconds})
		now := time.Now().UTC()

		require.NoError(t, u.ApplyNextPlan(now))
		assert.Equal(t, StatusActive, u.Status())
		assert.Equal(t, int64(0), u.UsedTraffic())
		require.NotNil(t, u.DataLimit())
		assert.Equal(t, int64(1000), *u.DataLimit())
		require.NotNil(t, u.ExpireAt())
		assert.Equal(t, now.Add(24*time.Hour), *u.ExpireAt())
		assert.Nil(t, u.NextPlan())
	})

	t.Run("should carry remaining quota into the new limit", func(t *testing.T) {
		u, err := NewUser("", StatusActive, nil)
		require.NoError(t, err)
		limit := int64(1000)
		require.NoError(t, u.SetDataLimit(&limit))
		u.AddUsedTraffic(400, time.Now().UTC())
		u.SetNextPlan(&NextPlan{DataLimit: 2000, AddRemainingTraffic: true})

		require.NoError(t, u.ApplyNextPlan(time.Now().UTC()))
		require.NotNil(t, u.DataLimit())
		assert.Equal(t, int64(2600), *u.DataLimit())
	})

	t.Run("should not carry negative remaining quota", func(t *testing.T) {
		u, err := NewUser("", StatusActive, nil)
		require.NoError(t, err)
		u.AddUsedTraffic(500, time.Now().UTC())
		limit := int64(100)
		require.NoError(t, u.SetDataLimit(&limit))
		u.SetNextPlan(&NextPlan{DataLimit: 2000, AddRemainingTraffic: true})

		require.NoError(t, u.ApplyNextPlan(time.Now().UTC()))
		require.NotNil(t, u.DataLimit())
		assert.Equal(t, int64(2000), *u.DataLimit())
	})

	t.Run("zero plan limit means unlimited", func(t *testing.T) {
		u, err := NewUser("", StatusActive, nil)
		require.NoError(t, err)
		limit := int64(100)
		require.NoError(t, u.SetDataLimit(&limit))
		u.SetNextPlan(&NextPlan{DataLimit: 0})

		require.NoError(t, u.ApplyNextPlan(time.Now().UTC()))
		assert.Nil(t, u.DataLimit())
		assert.Nil(t, u.ExpireAt())
	})
}

func TestUser_RevokeSubscription(t *testing.T) {
	u, err := NewUser("", StatusActive, nil)
	require.NoError(t, err)

	vless, err := NewProxy(ProtocolVLESS)
	require.NoError(t, err)
	ss, err := NewProxyWithSettings(ProtocolShadowsocks, ProxySettings{Method: "aes-256-gcm"})
	require.NoError(t, err)
	require.NoError(t, u.SetProxies([]*Proxy{vless, ss}))

	oldUUID := vless.Settings().UUID
	oldPassword := ss.Settings().Password
	now := time.Now().UTC()

	require.NoError(t, u.RevokeSubscription(now))

	assert.NotEqual(t, oldUUID, u.Proxy(ProtocolVLESS).Settings().UUID)
	assert.NotEqual(t, oldPassword, u.Proxy(ProtocolShadowsocks).Settings().Password)
	assert.Equal(t, "aes-256-gcm", u.Proxy(ProtocolShadowsocks).Settings().Method)
	require.NotNil(t, u.SubRevokedAt())
	assert.Equal(t, now, *u.SubRevokedAt())
	require.NotNil(t, u.SubUpdatedAt())
}

func TestUser_SetProxies(t *testing.T) {
	t.Run("should reject duplicate protocols", func(t *testing.T) {
		u, err := NewUser("", StatusActive, nil)
		require.NoError(t, err)
		a, err := NewProxy(ProtocolVMess)
		require.NoError(t, err)
		b, err := NewProxy(ProtocolVMess)
		require.NoError(t, err)

		assert.Error(t, u.SetProxies([]*Proxy{a, b}))
	})

	t.Run("Proxy returns nil for missing protocol", func(t *testing.T) {
		u, err := NewUser("", StatusActive, nil)
		require.NoError(t, err)
		p, err := NewProxy(ProtocolTrojan)
		require.NoError(t, err)
		require.NoError(t, u.SetProxies([]*Proxy{p}))

		assert.NotNil(t, u.Proxy(ProtocolTrojan))
		assert.Nil(t, u.Proxy(ProtocolVLESS))
	})
}

func TestUser_EngineEmail(t *testing.T) {
	account := uuid.NewString()
	now := time.Now().UTC()
	u, err := ReconstructUser(
		42, account, nil, StatusActive,
		nil, 0, nil, nil, nil,
		ResetStrategyNone, nil, nil, nil, nil, nil,
		now, now, nil, nil, nil, now,
	)
	require.NoError(t, err)

	assert.Equal(t, "42."+account, u.EngineEmail())
}

func TestUser_SetAutoDelete(t *testing.T) {
	u, err := NewUser("", StatusActive, nil)
	require.NoError(t, err)

	days := -1
	assert.Error(t, u.SetAutoDelete(&days))

	days = 30
	require.NoError(t, u.SetAutoDelete(&days))
	require.NotNil(t, u.AutoDeleteInDays())
	assert.Equal(t, 30, *u.AutoDeleteInDays())

	require.NoError(t, u.SetAutoDelete(nil))
	assert.Nil(t, u.AutoDeleteInDays())
}

func TestUser_AddUsedTraffic(t *testing.T) {
	u, err := NewUser("", StatusActive, nil)
	require.NoError(t, err)
	now := time.Now().UTC()

	u.AddUsedTraffic(0, now)
	u.AddUsedTraffic(-5, now)
	assert.Equal(t, int64(0), u.UsedTraffic())
	assert.Nil(t, u.OnlineAt())

	u.AddUsedTraffic(10, now)
	assert.Equal(t, int64(10), u.UsedTraffic())
	require.NotNil(t, u.OnlineAt())
	assert.Equal(t, now, *u.OnlineAt())
}

func TestProxy_RegenerateSecret(t *testing.T) {
	t.Run("vless gets a UUID", func(t *testing.T) {
		p, err := NewProxy(ProtocolVLESS)
		require.NoError(t, err)
		_, err = uuid.Parse(p.Settings().UUID)
		assert.NoError(t, err)
	})

	t.Run("shadowsocks gets a password and default method", func(t *testing.T) {
		p, err := NewProxy(ProtocolShadowsocks)
		require.NoError(t, err)
		assert.NotEmpty(t, p.Settings().Password)
		assert.Equal(t, DefaultShadowsocksMethod, p.Settings().Method)
	})

	t.Run("provided settings keep their secret", func(t *testing.T) {
		p, err := NewProxyWithSettings(ProtocolTrojan, ProxySettings{Password: "keepme"})
		require.NoError(t, err)
		assert.Equal(t, "keepme", p.Settings().Password)
	})
}
