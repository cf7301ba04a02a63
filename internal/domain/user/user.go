package user

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User represents the subscriber aggregate root.
type User struct {
	id                   uint
	accountNumber        string
	adminID              *uint
	status               Status
	dataLimit            *int64
	usedTraffic          int64
	expireAt             *time.Time
	onHoldExpireDuration *int64 // seconds
	onHoldTimeout        *time.Time
	resetStrategy        ResetStrategy
	activeNodeID         *uint
	onlineAt             *time.Time
	proxies              []*Proxy
	nextPlan             *NextPlan
	autoDeleteInDays     *int
	lastTrafficResetAt   time.Time
	lastStatusChange     time.Time
	subRevokedAt         *time.Time
	subUpdatedAt         *time.Time
	editedAt             *time.Time
	createdAt            time.Time
}

// NewUser creates a user. An empty account number is replaced with a fresh
// UUID; provided account numbers are canonicalized to lowercase. Status
// defaults to disabled (pending payment) unless specified.
func NewUser(accountNumber string, status Status, adminID *uint) (*User, error) {
	if accountNumber == "" {
		accountNumber = uuid.NewString()
	}
	accountNumber = strings.ToLower(strings.TrimSpace(accountNumber))
	if _, err := uuid.Parse(accountNumber); err != nil {
		return nil, fmt.Errorf("account number must be a UUID: %w", err)
	}
	if status == "" {
		status = StatusDisabled
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid user status %q", status)
	}

	now := time.Now().UTC()
	return &User{
		accountNumber:      accountNumber,
		adminID:            adminID,
		status:             status,
		resetStrategy:      ResetStrategyNone,
		lastTrafficResetAt: now,
		lastStatusChange:   now,
		createdAt:          now,
	}, nil
}

// ReconstructUser reconstructs a user from persistence.
func ReconstructUser(
	id uint,
	accountNumber string,
	adminID *uint,
	status Status,
	dataLimit *int64,
	usedTraffic int64,
	expireAt *time.Time,
	onHoldExpireDuration *int64,
	onHoldTimeout *time.Time,
	resetStrategy ResetStrategy,
	activeNodeID *uint,
	onlineAt *time.Time,
	proxies []*Proxy,
	nextPlan *NextPlan,
	autoDeleteInDays *int,
	lastTrafficResetAt time.Time,
	lastStatusChange time.Time,
	subRevokedAt, subUpdatedAt, editedAt *time.Time,
	createdAt time.Time,
) (*User, error) {
	if id == 0 {
		return nil, fmt.Errorf("user ID cannot be zero")
	}
	if accountNumber == "" {
		return nil, fmt.Errorf("account number is required")
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid user status %q", status)
	}
	if resetStrategy == "" {
		resetStrategy = ResetStrategyNone
	}
	return &User{
		id:                   id,
		accountNumber:        accountNumber,
		adminID:              adminID,
		status:               status,
		dataLimit:            dataLimit,
		usedTraffic:          usedTraffic,
		expireAt:             expireAt,
		onHoldExpireDuration: onHoldExpireDuration,
		onHoldTimeout:        onHoldTimeout,
		resetStrategy:        resetStrategy,
		activeNodeID:         activeNodeID,
		onlineAt:             onlineAt,
		proxies:              proxies,
		nextPlan:             nextPlan,
		autoDeleteInDays:     autoDeleteInDays,
		lastTrafficResetAt:   lastTrafficResetAt,
		lastStatusChange:     lastStatusChange,
		subRevokedAt:         subRevokedAt,
		subUpdatedAt:         subUpdatedAt,
		editedAt:             editedAt,
		createdAt:            createdAt,
	}, nil
}

func (u *User) ID() uint                      { return u.id }
func (u *User) AccountNumber() string         { return u.accountNumber }
func (u *User) AdminID() *uint                { return u.adminID }
func (u *User) Status() Status                { return u.status }
func (u *User) DataLimit() *int64             { return u.dataLimit }
func (u *User) UsedTraffic() int64            { return u.usedTraffic }
func (u *User) ExpireAt() *time.Time          { return u.expireAt }
func (u *User) OnHoldExpireDuration() *int64  { return u.onHoldExpireDuration }
func (u *User) OnHoldTimeout() *time.Time     { return u.onHoldTimeout }
func (u *User) ResetStrategy() ResetStrategy  { return u.resetStrategy }
func (u *User) ActiveNodeID() *uint           { return u.activeNodeID }
func (u *User) OnlineAt() *time.Time          { return u.onlineAt }
func (u *User) Proxies() []*Proxy             { return u.proxies }
func (u *User) NextPlan() *NextPlan           { return u.nextPlan }
func (u *User) AutoDeleteInDays() *int        { return u.autoDeleteInDays }
func (u *User) LastTrafficResetAt() time.Time { return u.lastTrafficResetAt }
func (u *User) LastStatusChange() time.Time   { return u.lastStatusChange }
func (u *User) SubRevokedAt() *time.Time      { return u.subRevokedAt }
func (u *User) SubUpdatedAt() *time.Time      { return u.subUpdatedAt }
func (u *User) EditedAt() *time.Time          { return u.editedAt }
func (u *User) CreatedAt() time.Time          { return u.createdAt }

// SetID sets the user ID (persistence layer use only).
func (u *User) SetID(id uint) error {
	if u.id != 0 {
		return fmt.Errorf("user ID is already set")
	}
	if id == 0 {
		return fmt.Errorf("user ID cannot be zero")
	}
	u.id = id
	return nil
}

// EngineEmail returns the identity this user carries inside engine configs
// and traffic reports: "{id}.{account_number}".
func (u *User) EngineEmail() string {
	return fmt.Sprintf("%d.%s", u.id, u.accountNumber)
}

// Proxy returns the user's proxy for the given protocol, or nil.
func (u *User) Proxy(protocol Protocol) *Proxy {
	for _, p := range u.proxies {
		if p.Protocol() == protocol {
			return p
		}
	}
	return nil
}

// SetProxies replaces the proxy set. At most one proxy per protocol.
func (u *User) SetProxies(proxies []*Proxy) error {
	seen := map[Protocol]bool{}
	for _, p := range proxies {
		if seen[p.Protocol()] {
			return fmt.Errorf("duplicate proxy protocol %q", p.Protocol())
		}
		seen[p.Protocol()] = true
	}
	u.proxies = proxies
	u.markEdited()
	return nil
}

func (u *User) setStatus(s Status) {
	if u.status == s {
		return
	}
	u.status = s
	u.lastStatusChange = time.Now().UTC()
}

// SetDataLimit applies a new data limit and re-derives the limited status:
// clearing or raising the limit above current usage demotes limited back to
// active; a limit at or below current usage promotes an active user to limited.
func (u *User) SetDataLimit(limit *int64) error {
	if limit != nil && *limit < 0 {
		return fmt.Errorf("data limit cannot be negative")
	}
	u.dataLimit = limit
	switch {
	case u.status == StatusLimited && (limit == nil || u.usedTraffic < *limit):
		u.setStatus(StatusActive)
	case u.status == StatusActive && limit != nil && u.usedTraffic >= *limit:
		u.setStatus(StatusLimited)
	}
	u.markEdited()
	return nil
}

// SetExpire applies a new expiry and re-derives the expired status.
func (u *User) SetExpire(expireAt *time.Time) error {
	if u.status == StatusOnHold && expireAt != nil {
		return fmt.Errorf("on-hold users cannot carry an expire time")
	}
	now := time.Now().UTC()
	u.expireAt = expireAt
	switch {
	case u.status == StatusExpired && (expireAt == nil || expireAt.After(now)):
		u.setStatus(StatusActive)
	case u.status == StatusActive && expireAt != nil && !expireAt.After(now):
		u.setStatus(StatusExpired)
	}
	u.markEdited()
	return nil
}

// SetOnHold puts the user on hold with the given expire duration and an
// optional timeout after which the hold releases unconditionally.
func (u *User) SetOnHold(expireDurationSeconds int64, timeout *time.Time) error {
	if expireDurationSeconds <= 0 {
		return fmt.Errorf("on-hold expire duration must be positive")
	}
	u.expireAt = nil
	u.onHoldExpireDuration = &expireDurationSeconds
	u.onHoldTimeout = timeout
	u.setStatus(StatusOnHold)
	u.markEdited()
	return nil
}

// ReleaseHold converts the pending on-hold duration into a concrete expiry
// starting now and activates the user.
func (u *User) ReleaseHold(now time.Time) error {
	if u.status != StatusOnHold {
		return fmt.Errorf("user is not on hold")
	}
	if u.onHoldExpireDuration != nil {
		expire := now.Add(time.Duration(*u.onHoldExpireDuration) * time.Second)
		u.expireAt = &expire
	}
	u.onHoldExpireDuration = nil
	u.onHoldTimeout = nil
	u.setStatus(StatusActive)
	return nil
}

// HoldBaseTime is the reference instant for online-based hold release:
// the last edit time when present, otherwise creation time.
func (u *User) HoldBaseTime() time.Time {
	if u.editedAt != nil {
		return *u.editedAt
	}
	return u.createdAt
}

// ShouldReleaseHold reports whether an on-hold user should transition to
// active: the user came online after the hold's base time, or the hold
// timeout has passed.
func (u *User) ShouldReleaseHold(now time.Time) bool {
	if u.status != StatusOnHold {
		return false
	}
	if u.onlineAt != nil && !u.onlineAt.Before(u.HoldBaseTime()) {
		return true
	}
	return u.onHoldTimeout != nil && !u.onHoldTimeout.After(now)
}

// Disable marks the user disabled.
func (u *User) Disable() {
	u.setStatus(StatusDisabled)
	u.markEdited()
}

// Activate marks the user active.
func (u *User) Activate() {
	u.setStatus(StatusActive)
	u.markEdited()
}

// MarkLimited transitions an active user whose usage reached its limit.
func (u *User) MarkLimited() {
	u.setStatus(StatusLimited)
}

// MarkExpired transitions an active user whose expiry has passed.
func (u *User) MarkExpired() {
	u.setStatus(StatusExpired)
}

// IsDataLimitReached reports whether used traffic has reached the limit.
func (u *User) IsDataLimitReached() bool {
	return u.dataLimit != nil && u.usedTraffic >= *u.dataLimit
}

// IsExpired reports whether the expiry has passed.
func (u *User) IsExpired(now time.Time) bool {
	return u.expireAt != nil && !u.expireAt.After(now)
}

// AddUsedTraffic accumulates reported traffic and marks the user online.
func (u *User) AddUsedTraffic(delta int64, now time.Time) {
	if delta <= 0 {
		return
	}
	u.usedTraffic += delta
	u.onlineAt = &now
}

// ResetUsage zeroes the usage counter, drops any pending next plan and
// re-activates a limited user. Returns the pre-reset counter for audit.
func (u *User) ResetUsage(now time.Time) int64 {
	before := u.usedTraffic
	u.usedTraffic = 0
	u.lastTrafficResetAt = now
	u.nextPlan = nil
	if u.status == StatusLimited {
		u.setStatus(StatusActive)
	}
	return before
}

// IsResetDue reports whether the periodic reset strategy has come due.
func (u *User) IsResetDue(now time.Time) bool {
	days := u.resetStrategy.IntervalDays()
	if days == 0 {
		return false
	}
	return now.Sub(u.lastTrafficResetAt) >= time.Duration(days)*24*time.Hour
}

// SetResetStrategy sets the periodic usage reset strategy.
func (u *User) SetResetStrategy(s ResetStrategy) error {
	if !s.IsValid() {
		return fmt.Errorf("invalid reset strategy %q", s)
	}
	u.resetStrategy = s
	u.markEdited()
	return nil
}

// SetNextPlan installs or replaces the pending next plan.
func (u *User) SetNextPlan(plan *NextPlan) {
	u.nextPlan = plan
	u.markEdited()
}

// ApplyNextPlan merges the pending plan into the user: fresh limits, usage
// zeroed (optionally carrying remaining quota into the new limit), status
// active. Fails when no plan is pending.
func (u *User) ApplyNextPlan(now time.Time) error {
	plan := u.nextPlan
	if plan == nil {
		return fmt.Errorf("no next plan pending")
	}
	newLimit := plan.DataLimit
	if plan.AddRemainingTraffic && u.dataLimit != nil {
		if remaining := *u.dataLimit - u.usedTraffic; remaining > 0 {
			newLimit += remaining
		}
	}
	if newLimit > 0 {
		u.dataLimit = &newLimit
	} else {
		u.dataLimit = nil
	}
	if plan.ExpireSeconds != nil {
		expire := now.Add(time.Duration(*plan.ExpireSeconds) * time.Second)
		u.expireAt = &expire
	} else {
		u.expireAt = nil
	}
	u.usedTraffic = 0
	u.lastTrafficResetAt = now
	u.nextPlan = nil
	u.setStatus(StatusActive)
	return nil
}

// SetActiveNode records the node the user's credentials are materialized on.
func (u *User) SetActiveNode(nodeID uint) {
	u.activeNodeID = &nodeID
}

// ClearActiveNode removes the active node reference.
func (u *User) ClearActiveNode() {
	u.activeNodeID = nil
}

// RevokeSubscription stamps the revocation time, invalidating previously
// issued subscription tokens, and regenerates every proxy secret in place.
func (u *User) RevokeSubscription(now time.Time) error {
	for _, p := range u.proxies {
		if err := p.RegenerateSecret(); err != nil {
			return err
		}
	}
	u.subRevokedAt = &now
	u.subUpdatedAt = &now
	return nil
}

// SetAutoDelete sets the number of days after the last status change when an
// expired or limited user becomes eligible for automatic deletion.
func (u *User) SetAutoDelete(days *int) error {
	if days != nil && *days < 0 {
		return fmt.Errorf("auto delete days cannot be negative")
	}
	u.autoDeleteInDays = days
	u.markEdited()
	return nil
}

// SetAdmin reassigns ownership.
func (u *User) SetAdmin(adminID *uint) {
	u.adminID = adminID
	u.markEdited()
}

func (u *User) markEdited() {
	now := time.Now().UTC()
	u.editedAt = &now
}
