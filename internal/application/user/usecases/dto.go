// Package usecases holds user-scoped application use cases.
package usecases

import (
	"time"

	"github.com/veilnet-io/veilnet/internal/domain/user"
)

// ProxyResult is the API shape of one protocol credential.
type ProxyResult struct {
	Protocol string `json:"protocol"`
	UUID     string `json:"id,omitempty"`
	Flow     string `json:"flow,omitempty"`
	Password string `json:"password,omitempty"`
	Method   string `json:"method,omitempty"`
}

// NextPlanResult is the API shape of a pending plan.
type NextPlanResult struct {
	DataLimit           int64  `json:"data_limit"`
	ExpireSeconds       *int64 `json:"expire_seconds,omitempty"`
	AddRemainingTraffic bool   `json:"add_remaining_traffic"`
	FireOnEither        bool   `json:"fire_on_either"`
}

// UserResult is the API shape of a user.
type UserResult struct {
	ID                   uint            `json:"id"`
	AccountNumber        string          `json:"account_number"`
	AdminID              *uint           `json:"admin_id,omitempty"`
	Status               string          `json:"status"`
	DataLimit            *int64          `json:"data_limit,omitempty"`
	UsedTraffic          int64           `json:"used_traffic"`
	ExpireAt             *time.Time      `json:"expire_at,omitempty"`
	OnHoldExpireDuration *int64          `json:"on_hold_expire_duration,omitempty"`
	OnHoldTimeout        *time.Time      `json:"on_hold_timeout,omitempty"`
	DataLimitResetStrategy string        `json:"data_limit_reset_strategy"`
	ActiveNodeID         *uint           `json:"active_node_id,omitempty"`
	OnlineAt             *time.Time      `json:"online_at,omitempty"`
	Proxies              []ProxyResult   `json:"proxies"`
	NextPlan             *NextPlanResult `json:"next_plan,omitempty"`
	AutoDeleteInDays     *int            `json:"auto_delete_in_days,omitempty"`
	SubUpdatedAt         *time.Time      `json:"sub_updated_at,omitempty"`
	SubRevokedAt         *time.Time      `json:"sub_revoked_at,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	SubscriptionToken    string          `json:"subscription_token,omitempty"`
}

// NewUserResult maps a user aggregate to its API shape.
func NewUserResult(u *user.User) *UserResult {
	proxies := make([]ProxyResult, 0, len(u.Proxies()))
	for _, p := range u.Proxies() {
		s := p.Settings()
		proxies = append(proxies, ProxyResult{
			Protocol: string(p.Protocol()),
			UUID:     s.UUID,
			Flow:     s.Flow,
			Password: s.Password,
			Method:   s.Method,
		})
	}

	var nextPlan *NextPlanResult
	if plan := u.NextPlan(); plan != nil {
		nextPlan = &NextPlanResult{
			DataLimit:           plan.DataLimit,
			ExpireSeconds:       plan.ExpireSeconds,
			AddRemainingTraffic: plan.AddRemainingTraffic,
			FireOnEither:        plan.FireOnEither,
		}
	}

	return &UserResult{
		ID:                     u.ID(),
		AccountNumber:          u.AccountNumber(),
		AdminID:                u.AdminID(),
		Status:                 u.Status().String(),
		DataLimit:              u.DataLimit(),
		UsedTraffic:            u.UsedTraffic(),
		ExpireAt:               u.ExpireAt(),
		OnHoldExpireDuration:   u.OnHoldExpireDuration(),
		OnHoldTimeout:          u.OnHoldTimeout(),
		DataLimitResetStrategy: string(u.ResetStrategy()),
		ActiveNodeID:           u.ActiveNodeID(),
		OnlineAt:               u.OnlineAt(),
		Proxies:                proxies,
		NextPlan:               nextPlan,
		AutoDeleteInDays:       u.AutoDeleteInDays(),
		SubUpdatedAt:           u.SubUpdatedAt(),
		SubRevokedAt:           u.SubRevokedAt(),
		CreatedAt:              u.CreatedAt(),
	}
}
