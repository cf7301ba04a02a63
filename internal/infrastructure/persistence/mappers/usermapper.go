// Package mappers converts between persistence models and domain entities.
package mappers

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/veilnet-io/veilnet/internal/domain/user"
	"github.com/veilnet-io/veilnet/internal/infrastructure/persistence/models"
)

// UserMapper converts between UserModel and the user aggregate.
type UserMapper struct{}

// NewUserMapper creates a user mapper.
func NewUserMapper() UserMapper {
	return UserMapper{}
}

// ToModel maps a user aggregate onto a persistence model.
func (UserMapper) ToModel(u *user.User) (*models.UserModel, error) {
	m := &models.UserModel{
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
		AutoDeleteInDays:       u.AutoDeleteInDays(),
		LastTrafficResetAt:     u.LastTrafficResetAt(),
		LastStatusChange:       u.LastStatusChange(),
		SubRevokedAt:           u.SubRevokedAt(),
		SubUpdatedAt:           u.SubUpdatedAt(),
		EditedAt:               u.EditedAt(),
		CreatedAt:              u.CreatedAt(),
	}

	for _, p := range u.Proxies() {
		pm, err := proxyToModel(p)
		if err != nil {
			return nil, err
		}
		m.Proxies = append(m.Proxies, *pm)
	}

	if plan := u.NextPlan(); plan != nil {
		m.NextPlan = &models.NextPlanModel{
			UserID:              u.ID(),
			DataLimit:           plan.DataLimit,
			ExpireSeconds:       plan.ExpireSeconds,
			AddRemainingTraffic: plan.AddRemainingTraffic,
			FireOnEither:        plan.FireOnEither,
		}
	}

	return m, nil
}

// ToEntity maps a persistence model back into the user aggregate.
func (UserMapper) ToEntity(m *models.UserModel) (*user.User, error) {
	proxies := make([]*user.Proxy, 0, len(m.Proxies))
	for i := range m.Proxies {
		p, err := proxyToEntity(&m.Proxies[i])
		if err != nil {
			return nil, err
		}
		proxies = append(proxies, p)
	}

	var nextPlan *user.NextPlan
	if m.NextPlan != nil {
		nextPlan = &user.NextPlan{
			DataLimit:           m.NextPlan.DataLimit,
			ExpireSeconds:       m.NextPlan.ExpireSeconds,
			AddRemainingTraffic: m.NextPlan.AddRemainingTraffic,
			FireOnEither:        m.NextPlan.FireOnEither,
		}
	}

	return user.ReconstructUser(
		m.ID,
		m.AccountNumber,
		m.AdminID,
		user.Status(m.Status),
		m.DataLimit,
		m.UsedTraffic,
		m.ExpireAt,
		m.OnHoldExpireDuration,
		m.OnHoldTimeout,
		user.ResetStrategy(m.DataLimitResetStrategy),
		m.ActiveNodeID,
		m.OnlineAt,
		proxies,
		nextPlan,
		m.AutoDeleteInDays,
		m.LastTrafficResetAt,
		m.LastStatusChange,
		m.SubRevokedAt,
		m.SubUpdatedAt,
		m.EditedAt,
		m.CreatedAt,
	)
}

func proxyToModel(p *user.Proxy) (*models.ProxyModel, error) {
	raw, err := json.Marshal(p.Settings())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal proxy settings: %w", err)
	}
	return &models.ProxyModel{
		ID:       p.ID(),
		UserID:   p.UserID(),
		Protocol: string(p.Protocol()),
		Settings: datatypes.JSON(raw),
	}, nil
}

func proxyToEntity(m *models.ProxyModel) (*user.Proxy, error) {
	var settings user.ProxySettings
	if len(m.Settings) > 0 {
		if err := json.Unmarshal(m.Settings, &settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal proxy settings: %w", err)
		}
	}
	return user.ReconstructProxy(m.ID, m.UserID, user.Protocol(m.Protocol), settings), nil
}
