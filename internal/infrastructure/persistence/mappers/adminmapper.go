package mappers

import (
	"github.com/veilnet-io/veilnet/internal/domain/admin"
	"github.com/veilnet-io/veilnet/internal/infrastructure/persistence/models"
)

// AdminMapper converts between AdminModel and the admin aggregate.
type AdminMapper struct{}

// NewAdminMapper creates an admin mapper.
func NewAdminMapper() AdminMapper {
	return AdminMapper{}
}

// ToModel maps an admin aggregate onto a persistence model.
func (AdminMapper) ToModel(a *admin.Admin) *models.AdminModel {
	return &models.AdminModel{
		ID:              a.ID(),
		Username:        a.Username(),
		PasswordHash:    a.PasswordHash(),
		IsSudo:          a.IsSudo(),
		PasswordResetAt: a.PasswordResetAt(),
		CreatedAt:       a.CreatedAt(),
	}
}

// ToEntity maps a persistence model back into the admin aggregate.
func (AdminMapper) ToEntity(m *models.AdminModel) (*admin.Admin, error) {
	return admin.ReconstructAdmin(m.ID, m.Username, m.PasswordHash, m.IsSudo, m.PasswordResetAt, m.CreatedAt)
}
