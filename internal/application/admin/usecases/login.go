// Package usecases holds administrator application use cases.
package usecases

import (
	"context"
	"time"

	"github.com/veilnet-io/veilnet/internal/domain/admin"
	"github.com/veilnet-io/veilnet/internal/infrastructure/auth"
	"github.com/veilnet-io/veilnet/internal/shared/errors"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

type LoginCommand struct {
	Username string
	Password string
}

type LoginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	IsSudo      bool   `json:"is_sudo"`
}

type LoginUseCase struct {
	admins admin.Repository
	jwt    *auth.JWTService
	logger logger.Interface
}

func NewLoginUseCase(admins admin.Repository, jwt *auth.JWTService, log logger.Interface) *LoginUseCase {
	return &LoginUseCase{admins: admins, jwt: jwt, logger: log}
}

// Execute verifies credentials and issues an access token. Wrong username
// and wrong password are indistinguishable to the caller.
func (uc *LoginUseCase) Execute(ctx context.Context, cmd LoginCommand) (*LoginResult, error) {
	a, err := uc.admins.GetByUsername(ctx, cmd.Username)
	if err != nil {
		uc.logger.Debugw("login attempt for unknown admin", "username", cmd.Username)
		return nil, errors.NewUnauthorizedError("invalid username or password")
	}
	if !a.VerifyPassword(cmd.Password) {
		uc.logger.Warnw("failed login attempt", "username", cmd.Username)
		return nil, errors.NewUnauthorizedError("invalid username or password")
	}

	signed, err := uc.jwt.Issue(a, time.Now())
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		AccessToken: signed,
		TokenType:   "bearer",
		IsSudo:      a.IsSudo() || uc.jwt.IsEnvSudo(a.Username()),
	}, nil
}
