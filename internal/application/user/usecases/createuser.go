package usecases

import (
	"context"
	"time"

	"github.com/veilnet-io/veilnet/internal/domain/user"
	"github.com/veilnet-io/veilnet/internal/infrastructure/token"
	"github.com/veilnet-io/veilnet/internal/shared/errors"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

type ProxyInput struct {
	Protocol string `json:"protocol"`
	UUID     string `json:"id,omitempty"`
	Flow     string `json:"flow,omitempty"`
	Password string `json:"password,omitempty"`
	Method   string `json:"method,omitempty"`
}

type CreateUserCommand struct {
	AccountNumber        string
	AdminID              *uint
	Status               string
	DataLimit            *int64
	ExpireAt             *time.Time
	OnHoldExpireDuration *int64
	OnHoldTimeout        *time.Time
	ResetStrategy        string
	AutoDeleteInDays     *int
	Proxies              []ProxyInput
}

type CreateUserUseCase struct {
	users  user.Repository
	tokens *token.SubscriptionIssuer
	logger logger.Interface
}

func NewCreateUserUseCase(users user.Repository, tokens *token.SubscriptionIssuer, log logger.Interface) *CreateUserUseCase {
	return &CreateUserUseCase{users: users, tokens: tokens, logger: log}
}

// Execute creates the user and its proxy credentials atomically. Duplicate
// account numbers surface as conflicts.
func (uc *CreateUserUseCase) Execute(ctx context.Context, cmd CreateUserCommand) (*UserResult, error) {
	uc.logger.Infow("executing create user use case", "account_number", cmd.AccountNumber)

	u, err := user.NewUser(cmd.AccountNumber, user.Status(cmd.Status), cmd.AdminID)
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}

	if cmd.DataLimit != nil {
		if err := u.SetDataLimit(cmd.DataLimit); err != nil {
			return nil, errors.NewValidationError(err.Error())
		}
	}
	switch {
	case u.Status() == user.StatusOnHold:
		if cmd.OnHoldExpireDuration == nil {
			return nil, errors.NewValidationError("on-hold users require on_hold_expire_duration")
		}
		if err := u.SetOnHold(*cmd.OnHoldExpireDuration, cmd.OnHoldTimeout); err != nil {
			return nil, errors.NewValidationError(err.Error())
		}
	case cmd.ExpireAt != nil:
		if err := u.SetExpire(cmd.ExpireAt); err != nil {
			return nil, errors.NewValidationError(err.Error())
		}
	}
	if cmd.ResetStrategy != "" {
		if err := u.SetResetStrategy(user.ResetStrategy(cmd.ResetStrategy)); err != nil {
			return nil, errors.NewValidationError(err.Error())
		}
	}
	if cmd.AutoDeleteInDays != nil {
		if err := u.SetAutoDelete(cmd.AutoDeleteInDays); err != nil {
			return nil, errors.NewValidationError(err.Error())
		}
	}

	proxies, err := buildProxies(cmd.Proxies)
	if err != nil {
		return nil, err
	}
	if err := u.SetProxies(proxies); err != nil {
		return nil, errors.NewValidationError(err.Error())
	}

	if err := uc.users.Create(ctx, u); err != nil {
		return nil, err
	}

	result := NewUserResult(u)
	if signed, err := uc.tokens.Issue(u.AccountNumber(), time.Now()); err == nil {
		result.SubscriptionToken = signed
	}
	uc.logger.Infow("user created", "id", u.ID(), "account_number", u.AccountNumber())
	return result, nil
}

func buildProxies(inputs []ProxyInput) ([]*user.Proxy, error) {
	proxies := make([]*user.Proxy, 0, len(inputs))
	for _, in := range inputs {
		p, err := user.NewProxyWithSettings(user.Protocol(in.Protocol), user.ProxySettings{
			UUID:     in.UUID,
			Flow:     in.Flow,
			Password: in.Password,
			Method:   in.Method,
		})
		if err != nil {
			return nil, errors.NewValidationError(err.Error())
		}
		proxies = append(proxies, p)
	}
	return proxies, nil
}
