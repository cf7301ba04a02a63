package usecases

import (
	"context"
	"time"

	nodeservices "github.com/veilnet-io/veilnet/internal/application/node/services"
	"github.com/veilnet-io/veilnet/internal/domain/user"
	"github.com/veilnet-io/veilnet/internal/infrastructure/token"
	"github.com/veilnet-io/veilnet/internal/shared/biztime"
	"github.com/veilnet-io/veilnet/internal/shared/goroutine"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

type RevokeSubscriptionUseCase struct {
	users      user.Repository
	tokens     *token.SubscriptionIssuer
	operations *nodeservices.Operations
	logger     logger.Interface
}

func NewRevokeSubscriptionUseCase(
	users user.Repository,
	tokens *token.SubscriptionIssuer,
	operations *nodeservices.Operations,
	log logger.Interface,
) *RevokeSubscriptionUseCase {
	return &RevokeSubscriptionUseCase{users: users, tokens: tokens, operations: operations, logger: log}
}

// Execute rotates every proxy secret and stamps the revocation time, so
// previously issued tokens and links stop working. The active node is
// reconciled with the new credentials in the background.
func (uc *RevokeSubscriptionUseCase) Execute(ctx context.Context, accountNumber string) (*UserResult, error) {
	u, err := uc.users.GetByAccountNumber(ctx, accountNumber)
	if err != nil {
		return nil, err
	}

	if err := u.RevokeSubscription(biztime.NowUTC()); err != nil {
		return nil, err
	}
	if err := uc.users.Update(ctx, u); err != nil {
		return nil, err
	}

	userID := u.ID()
	goroutine.SafeGo(uc.logger, "reapply-after-revoke", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := uc.operations.ReapplyUser(ctx, userID); err != nil {
			uc.logger.Warnw("user reapply after revoke failed", "user_id", userID, "error", err)
		}
	})

	result := NewUserResult(u)
	if signed, err := uc.tokens.Issue(u.AccountNumber(), time.Now()); err == nil {
		result.SubscriptionToken = signed
	}
	uc.logger.Infow("subscription revoked", "id", u.ID())
	return result, nil
}
