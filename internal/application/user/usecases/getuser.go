package usecases

import (
	"context"
	"time"

	"github.com/veilnet-io/veilnet/internal/domain/node"
	"github.com/veilnet-io/veilnet/internal/domain/user"
	"github.com/veilnet-io/veilnet/internal/infrastructure/cache"
	"github.com/veilnet-io/veilnet/internal/infrastructure/token"
)

type GetUserUseCase struct {
	users    user.Repository
	usage    node.UsageRepository
	presence *cache.PresenceCache
	tokens   *token.SubscriptionIssuer
}

func NewGetUserUseCase(users user.Repository, usage node.UsageRepository, presence *cache.PresenceCache, tokens *token.SubscriptionIssuer) *GetUserUseCase {
	return &GetUserUseCase{users: users, usage: usage, presence: presence, tokens: tokens}
}

// Execute returns the user's API shape with a fresh subscription token.
// The presence cache supplies a more recent online mark when it has one.
func (uc *GetUserUseCase) Execute(ctx context.Context, accountNumber string) (*UserResult, error) {
	u, err := uc.users.GetByAccountNumber(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	result := NewUserResult(u)
	if cached := uc.presence.LastOnline(ctx, u.ID()); cached != nil {
		if result.OnlineAt == nil || cached.After(*result.OnlineAt) {
			result.OnlineAt = cached
		}
	}
	if signed, err := uc.tokens.Issue(u.AccountNumber(), time.Now()); err == nil {
		result.SubscriptionToken = signed
	}
	return result, nil
}

type UserUsagePoint struct {
	BucketAt    time.Time `json:"bucket_at"`
	NodeID      uint      `json:"node_id"`
	UsedTraffic int64     `json:"used_traffic"`
}

// Usage returns the user's hourly per-node buckets within the window.
func (uc *GetUserUseCase) Usage(ctx context.Context, accountNumber string, from, to time.Time) ([]UserUsagePoint, error) {
	u, err := uc.users.GetByAccountNumber(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	rows, err := uc.usage.ListUserUsage(ctx, u.ID(), from, to)
	if err != nil {
		return nil, err
	}
	points := make([]UserUsagePoint, 0, len(rows))
	for _, r := range rows {
		points = append(points, UserUsagePoint{BucketAt: r.BucketAt, NodeID: r.NodeID, UsedTraffic: r.UsedTraffic})
	}
	return points, nil
}

type ListUsersUseCase struct {
	users user.Repository
}

func NewListUsersUseCase(users user.Repository) *ListUsersUseCase {
	return &ListUsersUseCase{users: users}
}

// Execute lists users, optionally filtered by status.
func (uc *ListUsersUseCase) Execute(ctx context.Context, status string) ([]*UserResult, error) {
	var (
		list []*user.User
		err  error
	)
	if status != "" {
		list, err = uc.users.ListByStatus(ctx, user.Status(status))
	} else {
		list, err = uc.users.List(ctx)
	}
	if err != nil {
		return nil, err
	}

	results := make([]*UserResult, 0, len(list))
	for _, u := range list {
		results = append(results, NewUserResult(u))
	}
	return results, nil
}
