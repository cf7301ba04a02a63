package user

import (
	"context"
	"time"
)

// UsageReset is an audit record of a data-usage reset, keeping the counter
// value right before it was zeroed.
type UsageReset struct {
	ID                 uint
	UserID             uint
	UsedTrafficAtReset int64
	CreatedAt          time.Time
}

// UsageResetRepository is the persistence contract for reset audit records.
type UsageResetRepository interface {
	Create(ctx context.Context, r *UsageReset) error
	ListByUser(ctx context.Context, userID uint) ([]UsageReset, error)
}
