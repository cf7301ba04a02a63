package usecases

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilnet-io/veilnet/internal/domain/user"
	"github.com/veilnet-io/veilnet/internal/shared/biztime"
	apperrors "github.com/veilnet-io/veilnet/internal/shared/errors"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

func testLogger() logger.Interface {
	return logger.NewLoggerWithSlog(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uint]*user.User
}

func newFakeUserRepo(users ...*user.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[uint]*user.User{}}
	for _, u := range users {
		r.users[u.ID()] = u
	}
	return r
}

func (r *fakeUserRepo) Create(ctx context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID()] = u
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id uint) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, apperrors.NewNotFoundError("user not found")
}

func (r *fakeUserRepo) GetByAccountNumber(ctx context.Context, accountNumber string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.AccountNumber() == accountNumber {
			return u, nil
		}
	}
	return nil, apperrors.NewNotFoundError("user not found")
}

func (r *fakeUserRepo) List(ctx context.Context) ([]*user.User, error) { return nil, nil }

func (r *fakeUserRepo) ListByStatus(ctx context.Context, status user.Status) ([]*user.User, error) {
	return nil, nil
}

func (r *fakeUserRepo) ListByActiveNode(ctx context.Context, nodeID uint) ([]*user.User, error) {
	return nil, nil
}

func (r *fakeUserRepo) ListIDAccountPairs(ctx context.Context) ([]user.IDAccountPair, error) {
	return nil, nil
}

func (r *fakeUserRepo) ListAutoDeleteCandidates(ctx context.Context, now time.Time, defaultDays int, includeLimited bool) ([]*user.User, error) {
	return nil, nil
}

func (r *fakeUserRepo) Update(ctx context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID()] = u
	return nil
}

func (r *fakeUserRepo) Delete(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}

type fakeReconciler struct {
	mu        sync.Mutex
	reapplied []uint
}

func (f *fakeReconciler) ReapplyUser(ctx context.Context, userID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reapplied = append(f.reapplied, userID)
	return nil
}

func (f *fakeReconciler) saw(userID uint) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.reapplied {
		if id == userID {
			return true
		}
	}
	return false
}

func strPtr(s string) *string { return &s }

func TestUpdateUserUseCase_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("activating an on-hold user converts the duration into an expiry", func(t *testing.T) {
		u, err := user.NewUser("", user.StatusActive, nil)
		require.NoError(t, err)
		require.NoError(t, u.SetID(5))
		require.NoError(t, u.SetOnHold(7200, nil))

		rec := &fakeReconciler{}
		uc := NewUpdateUserUseCase(newFakeUserRepo(u), rec, testLogger())

		result, err := uc.Execute(ctx, UpdateUserCommand{
			AccountNumber: u.AccountNumber(),
			Status:        strPtr("active"),
		})
		require.NoError(t, err)

		assert.Equal(t, string(user.StatusActive), result.Status)
		require.NotNil(t, u.ExpireAt())
		assert.WithinDuration(t, biztime.NowUTC().Add(2*time.Hour), *u.ExpireAt(), 5*time.Second)
		assert.Nil(t, u.OnHoldExpireDuration())
		assert.Eventually(t, func() bool { return rec.saw(5) }, time.Second, 10*time.Millisecond)
	})

	t.Run("activating a disabled user carries no expiry", func(t *testing.T) {
		u, err := user.NewUser("", user.StatusDisabled, nil)
		require.NoError(t, err)
		require.NoError(t, u.SetID(6))

		rec := &fakeReconciler{}
		uc := NewUpdateUserUseCase(newFakeUserRepo(u), rec, testLogger())

		result, err := uc.Execute(ctx, UpdateUserCommand{
			AccountNumber: u.AccountNumber(),
			Status:        strPtr("active"),
		})
		require.NoError(t, err)

		assert.Equal(t, string(user.StatusActive), result.Status)
		assert.Nil(t, u.ExpireAt())
	})

	t.Run("rejects an unknown status", func(t *testing.T) {
		u, err := user.NewUser("", user.StatusActive, nil)
		require.NoError(t, err)
		require.NoError(t, u.SetID(7))

		uc := NewUpdateUserUseCase(newFakeUserRepo(u), &fakeReconciler{}, testLogger())

		_, err = uc.Execute(ctx, UpdateUserCommand{
			AccountNumber: u.AccountNumber(),
			Status:        strPtr("banned"),
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidationError(err))
	})
}
