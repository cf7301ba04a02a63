package usage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilnet-io/veilnet/internal/domain/node"
	"github.com/veilnet-io/veilnet/internal/domain/user"
	"github.com/veilnet-io/veilnet/internal/infrastructure/cache"
	"github.com/veilnet-io/veilnet/internal/infrastructure/nodeclient"
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

func (r *fakeUserRepo) List(ctx context.Context) ([]*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*user.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, nil
}

func (r *fakeUserRepo) ListByStatus(ctx context.Context, status user.Status) ([]*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*user.User
	for _, u := range r.users {
		if u.Status() == status {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) ListByActiveNode(ctx context.Context, nodeID uint) ([]*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*user.User
	for _, u := range r.users {
		if active := u.ActiveNodeID(); active != nil && *active == nodeID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) ListIDAccountPairs(ctx context.Context) ([]user.IDAccountPair, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]user.IDAccountPair, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, user.IDAccountPair{ID: u.ID(), AccountNumber: u.AccountNumber()})
	}
	return out, nil
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

type fakeNodeRepo struct {
	mu    sync.Mutex
	nodes map[uint]*node.Node
}

func newFakeNodeRepo(nodes ...*node.Node) *fakeNodeRepo {
	r := &fakeNodeRepo{nodes: map[uint]*node.Node{}}
	for _, n := range nodes {
		r.nodes[n.ID()] = n
	}
	return r
}

func (r *fakeNodeRepo) Create(ctx context.Context, n *node.Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes[n.ID()] = n
	return nil
}

func (r *fakeNodeRepo) GetByID(ctx context.Context, id uint) (*node.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.nodes[id]; ok {
		return n, nil
	}
	return nil, apperrors.NewNotFoundError("node not found")
}

func (r *fakeNodeRepo) GetByName(ctx context.Context, name string) (*node.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.nodes {
		if n.Name() == name {
			return n, nil
		}
	}
	return nil, apperrors.NewNotFoundError("node not found")
}

func (r *fakeNodeRepo) List(ctx context.Context) ([]*node.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*node.Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, n)
	}
	return out, nil
}

func (r *fakeNodeRepo) Update(ctx context.Context, n *node.Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes[n.ID()] = n
	return nil
}

func (r *fakeNodeRepo) Delete(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.nodes, id)
	return nil
}

type usageRecord struct {
	userID   uint
	nodeID   uint
	bucketAt time.Time
	delta    int64
}

type fakeUsageRepo struct {
	mu         sync.Mutex
	records    []usageRecord
	aggregated []time.Time
}

func (r *fakeUsageRepo) RecordUserUsage(ctx context.Context, userID, nodeID uint, bucketAt time.Time, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, usageRecord{userID: userID, nodeID: nodeID, bucketAt: bucketAt, delta: delta})
	return nil
}

func (r *fakeUsageRepo) AggregateBucket(ctx context.Context, bucketAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aggregated = append(r.aggregated, bucketAt)
	return nil
}

func (r *fakeUsageRepo) ListUserUsage(ctx context.Context, userID uint, from, to time.Time) ([]node.UserUsage, error) {
	return nil, nil
}

func (r *fakeUsageRepo) ListNodeUsage(ctx context.Context, nodeID uint, from, to time.Time) ([]node.Usage, error) {
	return nil, nil
}

func (r *fakeUsageRepo) DeleteUserUsage(ctx context.Context, userID uint) error { return nil }

type fakeTrafficSource struct {
	mu      sync.Mutex
	reports map[uint][]nodeclient.UserTraffic
	queried []uint
}

func (s *fakeTrafficSource) UsersTraffic(ctx context.Context, nodeID uint) ([]nodeclient.UserTraffic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queried = append(s.queried, nodeID)
	return s.reports[nodeID], nil
}

// directTx runs the callback without a database.
type directTx struct{}

func (directTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
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

func connectedNode(t *testing.T, id uint, coefficient float64) *node.Node {
	t.Helper()
	n, err := node.NewNode(fmt.Sprintf("edge-%d", id), fmt.Sprintf("10.0.0.%d", id), 62050, 62051, coefficient)
	require.NoError(t, err)
	require.NoError(t, n.SetID(id))
	n.MarkConnected("1.8.23")
	return n
}

func activeUser(t *testing.T, id uint) *user.User {
	t.Helper()
	u, err := user.NewUser("", user.StatusActive, nil)
	require.NoError(t, err)
	require.NoError(t, u.SetID(id))
	return u
}

func newTestCollector(nodes *fakeNodeRepo, users *fakeUserRepo, usageRepo *fakeUsageRepo, source *fakeTrafficSource) *Collector {
	return NewCollector(nodes, users, usageRepo, source, cache.NewPresenceCache(nil, testLogger()), directTx{}, testLogger())
}

func TestCollector_Tick(t *testing.T) {
	ctx := context.Background()

	t.Run("scales deltas by the active node coefficient", func(t *testing.T) {
		n := connectedNode(t, 1, 2.0)
		u := activeUser(t, 10)
		u.SetActiveNode(1)

		usageRepo := &fakeUsageRepo{}
		source := &fakeTrafficSource{reports: map[uint][]nodeclient.UserTraffic{
			1: {{Name: u.EngineEmail(), Uplink: 60, Downlink: 40}},
		}}
		c := newTestCollector(newFakeNodeRepo(n), newFakeUserRepo(u), usageRepo, source)

		require.NoError(t, c.Tick(ctx))

		assert.Equal(t, int64(200), u.UsedTraffic())
		require.NotNil(t, u.OnlineAt())
		require.Len(t, usageRepo.records, 1)
		rec := usageRepo.records[0]
		assert.Equal(t, uint(10), rec.userID)
		assert.Equal(t, uint(1), rec.nodeID)
		assert.Equal(t, int64(200), rec.delta)
		assert.Zero(t, rec.bucketAt.Minute())
		assert.Zero(t, rec.bucketAt.Second())
	})

	t.Run("attributes usage to the active node regardless of the reporting node", func(t *testing.T) {
		home := connectedNode(t, 1, 3.0)
		other := connectedNode(t, 2, 1.0)
		u := activeUser(t, 10)
		u.SetActiveNode(1)

		usageRepo := &fakeUsageRepo{}
		source := &fakeTrafficSource{reports: map[uint][]nodeclient.UserTraffic{
			2: {{Name: u.EngineEmail(), Downlink: 100}},
		}}
		c := newTestCollector(newFakeNodeRepo(home, other), newFakeUserRepo(u), usageRepo, source)

		require.NoError(t, c.Tick(ctx))

		assert.Equal(t, int64(300), u.UsedTraffic())
		require.Len(t, usageRepo.records, 1)
		assert.Equal(t, uint(1), usageRepo.records[0].nodeID)
		assert.Equal(t, int64(300), usageRepo.records[0].delta)
	})

	t.Run("resolves the legacy bare account identity", func(t *testing.T) {
		n := connectedNode(t, 1, 1.0)
		u := activeUser(t, 10)
		u.SetActiveNode(1)

		usageRepo := &fakeUsageRepo{}
		source := &fakeTrafficSource{reports: map[uint][]nodeclient.UserTraffic{
			1: {{Name: u.AccountNumber(), Downlink: 50}},
		}}
		c := newTestCollector(newFakeNodeRepo(n), newFakeUserRepo(u), usageRepo, source)

		require.NoError(t, c.Tick(ctx))

		assert.Equal(t, int64(50), u.UsedTraffic())
	})

	t.Run("ignores reports for unknown identities", func(t *testing.T) {
		n := connectedNode(t, 1, 1.0)
		u := activeUser(t, 10)
		u.SetActiveNode(1)

		usageRepo := &fakeUsageRepo{}
		source := &fakeTrafficSource{reports: map[uint][]nodeclient.UserTraffic{
			1: {{Name: "999.0e3f8e57-5e0f-4e0b-9f5a-1b2c3d4e5f60", Downlink: 100}},
		}}
		c := newTestCollector(newFakeNodeRepo(n), newFakeUserRepo(u), usageRepo, source)

		require.NoError(t, c.Tick(ctx))

		assert.Zero(t, u.UsedTraffic())
		assert.Empty(t, usageRepo.records)
	})

	t.Run("accumulates without a bucket row when no node is active", func(t *testing.T) {
		n := connectedNode(t, 1, 2.0)
		u := activeUser(t, 10)

		usageRepo := &fakeUsageRepo{}
		source := &fakeTrafficSource{reports: map[uint][]nodeclient.UserTraffic{
			1: {{Name: u.EngineEmail(), Downlink: 100}},
		}}
		c := newTestCollector(newFakeNodeRepo(n), newFakeUserRepo(u), usageRepo, source)

		require.NoError(t, c.Tick(ctx))

		// No active node: coefficient defaults to 1 and nothing is
		// attributed to a node bucket.
		assert.Equal(t, int64(100), u.UsedTraffic())
		assert.Empty(t, usageRepo.records)
	})

	t.Run("skips nodes that are not connected", func(t *testing.T) {
		n, err := node.NewNode("edge-9", "10.0.0.9", 62050, 62051, 1.0)
		require.NoError(t, err)
		require.NoError(t, n.SetID(9))

		usageRepo := &fakeUsageRepo{}
		source := &fakeTrafficSource{reports: map[uint][]nodeclient.UserTraffic{}}
		c := newTestCollector(newFakeNodeRepo(n), newFakeUserRepo(), usageRepo, source)

		require.NoError(t, c.Tick(ctx))

		assert.Empty(t, source.queried)
	})
}
