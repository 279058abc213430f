package delegation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainagent/chainagent/internal/delegation"
	delegrepo "github.com/chainagent/chainagent/internal/delegation/repositoryimpl"
	"github.com/chainagent/chainagent/internal/eventbus"
	"github.com/chainagent/chainagent/internal/permission"
	permrepo "github.com/chainagent/chainagent/internal/permission/repositoryimpl"
	"github.com/chainagent/chainagent/pkg/cerr"
)

const (
	testUser     = "0xalice"
	testExecutor = "execution-agent"
)

type registryFixture struct {
	perms  *permission.Registry
	delegs *delegation.Registry
	clock  time.Time
}

func newRegistryFixture(t *testing.T) *registryFixture {
	t.Helper()
	bus := eventbus.New()
	f := &registryFixture{
		clock: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	f.perms = permission.NewRegistry(permrepo.NewMemoryRepository(), bus)
	f.delegs = delegation.NewRegistry(delegrepo.NewMemoryRepository(), f.perms, bus)
	f.perms.SetCascade(f.delegs)
	now := func() time.Time { return f.clock }
	f.perms.SetNowFunc(now)
	f.delegs.SetNowFunc(now)
	return f
}

func (f *registryFixture) grant(t *testing.T, daily int64) {
	t.Helper()
	_, err := f.perms.Grant(context.Background(), testUser, "USDC", daily, 3000_000000, 30, 500)
	require.NoError(t, err)
}

func TestIssueWithinParentLimit(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()
	f.grant(t, 100_000000)

	d, err := f.delegs.Issue(ctx, testUser, testUser, testExecutor, 60_000000)
	require.NoError(t, err)
	assert.True(t, d.Active)
	assert.Equal(t, int64(60_000000), d.DailyLimit)

	// A second executor above the parent's daily limit is rejected.
	_, err = f.delegs.Issue(ctx, testUser, testUser, "other-agent", 150_000000)
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
}

func TestIssueRequiresActivePermission(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()

	_, err := f.delegs.Issue(ctx, testUser, testUser, testExecutor, 60_000000)
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.FailedPrecondition))

	f.grant(t, 100_000000)
	require.NoError(t, f.perms.Revoke(ctx, testUser, testUser))
	_, err = f.delegs.Issue(ctx, testUser, testUser, testExecutor, 60_000000)
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.FailedPrecondition))
}

func TestIssueRequiresOwner(t *testing.T) {
	f := newRegistryFixture(t)
	f.grant(t, 100_000000)

	_, err := f.delegs.Issue(context.Background(), "0xmallory", testUser, testExecutor, 60_000000)
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.PermissionDenied))
}

func TestIssueOverwritesPair(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()
	f.grant(t, 100_000000)

	_, err := f.delegs.Issue(ctx, testUser, testUser, testExecutor, 40_000000)
	require.NoError(t, err)
	_, err = f.delegs.Issue(ctx, testUser, testUser, testExecutor, 70_000000)
	require.NoError(t, err)

	d, err := f.delegs.Get(ctx, testUser, testExecutor)
	require.NoError(t, err)
	assert.Equal(t, int64(70_000000), d.DailyLimit)
}

func TestRevokeIsIdempotent(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()
	f.grant(t, 100_000000)

	_, err := f.delegs.Issue(ctx, testUser, testUser, testExecutor, 60_000000)
	require.NoError(t, err)
	require.NoError(t, f.delegs.Revoke(ctx, testUser, testExecutor))
	require.NoError(t, f.delegs.Revoke(ctx, testUser, testExecutor))
	require.NoError(t, f.delegs.Revoke(ctx, testUser, "never-delegated"))

	d, err := f.delegs.Get(ctx, testUser, testExecutor)
	require.NoError(t, err)
	assert.False(t, d.Active)
	assert.NotNil(t, d.RevokedAt)
}

func TestPermissionRevokeCascades(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()
	f.grant(t, 100_000000)

	_, err := f.delegs.Issue(ctx, testUser, testUser, testExecutor, 60_000000)
	require.NoError(t, err)
	_, err = f.delegs.Issue(ctx, testUser, testUser, "other-agent", 30_000000)
	require.NoError(t, err)

	require.NoError(t, f.perms.Revoke(ctx, testUser, testUser))

	for _, executor := range []string{testExecutor, "other-agent"} {
		d, err := f.delegs.Get(ctx, testUser, executor)
		require.NoError(t, err)
		assert.False(t, d.Active, executor)
	}
}

func TestSlice(t *testing.T) {
	assert.Equal(t, int64(60_000000), delegation.Slice(100_000000, 6000))
	assert.Equal(t, int64(25_000000), delegation.Slice(100_000000, 2500))
}
