package membership

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"loanledger/internal/audit"
	"loanledger/internal/store"
)

func newTestService(t *testing.T) (Service, *store.MemoryCollection[Record]) {
	t.Helper()
	snap := store.NewMemoryCollection[Record]()
	svc, err := NewService(context.Background(), snap, audit.NewMemoryRecorder(), zap.NewNop())
	require.NoError(t, err)
	return svc, snap
}

func TestSeedsDefaultAdmin(t *testing.T) {
	svc, snap := newTestService(t)
	ctx := context.Background()

	admin, err := svc.Authenticate(ctx, "admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, admin.Role)
	assert.True(t, admin.Active)

	// The seed is persisted, so a reload does not create a second admin.
	reloaded, err := NewService(ctx, snap, audit.NewMemoryRecorder(), zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, reloaded.Members(ctx), 1)
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	member, err := svc.Register(ctx, audit.System, "alice", "s3cret-pw", "Alice", "Smith", "alice@example.com", RoleUser)
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", member.FullName())
	assert.True(t, member.Active)

	got, err := svc.Authenticate(ctx, "alice", "s3cret-pw")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = svc.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody", "s3cret-pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, audit.System, "alice", "pw-one", "Alice", "Smith", "alice@example.com", RoleUser)
	require.NoError(t, err)

	_, err = svc.Register(ctx, audit.System, "alice", "pw-two", "Other", "Alice", "other@example.com", RoleUser)
	assert.ErrorIs(t, err, ErrDuplicateUsername)
	assert.Len(t, svc.Members(ctx), 2, "seeded admin plus alice")
}

func TestRegisterInvalidRole(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Register(context.Background(), audit.System, "bob", "pw", "Bob", "Jones", "bob@example.com", "librarian")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestDeactivatedMemberCannotLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, audit.System, "alice", "s3cret-pw", "Alice", "Smith", "alice@example.com", RoleUser)
	require.NoError(t, err)
	require.NoError(t, svc.SetActive(ctx, audit.System, "alice", false))

	_, err = svc.Authenticate(ctx, "alice", "s3cret-pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, svc.SetActive(ctx, audit.System, "alice", true))
	_, err = svc.Authenticate(ctx, "alice", "s3cret-pw")
	assert.NoError(t, err)
}

func TestIsEligible(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, audit.System, "alice", "pw-alice", "Alice", "Smith", "alice@example.com", RoleUser)
	require.NoError(t, err)
	_, err = svc.Register(ctx, audit.System, "carol", "pw-carol", "Carol", "Admin", "carol@example.com", RoleAdmin)
	require.NoError(t, err)

	assert.True(t, svc.IsEligible(ctx, "alice"))
	assert.False(t, svc.IsEligible(ctx, "carol"), "admin accounts do not borrow")
	assert.False(t, svc.IsEligible(ctx, "nobody"))

	require.NoError(t, svc.SetActive(ctx, audit.System, "alice", false))
	assert.False(t, svc.IsEligible(ctx, "alice"))
}

func TestSetRole(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, audit.System, "alice", "pw-alice", "Alice", "Smith", "alice@example.com", RoleUser)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.SetRole(ctx, audit.System, "alice", "superuser"), ErrInvalidRole)
	assert.ErrorIs(t, svc.SetRole(ctx, audit.System, "nobody", RoleAdmin), ErrNotFound)

	require.NoError(t, svc.SetRole(ctx, audit.System, "alice", RoleAdmin))
	got, err := svc.Member(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, got.Role)
	assert.False(t, svc.IsEligible(ctx, "alice"))
}

func TestChangePassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, audit.System, "alice", "old-pw", "Alice", "Smith", "alice@example.com", RoleUser)
	require.NoError(t, err)
	require.NoError(t, svc.ChangePassword(ctx, audit.System, "alice", "new-pw"))

	_, err = svc.Authenticate(ctx, "alice", "old-pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "alice", "new-pw")
	assert.NoError(t, err)
}

func TestRegisterPersistFailureRollsBack(t *testing.T) {
	svc, snap := newTestService(t)
	ctx := context.Background()

	snap.FailReplace = errors.New("disk full")
	_, err := svc.Register(ctx, audit.System, "alice", "pw-alice", "Alice", "Smith", "alice@example.com", RoleUser)
	assert.ErrorIs(t, err, store.ErrStorage)

	_, err = svc.Member(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotFound)

	snap.FailReplace = nil
	_, err = svc.Register(ctx, audit.System, "alice", "pw-alice", "Alice", "Smith", "alice@example.com", RoleUser)
	assert.NoError(t, err)
}

func TestAuthenticateRateLimited(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// The limiter allows a burst of ten and refills one per second, so a
	// tight loop of failed logins must trip it.
	var limited bool
	for i := 0; i < 20; i++ {
		_, err := svc.Authenticate(ctx, "admin", "wrong")
		if errors.Is(err, ErrRateLimited) {
			limited = true
			break
		}
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	assert.True(t, limited, "burst of login attempts should be throttled")
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, salt, err := hashPassword("correct horse battery staple")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	require.NotEmpty(t, salt)

	ok, err := verifyPassword("correct horse battery staple", salt, hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = verifyPassword("wrong password", salt, hash)
	require.NoError(t, err)
	assert.False(t, ok)

	// Same password, fresh salt, different hash.
	hash2, salt2, err := hashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, hash, hash2)
	assert.NotEqual(t, salt, salt2)
}
