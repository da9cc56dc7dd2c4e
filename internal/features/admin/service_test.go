package admin

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"healcoins.app/ledger/internal/auth"
	"healcoins.app/ledger/internal/common"
	"healcoins.app/ledger/internal/config"
)

func newService(t *testing.T) (*Service, *auth.TokenManager, *time.Time) {
	svc, tokens, now, _ := newServiceWithRepo(t)
	return svc, tokens, now
}

func newServiceWithRepo(t *testing.T) (*Service, *auth.TokenManager, *time.Time, *MemoryRepository) {
	t.Helper()
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	now := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	cfg := &config.Config{
		AdminIDs:          []string{"admin-1"},
		AdminPasswordHash: hash,
		AdminTokenTTL:     time.Hour,
	}
	tokens := auth.NewTokenManager("0123456789abcdef0123", "healcoins")
	repo := NewMemoryRepository(func() time.Time { return now })

	svc := NewService(repo, tokens, cfg)
	svc.now = func() time.Time { return now }
	return svc, tokens, &now, repo
}

func TestLogin_IssuesAdminToken(t *testing.T) {
	svc, tokens, _ := newService(t)

	res, err := svc.Login(context.Background(), "admin-1", "correct horse")
	require.NoError(t, err)

	claims, err := tokens.Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", claims.UserID())
	assert.True(t, claims.Admin)
}

func TestLogin_NotAnAdmin(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.Login(context.Background(), "u1", "correct horse")
	assert.ErrorIs(t, err, common.ErrNotAdmin)
}

func TestLogin_LockoutAfterThreeFailures(t *testing.T) {
	svc, _, now := newService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Login(ctx, "admin-1", "wrong")
		assert.Equal(t, codes.PermissionDenied, common.CodeOf(err))
	}

	_, err := svc.Login(ctx, "admin-1", "correct horse")
	assert.Equal(t, codes.ResourceExhausted, common.CodeOf(err))

	*now = now.Add(time.Hour + time.Second)
	_, err = svc.Login(ctx, "admin-1", "correct horse")
	assert.NoError(t, err)
}

func TestLogin_ParallelWrongPasswordsStopAtLimit(t *testing.T) {
	svc, _, now, repo := newServiceWithRepo(t)
	ctx := context.Background()

	const attempts = 10
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Login(ctx, "admin-1", "wrong")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var wrong, locked int
	for err := range errs {
		switch common.CodeOf(err) {
		case codes.PermissionDenied:
			wrong++
		case codes.ResourceExhausted:
			locked++
		}
	}
	assert.Equal(t, maxFailedAttempts, wrong)
	assert.Equal(t, attempts-maxFailedAttempts, locked)

	failures, err := repo.RecentFailures(ctx, "admin-1", now.Add(-lockoutWindow))
	require.NoError(t, err)
	assert.Equal(t, maxFailedAttempts, failures)
}

func TestLogin_SuccessDoesNotCountAsFailure(t *testing.T) {
	svc, _, now, repo := newServiceWithRepo(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.Login(ctx, "admin-1", "wrong")
		require.ErrorIs(t, err, common.ErrWrongPassword)
	}
	_, err := svc.Login(ctx, "admin-1", "correct horse")
	require.NoError(t, err)

	failures, err := repo.RecentFailures(ctx, "admin-1", now.Add(-lockoutWindow))
	require.NoError(t, err)
	assert.Equal(t, 2, failures)

	_, err = svc.Login(ctx, "admin-1", "wrong")
	assert.ErrorIs(t, err, common.ErrWrongPassword)
	_, err = svc.Login(ctx, "admin-1", "correct horse")
	assert.ErrorIs(t, err, common.ErrTooManyAttempts)
}

func TestVerifyArgon2id(t *testing.T) {
	hash, err := HashPassword("secret")
	require.NoError(t, err)

	assert.True(t, verifyArgon2id("secret", hash))
	assert.False(t, verifyArgon2id("Secret", hash))
	assert.False(t, verifyArgon2id("secret", "$argon2id$broken"))
	assert.False(t, verifyArgon2id("secret", ""))
}
