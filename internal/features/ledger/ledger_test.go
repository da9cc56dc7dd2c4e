package ledger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"healcoins.app/ledger/internal/common"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestLedger(t *testing.T, dailyCap int64) (*Ledger, *MemoryStore, *testClock) {
	t.Helper()
	loc := common.LoadLocation("Asia/Kolkata")
	clock := &testClock{t: time.Date(2026, 10, 14, 10, 0, 0, 0, loc)}
	store := NewMemoryStore()
	l := New(store, &SequentialIDs{Prefix: "id"}, Options{
		DailyCap:    dailyCap,
		RedeemLimit: 500,
		Location:    loc,
		Now:         clock.Now,
	})
	return l, store, clock
}

func carbonCredit(l *Ledger, userID string, coins int64) CreditRequest {
	return CreditRequest{
		UserID: userID,
		Amount: coins,
		Kind:   EntryCarbon,
		Log: &CarbonLog{
			LogBase:    LogBase{Coins: coins, Source: SourceMock},
			ActionType: "transport",
			Value:      10,
		},
		Guards: []Guard{l.Cooldown(CategoryCarbon, 5*time.Minute), l.DailyCap()},
	}
}

func TestCredit_CreatesWalletWithExactBalance(t *testing.T) {
	l, store, _ := newTestLedger(t, 100)
	ctx := context.Background()

	res, err := l.Credit(ctx, carbonCredit(l, "u1", 7))
	require.NoError(t, err)

	require.NotNil(t, res.Wallet)
	assert.Equal(t, int64(7), res.Wallet.HealCoins)
	assert.Equal(t, int64(100), res.Wallet.DailyEarnLimit)
	assert.Equal(t, int64(500), res.Wallet.RedeemLimit)

	b := BaseOf(res.Log)
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, CategoryCarbon, b.Kind)
	assert.Equal(t, "u1", b.UserID)

	w, err := store.GetWallet(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), w.HealCoins)

	entries := store.EntriesFor("u1")
	require.Len(t, entries, 1)
	assert.Equal(t, b.ID, entries[0].RefID)
	assert.Equal(t, int64(7), entries[0].Amount)
}

func TestCredit_IncrementsExistingWallet(t *testing.T) {
	l, store, clock := newTestLedger(t, 100)
	ctx := context.Background()

	_, err := l.Credit(ctx, carbonCredit(l, "u1", 4))
	require.NoError(t, err)
	clock.Advance(6 * time.Minute)
	_, err = l.Credit(ctx, carbonCredit(l, "u1", 3))
	require.NoError(t, err)

	w, err := store.GetWallet(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), w.HealCoins)
}

func TestCredit_DailyCapLeavesWalletUnchanged(t *testing.T) {
	l, store, clock := newTestLedger(t, 10)
	ctx := context.Background()

	_, err := l.Credit(ctx, carbonCredit(l, "u1", 8))
	require.NoError(t, err)
	clock.Advance(10 * time.Minute)

	_, err = l.Credit(ctx, carbonCredit(l, "u1", 5))
	require.Error(t, err)
	assert.Equal(t, codes.ResourceExhausted, common.CodeOf(err))

	w, err := store.GetWallet(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(8), w.HealCoins)

	logs, err := store.CarbonLogsBetween(ctx, "u1", clock.Now().Add(-time.Hour), clock.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, logs, 1, "отклонённое действие не должно попасть в журнал")

	// ровно до лимита — можно
	_, err = l.Credit(ctx, carbonCredit(l, "u1", 2))
	require.NoError(t, err)
}

func TestCredit_DailyCapResetsAtMidnight(t *testing.T) {
	l, _, clock := newTestLedger(t, 10)
	ctx := context.Background()

	_, err := l.Credit(ctx, carbonCredit(l, "u1", 10))
	require.NoError(t, err)

	clock.Advance(14 * time.Hour) // 00:00 следующего дня по IST
	_, err = l.Credit(ctx, carbonCredit(l, "u1", 10))
	require.NoError(t, err)
}

func TestCredit_CooldownWindow(t *testing.T) {
	l, _, clock := newTestLedger(t, 100)
	ctx := context.Background()

	_, err := l.Credit(ctx, carbonCredit(l, "u1", 1))
	require.NoError(t, err)

	clock.Advance(4 * time.Minute)
	_, err = l.Credit(ctx, carbonCredit(l, "u1", 1))
	assert.True(t, errors.Is(err, common.ErrCooldown))

	clock.Advance(time.Minute)
	_, err = l.Credit(ctx, carbonCredit(l, "u1", 1))
	assert.NoError(t, err)

	// у другого пользователя свой кулдаун
	_, err = l.Credit(ctx, carbonCredit(l, "u2", 1))
	assert.NoError(t, err)
}

func TestCredit_OncePerDay(t *testing.T) {
	l, _, clock := newTestLedger(t, 100)
	ctx := context.Background()
	mood := func() CreditRequest {
		return CreditRequest{
			UserID: "u1", Amount: 8, Kind: EntryMood,
			Log:    &MoodLog{Mood: 8},
			Guards: []Guard{l.OncePerDay(CategoryMood, common.ErrMoodAlreadyLogged), l.DailyCap()},
		}
	}

	_, err := l.Credit(ctx, mood())
	require.NoError(t, err)

	clock.Advance(13*time.Hour + 59*time.Minute) // 23:59 того же дня
	_, err = l.Credit(ctx, mood())
	assert.Equal(t, codes.AlreadyExists, common.CodeOf(err))

	clock.Advance(time.Minute)
	_, err = l.Credit(ctx, mood())
	assert.NoError(t, err)
}

func TestCredit_ConcurrentDuplicatesCreditOnce(t *testing.T) {
	l, store, _ := newTestLedger(t, 1000)
	ctx := context.Background()

	var ok, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Credit(ctx, carbonCredit(l, "u1", 5))
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, common.ErrCooldown):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(19), conflicts.Load())

	w, err := store.GetWallet(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), w.HealCoins)
}

func TestCredit_PendingModerationDoesNotTouchWallet(t *testing.T) {
	l, store, _ := newTestLedger(t, 100)
	ctx := context.Background()

	res, err := l.Credit(ctx, animalRequest(l, "u1", 12))
	require.NoError(t, err)

	assert.Nil(t, res.Wallet)
	require.NotNil(t, res.Moderation)
	assert.Equal(t, StatusPending, res.Moderation.Status)
	assert.Equal(t, BaseOf(res.Log).ID, res.Moderation.LogID)
	assert.Equal(t, res.Moderation.ID, res.Log.(*AnimalLog).ModerationID)

	_, err = store.GetWallet(ctx, "u1")
	assert.Equal(t, codes.NotFound, common.CodeOf(err))
}

func animalRequest(l *Ledger, userID string, coins int64) CreditRequest {
	return CreditRequest{
		UserID: userID,
		Log: &AnimalLog{
			LogBase: LogBase{Coins: coins, Source: SourceAPI, IsAuditable: true},
			Actions: []string{"feed_stray"},
		},
		Moderation: &ModerationEntry{CoinsToAward: coins},
		Guards:     []Guard{l.Cooldown(CategoryAnimal, 30*time.Minute)},
	}
}

func TestApprove_IdempotentCreditsOnce(t *testing.T) {
	l, store, _ := newTestLedger(t, 100)
	ctx := context.Background()

	res, err := l.Credit(ctx, animalRequest(l, "u1", 12))
	require.NoError(t, err)
	modID := res.Moderation.ID

	first, err := l.Approve(ctx, modID, "admin-1")
	require.NoError(t, err)
	assert.False(t, first.AlreadyApproved)
	assert.Equal(t, int64(12), first.Wallet.HealCoins)
	assert.Equal(t, StatusApproved, first.Entry.Status)
	assert.Equal(t, "admin-1", first.Entry.ApprovedBy)

	second, err := l.Approve(ctx, modID, "admin-2")
	require.NoError(t, err)
	assert.True(t, second.AlreadyApproved)
	assert.Equal(t, "admin-1", second.Entry.ApprovedBy)

	w, err := store.GetWallet(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(12), w.HealCoins)
	assert.Len(t, store.EntriesFor("u1"), 1)

	alog, err := store.GetAnimalLog(ctx, BaseOf(res.Log).ID)
	require.NoError(t, err)
	assert.True(t, alog.Verified)
	assert.True(t, alog.Moderated)
}

func TestApprove_ConcurrentCreditsOnce(t *testing.T) {
	l, store, _ := newTestLedger(t, 100)
	ctx := context.Background()

	res, err := l.Credit(ctx, animalRequest(l, "u1", 9))
	require.NoError(t, err)

	var fresh atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := l.Approve(ctx, res.Moderation.ID, "admin-1")
			if err == nil && !r.AlreadyApproved {
				fresh.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fresh.Load())
	w, err := store.GetWallet(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(9), w.HealCoins)
}

func TestApprove_NotFound(t *testing.T) {
	l, _, _ := newTestLedger(t, 100)

	_, err := l.Approve(context.Background(), "missing", "admin-1")
	assert.True(t, errors.Is(err, common.ErrModerationNotFound))
}

func TestMemoryStore_MergeBadgesIsSetUnion(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	got, err := store.MergeBadges(ctx, "u1", []string{"Animal Ally"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Animal Ally"}, got)

	got, err = store.MergeBadges(ctx, "u1", []string{"Animal Ally", "Kindness Hero"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Animal Ally", "Kindness Hero"}, got)
}

func TestMemoryStore_RollbackOnError(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.CreateWallet(ctx, &Wallet{UserID: "u1", HealCoins: 50}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.GetWallet(ctx, "u1")
	assert.Equal(t, codes.NotFound, common.CodeOf(err))
}
