package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"healcoins.app/ledger/internal/features/ledger"
	"healcoins.app/ledger/internal/features/moderation"
)

type fakeInsights struct {
	anchor time.Time
	calls  int
}

func (f *fakeInsights) GenerateForActiveUsers(ctx context.Context, anchor time.Time) (int, error) {
	f.anchor = anchor
	f.calls++
	return 3, nil
}

type fakeQueue struct {
	items  []*ledger.ModerationEntry
	total  int
	err    error
	status string
	limit  int
}

func (f *fakeQueue) ListQueue(ctx context.Context, status string, limit, offset int) (*moderation.Queue, error) {
	f.status = status
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return &moderation.Queue{Items: f.items, Total: f.total, Limit: limit, Offset: offset}, nil
}

type fakeNotifier struct {
	got    [][]*ledger.ModerationEntry
	totals []int
}

func (f *fakeNotifier) NotifyBacklog(ctx context.Context, pending []*ledger.ModerationEntry, total int) {
	f.got = append(f.got, pending)
	f.totals = append(f.totals, total)
}

func TestRunWeeklyInsights(t *testing.T) {
	ins := &fakeInsights{}
	s := NewScheduler(time.UTC, ins, &fakeQueue{}, &fakeNotifier{})
	monday := time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return monday }

	s.RunWeeklyInsights(context.Background())
	assert.Equal(t, 1, ins.calls)
	assert.Equal(t, monday, ins.anchor)
}

func TestRunBacklogReminder(t *testing.T) {
	q := &fakeQueue{items: []*ledger.ModerationEntry{{ID: "m1"}, {ID: "m2"}}, total: 240}
	n := &fakeNotifier{}
	s := NewScheduler(time.UTC, &fakeInsights{}, q, n)

	s.RunBacklogReminder(context.Background())
	assert.Equal(t, "pending", q.status)
	assert.Equal(t, backlogPageSize, q.limit)
	assert.Len(t, n.got, 1)
	assert.Len(t, n.got[0], 2)
	assert.Equal(t, []int{240}, n.totals)
}

func TestRunBacklogReminder_SkipsEmptyAndErrors(t *testing.T) {
	n := &fakeNotifier{}
	NewScheduler(time.UTC, &fakeInsights{}, &fakeQueue{}, n).RunBacklogReminder(context.Background())
	NewScheduler(time.UTC, &fakeInsights{}, &fakeQueue{err: errors.New("db down")}, n).RunBacklogReminder(context.Background())
	assert.Empty(t, n.got)
}

func TestStartRegistersJobs(t *testing.T) {
	s := NewScheduler(time.UTC, &fakeInsights{}, &fakeQueue{}, &fakeNotifier{})
	assert.NoError(t, s.Start(context.Background()))
	assert.Len(t, s.cron.Entries(), 2)
	s.Stop()
}
