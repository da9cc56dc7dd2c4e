package notify

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"healcoins.app/ledger/internal/features/ledger"
)

func TestPendingText(t *testing.T) {
	entry := &ledger.ModerationEntry{ID: "mod-1", UserID: "u1", CoinsToAward: 20}
	l := &ledger.AnimalLog{Actions: []string{"feed_stray", "water_bowl"}}

	text := pendingText(entry, l)
	assert.Contains(t, text, "feed_stray, water_bowl")
	assert.Contains(t, text, "Coins on approval: 20")
	assert.Contains(t, text, "mod-1")
}

func TestApprovedText(t *testing.T) {
	entry := &ledger.ModerationEntry{ID: "mod-1", UserID: "u1", CoinsToAward: 8, ApprovedBy: "admin-1"}

	assert.NotContains(t, approvedText(entry, nil), "Badges")
	assert.Contains(t, approvedText(entry, []string{"Animal Ally"}), "Badges: Animal Ally")
}

func TestBacklogText_TruncatesList(t *testing.T) {
	var pending []*ledger.ModerationEntry
	for i := 0; i < 8; i++ {
		pending = append(pending, &ledger.ModerationEntry{
			ID: fmt.Sprintf("mod-%d", i), UserID: "u1", CoinsToAward: 5, CreatedAt: time.Now(),
		})
	}

	text := backlogText(pending, len(pending))
	assert.Contains(t, text, "8 animal-welfare logs")
	assert.Contains(t, text, "mod-4")
	assert.NotContains(t, text, "mod-5")
	assert.Contains(t, text, "and 3 more")
}

func TestBacklogText_CountsWholeQueue(t *testing.T) {
	pending := []*ledger.ModerationEntry{
		{ID: "mod-0", UserID: "u1", CoinsToAward: 5, CreatedAt: time.Now()},
		{ID: "mod-1", UserID: "u2", CoinsToAward: 5, CreatedAt: time.Now()},
	}

	text := backlogText(pending, 340)
	assert.Contains(t, text, "340 animal-welfare logs")
	assert.Contains(t, text, "and 338 more")

	assert.NotContains(t, backlogText(pending, 2), "more")
}
