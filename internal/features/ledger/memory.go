package ledger

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"healcoins.app/ledger/internal/common"
)

// MemoryStore — хранилище в памяти для локальной разработки и тестов.
// Транзакции выполняются на копии состояния под общим мьютексом:
// при ошибке копия выбрасывается, при успехе заменяет состояние.
type MemoryStore struct {
	mu sync.Mutex
	st *memState
}

type memState struct {
	carbon     []CarbonLog
	mood       []MoodLog
	animal     map[string]AnimalLog
	animalIDs  []string
	wallets    map[string]Wallet
	entries    []LedgerEntry
	moderation map[string]ModerationEntry
	profiles   map[string]Profile
	insights   map[string]WeeklyInsight
}

// NewMemoryStore создаёт пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{st: &memState{
		animal:     make(map[string]AnimalLog),
		wallets:    make(map[string]Wallet),
		moderation: make(map[string]ModerationEntry),
		profiles:   make(map[string]Profile),
		insights:   make(map[string]WeeklyInsight),
	}}
}

func (s *memState) clone() *memState {
	c := &memState{
		carbon:     append([]CarbonLog(nil), s.carbon...),
		mood:       append([]MoodLog(nil), s.mood...),
		animal:     make(map[string]AnimalLog, len(s.animal)),
		animalIDs:  append([]string(nil), s.animalIDs...),
		wallets:    make(map[string]Wallet, len(s.wallets)),
		entries:    append([]LedgerEntry(nil), s.entries...),
		moderation: make(map[string]ModerationEntry, len(s.moderation)),
		profiles:   make(map[string]Profile, len(s.profiles)),
		insights:   make(map[string]WeeklyInsight, len(s.insights)),
	}
	for k, v := range s.animal {
		c.animal[k] = v
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.moderation {
		c.moderation[k] = v
	}
	for k, v := range s.profiles {
		c.profiles[k] = v
	}
	for k, v := range s.insights {
		c.insights[k] = v
	}
	return c
}

// WithinTx выполняет fn на копии состояния.
func (m *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := m.st.clone()
	if err := fn(ctx, &memTx{st: work}); err != nil {
		return err
	}
	m.st = work
	return nil
}

// --- транзакция ---

type memTx struct {
	st *memState
}

// LockUser ничего не делает: WithinTx и так держит мьютекс хранилища.
func (t *memTx) LockUser(ctx context.Context, userID string) error { return nil }

func (t *memTx) LastActionAt(ctx context.Context, userID string, cat Category) (time.Time, bool, error) {
	var last time.Time
	found := false
	see := func(at time.Time) {
		if !found || at.After(last) {
			last, found = at, true
		}
	}
	switch cat {
	case CategoryCarbon:
		for _, l := range t.st.carbon {
			if l.UserID == userID {
				see(l.CreatedAt)
			}
		}
	case CategoryMood:
		for _, l := range t.st.mood {
			if l.UserID == userID {
				see(l.CreatedAt)
			}
		}
	case CategoryAnimal:
		for _, l := range t.st.animal {
			if l.UserID == userID {
				see(l.CreatedAt)
			}
		}
	}
	return last, found, nil
}

func (t *memTx) EarnedSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	var sum int64
	for _, e := range t.st.entries {
		if e.UserID == userID && !e.CreatedAt.Before(since) {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (t *memTx) InsertLog(ctx context.Context, l Log) error {
	switch v := l.(type) {
	case *CarbonLog:
		t.st.carbon = append(t.st.carbon, *v)
	case *MoodLog:
		c := *v
		c.Activities = append([]string(nil), v.Activities...)
		t.st.mood = append(t.st.mood, c)
	case *AnimalLog:
		c := *v
		c.Actions = append([]string(nil), v.Actions...)
		c.ProofPaths = append([]string(nil), v.ProofPaths...)
		t.st.animal[c.ID] = c
		t.st.animalIDs = append(t.st.animalIDs, c.ID)
	}
	return nil
}

func (t *memTx) InsertModeration(ctx context.Context, m *ModerationEntry) error {
	t.st.moderation[m.ID] = *m
	return nil
}

func (t *memTx) ModerationForUpdate(ctx context.Context, id string) (*ModerationEntry, error) {
	m, ok := t.st.moderation[id]
	if !ok {
		return nil, common.ErrModerationNotFound
	}
	return &m, nil
}

func (t *memTx) ApproveModeration(ctx context.Context, id, approverID string, at time.Time) error {
	m, ok := t.st.moderation[id]
	if !ok {
		return common.ErrModerationNotFound
	}
	m.Status = StatusApproved
	m.ApprovedBy = approverID
	m.ApprovedAt = &at
	m.UpdatedAt = at
	t.st.moderation[id] = m
	return nil
}

func (t *memTx) MarkAnimalVerified(ctx context.Context, logID string, at time.Time) error {
	l, ok := t.st.animal[logID]
	if !ok {
		return common.ErrLogNotFound
	}
	l.Verified = true
	l.Moderated = true
	l.VerifiedAt = &at
	t.st.animal[logID] = l
	return nil
}

func (t *memTx) WalletForUpdate(ctx context.Context, userID string) (*Wallet, error) {
	w, ok := t.st.wallets[userID]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (t *memTx) CreateWallet(ctx context.Context, w *Wallet) error {
	t.st.wallets[w.UserID] = *w
	return nil
}

func (t *memTx) UpdateWallet(ctx context.Context, w *Wallet) error {
	t.st.wallets[w.UserID] = *w
	return nil
}

func (t *memTx) InsertEntry(ctx context.Context, e *LedgerEntry) error {
	t.st.entries = append(t.st.entries, *e)
	return nil
}

// --- чтение ---

func (m *MemoryStore) GetWallet(ctx context.Context, userID string) (*Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.st.wallets[userID]
	if !ok {
		return nil, common.ErrWalletNotFound
	}
	return &w, nil
}

func (m *MemoryStore) GetAnimalLog(ctx context.Context, id string) (*AnimalLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.st.animal[id]
	if !ok {
		return nil, common.ErrLogNotFound
	}
	l.ProofPaths = append([]string(nil), l.ProofPaths...)
	return &l, nil
}

func (m *MemoryStore) AppendProofPath(ctx context.Context, logID, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.st.animal[logID]
	if !ok {
		return common.ErrLogNotFound
	}
	l.ProofPaths = append(append([]string(nil), l.ProofPaths...), path)
	m.st.animal[logID] = l
	return nil
}

func (m *MemoryStore) MoodLogsBetween(ctx context.Context, userID string, from, to time.Time) ([]*MoodLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*MoodLog
	for _, l := range m.st.mood {
		if l.UserID == userID && inWindow(l.CreatedAt, from, to) {
			c := l
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *MemoryStore) CarbonLogsBetween(ctx context.Context, userID string, from, to time.Time) ([]*CarbonLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*CarbonLog
	for _, l := range m.st.carbon {
		if l.UserID == userID && inWindow(l.CreatedAt, from, to) {
			c := l
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *MemoryStore) ActiveUsersBetween(ctx context.Context, from, to time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]struct{})
	for _, l := range m.st.mood {
		if inWindow(l.CreatedAt, from, to) {
			seen[l.UserID] = struct{}{}
		}
	}
	for _, l := range m.st.carbon {
		if inWindow(l.CreatedAt, from, to) {
			seen[l.UserID] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) SchoolMoodLogs(ctx context.Context, schoolID string, from, to time.Time) ([]SchoolMood, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []SchoolMood
	for _, l := range m.st.mood {
		p, ok := m.st.profiles[l.UserID]
		if !ok || p.SchoolID != schoolID || !inWindow(l.CreatedAt, from, to) {
			continue
		}
		out = append(out, SchoolMood{
			UserID:       l.UserID,
			ClassID:      p.ClassID,
			Section:      p.Section,
			Mood:         l.Mood,
			EcoMindScore: l.EcoMindScore,
			CreatedAt:    l.CreatedAt,
		})
	}
	return out, nil
}

func (m *MemoryStore) GetModeration(ctx context.Context, id string) (*ModerationEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.st.moderation[id]
	if !ok {
		return nil, common.ErrModerationNotFound
	}
	return &e, nil
}

func (m *MemoryStore) ListModeration(ctx context.Context, status ModerationStatus, limit, offset int) ([]*ModerationEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*ModerationEntry, 0)
	for _, e := range m.st.moderation {
		if status != "" && e.Status != status {
			continue
		}
		c := e
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return []*ModerationEntry{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) CountModeration(ctx context.Context, status ModerationStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, e := range m.st.moderation {
		if status == "" || e.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) CountApproved(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, e := range m.st.moderation {
		if e.UserID == userID && e.Status == StatusApproved {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.st.profiles[userID]
	if !ok {
		return nil, common.ErrProfileNotFound
	}
	p.Badges = append([]string(nil), p.Badges...)
	return &p, nil
}

func (m *MemoryStore) UpsertProfile(ctx context.Context, p *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.st.profiles[p.UserID]
	cur.UserID = p.UserID
	cur.SchoolID = p.SchoolID
	cur.ClassID = p.ClassID
	cur.Section = p.Section
	cur.UpdatedAt = p.UpdatedAt
	m.st.profiles[p.UserID] = cur
	return nil
}

func (m *MemoryStore) MergeBadges(ctx context.Context, userID string, badges []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.st.profiles[userID]
	p.UserID = userID
	p.Badges = unionSorted(p.Badges, badges)
	m.st.profiles[userID] = p
	return append([]string(nil), p.Badges...), nil
}

func (m *MemoryStore) SaveInsight(ctx context.Context, in *WeeklyInsight) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.st.insights[in.Key] = *in
	return nil
}

func (m *MemoryStore) GetInsight(ctx context.Context, key string) (*WeeklyInsight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	in, ok := m.st.insights[key]
	if !ok {
		return nil, common.ErrInsightNotFound
	}
	return &in, nil
}

// EntriesFor возвращает начисления пользователя в порядке записи.
func (m *MemoryStore) EntriesFor(userID string) []LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []LedgerEntry
	for _, e := range m.st.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

func inWindow(at, from, to time.Time) bool {
	return !at.Before(from) && at.Before(to)
}

// unionSorted объединяет два набора строк без дублей, результат отсортирован.
func unionSorted(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		if s = strings.TrimSpace(s); s != "" {
			set[s] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
