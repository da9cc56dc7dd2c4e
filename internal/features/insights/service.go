// Package insights — недельные сводки настроения и эко-активности
// по пользователю и по классам школы.
package insights

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"healcoins.app/ledger/internal/common"
	"healcoins.app/ledger/internal/events"
	"healcoins.app/ledger/internal/features/ledger"
)

// Store — чтение журналов и запись сводок.
type Store interface {
	MoodLogsBetween(ctx context.Context, userID string, from, to time.Time) ([]*ledger.MoodLog, error)
	CarbonLogsBetween(ctx context.Context, userID string, from, to time.Time) ([]*ledger.CarbonLog, error)
	ActiveUsersBetween(ctx context.Context, from, to time.Time) ([]string, error)
	SchoolMoodLogs(ctx context.Context, schoolID string, from, to time.Time) ([]ledger.SchoolMood, error)
	SaveInsight(ctx context.Context, in *ledger.WeeklyInsight) error
}

// ActivitySink принимает события активности.
type ActivitySink interface {
	Activity(ctx context.Context, eventType, userID string, payload any)
}

// Service строит недельные сводки.
type Service struct {
	store    Store
	activity ActivitySink
	loc      *time.Location
	now      func() time.Time

	// rng не потокобезопасен
	mu  sync.Mutex
	rng *rand.Rand
}

// NewService создаёт сервис. rng задаёт выбор текста сообщения; nil — случайный seed.
func NewService(store Store, activity ActivitySink, loc *time.Location, now func() time.Time, rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, activity: activity, loc: loc, now: now, rng: rng}
}

// Week возвращает [понедельник 00:00, +7 дней) для недели, содержащей anchor.
func (s *Service) Week(anchor time.Time) (time.Time, time.Time) {
	start := common.StartOfWeek(anchor, s.loc)
	return start, start.AddDate(0, 0, 7)
}

// anchorFor разбирает необязательную дату. Пустая строка — текущий момент.
func (s *Service) anchorFor(weekStart string) (time.Time, error) {
	weekStart = strings.TrimSpace(weekStart)
	if weekStart == "" {
		return s.now(), nil
	}
	return common.ParseDate(weekStart, s.loc)
}

// Generate пересчитывает сводку пользователя за неделю и перезаписывает её.
// Доступно самому пользователю и администратору.
func (s *Service) Generate(ctx context.Context, callerID string, callerAdmin bool, userID, weekStart string) (*ledger.WeeklyInsight, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, common.ErrUserIDRequired
	}
	if !callerAdmin && callerID != userID {
		return nil, common.ErrIdentityMismatch
	}
	anchor, err := s.anchorFor(weekStart)
	if err != nil {
		return nil, err
	}
	return s.generate(ctx, userID, anchor)
}

func (s *Service) generate(ctx context.Context, userID string, anchor time.Time) (*ledger.WeeklyInsight, error) {
	from, to := s.Week(anchor)

	moods, err := s.store.MoodLogsBetween(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	carbon, err := s.store.CarbonLogsBetween(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	moodValues := make([]float64, 0, len(moods))
	ecoMind := make([]float64, 0, len(moods))
	for _, m := range moods {
		moodValues = append(moodValues, float64(m.Mood))
		ecoMind = append(ecoMind, m.EcoMindScore)
	}
	co2 := make([]float64, 0, len(carbon))
	for _, c := range carbon {
		co2 = append(co2, c.CO2Saved)
	}

	in := &ledger.WeeklyInsight{
		Key:           InsightKey(userID, from),
		UserID:        userID,
		WeekStart:     from,
		WeekEnd:       to,
		AvgMood:       common.Average(moodValues),
		AvgEcoMind:    common.Average(ecoMind),
		MoodCheckins:  len(moods),
		EcoActions:    len(carbon),
		TotalCO2Saved: common.Sum(co2),
		CreatedAt:     s.now(),
	}
	in.Tone = toneFor(in.AvgMood, in.EcoActions)
	in.Message = s.pick(in.Tone)

	if err := s.store.SaveInsight(ctx, in); err != nil {
		return nil, err
	}

	s.activity.Activity(ctx, events.TypeInsightGenerated, userID, map[string]any{
		"key":  in.Key,
		"tone": in.Tone,
	})
	return in, nil
}

func (s *Service) pick(tone string) string {
	pool := messagePools[tone]
	s.mu.Lock()
	defer s.mu.Unlock()
	return pool[s.rng.Intn(len(pool))]
}

// InsightKey — ключ сводки: userId_YYYY-MM-DD.
func InsightKey(userID string, weekStart time.Time) string {
	return fmt.Sprintf("%s_%s", userID, weekStart.Format(common.DateLayout))
}

// GenerateForActiveUsers пересчитывает сводки за неделю, предшествующую anchor,
// для всех, у кого была активность. Ошибка по одному пользователю не прерывает остальных.
func (s *Service) GenerateForActiveUsers(ctx context.Context, anchor time.Time) (int, error) {
	prev := common.StartOfWeek(anchor, s.loc).AddDate(0, 0, -7)
	from, to := s.Week(prev)

	users, err := s.store.ActiveUsersBetween(ctx, from, to)
	if err != nil {
		return 0, err
	}

	done := 0
	for _, userID := range users {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		if _, err := s.generate(ctx, userID, prev); err != nil {
			log.WithError(err).WithField("user_id", userID).Error("Не удалось построить недельную сводку")
			continue
		}
		done++
	}
	return done, nil
}

// SectionStats — статистика одного класса.
type SectionStats struct {
	ClassID     string         `json:"classId"`
	Section     string         `json:"section"`
	Checkins    int            `json:"checkins"`
	UniqueUsers int            `json:"uniqueUsers"`
	AvgMood     float64        `json:"avgMood"`
	AvgEcoMind  float64        `json:"avgEcoMind"`
	ByDay       map[string]int `json:"byDay"`
}

// SectionReport — настроение школы за неделю по группам classId-section.
type SectionReport struct {
	SchoolID  string                   `json:"schoolId"`
	WeekStart time.Time                `json:"weekStart"`
	WeekEnd   time.Time                `json:"weekEnd"`
	Groups    map[string]*SectionStats `json:"groups"`
}

// Keys возвращает ключи групп по алфавиту.
func (r *SectionReport) Keys() []string {
	keys := make([]string, 0, len(r.Groups))
	for k := range r.Groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SectionAggregate группирует чекины учеников школы по классам.
func (s *Service) SectionAggregate(ctx context.Context, schoolID, weekStart string) (*SectionReport, error) {
	schoolID = strings.TrimSpace(schoolID)
	if schoolID == "" {
		return nil, common.ErrSchoolIDRequired
	}
	anchor, err := s.anchorFor(weekStart)
	if err != nil {
		return nil, err
	}
	from, to := s.Week(anchor)

	rows, err := s.store.SchoolMoodLogs(ctx, schoolID, from, to)
	if err != nil {
		return nil, err
	}

	type acc struct {
		stats   *SectionStats
		users   map[string]struct{}
		moods   []float64
		ecoMind []float64
	}
	groups := make(map[string]*acc)
	for _, r := range rows {
		key := (&ledger.Profile{ClassID: r.ClassID, Section: r.Section}).GroupKey()
		g, ok := groups[key]
		if !ok {
			g = &acc{
				stats: &SectionStats{ClassID: r.ClassID, Section: r.Section, ByDay: map[string]int{}},
				users: map[string]struct{}{},
			}
			groups[key] = g
		}
		g.stats.Checkins++
		g.users[r.UserID] = struct{}{}
		g.moods = append(g.moods, float64(r.Mood))
		g.ecoMind = append(g.ecoMind, r.EcoMindScore)
		g.stats.ByDay[r.CreatedAt.In(s.loc).Format(common.DateLayout)]++
	}

	report := &SectionReport{
		SchoolID:  schoolID,
		WeekStart: from,
		WeekEnd:   to,
		Groups:    make(map[string]*SectionStats, len(groups)),
	}
	for key, g := range groups {
		g.stats.UniqueUsers = len(g.users)
		g.stats.AvgMood = common.Average(g.moods)
		g.stats.AvgEcoMind = common.Average(g.ecoMind)
		report.Groups[key] = g.stats
	}
	return report, nil
}
