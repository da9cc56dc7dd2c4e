// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: недельные сводки по понедельникам
// и ежедневное напоминание об очереди модерации.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"healcoins.app/ledger/internal/features/ledger"
	"healcoins.app/ledger/internal/features/moderation"
)

// Расписание в часовом поясе сервиса.
const (
	weeklyInsightsSpec = "0 6 * * 1"
	backlogSpec        = "0 9 * * *"
)

// backlogPageSize — сколько старейших заявок достаём для напоминания.
const backlogPageSize = 10

// InsightGenerator пересчитывает сводки за прошлую неделю.
type InsightGenerator interface {
	GenerateForActiveUsers(ctx context.Context, anchor time.Time) (int, error)
}

// QueueReader читает очередь модерации.
type QueueReader interface {
	ListQueue(ctx context.Context, status string, limit, offset int) (*moderation.Queue, error)
}

// BacklogNotifier напоминает модераторам о заявках. total — размер всей очереди,
// pending — её начало.
type BacklogNotifier interface {
	NotifyBacklog(ctx context.Context, pending []*ledger.ModerationEntry, total int)
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron     *cron.Cron
	insights InsightGenerator
	queue    QueueReader
	notifier BacklogNotifier
	now      func() time.Time
}

// NewScheduler создаёт планировщик задач в часовом поясе loc.
func NewScheduler(loc *time.Location, insights InsightGenerator, queue QueueReader, notifier BacklogNotifier) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		insights: insights,
		queue:    queue,
		notifier: notifier,
		now:      time.Now,
	}
}

// Start запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(weeklyInsightsSpec, func() { s.RunWeeklyInsights(ctx) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(backlogSpec, func() { s.RunBacklogReminder(ctx) }); err != nil {
		return err
	}

	s.cron.Start()
	log.WithField("location", s.cron.Location().String()).Info("Планировщик задач запущен")
	return nil
}

// RunWeeklyInsights — недельные сводки за прошлую неделю.
func (s *Scheduler) RunWeeklyInsights(ctx context.Context) {
	log.Info("[CRON] Недельные сводки")
	n, err := s.insights.GenerateForActiveUsers(ctx, s.now())
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка построения сводок")
		return
	}
	log.WithField("users", n).Info("[CRON] Сводки построены")
}

// RunBacklogReminder — напоминание о необработанных заявках.
func (s *Scheduler) RunBacklogReminder(ctx context.Context) {
	log.Debug("[CRON] Проверка очереди модерации")
	queue, err := s.queue.ListQueue(ctx, string(ledger.StatusPending), backlogPageSize, 0)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка чтения очереди")
		return
	}
	if queue.Total == 0 {
		return
	}
	s.notifier.NotifyBacklog(ctx, queue.Items, queue.Total)
}

// Stop останавливает планировщик.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
