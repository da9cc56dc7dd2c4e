package audit

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"healcoins.app/ledger/internal/events"
	"healcoins.app/ledger/internal/features/ledger"
)

// publishTimeout ограничивает отправку события, чтобы брокер не держал запрос.
const publishTimeout = 2 * time.Second

// Recorder пишет аудит и события активности. Все методы best-effort:
// ошибки логируются и не возвращаются вызывающему.
type Recorder struct {
	repo      Repository
	publisher events.Publisher
	ids       ledger.IDGenerator
	now       func() time.Time
}

func NewRecorder(repo Repository, publisher events.Publisher, ids ledger.IDGenerator) *Recorder {
	return &Recorder{repo: repo, publisher: publisher, ids: ids, now: time.Now}
}

// Activity публикует событие активности пользователя.
func (r *Recorder) Activity(ctx context.Context, eventType, userID string, payload any) {
	r.publish(ctx, events.Event{
		ID:         r.ids.NewID(),
		Type:       eventType,
		UserID:     userID,
		OccurredAt: r.now(),
		Payload:    payload,
	})
}

// Record сохраняет запись аудита и дублирует её событием.
func (r *Recorder) Record(ctx context.Context, e *Entry) {
	if e.ID == "" {
		e.ID = r.ids.NewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now()
	}

	if err := r.repo.Insert(ctx, e); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"action":    e.Action,
			"target_id": e.TargetID,
		}).Error("Не удалось записать аудит")
	}

	r.publish(ctx, events.Event{
		ID:         e.ID,
		Type:       e.Action,
		ActorID:    e.ActorID,
		UserID:     userIDOf(e),
		OccurredAt: e.CreatedAt,
		Payload:    e.Metadata,
	})
}

// Trail возвращает журнал по объекту.
func (r *Recorder) Trail(ctx context.Context, targetType, targetID string) ([]*Entry, error) {
	return r.repo.ListByTarget(ctx, targetType, targetID)
}

func (r *Recorder) publish(ctx context.Context, e events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := r.publisher.Publish(ctx, e); err != nil {
		log.WithError(err).WithField("type", e.Type).Warn("Не удалось опубликовать событие")
	}
}

func userIDOf(e *Entry) string {
	if v, ok := e.Metadata["userId"].(string); ok {
		return v
	}
	return ""
}
