// Package events публикует события активности пользователей во внешние системы
// (Kafka, RabbitMQ или просто в лог).
package events

import (
	"context"
	"time"
)

// Типы событий.
const (
	TypeCarbonLogged       = "carbon.logged"
	TypeMoodLogged         = "mood.logged"
	TypeAnimalLogged       = "animal.logged"
	TypeModerationApproved = "moderation.approved"
	TypeBadgesAwarded      = "badges.awarded"
	TypeInsightGenerated   = "insight.generated"
)

// Event — событие активности.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	UserID     string    `json:"userId"`
	ActorID    string    `json:"actorId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload,omitempty"`
}

// Publisher отправляет события.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}
