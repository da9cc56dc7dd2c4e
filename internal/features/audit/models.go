// Package audit ведёт журнал действий модераторов и рассылает события активности.
package audit

import (
	"time"

	"healcoins.app/ledger/internal/events"
)

// Entry — запись журнала аудита.
type Entry struct {
	ID         string         `json:"id"`
	ActorID    string         `json:"actorId"`
	Action     string         `json:"action"`
	TargetType string         `json:"targetType"`
	TargetID   string         `json:"targetId"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Действия и типы объектов в журнале. Действие уходит в шину как тип события.
const (
	ActionModerationApproved = events.TypeModerationApproved
	ActionBadgesAwarded      = events.TypeBadgesAwarded

	TargetModeration = "moderation"
	TargetProfile    = "profile"
)
