package events

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// LogPublisher пишет события в лог. Используется, когда брокер не настроен.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, e Event) error {
	log.WithFields(log.Fields{
		"event_id": e.ID,
		"type":     e.Type,
		"user_id":  e.UserID,
		"actor_id": e.ActorID,
		"payload":  e.Payload,
	}).Info("Событие активности")
	return nil
}

func (LogPublisher) Close() error { return nil }
