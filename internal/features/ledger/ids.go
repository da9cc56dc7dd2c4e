package ledger

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator выдаёт идентификаторы записей.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator — генератор по умолчанию (UUID v4).
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.NewString() }

// SequentialIDs выдаёт предсказуемые id вида prefix-1, prefix-2, ...
type SequentialIDs struct {
	Prefix string
	n      atomic.Int64
}

func (s *SequentialIDs) NewID() string {
	return fmt.Sprintf("%s-%d", s.Prefix, s.n.Add(1))
}
