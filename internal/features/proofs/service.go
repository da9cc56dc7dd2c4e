// Package proofs выдаёт подписанные ссылки для загрузки фото-подтверждений
// добрых дел.
package proofs

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"healcoins.app/ledger/internal/common"
	"healcoins.app/ledger/internal/features/actions"
	"healcoins.app/ledger/internal/features/ledger"
)

// Допустимые типы изображений.
var allowedContentTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
}

const (
	// maxFilenameInputLen — предел для имени файла во входном запросе, в символах.
	maxFilenameInputLen = 200
	// maxFilenameLen — предел для очищенного имени в ключе объекта.
	maxFilenameLen = 100
)

// Presigner подписывает загрузку объекта.
type Presigner interface {
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
}

// Store — доступ к логам добрых дел.
type Store interface {
	GetAnimalLog(ctx context.Context, id string) (*ledger.AnimalLog, error)
	AppendProofPath(ctx context.Context, logID, path string) error
}

// UploadInput — запрос getAnimalProofUploadUrl.
type UploadInput struct {
	UserID      string `json:"userId"`
	LogID       string `json:"logId"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

// UploadResult — подписанная ссылка и путь, под которым окажется файл.
type UploadResult struct {
	UploadURL   string    `json:"uploadUrl"`
	StoragePath string    `json:"storagePath"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Service выдаёт ссылки на загрузку.
type Service struct {
	store     Store
	presigner Presigner
	ids       ledger.IDGenerator
	ttl       time.Duration
	now       func() time.Time
}

// NewService создаёт сервис. presigner == nil — загрузки отключены.
func NewService(store Store, presigner Presigner, ids ledger.IDGenerator, ttl time.Duration) *Service {
	return &Service{store: store, presigner: presigner, ids: ids, ttl: ttl, now: time.Now}
}

// UploadURL проверяет владельца лога и выдаёт ссылку на PUT.
func (s *Service) UploadURL(ctx context.Context, callerID string, in UploadInput) (*UploadResult, error) {
	if err := actions.ValidateIdentity(callerID, in.UserID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.LogID) == "" {
		return nil, common.ErrLogIDRequired
	}
	if strings.TrimSpace(in.Filename) == "" {
		return nil, common.ErrFilenameRequired
	}
	if utf8.RuneCountInString(strings.TrimSpace(in.Filename)) > maxFilenameInputLen {
		return nil, common.ErrFilenameTooLong
	}
	contentType := strings.ToLower(strings.TrimSpace(in.ContentType))
	if _, ok := allowedContentTypes[contentType]; !ok {
		return nil, common.ErrContentType
	}
	if s.presigner == nil {
		return nil, common.ErrUploadsDisabled
	}

	entry, err := s.store.GetAnimalLog(ctx, in.LogID)
	if err != nil {
		return nil, err
	}
	if entry.UserID != in.UserID {
		return nil, common.ErrIdentityMismatch
	}

	key := fmt.Sprintf("animal-proofs/%s/%s/%s-%s", in.UserID, in.LogID, s.ids.NewID(), SanitizeFilename(in.Filename))
	url, err := s.presigner.PresignPut(ctx, key, contentType, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("ошибка подписи ссылки: %w", err)
	}
	if err := s.store.AppendProofPath(ctx, in.LogID, key); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id": in.UserID,
		"log_id":  in.LogID,
		"path":    key,
	}).Info("Выдана ссылка на загрузку пруфа")

	return &UploadResult{
		UploadURL:   url,
		StoragePath: key,
		ExpiresAt:   s.now().Add(s.ttl),
	}, nil
}

// SanitizeFilename оставляет только базовое имя из латиницы, цифр, '.', '-' и '_'.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if len(out) > maxFilenameLen {
		out = out[len(out)-maxFilenameLen:]
	}
	if out == "" {
		return "proof"
	}
	return out
}
