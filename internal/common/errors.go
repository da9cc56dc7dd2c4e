// Package common — errors.go определяет типизированные ошибки,
// которые используются во всех модулях сервиса.
// Каждая ошибка несёт gRPC-код, по которому транспорт решает,
// какой HTTP-статус и какой код вернуть клиенту.
package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Ошибки доступа
var (
	// ErrUnauthenticated — нет или невалидный токен
	ErrUnauthenticated = status.Error(codes.Unauthenticated, "authentication required")
	// ErrIdentityMismatch — вызывающий пытается действовать от имени другого пользователя
	ErrIdentityMismatch = status.Error(codes.PermissionDenied, "caller does not match target user")
	// ErrNotAdmin — у вызывающего нет админского клейма
	ErrNotAdmin = status.Error(codes.PermissionDenied, "admin privileges required")
)

// Ошибки валидации
var (
	ErrUserIDRequired      = status.Error(codes.InvalidArgument, "userId is required")
	ErrUnknownActionType   = status.Error(codes.InvalidArgument, "actionType must be one of transport, energy, waste, water")
	ErrInvalidValue        = status.Error(codes.InvalidArgument, "value must be a positive number")
	ErrMoodOutOfRange      = status.Error(codes.InvalidArgument, "mood must be an integer between 1 and 10")
	ErrNoAnimalActions     = status.Error(codes.InvalidArgument, "actions must not be empty")
	ErrContentType         = status.Error(codes.InvalidArgument, "contentType must be image/jpeg, image/png or image/webp")
	ErrLogIDRequired       = status.Error(codes.InvalidArgument, "logId is required")
	ErrFilenameRequired    = status.Error(codes.InvalidArgument, "filename is required")
	ErrSchoolIDRequired    = status.Error(codes.InvalidArgument, "schoolId is required")
	ErrInvalidWeekStart    = status.Error(codes.InvalidArgument, "weekStart must be a date in YYYY-MM-DD format")
	ErrInvalidQueueStatus  = status.Error(codes.InvalidArgument, "status must be pending or approved")
	ErrModerationIDMissing = status.Error(codes.InvalidArgument, "moderationId is required")
	ErrInvalidPage         = status.Error(codes.InvalidArgument, "limit must be between 1 and 500 and offset must not be negative")
	ErrFilenameTooLong     = status.Error(codes.InvalidArgument, "filename must be at most 200 characters")
)

// Ошибки начислений
var (
	// ErrCooldown — такое же действие уже было в окне кулдауна
	ErrCooldown = status.Error(codes.AlreadyExists, "a similar action was logged recently, try again later")
	// ErrMoodAlreadyLogged — чекин настроения уже есть сегодня
	ErrMoodAlreadyLogged = status.Error(codes.AlreadyExists, "mood check-in already logged today")
	// ErrDailyCapReached — начисление превысит дневной лимит
	ErrDailyCapReached = status.Error(codes.ResourceExhausted, "daily HealCoins limit reached")
	// ErrRateLimited — слишком много запросов за окно
	ErrRateLimited = status.Error(codes.ResourceExhausted, "too many requests")
)

// Ошибки поиска
var (
	ErrModerationNotFound = status.Error(codes.NotFound, "moderation entry not found")
	ErrLogNotFound        = status.Error(codes.NotFound, "action log not found")
	ErrWalletNotFound     = status.Error(codes.NotFound, "wallet not found")
	ErrProfileNotFound    = status.Error(codes.NotFound, "profile not found")
	ErrInsightNotFound    = status.Error(codes.NotFound, "weekly insight not found")
)

// Ошибки модерации и админки
var (
	// ErrRejectNotSupported — отклонение заявок пока не реализовано продуктово
	ErrRejectNotSupported = status.Error(codes.Unimplemented, "moderation rejection is not available yet")
	// ErrWrongPassword — неверный пароль администратора
	ErrWrongPassword = status.Error(codes.PermissionDenied, "wrong password")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = status.Error(codes.ResourceExhausted, "too many attempts, wait 1 hour")
	// ErrUploadsDisabled — хранилище пруфов не настроено
	ErrUploadsDisabled = status.Error(codes.Unimplemented, "proof uploads are not configured")
)

// Errorf создаёт типизированную ошибку с произвольным текстом.
func Errorf(code codes.Code, format string, args ...any) error {
	return status.Error(code, fmt.Sprintf(format, args...))
}

// CodeOf возвращает gRPC-код ошибки, разворачивая цепочку %w.
// Всё, что не несёт статус, считается Internal.
func CodeOf(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	var se interface{ GRPCStatus() *status.Status }
	if errors.As(err, &se) {
		return se.GRPCStatus().Code()
	}
	return codes.Internal
}

// MessageOf возвращает текст для клиента. Для Internal причина не раскрывается.
func MessageOf(err error) string {
	var se interface{ GRPCStatus() *status.Status }
	if errors.As(err, &se) && se.GRPCStatus().Code() != codes.Internal {
		return se.GRPCStatus().Message()
	}
	return "internal error"
}

// WireCode переводит gRPC-код в строковый код ответа API.
func WireCode(code codes.Code) string {
	switch code {
	case codes.InvalidArgument:
		return "invalid-argument"
	case codes.PermissionDenied:
		return "permission-denied"
	case codes.Unauthenticated:
		return "unauthenticated"
	case codes.AlreadyExists:
		return "already-exists"
	case codes.ResourceExhausted:
		return "resource-exhausted"
	case codes.NotFound:
		return "not-found"
	case codes.Unimplemented:
		return "unimplemented"
	default:
		return "internal"
	}
}
