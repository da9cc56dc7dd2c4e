package server

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"healcoins.app/ledger/internal/auth"
	"healcoins.app/ledger/internal/common"
)

const callerKey = "caller"

// recovery восстанавливается после паники в обработчике.
func recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(log.Fields{
					"component": "panic_recovery",
					"panic":     fmt.Sprintf("%v", r),
					"path":      c.Request.URL.Path,
					"stack":     string(debug.Stack()),
				}).Error("ПАНИКА в обработчике — восстановлено")
				respondError(c, fmt.Errorf("panic: %v", r))
			}
		}()
		c.Next()
	}
}

// requestLogger логирует каждый запрос.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := log.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}
		if claims, ok := callerFrom(c); ok {
			fields["user_id"] = claims.UserID()
		}
		log.WithFields(fields).Debug("HTTP запрос")
	}
}

// timeout ограничивает время обработки запроса.
func timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// authenticate проверяет Bearer-токен и кладёт клеймы в контекст.
func authenticate(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			respondError(c, common.ErrUnauthenticated)
			return
		}

		claims, err := tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			respondError(c, err)
			return
		}
		c.Set(callerKey, claims)
		c.Next()
	}
}

// requireAdmin пропускает только токены с админским клеймом.
func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := callerFrom(c)
		if !ok || !claims.Admin {
			respondError(c, common.ErrNotAdmin)
			return
		}
		c.Next()
	}
}

// rateLimit ограничивает частоту запросов вызывающего.
func rateLimit(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := callerFrom(c)
		if ok && !rl.Allow(claims.UserID()) {
			log.WithField("user_id", claims.UserID()).Warn("Превышен лимит запросов")
			respondError(c, common.ErrRateLimited)
			return
		}
		c.Next()
	}
}

func callerFrom(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}

// mustCaller возвращает клеймы; вызывается только за authenticate.
func mustCaller(c *gin.Context) *auth.Claims {
	claims, _ := callerFrom(c)
	return claims
}
