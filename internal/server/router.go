// Package server — HTTP API поверх сервисов (gin).
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"healcoins.app/ledger/internal/auth"
)

// NewRouter собирает маршруты.
func NewRouter(h *Handler, tokens *auth.TokenManager, limiter *RateLimiter, requestTimeout time.Duration) *gin.Engine {
	r := gin.New()
	r.Use(recovery(), requestLogger(), timeout(requestTimeout))

	r.GET("/healthz", h.health)

	v1 := r.Group("/v1")
	v1.POST("/auth/admin", h.adminLogin)

	// Пользовательские маршруты
	protected := v1.Group("")
	protected.Use(authenticate(tokens))
	{
		act := protected.Group("/actions")
		act.Use(rateLimit(limiter))
		{
			act.POST("/carbon", h.logCarbon)
			act.POST("/mood", h.logMood)
			act.POST("/animal", h.logAnimal)
			act.POST("/animal/proof-upload-url", h.proofUploadURL)
		}

		protected.POST("/insights/weekly", h.weeklyInsight)
		protected.GET("/wallets/:userId", h.wallet)
		protected.PUT("/profiles/:userId", h.upsertProfile)
	}

	// Админские маршруты
	adm := protected.Group("/admin")
	adm.Use(requireAdmin())
	{
		adm.GET("/moderation", h.listModeration)
		adm.POST("/moderation/:id/approve", h.approveModeration)
		adm.POST("/moderation/:id/reject", h.rejectModeration)
		adm.GET("/moderation/:id/audit", h.moderationAudit)
		adm.GET("/schools/:schoolId/mood-by-section", h.schoolMood)
	}

	return r
}

// Server — HTTP-сервер с graceful shutdown.
type Server struct {
	http *http.Server
}

func NewServer(port int, handler http.Handler) *Server {
	return &Server{
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start блокируется до остановки сервера.
func (s *Server) Start() error {
	log.WithField("addr", s.http.Addr).Info("HTTP сервер запущен")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ошибка HTTP сервера: %w", err)
	}
	return nil
}

// Shutdown дожидается завершения активных запросов.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
