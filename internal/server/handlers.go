package server

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/codes"

	"healcoins.app/ledger/internal/common"
	"healcoins.app/ledger/internal/features/actions"
	"healcoins.app/ledger/internal/features/admin"
	"healcoins.app/ledger/internal/features/insights"
	"healcoins.app/ledger/internal/features/ledger"
	"healcoins.app/ledger/internal/features/moderation"
	"healcoins.app/ledger/internal/features/proofs"
)

const maxProfileFieldLen = 64

// ProfileStore — профили для PUT /v1/profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*ledger.Profile, error)
	UpsertProfile(ctx context.Context, p *ledger.Profile) error
}

// Handler связывает HTTP-маршруты с сервисами.
type Handler struct {
	Actions    *actions.Service
	Moderation *moderation.Service
	Insights   *insights.Service
	Proofs     *proofs.Service
	Admin      *admin.Service
	Wallets    ledger.WalletReader
	Profiles   ProfileStore
}

func (h *Handler) health(c *gin.Context) {
	respondOK(c, gin.H{"status": "ok"})
}

func (h *Handler) logCarbon(c *gin.Context) {
	var in actions.CarbonInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, errInvalidBody)
		return
	}
	res, err := h.Actions.LogCarbonAction(c.Request.Context(), mustCaller(c).UserID(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

func (h *Handler) logMood(c *gin.Context) {
	var in actions.MoodInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, errInvalidBody)
		return
	}
	res, err := h.Actions.LogMoodCheckin(c.Request.Context(), mustCaller(c).UserID(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

func (h *Handler) logAnimal(c *gin.Context) {
	var in actions.AnimalInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, errInvalidBody)
		return
	}
	res, err := h.Actions.LogAnimalAction(c.Request.Context(), mustCaller(c).UserID(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

func (h *Handler) proofUploadURL(c *gin.Context) {
	var in proofs.UploadInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, errInvalidBody)
		return
	}
	res, err := h.Proofs.UploadURL(c.Request.Context(), mustCaller(c).UserID(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

func (h *Handler) approveModeration(c *gin.Context) {
	res, err := h.Moderation.Approve(c.Request.Context(), c.Param("id"), mustCaller(c).UserID())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"moderationId":    res.Entry.ID,
		"alreadyApproved": res.AlreadyApproved,
		"badges":          res.Badges,
		"wallet":          res.Wallet,
	})
}

func (h *Handler) rejectModeration(c *gin.Context) {
	if err := h.Moderation.Reject(c.Request.Context(), c.Param("id"), mustCaller(c).UserID()); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil)
}

func (h *Handler) listModeration(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		respondError(c, err)
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		respondError(c, err)
		return
	}
	queue, err := h.Moderation.ListQueue(c.Request.Context(), c.Query("status"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, queue)
}

// queryInt читает необязательный числовой параметр. Отсутствие — 0.
func queryInt(c *gin.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, common.Errorf(codes.InvalidArgument, "%s must be an integer", name)
	}
	return v, nil
}

func (h *Handler) moderationAudit(c *gin.Context) {
	trail, err := h.Moderation.AuditTrail(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, trail)
}

type insightRequest struct {
	UserID    string `json:"userId"`
	WeekStart string `json:"weekStart"`
}

func (h *Handler) weeklyInsight(c *gin.Context) {
	var in insightRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, errInvalidBody)
		return
	}
	caller := mustCaller(c)
	res, err := h.Insights.Generate(c.Request.Context(), caller.UserID(), caller.Admin, in.UserID, in.WeekStart)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

func (h *Handler) schoolMood(c *gin.Context) {
	res, err := h.Insights.SectionAggregate(c.Request.Context(), c.Param("schoolId"), c.Query("weekStart"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

func (h *Handler) wallet(c *gin.Context) {
	userID := c.Param("userId")
	if err := selfOrAdmin(c, userID); err != nil {
		respondError(c, err)
		return
	}
	w, err := h.Wallets.GetWallet(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, w)
}

type profileRequest struct {
	SchoolID string `json:"schoolId"`
	ClassID  string `json:"classId"`
	Section  string `json:"section"`
}

func (h *Handler) upsertProfile(c *gin.Context) {
	userID := c.Param("userId")
	if err := selfOrAdmin(c, userID); err != nil {
		respondError(c, err)
		return
	}
	var in profileRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, errInvalidBody)
		return
	}

	p := &ledger.Profile{
		UserID:    userID,
		SchoolID:  strings.TrimSpace(in.SchoolID),
		ClassID:   strings.TrimSpace(in.ClassID),
		Section:   strings.TrimSpace(in.Section),
		UpdatedAt: time.Now(),
	}
	for _, v := range []string{p.SchoolID, p.ClassID, p.Section} {
		if v == "" || len([]rune(v)) > maxProfileFieldLen {
			respondError(c, common.Errorf(codes.InvalidArgument,
				"schoolId, classId and section are required and must be at most %d characters", maxProfileFieldLen))
			return
		}
	}

	ctx := c.Request.Context()
	if err := h.Profiles.UpsertProfile(ctx, p); err != nil {
		respondError(c, err)
		return
	}
	saved, err := h.Profiles.GetProfile(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, saved)
}

type loginRequest struct {
	UserID   string `json:"userId"`
	Password string `json:"password"`
}

func (h *Handler) adminLogin(c *gin.Context) {
	var in loginRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, errInvalidBody)
		return
	}
	res, err := h.Admin.Login(c.Request.Context(), strings.TrimSpace(in.UserID), in.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

func selfOrAdmin(c *gin.Context, userID string) error {
	caller := mustCaller(c)
	if strings.TrimSpace(userID) == "" {
		return common.ErrUserIDRequired
	}
	if caller.Admin || caller.UserID() == userID {
		return nil
	}
	return common.ErrIdentityMismatch
}
