package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/roleta_leads/backend/internal/crm"
	"github.com/roleta_leads/backend/internal/db"
	"github.com/roleta_leads/backend/internal/service"
)

type Handler struct {
	Store     *db.Store
	Resolver  *service.Resolver
	Validator *validator.Validate
	Logger    zerolog.Logger
	AdminKey  string
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type LeadWebhookRequest struct {
	UnitID int64 `json:"unit_id" validate:"required,gt=0"`
	LeadID int64 `json:"lead_id" validate:"required,gt=0"`
}

// @Summary Assign inbound lead
// @Description Webhook entry point: assigns the lead to the unit's next eligible seller and rotates the queue
// @Tags webhooks
// @Accept json
// @Produce json
// @Param payload body LeadWebhookRequest true "unit and lead"
// @Success 200 {object} service.AssignResult
// @Failure 404 {object} map[string]any
// @Failure 502 {object} map[string]any
// @Router /api/webhooks/lead [post]
func (h *Handler) LeadWebhook(c *gin.Context) {
	var req LeadWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	result, err := h.Resolver.AssignNext(c.Request.Context(), req.UnitID, req.LeadID)
	if err != nil {
		h.writeEngineError(c, err)
		return
	}
	if result.RotationPending {
		h.Logger.Warn().
			Int64("unit_id", req.UnitID).
			Int64("lead_id", req.LeadID).
			Msg("assignment succeeded with rotation pending")
	}
	c.JSON(http.StatusOK, result)
}

// writeEngineError maps the engine's error taxonomy onto the HTTP surface.
// Empty/no-eligible are 404-equivalents the calling system should not retry;
// transient sync failures are 502 and safe to retry; permanent CRM rejections
// are 422; lock/version conflicts are 409 and the whole operation should be
// retried from scratch.
func (h *Handler) writeEngineError(c *gin.Context, err error) {
	var transient *crm.TransientError
	var permanent *crm.PermanentError

	switch {
	case errors.Is(err, service.ErrEmptyQueue):
		writeError(c, http.StatusNotFound, "EMPTY_QUEUE", "Queue has no sellers", nil)
	case errors.Is(err, service.ErrNoEligibleSeller):
		writeError(c, http.StatusNotFound, "NO_ELIGIBLE_SELLER", "No seller is eligible right now", nil)
	case errors.Is(err, service.ErrUnitInactive):
		writeError(c, http.StatusNotFound, "UNIT_INACTIVE", "Unit is not active", nil)
	case errors.Is(err, db.ErrUnitNotFound):
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Unit not found", nil)
	case errors.Is(err, db.ErrQueueNotFound):
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Unit is not enrolled", nil)
	case errors.Is(err, db.ErrVersionConflict):
		writeError(c, http.StatusConflict, "CONFLICT", "Concurrent queue update, retry the operation", nil)
	case errors.Is(err, service.ErrOrderMismatch), errors.Is(err, service.ErrBadSwap):
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.As(err, &permanent):
		writeError(c, http.StatusUnprocessableEntity, "SYNC_REJECTED", "CRM rejected the assignment", err.Error())
	case errors.As(err, &transient):
		writeError(c, http.StatusBadGateway, "SYNC_FAILED", "CRM unavailable, retry later", err.Error())
	default:
		h.Logger.Error().Err(err).Msg("engine error")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "Internal error", err.Error())
	}
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
