package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/roleta_leads/backend/internal/db"
	"github.com/roleta_leads/backend/internal/models"
	"github.com/roleta_leads/backend/internal/service"
)

// @Summary List units
// @Tags units
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/units [get]
func (h *Handler) UnitsList(c *gin.Context) {
	items, err := h.Store.ListUnits(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list units", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// @Summary Unit queue
// @Tags units
// @Produce json
// @Param id path int true "Unit ID"
// @Param kind query string false "auto or roleta" default(auto)
// @Success 200 {object} models.Queue
// @Router /api/units/{id}/queue [get]
func (h *Handler) QueueView(c *gin.Context) {
	unitID, ok := paramID(c, "id")
	if !ok {
		return
	}
	kind, ok := queueKind(c)
	if !ok {
		return
	}

	q, err := h.Store.LoadQueue(c.Request.Context(), unitID, kind)
	if err != nil {
		if errors.Is(err, db.ErrQueueNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Unit is not enrolled", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load queue", err.Error())
		return
	}
	c.JSON(http.StatusOK, q)
}

// @Summary Advance roleta queue
// @Description Rotates the manual queue without an inbound lead, for live draws
// @Tags queues
// @Produce json
// @Param id path int true "Unit ID"
// @Success 200 {object} service.AdvanceResult
// @Router /api/units/{id}/advance [post]
func (h *Handler) Advance(c *gin.Context) {
	unitID, ok := paramID(c, "id")
	if !ok {
		return
	}
	result, err := h.Resolver.AdvanceQueue(c.Request.Context(), unitID)
	if err != nil {
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type ReorderRequest struct {
	Kind        string  `json:"kind" validate:"omitempty,oneof=auto roleta"`
	SellerIDs   []int64 `json:"seller_ids" validate:"required,min=1"`
	RecordAudit bool    `json:"record_audit"`
}

// @Summary Reorder queue
// @Tags queues
// @Accept json
// @Produce json
// @Param id path int true "Unit ID"
// @Param payload body ReorderRequest true "full new order"
// @Success 200 {object} map[string]any
// @Router /api/units/{id}/queue [put]
func (h *Handler) Reorder(c *gin.Context) {
	unitID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	kind := models.QueueKind(req.Kind)
	if kind == "" {
		kind = models.QueueAuto
	}

	if err := h.Resolver.ReorderQueue(c.Request.Context(), unitID, kind, req.SellerIDs, req.RecordAudit); err != nil {
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "order": req.SellerIDs})
}

type SwapRequest struct {
	Kind string `json:"kind" validate:"omitempty,oneof=auto roleta"`
	Seq  int    `json:"seq" validate:"required,gt=0"`
}

// @Summary Swap adjacent queue entries
// @Tags queues
// @Accept json
// @Produce json
// @Param id path int true "Unit ID"
// @Param payload body SwapRequest true "position to swap with the next one"
// @Success 200 {object} map[string]any
// @Router /api/units/{id}/queue/swap [post]
func (h *Handler) Swap(c *gin.Context) {
	unitID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req SwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	kind := models.QueueKind(req.Kind)
	if kind == "" {
		kind = models.QueueRoleta
	}

	if err := h.Resolver.SwapEntries(c.Request.Context(), unitID, kind, req.Seq); err != nil {
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type EnrollRequest struct {
	Kind string `json:"kind" validate:"required,oneof=auto roleta"`
}

func (h *Handler) Enroll(c *gin.Context) {
	unitID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	if _, err := h.Store.GetUnit(c.Request.Context(), unitID); err != nil {
		h.writeEngineError(c, err)
		return
	}
	if err := h.Store.EnrollUnit(c.Request.Context(), unitID, models.QueueKind(req.Kind)); err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to enroll unit", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Unenroll(c *gin.Context) {
	unitID, ok := paramID(c, "id")
	if !ok {
		return
	}
	kind, ok := queueKind(c)
	if !ok {
		return
	}
	if err := h.Store.UnenrollUnit(c.Request.Context(), unitID, kind); err != nil {
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type QueueSellerRequest struct {
	Kind     string `json:"kind" validate:"omitempty,oneof=auto roleta"`
	SellerID int64  `json:"seller_id" validate:"required,gt=0"`
}

func (h *Handler) QueueSellerAdd(c *gin.Context) {
	unitID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req QueueSellerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	kind := models.QueueKind(req.Kind)
	if kind == "" {
		kind = models.QueueAuto
	}

	seller, err := h.Store.GetSeller(c.Request.Context(), req.SellerID)
	if err != nil {
		if errors.Is(err, db.ErrSellerNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Seller not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load seller", err.Error())
		return
	}
	if seller.UnitID != unitID {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Seller belongs to another unit", nil)
		return
	}

	if err := h.Resolver.AddSeller(c.Request.Context(), unitID, kind, req.SellerID); err != nil {
		if errors.Is(err, service.ErrAlreadyQueued) {
			writeError(c, http.StatusConflict, "CONFLICT", "Seller is already in the queue", nil)
			return
		}
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) QueueSellerRemove(c *gin.Context) {
	unitID, ok := paramID(c, "id")
	if !ok {
		return
	}
	sellerID, ok := paramID(c, "sellerID")
	if !ok {
		return
	}
	kind, ok := queueKind(c)
	if !ok {
		return
	}

	if err := h.Resolver.RemoveSeller(c.Request.Context(), unitID, kind, sellerID); err != nil {
		if errors.Is(err, service.ErrNotQueued) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Seller is not in the queue", nil)
			return
		}
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Assignment history
// @Tags units
// @Produce json
// @Param id path int true "Unit ID"
// @Param limit query int false "Max rows" default(50)
// @Success 200 {object} map[string]any
// @Router /api/units/{id}/log [get]
func (h *Handler) AssignmentLog(c *gin.Context) {
	unitID, ok := paramID(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	items, err := h.Store.ListAssignmentLog(c.Request.Context(), unitID, limit)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list assignment log", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": limit})
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", name+" must be a positive integer", nil)
		return 0, false
	}
	return id, true
}

func queueKind(c *gin.Context) (models.QueueKind, bool) {
	switch kind := c.DefaultQuery("kind", string(models.QueueAuto)); kind {
	case string(models.QueueAuto), string(models.QueueRoleta):
		return models.QueueKind(kind), true
	default:
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "kind must be auto or roleta", nil)
		return "", false
	}
}
