package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roleta_leads/backend/internal/db"
	"github.com/roleta_leads/backend/internal/models"
)

type AbsenceRequest struct {
	SellerID int64     `json:"seller_id" validate:"required,gt=0"`
	Start    time.Time `json:"start" validate:"required"`
	End      time.Time `json:"end" validate:"required"`
	Reason   string    `json:"reason"`
}

// @Summary Register absence
// @Tags absences
// @Accept json
// @Produce json
// @Param payload body AbsenceRequest true "absence window"
// @Success 200 {object} map[string]any
// @Router /api/absences [post]
func (h *Handler) AbsenceAdd(c *gin.Context) {
	var req AbsenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	if req.End.Before(req.Start) {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "end must not be before start", nil)
		return
	}

	if _, err := h.Store.GetSeller(c.Request.Context(), req.SellerID); err != nil {
		if errors.Is(err, db.ErrSellerNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Seller not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load seller", err.Error())
		return
	}

	id, err := h.Store.AddAbsence(c.Request.Context(), models.Absence{
		SellerID: req.SellerID,
		Start:    req.Start,
		End:      req.End,
		Reason:   req.Reason,
	})
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to register absence", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "id": id})
}

func (h *Handler) AbsenceRemove(c *gin.Context) {
	absenceID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Store.RemoveAbsence(c.Request.Context(), absenceID); err != nil {
		if errors.Is(err, db.ErrAbsenceNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Absence not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to remove absence", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) AbsencesForUnit(c *gin.Context) {
	unitID, ok := paramID(c, "id")
	if !ok {
		return
	}
	items, err := h.Store.ListAbsencesForUnit(c.Request.Context(), unitID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list absences", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
