package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	types "github.com/openfolk/contacts-backend/internal/domain"
	"github.com/openfolk/contacts-backend/internal/observability"
	"github.com/openfolk/contacts-backend/internal/services"
)

type UsageHandler struct {
	usageService services.UsageService
}

func NewUsageHandler(usageService services.UsageService) *UsageHandler {
	return &UsageHandler{usageService: usageService}
}

func (uh *UsageHandler) Record(c *gin.Context) {
	var body struct {
		DataRowIDs []int64         `json:"data_row_ids"`
		Kind       types.UsageKind `json:"kind"`
		At         int64           `json:"at"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	if err := uh.usageService.Record(c.Request.Context(), body.DataRowIDs, body.Kind, body.At); err != nil {
		RespondDomainError(c, err)
		return
	}
	observability.Current().AddUsageRecorded(string(body.Kind), len(body.DataRowIDs))
	c.Status(http.StatusNoContent)
}

func (uh *UsageHandler) Frequent(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 20)
	results, err := uh.usageService.Frequent(c.Request.Context(), limit)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"contacts": results})
}

func (uh *UsageHandler) Starred(c *gin.Context) {
	results, err := uh.usageService.Starred(c.Request.Context())
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"contacts": results})
}

// Combined serves the starred-then-frequent list phone UIs show as
// favorites.
func (uh *UsageHandler) Combined(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 20)
	results, err := uh.usageService.Combined(c.Request.Context(), limit)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"contacts": results})
}

func (uh *UsageHandler) Decayed(c *gin.Context) {
	kind := types.UsageKind(c.Query("kind"))
	entries, err := uh.usageService.Decayed(c.Request.Context(), kind, time.Now())
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"entries": entries})
}

func (uh *UsageHandler) DeleteAll(c *gin.Context) {
	affected, err := uh.usageService.DeleteAll(c.Request.Context())
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"affected": affected})
}
