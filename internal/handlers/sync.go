package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openfolk/contacts-backend/internal/services"
)

type SyncHandler struct {
	syncService services.SyncService
}

func NewSyncHandler(syncService services.SyncService) *SyncHandler {
	return &SyncHandler{syncService: syncService}
}

func (sh *SyncHandler) ListDirty(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	dirty, err := sh.syncService.ListDirty(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"raw_contacts": dirty})
}

func (sh *SyncHandler) ClearDirty(c *gin.Context) {
	var body struct {
		RawContactIDs []int64 `json:"raw_contact_ids"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	if err := sh.syncService.ClearDirty(c.Request.Context(), body.RawContactIDs); err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeletedSince feeds sync adapters and indexers the contacts removed after
// the given unix-millisecond timestamp.
func (sh *SyncHandler) DeletedSince(c *gin.Context) {
	since := parseInt64Query(c, "since", 0)
	logs, err := sh.syncService.DeletedSince(c.Request.Context(), since)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": logs})
}

func (sh *SyncHandler) PurgeRawContact(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := sh.syncService.PurgeRawContact(c.Request.Context(), id); err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
