package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openfolk/contacts-backend/internal/services"
)

type LookupHandler struct {
	lookupService services.LookupService
}

func NewLookupHandler(lookupService services.LookupService) *LookupHandler {
	return &LookupHandler{lookupService: lookupService}
}

// Resolve follows a lookup key back to the contact that currently carries
// its members, surviving merges and splits since the key was handed out.
func (lh *LookupHandler) Resolve(c *gin.Context) {
	key := c.Param("key")
	if key == "" {
		RespondError(c, http.StatusBadRequest, "validation", errors.New("missing lookup key"))
		return
	}
	lastKnownID := parseInt64Query(c, "last_known_id", 0)
	contact, err := lh.lookupService.Resolve(c.Request.Context(), key, lastKnownID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"contact": contact})
}

func (lh *LookupHandler) ByPhone(c *gin.Context) {
	number := c.Query("number")
	results, err := lh.lookupService.ByPhone(c.Request.Context(), number)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"contacts": results})
}

// ByPhoneRows serves dialer-style callers that need every contributing phone
// row, not one entry per aggregate.
func (lh *LookupHandler) ByPhoneRows(c *gin.Context) {
	number := c.Query("number")
	results, err := lh.lookupService.ByPhoneRows(c.Request.Context(), number)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"rows": results})
}
