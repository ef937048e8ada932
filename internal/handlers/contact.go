package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	types "github.com/openfolk/contacts-backend/internal/domain"
	"github.com/openfolk/contacts-backend/internal/services"
)

type ContactHandler struct {
	contactService services.ContactService
}

func NewContactHandler(contactService services.ContactService) *ContactHandler {
	return &ContactHandler{contactService: contactService}
}

func (ch *ContactHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	view, err := ch.contactService.GetContact(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, view)
}

func (ch *ContactHandler) SetStarred(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body struct {
		Starred bool `json:"starred"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	if err := ch.contactService.SetContactStarred(c.Request.Context(), id, body.Starred); err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (ch *ContactHandler) Pin(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body struct {
		Position  int  `json:"position"`
		ForceStar bool `json:"force_star"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	if err := ch.contactService.PinContact(c.Request.Context(), id, body.Position, body.ForceStar); err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (ch *ContactHandler) Unpin(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := ch.contactService.UnpinContact(c.Request.Context(), id); err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type exceptionBody struct {
	Type          types.ExceptionType `json:"type"`
	RawContactID1 int64               `json:"raw_contact_id1"`
	RawContactID2 int64               `json:"raw_contact_id2"`
}

func (ch *ContactHandler) SetException(c *gin.Context) {
	var body exceptionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	if err := ch.contactService.SetException(c.Request.Context(), body.Type, body.RawContactID1, body.RawContactID2); err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (ch *ContactHandler) ClearException(c *gin.Context) {
	var body exceptionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	if err := ch.contactService.ClearException(c.Request.Context(), body.RawContactID1, body.RawContactID2); err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetLocale swaps the active collation locale; sort keys are recomputed in
// the background.
func (ch *ContactHandler) SetLocale(c *gin.Context) {
	var body struct {
		Locale string `json:"locale"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	version := ch.contactService.SetActiveLocale(body.Locale)
	RespondOK(c, gin.H{"locale_version": version})
}
