package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	types "github.com/openfolk/contacts-backend/internal/domain"
	"github.com/openfolk/contacts-backend/internal/services"
)

type RawContactHandler struct {
	contactService services.ContactService
}

func NewRawContactHandler(contactService services.ContactService) *RawContactHandler {
	return &RawContactHandler{contactService: contactService}
}

func (rh *RawContactHandler) Create(c *gin.Context) {
	var in services.RawContactInput
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	rc, err := rh.contactService.CreateRawContact(c.Request.Context(), in)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"raw_contact": rc})
}

func (rh *RawContactHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	rc, rows, err := rh.contactService.GetRawContact(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"raw_contact": rc, "rows": rows})
}

func (rh *RawContactHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := rh.contactService.DeleteRawContact(c.Request.Context(), id); err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (rh *RawContactHandler) SetAggregationMode(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body struct {
		Mode types.AggregationMode `json:"mode"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	if err := rh.contactService.SetAggregationMode(c.Request.Context(), id, body.Mode); err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (rh *RawContactHandler) SetStarred(c *gin.Context) {
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
	if err := rh.contactService.SetRawContactStarred(c.Request.Context(), id, body.Starred); err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (rh *RawContactHandler) AddDataRow(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var in services.DataRowInput
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	row, err := rh.contactService.AddDataRow(c.Request.Context(), id, in)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"row": row})
}

func (rh *RawContactHandler) UpdateDataRow(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var in services.DataRowInput
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	row, err := rh.contactService.UpdateDataRow(c.Request.Context(), id, in)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"row": row})
}

func (rh *RawContactHandler) DeleteDataRow(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := rh.contactService.DeleteDataRow(c.Request.Context(), id); err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
