package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openfolk/contacts-backend/internal/services"
)

type GroupHandler struct {
	contactService services.ContactService
}

func NewGroupHandler(contactService services.ContactService) *GroupHandler {
	return &GroupHandler{contactService: contactService}
}

func (gh *GroupHandler) CreateAccount(c *gin.Context) {
	var body struct {
		Name             string `json:"name"`
		Type             string `json:"type"`
		DataSet          string `json:"data_set"`
		UngroupedVisible bool   `json:"ungrouped_visible"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	account, err := gh.contactService.CreateAccount(c.Request.Context(), body.Name, body.Type, body.DataSet, body.UngroupedVisible)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"account": account})
}

func (gh *GroupHandler) SetUngroupedVisible(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body struct {
		Visible bool `json:"visible"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	if err := gh.contactService.SetAccountUngroupedVisible(c.Request.Context(), id, body.Visible); err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (gh *GroupHandler) CreateGroup(c *gin.Context) {
	var in services.GroupInput
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	group, err := gh.contactService.CreateGroup(c.Request.Context(), in)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"group": group})
}

func (gh *GroupHandler) SetVisible(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body struct {
		Visible bool `json:"visible"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	if err := gh.contactService.SetGroupVisible(c.Request.Context(), id, body.Visible); err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (gh *GroupHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := gh.contactService.DeleteGroup(c.Request.Context(), id); err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
