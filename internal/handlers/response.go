package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openfolk/contacts-backend/internal/domain/contacts"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondDomainError maps engine error codes onto HTTP statuses.
func RespondDomainError(c *gin.Context, err error) {
	code := contacts.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case contacts.CodeValidation:
		status = http.StatusBadRequest
	case contacts.CodeNotFound:
		status = http.StatusNotFound
	case contacts.CodeConflict:
		status = http.StatusConflict
	case contacts.CodeInvariantViolation, contacts.CodeInternal:
		status = http.StatusInternalServerError
	}
	RespondError(c, status, string(code), err)
}
