package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	stockdomain "github.com/smallbiznis/bakehouse/internal/stock/domain"
	"github.com/smallbiznis/bakehouse/pkg/apperror"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

func (v ValidationErrors) ErrorKind() apperror.Kind {
	return apperror.KindValidation
}

type errorPayload struct {
	Type       string                  `json:"type"`
	Code       string                  `json:"code,omitempty"`
	Message    string                  `json:"message"`
	Errors     []ValidationError       `json:"errors,omitempty"`
	Shortfalls []stockdomain.Shortfall `json:"shortfalls,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound       = apperror.New(apperror.KindNotFound, "not_found")
	ErrInvalidRequest = apperror.New(apperror.KindValidation, "invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// mapError switches on the error kind only; messages are never parsed.
func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	var vErr *ValidationErrors
	if errors.As(err, &vErr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var insufficient *stockdomain.InsufficientStockError
	if errors.As(err, &insufficient) {
		return http.StatusUnprocessableEntity, errorPayload{
			Type:       "insufficient_stock",
			Code:       stockdomain.ErrInsufficientStock.Code,
			Message:    "insufficient stock",
			Shortfalls: insufficient.Shortfalls,
		}
	}

	code := apperror.CodeOf(err)
	switch apperror.KindOf(err) {
	case apperror.KindValidation:
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    code,
			Message: "validation error",
		}
	case apperror.KindNotFound:
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Code:    code,
			Message: "resource not found",
		}
	case apperror.KindConflict:
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    code,
			Message: "conflict",
		}
	case apperror.KindInsufficient:
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "insufficient_stock",
			Code:    code,
			Message: "insufficient stock",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	kind := apperror.KindOf(err)
	code := apperror.CodeOf(err)
	if code == "" {
		code = string(kind)
	}
	return string(kind), code
}
