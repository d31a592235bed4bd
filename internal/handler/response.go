package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"ridecore/internal/domain"
	"ridecore/internal/middleware"
	"ridecore/internal/query"
	"ridecore/internal/repository"
	"ridecore/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string       `json:"error"`
	Details []FieldError `json:"details,omitempty"`
}

// FieldError describes one failed validation rule of a request body.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// ListResponse is the envelope of every listing endpoint.
type ListResponse struct {
	Data []map[string]any `json:"data"`
	Meta query.Meta       `json:"meta"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	if code == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(code, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondBindError reports a request body that failed to decode or validate.
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	details := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, FieldError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()})
	}
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "request validation failed", Details: details})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// respondPage renders a listing page through its schema projection.
func respondPage[T any](c *gin.Context, schema *query.Schema[T], page *service.Page[T]) {
	respondJSON(c, http.StatusOK, ListResponse{
		Data: query.Project(schema, page.Fields, page.Items),
		Meta: page.Meta,
	})
}

// callerFrom returns the authenticated caller or writes a 401.
func callerFrom(c *gin.Context) (domain.Caller, bool) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing bearer token"})
	}
	return caller, ok
}

func listParams(c *gin.Context) query.Params {
	return query.FromValues(c.Request.URL.Query())
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden

	// State machine and exclusivity rules
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict

	case errors.Is(err, service.ErrValidationFailed):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}
