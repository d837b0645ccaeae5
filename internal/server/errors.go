package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	analyticsdomain "github.com/smallbiznis/usagelens/internal/analytics/domain"
	auditdomain "github.com/smallbiznis/usagelens/internal/audit/domain"
	authdomain "github.com/smallbiznis/usagelens/internal/auth/domain"
	"github.com/smallbiznis/usagelens/internal/authorization"
	"github.com/smallbiznis/usagelens/internal/cursorapi"
	ingestdomain "github.com/smallbiznis/usagelens/internal/ingest/domain"
	managerdomain "github.com/smallbiznis/usagelens/internal/manager/domain"
	uploaddomain "github.com/smallbiznis/usagelens/internal/upload/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
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

// classifyErrorForLog feeds the request logger the same type the client sees.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var schemaErr *ingestdomain.SchemaError
	if errors.As(err, &schemaErr) {
		details := make([]ValidationError, 0, len(schemaErr.MissingColumns))
		for _, col := range schemaErr.MissingColumns {
			details = append(details, ValidationError{
				Field:   col,
				Code:    "missing_column",
				Message: fmt.Sprintf("required column %q is missing", col),
			})
		}
		return http.StatusBadRequest, errorPayload{
			Type:    "schema_error",
			Message: schemaErr.Error(),
			Errors:  details,
		}
	}

	var noValid *ingestdomain.NoValidRowsError
	if errors.As(err, &noValid) {
		details := make([]ValidationError, 0, len(noValid.Invalid))
		for _, row := range noValid.Invalid {
			details = append(details, ValidationError{
				Field:   "row",
				Code:    "invalid_row",
				Message: row.Reason,
				Line:    row.Line,
			})
		}
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "no valid rows in file",
			Errors:  details,
		}
	}

	var persistErr *ingestdomain.PersistenceError
	if errors.As(err, &persistErr) {
		return http.StatusInternalServerError, errorPayload{
			Type:    "persistence_error",
			Message: fmt.Sprintf("upload %s was not saved: %v", persistErr.UploadID, persistErr.Err),
		}
	}

	var lookupErr *ingestdomain.LookupError
	if errors.As(err, &lookupErr) {
		return http.StatusInternalServerError, errorPayload{
			Type:    "persistence_error",
			Message: fmt.Sprintf("existing records could not be read: %v", lookupErr.Err),
		}
	}

	var apiErr *cursorapi.APIError
	if errors.As(err, &apiErr) {
		return http.StatusBadGateway, errorPayload{
			Type:    "upstream_error",
			Message: apiErr.Error(),
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(err, code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authdomain.ErrInvalidSession),
		errors.Is(err, authdomain.ErrSessionExpired),
		errors.Is(err, authdomain.ErrSessionNotFound):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, authdomain.ErrTooManyAttempts):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many login attempts, try again later",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, ingestdomain.ErrIngestBusy):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case errors.Is(err, ingestdomain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, errorPayload{
			Type:    "file_too_large",
			Message: "file exceeds the upload size limit",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, authdomain.ErrAuthDisabled),
		errors.Is(err, cursorapi.ErrNotConfigured):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: unavailableMessage(err),
		}
	case errors.Is(err, cursorapi.ErrUnauthorized):
		return http.StatusBadGateway, errorPayload{
			Type:    "upstream_error",
			Message: "vendor api rejected the configured key",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ingestdomain.ErrEmptyFile),
		errors.Is(err, ingestdomain.ErrNoValidRows),
		errors.Is(err, ingestdomain.ErrInvalidSource),
		errors.Is(err, analyticsdomain.ErrInvalidDate),
		errors.Is(err, analyticsdomain.ErrInvalidRange),
		errors.Is(err, analyticsdomain.ErrInvalidLimit),
		errors.Is(err, managerdomain.ErrInvalidEmail),
		errors.Is(err, managerdomain.ErrInvalidManagerEmail),
		errors.Is(err, managerdomain.ErrEmptyRoster),
		errors.Is(err, uploaddomain.ErrInvalidStatus),
		errors.Is(err, uploaddomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidTimeRange),
		errors.Is(err, cursorapi.ErrInvalidRange):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, managerdomain.ErrNotFound),
		errors.Is(err, uploaddomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ingestdomain.ErrEmptyFile):
		return "empty_file"
	case errors.Is(err, cursorapi.ErrInvalidRange):
		return "invalid_range"
	case errors.Is(err, analyticsdomain.ErrInvalidDate):
		return "invalid_date"
	case errors.Is(err, analyticsdomain.ErrInvalidRange):
		return "invalid_range"
	default:
		return rootCode(err)
	}
}

func rootCode(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "empty_file":
		return "file"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(err error, code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "empty_file":
		return "the file has no data rows"
	default:
		return err.Error()
	}
}

func conflictMessage(err error) string {
	if errors.Is(err, ingestdomain.ErrIngestBusy) {
		return "another upload is being processed, retry shortly"
	}
	return "conflict"
}

func unavailableMessage(err error) string {
	switch {
	case errors.Is(err, authdomain.ErrAuthDisabled):
		return "admin login is not configured"
	case errors.Is(err, cursorapi.ErrNotConfigured):
		return "vendor api key is not configured"
	default:
		return "service unavailable"
	}
}
