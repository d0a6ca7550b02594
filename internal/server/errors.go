package server

import (
	"errors"
	"net/http"

	directorydomain "github.com/edgebank/assist/internal/directory/domain"
	feecalcdomain "github.com/edgebank/assist/internal/feecalc/domain"
	feeruledomain "github.com/edgebank/assist/internal/feerule/domain"
	"github.com/edgebank/assist/internal/llm"
	"github.com/edgebank/assist/internal/orchestrator"
	retrievaldomain "github.com/edgebank/assist/internal/retrieval/domain"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
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

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
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

	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{Field: "request", Code: validationErrorCode(err), Message: "invalid value"},
			},
		}
	case errors.Is(err, feecalcdomain.ErrTokenExpired):
		return http.StatusGone, errorPayload{
			Type:    "token_expired",
			Message: "the disambiguation token has expired or was already used",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, feeruledomain.ErrDuplicateRule),
		errors.Is(err, feeruledomain.ErrOverlappingRange):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, directorydomain.ErrDirectoryUnavailable),
		errors.Is(err, retrievaldomain.ErrUpstream),
		errors.Is(err, llm.ErrUpstream):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	case errors.Is(err, llm.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "temporarily unavailable",
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
		errors.Is(err, orchestrator.ErrEmptyQuery),
		errors.Is(err, feecalcdomain.ErrInvalidRequest),
		errors.Is(err, feecalcdomain.ErrAmountRequired),
		errors.Is(err, feecalcdomain.ErrUnknownChoice),
		errors.Is(err, feeruledomain.ErrInvalidProductLine),
		errors.Is(err, feeruledomain.ErrInvalidRule):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, orchestrator.ErrEmptyQuery):
		return "empty_query"
	case errors.Is(err, feecalcdomain.ErrAmountRequired):
		return "amount_required"
	case errors.Is(err, feecalcdomain.ErrUnknownChoice):
		return "unknown_choice"
	case errors.Is(err, feeruledomain.ErrInvalidProductLine):
		return "invalid_product_line"
	default:
		return "invalid_request"
	}
}
