package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	agentdomain "github.com/mi42hq/mi42/internal/agent/domain"
	authdomain "github.com/mi42hq/mi42/internal/auth/domain"
	briefingdomain "github.com/mi42hq/mi42/internal/briefing/domain"
	creditdomain "github.com/mi42hq/mi42/internal/credit/domain"
	creditpackagedomain "github.com/mi42hq/mi42/internal/creditpackage/domain"
	emailverifydomain "github.com/mi42hq/mi42/internal/emailverify/domain"
	freemiumdomain "github.com/mi42hq/mi42/internal/freemium/domain"
	registrationdomain "github.com/mi42hq/mi42/internal/registration/domain"
	userdomain "github.com/mi42hq/mi42/internal/user/domain"
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
	Details any               `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

// domainExhaustedDetails is the 403 payload when a company domain has no
// freemium slot left: who holds the slots and when the window reopens.
type domainExhaustedDetails struct {
	Domain    string                        `json:"domain"`
	Users     []freemiumdomain.FreemiumUser `json:"users"`
	ResetDate time.Time                     `json:"resetDate"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
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

	var exhausted *registrationdomain.ExhaustedError
	if errors.As(err, &exhausted) {
		return http.StatusForbidden, errorPayload{
			Type:    "domain_exhausted",
			Message: "freemium slots for this domain are in use",
			Details: domainExhaustedDetails{
				Domain:    exhausted.Domain,
				Users:     exhausted.Users,
				ResetDate: exhausted.ResetDate,
			},
		}
	}

	if code, ok := validationCode(err); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	switch {
	case errors.Is(err, creditdomain.ErrInsufficientCredits):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "insufficient_credits",
			Message: "not enough credits for this operation",
		}
	case errors.Is(err, agentdomain.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many agent executions, retry later",
		}
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authdomain.ErrInvalidSession),
		errors.Is(err, authdomain.ErrSessionExpired),
		errors.Is(err, authdomain.ErrSessionRevoked):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authdomain.ErrAccountInactive):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, registrationdomain.ErrEmailTaken),
		errors.Is(err, userdomain.ErrEmailTaken):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case errors.Is(err, emailverifydomain.ErrTokenExpired):
		return http.StatusGone, errorPayload{
			Type:    "token_expired",
			Message: "verification link expired, request a new one",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrInternal):
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
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

func validationCode(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request", true
	case errors.Is(err, registrationdomain.ErrInvalidEmail):
		return "invalid_email", true
	case errors.Is(err, registrationdomain.ErrInvalidDomain):
		return "invalid_email_domain", true
	case errors.Is(err, registrationdomain.ErrWeakPassword):
		return "weak_password", true
	case errors.Is(err, registrationdomain.ErrMissingConsent):
		return "terms_not_accepted", true
	case errors.Is(err, registrationdomain.ErrMissingRequired):
		return "missing_required_field", true
	case errors.Is(err, freemiumdomain.ErrUnknownDomain):
		return "invalid_email_domain", true
	case errors.Is(err, emailverifydomain.ErrTokenInvalid),
		errors.Is(err, emailverifydomain.ErrTokenUsed):
		return "invalid_token", true
	case errors.Is(err, agentdomain.ErrUnknownAgent):
		return "unknown_agent", true
	case errors.Is(err, agentdomain.ErrEmptyPrompt):
		return "empty_prompt", true
	case errors.Is(err, briefingdomain.ErrUnknownType):
		return "unknown_briefing_type", true
	case errors.Is(err, creditdomain.ErrInvalidAmount):
		return "invalid_amount", true
	default:
		return "", false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, userdomain.ErrNotFound),
		errors.Is(err, creditdomain.ErrAccountNotFound),
		errors.Is(err, briefingdomain.ErrNotFound),
		errors.Is(err, agentdomain.ErrTaskNotFound),
		errors.Is(err, creditpackagedomain.ErrPackageNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "invalid_email", "invalid_email_domain":
		return "email"
	case "weak_password":
		return "password"
	case "terms_not_accepted":
		return "acceptedTerms"
	case "invalid_token":
		return "token"
	case "unknown_agent":
		return "agentType"
	case "empty_prompt":
		return "prompt"
	case "unknown_briefing_type":
		return "type"
	case "invalid_amount":
		return "amount"
	default:
		return ""
	}
}
