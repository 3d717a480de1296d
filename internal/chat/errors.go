package chat

import (
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// ServiceError represents a specific type of curation service failure.
type ServiceError struct {
	Type    ServiceErrorType
	Message string
	Err     error

	// Raw holds the unparsed response body for malformed-response errors,
	// preserved for diagnostics. Logged server-side, never shown to users.
	Raw string
}

// ServiceErrorType categorizes service failures.
type ServiceErrorType int

const (
	// ErrTypeUnavailable indicates a transport or auth failure reaching the service.
	ErrTypeUnavailable ServiceErrorType = iota
	// ErrTypeThrottled indicates a rate-limit or quota signal from the service.
	ErrTypeThrottled
	// ErrTypeMalformed indicates the service replied but the body did not
	// contain a parseable curation result.
	ErrTypeMalformed
	// ErrTypeNoModel indicates the credential works but no usable model was found.
	ErrTypeNoModel
)

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error { return e.Err }

// IsThrottled reports whether err is a rate-limit failure, so callers can
// present a distinct retry-later message.
func IsThrottled(err error) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.Type == ErrTypeThrottled
}

// classifyServiceError analyzes a GenerateContent error and returns a
// ServiceError with the appropriate type.
func classifyServiceError(err error) *ServiceError {
	if err == nil {
		return nil
	}

	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return classifyAPIError(apiErr)
	}

	errLower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errLower, "quota") ||
		strings.Contains(errLower, "resource exhausted") ||
		strings.Contains(errLower, "rate limit"):
		log.Error().Err(err).Msg("Curation service rate limited")
		return &ServiceError{
			Type:    ErrTypeThrottled,
			Message: "rate limited by the curation service",
			Err:     err,
		}

	default:
		log.Error().Err(err).Msg("Curation service call failed")
		return &ServiceError{
			Type:    ErrTypeUnavailable,
			Message: "curation service unavailable",
			Err:     err,
		}
	}
}

// classifyAPIError categorizes a Google API error by status code.
func classifyAPIError(err *genai.APIError) *ServiceError {
	switch err.Code {
	case 429:
		log.Error().Int("code", err.Code).Msg("Rate limit exceeded")
		return &ServiceError{
			Type:    ErrTypeThrottled,
			Message: "API rate limit exceeded - try again later",
			Err:     err,
		}

	case 400, 401, 403:
		log.Error().Int("code", err.Code).Msg("Authentication failed - invalid API key")
		return &ServiceError{
			Type:    ErrTypeUnavailable,
			Message: "API key is invalid, expired, or lacks permissions",
			Err:     err,
		}

	case 500, 502, 503, 504:
		log.Error().Int("code", err.Code).Msg("Server error from curation service")
		return &ServiceError{
			Type:    ErrTypeUnavailable,
			Message: "curation service server error - try again later",
			Err:     err,
		}

	default:
		log.Error().Int("code", err.Code).Str("message", err.Message).Msg("Google API error")
		return &ServiceError{
			Type:    ErrTypeUnavailable,
			Message: err.Message,
			Err:     err,
		}
	}
}
