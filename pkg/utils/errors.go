package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrNotFound           = errors.New("not found")                          // Referenced job or entity does not exist
	ErrDuplicateKey       = errors.New("duplicate natural key")              // Natural key already owned by another row
	ErrInvalidParams      = errors.New("invalid job parameters")             // Missing/invalid typed params for a job type
	ErrUnknownJobType     = errors.New("unknown job type")                   // No scraper registered for the job type
	ErrInvalidTransition  = errors.New("invalid job status transition")      // Job lifecycle only moves forward
	ErrRetryFailed        = errors.New("operation failed after all retries") // Wraps the last underlying error
	ErrNavigation         = errors.New("page navigation failed")             // Browser/HTTP page load failure
	ErrParsing            = errors.New("parsing error")                      // Wraps HTML, URL or JSON parsing errors
	ErrDatabase           = errors.New("database error")                     // Wraps badger/gorm errors
	ErrSemaphoreTimeout   = errors.New("timeout acquiring semaphore")
	ErrQueueFull          = errors.New("job queue is full")
	ErrJobPanic           = errors.New("scraper panicked")
	ErrMarkdownConversion = errors.New("failed to convert HTML to markdown")
	ErrConfigValidation   = errors.New("configuration validation error")
)

// CategorizeError maps an error to a predefined category string for logging/metrics.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	switch {
	case errors.Is(err, ErrRetryFailed):
		// Retry errors wrap both the sentinel and the last cause, so match on err itself
		if errors.Is(err, ErrNavigation) {
			return "RetryFailed_Navigation"
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "RetryFailed_Timeout"
		}
		errMsg := err.Error()
		if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "deadline exceeded") {
			return "RetryFailed_Timeout"
		}
		return "RetryFailed_Other"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrDuplicateKey):
		return "Database_DuplicateKey"
	case errors.Is(err, ErrInvalidParams):
		return "Job_InvalidParams"
	case errors.Is(err, ErrUnknownJobType):
		return "Job_UnknownType"
	case errors.Is(err, ErrInvalidTransition):
		return "Job_InvalidTransition"
	case errors.Is(err, ErrJobPanic):
		return "Job_Panic"
	case errors.Is(err, ErrNavigation):
		errMsg := err.Error()
		if strings.Contains(errMsg, " 404") {
			return "Navigation_404"
		}
		if strings.Contains(errMsg, " 403") {
			return "Navigation_403"
		}
		if strings.Contains(errMsg, " 429") {
			return "Navigation_429"
		}
		return "Navigation_Other"
	case errors.Is(err, ErrParsing):
		errMsg := err.Error()
		if strings.Contains(errMsg, "URL") {
			return "Content_ParsingURL"
		}
		if strings.Contains(errMsg, "HTML") {
			return "Content_ParsingHTML"
		}
		if strings.Contains(errMsg, "JSON") {
			return "Content_ParsingJSON"
		}
		return "Content_ParsingOther"
	case errors.Is(err, ErrMarkdownConversion):
		return "Content_Markdown"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrSemaphoreTimeout):
		return "Resource_SemaphoreTimeout"
	case errors.Is(err, ErrQueueFull):
		return "Resource_QueueFull"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	}

	// --- Fallback checks for common underlying error types/strings ---

	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		if strings.Contains(err.Error(), "semaphore") {
			return "Resource_SemaphoreTimeout"
		}
		return "System_ContextDeadlineExceeded"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}
	lowerErrMsg := strings.ToLower(err.Error())
	if strings.Contains(lowerErrMsg, "timeout") {
		return "Network_TimeoutGeneric"
	}
	if strings.Contains(lowerErrMsg, "connection refused") {
		return "Network_ConnectionRefused"
	}
	if strings.Contains(lowerErrMsg, "no such host") {
		return "Network_DNSLookup"
	}
	if strings.Contains(lowerErrMsg, "reset by peer") {
		return "Network_ConnectionReset"
	}

	return "Unknown"
}

// WrapErrorf prefixes err with a formatted message. A nil err stays nil.
func WrapErrorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
