package errors

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/Proton-105/stepbot/internal/platform"
)

// Outcome tells a caller how to react to a failed platform call.
type Outcome int

const (
	OK Outcome = iota
	// NotEligible means the target cannot be used by this bot and should be skipped.
	NotEligible
	// TransientFailure may succeed when retried later.
	TransientFailure
	// Fatal stops the current operation.
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case NotEligible:
		return "not_eligible"
	case TransientFailure:
		return "transient"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Classify maps an error to its Outcome.
func Classify(err error) Outcome {
	if err == nil {
		return OK
	}

	if errors.Is(err, context.Canceled) {
		return Fatal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TransientFailure
	}

	if apiErr, ok := platform.AsAPIError(err); ok {
		switch {
		case apiErr.Status == http.StatusUnauthorized:
			return Fatal
		case apiErr.Status == http.StatusForbidden, apiErr.Status == http.StatusNotFound:
			return NotEligible
		case apiErr.Status == http.StatusTooManyRequests, apiErr.Status >= http.StatusInternalServerError:
			return TransientFailure
		case apiErr.Status == http.StatusBadRequest && apiErr.Code == platform.CodeAttachmentNotReady:
			return TransientFailure
		case apiErr.Status == 0:
			return TransientFailure
		default:
			return Fatal
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return TransientFailure
	}

	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil && appErr.Retryable {
		return TransientFailure
	}

	return Fatal
}
