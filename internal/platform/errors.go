package platform

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// CodeAttachmentNotReady is returned with status 400 while an uploaded attachment is still processed.
const CodeAttachmentNotReady = "attachment.not.ready"

// APIError is a failed platform call with its HTTP status and platform error code.
type APIError struct {
	Status      int
	Code        string
	Description string
	RetryAfter  time.Duration
	Err         error
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("platform api: %d %s: %s", e.Status, e.Code, e.Description)
	}
	return fmt.Sprintf("platform api: %d: %s", e.Status, e.Description)
}

func (e *APIError) Unwrap() error { return e.Err }

// AsAPIError unwraps err into an APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func IsTooManyRequests(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Status == http.StatusTooManyRequests
}

func IsAttachmentNotReady(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Status == http.StatusBadRequest && apiErr.Code == CodeAttachmentNotReady
}

func IsUnauthorized(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Status == http.StatusUnauthorized
}

// IsAccessDenied covers responses meaning the bot cannot see the chat or member.
func IsAccessDenied(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && (apiErr.Status == http.StatusForbidden || apiErr.Status == http.StatusNotFound)
}
