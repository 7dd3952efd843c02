package telegram

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/stepbot/internal/platform"
)

// telebot formats unknown API errors as "telegram: <description> (<code>)".
var codeSuffix = regexp.MustCompile(`^telegram: (.*) \((\d{3})\)$`)

// mapError converts a telebot error into a platform.APIError.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := platform.AsAPIError(err); ok {
		return err
	}

	var flood telebot.FloodError
	if errors.As(err, &flood) {
		return &platform.APIError{
			Status:      http.StatusTooManyRequests,
			Description: flood.Error(),
			RetryAfter:  time.Duration(flood.RetryAfter) * time.Second,
			Err:         err,
		}
	}

	if errors.Is(err, telebot.ErrUnauthorized) {
		return &platform.APIError{Status: http.StatusUnauthorized, Description: "unauthorized", Err: err}
	}

	var tbErr *telebot.Error
	if errors.As(err, &tbErr) && tbErr != nil {
		return &platform.APIError{Status: status(tbErr.Code, tbErr.Description), Description: tbErr.Description, Err: err}
	}

	if m := codeSuffix.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[2])
		return &platform.APIError{Status: status(code, m[1]), Description: m[1], Err: err}
	}

	// Transport failures carry no status and are retried.
	return &platform.APIError{Description: err.Error(), Err: err}
}

// status folds Telegram's "Bad Request: chat not found" family into 404.
func status(code int, description string) int {
	if code == http.StatusBadRequest && strings.Contains(strings.ToLower(description), "not found") {
		return http.StatusNotFound
	}
	return code
}

func isNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}
