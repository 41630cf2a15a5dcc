package cli

import (
	"errors"

	"github.com/snaptrack/snaptrack/internal/client/gateway"
	"github.com/snaptrack/snaptrack/internal/client/queue"
	"github.com/snaptrack/snaptrack/internal/client/session"
)

// describeError turns an error into the line shown to the user.
func describeError(err error) string {
	var gerr *gateway.Error
	switch {
	case errors.Is(err, gateway.ErrUnauthorized), errors.Is(err, session.ErrNoSession):
		return "Your session has expired. Use 'login' to sign in again."
	case errors.Is(err, session.ErrWrongPIN):
		return "Wrong PIN."
	case errors.Is(err, queue.ErrNotFound):
		return "No such upload."
	case errors.Is(err, queue.ErrStorage):
		return "Local storage error: " + err.Error()
	case errors.As(err, &gerr):
		if gateway.IsRetryable(err) {
			return gerr.Message + " You can try again."
		}
		return gerr.Message
	default:
		return "Error: " + err.Error()
	}
}
