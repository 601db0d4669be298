package dashboard

import "errors"

// Validation failures. Commands that return one of these made no request.
var (
	ErrNoIdentity    = errors.New("no user identity")
	ErrNotConnected  = errors.New("whatsapp not connected")
	ErrMissingField  = errors.New("required field missing")
	ErrMediaTooLarge = errors.New("media too large")
	ErrBusy          = errors.New("command already running")
	ErrNotFound      = errors.New("not found")
	ErrDisabled      = errors.New("feature disabled")
	ErrClosed        = errors.New("controller closed")
)

// IsValidation reports whether err was raised before any I/O.
func IsValidation(err error) bool {
	for _, target := range []error{ErrNoIdentity, ErrNotConnected, ErrMissingField, ErrMediaTooLarge, ErrBusy, ErrNotFound, ErrDisabled} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
