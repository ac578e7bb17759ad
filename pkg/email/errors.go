package email

import (
	"errors"
	"fmt"
)

type ErrDisabled struct{}

func (e ErrDisabled) Error() string { return "email is disabled" }

type ErrInvalidMessage struct{ Reason string }

func (e ErrInvalidMessage) Error() string { return "invalid email message: " + e.Reason }

type ErrSend struct {
	Provider string
	Err      error
}

func (e ErrSend) Error() string { return fmt.Sprintf("email send failed (%s): %v", e.Provider, e.Err) }
func (e ErrSend) Unwrap() error { return e.Err }

// IsPermanent reports errors that a resend cannot fix: a disabled mailer or
// a message that does not validate.
func IsPermanent(err error) bool {
	var disabled ErrDisabled
	var invalid ErrInvalidMessage
	return errors.As(err, &disabled) || errors.As(err, &invalid)
}
