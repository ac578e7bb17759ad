package pasetotoken

import "fmt"

// ErrConfig reports unusable key material or manager settings.
type ErrConfig struct {
	Msg string
	Err error
}

func (e ErrConfig) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("paseto config: %s: %v", e.Msg, e.Err)
	}
	return "paseto config: " + e.Msg
}
func (e ErrConfig) Unwrap() error { return e.Err }

// ErrInvalidToken wraps every parse or claim failure so handlers can map it
// to 401 without inspecting the cause.
type ErrInvalidToken struct{ Err error }

func (e ErrInvalidToken) Error() string { return fmt.Sprintf("invalid token: %v", e.Err) }
func (e ErrInvalidToken) Unwrap() error { return e.Err }
