package auth

import "errors"

var (
	ErrUnauthenticated = errors.New("auth: unauthenticated")
	ErrForbidden       = errors.New("auth: forbidden")
	ErrNotFound        = errors.New("auth: not found")
	ErrConflict        = errors.New("auth: conflict")
	ErrInvalidInput    = errors.New("auth: invalid input")
)

// LoginFailedMessage is the single caller-visible text for every credential
// failure. Unknown email, wrong password and deactivated account must be
// indistinguishable to the client.
const LoginFailedMessage = "invalid email or password"
