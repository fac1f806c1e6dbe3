package session

import "errors"

var (
	// ErrInvalidCredentials is the only error an authentication failure ever
	// surfaces, whatever the cause
	ErrInvalidCredentials = errors.New("Invalid credentials!")

	// ErrInvalidInput is returned before any request when the username or password is blank
	ErrInvalidInput = errors.New("username and password are required")

	// ErrAttemptSuperseded accompanies a successful response whose result was
	// not committed because a newer attempt had started
	ErrAttemptSuperseded = errors.New("authentication attempt superseded by a newer attempt")
)
