package service

import "errors"

var (
	// ErrInvalidInput is returned for malformed requests: an empty scan
	// payload, a missing holder field, an empty patch.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPreconditionRequired is returned by DeleteAll without confirmation.
	ErrPreconditionRequired = errors.New("confirmation required")

	// ErrInvalidCredentials is returned by Login for an unknown email, a
	// wrong password or an inactive account.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
