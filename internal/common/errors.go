package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// ErrorProgressOverflow is returned when a transfer's current packet
	// would move past its total packet count.
	ErrorProgressOverflow = errors.New("progress overflow")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Validation errors.
	ErrorInvalidPacketSize = errors.New("invalid packet size")
	ErrorInvalidFileName   = errors.New("invalid file name")
)
