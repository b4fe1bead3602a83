package message

import "errors"

var (
	// ErrInvalidInput is returned for bad build parameters (e.g. empty recipient list)
	ErrInvalidInput = errors.New("invalid input")
	// ErrParse is returned when raw bytes contain no readable MIME header block
	ErrParse = errors.New("malformed MIME message")
)
