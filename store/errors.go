package store

import "errors"

var (
	ErrMalformedAddress       = errors.New("malformed store address defined")
	ErrUnknownProtocolAddress = errors.New("unknown store protocol address")
	ErrInvalidTable           = errors.New("invalid table identifier")
)
