package fsindex

import "errors"

var (
	ErrIndexClosed = errors.New("fsindex: index closed")
	ErrNoRoot      = errors.New("fsindex: no root directory given")
)
