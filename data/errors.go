package data

import (
	"errors"
	"sync"
)

// Standard errors shared by the index components.
var (
	// Input errors
	ErrInvalidPath         = errors.New("fsindex: invalid path detected")
	ErrInvalidNotification = errors.New("fsindex: invalid notification")
	ErrNotDirectory        = errors.New("fsindex: not a directory")

	// Store errors
	ErrStoreClosed = errors.New("fsindex: store closed")
	ErrTxDone      = errors.New("fsindex: transaction already committed or rolled back")
)

type Errors struct {
	mu     sync.RWMutex
	errors []error
}

func (e *Errors) Add(err error) {
	if err == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.errors = append(e.errors, err)
}

func (e *Errors) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.errors = make([]error, 0)
}

func (e *Errors) Errors() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.errors) == 0 {
		return nil
	}

	return errors.Join(e.errors...)
}
