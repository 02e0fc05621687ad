// Package watch turns filesystem activity below a root directory into
// index notifications and feeds them to a handler one at a time.
package watch

import (
	"errors"

	"github.com/mwantia/fsindex/data"
)

var ErrSubscriptionClosed = errors.New("watch: subscription closed")

// Service produces notifications for every change below a root.
type Service interface {
	Subscribe(root string) (Subscription, error)
}

// Subscription is a running recursive watch.
// Both channels are closed once the subscription stops.
type Subscription interface {
	Notifications() <-chan data.Notification
	Errors() <-chan error
	// Close stops the watch and waits for its worker to exit.
	Close() error
}
