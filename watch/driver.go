package watch

import (
	"context"
	"fmt"
	"os"

	"github.com/mwantia/fsindex/data"
	"github.com/mwantia/fsindex/log"
	"github.com/mwantia/fsindex/synchronizer"
)

// Handler applies a single notification. It is implemented by
// *synchronizer.Synchronizer.
type Handler interface {
	Handle(ctx context.Context, n data.Notification) (*synchronizer.Delta, error)
}

type Driver struct {
	service Service
	handler Handler
	log     *log.Logger
}

func NewDriver(service Service, handler Handler, opts ...DriverOption) *Driver {
	d := &Driver{
		service: service,
		handler: handler,
		log:     log.Discard(),
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Run watches root until ctx is cancelled and returns nil in that case.
// Notifications are handled strictly in arrival order. A handler call in
// progress when ctx is cancelled is allowed to finish. A handler error
// stops the watch and is returned.
func (d *Driver) Run(ctx context.Context, root string) error {
	root, err := data.ToAbsolutePath(root)
	if err != nil {
		return err
	}

	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("failed to stat root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", data.ErrNotDirectory, root)
	}

	sub, err := d.service.Subscribe(root)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}
	defer func() {
		if err := sub.Close(); err != nil {
			d.log.Warn("Failed to close watch on %s: %v", root, err)
		}
	}()

	d.log.Info("Watching %s", root)

	handlerCtx := context.WithoutCancel(ctx)
	errs := sub.Errors()

	for {
		select {
		case <-ctx.Done():
			d.log.Info("Stopping watch on %s", root)
			return nil

		case n, ok := <-sub.Notifications():
			if !ok {
				return ErrSubscriptionClosed
			}

			if _, err := d.handler.Handle(handlerCtx, n); err != nil {
				return fmt.Errorf("failed to handle %s: %w", n, err)
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			d.log.Error("Watch error: %v", err)
		}
	}
}
