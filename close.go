package modreg

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ContextCloser is preferred over io.Closer when a module implements both.
type ContextCloser interface {
	Close(ctx context.Context) error
}

// Close shuts the registry down: valid modules are closed in reverse
// validation order, so a module is closed before its hard dependencies.
// Later registrations fail with ErrClosed; lookups keep working.
func (r *Registry) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if r.holdsLock(ctx) {
		return fmt.Errorf("close registry: called during a registration")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	order := *r.order.Load()
	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		w := order[i]
		name := typeName(w.runtimeType())
		var err error
		switch m := w.module().(type) {
		case ContextCloser:
			err = m.Close(ctx)
		case io.Closer:
			err = m.Close()
		default:
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("close module %s: %w", name, err))
			r.logger.Warn().Err(err).Str("module", name).Msg("Module close failed")
			continue
		}
		r.logger.Debug().Str("module", name).Msg("Module closed")
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
