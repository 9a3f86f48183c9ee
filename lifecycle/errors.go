package lifecycle

import (
	"errors"
	"fmt"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
)

var (
	// ErrInvalidTransition is returned when a transition is requested from
	// a state outside its allowed source states. The state is not changed.
	ErrInvalidTransition = fmt.Errorf("%w: invalid lifecycle transition", multitenant.ErrEntity)

	// ErrAborted may be wrapped by a handler error to abandon a transition
	// without entering the error state: the entity returns to the state it
	// was in before the transition started.
	ErrAborted = errors.New("transition aborted")

	// ErrStateChanged is reported when the entity left the intermediate
	// state while the transition handler ran.
	ErrStateChanged = fmt.Errorf("%w: entity state changed during transition", multitenant.ErrEntity)

	// ErrHandlerPanic wraps a panic raised by a transition handler.
	ErrHandlerPanic = errors.New("transition handler panicked")
)

// Abort wraps err so that the transition it is returned from is abandoned.
func Abort(err error) error {
	if err == nil {
		return ErrAborted
	}
	return fmt.Errorf("%w: %w", ErrAborted, err)
}
