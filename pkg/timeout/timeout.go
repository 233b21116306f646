package timeout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultTimeout is applied when Options.Timeout is zero or negative
const DefaultTimeout = 30 * time.Second

// Operation is a unit of work raced against a deadline
type Operation func(ctx context.Context) (interface{}, error)

// Options configures a single guarded run
type Options struct {
	Timeout   time.Duration
	Name      string          // used in errors and logs
	OnTimeout func()          // invoked when the deadline wins the race
	Cancel    <-chan struct{} // closing aborts the wait; nil means no external cancel
}

// Error reports an operation that was cut short by its deadline or an abort.
// The underlying goroutine is abandoned, not killed: its side effects may
// still happen after this error is returned.
type Error struct {
	Op        string
	Timeout   time.Duration
	Cancelled bool
}

func (e *Error) Error() string {
	op := e.Op
	if op == "" {
		op = "operation"
	}
	if e.Cancelled {
		return fmt.Sprintf("%s cancelled", op)
	}
	return fmt.Sprintf("%s timed out after %v", op, e.Timeout)
}

// IsTimeout reports whether err is a deadline expiry from this package
func IsTimeout(err error) bool {
	var te *Error
	return errors.As(err, &te) && !te.Cancelled
}

// IsCancelled reports whether err is an external abort from this package
func IsCancelled(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Cancelled
}

// Run races op against a timer. The first of operation result, deadline,
// cancel signal or context cancellation wins; a losing operation keeps
// running in its goroutine until it observes the cancelled context.
func Run(ctx context.Context, op Operation, opts Options) (interface{}, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if ctx == nil {
		ctx = context.Background()
	}

	// Refuse work that was aborted before it started
	select {
	case <-opts.Cancel:
		return nil, &Error{Op: opts.Name, Timeout: timeout, Cancelled: true}
	default:
	}
	if ctx.Err() != nil {
		return nil, &Error{Op: opts.Name, Timeout: timeout, Cancelled: true}
	}

	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	resultChan := make(chan interface{}, 1)
	errChan := make(chan error, 1)

	go func() {
		result, err := op(opCtx)
		if err != nil {
			errChan <- err
		} else {
			resultChan <- result
		}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-resultChan:
		return result, nil

	case err := <-errChan:
		return nil, err

	case <-timer.C:
		log.Warn().
			Str("op", opts.Name).
			Dur("timeout", timeout).
			Msg("Operation timed out")
		if opts.OnTimeout != nil {
			opts.OnTimeout()
		}
		return nil, &Error{Op: opts.Name, Timeout: timeout}

	case <-opts.Cancel:
		log.Debug().Str("op", opts.Name).Msg("Operation cancelled")
		return nil, &Error{Op: opts.Name, Timeout: timeout, Cancelled: true}

	case <-ctx.Done():
		return nil, &Error{Op: opts.Name, Timeout: timeout, Cancelled: true}
	}
}
