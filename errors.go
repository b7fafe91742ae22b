package diesel

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/andewx/diesel/hal"
	"github.com/pkg/errors"
)

// ErrorKind tells the frame loop what to do with an error.
type ErrorKind uint8

const (
	KindNone ErrorKind = iota
	// KindFatal errors end the render loop.
	KindFatal
	// KindOutOfDate means the swap chain must be rebuilt before the next
	// frame.
	KindOutOfDate
	// KindSuboptimal means the frame was presented but the swap chain
	// should be rebuilt.
	KindSuboptimal
	// KindTimeout means a bounded wait expired and the frame was skipped.
	KindTimeout
	// KindContract is a programming error: a call made out of order or with
	// invalid arguments.
	KindContract
	// KindUnsupported means the device or backend cannot do what was asked.
	KindUnsupported
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindFatal:
		return "fatal"
	case KindOutOfDate:
		return "out of date"
	case KindSuboptimal:
		return "suboptimal"
	case KindTimeout:
		return "timeout"
	case KindContract:
		return "contract violation"
	case KindUnsupported:
		return "unsupported"
	}
	return fmt.Sprintf("ErrorKind(%d)", uint8(k))
}

// Error is the error type returned by every fallible diesel call.
type Error struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("diesel: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("diesel: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// newError wraps err with op and kind, capturing a stack trace.
func newError(op string, kind ErrorKind, err error) error {
	return &Error{Op: op, Kind: kind, Err: errors.WithStack(err)}
}

// errorf builds an Error from a message.
func errorf(op string, kind ErrorKind, format string, args ...interface{}) error {
	return &Error{Op: op, Kind: kind, Err: errors.Errorf(format, args...)}
}

// contract reports a call made out of order or with invalid arguments.
// Builds tagged dieseldebug panic instead.
func contract(op, format string, args ...interface{}) error {
	err := errorf(op, KindContract, format, args...)
	if debugAsserts {
		panic(err)
	}
	return err
}

// backendError classifies an error returned by a hal backend.
func backendError(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return newError(op, classify(err), err)
}

func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, hal.ErrOutOfDate):
		return KindOutOfDate
	case errors.Is(err, hal.ErrSuboptimal):
		return KindSuboptimal
	case errors.Is(err, hal.ErrTimeout):
		return KindTimeout
	case errors.Is(err, hal.ErrValidation):
		return KindContract
	case errors.Is(err, hal.ErrUnsupported):
		return KindUnsupported
	}
	return KindFatal
}

// KindOf returns the kind of err. Errors that did not come from diesel are
// classified by the hal sentinel they wrap, and are fatal otherwise.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return classify(err)
}

// IsRecoverable reports whether the frame loop may carry on after err.
func IsRecoverable(err error) bool {
	switch KindOf(err) {
	case KindNone, KindOutOfDate, KindSuboptimal, KindTimeout:
		return true
	}
	return false
}

// Fatal logs err with its stack trace, runs the finalizers and exits the
// process. It does nothing when err is nil. Only applications call it;
// library code returns errors.
func Fatal(logger *slog.Logger, err error, finalizers ...func()) {
	if err == nil {
		return
	}
	for _, fn := range finalizers {
		fn()
	}
	if logger == nil {
		logger = Logger()
	}
	logger.Error("fatal error", "kind", KindOf(err).String(), "err", fmt.Sprintf("%+v", err))
	fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
	os.Exit(1)
}
