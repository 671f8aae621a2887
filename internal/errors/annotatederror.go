// Package errors is a drop-in for the standard library errors package that annotates wrapped errors with
// [slog.Attr] and the source location where the wrap happened.
package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
)

// annotatedError is an error enriched with a message, log attributes and the location it was created at.
type annotatedError struct {
	msg   string
	cause error
	attrs []slog.Attr
	frame runtime.Frame
}

func (e *annotatedError) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return e.msg + ": " + e.cause.Error()
}

func (e *annotatedError) Unwrap() error {
	return e.cause
}

// callerFrame returns the frame skip levels above the caller of callerFrame.
func callerFrame(skip int) runtime.Frame {
	pcs := make([]uintptr, 1)
	if runtime.Callers(skip+2, pcs) == 0 { //nolint:mnd // runtime.Callers and callerFrame itself.
		return runtime.Frame{}
	}
	frame, _ := runtime.CallersFrames(pcs).Next()
	return frame
}

// NewSentinel creates a plain error without a source location, suitable for package level sentinel values.
func NewSentinel(msg string) error {
	return stderrors.New(msg) //nolint:err113 // sentinel constructor.
}

// New creates an error annotated with attrs and the caller's source location.
func New(msg string, attrs ...slog.Attr) error {
	return &annotatedError{msg: msg, cause: nil, attrs: attrs, frame: callerFrame(1)}
}

// Wrap annotates err with msg and attrs. It returns nil when err is nil.
func Wrap(err error, msg string, attrs ...slog.Attr) error {
	if err == nil {
		return nil
	}
	return &annotatedError{msg: msg, cause: err, attrs: attrs, frame: callerFrame(1)}
}

// DecoratePanic converts a value returned by recover into an error pointing at the line that panicked.
func DecoratePanic(recovered any) error {
	if recovered == nil {
		return nil
	}
	return &annotatedError{
		msg:   fmt.Sprintf("panic: %v", recovered),
		cause: nil,
		attrs: nil,
		frame: panicFrame(),
	}
}

// panicFrame finds the frame that called panic by looking for the first frame after runtime.gopanic.
func panicFrame() runtime.Frame {
	const maxDepth = 32
	pcs := make([]uintptr, maxDepth)
	n := runtime.Callers(3, pcs) //nolint:mnd // runtime.Callers, panicFrame and DecoratePanic.
	frames := runtime.CallersFrames(pcs[:n])
	var (
		first     runtime.Frame
		sawPanic  bool
		haveFirst bool
	)
	for {
		frame, more := frames.Next()
		if !haveFirst {
			first, haveFirst = frame, true
		}
		if sawPanic && !strings.HasPrefix(frame.Function, "runtime.") {
			return frame
		}
		if frame.Function == "runtime.gopanic" {
			sawPanic = true
		}
		if !more {
			return first
		}
	}
}

// SlogError renders err as an "error" group containing the message, the innermost source location and every
// annotation found in the error tree.
func SlogError(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	var (
		annotations []any
		source      string
	)
	walk(err, func(ae *annotatedError) {
		for _, a := range ae.attrs {
			annotations = append(annotations, a)
		}
		if ae.frame.File != "" {
			source = fmt.Sprintf("%s:%d", ae.frame.File, ae.frame.Line)
		}
	})
	args := []any{slog.String("message", err.Error())}
	if source != "" {
		args = append(args, slog.String("source", source))
	}
	if len(annotations) > 0 {
		args = append(args, slog.Group("annotations", annotations...))
	}
	return slog.Group("error", args...)
}

// walk visits the annotated errors in the tree of err depth first, outermost first.
func walk(err error, visit func(*annotatedError)) {
	if err == nil {
		return
	}
	if ae, ok := err.(*annotatedError); ok { //nolint:errorlint // walking the tree manually.
		visit(ae)
	}
	switch x := err.(type) { //nolint:errorlint // walking the tree manually.
	case interface{ Unwrap() []error }:
		for _, e := range x.Unwrap() {
			walk(e, visit)
		}
	case interface{ Unwrap() error }:
		walk(x.Unwrap(), visit)
	}
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err.
func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

// Join returns an error that wraps the given errors.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}
