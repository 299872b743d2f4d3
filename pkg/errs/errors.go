// Package errs defines the error kinds the core dataplane surfaces and a
// top-level print helper that renders a kind, its cause chain, and (once
// EnableStack(true) has been called) a captured stack trace.
package errs

import (
	"errors"
	"fmt"
	"io"
	"runtime/debug"
)

// FailedAllocation is returned when the buffer pool is empty or a header
// push could not grow the buffer's tail far enough.
var FailedAllocation = errors.New("failed allocation")

// ReceiveFailed is returned when the NIC driver's RX call reports an error.
var ReceiveFailed = errors.New("receive failed")

// SendFailed is returned when the NIC driver's TX call reports an error.
var SendFailed = errors.New("send failed")

// ControlIoFailed is returned when the control-plane poller or an accept
// call reports an error.
var ControlIoFailed = errors.New("control io failed")

// BadOffset wraps a caller-supplied offset that falls outside the packet's
// payload range.
type BadOffset struct {
	Offset int
}

func (e *BadOffset) Error() string {
	return fmt.Sprintf("bad offset: %d", e.Offset)
}

// MetadataTooLarge is returned when write_metadata's payload exceeds the
// buffer's freeform metadata region.
type MetadataTooLarge struct {
	Want, Have int
}

func (e *MetadataTooLarge) Error() string {
	return fmt.Sprintf("metadata too large: want %d bytes, have %d", e.Want, e.Have)
}

// Print renders err's kind and its full Unwrap chain to w, one cause per
// line, innermost last. When stack capture is on (see EnableStack) a
// captured stack is appended.
func Print(w io.Writer, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(w, "error: %v\n", err)
	for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
		fmt.Fprintf(w, "  caused by: %v\n", cause)
	}
	printStack(w)
}

var stackEnabled = false

// EnableStack turns stack capture in Print on or off. It is a runtime
// switch, off by default; no build tag sets it.
func EnableStack(enabled bool) { stackEnabled = enabled }

func printStack(w io.Writer) {
	if !stackEnabled {
		return
	}
	fmt.Fprintf(w, "stack:\n%s", debug.Stack())
}
