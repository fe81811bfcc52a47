// ABOUTME: Invariant checks and the fatal abort path for the collector
// ABOUTME: Assertions compile out unless the gcdebug build tag is set

// Package assert holds the collector's two failure modes: debug-only
// invariant checks and unconditional fatal aborts. Nothing inside the
// collector recovers from either.
package assert

import (
	"fmt"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("nurserygc.assert")

// FatalError is the panic value raised by Fatalf. A half-initialized or
// corrupted heap cannot continue, so callers are expected to let it crash
// the process; tests may recover it.
type FatalError struct {
	Msg string
}

func (e *FatalError) Error() string {
	return "nurserygc: fatal: " + e.Msg
}

// Fatalf logs at critical level and aborts.
func Fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Critical(msg)
	panic(&FatalError{Msg: msg})
}

// That aborts with msg when cond is false. It is a no-op in release builds.
func That(cond bool, format string, args ...any) {
	if Enabled && !cond {
		Fatalf("assertion failed: "+format, args...)
	}
}
