//go:build gcdebug

// ABOUTME: Debug builds compile invariant checks in

package assert

// Enabled reports whether invariant checks are compiled in.
const Enabled = true
