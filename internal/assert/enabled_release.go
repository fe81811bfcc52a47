//go:build !gcdebug

// ABOUTME: Release builds compile invariant checks out

package assert

// Enabled reports whether invariant checks are compiled in.
const Enabled = false
