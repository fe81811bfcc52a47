// ABOUTME: Recorded native stack segments and spilled register blocks
// ABOUTME: These are the words the root finder scans conservatively

package threading

import "github.com/prateek/nurserygc/internal/assert"

// NumRegisters is the size of the register checkpoint block: enough for
// every general-purpose register of the widest supported target.
const NumRegisters = 16

// Registers is a register checkpoint taken at a safe point. Any of the
// words may hold a heap address that exists nowhere else.
type Registers [NumRegisters]uintptr

// Stack is the native stack of a mutator thread as the code generator lays
// it out. It grows down: the live part is the top-most Depth() words, from
// the stack pointer up to the recorded bound. Words are untyped and may mix
// pointers and integers freely.
type Stack struct {
	words []uintptr
	sp    int
}

// NewStack returns an empty stack with room for size words.
func NewStack(size int) *Stack {
	return &Stack{words: make([]uintptr, size), sp: size}
}

// Push stores w below the current stack pointer.
func (s *Stack) Push(w uintptr) {
	if s.sp == 0 {
		assert.Fatalf("native stack overflow (%d words)", len(s.words))
	}
	s.sp--
	s.words[s.sp] = w
}

// Pop removes and returns the top-most word.
func (s *Stack) Pop() uintptr {
	assert.That(s.sp < len(s.words), "pop from empty stack")
	w := s.words[s.sp]
	s.words[s.sp] = 0
	s.sp++
	return w
}

// Top returns a pointer to the word i slots below the top (0 is the top).
func (s *Stack) Top(i int) *uintptr {
	assert.That(s.sp+i < len(s.words), "stack slot %d out of range", i)
	return &s.words[s.sp+i]
}

// Unwind pops words until Depth() == depth.
func (s *Stack) Unwind(depth int) {
	for s.Depth() > depth {
		s.Pop()
	}
}

// Depth returns the number of live words.
func (s *Stack) Depth() int {
	return len(s.words) - s.sp
}

// Live returns the words between the stack pointer and the stack bound.
func (s *Stack) Live() []uintptr {
	return s.words[s.sp:]
}
