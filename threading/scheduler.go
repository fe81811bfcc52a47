// ABOUTME: Thread registration and the single execution token
// ABOUTME: Only the token holder runs mutator code; everyone else is parked

// Package threading tracks the mutator threads that may hold heap
// references and hands a single execution token between them. A thread
// that does not hold the token is parked at a safe point: its stack and
// registers are frozen and can be scanned by the collector.
package threading

import (
	"slices"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/prateek/nurserygc/internal/assert"
)

var log = commonlog.GetLogger("nurserygc.threading")

// Thread is a registered mutator thread.
type Thread struct {
	id    uint64
	name  string
	sched *Scheduler
	stack *Stack
	regs  Registers
}

// ID returns the thread's registration number.
func (t *Thread) ID() uint64 { return t.id }

// Name returns the name the thread was registered under.
func (t *Thread) Name() string { return t.name }

// Stack returns the thread's recorded native stack.
func (t *Thread) Stack() *Stack { return t.stack }

// Registers returns the last register checkpoint.
func (t *Thread) Registers() *Registers { return &t.regs }

// SaveRegisters records a register checkpoint. Compiled code calls this
// before reaching a safe point so that values living only in registers are
// visible to the root finder.
func (t *Thread) SaveRegisters(r Registers) {
	t.regs = r
}

// Acquire blocks until the thread holds the execution token.
func (t *Thread) Acquire() {
	t.sched.acquire(t)
}

// Release hands the execution token back and parks the thread.
func (t *Thread) Release() {
	t.sched.release(t)
}

// Yield is a safe point: if another thread is waiting for the token it gets
// a chance to run before this one continues.
func (t *Thread) Yield() {
	t.sched.yield(t)
}

// HoldsToken reports whether t currently holds the execution token.
func (t *Thread) HoldsToken() bool {
	return t.sched.Holder() == t
}

// Exit deregisters the thread, releasing the token if it holds it.
func (t *Thread) Exit() {
	t.sched.unregister(t)
}

// Scheduler owns the execution token and the registry of live threads.
type Scheduler struct {
	mu      sync.Mutex
	cond    *sync.Cond
	holder  *Thread
	waiting int
	threads map[uint64]*Thread
	nextID  uint64
}

// NewScheduler returns a scheduler with no threads and a free token.
func NewScheduler() *Scheduler {
	s := &Scheduler{threads: make(map[uint64]*Thread)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Register records a new thread with a stack of stackWords words. The
// thread starts parked, without the token.
func (s *Scheduler) Register(name string, stackWords int) *Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t := &Thread{
		id:    s.nextID,
		name:  name,
		sched: s,
		stack: NewStack(stackWords),
	}
	s.threads[t.id] = t
	log.Debugf("registered thread %d (%s)", t.id, name)
	return t
}

func (s *Scheduler) unregister(t *Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[t.id]; !ok {
		return
	}
	delete(s.threads, t.id)
	if s.holder == t {
		s.holder = nil
		s.cond.Broadcast()
	}
	log.Debugf("thread %d (%s) exited", t.id, t.name)
}

// Threads returns every registered thread, ordered by registration.
func (s *Scheduler) Threads() []*Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]*Thread, 0, len(s.threads))
	for _, t := range s.threads {
		res = append(res, t)
	}
	slices.SortFunc(res, func(a, b *Thread) int {
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		}
		return 0
	})
	return res
}

// Holder returns the thread holding the token, or nil.
func (s *Scheduler) Holder() *Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holder
}

func (s *Scheduler) acquire(t *Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holder == t {
		assert.Fatalf("thread %d acquired the execution token twice", t.id)
	}
	s.waiting++
	for s.holder != nil {
		s.cond.Wait()
	}
	s.waiting--
	s.holder = t
}

func (s *Scheduler) release(t *Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holder != t {
		assert.Fatalf("thread %d released a token it does not hold", t.id)
	}
	s.holder = nil
	s.cond.Broadcast()
}

func (s *Scheduler) yield(t *Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holder != t {
		assert.Fatalf("thread %d reached a safe point without the token", t.id)
	}
	if s.waiting == 0 {
		return
	}
	s.holder = nil
	s.cond.Broadcast()

	// Let one of the waiters take the token before competing for it again.
	for s.holder == nil && s.waiting > 0 {
		s.cond.Wait()
	}
	s.waiting++
	for s.holder != nil {
		s.cond.Wait()
	}
	s.waiting--
	s.holder = t
}
