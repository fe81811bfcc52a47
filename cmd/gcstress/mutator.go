// ABOUTME: A mutator thread that builds, mutates and checks linked lists of payloads
// ABOUTME: Keeps some lists reachable only from its native stack to force pinning

package main

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/prateek/nurserygc/gc"
)

const (
	slots      = 32
	listLength = 16
	// Roughly one payload in largeEvery goes to the large-object space.
	largeEvery = 97
)

type mutator struct {
	heap   *gc.Heap
	thread *gc.Thread
	rng    *rand.Rand
	name   string

	// lists are exact roots reported through a root source.
	lists [slots]gc.Ref
	seeds [slots]byte
}

func newMutator(h *gc.Heap, name string, seed int64) *mutator {
	return &mutator{
		heap:   h,
		thread: h.RegisterThread(name, 1024),
		rng:    rand.New(rand.NewSource(seed)),
		name:   name,
	}
}

func (m *mutator) run(ctx context.Context, steps int) error {
	remove := m.heap.AddRootSource(func(v gc.Visitor) {
		v.VisitRange(m.lists[:])
	})
	defer remove()

	m.thread.Acquire()
	defer func() {
		m.thread.Release()
		m.thread.Exit()
	}()

	for step := 0; step < steps; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		i := m.rng.Intn(slots)
		seed := byte(m.rng.Intn(256))
		list := m.build(seed, step)
		switch m.rng.Intn(4) {
		case 0:
			// Held only by the native stack for a while.
			m.thread.Stack().Push(uintptr(list))
		default:
			m.lists[i], m.seeds[i] = list, seed
		}
		if m.thread.Stack().Depth() > 64 {
			m.thread.Stack().Unwind(0)
		}
		if err := m.verify(); err != nil {
			return fmt.Errorf("%s step %d: %w", m.name, step, err)
		}
		if step%8 == 0 {
			m.thread.Yield()
		}
	}
	return m.verify()
}

// build allocates a list whose nodes are [next, payload]. Every payload
// byte of node j holds seed+j. The head and the node being filled live in
// two native stack slots while the list is built, so a collection
// triggered by the next allocation keeps them in place.
func (m *mutator) build(seed byte, step int) gc.Ref {
	st := m.thread.Stack()
	st.Push(0)
	st.Push(0)
	head, cur := st.Top(1), st.Top(0)
	for j := 0; j < listLength; j++ {
		node := m.thread.AllocKind(16, gc.KindRefs)
		if *head == 0 {
			*head = uintptr(node)
		} else {
			m.heap.WriteRef(gc.Ref(*cur), 0, node)
		}
		*cur = uintptr(node)

		size := uintptr(8 + m.rng.Intn(512))
		if (step*listLength+j)%largeEvery == 0 {
			size = uintptr(gc.MaxSmallSize + 1 + m.rng.Intn(16<<10))
		}
		payload := m.thread.AllocKind(size, gc.KindData)
		fill(payload.Bytes(size), seed+byte(j))
		m.heap.WriteRef(gc.Ref(*cur), 1, payload)
	}
	list := gc.Ref(*head)
	st.Pop()
	st.Pop()
	return list
}

func (m *mutator) verify() error {
	for i, list := range m.lists {
		if list.IsNil() {
			continue
		}
		node := list
		for j := 0; !node.IsNil(); j++ {
			payload := m.heap.ReadRef(node, 1)
			a, ok := m.heap.Lookup(uintptr(payload))
			if !ok || a.Forwarded {
				return fmt.Errorf("list %d node %d: payload %#x is not a live allocation", i, j, uintptr(payload))
			}
			want := m.seeds[i] + byte(j)
			for k, b := range payload.Bytes(a.Size) {
				if b != want {
					return fmt.Errorf("list %d node %d byte %d: got %#x, want %#x", i, j, k, b, want)
				}
			}
			node = m.heap.ReadRef(node, 0)
		}
	}
	return nil
}

func fill(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}
