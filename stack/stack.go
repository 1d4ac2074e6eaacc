// Package stack
//
// (C) Copyright Alex Gaetano Padula
//
// Licensed under the Mozilla Public License, v. 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.mozilla.org/en-US/MPL/2.0/
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package stack

import (
	"sync/atomic"
)

// node is an element of the stack
type node[T any] struct {
	value T
	next  *node[T]
}

// Stack is a lock-free LIFO stack. The pool uses it as its cleanup registry so
// registration never blocks and teardown pops entries newest first.
type Stack[T any] struct {
	head atomic.Pointer[node[T]]
	size int64 // Atomic counter
}

// New creates a new stack
func New[T any]() *Stack[T] {
	return &Stack[T]{}
}

// Push adds a value to the top of the stack
func (s *Stack[T]) Push(value T) {
	n := &node[T]{value: value}

	for {
		oldHead := s.head.Load()
		n.next = oldHead

		if s.head.CompareAndSwap(oldHead, n) {
			atomic.AddInt64(&s.size, 1)
			return
		}

		// Another goroutine moved the head, retry
	}
}

// Pop removes and returns the top value. ok is false when the stack is empty.
func (s *Stack[T]) Pop() (value T, ok bool) {
	for {
		oldHead := s.head.Load()
		if oldHead == nil {
			return value, false
		}

		if s.head.CompareAndSwap(oldHead, oldHead.next) {
			atomic.AddInt64(&s.size, -1)
			return oldHead.value, true
		}
	}
}

// IsEmpty checks if the stack is empty
func (s *Stack[T]) IsEmpty() bool {
	return s.head.Load() == nil
}

// Size returns the number of elements in the stack
func (s *Stack[T]) Size() int {
	return int(atomic.LoadInt64(&s.size))
}

// ForEach walks the stack from top to bottom until f returns false.
// Nodes pushed after the walk started are not visited.
func (s *Stack[T]) ForEach(f func(value T) bool) {
	for n := s.head.Load(); n != nil; n = n.next {
		if !f(n.value) {
			return
		}
	}
}

// Drain pops every element and returns them top first.
func (s *Stack[T]) Drain() []T {
	var out []T
	for {
		v, ok := s.Pop()
		if !ok {
			return out
		}
		out = append(out, v)
	}
}
