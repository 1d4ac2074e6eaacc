// Package pool
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

// Package pool implements an allocation context. A Pool owns the objects
// allocated from it and an ordered registry of cleanup callbacks that run
// exactly once when the pool is cleared or destroyed. Sub-pools are torn
// down before their parent's own cleanups run.
package pool

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/wildcatdb/portio/queue"
	"github.com/wildcatdb/portio/stack"
)

// Defaults
const (
	DefaultMaxBytes  = 0  // No allocation budget
	compactThreshold = 32 // Tombstoned cleanups tolerated before the registry is compacted
)

var (
	// ErrDestroyed is returned by any operation on a destroyed pool.
	ErrDestroyed = errors.New("pool has been destroyed")

	// ErrExhausted is returned when an allocation would exceed Options.MaxBytes.
	ErrExhausted = errors.New("pool allocation budget exhausted")
)

// Options represents the configuration options for a Pool
type Options struct {
	MaxBytes   int64       // Allocation budget in bytes, 0 means unlimited
	LogChannel chan string // Channel for logging, nil disables logging
}

// Pool is an allocation context with deterministic cleanup
type Pool struct {
	opts      *Options
	id        int64
	parent    *Pool
	children  *queue.Queue[*Pool]    // Sub-pools in creation order
	cleanups  *stack.Stack[*cleanup] // Registered cleanups, newest on top
	live      int64                  // Registered cleanups that have not fired or been killed
	dead      int64                  // Killed entries still sitting in the stack
	sweepMu   sync.RWMutex           // Lookups read, draining and compaction write
	allocMu   sync.Mutex             // Guards objects
	objects   []any                  // Everything allocated from the pool
	allocated int64                  // Bytes accounted to the pool
	destroyed atomic.Bool
}

// New creates a root pool
func New(opts *Options) *Pool {
	if opts == nil {
		opts = &Options{}
	}

	if opts.MaxBytes < 0 {
		opts.MaxBytes = DefaultMaxBytes
	}

	p := &Pool{
		opts:     opts,
		id:       ids.nextID(),
		children: queue.New[*Pool](),
		cleanups: stack.New[*cleanup](),
	}

	p.Log("created")
	return p
}

// NewSubPool creates a pool whose lifetime is bounded by p. The sub-pool shares
// the parent's log channel and allocation budget size (not its accounting).
func (p *Pool) NewSubPool() (*Pool, error) {
	if p.destroyed.Load() {
		return nil, ErrDestroyed
	}

	child := &Pool{
		opts:     &Options{MaxBytes: p.opts.MaxBytes, LogChannel: p.opts.LogChannel},
		id:       ids.nextID(),
		parent:   p,
		children: queue.New[*Pool](),
		cleanups: stack.New[*cleanup](),
	}

	p.children.Enqueue(child)
	child.Log(fmt.Sprintf("created as sub-pool of %d", p.id))
	return child, nil
}

// ID returns the pool's unique identifier
func (p *Pool) ID() int64 {
	return p.id
}

// NextID returns a process-unique identifier for an object owned by the pool
func (p *Pool) NextID() int64 {
	return ids.nextID()
}

// Parent returns the parent pool, nil for a root pool
func (p *Pool) Parent() *Pool {
	return p.parent
}

// Destroyed reports whether Destroy has been called
func (p *Pool) Destroyed() bool {
	return p.destroyed.Load()
}

// Log logs a message to the log channel
func (p *Pool) Log(msg string) {
	if p.opts.LogChannel != nil {
		p.opts.LogChannel <- fmt.Sprintf("pool %d: %s", p.id, msg)
	}
}

// reserve accounts n bytes against the pool budget
func (p *Pool) reserve(n int64) error {
	if p.destroyed.Load() {
		return ErrDestroyed
	}

	if p.opts.MaxBytes <= 0 {
		atomic.AddInt64(&p.allocated, n)
		return nil
	}

	for {
		cur := atomic.LoadInt64(&p.allocated)
		if cur+n > p.opts.MaxBytes {
			return ErrExhausted
		}
		if atomic.CompareAndSwapInt64(&p.allocated, cur, cur+n) {
			return nil
		}
	}
}

// keep ties the lifetime of v to the pool
func (p *Pool) keep(v any) {
	p.allocMu.Lock()
	p.objects = append(p.objects, v)
	p.allocMu.Unlock()
}

// Make allocates a zeroed T owned by p
func Make[T any](p *Pool) (*T, error) {
	var zero T
	if err := p.reserve(int64(unsafe.Sizeof(zero))); err != nil {
		return nil, err
	}

	v := new(T)
	p.keep(v)
	return v, nil
}

// Alloc allocates a zeroed byte slice of length n owned by p
func (p *Pool) Alloc(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("invalid allocation size %d", n)
	}

	if err := p.reserve(int64(n)); err != nil {
		return nil, err
	}

	b := make([]byte, n)
	p.keep(b)
	return b, nil
}

// Strdup returns a copy of s accounted to the pool
func (p *Pool) Strdup(s string) (string, error) {
	if err := p.reserve(int64(len(s))); err != nil {
		return "", err
	}

	return strings.Clone(s), nil
}

// BytesAllocated returns the number of bytes accounted to the pool since it
// was created or last cleared
func (p *Pool) BytesAllocated() int64 {
	return atomic.LoadInt64(&p.allocated)
}

// Clear tears down sub-pools, runs every registered cleanup and releases all
// allocations. The pool stays usable afterwards.
func (p *Pool) Clear() error {
	if p.destroyed.Load() {
		return ErrDestroyed
	}

	p.Log("clearing")
	return p.teardown()
}

// Destroy tears the pool down like Clear and marks it unusable. Destroying a
// pool twice is a no-op.
func (p *Pool) Destroy() error {
	if !p.destroyed.CompareAndSwap(false, true) {
		return nil
	}

	p.Log("destroying")
	err := p.teardown()
	p.Log("destroyed")
	return err
}

// teardown destroys sub-pools first, then runs the pool's own cleanups
func (p *Pool) teardown() error {
	var errs []error

	for {
		child, ok := p.children.Dequeue()
		if !ok {
			break
		}
		if err := child.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("sub-pool %d: %w", child.id, err))
		}
	}

	if err := p.runCleanups(); err != nil {
		errs = append(errs, err)
	}

	p.allocMu.Lock()
	p.objects = nil
	p.allocMu.Unlock()
	atomic.StoreInt64(&p.allocated, 0)

	return errors.Join(errs...)
}
