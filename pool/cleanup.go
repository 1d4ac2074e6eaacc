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
package pool

import (
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"
)

// ErrNotComparable is returned when cleanup data cannot be used as a registry key.
var ErrNotComparable = errors.New("cleanup data must be comparable")

// CleanupFunc releases whatever resource it was registered for
type CleanupFunc func() error

// NullCleanup does nothing. Register it where a cleanup slot has no work.
func NullCleanup() error {
	return nil
}

// cleanup is a registry entry
type cleanup struct {
	data  any         // Registry key, usually the pointer the cleanup releases
	plain CleanupFunc // Runs on Clear/Destroy/RunCleanup
	child CleanupFunc // Runs on CleanupForExec
	done  atomic.Bool // Set once the entry has fired or been killed
}

// RegisterCleanup registers plain to run when the pool is cleared or destroyed
// and child to run from CleanupForExec. data identifies the registration for
// KillCleanup and RunCleanup and must be comparable. nil functions are
// replaced with NullCleanup.
func (p *Pool) RegisterCleanup(data any, plain, child CleanupFunc) error {
	if p.destroyed.Load() {
		return ErrDestroyed
	}

	if data != nil && !reflect.TypeOf(data).Comparable() {
		return ErrNotComparable
	}

	if plain == nil {
		plain = NullCleanup
	}
	if child == nil {
		child = NullCleanup
	}

	p.cleanups.Push(&cleanup{data: data, plain: plain, child: child})
	atomic.AddInt64(&p.live, 1)
	return nil
}

// find returns the newest live entry registered for data
func (p *Pool) find(data any) *cleanup {
	p.sweepMu.RLock()
	defer p.sweepMu.RUnlock()

	var found *cleanup
	p.cleanups.ForEach(func(c *cleanup) bool {
		if !c.done.Load() && c.data == data {
			found = c
			return false
		}
		return true
	})
	return found
}

// KillCleanup unregisters the newest live cleanup for data without running it.
// It reports whether a registration was found.
func (p *Pool) KillCleanup(data any) bool {
	c := p.find(data)
	if c == nil || !c.done.CompareAndSwap(false, true) {
		return false
	}

	atomic.AddInt64(&p.live, -1)
	atomic.AddInt64(&p.dead, 1)
	p.maybeCompact()
	return true
}

// RunCleanup unregisters the newest live cleanup for data and runs it now.
// Nothing happens if no registration exists.
func (p *Pool) RunCleanup(data any) error {
	c := p.find(data)
	if c == nil || !c.done.CompareAndSwap(false, true) {
		return nil
	}

	atomic.AddInt64(&p.live, -1)
	atomic.AddInt64(&p.dead, 1)
	p.maybeCompact()
	return c.plain()
}

// Cleanups returns the number of registered cleanups that have not run
func (p *Pool) Cleanups() int {
	return int(atomic.LoadInt64(&p.live))
}

// CleanupForExec runs the child cleanup of every live registration in the
// pool tree, sub-pools first. Plain cleanups stay registered.
func (p *Pool) CleanupForExec() error {
	var errs []error

	p.children.ForEach(func(child *Pool) bool {
		if err := child.CleanupForExec(); err != nil {
			errs = append(errs, err)
		}
		return true
	})

	p.cleanups.ForEach(func(c *cleanup) bool {
		if c.done.Load() {
			return true
		}
		if err := c.child(); err != nil {
			errs = append(errs, err)
		}
		return true
	})

	return errors.Join(errs...)
}

// runCleanups fires every live plain cleanup, newest first. The registry lock
// is only held while draining so cleanups may use the registry themselves;
// anything they register is picked up by the next round.
func (p *Pool) runCleanups() error {
	var errs []error
	ran := 0

	for {
		p.sweepMu.Lock()
		entries := p.cleanups.Drain()
		p.sweepMu.Unlock()

		if len(entries) == 0 {
			break
		}

		for _, c := range entries {
			if !c.done.CompareAndSwap(false, true) {
				continue
			}
			atomic.AddInt64(&p.live, -1)
			ran++

			if err := c.plain(); err != nil {
				p.Log(fmt.Sprintf("cleanup for %T failed: %v", c.data, err))
				errs = append(errs, err)
			}
		}
	}

	atomic.StoreInt64(&p.dead, 0)
	p.Log(fmt.Sprintf("ran %d cleanups", ran))
	return errors.Join(errs...)
}

// maybeCompact drops killed entries once they outnumber live ones
func (p *Pool) maybeCompact() {
	dead := atomic.LoadInt64(&p.dead)
	if dead < compactThreshold || dead <= atomic.LoadInt64(&p.live) {
		return
	}

	if !p.sweepMu.TryLock() {
		return
	}
	defer p.sweepMu.Unlock()

	atomic.StoreInt64(&p.dead, 0)
	entries := p.cleanups.Drain()

	// Push back oldest first so the newest entry ends up on top again
	for i := len(entries) - 1; i >= 0; i-- {
		if !entries[i].done.Load() {
			p.cleanups.Push(entries[i])
		}
	}
}
