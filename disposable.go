// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hubproxy

import (
	"errors"
	"sync"
)

// Disposable is a resource released by Dispose.
type Disposable interface {
	Dispose() error
}

// DisposeFunc adapts a function to Disposable.
type DisposeFunc func() error

func (f DisposeFunc) Dispose() error {
	if f == nil {
		return nil
	}
	return f()
}

// Group owns a set of disposables and releases them together, once.
type Group struct {
	mu       sync.Mutex
	members  []Disposable
	disposed bool
}

// NewGroup returns a group owning members.
func NewGroup(members ...Disposable) *Group {
	return &Group{members: members}
}

// Add hands d to the group. If the group is already disposed, d is
// released immediately.
func (g *Group) Add(d Disposable) error {
	g.mu.Lock()
	if g.disposed {
		g.mu.Unlock()
		return d.Dispose()
	}
	g.members = append(g.members, d)
	g.mu.Unlock()
	return nil
}

// Len returns the number of members not yet released.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.members)
}

// Dispose releases every member. Later calls do nothing and return nil.
func (g *Group) Dispose() error {
	g.mu.Lock()
	if g.disposed {
		g.mu.Unlock()
		return nil
	}
	g.disposed = true
	members := g.members
	g.members = nil
	g.mu.Unlock()

	var errs []error
	for _, d := range members {
		if err := d.Dispose(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
