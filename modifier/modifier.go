// Package modifier resolves lazy sequences of patches.
//
// A reducer answers an action with a Sequence: an iterator whose elements are
// either computed patches or pending computations that yield one later.
// Resolve drains a sequence strictly in order, waiting on each pending element
// before pulling the next, so a reducer can build later patches from results
// it has already observed.
package modifier

import (
	"context"
	"iter"

	"github.com/tailored-agentic-units/patchstore/patch"
)

// Modifier produces one patch, possibly after waiting. patch.Patch satisfies
// Modifier directly.
type Modifier interface {
	Resolve(ctx context.Context) (patch.Patch, error)
}

// Sequence is the lazy, ordered output of a reducer. A nil Sequence means the
// reducer does not react to the action.
type Sequence = iter.Seq[Modifier]

// Pending computes its patch when it is resolved.
type Pending func(ctx context.Context) (patch.Patch, error)

// Resolve runs the computation.
func (p Pending) Resolve(ctx context.Context) (patch.Patch, error) {
	if p == nil {
		return nil, nil
	}
	return p(ctx)
}

// Future is a computation that was started before it is resolved.
type Future struct {
	done  chan struct{}
	patch patch.Patch
	err   error
}

// Go starts fn on its own goroutine and returns a Future for its result.
// fn receives ctx, which the caller may use to bound the work.
func Go(ctx context.Context, fn func(ctx context.Context) (patch.Patch, error)) *Future {
	f := &Future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.patch, f.err = fn(ctx)
	}()
	return f
}

// Resolve waits for the computation to finish or for ctx to end.
func (f *Future) Resolve(ctx context.Context) (patch.Patch, error) {
	select {
	case <-f.done:
		return f.patch, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Of returns a Sequence over the given modifiers.
func Of(modifiers ...Modifier) Sequence {
	return func(yield func(Modifier) bool) {
		for _, m := range modifiers {
			if !yield(m) {
				return
			}
		}
	}
}

// Patches returns a Sequence over already computed patches.
func Patches(patches ...patch.Patch) Sequence {
	return func(yield func(Modifier) bool) {
		for _, p := range patches {
			if !yield(p) {
				return
			}
		}
	}
}

// Resolve drains seq into concrete patches in emission order. nil elements
// and nil results contribute nothing. The first error stops the drain.
func Resolve(ctx context.Context, seq Sequence) ([]patch.Patch, error) {
	resolved := make([]patch.Patch, 0)
	if seq == nil {
		return resolved, nil
	}

	for m := range seq {
		if isNil(m) {
			continue
		}
		p, err := m.Resolve(ctx)
		if err != nil {
			return resolved, err
		}
		if p != nil {
			resolved = append(resolved, p)
		}
	}

	return resolved, nil
}

// ResolveAll resolves each sequence in turn. Every patch of sequence i
// precedes every patch of sequence i+1 in the result.
func ResolveAll(ctx context.Context, seqs ...Sequence) ([]patch.Patch, error) {
	resolved := make([]patch.Patch, 0)
	for _, seq := range seqs {
		patches, err := Resolve(ctx, seq)
		resolved = append(resolved, patches...)
		if err != nil {
			return resolved, err
		}
	}
	return resolved, nil
}

func isNil(m Modifier) bool {
	switch v := m.(type) {
	case nil:
		return true
	case *Future:
		return v == nil
	case Pending:
		return v == nil
	}
	return false
}
