package store

import (
	"context"

	"github.com/tailored-agentic-units/patchstore/patch"
)

// Listener is notified synchronously after every broadcast with the live
// state and the change record. A returned error stops the broadcast.
type Listener func(ctx context.Context, state patch.Map, change ChangeRecord) error

// ListenerID identifies a registered listener for removal.
type ListenerID uint64

type listenerEntry struct {
	id ListenerID
	fn Listener
}

// AddStorageListener registers fn after the existing listeners.
func (s *Store) AddStorageListener(fn Listener) (ListenerID, error) {
	if fn == nil {
		return 0, &ArgumentError{Op: "AddStorageListener", Arg: "listener", Reason: "must not be nil"}
	}

	s.nextListener++
	s.listeners = append(s.listeners, listenerEntry{id: s.nextListener, fn: fn})
	return s.nextListener, nil
}

// RemoveStorageListener unregisters the listener with the given id. Unknown
// ids are ignored.
func (s *Store) RemoveStorageListener(id ListenerID) {
	kept := make([]listenerEntry, 0, len(s.listeners))
	for _, l := range s.listeners {
		if l.id != id {
			kept = append(kept, l)
		}
	}
	s.listeners = kept
}
