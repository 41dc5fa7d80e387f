// Package store implements an in-process state container.
//
// State is a patch.Map mutated only through patches, either directly with
// Update or by reducers reacting to dispatched actions. Two top-level fields
// are reserved: "actions", a queue of actions to dispatch after the current
// one, and "cache", a mapping of token-stamped entries.
//
// Dispatch runs every reducer in registration order. Each reducer's patch
// sequence is fully resolved and applied before the next reducer runs, so a
// reducer sees the changes of the reducers before it. When the actions queue
// is not empty afterwards, the first queued action is removed, the change is
// broadcast, and the removed action is dispatched in turn.
//
// Every change is recorded in a bounded newest-first history and delivered
// synchronously to storage listeners.
//
// Example:
//
//	s, err := store.New(config.DefaultStoreConfig("cart"),
//	    store.WithReducers(func(ctx context.Context, state patch.Map, a store.Action) modifier.Sequence {
//	        if a.Type != "ADD" {
//	            return nil
//	        }
//	        return modifier.Patches(patch.Patch{"items": a.Payload})
//	    }),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	state, err := s.Dispatch(ctx, store.Action{Type: "ADD", Payload: []any{"apple"}})
//
// A Store is not safe for concurrent use. It expects one logical owner with
// at most one operation in flight.
package store
