package store

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/patchstore/patch"
)

// ChangeRecord describes one applied change.
type ChangeRecord struct {
	ID uuid.UUID `json:"id"`

	// Action is the action type that produced the change, empty for Update
	// and Clear.
	Action string `json:"action"`

	// Changes is the combined patch. Removed fields hold patch.Delete.
	Changes patch.Patch `json:"-"`

	// Generation is the state generation after the change.
	Generation uint64    `json:"generation"`
	Timestamp  time.Time `json:"timestamp"`
}

// history is a bounded newest-first log.
type history struct {
	records []ChangeRecord
	max     int
}

// push prepends r and evicts from the tail while over capacity. It returns
// the number of evicted records.
func (h *history) push(r ChangeRecord) int {
	h.records = slices.Insert(h.records, 0, r)

	evicted := 0
	for len(h.records) > h.max {
		h.records = h.records[:len(h.records)-1]
		evicted++
	}
	return evicted
}

func (h *history) list() []ChangeRecord {
	return slices.Clone(h.records)
}
