package allocator

import (
	"sort"

	"github.com/google/uuid"

	"github.com/plantao/plantao/pkg/core/model"
)

// RotationQueue is a per-location FIFO of brokers. Brokers who have gone
// longest without working the location sit at the head; every allocation
// moves the assigned broker to the tail and renumbers positions 1..N,
// preserving everyone else's relative order.
type RotationQueue struct {
	LocationID uuid.UUID
	entries    []model.QueueEntry
}

// NewRotationQueue builds a queue from persisted entries, normalizing
// positions to 1..N in stored order
func NewRotationQueue(locationID uuid.UUID, entries []model.QueueEntry) *RotationQueue {
	sorted := make([]model.QueueEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Position < sorted[j].Position
	})
	for i := range sorted {
		sorted[i].Position = i + 1
	}
	return &RotationQueue{LocationID: locationID, entries: sorted}
}

// Entries returns the queue in position order
func (q *RotationQueue) Entries() []model.QueueEntry {
	out := make([]model.QueueEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Len returns the number of brokers in the queue
func (q *RotationQueue) Len() int {
	return len(q.entries)
}

// EntriesByFairness returns the queue ordered by ascending times assigned,
// position breaking ties. A newly enrolled broker outranks a veteran even
// from the tail.
func (q *RotationQueue) EntriesByFairness() []model.QueueEntry {
	out := q.Entries()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TimesAssigned != out[j].TimesAssigned {
			return out[i].TimesAssigned < out[j].TimesAssigned
		}
		return out[i].Position < out[j].Position
	})
	return out
}

// PositionOf returns the broker's 1-based position, or 0 if absent
func (q *RotationQueue) PositionOf(brokerID uuid.UUID) int {
	for _, e := range q.entries {
		if e.BrokerID == brokerID {
			return e.Position
		}
	}
	return 0
}

// EntryOf returns the broker's entry and whether it exists
func (q *RotationQueue) EntryOf(brokerID uuid.UUID) (model.QueueEntry, bool) {
	for _, e := range q.entries {
		if e.BrokerID == brokerID {
			return e, true
		}
	}
	return model.QueueEntry{}, false
}

// EnsureBroker appends the broker at the tail if not already queued
func (q *RotationQueue) EnsureBroker(brokerID uuid.UUID) {
	if q.PositionOf(brokerID) != 0 {
		return
	}
	q.entries = append(q.entries, model.QueueEntry{
		LocationID: q.LocationID,
		BrokerID:   brokerID,
		Position:   len(q.entries) + 1,
	})
}

// MoveToTail records an allocation: the broker's times-assigned counter is
// incremented, the last-assigned date updated, and the broker moved to the
// tail with positions renumbered 1..N.
func (q *RotationQueue) MoveToTail(brokerID uuid.UUID, date string) {
	idx := -1
	for i, e := range q.entries {
		if e.BrokerID == brokerID {
			idx = i
			break
		}
	}
	if idx == -1 {
		q.entries = append(q.entries, model.QueueEntry{
			LocationID:    q.LocationID,
			BrokerID:      brokerID,
			TimesAssigned: 1,
			LastAssigned:  date,
		})
	} else {
		moved := q.entries[idx]
		moved.TimesAssigned++
		moved.LastAssigned = date
		q.entries = append(q.entries[:idx], q.entries[idx+1:]...)
		q.entries = append(q.entries, moved)
	}
	for i := range q.entries {
		q.entries[i].Position = i + 1
	}
}
