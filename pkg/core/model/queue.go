package model

import "github.com/google/uuid"

// QueueEntry is one row of a per-location FIFO rotation queue. External
// locations rotate brokers through duty; internal locations keep a separate
// Saturday-only queue of the same shape.
//
// Invariant: after any allocation the assigned broker moves to the tail and
// positions are renumbered 1..N with everyone else's relative order intact.
type QueueEntry struct {
	LocationID    uuid.UUID
	BrokerID      uuid.UUID
	Position      int    // 1-based, 1 = next in line
	TimesAssigned int
	LastAssigned  string // YYYY-MM-DD, empty if never assigned
}
