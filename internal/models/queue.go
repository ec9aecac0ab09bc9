package models

import "time"

// QueueEntry is one scheduled appearance of a media item on the display.
// Entries with displayed=true are history and are only ever touched by
// cleanup.
type QueueEntry struct {
	ID            int64      `json:"id"`
	MediaID       int64      `json:"media_id"`
	ScheduledTime time.Time  `json:"scheduled_time"`
	Displayed     bool       `json:"displayed"`
	DisplayTime   *time.Time `json:"display_time"`
	Media         *Media     `json:"media,omitempty"`
}

type QueueStats struct {
	TotalItems      int        `json:"total_items"`
	DisplayedItems  int        `json:"displayed_items"`
	PendingItems    int        `json:"pending_items"`
	NextDisplayTime *time.Time `json:"next_display_time"`
	LastDisplayTime *time.Time `json:"last_display_time"`
}

// ReorderInterval is the spacing between rewritten scheduled times after a
// queue reorder. Rewriting every pending timestamp keeps the ordering dense
// and collision-free instead of inventing fractional times between
// neighbours.
const ReorderInterval = 5 * time.Minute

// Less reports whether a sorts before b in display order: ascending
// scheduled time, entry id as the tie-break. Both nextItems and the reorder
// snapshot must use this comparison or reordering stops being deterministic.
func Less(a, b *QueueEntry) bool {
	if a.ScheduledTime.Equal(b.ScheduledTime) {
		return a.ID < b.ID
	}
	return a.ScheduledTime.Before(b.ScheduledTime)
}

// ClampPosition clamps pos to a valid index for a queue of n entries.
func ClampPosition(pos, n int) int {
	if pos < 0 {
		return 0
	}
	if pos > n-1 {
		return n - 1
	}
	return pos
}

// SpliceEntries moves the entry at index from to the clamped index to,
// returning the reordered slice. The input slice is not modified.
func SpliceEntries(entries []*QueueEntry, from, to int) []*QueueEntry {
	out := make([]*QueueEntry, 0, len(entries))
	out = append(out, entries[:from]...)
	out = append(out, entries[from+1:]...)

	to = ClampPosition(to, len(entries))
	out = append(out, nil)
	copy(out[to+1:], out[to:])
	out[to] = entries[from]
	return out
}
