package services

import (
	"context"
	"errors"
	"sync"

	"github.com/AglarEdain/raspberryday/internal/models"
)

type PlaybackState int

const (
	StateIdle PlaybackState = iota
	StateShowing
	StatePaused
)

func (s PlaybackState) String() string {
	switch s {
	case StateShowing:
		return "showing"
	case StatePaused:
		return "paused"
	default:
		return "idle"
	}
}

// PlaybackCursor tracks what one viewer session is currently showing. It
// lives only in memory; on reconnect a new cursor is rebuilt from the head
// of the queue.
type PlaybackCursor struct {
	mu      sync.Mutex
	queue   *QueueService
	state   PlaybackState
	current *models.QueueEntry
}

func NewPlaybackCursor(queue *QueueService) *PlaybackCursor {
	return &PlaybackCursor{queue: queue, state: StateIdle}
}

func (c *PlaybackCursor) State() PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *PlaybackCursor) Current() *models.QueueEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the cursor to the head of the pending queue. With an empty
// queue the cursor goes (or stays) idle.
func (c *PlaybackCursor) Advance(ctx context.Context) (*models.QueueEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.advanceLocked(ctx)
}

func (c *PlaybackCursor) advanceLocked(ctx context.Context) (*models.QueueEntry, error) {
	items, err := c.queue.NextItems(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		c.state = StateIdle
		c.current = nil
		return nil, nil
	}
	c.state = StateShowing
	c.current = items[0]
	return c.current, nil
}

// MarkDisplayedAndAdvance completes the current entry: it is marked
// displayed (bumping the media counter) and the cursor moves to the next
// pending entry, or idle when the queue ran dry.
func (c *PlaybackCursor) MarkDisplayedAndAdvance(ctx context.Context) (*models.QueueEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return c.advanceLocked(ctx)
	}

	if _, err := c.queue.MarkDisplayed(ctx, c.current.ID); err != nil {
		// The entry may have been pruned or cleaned up under us; fall
		// through to the queue head in that case.
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return c.advanceLocked(ctx)
}

func (c *PlaybackCursor) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateShowing {
		c.state = StatePaused
	}
}

func (c *PlaybackCursor) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StatePaused {
		c.state = StateShowing
	}
}

func (c *PlaybackCursor) TogglePlay() {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateShowing:
		c.state = StatePaused
	case StatePaused:
		c.state = StateShowing
	}
}

// SkipNext moves to the next pending entry without marking the current one
// displayed. A manual skip must not inflate the skipped item's display
// counter. At the tail the cursor stays where it is.
func (c *PlaybackCursor) SkipNext(ctx context.Context) (*models.QueueEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return c.advanceLocked(ctx)
	}

	next, err := c.queue.PendingEntryAfter(ctx, c.current)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.current, nil
		}
		return nil, err
	}
	c.state = StateShowing
	c.current = next
	return next, nil
}

// SkipPrevious moves to the entry immediately preceding the current one in
// full display order, already-displayed entries included. At the head the
// cursor stays where it is.
func (c *PlaybackCursor) SkipPrevious(ctx context.Context) (*models.QueueEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return c.advanceLocked(ctx)
	}

	prev, err := c.queue.EntryBefore(ctx, c.current)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.current, nil
		}
		return nil, err
	}
	c.state = StateShowing
	c.current = prev
	return prev, nil
}
