package services

import (
	"context"
	"log"
	"sync"

	"github.com/AglarEdain/raspberryday/internal/models"
)

// Broadcaster delivers an event to every connected viewer session.
// Delivery is best-effort: a slow or gone session is skipped, never waited
// on.
type Broadcaster interface {
	Broadcast(event string, data map[string]any)
}

// CommandRelay maps remote-control and admin command tokens onto playback
// cursors and fans the resulting event out to the viewers. It owns the
// per-session cursor registry: sessions attach on viewer connect and are all
// dropped on shutdown.
type CommandRelay struct {
	queue *QueueService
	sink  Broadcaster

	mu       sync.RWMutex
	sessions map[string]*PlaybackCursor
}

func NewCommandRelay(queue *QueueService, sink Broadcaster) *CommandRelay {
	return &CommandRelay{
		queue:    queue,
		sink:     sink,
		sessions: make(map[string]*PlaybackCursor),
	}
}

// Attach registers a viewer session and returns its cursor, positioned at
// the current queue head.
func (r *CommandRelay) Attach(ctx context.Context, sessionID string) *PlaybackCursor {
	cursor := NewPlaybackCursor(r.queue)
	if _, err := cursor.Advance(ctx); err != nil {
		log.Printf("Failed to position cursor for session %s: %v", sessionID, err)
	}

	r.mu.Lock()
	r.sessions[sessionID] = cursor
	r.mu.Unlock()

	return cursor
}

func (r *CommandRelay) Detach(sessionID string) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	r.mu.Unlock()
}

func (r *CommandRelay) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Shutdown drops all sessions. Called once on process teardown.
func (r *CommandRelay) Shutdown() {
	r.mu.Lock()
	r.sessions = make(map[string]*PlaybackCursor)
	r.mu.Unlock()
}

// HandleCommand applies a command token to every attached cursor and
// broadcasts it to the viewers. Remote-control input is best-effort UX:
// unrecognized tokens are logged and dropped, and per-session failures never
// surface to the sender.
func (r *CommandRelay) HandleCommand(ctx context.Context, token string) {
	cmd := models.RemoteCommand(token)

	switch cmd {
	case models.CommandNext:
		r.eachCursor(func(cursor *PlaybackCursor) error {
			_, err := cursor.SkipNext(ctx)
			return err
		})
	case models.CommandPrevious:
		r.eachCursor(func(cursor *PlaybackCursor) error {
			_, err := cursor.SkipPrevious(ctx)
			return err
		})
	case models.CommandTogglePlay:
		r.eachCursor(func(cursor *PlaybackCursor) error {
			cursor.TogglePlay()
			return nil
		})
	case models.CommandVolumeUp, models.CommandVolumeDown:
		// Volume is handled on the viewer; relay the token untouched.
	default:
		log.Printf("Dropping unrecognized remote command %q", token)
		return
	}

	r.sink.Broadcast("remote.command", map[string]any{
		"command": string(cmd),
	})
}

func (r *CommandRelay) eachCursor(apply func(*PlaybackCursor) error) {
	r.mu.RLock()
	cursors := make(map[string]*PlaybackCursor, len(r.sessions))
	for id, cursor := range r.sessions {
		cursors[id] = cursor
	}
	r.mu.RUnlock()

	for id, cursor := range cursors {
		if err := apply(cursor); err != nil {
			log.Printf("Command failed for session %s: %v", id, err)
		}
	}
}
