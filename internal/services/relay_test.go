package services

import (
	"context"
	"sync"
	"testing"
)

type recordingSink struct {
	mu     sync.Mutex
	events []string
	data   []map[string]any
}

func (s *recordingSink) Broadcast(event string, data map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	s.data = append(s.data, data)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestRelay_attachPositionsCursor(t *testing.T) {
	svc, store, _ := newTestService(t)
	ids := seedQueue(t, svc, store, 2)
	relay := NewCommandRelay(svc, &recordingSink{})

	cursor := relay.Attach(context.Background(), "tv-1")
	if cursor.State() != StateShowing {
		t.Fatalf("state after attach = %v, want showing", cursor.State())
	}
	if current := cursor.Current(); current == nil || current.ID != ids[0] {
		t.Fatalf("attached cursor at %v, want entry %d", current, ids[0])
	}
	if relay.SessionCount() != 1 {
		t.Errorf("SessionCount() = %d, want 1", relay.SessionCount())
	}
}

func TestRelay_nextAdvancesAndBroadcasts(t *testing.T) {
	svc, store, _ := newTestService(t)
	ids := seedQueue(t, svc, store, 2)
	sink := &recordingSink{}
	relay := NewCommandRelay(svc, sink)
	cursor := relay.Attach(context.Background(), "tv-1")

	relay.HandleCommand(context.Background(), "NEXT")

	if current := cursor.Current(); current == nil || current.ID != ids[1] {
		t.Fatalf("cursor at %v after NEXT, want entry %d", current, ids[1])
	}
	if sink.count() != 1 {
		t.Fatalf("broadcasts = %d, want 1", sink.count())
	}
	if sink.events[0] != "remote.command" || sink.data[0]["command"] != "NEXT" {
		t.Errorf("broadcast = %s %v, want remote.command NEXT", sink.events[0], sink.data[0])
	}
}

func TestRelay_togglePlay(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedQueue(t, svc, store, 1)
	relay := NewCommandRelay(svc, &recordingSink{})
	cursor := relay.Attach(context.Background(), "tv-1")

	relay.HandleCommand(context.Background(), "TOGGLE_PLAY")
	if cursor.State() != StatePaused {
		t.Fatalf("state = %v after TOGGLE_PLAY, want paused", cursor.State())
	}
	relay.HandleCommand(context.Background(), "TOGGLE_PLAY")
	if cursor.State() != StateShowing {
		t.Fatalf("state = %v after second TOGGLE_PLAY, want showing", cursor.State())
	}
}

func TestRelay_volumeBroadcastOnly(t *testing.T) {
	svc, store, _ := newTestService(t)
	ids := seedQueue(t, svc, store, 2)
	sink := &recordingSink{}
	relay := NewCommandRelay(svc, sink)
	cursor := relay.Attach(context.Background(), "tv-1")

	relay.HandleCommand(context.Background(), "VOLUME_UP")

	if current := cursor.Current(); current == nil || current.ID != ids[0] {
		t.Errorf("volume command moved the cursor to %v", current)
	}
	if sink.count() != 1 || sink.data[0]["command"] != "VOLUME_UP" {
		t.Errorf("broadcast = %v, want VOLUME_UP", sink.data)
	}
}

func TestRelay_unknownCommandDropped(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedQueue(t, svc, store, 1)
	sink := &recordingSink{}
	relay := NewCommandRelay(svc, sink)
	relay.Attach(context.Background(), "tv-1")

	relay.HandleCommand(context.Background(), "KEY_POWER")

	if sink.count() != 0 {
		t.Errorf("unknown command was broadcast %d times, want 0", sink.count())
	}
}

func TestRelay_detachAndShutdown(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedQueue(t, svc, store, 1)
	relay := NewCommandRelay(svc, &recordingSink{})

	relay.Attach(context.Background(), "tv-1")
	relay.Attach(context.Background(), "tv-2")
	relay.Detach("tv-1")
	if relay.SessionCount() != 1 {
		t.Fatalf("SessionCount() = %d after detach, want 1", relay.SessionCount())
	}

	relay.Shutdown()
	if relay.SessionCount() != 0 {
		t.Fatalf("SessionCount() = %d after shutdown, want 0", relay.SessionCount())
	}

	// Commands against an empty registry still broadcast, harmlessly.
	relay.HandleCommand(context.Background(), "NEXT")
}
