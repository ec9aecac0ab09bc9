package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AglarEdain/raspberryday/internal/models"
	"github.com/AglarEdain/raspberryday/internal/services"
	"github.com/gin-gonic/gin"
)

// stubQueueStore embeds the interface so each test only fills in the
// methods its route actually hits.
type stubQueueStore struct {
	services.QueueStore
	pending []*models.QueueEntry
	stats   *models.QueueStats
}

func (s *stubQueueStore) PendingQueueEntries(context.Context, int) ([]*models.QueueEntry, error) {
	return s.pending, nil
}

func (s *stubQueueStore) QueueStats(context.Context) (*models.QueueStats, error) {
	if s.stats == nil {
		return nil, sql.ErrNoRows
	}
	return s.stats, nil
}

type stubMediaStore struct {
	services.MediaStore
	exists bool
}

func (s *stubMediaStore) MediaExists(context.Context, int64) (bool, error) {
	return s.exists, nil
}

func newTestServer(queueStore services.QueueStore, mediaStore services.MediaStore) *Server {
	gin.SetMode(gin.TestMode)
	queue := services.NewQueueService(queueStore, mediaStore)
	hub := NewViewerHub()
	relay := services.NewCommandRelay(queue, hub)
	return NewServer(queue, relay, hub)
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", services.ErrNotFound, http.StatusNotFound},
		{"invalid state", services.ErrInvalidState, http.StatusConflict},
		{"store unavailable", services.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{"wrapped not found", errors.Join(errors.New("entry 7"), services.ErrNotFound), http.StatusNotFound},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusForError(tt.err); got != tt.want {
				t.Errorf("statusForError() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEnqueue_unknownMediaIs404(t *testing.T) {
	server := newTestServer(&stubQueueStore{}, &stubMediaStore{exists: false})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/queue",
		strings.NewReader(`{"media_id": 42}`))
	req.Header.Set("Content-Type", "application/json")
	server.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestEnqueue_missingMediaIDIs400(t *testing.T) {
	server := newTestServer(&stubQueueStore{}, &stubMediaStore{exists: true})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/queue", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	server.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestNextItems_returnsQueue(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	store := &stubQueueStore{pending: []*models.QueueEntry{
		{ID: 1, MediaID: 5, ScheduledTime: now, Media: &models.Media{ID: 5}},
		{ID: 2, MediaID: 6, ScheduledTime: now.Add(time.Minute), Media: &models.Media{ID: 6}},
	}}
	server := newTestServer(store, &stubMediaStore{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/queue/next?limit=5", nil)
	server.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		Items []*models.QueueEntry `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(body.Items) != 2 || body.Items[0].ID != 1 {
		t.Fatalf("items = %+v, want entries 1,2", body.Items)
	}
}

func TestNextItems_rejectsBadLimit(t *testing.T) {
	server := newTestServer(&stubQueueStore{}, &stubMediaStore{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/queue/next?limit=zero", nil)
	server.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestRemoteCommand_alwaysAccepted(t *testing.T) {
	server := newTestServer(&stubQueueStore{}, &stubMediaStore{})

	for _, command := range []string{"NEXT", "TOGGLE_PLAY", "KEY_GARBAGE"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/remote/command",
			strings.NewReader(`{"command": "`+command+`"}`))
		req.Header.Set("Content-Type", "application/json")
		server.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusAccepted {
			t.Errorf("command %s: status = %d, want %d", command, rec.Code, http.StatusAccepted)
		}
	}
}
