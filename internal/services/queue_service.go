package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/AglarEdain/raspberryday/internal/models"
)

// QueueStore is the durable queue collection. *database.Repository satisfies
// it; tests substitute an in-memory fake.
type QueueStore interface {
	CreateQueueEntry(ctx context.Context, mediaID int64, scheduledTime time.Time) (*models.QueueEntry, error)
	QueueEntryByID(ctx context.Context, id int64) (*models.QueueEntry, error)
	PendingQueueEntries(ctx context.Context, limit int) ([]*models.QueueEntry, error)
	MarkQueueEntryDisplayed(ctx context.Context, id int64) (*models.QueueEntry, bool, error)
	ReorderQueueEntry(ctx context.Context, id int64, newPosition int, base time.Time, interval time.Duration) ([]*models.QueueEntry, error)
	DeleteDisplayedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteQueueEntriesByMedia(ctx context.Context, mediaID int64) (int64, error)
	QueueStats(ctx context.Context) (*models.QueueStats, error)
	EntryBefore(ctx context.Context, entry *models.QueueEntry) (*models.QueueEntry, error)
	PendingEntryAfter(ctx context.Context, entry *models.QueueEntry) (*models.QueueEntry, error)
}

// MediaStore is the media collaborator surface the queue depends on.
type MediaStore interface {
	MediaByID(ctx context.Context, id int64) (*models.Media, error)
	MediaExists(ctx context.Context, id int64) (bool, error)
	IncrementMediaDisplayCount(ctx context.Context, id int64) error
	CreateMedia(ctx context.Context, media *models.Media) (*models.Media, error)
	DeleteMedia(ctx context.Context, id int64) error
}

// QueueService owns every mutation of the display queue. Nothing else in the
// process writes queue entries, which is what keeps the display ordering
// invariant intact under concurrent uploads, reorders and kiosk ticks.
type QueueService struct {
	queue QueueStore
	media MediaStore
	now   func() time.Time
}

func NewQueueService(queue QueueStore, media MediaStore) *QueueService {
	return &QueueService{
		queue: queue,
		media: media,
		now:   time.Now,
	}
}

// Enqueue schedules a media item for display. A nil scheduledTime means
// "now", which places the entry at the back of the current ordering with
// insertion order breaking ties.
func (s *QueueService) Enqueue(ctx context.Context, mediaID int64, scheduledTime *time.Time) (*models.QueueEntry, error) {
	exists, err := s.media.MediaExists(ctx, mediaID)
	if err != nil {
		return nil, storeErr(err)
	}
	if !exists {
		return nil, fmt.Errorf("media %d: %w", mediaID, ErrNotFound)
	}

	when := s.now()
	if scheduledTime != nil {
		when = *scheduledTime
	}

	entry, err := s.queue.CreateQueueEntry(ctx, mediaID, when)
	if err != nil {
		return nil, storeErr(err)
	}
	return entry, nil
}

// NextItems returns up to limit pending entries in display order. Entries
// whose media has vanished are pruned from the queue rather than surfaced as
// errors.
func (s *QueueService) NextItems(ctx context.Context, limit int) ([]*models.QueueEntry, error) {
	entries, err := s.queue.PendingQueueEntries(ctx, limit)
	if err != nil {
		return nil, storeErr(err)
	}

	items := make([]*models.QueueEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Media == nil {
			if _, err := s.queue.DeleteQueueEntriesByMedia(ctx, entry.MediaID); err != nil {
				log.Printf("Failed to prune stale entries for media %d: %v", entry.MediaID, err)
			}
			continue
		}
		items = append(items, entry)
	}
	return items, nil
}

// MarkDisplayed flips an entry to displayed and bumps the media display
// counter once per transition. Calling it again on an already-displayed
// entry is a no-op for the counter and not an error.
func (s *QueueService) MarkDisplayed(ctx context.Context, id int64) (*models.QueueEntry, error) {
	entry, flipped, err := s.queue.MarkQueueEntryDisplayed(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}

	if flipped {
		if err := s.media.IncrementMediaDisplayCount(ctx, entry.MediaID); err != nil {
			return nil, storeErr(err)
		}
	}
	return entry, nil
}

// Reorder moves a pending entry to newPosition (clamped) and reassigns every
// pending scheduled time from now in fixed steps. Rewriting the whole set
// keeps the ordering dense and predictable instead of squeezing timestamps
// between neighbours.
func (s *QueueService) Reorder(ctx context.Context, id int64, newPosition int) ([]*models.QueueEntry, error) {
	entries, err := s.queue.ReorderQueueEntry(ctx, id, newPosition, s.now(), models.ReorderInterval)
	if err == nil {
		return entries, nil
	}

	mapped := storeErr(err)
	if !errors.Is(mapped, ErrNotFound) {
		return nil, mapped
	}

	// Distinguish an unknown entry from one that already left the pending
	// set.
	if entry, lookupErr := s.queue.QueueEntryByID(ctx, id); lookupErr == nil && entry.Displayed {
		return nil, fmt.Errorf("entry %d already displayed: %w", id, ErrInvalidState)
	}
	return nil, fmt.Errorf("entry %d: %w", id, ErrNotFound)
}

// Cleanup deletes displayed entries older than maxAge and reports how many
// were removed. Pending entries are never touched regardless of age.
func (s *QueueService) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	count, err := s.queue.DeleteDisplayedBefore(ctx, s.now().Add(-maxAge))
	if err != nil {
		return 0, storeErr(err)
	}
	return count, nil
}

func (s *QueueService) Stats(ctx context.Context) (*models.QueueStats, error) {
	stats, err := s.queue.QueueStats(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	return stats, nil
}

// RegisterMedia records an already-stored media file so it can be queued.
func (s *QueueService) RegisterMedia(ctx context.Context, media *models.Media) (*models.Media, error) {
	if media.Filename == "" {
		return nil, fmt.Errorf("filename is required: %w", ErrInvalidState)
	}
	if media.Type != "image" && media.Type != "video" {
		return nil, fmt.Errorf("unsupported media type %q: %w", media.Type, ErrInvalidState)
	}

	created, err := s.media.CreateMedia(ctx, media)
	if err != nil {
		return nil, storeErr(err)
	}
	return created, nil
}

// MediaInfo returns a media item's metadata and generated URLs.
func (s *QueueService) MediaInfo(ctx context.Context, mediaID int64) (*models.Media, error) {
	media, err := s.media.MediaByID(ctx, mediaID)
	if err != nil {
		return nil, storeErr(err)
	}
	return media, nil
}

// RemoveMedia deletes a media item and cascades to every queue entry
// referencing it.
func (s *QueueService) RemoveMedia(ctx context.Context, mediaID int64) error {
	if err := s.media.DeleteMedia(ctx, mediaID); err != nil {
		return storeErr(err)
	}
	return nil
}

// EntryBefore returns the entry preceding the given one in full display
// order, displayed history included. ErrNotFound at the head of the queue.
func (s *QueueService) EntryBefore(ctx context.Context, entry *models.QueueEntry) (*models.QueueEntry, error) {
	prev, err := s.queue.EntryBefore(ctx, entry)
	if err != nil {
		return nil, storeErr(err)
	}
	return prev, nil
}

// PendingEntryAfter returns the pending entry following the given one in
// display order. ErrNotFound at the tail.
func (s *QueueService) PendingEntryAfter(ctx context.Context, entry *models.QueueEntry) (*models.QueueEntry, error) {
	next, err := s.queue.PendingEntryAfter(ctx, entry)
	if err != nil {
		return nil, storeErr(err)
	}
	return next, nil
}
