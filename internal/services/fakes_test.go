package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/AglarEdain/raspberryday/internal/models"
)

// memStore is an in-memory stand-in for *database.Repository implementing
// both QueueStore and MediaStore with the same semantics as the SQL layer.
type memStore struct {
	mu          sync.Mutex
	nextID      int64
	nextMediaID int64
	entries     map[int64]*models.QueueEntry
	media       map[int64]*models.Media
	now         func() time.Time
}

func newMemStore() *memStore {
	return &memStore{
		nextID:      1,
		nextMediaID: 1,
		entries:     make(map[int64]*models.QueueEntry),
		media:       make(map[int64]*models.Media),
		now:         time.Now,
	}
}

func (m *memStore) addMedia(id int64) *models.Media {
	m.mu.Lock()
	defer m.mu.Unlock()
	media := &models.Media{ID: id, Filename: "test.jpg", Type: "image"}
	m.media[id] = media
	if id >= m.nextMediaID {
		m.nextMediaID = id + 1
	}
	return media
}

func (m *memStore) entryView(entry *models.QueueEntry) *models.QueueEntry {
	copied := *entry
	copied.Media = m.media[entry.MediaID]
	return &copied
}

func (m *memStore) pendingLocked() []*models.QueueEntry {
	var pending []*models.QueueEntry
	for _, entry := range m.entries {
		if !entry.Displayed {
			pending = append(pending, entry)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return models.Less(pending[i], pending[j])
	})
	return pending
}

func (m *memStore) CreateQueueEntry(_ context.Context, mediaID int64, scheduledTime time.Time) (*models.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := &models.QueueEntry{
		ID:            m.nextID,
		MediaID:       mediaID,
		ScheduledTime: scheduledTime,
	}
	m.nextID++
	m.entries[entry.ID] = entry
	return m.entryView(entry), nil
}

func (m *memStore) QueueEntryByID(_ context.Context, id int64) (*models.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return m.entryView(entry), nil
}

func (m *memStore) PendingQueueEntries(_ context.Context, limit int) ([]*models.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pending := m.pendingLocked()
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	views := make([]*models.QueueEntry, len(pending))
	for i, entry := range pending {
		views[i] = m.entryView(entry)
	}
	return views, nil
}

func (m *memStore) MarkQueueEntryDisplayed(_ context.Context, id int64) (*models.QueueEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[id]
	if !ok {
		return nil, false, sql.ErrNoRows
	}
	flipped := !entry.Displayed
	if flipped {
		entry.Displayed = true
		when := m.now()
		entry.DisplayTime = &when
	}
	return m.entryView(entry), flipped, nil
}

func (m *memStore) ReorderQueueEntry(_ context.Context, id int64, newPosition int, base time.Time, interval time.Duration) ([]*models.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pending := m.pendingLocked()
	current := -1
	for i, entry := range pending {
		if entry.ID == id {
			current = i
			break
		}
	}
	if current == -1 {
		return nil, sql.ErrNoRows
	}

	reordered := models.SpliceEntries(pending, current, newPosition)
	for i, entry := range reordered {
		entry.ScheduledTime = base.Add(time.Duration(i) * interval)
	}

	views := make([]*models.QueueEntry, len(reordered))
	for i, entry := range reordered {
		views[i] = m.entryView(entry)
	}
	return views, nil
}

func (m *memStore) DeleteDisplayedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for id, entry := range m.entries {
		if entry.Displayed && entry.DisplayTime != nil && entry.DisplayTime.Before(cutoff) {
			delete(m.entries, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *memStore) DeleteQueueEntriesByMedia(_ context.Context, mediaID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for id, entry := range m.entries {
		if entry.MediaID == mediaID {
			delete(m.entries, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *memStore) QueueStats(_ context.Context) (*models.QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &models.QueueStats{}
	for _, entry := range m.entries {
		stats.TotalItems++
		if entry.Displayed {
			stats.DisplayedItems++
			if stats.LastDisplayTime == nil || entry.DisplayTime.After(*stats.LastDisplayTime) {
				stats.LastDisplayTime = entry.DisplayTime
			}
		} else {
			stats.PendingItems++
			if stats.NextDisplayTime == nil || entry.ScheduledTime.Before(*stats.NextDisplayTime) {
				scheduled := entry.ScheduledTime
				stats.NextDisplayTime = &scheduled
			}
		}
	}
	return stats, nil
}

func (m *memStore) EntryBefore(_ context.Context, target *models.QueueEntry) (*models.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var prev *models.QueueEntry
	for _, entry := range m.entries {
		if !models.Less(entry, target) {
			continue
		}
		if prev == nil || models.Less(prev, entry) {
			prev = entry
		}
	}
	if prev == nil {
		return nil, sql.ErrNoRows
	}
	return m.entryView(prev), nil
}

func (m *memStore) PendingEntryAfter(_ context.Context, target *models.QueueEntry) (*models.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var next *models.QueueEntry
	for _, entry := range m.entries {
		if entry.Displayed || !models.Less(target, entry) {
			continue
		}
		if next == nil || models.Less(entry, next) {
			next = entry
		}
	}
	if next == nil {
		return nil, sql.ErrNoRows
	}
	return m.entryView(next), nil
}

func (m *memStore) MediaByID(_ context.Context, id int64) (*models.Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	media, ok := m.media[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *media
	return &copied, nil
}

func (m *memStore) CreateMedia(_ context.Context, media *models.Media) (*models.Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *media
	copied.ID = m.nextMediaID
	copied.URLs = models.GenerateURLs(copied.Filename)
	m.nextMediaID++
	m.media[copied.ID] = &copied
	view := copied
	return &view, nil
}

func (m *memStore) MediaExists(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.media[id]
	return ok, nil
}

func (m *memStore) IncrementMediaDisplayCount(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if media, ok := m.media[id]; ok {
		media.DisplayCount++
	}
	return nil
}

func (m *memStore) DeleteMedia(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.media[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.media, id)
	for entryID, entry := range m.entries {
		if entry.MediaID == id {
			delete(m.entries, entryID)
		}
	}
	return nil
}

// deleteMediaRowOnly simulates media vanishing without the cascade, leaving
// stale queue entries behind.
func (m *memStore) deleteMediaRowOnly(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.media, id)
}
