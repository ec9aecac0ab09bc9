package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/AglarEdain/raspberryday/internal/config"
	"github.com/AglarEdain/raspberryday/internal/models"
	_ "github.com/go-sql-driver/mysql"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(cfg *config.Config) (*Repository, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

const queueEntryColumns = `q.id, q.media_id, q.scheduled_time, q.displayed, q.display_time,
	m.id, m.user_id, m.filename, m.original_name, m.type, m.size, m.caption,
	m.category_id, m.display_count, m.is_favorite, m.created_at, m.updated_at`

// scanQueueEntry reads one display_queue row joined against media. The media
// side of the join may be entirely NULL when the referenced media row was
// deleted out from under the entry.
func scanQueueEntry(row interface{ Scan(...any) error }) (*models.QueueEntry, error) {
	var (
		entry       models.QueueEntry
		displayTime sql.NullTime

		mediaID      sql.NullInt64
		userID       sql.NullInt64
		filename     sql.NullString
		originalName sql.NullString
		mediaType    sql.NullString
		size         sql.NullInt64
		caption      sql.NullString
		categoryID   sql.NullInt64
		displayCount sql.NullInt64
		isFavorite   sql.NullBool
		createdAt    sql.NullTime
		updatedAt    sql.NullTime
	)

	err := row.Scan(
		&entry.ID,
		&entry.MediaID,
		&entry.ScheduledTime,
		&entry.Displayed,
		&displayTime,
		&mediaID,
		&userID,
		&filename,
		&originalName,
		&mediaType,
		&size,
		&caption,
		&categoryID,
		&displayCount,
		&isFavorite,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if displayTime.Valid {
		entry.DisplayTime = &displayTime.Time
	}

	if mediaID.Valid {
		media := &models.Media{
			ID:           mediaID.Int64,
			UserID:       userID.Int64,
			Filename:     filename.String,
			OriginalName: originalName.String,
			Type:         mediaType.String,
			Size:         size.Int64,
			Caption:      caption.String,
			DisplayCount: int(displayCount.Int64),
			IsFavorite:   isFavorite.Bool,
			URLs:         models.GenerateURLs(filename.String),
			CreatedAt:    createdAt.Time,
			UpdatedAt:    updatedAt.Time,
		}
		if categoryID.Valid {
			media.CategoryID = &categoryID.Int64
		}
		entry.Media = media
	}

	return &entry, nil
}

func (r *Repository) CreateQueueEntry(ctx context.Context, mediaID int64, scheduledTime time.Time) (*models.QueueEntry, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO display_queue (media_id, scheduled_time) VALUES (?, ?)`,
		mediaID, scheduledTime)
	if err != nil {
		return nil, fmt.Errorf("failed to insert queue entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get queue entry id: %w", err)
	}

	return r.QueueEntryByID(ctx, id)
}

func (r *Repository) QueueEntryByID(ctx context.Context, id int64) (*models.QueueEntry, error) {
	query := `SELECT ` + queueEntryColumns + `
		FROM display_queue q
		LEFT JOIN media m ON q.media_id = m.id
		WHERE q.id = ?`

	entry, err := scanQueueEntry(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan queue entry: %w", err)
	}
	return entry, nil
}

// PendingQueueEntries returns non-displayed entries in display order:
// ascending scheduled_time, entry id breaking ties. A limit <= 0 means no
// limit.
func (r *Repository) PendingQueueEntries(ctx context.Context, limit int) ([]*models.QueueEntry, error) {
	query := `SELECT ` + queueEntryColumns + `
		FROM display_queue q
		LEFT JOIN media m ON q.media_id = m.id
		WHERE q.displayed = 0
		ORDER BY q.scheduled_time ASC, q.id ASC`

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+` LIMIT ?`, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query pending entries: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error closing rows: %v", err)
		}
	}()

	var entries []*models.QueueEntry
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, nil
}

// MarkQueueEntryDisplayed flips the displayed flag and stamps display_time
// in a single conditional update. The returned bool reports whether this
// call performed the not-displayed to displayed transition; concurrent
// callers racing on the same entry see it true at most once.
func (r *Repository) MarkQueueEntryDisplayed(ctx context.Context, id int64) (*models.QueueEntry, bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE display_queue
		 SET displayed = 1, display_time = CURRENT_TIMESTAMP
		 WHERE id = ? AND displayed = 0`,
		id)
	if err != nil {
		return nil, false, fmt.Errorf("failed to mark entry displayed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	entry, err := r.QueueEntryByID(ctx, id)
	if err != nil {
		return nil, false, err
	}

	return entry, affected == 1, nil
}

// ReorderQueueEntry moves entry id to newPosition among the pending entries
// and rewrites every pending scheduled_time as base + i*interval. The
// snapshot, splice and rewrite run in one transaction with the pending rows
// locked, so a concurrent enqueue lands either before or after the batch but
// never inside it.
func (r *Repository) ReorderQueueEntry(ctx context.Context, id int64, newPosition int, base time.Time, interval time.Duration) ([]*models.QueueEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin reorder transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id, media_id, scheduled_time, displayed
		 FROM display_queue
		 WHERE displayed = 0
		 ORDER BY scheduled_time ASC, id ASC
		 FOR UPDATE`)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot pending entries: %w", err)
	}

	var pending []*models.QueueEntry
	for rows.Next() {
		var entry models.QueueEntry
		if err := rows.Scan(&entry.ID, &entry.MediaID, &entry.ScheduledTime, &entry.Displayed); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan pending entry: %w", err)
		}
		pending = append(pending, &entry)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("failed to close snapshot rows: %w", err)
	}

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

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE display_queue SET scheduled_time = ? WHERE id = ?`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare schedule rewrite: %w", err)
	}
	defer stmt.Close()

	for i, entry := range reordered {
		newTime := base.Add(time.Duration(i) * interval)
		if _, err := stmt.ExecContext(ctx, newTime, entry.ID); err != nil {
			return nil, fmt.Errorf("failed to rewrite schedule for entry %d: %w", entry.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reorder: %w", err)
	}

	return r.PendingQueueEntries(ctx, 0)
}

// DeleteDisplayedBefore removes displayed entries whose display_time is
// older than cutoff. Pending entries are never touched.
func (r *Repository) DeleteDisplayedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM display_queue WHERE displayed = 1 AND display_time < ?`,
		cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up queue: %w", err)
	}
	return result.RowsAffected()
}

func (r *Repository) DeleteQueueEntriesByMedia(ctx context.Context, mediaID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM display_queue WHERE media_id = ?`, mediaID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete entries for media %d: %w", mediaID, err)
	}
	return result.RowsAffected()
}

func (r *Repository) QueueStats(ctx context.Context) (*models.QueueStats, error) {
	query := `SELECT
		COUNT(*) AS total_items,
		COALESCE(SUM(CASE WHEN displayed = 1 THEN 1 ELSE 0 END), 0) AS displayed_items,
		COALESCE(SUM(CASE WHEN displayed = 0 THEN 1 ELSE 0 END), 0) AS pending_items,
		MIN(CASE WHEN displayed = 0 THEN scheduled_time END) AS next_display_time,
		MAX(display_time) AS last_display_time
		FROM display_queue`

	var (
		stats    models.QueueStats
		nextTime sql.NullTime
		lastTime sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalItems,
		&stats.DisplayedItems,
		&stats.PendingItems,
		&nextTime,
		&lastTime,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query queue stats: %w", err)
	}

	if nextTime.Valid {
		stats.NextDisplayTime = &nextTime.Time
	}
	if lastTime.Valid {
		stats.LastDisplayTime = &lastTime.Time
	}

	return &stats, nil
}

// EntryBefore returns the entry immediately preceding the given one in full
// display order, displayed entries included. sql.ErrNoRows when the entry is
// already the first.
func (r *Repository) EntryBefore(ctx context.Context, entry *models.QueueEntry) (*models.QueueEntry, error) {
	query := `SELECT ` + queueEntryColumns + `
		FROM display_queue q
		LEFT JOIN media m ON q.media_id = m.id
		WHERE q.scheduled_time < ?
		   OR (q.scheduled_time = ? AND q.id < ?)
		ORDER BY q.scheduled_time DESC, q.id DESC
		LIMIT 1`

	prev, err := scanQueueEntry(r.db.QueryRowContext(ctx, query,
		entry.ScheduledTime, entry.ScheduledTime, entry.ID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan preceding entry: %w", err)
	}
	return prev, nil
}

// PendingEntryAfter returns the next non-displayed entry following the given
// one in display order. sql.ErrNoRows when nothing is queued after it.
func (r *Repository) PendingEntryAfter(ctx context.Context, entry *models.QueueEntry) (*models.QueueEntry, error) {
	query := `SELECT ` + queueEntryColumns + `
		FROM display_queue q
		LEFT JOIN media m ON q.media_id = m.id
		WHERE q.displayed = 0
		  AND (q.scheduled_time > ?
		   OR (q.scheduled_time = ? AND q.id > ?))
		ORDER BY q.scheduled_time ASC, q.id ASC
		LIMIT 1`

	next, err := scanQueueEntry(r.db.QueryRowContext(ctx, query,
		entry.ScheduledTime, entry.ScheduledTime, entry.ID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan following entry: %w", err)
	}
	return next, nil
}

func (r *Repository) MediaByID(ctx context.Context, id int64) (*models.Media, error) {
	query := `SELECT id, user_id, filename, original_name, type, size, caption,
		category_id, display_count, is_favorite, created_at, updated_at
		FROM media WHERE id = ?`

	var (
		media      models.Media
		caption    sql.NullString
		categoryID sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&media.ID,
		&media.UserID,
		&media.Filename,
		&media.OriginalName,
		&media.Type,
		&media.Size,
		&caption,
		&categoryID,
		&media.DisplayCount,
		&media.IsFavorite,
		&media.CreatedAt,
		&media.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan media: %w", err)
	}

	media.Caption = caption.String
	if categoryID.Valid {
		media.CategoryID = &categoryID.Int64
	}
	media.URLs = models.GenerateURLs(media.Filename)

	return &media, nil
}

func (r *Repository) MediaExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM media WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check media existence: %w", err)
	}
	return exists, nil
}

func (r *Repository) IncrementMediaDisplayCount(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE media SET display_count = display_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to increment display count: %w", err)
	}
	return nil
}

func (r *Repository) CreateMedia(ctx context.Context, media *models.Media) (*models.Media, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO media (user_id, filename, original_name, type, size, caption, category_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		media.UserID,
		media.Filename,
		media.OriginalName,
		media.Type,
		media.Size,
		sql.NullString{String: media.Caption, Valid: media.Caption != ""},
		media.CategoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert media: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get media id: %w", err)
	}

	return r.MediaByID(ctx, id)
}

// DeleteMedia removes a media row and cascades to every queue entry
// referencing it in one transaction.
func (r *Repository) DeleteMedia(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM display_queue WHERE media_id = ?`, id); err != nil {
		return fmt.Errorf("failed to cascade queue entries: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM media WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete media: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return tx.Commit()
}
