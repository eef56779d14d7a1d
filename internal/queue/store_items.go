package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// NewClipParams carries the discovery metadata for enqueueing one clip.
type NewClipParams struct {
	SourcePath  string
	Title       string
	Label       string
	Split       string
	Fingerprint string
}

// NewClip inserts a new item for a discovered video clip awaiting frame extraction.
func (s *Store) NewClip(ctx context.Context, params NewClipParams) (*Item, error) {
	if strings.TrimSpace(params.SourcePath) == "" {
		return nil, errors.New("source path required")
	}
	if strings.TrimSpace(params.Fingerprint) == "" {
		return nil, errors.New("fingerprint required")
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO queue_items (
            source_path, title, label, split, fingerprint, status,
            created_at, updated_at, progress_stage, progress_percent, progress_message
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		params.SourcePath,
		nullableString(params.Title),
		nullableString(params.Label),
		nullableString(params.Split),
		params.Fingerprint,
		StatusPending,
		timestamp,
		timestamp,
		nil,
		0.0,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("insert clip: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a queue item by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// FindByFingerprint returns the first item matching a fingerprint.
func (s *Store) FindByFingerprint(ctx context.Context, fingerprint string) (*Item, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+itemColumns+` FROM queue_items WHERE fingerprint = ? ORDER BY id LIMIT 1`,
		fingerprint,
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by fingerprint: %w", err)
	}
	return item, nil
}

// Update persists changes to an existing queue item.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()
	_, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
         SET source_path = ?, title = ?, label = ?, split = ?, fingerprint = ?,
             status = ?, duration_seconds = ?, sample_rate = ?, frame_dir = ?,
             frame_count = ?, feature_file = ?, error_message = ?, updated_at = ?,
             progress_stage = ?, progress_percent = ?, progress_message = ?,
             last_heartbeat = ?, needs_review = ?, review_reason = ?
         WHERE id = ?`,
		nullableString(item.SourcePath),
		nullableString(item.Title),
		nullableString(item.Label),
		nullableString(item.Split),
		nullableString(item.Fingerprint),
		item.Status,
		item.DurationSeconds,
		item.SampleRate,
		nullableString(item.FrameDir),
		item.FrameCount,
		nullableString(item.FeatureFile),
		nullableString(item.ErrorMessage),
		item.UpdatedAt.Format(time.RFC3339Nano),
		nullableString(item.ProgressStage),
		item.ProgressPercent,
		nullableString(item.ProgressMessage),
		nullableTime(item.LastHeartbeat),
		boolToInt(item.NeedsReview),
		nullableString(item.ReviewReason),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// UpdateProgress persists only the status and progress fields of an item.
// Unlike Update it leaves last_heartbeat untouched so in-flight heartbeat
// tracking survives frequent progress writes.
func (s *Store) UpdateProgress(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()
	_, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
         SET status = ?, progress_stage = ?, progress_percent = ?, progress_message = ?, updated_at = ?
         WHERE id = ?`,
		item.Status,
		nullableString(item.ProgressStage),
		item.ProgressPercent,
		nullableString(item.ProgressMessage),
		item.UpdatedAt.Format(time.RFC3339Nano),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// ItemsByStatus returns items matching a status ordered by creation time.
func (s *Store) ItemsByStatus(ctx context.Context, status Status) ([]*Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE status = ? ORDER BY created_at, id`, status)
	if err != nil {
		return nil, fmt.Errorf("query by status: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// ItemsBySplit returns items belonging to a dataset split ordered by source path.
// The ordering matches dataset feature-set assembly so queue listings and
// tensor rows line up.
func (s *Store) ItemsBySplit(ctx context.Context, split string) ([]*Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE split = ? ORDER BY source_path`, split)
	if err != nil {
		return nil, fmt.Errorf("query by split: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// List returns queue items filtered by status set (or all items when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + itemColumns + ` FROM queue_items`
	orderClause := ` ORDER BY created_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// NextForStatuses returns the oldest item matching any of the provided statuses.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Item, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}

	query := `SELECT ` + itemColumns + ` FROM queue_items WHERE status IN (` + placeholders + `) ORDER BY created_at, id LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, args...)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Remove deletes an item by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func collectItems(rows *sql.Rows) ([]*Item, error) {
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

const itemColumns = "id, source_path, title, label, split, fingerprint, status, duration_seconds, sample_rate, frame_dir, frame_count, feature_file, error_message, created_at, updated_at, progress_stage, progress_percent, progress_message, last_heartbeat, needs_review, review_reason"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id               int64
		sourcePath       sql.NullString
		title            sql.NullString
		label            sql.NullString
		split            sql.NullString
		fingerprint      sql.NullString
		statusStr        string
		durationSeconds  sql.NullFloat64
		sampleRate       sql.NullFloat64
		frameDir         sql.NullString
		frameCount       sql.NullInt64
		featureFile      sql.NullString
		errorMessage     sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		progressStage    sql.NullString
		progressPercent  sql.NullFloat64
		progressMessage  sql.NullString
		lastHeartbeatRaw sql.NullString
		needsReview      sql.NullInt64
		reviewReason     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sourcePath,
		&title,
		&label,
		&split,
		&fingerprint,
		&statusStr,
		&durationSeconds,
		&sampleRate,
		&frameDir,
		&frameCount,
		&featureFile,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&lastHeartbeatRaw,
		&needsReview,
		&reviewReason,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:              id,
		SourcePath:      sourcePath.String,
		Title:           title.String,
		Label:           label.String,
		Split:           split.String,
		Fingerprint:     fingerprint.String,
		Status:          Status(statusStr),
		DurationSeconds: durationSeconds.Float64,
		SampleRate:      sampleRate.Float64,
		FrameDir:        frameDir.String,
		FrameCount:      int(frameCount.Int64),
		FeatureFile:     featureFile.String,
		ErrorMessage:    errorMessage.String,
		ProgressStage:   progressStage.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
		ReviewReason:    reviewReason.String,
	}
	if needsReview.Valid {
		item.NeedsReview = needsReview.Int64 != 0
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			item.LastHeartbeat = &heartbeat
		}
	}
	return item, nil
}
