package detection

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Store is the rolling detection record store backed by SQLite.
//
// Insert and TrimToLatest are each a single atomic unit (one statement
// or one transaction), so concurrent requests cannot corrupt the row
// set: ids stay unique and monotonic under SQLite's single-writer model.
type Store struct {
	db *sql.DB
}

// NewStore creates a detection store on an open SQLite connection.
// The detections table must already exist (see migrations).
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert appends a new detection record with the current timestamp.
//
// The image file backing imagePath may not exist (frame writes are
// best-effort); the path is logged regardless.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - imagePath: URL path of the stored frame
//   - isCat: Classification outcome
//   - message: Diagnostic text, empty for none (stored as NULL)
//
// Returns:
//   - int64: The assigned record id
//   - error: nil on success, otherwise the underlying database error
func (s *Store) Insert(ctx context.Context, imagePath string, isCat bool, message string) (int64, error) {
	var msg sql.NullString
	if message != "" {
		msg = sql.NullString{String: message, Valid: true}
	}

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO detections (ts, image_path, is_cat, message) VALUES (?, ?, ?, ?)",
		time.Now().UTC().Format(time.RFC3339),
		imagePath,
		boolToInt(isCat),
		msg,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting detection: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading insert id: %w", err)
	}
	return id, nil
}

// ListRecent returns up to limit records, newest first (descending id).
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ts, image_path, is_cat, message
		 FROM detections
		 ORDER BY id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying detections: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0, limit)
	for rows.Next() {
		var rec Record
		var ts string
		var isCat int
		var msg sql.NullString

		if err := rows.Scan(&rec.ID, &ts, &rec.ImagePath, &isCat, &msg); err != nil {
			return nil, fmt.Errorf("scanning detection: %w", err)
		}

		timestamp, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing ts: %w", err)
		}
		rec.Timestamp = timestamp
		rec.IsCat = isCat != 0
		rec.Message = msg.String

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating detections: %w", err)
	}
	return records, nil
}

// TrimToLatest deletes every record outside the window of the limit
// highest ids, in one transaction, and returns the removed rows'
// identifying info so the caller can unlink their files.
//
// The store only guarantees row removal: file deletion is the caller's
// responsibility and must tolerate already-missing files silently.
func (s *Store) TrimToLatest(ctx context.Context, limit int) ([]Removed, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting trim transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	rows, err := tx.QueryContext(ctx,
		`SELECT id, image_path FROM detections
		 WHERE id NOT IN (SELECT id FROM detections ORDER BY id DESC LIMIT ?)`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("selecting rows to trim: %w", err)
	}

	var removed []Removed
	for rows.Next() {
		var r Removed
		if err := rows.Scan(&r.ID, &r.ImagePath); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning trim row: %w", err)
		}
		removed = append(removed, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating trim rows: %w", err)
	}
	rows.Close()

	if len(removed) == 0 {
		return nil, tx.Commit()
	}

	placeholders := make([]string, len(removed))
	args := make([]any, len(removed))
	for i, r := range removed {
		placeholders[i] = "?"
		args[i] = r.ID
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM detections WHERE id IN ("+strings.Join(placeholders, ",")+")",
		args...,
	); err != nil {
		return nil, fmt.Errorf("deleting trimmed rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing trim: %w", err)
	}
	return removed, nil
}

// Count returns the total number of detection rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM detections").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting detections: %w", err)
	}
	return count, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
