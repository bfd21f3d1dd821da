package services

import (
	"context"
	"database/sql"
	"fmt"

	"typingclass/internal/models"
)

// Leaderboard paging bounds.
const (
	MaxPageLimit     = 10000
	DefaultPageLimit = 10
)

// rankOrder is the single composite comparator behind every leaderboard
// read. Earlier submissions rank higher among exact ties.
const rankOrder = `score DESC, accuracy DESC, wpm DESC, created_at ASC, id ASC`

type RecordService struct {
	db *sql.DB
}

func NewRecordService(db *sql.DB) *RecordService {
	return &RecordService{db: db}
}

// InitSchema creates the records table when it does not exist yet.
func (s *RecordService) InitSchema(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS records (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		student_id VARCHAR(20) NOT NULL,
		mode VARCHAR(10) NOT NULL,
		wpm INT NOT NULL,
		accuracy DOUBLE NOT NULL,
		score INT NOT NULL,
		duration_sec INT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_mode_rank (mode, score DESC, accuracy DESC, wpm DESC),
		INDEX idx_student_id (student_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create records table: %w", err)
	}
	return nil
}

// Seed inserts a few demo rows when the table is empty.
func (s *RecordService) Seed(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count records: %w", err)
	}
	if count > 0 {
		return nil
	}

	seeds := []models.Record{
		{StudentID: "10130 홍길동", Mode: models.ModePositional, WPM: 45, Accuracy: 92.5, Score: 3850, DurationSec: 300},
		{StudentID: "10215 김영희", Mode: models.ModePositional, WPM: 38, Accuracy: 96.0, Score: 3502, DurationSec: 300},
		{StudentID: "10302 박철수", Mode: models.ModePositional, WPM: 52, Accuracy: 89.2, Score: 4137, DurationSec: 300},
	}
	for _, r := range seeds {
		if _, err := s.Insert(ctx, &r); err != nil {
			return err
		}
	}
	return nil
}

// Insert persists one record and returns its assigned id. created_at is
// server-assigned by the database.
func (s *RecordService) Insert(ctx context.Context, rec *models.Record) (int64, error) {
	query := `INSERT INTO records (student_id, mode, wpm, accuracy, score, duration_sec)
		VALUES (?, ?, ?, ?, ?, ?)`

	res, err := s.db.ExecContext(ctx, query,
		rec.StudentID, string(rec.Mode), rec.WPM, rec.Accuracy, rec.Score, rec.DurationSec)
	if err != nil {
		return 0, fmt.Errorf("failed to insert record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted id: %w", err)
	}
	return id, nil
}

// TopByMode returns the best n records for a mode in rank order.
func (s *RecordService) TopByMode(ctx context.Context, mode models.Mode, n int) ([]models.Record, error) {
	n = ClampLimit(n)

	query := `SELECT id, student_id, mode, wpm, accuracy, score, duration_sec, created_at
		FROM records WHERE mode = ? ORDER BY ` + rankOrder + ` LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, string(mode), n)
	if err != nil {
		return nil, fmt.Errorf("failed to query top records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Page returns one page of the mode's leaderboard plus the total count.
func (s *RecordService) Page(ctx context.Context, mode models.Mode, limit, offset int) ([]models.Record, int, error) {
	limit = ClampLimit(limit)
	offset = ClampOffset(offset)

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE mode = ?`, string(mode)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count records: %w", err)
	}

	query := `SELECT id, student_id, mode, wpm, accuracy, score, duration_sec, created_at
		FROM records WHERE mode = ? ORDER BY ` + rankOrder + ` LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, string(mode), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query records page: %w", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// Stats aggregates over the whole table, independent of mode.
func (s *RecordService) Stats(ctx context.Context) (*models.Stats, error) {
	var stats models.Stats

	query := `SELECT COUNT(DISTINCT student_id), COUNT(*),
		COALESCE(AVG(wpm), 0), COALESCE(AVG(accuracy), 0) FROM records`

	err := s.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalStudents, &stats.TotalRecords, &stats.AvgWPM, &stats.AvgAccuracy)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	return &stats, nil
}

// Ping is the connectivity probe used by the health endpoint.
func (s *RecordService) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("database probe failed: %w", err)
	}
	return nil
}

func scanRecords(rows *sql.Rows) ([]models.Record, error) {
	records := []models.Record{}
	for rows.Next() {
		var r models.Record
		var mode string
		if err := rows.Scan(&r.ID, &r.StudentID, &mode, &r.WPM, &r.Accuracy,
			&r.Score, &r.DurationSec, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		r.Mode = models.Mode(mode)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return records, nil
}

// ClampLimit forces a page size into [1, MaxPageLimit]. Absent parameters
// get DefaultPageLimit at the handler, before clamping.
func ClampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > MaxPageLimit {
		return MaxPageLimit
	}
	return limit
}

// ClampOffset forbids negative offsets.
func ClampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

// HasMore reports whether another page exists past offset+limit.
func HasMore(offset, limit, total int) bool {
	return offset+limit < total
}
