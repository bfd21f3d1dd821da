package models

import (
	"regexp"
	"strings"
	"time"
)

// studentIDPattern: five-digit class number, a space, then a 2-4 syllable
// Hangul name, e.g. "10218 홍길동".
var studentIDPattern = regexp.MustCompile(`^\d{5}\s[가-힣]{2,4}$`)

// ValidStudentID reports whether s (after trimming) is a well-formed
// "number name" student identifier.
func ValidStudentID(s string) bool {
	return studentIDPattern.MatchString(strings.TrimSpace(s))
}

// Record is one persisted practice result.
type Record struct {
	ID          int64     `json:"id" db:"id"`
	StudentID   string    `json:"student_id" db:"student_id"`
	Mode        Mode      `json:"mode" db:"mode"`
	WPM         int       `json:"wpm" db:"wpm"`
	Accuracy    float64   `json:"accuracy" db:"accuracy"`
	Score       int       `json:"score" db:"score"`
	DurationSec int       `json:"duration_sec" db:"duration_sec"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// RankLess orders records the way the leaderboard does: score desc,
// accuracy desc, wpm desc, then created_at asc so earlier submissions win
// exact ties.
func RankLess(a, b Record) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Accuracy != b.Accuracy {
		return a.Accuracy > b.Accuracy
	}
	if a.WPM != b.WPM {
		return a.WPM > b.WPM
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// Submission is the POST /api/records payload. Numeric fields are pointers
// so that an absent field is distinguishable from a legitimate zero.
type Submission struct {
	StudentID     *string  `json:"student_id" validate:"required"`
	Mode          *string  `json:"mode" validate:"required"`
	WPM           *int     `json:"wpm" validate:"required"`
	Accuracy      *float64 `json:"accuracy" validate:"required"`
	Score         *int     `json:"score" validate:"required"`
	DurationSec   *int     `json:"duration_sec" validate:"required"`
	PracticeToken *string  `json:"practice_token"`
}

// Token returns the submitted practice token, or "" when absent.
func (s *Submission) Token() string {
	if s == nil || s.PracticeToken == nil {
		return ""
	}
	return *s.PracticeToken
}

// Stats are the whole-table aggregates served by /api/records/stats.
type Stats struct {
	TotalStudents int     `json:"total_students"`
	TotalRecords  int     `json:"total_records"`
	AvgWPM        float64 `json:"avg_wpm"`
	AvgAccuracy   float64 `json:"avg_accuracy"`
}

// Pagination is the metadata block of a paged leaderboard response.
type Pagination struct {
	Limit        int  `json:"limit"`
	Offset       int  `json:"offset"`
	Total        int  `json:"total"`
	HasMore      bool `json:"has_more"`
	CurrentCount int  `json:"current_count"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Database  string `json:"database"`
	Redis     string `json:"redis"`
}
