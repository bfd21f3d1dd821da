// Package anticheat decides whether a submitted practice result is
// trustworthy enough to persist. Checks run in a fixed order and the
// pipeline stops at the first failure, so cheap structural checks never
// let a malformed request touch the rate-limit ledger.
package anticheat

import (
	"time"

	"github.com/go-playground/validator/v10"

	"typingclass/internal/models"
	"typingclass/internal/session"
)

// MaxClockSkew bounds |elapsed - claimed duration|. Anything beyond it
// means the client tampered with the duration or replayed an old result.
const MaxClockSkew = 15 * time.Second

// Admitter is the rate-limit gate; ratelimit.Ledger implements it.
type Admitter interface {
	TryAdmit(studentID, clientIP string, now time.Time) bool
}

// Rejection carries the first failed check. A nil *Rejection means the
// submission passed the whole pipeline.
type Rejection struct {
	Reason Reason
	// Detail names the integrity sub-check for IntegrityViolation.
	Detail string
}

// Pipeline runs the ordered submission checks.
type Pipeline struct {
	ledger   Admitter
	validate *validator.Validate
	now      func() time.Time
}

func NewPipeline(ledger Admitter) *Pipeline {
	return &Pipeline{
		ledger:   ledger,
		validate: validator.New(),
		now:      time.Now,
	}
}

// NewPipelineAt is used by tests to pin the clock.
func NewPipelineAt(ledger Admitter, now func() time.Time) *Pipeline {
	p := NewPipeline(ledger)
	p.now = now
	return p
}

// Check validates sub against the caller's practice session and client IP.
// sess is nil when the caller holds no session. The rate-limit ledger is
// only mutated when every earlier check has passed.
func (p *Pipeline) Check(sub *models.Submission, sess *session.PracticeSession, clientIP string) *Rejection {
	// 1. Session presence
	if sess == nil {
		return &Rejection{Reason: ReasonUnauthenticated}
	}

	// 2. Token match (absent token never equals a real one)
	if sub == nil || sub.Token() != sess.Token {
		return &Rejection{Reason: ReasonTokenMismatch}
	}

	// 3. Field completeness
	if err := p.validate.Struct(sub); err != nil {
		return &Rejection{Reason: ReasonMalformedInput}
	}

	// 4. Identifier format
	if !models.ValidStudentID(*sub.StudentID) {
		return &Rejection{Reason: ReasonInvalidIdentifier}
	}

	// 5. Mode validity
	mode, ok := models.ParseMode(*sub.Mode)
	if !ok {
		return &Rejection{Reason: ReasonInvalidMode}
	}

	// 6. Mode consistency with the session
	if mode != sess.Mode {
		return &Rejection{Reason: ReasonModeMismatch}
	}

	now := p.now()
	duration := time.Duration(*sub.DurationSec) * time.Second

	// 7. Claimed duration must agree with wall-clock elapsed time
	drift := now.Sub(sess.StartedAt) - duration
	if drift < -MaxClockSkew || drift > MaxClockSkew {
		return &Rejection{Reason: ReasonTimingAnomaly}
	}

	// 8. Minimum practice duration
	if *sub.DurationSec < MinDurationSec {
		return &Rejection{Reason: ReasonTooShort}
	}

	// 9. Rate limit (mutates the ledger on admit)
	if !p.ledger.TryAdmit(*sub.StudentID, clientIP, now) {
		return &Rejection{Reason: ReasonRateLimited}
	}

	// 10. Score integrity
	if ok, detail := VerifyIntegrity(*sub.WPM, *sub.Accuracy, *sub.Score, *sub.DurationSec); !ok {
		return &Rejection{Reason: ReasonIntegrityViolation, Detail: detail}
	}

	return nil
}
