package anticheat

import "math"

// Domain bounds for a trustworthy record.
const (
	MaxWPM         = 500
	MinDurationSec = 300
	MaxDurationSec = 400

	// scoreTolerance is the relative slack around the recomputed score;
	// the absolute slack never drops below one point.
	scoreTolerance = 0.05
)

// Integrity sub-check identifiers, reported in check order so tests can
// pin down which bound a submission violated.
const (
	IntegrityOK            = ""
	IntegrityScoreMismatch = "score_out_of_tolerance"
	IntegrityBadAccuracy   = "accuracy_out_of_range"
	IntegrityBadWPM        = "wpm_out_of_range"
	IntegrityBadDuration   = "duration_out_of_range"
)

// ExpectedScore recomputes the score the client should have derived:
// wpm weighted by accuracy squared, scaled to integer points.
func ExpectedScore(wpm int, accuracy float64) int {
	if wpm < 0 {
		wpm = 0
	}
	frac := accuracy / 100
	return int(math.Round(float64(wpm) * frac * frac * 100))
}

// ScoreTolerance is the admissible absolute deviation from expected.
func ScoreTolerance(expected int) float64 {
	tol := float64(expected) * scoreTolerance
	if tol < 1 {
		tol = 1
	}
	return tol
}

// VerifyIntegrity recomputes the score and checks every reported metric
// against its domain. The returned string names the first failing
// sub-check, or IntegrityOK.
func VerifyIntegrity(wpm int, accuracy float64, score, durationSec int) (bool, string) {
	expected := ExpectedScore(wpm, accuracy)
	if math.Abs(float64(score-expected)) > ScoreTolerance(expected) {
		return false, IntegrityScoreMismatch
	}
	if accuracy < 0 || accuracy > 100 {
		return false, IntegrityBadAccuracy
	}
	if wpm < 0 || wpm > MaxWPM {
		return false, IntegrityBadWPM
	}
	if durationSec < MinDurationSec || durationSec > MaxDurationSec {
		return false, IntegrityBadDuration
	}
	return true, IntegrityOK
}
