package anticheat

import "net/http"

// Reason identifies why a submission was rejected. The first failing check
// in the pipeline determines the reason; later checks never run.
type Reason string

const (
	ReasonUnauthenticated    Reason = "unauthenticated"
	ReasonTokenMismatch      Reason = "token_mismatch"
	ReasonMalformedInput     Reason = "malformed_input"
	ReasonInvalidIdentifier  Reason = "invalid_identifier"
	ReasonInvalidMode        Reason = "invalid_mode"
	ReasonModeMismatch       Reason = "mode_mismatch"
	ReasonTimingAnomaly      Reason = "timing_anomaly"
	ReasonTooShort           Reason = "too_short"
	ReasonRateLimited        Reason = "rate_limited"
	ReasonIntegrityViolation Reason = "integrity_violation"
	ReasonStorageFailure     Reason = "storage_failure"
)

var reasonMessages = map[Reason]string{
	ReasonUnauthenticated:    "No active practice session. Start a practice first.",
	ReasonTokenMismatch:      "Practice token is invalid or already used.",
	ReasonMalformedInput:     "Request is missing fields or has wrong field types.",
	ReasonInvalidIdentifier:  "Student ID must look like \"10218 홍길동\".",
	ReasonInvalidMode:        "Unknown practice mode.",
	ReasonModeMismatch:       "Submitted mode does not match the practice session.",
	ReasonTimingAnomaly:      "Claimed duration does not match elapsed time.",
	ReasonTooShort:           "Records can only be saved after the full 5 minutes.",
	ReasonRateLimited:        "Too many submissions. Try again later.",
	ReasonIntegrityViolation: "Score does not match the reported speed and accuracy.",
	ReasonStorageFailure:     "A server error occurred.",
}

// Message is the human-readable line returned to the client.
func (r Reason) Message() string {
	if msg, ok := reasonMessages[r]; ok {
		return msg
	}
	return "Submission rejected."
}

// StatusCode maps the reason onto its HTTP status class: auth failures are
// 401, the rate limit is 429, storage trouble is 500, everything else is a
// plain validation 400.
func (r Reason) StatusCode() int {
	switch r {
	case ReasonUnauthenticated, ReasonTokenMismatch:
		return http.StatusUnauthorized
	case ReasonRateLimited:
		return http.StatusTooManyRequests
	case ReasonStorageFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
