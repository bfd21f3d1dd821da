package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"typingclass/internal/anticheat"
	appmetrics "typingclass/internal/metrics"
	"typingclass/internal/models"
	"typingclass/internal/services"
	"typingclass/internal/session"
)

const (
	sessionCookie = "typing_sid"
	statsCacheKey = "record_stats"
)

// RecordStore is what the handlers need from the persistence layer;
// *services.RecordService satisfies it.
type RecordStore interface {
	Insert(ctx context.Context, rec *models.Record) (int64, error)
	TopByMode(ctx context.Context, mode models.Mode, n int) ([]models.Record, error)
	Page(ctx context.Context, mode models.Mode, limit, offset int) ([]models.Record, int, error)
	Stats(ctx context.Context) (*models.Stats, error)
	Ping(ctx context.Context) error
}

type Handler struct {
	records     RecordStore
	sessions    session.Store
	pipeline    *anticheat.Pipeline
	redisClient *redis.Client
	statsTTL    time.Duration
}

func NewHandler(
	records RecordStore,
	sessions session.Store,
	pipeline *anticheat.Pipeline,
	redisClient *redis.Client,
	statsTTL time.Duration,
) *Handler {
	return &Handler{
		records:     records,
		sessions:    sessions,
		pipeline:    pipeline,
		redisClient: redisClient,
		statsTTL:    statsTTL,
	}
}

func (h *Handler) HealthCheck(c echo.Context) error {
	ctx := c.Request().Context()

	dbStatus := "healthy"
	if err := h.records.Ping(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if err := h.redisClient.Ping(ctx).Err(); err != nil {
		redisStatus = "unhealthy"
	}

	status := "healthy"
	if dbStatus != "healthy" || redisStatus != "healthy" {
		status = "unhealthy"
	}

	return c.JSON(http.StatusOK, models.HealthResponse{
		Status:    status,
		Timestamp: time.Now().Format(time.RFC3339),
		Database:  dbStatus,
		Redis:     redisStatus,
	})
}

// StartPractice issues a fresh practice session for the requested mode and
// hands the one-time token to the client. Any in-flight session for the
// same client is overwritten.
func (h *Handler) StartPractice(c echo.Context) error {
	mode, ok := models.ParseMode(c.Param("mode"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown practice mode")
	}

	sid := h.ensureSessionID(c)
	ps, err := h.sessions.Issue(c.Request().Context(), sid, mode)
	if err != nil {
		log.Printf("failed to issue practice session: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to start practice")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":        true,
		"mode":           mode,
		"practice_token": ps.Token,
	})
}

// GetPracticeText serves a uniformly random text for the mode.
func (h *Handler) GetPracticeText(c echo.Context) error {
	mode, ok := models.ParseMode(c.Param("mode"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown practice mode")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"mode":    mode,
		"text":    services.PracticeText(mode),
	})
}

// CreateRecord runs the submission pipeline and persists the record when
// every check passes. The practice token is consumed exactly once.
func (h *Handler) CreateRecord(c echo.Context) error {
	ctx := c.Request().Context()
	appmetrics.SubmissionsTotal.Inc()

	var sub models.Submission
	if err := c.Bind(&sub); err != nil {
		return h.reject(c, &anticheat.Rejection{Reason: anticheat.ReasonMalformedInput})
	}

	// Resolve the caller's practice session, if any.
	var sess *session.PracticeSession
	sid := h.sessionID(c)
	if sid != "" {
		var err error
		sess, err = h.sessions.Get(ctx, sid)
		if err != nil {
			log.Printf("failed to read practice session %s: %v", sid, err)
			return h.reject(c, &anticheat.Rejection{Reason: anticheat.ReasonStorageFailure})
		}
	}

	clientIP := c.RealIP()
	if rej := h.pipeline.Check(&sub, sess, clientIP); rej != nil {
		return h.reject(c, rej)
	}

	// Soft signal only: a foreign Referer is logged, never blocked on.
	if ref := c.Request().Referer(); ref != "" {
		if u, err := url.Parse(ref); err == nil && u.Host != "" && u.Host != c.Request().Host {
			log.Printf("warning: record submission with foreign referer %q from %s", ref, clientIP)
		}
	}

	// Consume the token. A concurrent submission that lost the race sees
	// the session already gone and is turned away here.
	claimed, err := h.sessions.Claim(ctx, sid)
	if err != nil {
		log.Printf("failed to claim practice session %s: %v", sid, err)
		return h.reject(c, &anticheat.Rejection{Reason: anticheat.ReasonStorageFailure})
	}
	if claimed == nil || claimed.Token != sub.Token() {
		return h.reject(c, &anticheat.Rejection{Reason: anticheat.ReasonTokenMismatch})
	}

	rec := &models.Record{
		StudentID:   strings.TrimSpace(*sub.StudentID),
		Mode:        claimed.Mode,
		WPM:         *sub.WPM,
		Accuracy:    *sub.Accuracy,
		Score:       *sub.Score,
		DurationSec: *sub.DurationSec,
	}

	dbStart := time.Now()
	id, err := h.records.Insert(ctx, rec)
	appmetrics.DBWriteDurationSeconds.Observe(time.Since(dbStart).Seconds())
	if err != nil {
		log.Printf("failed to persist record for student=%s ip=%s: %v", rec.StudentID, clientIP, err)
		return h.reject(c, &anticheat.Rejection{Reason: anticheat.ReasonStorageFailure})
	}

	appmetrics.RecordsInsertedTotal.Inc()
	log.Printf("record accepted: student=%s mode=%s score=%d ip=%s", rec.StudentID, rec.Mode, rec.Score, clientIP)

	// Aggregates changed; drop the cached stats (best-effort).
	_ = h.redisClient.Del(ctx, statsCacheKey).Err()

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "record saved",
		"id":      id,
	})
}

// GetTopRecords serves the top of one mode's leaderboard.
func (h *Handler) GetTopRecords(c echo.Context) error {
	appmetrics.LeaderboardRequestsTotal.Inc()

	mode, ok := queryMode(c)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown practice mode")
	}
	limit := queryInt(c, "limit", services.DefaultPageLimit)

	records, err := h.records.TopByMode(c.Request().Context(), mode, limit)
	if err != nil {
		log.Printf("failed to query top records: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load leaderboard")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"mode":    mode,
		"records": records,
		"total":   len(records),
	})
}

// GetRecords serves one page of a mode's leaderboard with pagination
// metadata.
func (h *Handler) GetRecords(c echo.Context) error {
	appmetrics.LeaderboardRequestsTotal.Inc()

	mode, ok := queryMode(c)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown practice mode")
	}
	limit := services.ClampLimit(queryInt(c, "limit", services.DefaultPageLimit))
	offset := services.ClampOffset(queryInt(c, "offset", 0))

	records, total, err := h.records.Page(c.Request().Context(), mode, limit, offset)
	if err != nil {
		log.Printf("failed to query records page: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load records")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"mode":    mode,
		"records": records,
		"pagination": models.Pagination{
			Limit:        limit,
			Offset:       offset,
			Total:        total,
			HasMore:      services.HasMore(offset, limit, total),
			CurrentCount: len(records),
		},
	})
}

// GetStats serves whole-table aggregates, cached in Redis for a short TTL.
func (h *Handler) GetStats(c echo.Context) error {
	ctx := c.Request().Context()
	appmetrics.LeaderboardRequestsTotal.Inc()

	if cached, err := h.redisClient.Get(ctx, statsCacheKey).Bytes(); err == nil {
		return c.JSONBlob(http.StatusOK, cached)
	}

	stats, err := h.records.Stats(ctx)
	if err != nil {
		log.Printf("failed to query stats: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load stats")
	}

	body, err := json.Marshal(map[string]interface{}{
		"success":        true,
		"total_students": stats.TotalStudents,
		"total_records":  stats.TotalRecords,
		"avg_wpm":        stats.AvgWPM,
		"avg_accuracy":   stats.AvgAccuracy,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to encode stats")
	}

	_ = h.redisClient.Set(ctx, statsCacheKey, body, h.statsTTL).Err()

	return c.JSONBlob(http.StatusOK, body)
}

// reject converts a pipeline rejection into the client-facing error body
// and bumps the per-reason counter.
func (h *Handler) reject(c echo.Context, rej *anticheat.Rejection) error {
	appmetrics.SubmissionsRejectedTotal.WithLabelValues(string(rej.Reason)).Inc()
	if rej.Reason == anticheat.ReasonRateLimited {
		appmetrics.RateLimitDroppedTotal.Inc()
	}

	return c.JSON(rej.Reason.StatusCode(), map[string]interface{}{
		"error":  rej.Reason.Message(),
		"reason": string(rej.Reason),
	})
}

// sessionID returns the caller's session cookie value, or "".
func (h *Handler) sessionID(c echo.Context) string {
	cookie, err := c.Cookie(sessionCookie)
	if err != nil || cookie.Value == "" {
		return ""
	}
	return cookie.Value
}

// ensureSessionID returns the caller's session id, minting the cookie on
// first contact.
func (h *Handler) ensureSessionID(c echo.Context) string {
	if sid := h.sessionID(c); sid != "" {
		return sid
	}

	sid := uuid.NewString()
	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sid
}

func queryMode(c echo.Context) (models.Mode, bool) {
	raw := c.QueryParam("mode")
	if raw == "" {
		return models.DefaultMode, true
	}
	return models.ParseMode(raw)
}

func queryInt(c echo.Context, name string, fallback int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
