package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kalambet/stagelog/internal/backup"
	"github.com/kalambet/stagelog/internal/metrics"
	"github.com/kalambet/stagelog/internal/settings"
	"github.com/kalambet/stagelog/internal/shows"
	"github.com/kalambet/stagelog/internal/summary"
)

const maxRequestBodySize = 1 << 20 // 1MB
const maxTicketBodySize = 10 << 20 // 10MB

// Records embed poster and seat photos as data URLs.
const maxRecordBodySize = 2 * maxTicketBodySize

type AppDeps struct {
	Shows      *shows.Service
	Settings   *settings.Manager
	Summarizer *summary.Summarizer // optional; nil answers with the missing key hint
	Backup     *backup.Service     // optional; nil makes /backup return 503
	Jobs       MirrorJobs          // optional; nil reports the mirror as disabled
	Metrics    *metrics.Metrics    // optional
	Logger     *zap.Logger
	Token      string

	// MirrorReader serves /mirror/shows for MirrorUserID; nil makes it 503.
	MirrorReader MirrorReader
	MirrorUserID string
}

// NewAppHandler returns the journal HTTP API. /health and /metrics are open;
// everything else requires the bearer token.
func NewAppHandler(deps AppDeps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Summarizer == nil {
		deps.Summarizer = summary.New(nil, deps.Logger, deps.Metrics)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(instrument(deps.Metrics, deps.Logger))

	r.Get("/health", handleHealth)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/shows", handleListShows(deps))
		r.Post("/shows", handleCreateShow(deps))
		r.Delete("/shows", handleClearShows(deps))
		r.Get("/shows/upcoming", handleUpcoming(deps))
		r.Get("/shows/history", handleHistory(deps))
		r.Get("/shows/{id}", handleGetShow(deps))
		r.Put("/shows/{id}", handleUpdateShow(deps))
		r.Delete("/shows/{id}", handleDeleteShow(deps))

		r.Get("/search", handleSearch(deps))
		r.Get("/stats", handleStats(deps))
		r.Get("/badges", handleBadges(deps))
		r.Get("/calendar", handleCalendar(deps))
		r.Get("/summary", handleSummary(deps))

		r.Post("/tickets/parse", handleParseTicket(deps))
		r.Get("/venues", handleVenues)

		r.Get("/settings", handleGetSettings(deps))
		r.Patch("/settings", handlePatchSettings(deps))

		r.Get("/export", handleExport(deps))
		r.Post("/backup", handleBackup(deps))
		r.Get("/backups", handleListBackups(deps))
		r.Get("/mirror/status", handleMirrorStatus(deps))
		r.Post("/mirror/retry", handleMirrorRetry(deps))
		r.Get("/mirror/shows", handleListMirrored(deps))
		r.Get("/mirror/shows/{id}", handleGetMirrored(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// instrument records request counts and latency by route pattern.
func instrument(m *metrics.Metrics, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)
			if m != nil {
				m.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
				m.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
			}
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", status),
				zap.Duration("duration", elapsed))
		})
	}
}
