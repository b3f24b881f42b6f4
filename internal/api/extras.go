package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kalambet/stagelog/internal/backup"
	"github.com/kalambet/stagelog/internal/journal"
	"github.com/kalambet/stagelog/internal/mirror"
	"github.com/kalambet/stagelog/internal/settings"
	"github.com/kalambet/stagelog/internal/storage"
	"github.com/kalambet/stagelog/internal/ticket"
)

// handleParseTicket accepts either a PDF body or {"text": "..."} and
// returns the draft record it could read. Nothing is saved.
func handleParseTicket(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxTicketBodySize)
		defer r.Body.Close()
		year := deps.Shows.Today().Year()

		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if mediaType == "application/pdf" {
			data, err := io.ReadAll(r.Body)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "reading pdf: %v", err)
				return
			}
			draft, err := ticket.ParsePDF(data, year)
			if err != nil {
				httpError(w, http.StatusUnprocessableEntity, "invalid_request_error", "%v", err)
				return
			}
			writeJSON(w, http.StatusOK, draft)
			return
		}

		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Text == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "text is required")
			return
		}
		writeJSON(w, http.StatusOK, ticket.ParseText(req.Text, year))
	}
}

func handleVenues(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ticket.Venues())
}

func handleGetSettings(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := deps.Settings.Get()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get settings: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

// SettingsPatch changes the session. Theme may be "light", "dark" or
// "toggle". IsLoggedIn=false logs out; a Username logs in.
type SettingsPatch struct {
	Username   *string `json:"username"`
	IsLoggedIn *bool   `json:"isLoggedIn"`
	Theme      *string `json:"theme"`
}

func handlePatchSettings(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var patch SettingsPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		if err := applySettings(deps.Settings, patch); err != nil {
			if errors.Is(err, settings.ErrEmptyUsername) || errors.Is(err, errBadTheme) {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update settings: %v", err)
			return
		}

		s, err := deps.Settings.Get()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get settings: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

var errBadTheme = errors.New("invalid theme")

func applySettings(m *settings.Manager, p SettingsPatch) error {
	if p.IsLoggedIn != nil && !*p.IsLoggedIn {
		if _, err := m.Logout(); err != nil {
			return err
		}
	}
	if p.Username != nil {
		if _, err := m.Login(*p.Username); err != nil {
			return err
		}
	}
	if p.Theme != nil {
		if *p.Theme == "toggle" {
			_, err := m.ToggleTheme()
			return err
		}
		t, err := settings.ParseTheme(*p.Theme)
		if err != nil {
			return errors.Join(errBadTheme, err)
		}
		if _, err := m.SetTheme(t); err != nil {
			return err
		}
	}
	return nil
}

func handleExport(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := deps.Shows.Export(r.Context())
		if err != nil {
			serviceError(w, err, "export records")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="stagelog_records.json"`)
		w.Write(data)
	}
}

func handleBackup(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		obj, err := deps.Backup.Snapshot(r.Context())
		if errors.Is(err, backup.ErrDisabled) {
			httpError(w, http.StatusServiceUnavailable, "unavailable", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "backup failed: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, obj)
	}
}

func handleListBackups(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		objs, err := deps.Backup.List(r.Context())
		if errors.Is(err, backup.ErrDisabled) {
			httpError(w, http.StatusServiceUnavailable, "unavailable", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "listing backups failed: %v", err)
			return
		}
		if objs == nil {
			objs = []backup.Object{}
		}
		writeJSON(w, http.StatusOK, objs)
	}
}

// MirrorJobs is the outbox as the API sees it. Implemented by storage.Store.
type MirrorJobs interface {
	CountJobs(typePrefix string) (storage.JobCounts, error)
	RetryFailedJobs(typePrefix string) (int64, error)
}

func handleMirrorStatus(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Jobs == nil {
			writeJSON(w, http.StatusOK, map[string]any{"enabled": false, "jobs": storage.JobCounts{}})
			return
		}
		counts, err := deps.Jobs.CountJobs(mirror.JobPrefix)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to count mirror jobs: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"enabled": true, "jobs": counts})
	}
}

func handleMirrorRetry(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Jobs == nil {
			httpError(w, http.StatusServiceUnavailable, "unavailable", "mirror is not configured")
			return
		}
		n, err := deps.Jobs.RetryFailedJobs(mirror.JobPrefix)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to retry mirror jobs: %v", err)
			return
		}
		deps.Logger.Info("mirror jobs requeued", zap.Int64("count", n))
		writeJSON(w, http.StatusOK, map[string]any{"retried": n})
	}
}

// MirrorReader reads back the cloud copy. Implemented by storage.MongoStore.
type MirrorReader interface {
	Get(ctx context.Context, userID, id string) (journal.Record, error)
	List(ctx context.Context, userID, status string, page, limit int64) (storage.ShowPage, error)
}

func handleListMirrored(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.MirrorReader == nil {
			httpError(w, http.StatusServiceUnavailable, "unavailable", "mirror is not configured")
			return
		}
		q := r.URL.Query()
		status := q.Get("status")
		switch journal.Status(status) {
		case "", "all", journal.StatusWatched, journal.StatusToWatch:
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid status %q: must be all, watched or towatch", status)
			return
		}
		page, err := queryInt64(q.Get("page"), 1)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid page: %v", err)
			return
		}
		limit, err := queryInt64(q.Get("limit"), 20)
		if err != nil || limit > 100 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid limit %q: must be 1-100", q.Get("limit"))
			return
		}
		out, err := deps.MirrorReader.List(r.Context(), deps.MirrorUserID, status, page, limit)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "failed to read mirror: %v", err)
			return
		}
		if out.List == nil {
			out.List = []journal.Record{}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleGetMirrored(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.MirrorReader == nil {
			httpError(w, http.StatusServiceUnavailable, "unavailable", "mirror is not configured")
			return
		}
		rec, err := deps.MirrorReader.Get(r.Context(), deps.MirrorUserID, chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "record not mirrored")
			return
		}
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "failed to read mirror: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// queryInt64 parses a positive integer query value, returning def when s is empty.
func queryInt64(s string, def int64) (int64, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 1 {
		return 0, errors.New("must be a positive integer")
	}
	return n, nil
}
