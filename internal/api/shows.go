package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/stagelog/internal/journal"
	"github.com/kalambet/stagelog/internal/shows"
)

func decodeRecord(w http.ResponseWriter, r *http.Request) (journal.Record, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRecordBodySize)
	defer r.Body.Close()

	var rec journal.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return journal.Record{}, false
	}
	return rec, true
}

func handleListShows(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := deps.Shows.List(r.Context())
		if err != nil {
			serviceError(w, err, "list records")
			return
		}
		if recs == nil {
			recs = []journal.Record{}
		}
		writeJSON(w, http.StatusOK, shows.View{
			Records:  recs,
			Count:    len(recs),
			Warnings: []journal.MalformedDate{},
		})
	}
}

func handleCreateShow(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input, ok := decodeRecord(w, r)
		if !ok {
			return
		}
		rec, err := deps.Shows.Create(r.Context(), input)
		if err != nil {
			serviceError(w, err, "create record")
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	}
}

func handleGetShow(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := deps.Shows.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			serviceError(w, err, "get record")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func handleUpdateShow(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input, ok := decodeRecord(w, r)
		if !ok {
			return
		}
		rec, err := deps.Shows.Update(r.Context(), chi.URLParam(r, "id"), input)
		if err != nil {
			serviceError(w, err, "update record")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func handleDeleteShow(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Shows.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			serviceError(w, err, "delete record")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleClearShows(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("confirm") != "true" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "clearing all records requires confirm=true")
			return
		}
		n, err := deps.Shows.Clear(r.Context())
		if err != nil {
			serviceError(w, err, "clear records")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "cleared", "count": n})
	}
}

func handleUpcoming(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := deps.Shows.Upcoming(r.Context())
		if err != nil {
			serviceError(w, err, "list upcoming shows")
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func handleHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := deps.Shows.History(r.Context())
		if err != nil {
			serviceError(w, err, "list history")
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func handleSearch(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := deps.Shows.Search(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			serviceError(w, err, "search records")
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}
