// Package adminapi serves the error ledger and the last run-log over HTTP.
package adminapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/velmie/filetransfer"
)

const (
	maxBodySize = 1 << 20
	// maxListIDs bounds GET /errors?ids= below driver placeholder limits.
	maxListIDs = 1000
)

// ErrorLedger is the error record store the API reads and corrects.
type ErrorLedger interface {
	Load(ctx context.Context, id int64) (filetransfer.ErrorRecord, bool, error)
	ListAll(ctx context.Context) ([]filetransfer.ErrorRecord, error)
	ListAllIDs(ctx context.Context) ([]int64, error)
	ListReferences(ctx context.Context) ([]filetransfer.ErrorReference, error)
	ListByIDs(ctx context.Context, ids []int64) ([]filetransfer.ErrorRecord, error)
	ListByRequestID(ctx context.Context, requestID int64) ([]filetransfer.ErrorRecord, error)
	Update(ctx context.Context, record filetransfer.ErrorRecord) error
	Delete(ctx context.Context, id int64) error
}

// HTTPObserver records request telemetry.
type HTTPObserver interface {
	ObserveHTTP(method, route string, status int, duration time.Duration)
}

// Deps wires the handler.
type Deps struct {
	Ledger ErrorLedger
	RunLog *filetransfer.RunLog
	// Gatherer, when set, is exposed on /metrics.
	Gatherer prometheus.Gatherer
	Observer HTTPObserver
	Logger   filetransfer.Logger
}

// Record is the JSON form of an error record.
type Record struct {
	ID            int64     `json:"id"`
	RequestID     int64     `json:"request_id"`
	Code          int       `json:"code"`
	Message       string    `json:"message"`
	Trace         string    `json:"trace"`
	ExecutionTime time.Time `json:"execution_time"`
}

// Reference is the JSON form of an error reference.
type Reference struct {
	ID        int64  `json:"id"`
	RequestID int64  `json:"request_id"`
	Message   string `json:"message"`
}

// RecordUpdate is the body of PUT /errors/{id}. Absent fields keep their value.
type RecordUpdate struct {
	RequestID *int64  `json:"request_id"`
	Code      *int    `json:"code"`
	Message   *string `json:"message"`
	Trace     *string `json:"trace"`
}

// RunLogResponse is the JSON form of the last run-log.
type RunLogResponse struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Lines      []string  `json:"lines"`
}

// NewHandler returns the admin router.
func NewHandler(deps Deps) http.Handler {
	if deps.Ledger == nil {
		panic("filetransfer adminapi: ledger is nil")
	}
	if deps.RunLog == nil {
		deps.RunLog = filetransfer.NewRunLog()
	}
	if deps.Logger == nil {
		deps.Logger = filetransfer.NopLogger{}
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if deps.Observer != nil {
		r.Use(observe(deps.Observer))
	}

	r.Get("/healthz", handleHealth)
	r.Get("/errors", handleListErrors(deps))
	r.Get("/errors/ids", handleListIDs(deps))
	r.Get("/errors/refs", handleListReferences(deps))
	r.Get("/errors/{id}", handleGetError(deps))
	r.Put("/errors/{id}", handleUpdateError(deps))
	r.Delete("/errors/{id}", handleDeleteError(deps))
	r.Get("/runlog", handleRunLogText(deps))
	r.Get("/runlog.json", handleRunLogJSON(deps))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleListErrors(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		var (
			records []filetransfer.ErrorRecord
			err     error
		)
		switch {
		case query.Has("request_id"):
			requestID, perr := parseID(query.Get("request_id"))
			if perr != nil {
				httpError(w, http.StatusBadRequest, "invalid request_id: %v", perr)
				return
			}
			records, err = deps.Ledger.ListByRequestID(r.Context(), requestID)
		case query.Has("ids"):
			ids, perr := parseIDList(query.Get("ids"))
			if perr != nil {
				httpError(w, http.StatusBadRequest, "invalid ids: %v", perr)
				return
			}
			if len(ids) > maxListIDs {
				httpError(w, http.StatusBadRequest, "too many ids: %d (max %d)", len(ids), maxListIDs)
				return
			}
			records, err = deps.Ledger.ListByIDs(r.Context(), ids)
		default:
			records, err = deps.Ledger.ListAll(r.Context())
		}
		if err != nil {
			deps.Logger.Error("list error records failed", "err", err)
			httpError(w, http.StatusInternalServerError, "failed to list error records: %v", err)
			return
		}

		out := make([]Record, 0, len(records))
		for _, rec := range records {
			out = append(out, toRecord(rec))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleListIDs(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := deps.Ledger.ListAllIDs(r.Context())
		if err != nil {
			deps.Logger.Error("list error record ids failed", "err", err)
			httpError(w, http.StatusInternalServerError, "failed to list error record ids: %v", err)
			return
		}
		if ids == nil {
			ids = []int64{}
		}
		writeJSON(w, http.StatusOK, ids)
	}
}

func handleListReferences(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		refs, err := deps.Ledger.ListReferences(r.Context())
		if err != nil {
			deps.Logger.Error("list error references failed", "err", err)
			httpError(w, http.StatusInternalServerError, "failed to list error references: %v", err)
			return
		}

		out := make([]Reference, 0, len(refs))
		for _, ref := range refs {
			out = append(out, Reference{ID: ref.ID, RequestID: ref.RequestID, Message: ref.Message})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleGetError(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		rec, found, err := deps.Ledger.Load(r.Context(), id)
		if err != nil {
			deps.Logger.Error("load error record failed", "id", id, "err", err)
			httpError(w, http.StatusInternalServerError, "failed to load error record: %v", err)
			return
		}
		if !found {
			httpError(w, http.StatusNotFound, "error record %d not found", id)
			return
		}
		writeJSON(w, http.StatusOK, toRecord(rec))
	}
}

func handleUpdateError(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		defer r.Body.Close()

		var patch RecordUpdate
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil && !errors.Is(err, io.EOF) {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}

		rec, found, err := deps.Ledger.Load(r.Context(), id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "failed to load error record: %v", err)
			return
		}
		if !found {
			httpError(w, http.StatusNotFound, "error record %d not found", id)
			return
		}

		if patch.RequestID != nil {
			rec.RequestID = *patch.RequestID
		}
		if patch.Code != nil {
			rec.Code = *patch.Code
		}
		if patch.Message != nil {
			rec.Message = *patch.Message
		}
		if patch.Trace != nil {
			rec.Trace = *patch.Trace
		}
		if err := deps.Ledger.Update(r.Context(), rec); err != nil {
			deps.Logger.Error("update error record failed", "id", id, "err", err)
			httpError(w, http.StatusInternalServerError, "failed to update error record: %v", err)
			return
		}

		updated, found, err := deps.Ledger.Load(r.Context(), id)
		if err != nil {
			deps.Logger.Error("reload updated error record failed", "id", id, "err", err)
			httpError(w, http.StatusInternalServerError, "error record %d updated but reload failed: %v", id, err)
			return
		}
		if !found {
			httpError(w, http.StatusNotFound, "error record %d removed after update", id)
			return
		}
		writeJSON(w, http.StatusOK, toRecord(updated))
	}
}

func handleDeleteError(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if err := deps.Ledger.Delete(r.Context(), id); err != nil {
			deps.Logger.Error("delete error record failed", "id", id, "err", err)
			httpError(w, http.StatusInternalServerError, "failed to delete error record: %v", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleRunLogText(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		last := deps.RunLog.Last()
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if last.RunID != "" {
			w.Header().Set("X-Run-Id", last.RunID)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, last.Text())
	}
}

func handleRunLogJSON(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		last := deps.RunLog.Last()
		lines := last.Lines
		if lines == nil {
			lines = []string{}
		}
		writeJSON(w, http.StatusOK, RunLogResponse{
			RunID:      last.RunID,
			StartedAt:  last.StartedAt,
			FinishedAt: last.FinishedAt,
			Lines:      lines,
		})
	}
}

func observe(obs HTTPObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			obs.ObserveHTTP(r.Method, route, status, time.Since(start))
		})
	}
}

func toRecord(rec filetransfer.ErrorRecord) Record {
	return Record{
		ID:            rec.ID,
		RequestID:     rec.RequestID,
		Code:          rec.Code,
		Message:       rec.Message,
		Trace:         rec.Trace,
		ExecutionTime: rec.ExecutionTime,
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid id: %v", err)
		return 0, false
	}

	return id, true
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", raw)
	}

	return id, nil
}

func parseIDList(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return []int64{}, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := parseID(part)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}
