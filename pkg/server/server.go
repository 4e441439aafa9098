// Package server provides the HTTP API for running registered filters and
// inspecting locus data.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/locusflow/locusflow/pkg/commit"
	"github.com/locusflow/locusflow/pkg/driver"
	"github.com/locusflow/locusflow/pkg/export"
	"github.com/locusflow/locusflow/pkg/filter"
	"github.com/locusflow/locusflow/pkg/source"
	"github.com/locusflow/locusflow/pkg/streams"
	"github.com/locusflow/locusflow/pkg/telemetry"
)

// Server handles HTTP requests.
type Server struct {
	driver    *driver.Driver
	committer *commit.Committer // nil disables the commit option
	registry  *streams.Registry
	src       source.LocusSource
	prom      *telemetry.PromMetrics // nil disables /metrics
	log       zerolog.Logger

	runs sync.Map // runID -> *Run
	mux  *http.ServeMux
}

// Run represents one batch filter run. All fields past StartTime are written
// by executeRun under mu; handlers copy them into a runView for encoding.
type Run struct {
	ID         string
	Status     string // pending, running, completed, failed
	FilterName string
	LocusIDs   []int64
	Committed  bool
	StartTime  time.Time
	EndTime    *time.Time
	Results    []driver.BatchResult
	Error      string

	mu sync.Mutex
}

// runView is the JSON shape of a run, results flattened per locus. It is a
// copy taken under the run's lock so encoding never races with executeRun.
type runView struct {
	ID         string       `json:"id"`
	Status     string       `json:"status"`
	FilterName string       `json:"filter_name"`
	LocusIDs   []int64      `json:"locus_ids"`
	Committed  bool         `json:"committed"`
	StartTime  time.Time    `json:"start_time"`
	EndTime    *time.Time   `json:"end_time,omitempty"`
	Error      string       `json:"error,omitempty"`
	Results    []resultView `json:"results,omitempty"`
}

type resultView struct {
	LocusID int64          `json:"locus_id"`
	Report  *filter.Report `json:"report,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// NewServer creates the HTTP server.
func NewServer(d *driver.Driver, c *commit.Committer, registry *streams.Registry, src source.LocusSource, prom *telemetry.PromMetrics, log zerolog.Logger) *Server {
	s := &Server{
		driver:    d,
		committer: c,
		registry:  registry,
		src:       src,
		prom:      prom,
		log:       log,
		mux:       http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures HTTP handlers.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/streams", s.handleStreams)
	s.mux.HandleFunc("/api/filters", s.handleFilters)
	s.mux.HandleFunc("/api/loci/", s.handleLocus)
	s.mux.HandleFunc("/api/runs", s.handleRuns)
	s.mux.HandleFunc("/api/runs/", s.handleRun)

	if s.prom != nil {
		s.mux.Handle("/metrics", s.prom.Handler())
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	s.log.Debug().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Dur("duration", time.Since(start)).
		Msg("http request")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]string{"status": "ok"})
}

func (s *Server) handleStreams(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]any{"streams": s.registry.Names()})
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]any{"filters": filter.Names()})
}

// handleLocus serves /api/loci/{id}/timeseries and /api/loci/{id}/matches.
func (s *Server) handleLocus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/loci/")
	parts := strings.SplitN(rest, "/", 2)
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		jsonError(w, "Invalid locus id", http.StatusBadRequest)
		return
	}

	locus, err := s.src.Get(r.Context(), id)
	if err != nil {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}

	view := ""
	if len(parts) == 2 {
		view = parts[1]
	}

	switch view {
	case "matches":
		matches := make(map[string][]map[string]any)
		for catalog, ms := range locus.Matches {
			for _, m := range ms {
				rec := make(map[string]any, len(m))
				for k, v := range m {
					rec[k] = v.Native()
				}
				matches[catalog] = append(matches[catalog], rec)
			}
		}
		jsonResponse(w, map[string]any{"locus_id": id, "matches": matches})

	case "", "timeseries":
		var fields []string
		if raw := r.URL.Query().Get("fields"); raw != "" {
			fields = strings.Split(raw, ",")
		} else {
			fields = locus.FieldNames()
		}

		fctx := filter.NewContext(locus, s.registry)
		ts, err := fctx.TimeSeries(fields, nil)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}

		if r.URL.Query().Get("format") == "csv" {
			w.Header().Set("Content-Type", "text/csv")
			if err := export.WriteCSV(ts, w); err != nil {
				s.log.Error().Err(err).Msg("csv export failed")
			}
			return
		}

		rows := make([][]any, ts.NumRows())
		for i := range rows {
			row := make([]any, ts.NumFields())
			for c, v := range ts.Row(i) {
				row[c] = v.Native()
			}
			rows[i] = row
		}
		jsonResponse(w, map[string]any{
			"locus_id": id,
			"fields":   ts.Fields,
			"rows":     rows,
		})

	default:
		jsonError(w, "Unknown view", http.StatusNotFound)
	}
}

// handleRuns starts a batch filter run.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Filter   string  `json:"filter"`
		LocusIDs []int64 `json:"locus_ids"`
		Commit   bool    `json:"commit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	fn, err := filter.Lookup(req.Filter)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.LocusIDs) == 0 {
		jsonError(w, "locus_ids required", http.StatusBadRequest)
		return
	}
	if req.Commit && s.committer == nil {
		jsonError(w, "commit not enabled on this server", http.StatusBadRequest)
		return
	}

	run := &Run{
		ID:         uuid.NewString(),
		Status:     "pending",
		FilterName: req.Filter,
		LocusIDs:   req.LocusIDs,
		StartTime:  time.Now(),
	}
	s.runs.Store(run.ID, run)

	go s.executeRun(run, fn, req.Commit)

	jsonResponse(w, map[string]string{
		"run_id": run.ID,
		"status": "started",
	})
}

// executeRun performs the batch in the background.
func (s *Server) executeRun(run *Run, fn filter.Func, doCommit bool) {
	run.mu.Lock()
	run.Status = "running"
	run.mu.Unlock()

	ctx := context.Background()
	results := s.driver.RunBatch(ctx, run.LocusIDs, run.FilterName, fn)

	var commitErr error
	if doCommit {
		for _, res := range results {
			if res.Err != nil || res.Report == nil {
				continue
			}
			if err := s.committer.Commit(ctx, res.Report); err != nil && commitErr == nil {
				commitErr = err
			}
		}
	}

	now := time.Now()
	run.mu.Lock()
	run.Results = results
	run.Committed = doCommit && commitErr == nil
	run.EndTime = &now
	if commitErr != nil {
		run.Status = "failed"
		run.Error = commitErr.Error()
	} else {
		run.Status = "completed"
	}
	run.mu.Unlock()
}

// handleRun returns run status and results.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if runID == "" {
		jsonError(w, "Run ID required", http.StatusBadRequest)
		return
	}

	v, ok := s.runs.Load(runID)
	if !ok {
		jsonError(w, "Run not found", http.StatusNotFound)
		return
	}
	run := v.(*Run)

	run.mu.Lock()
	view := runView{
		ID:         run.ID,
		Status:     run.Status,
		FilterName: run.FilterName,
		LocusIDs:   run.LocusIDs,
		Committed:  run.Committed,
		StartTime:  run.StartTime,
		EndTime:    run.EndTime,
		Error:      run.Error,
	}
	for _, res := range run.Results {
		rv := resultView{LocusID: res.LocusID, Report: res.Report}
		if res.Err != nil {
			rv.Error = res.Err.Error()
		}
		view.Results = append(view.Results, rv)
	}
	run.mu.Unlock()

	jsonResponse(w, view)
}

// ListenAndServe runs the server until the context is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.log.Info().Str("addr", addr).Msg("http server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
