package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/shopspring/decimal"

	"datez/internal/config"
	"datez/internal/ics"
	appLog "datez/internal/log"
	"datez/internal/model"
	"datez/internal/pipeline"
	"datez/internal/report"
)

// Source provides the data the API serves. *scheduler.Scheduler
// implements it.
type Source interface {
	Latest() (pipeline.Snapshot, bool)
	Events() []model.Event
}

// Server exposes the latest cycle over HTTP.
type Server struct {
	cfg    *config.Config
	src    Source
	router chi.Router
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, src Source) *Server {
	s := &Server{cfg: cfg, src: src}
	s.router = s.routes()
	return s
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization"},
	}))

	// /health is always unauthenticated.
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.basicAuthEnabled() {
			r.Use(s.basicAuth)
		}
		r.Get("/api/events", s.handleEvents)
		r.Get("/api/events/{id}", s.handleEvent)
		r.Get("/api/report", s.handleReport)
		r.Get("/calendar.ics", s.handleCalendar)
	})

	return r
}

// StartServer serves until ctx is cancelled, then shuts down gracefully.
func StartServer(ctx context.Context, cfg *config.Config, src Source) error {
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           NewServer(cfg, src).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen, "basic_auth", cfg.BasicAuth != nil)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured. Empty
// credentials count as disabled.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

func (s *Server) basicAuth(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="datez", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"took", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// partsDTO is the JSON view of model.Parts.
type partsDTO struct {
	Years int64 `json:"years"`
	Weeks int8  `json:"weeks"`
	Days  int8  `json:"days"`
}

// eventDTO is the JSON view of one event in the latest cycle.
type eventDTO struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
	Kind  string `json:"kind"`

	// Spec fields; which are set depends on Kind.
	Date       string `json:"date,omitempty"`
	Month      int    `json:"month,omitempty"`
	Day        int    `json:"day,omitempty"`
	YearOffset int    `json:"year_offset,omitempty"`

	Resolved  string           `json:"resolved,omitempty"`
	TotalDays int64            `json:"total_days"`
	Parts     partsDTO         `json:"parts"`
	Years     *decimal.Decimal `json:"years,omitempty"`
	Line      string           `json:"line"`
	Error     string           `json:"error,omitempty"`
	Upcoming  []string         `json:"upcoming,omitempty"`
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Now    string     `json:"now"`
	Events []eventDTO `json:"events"`
}

func (s *Server) latest(w http.ResponseWriter) (pipeline.Snapshot, bool) {
	snap, ok := s.src.Latest()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no cycle has completed yet")
		return pipeline.Snapshot{}, false
	}
	return snap, true
}

func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.latest(w)
	if !ok {
		return
	}

	specs := specsByID(s.src.Events())
	resp := eventsResponse{
		Now:    snap.Now.String(),
		Events: make([]eventDTO, 0, len(snap.Results)),
	}
	for i, res := range snap.Results {
		resp.Events = append(resp.Events, s.toDTO(snap, i, res, specs[res.EventID]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	snap, ok := s.latest(w)
	if !ok {
		return
	}

	specs := specsByID(s.src.Events())
	for i, res := range snap.Results {
		if res.EventID == id {
			writeJSON(w, http.StatusOK, s.toDTO(snap, i, res, specs[id]))
			return
		}
	}
	writeError(w, http.StatusNotFound, "event not found")
}

func (s *Server) handleReport(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.latest(w)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(strings.Join(snap.Lines, "\n") + "\n"))
}

func (s *Server) handleCalendar(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.latest(w)
	if !ok {
		return
	}
	mode := report.ModeBoth
	if s.cfg != nil {
		mode = s.cfg.ReportMode()
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(ics.Export(snap, s.src.Events(), mode, time.Now())))
}

func (s *Server) toDTO(snap pipeline.Snapshot, idx int, res model.Result, spec model.DateSpec) eventDTO {
	dto := eventDTO{
		ID:    res.EventID,
		Label: res.Label,
		Kind:  string(res.Kind),
	}
	if idx < len(snap.Lines) {
		dto.Line = snap.Lines[idx]
	}

	switch sp := spec.(type) {
	case model.Fixed:
		dto.Date = sp.Date.String()
	case model.Recurring:
		dto.Month = int(sp.Month)
		dto.Day = sp.Day
		dto.YearOffset = sp.YearOffset
		if s.cfg != nil && s.cfg.Upcoming > 0 {
			dates, err := ics.Upcoming(snap.Now, sp, s.cfg.Upcoming)
			if err != nil {
				appLog.Error("upcoming occurrences failed", err, "id", res.EventID)
			}
			for _, d := range dates {
				dto.Upcoming = append(dto.Upcoming, d.String())
			}
		}
	}

	if res.Err != nil {
		dto.Error = res.Err.Error()
		return dto
	}

	dto.Resolved = res.Resolved.String()
	dto.TotalDays = res.TotalDays
	dto.Parts = partsDTO{Years: res.Parts.Years, Weeks: res.Parts.Weeks, Days: res.Parts.Days}
	if years, err := pipeline.FractionalYears(snap.Now, res.Elapsed); err == nil {
		dto.Years = &years
	}
	return dto
}

func specsByID(events []model.Event) map[int]model.DateSpec {
	out := make(map[int]model.DateSpec, len(events))
	for _, ev := range events {
		out[ev.ID] = ev.Spec
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
