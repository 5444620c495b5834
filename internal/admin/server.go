package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/goodtune/presenced/internal/aggregate"
	"github.com/goodtune/presenced/internal/metrics"
	"github.com/goodtune/presenced/internal/storage"
	"github.com/goodtune/presenced/internal/tracker"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Config holds the admin server configuration.
type Config struct {
	ListenAddr string
}

// AnalyzeFunc runs one aggregation and publishes the report.
type AnalyzeFunc func(ctx context.Context) (*aggregate.Report, error)

// Server exposes the administrative command surface over HTTP: flush-all
// ("refresh"), on-demand aggregation ("analyze"), and daily stats.
type Server struct {
	config     Config
	tracker    *tracker.Tracker
	aggregator *aggregate.Aggregator
	analyze    AnalyzeFunc
	logger     zerolog.Logger
	server     *http.Server
	startTime  time.Time
}

// NewServer creates the admin server.
func NewServer(config Config, tr *tracker.Tracker, agg *aggregate.Aggregator, analyze AnalyzeFunc, logger zerolog.Logger) *Server {
	s := &Server{
		config:     config,
		tracker:    tr,
		aggregator: agg,
		analyze:    analyze,
		logger:     logger.With().Str("component", "admin").Logger(),
		startTime:  time.Now(),
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/api/refresh", s.handleRefresh).Methods(http.MethodPost)
	router.HandleFunc("/api/analyze", s.handleAnalyze).Methods(http.MethodPost)
	router.HandleFunc("/api/stats", s.handleStats).Methods(http.MethodGet)

	s.server = &http.Server{
		Addr:         config.ListenAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start starts the admin server.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting admin server")
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Admin server error")
		}
	}()
	return nil
}

// Stop stops the admin server.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping admin server")
	return s.server.Close()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"uptime_seconds": int(time.Since(s.startTime).Seconds()),
		"open_sessions":  s.tracker.OpenSessionCount(),
	})
}

// handleRefresh flushes all currently open sessions using the request
// instant as the end time. Tracking continues uninterrupted afterwards.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.logger.Info().Msg("Manual refresh requested")

	flushed := s.tracker.FlushAll(r.Context(), time.Now())
	metrics.FlushesTotal.WithLabelValues("manual").Add(float64(flushed))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"flushed": flushed,
		"message": pluralFlushed(flushed),
	})
}

// handleAnalyze triggers an aggregation run outside the daily cadence and
// publishes the resulting report through the normal notification path.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	s.logger.Info().Msg("Manual analysis requested")

	report, err := s.analyze(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Manual analysis failed")
		writeError(w, http.StatusInternalServerError, "analysis failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":        "analysis complete",
		"total_sessions": report.TotalSessions,
		"users":          len(report.Users),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	identityID := r.URL.Query().Get("identity")
	date := r.URL.Query().Get("date")

	if identityID == "" {
		writeError(w, http.StatusBadRequest, "identity query parameter is required")
		return
	}
	if date == "" {
		date = storage.CalendarDate(time.Now())
	} else if _, err := time.Parse(storage.DateFormat, date); err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	stats, err := s.aggregator.DailyStats(r.Context(), identityID, date)
	if err != nil {
		s.logger.Error().Err(err).Msg("Daily stats query failed")
		writeError(w, http.StatusInternalServerError, "stats query failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func pluralFlushed(n int) string {
	if n == 1 {
		return "flushed 1 open session"
	}
	return "flushed " + strconv.Itoa(n) + " open sessions"
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		http.Error(w, "encoding error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
