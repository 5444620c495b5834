package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Presence event metrics
	PresenceEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presenced_presence_events_total",
			Help: "Total presence status-change events observed",
		},
		[]string{"status"},
	)

	InvalidEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presenced_invalid_events_total",
			Help: "Presence events discarded as invalid",
		},
		[]string{"reason"},
	)

	OpenSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "presenced_open_sessions",
			Help: "Number of currently open presence sessions",
		},
	)

	// Session store metrics
	SessionsClosed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "presenced_sessions_closed_total",
			Help: "Total sessions written to the session store",
		},
	)

	SessionsMerged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "presenced_sessions_merged_total",
			Help: "Session closes that extended an existing record",
		},
	)

	StoreErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presenced_store_errors_total",
			Help: "Session store I/O failures",
		},
		[]string{"op"},
	)

	// Flush metrics
	FlushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presenced_flushes_total",
			Help: "Open sessions force-closed without an offline transition",
		},
		[]string{"trigger"},
	)

	// Aggregation metrics
	AggregationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presenced_aggregations_total",
			Help: "Aggregation runs by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	// Gateway metrics
	GatewayReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "presenced_gateway_reconnects_total",
			Help: "Gateway connection attempts after a disconnect",
		},
	)

	// Notification metrics
	WebhookErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presenced_webhook_errors_total",
			Help: "Failed webhook deliveries",
		},
		[]string{"webhook"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		PresenceEventsTotal,
		InvalidEventsTotal,
		OpenSessions,
		SessionsClosed,
		SessionsMerged,
		StoreErrors,
		FlushesTotal,
		AggregationsTotal,
		GatewayReconnects,
		WebhookErrors,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server *http.Server
	logger zerolog.Logger
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
