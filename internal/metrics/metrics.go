package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Device metrics
	DevicesAvailable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "motioncoach_devices_available",
			Help: "Number of devices currently available",
		},
	)

	ConnectAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "motioncoach_connect_attempts_total",
			Help: "Device connection attempts by outcome",
		},
		[]string{"kind", "result"},
	)

	// Recording metrics
	RecordingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "motioncoach_recordings_total",
			Help: "Total recordings completed",
		},
		[]string{"kind"},
	)

	RecordingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "motioncoach_recording_duration_seconds",
			Help:    "Recording duration in seconds",
			Buckets: []float64{1, 5, 10, 20, 30, 60, 120, 300},
		},
	)

	OutputsDiscarded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "motioncoach_outputs_discarded_total",
			Help: "Recorded outputs overwritten before they were consumed",
		},
	)

	// Training metrics
	TrainingExamples = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "motioncoach_training_examples",
			Help: "Training examples held per movement",
		},
		[]string{"movement"},
	)

	TrainingRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "motioncoach_training_runs_total",
			Help: "Training runs by outcome",
		},
		[]string{"movement", "result"},
	)

	// Analysis metrics
	AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "motioncoach_analyses_total",
			Help: "Analyses attempted by analyzer mode and outcome",
		},
		[]string{"mode", "result"},
	)

	RepsCounted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "motioncoach_reps_counted_total",
			Help: "Repetitions reported by the analyzer",
		},
		[]string{"movement"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		DevicesAvailable,
		ConnectAttempts,
		RecordingsTotal,
		RecordingDuration,
		OutputsDiscarded,
		TrainingExamples,
		TrainingRuns,
		AnalysesTotal,
		RepsCounted,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
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

// Handler exposes the server's mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
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
