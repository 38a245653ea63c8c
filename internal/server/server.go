// Package server exposes the prediction pipeline over HTTP and WebSocket.
// It only translates inputs into form values and results into JSON; all
// validation and prediction happens in the pipeline.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"loan-predictor/internal/common"
	"loan-predictor/internal/ml"
	"loan-predictor/internal/pipeline"
	"loan-predictor/internal/schema"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Predictor is the part of the pipeline the adapters need.
type Predictor interface {
	PredictForm(ctx context.Context, form map[string]string) (pipeline.Result, error)
}

// MetricsInterface defines metrics methods needed by the server
type MetricsInterface interface {
	HTTPRequestInc(path string, code int)
	WSConnectionsAdd(delta float64)
}

type Config struct {
	Port           int
	ReadLimit      int64 // Max request body and WebSocket message size
	PredictTimeout time.Duration
	// Gatherer backs /metrics; nil means the default registry.
	Gatherer prometheus.Gatherer
}

// Server provides the HTTP API for loan predictions
type Server struct {
	svc      Predictor
	model    *ml.Model
	metrics  MetricsInterface
	cfg      Config
	upgrader websocket.Upgrader
	server   *http.Server
	started  time.Time
}

func New(svc Predictor, model *ml.Model, metrics MetricsInterface, cfg Config) *Server {
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = common.DefaultWSReadLimit
	}
	if cfg.PredictTimeout <= 0 {
		cfg.PredictTimeout = 10 * time.Second
	}

	s := &Server{
		svc:     svc,
		model:   model,
		metrics: metrics,
		cfg:     cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		started: time.Now(),
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the routed handler, for embedding and tests.
func (s *Server) Handler() http.Handler {
	metricsHandler := promhttp.Handler()
	if s.cfg.Gatherer != nil {
		metricsHandler = promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{})
	}

	mux := http.NewServeMux()
	mux.Handle(common.RoutePredict, s.instrument(common.RoutePredict, http.HandlerFunc(s.handlePredict)))
	mux.Handle(common.RouteSchema, s.instrument(common.RouteSchema, http.HandlerFunc(s.handleSchema)))
	mux.Handle(common.RouteHealth, s.instrument(common.RouteHealth, http.HandlerFunc(s.handleHealth)))
	mux.Handle(common.RouteModelInfo, s.instrument(common.RouteModelInfo, http.HandlerFunc(s.handleModelInfo)))
	mux.Handle(common.RouteMetrics, metricsHandler)
	mux.Handle(common.RouteWS, s.instrument(common.RouteWS, http.HandlerFunc(s.handleWS)))
	return mux
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("starting prediction server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) instrument(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if s.metrics != nil {
			s.metrics.HTTPRequestInc(path, rec.status)
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// modelVersion is the version reported with every prediction.
func (s *Server) modelVersion() string {
	if s.model == nil || s.model.Metadata == nil {
		return "unknown"
	}
	return s.model.Metadata.Version
}

// schemaFields is the JSON rendering of a field error list.
func schemaFields(fe schema.FieldErrors) []FieldError {
	out := make([]FieldError, len(fe))
	for i, e := range fe {
		out[i] = FieldError{Field: e.Field, Value: e.Value, Reason: e.Reason}
	}
	return out
}
