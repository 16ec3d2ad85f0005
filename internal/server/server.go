package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tournevent/sendparcel/internal/telemetry"
	"github.com/tournevent/sendparcel/pkg/parcel"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Server is the HTTP server for the shipment service. It exposes the
// flow operations as a JSON API plus the carrier webhook endpoint.
type Server struct {
	port     int
	flow     *parcel.Flow
	registry *parcel.Registry
	repo     parcel.Repository
	logger   *otelzap.Logger
	metrics  *telemetry.Metrics
}

// Config holds server configuration.
type Config struct {
	Port int
}

// New creates a new server instance.
func New(cfg Config, flow *parcel.Flow, registry *parcel.Registry, repo parcel.Repository, logger *otelzap.Logger, metrics *telemetry.Metrics) *Server {
	return &Server{
		port:     cfg.Port,
		flow:     flow,
		registry: registry,
		repo:     repo,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Handler builds the route table. Exposed for httptest-based tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /providers", s.handleProviders)
	mux.HandleFunc("POST /shipments", s.handleCreateShipment)
	mux.HandleFunc("GET /shipments/{id}", s.handleGetShipment)
	mux.HandleFunc("POST /shipments/{id}/label", s.handleCreateLabel)
	mux.HandleFunc("POST /shipments/{id}/poll", s.handlePollStatus)
	mux.HandleFunc("POST /shipments/{id}/cancel", s.handleCancelShipment)
	mux.HandleFunc("POST /webhooks/{slug}/{id}", s.handleWebhook)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	choices, err := s.registry.Choices()
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]providerChoice, 0, len(choices))
	for _, c := range choices {
		out = append(out, providerChoice{Slug: c.Slug, DisplayName: c.DisplayName})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"providers": out})
}

func (s *Server) handleCreateShipment(w http.ResponseWriter, r *http.Request) {
	var req createShipmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON: "+err.Error()))
		return
	}

	start := time.Now()
	shipment, err := s.flow.CreateShipment(r.Context(), &parcel.CreateShipmentRequest{
		Provider: req.Provider,
		Sender:   req.Sender.toParcel(),
		Receiver: req.Receiver.toParcel(),
		Parcels:  toParcels(req.Parcels),
		OrderRef: req.OrderRef,
		Extra:    req.Extra,
	})
	s.record(parcel.OpCreateShipment, req.Provider, err, start)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.RecordStatus(string(shipment.Status))
	s.writeJSON(w, http.StatusCreated, shipmentToJSON(shipment))
}

func (s *Server) handleGetShipment(w http.ResponseWriter, r *http.Request) {
	shipment, err := s.repo.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, shipmentToJSON(shipment))
}

func (s *Server) handleCreateLabel(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	shipment, err := s.flow.CreateLabel(r.Context(), r.PathValue("id"))
	s.record(parcel.OpCreateLabel, providerOf(shipment), err, start)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.RecordStatus(string(shipment.Status))
	s.writeJSON(w, http.StatusOK, shipmentToJSON(shipment))
}

func (s *Server) handlePollStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	shipment, err := s.flow.PollStatus(r.Context(), r.PathValue("id"))
	s.record(parcel.OpPollStatus, providerOf(shipment), err, start)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, shipmentToJSON(shipment))
}

func (s *Server) handleCancelShipment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	shipment, err := s.flow.CancelShipment(r.Context(), r.PathValue("id"))
	s.record(parcel.OpCancelShipment, providerOf(shipment), err, start)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.RecordStatus(string(shipment.Status))
	s.writeJSON(w, http.StatusOK, shipmentToJSON(shipment))
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	id := r.PathValue("id")

	var data map[string]any
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON: "+err.Error()))
		return
	}

	// The webhook URL names the provider; reject payloads addressed to
	// a different provider than the shipment's.
	existing, err := s.repo.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if existing.Provider != slug {
		s.writeJSON(w, http.StatusNotFound, errorBody("no such shipment for provider "+slug))
		return
	}

	headers := make(map[string]string, len(r.Header))
	for name := range r.Header {
		headers[canonicalHeader(name)] = r.Header.Get(name)
	}

	start := time.Now()
	shipment, err := s.flow.HandleCallback(r.Context(), id, data, headers)
	s.record(parcel.OpHandleCallback, slug, err, start)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.RecordStatus(string(shipment.Status))
	s.writeJSON(w, http.StatusOK, shipmentToJSON(shipment))
}

func (s *Server) record(op, provider string, err error, start time.Time) {
	outcome := "success"
	if err != nil {
		outcome = "error"
		var perr *parcel.ProviderError
		if errors.As(err, &perr) {
			s.metrics.RecordError(perr.Provider, "api")
		}
	}
	s.metrics.RecordOperation(op, provider, outcome, time.Since(start).Seconds())
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var verr *parcel.ValidationError
	var perr *parcel.ProviderError
	switch {
	case errors.As(err, &verr):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, parcel.ErrShipmentNotFound),
		errors.Is(err, parcel.ErrProviderNotFound):
		status = http.StatusNotFound
	case errors.Is(err, parcel.ErrInvalidCallback):
		status = http.StatusUnauthorized
	case errors.Is(err, parcel.ErrUnsupportedCapability),
		errors.Is(err, parcel.ErrInvalidTransition),
		errors.Is(err, parcel.ErrGuardFailed):
		status = http.StatusConflict
	case errors.As(err, &perr):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.Error(err))
	}
	s.writeJSON(w, status, errorBody(err.Error()))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func errorBody(msg string) map[string]any {
	return map[string]any{"error": msg}
}

func providerOf(s *parcel.Shipment) string {
	if s == nil {
		return "unknown"
	}
	return s.Provider
}
