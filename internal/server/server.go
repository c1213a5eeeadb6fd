// Package server is the HTTP ingest endpoint: suppliers post record batches
// and get the batch verdict back.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/and161185/mdm-forwarder/internal/config"
	"github.com/and161185/mdm-forwarder/internal/forwarder"
	"github.com/and161185/mdm-forwarder/internal/server/middleware"
	"github.com/and161185/mdm-forwarder/model"
	"github.com/and161185/mdm-forwarder/storage/inmemory"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
)

const (
	shutdownTimeout = 5 * time.Second
	maxErrors       = 20
)

// Server routes ingest requests to the batch processor. Gatherer and
// Pinger are optional.
type Server struct {
	Processor *forwarder.Processor
	Cache     *inmemory.HandleCache
	Config    *config.ForwarderConfig
	Gatherer  prometheus.Gatherer
	Pinger    func(ctx context.Context) error
}

func NewServer(processor *forwarder.Processor, cache *inmemory.HandleCache, config *config.ForwarderConfig) *Server {
	return &Server{
		Processor: processor,
		Cache:     cache,
		Config:    config,
	}
}

// Router builds the handler tree.
func (srv *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(chiMiddleware.StripSlashes)
	router.Use(middleware.LogMiddleware(srv.Config.Logger))

	router.Group(func(r chi.Router) {
		r.Use(middleware.TrustedCIDR(srv.Config.TrustedSubnet))
		r.Use(middleware.VerifyHashMiddleware(srv.Config.Key))
		r.Use(middleware.DecompressMiddleware)
		r.Post("/records", srv.RecordsHandler)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.CompressMiddleware)
		r.Get("/identities", srv.IdentitiesHandler)
		r.Get("/ping", srv.PingHandler)
		if srv.Gatherer != nil {
			r.Handle("/metrics", promhttp.HandlerFor(srv.Gatherer, promhttp.HandlerOpts{}))
		}
	})

	return router
}

// Run serves until ctx is done, then drains in-flight requests.
func (srv *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    srv.Config.Addr,
		Handler: srv.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		srv.Config.Logger.Infof("listening on %s", srv.Config.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type verdictResponse struct {
	forwarder.Verdict
	Errors []string `json:"errors,omitempty"`
}

// RecordsHandler processes a JSON array of raw records. It answers 200 when
// every sample was emitted and 503 otherwise, so the supplier retries.
func (srv *Server) RecordsHandler(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		http.Error(w, "unsupported content type", http.StatusUnsupportedMediaType)
		return
	}

	limit := int64(srv.Config.MaxBodyBytes)
	if limit <= 0 {
		limit = config.DefaultMaxBodyBytes
	}
	body := http.MaxBytesReader(w, r.Body, limit)

	dec := json.NewDecoder(body)
	dec.UseNumber()
	var batch []model.RawRecord
	if err := dec.Decode(&batch); err != nil {
		srv.Config.Logger.Errorf("failed to decode batch: %v", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "batch too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	v := srv.Processor.Process(r.Context(), batch)

	resp := verdictResponse{Verdict: v}
	for i, err := range multierr.Errors(v.Err) {
		if i == maxErrors {
			break
		}
		resp.Errors = append(resp.Errors, err.Error())
	}

	status := http.StatusOK
	if !v.OK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// IdentitiesHandler lists the metric identities the forwarder holds handles for.
func (srv *Server) IdentitiesHandler(w http.ResponseWriter, r *http.Request) {
	ids := srv.Cache.Identities()
	writeJSON(w, http.StatusOK, ids)
}

func (srv *Server) PingHandler(w http.ResponseWriter, r *http.Request) {
	if srv.Pinger != nil {
		if err := srv.Pinger(r.Context()); err != nil {
			srv.Config.Logger.Errorf("ping failed: %v", err)
			http.Error(w, "backend unavailable", http.StatusInternalServerError)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
