// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	errs "seedfast/querygate/internal/errors"
	"seedfast/querygate/internal/pipeline"
	"seedfast/querygate/internal/policy"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	serveAddr     string
	serveMaxLevel string
)

// runner is the part of the coordinator the HTTP handler needs.
type runner interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Outcome, error)
}

type askRequest struct {
	Question string `json:"question"`
	Level    string `json:"level,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// serveCmd exposes the pipeline over HTTP.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the pipeline over HTTP",
	Long: `The serve command exposes the pipeline as an HTTP API:

  POST /v1/ask   {"question": "...", "level": "internal"}  → run outcome as JSON
  GET  /metrics  Prometheus metrics for pipeline runs
  GET  /health   liveness probe

Aborted runs are answered with 200 and state "aborted"; malformed requests with 400.
Requests may not ask for a clearance above --max-level.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		a, err := openApp(ctx, appOptions{pipeline: true, database: true, audit: true, registry: reg})
		if err != nil {
			return err
		}
		defer a.Close()

		defaultLevel, err := a.callerLevel("")
		if err != nil {
			return err
		}
		maxLevel := defaultLevel
		if serveMaxLevel != "" {
			if maxLevel, err = policy.ParseLevel(serveMaxLevel); err != nil {
				return err
			}
		}
		if defaultLevel > maxLevel {
			return fmt.Errorf("caller_level %s exceeds --max-level %s", defaultLevel, maxLevel)
		}

		mux := http.NewServeMux()
		mux.Handle("/v1/ask", askHandler(a.coordinator, defaultLevel, maxLevel, a.record, a.logger))
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})

		srv := &http.Server{
			Addr:              serveAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		errCh := make(chan error, 1)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
		pterm.Info.Printf("Listening on %s (default clearance %s, max %s)\n", serveAddr, defaultLevel, maxLevel)

		select {
		case <-ctx.Done():
			a.logger.Info("shutting down HTTP server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		case err := <-errCh:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&serveMaxLevel, "max-level", "", "Highest clearance a request may ask for (default: caller_level)")
}

// askHandler answers POST /v1/ask. record may be nil.
func askHandler(run runner, defaultLevel, maxLevel policy.Level, record func(context.Context, string, policy.Level, pipeline.Outcome), logger *pterm.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "use POST"})
			return
		}

		var req askRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
			return
		}
		level := defaultLevel
		if req.Level != "" {
			var err error
			if level, err = policy.ParseLevel(req.Level); err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
				return
			}
		}
		if level > maxLevel {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: fmt.Sprintf("clearance %s is above the server maximum %s", level, maxLevel)})
			return
		}

		out, err := run.Run(r.Context(), pipeline.Request{Question: req.Question, Level: level})
		if err != nil {
			status := http.StatusInternalServerError
			if errs.Is(err, errs.CallerContractViolation) {
				status = http.StatusBadRequest
			}
			logger.Warn("ask failed", logger.Args("status", status, "error", err.Error()))
			writeJSON(w, status, errorResponse{Error: err.Error()})
			return
		}
		if record != nil {
			record(r.Context(), req.Question, level, out)
		}
		writeJSON(w, http.StatusOK, out)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
