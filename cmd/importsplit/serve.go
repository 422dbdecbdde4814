package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/xeipuuv/gojsonschema"

	"github.com/Sumatoshi-tech/importsplit/pkg/jsimport"
	"github.com/Sumatoshi-tech/importsplit/pkg/loader"
	"github.com/Sumatoshi-tech/importsplit/pkg/observability"
)

const (
	shutdownTimeout = 10 * time.Second
	// maxBodyBytes leaves room for JSON escaping around a maximal source.
	maxBodyBytes = 2*loader.MaxSourceBytes + 4096
)

//go:embed schema/transform_request.json
var transformRequestSchema []byte

// ErrInvalidRequest indicates a body that does not match the request schema.
var ErrInvalidRequest = errors.New("invalid request")

// transformResponse is loader.Response plus the pass-through error, if any.
type transformResponse struct {
	loader.Response

	Error string `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func serveCmd(flags *rootFlags) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the import rewrite over HTTP",
		Long: `Start an HTTP server exposing POST /api/transform, GET /healthz and the
Prometheus scrape endpoint GET /metrics.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(flags, observability.ModeServe, overrides{})
			if err != nil {
				return err
			}
			defer a.close()

			if host != "" {
				a.cfg.Server.Host = host
			}

			if port != 0 {
				a.cfg.Server.Port = port
			}

			return runServer(cmd.Context(), a)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "host to listen on (overrides config)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")

	return cmd
}

func runServer(ctx context.Context, a *app) error {
	handler, err := newServerMux(a)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         a.cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)

	go func() {
		a.logger.Info("importsplit server starting", "addr", "http://"+server.Addr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("importsplit server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = server.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

// newServerMux creates the HTTP mux with all routes wrapped in tracing middleware.
func newServerMux(a *app) (http.Handler, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(transformRequestSchema))
	if err != nil {
		return nil, fmt.Errorf("compile request schema: %w", err)
	}

	th := &transformHandler{loader: a.loader, schema: schema, logger: a.logger}

	mux := http.NewServeMux()
	mux.Handle("POST /api/transform", th)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if a.providers.MetricsHandler != nil {
		mux.Handle("GET /metrics", a.providers.MetricsHandler)
	}

	return observability.HTTPMiddleware(a.providers.Tracer, a.red, mux), nil
}

type transformHandler struct {
	loader *loader.Loader
	schema *gojsonschema.Schema
	logger *slog.Logger
}

func (th *transformHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(r.Context(), w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})

			return
		}

		writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})

		return
	}

	req, err := th.decode(body)
	if err != nil {
		writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Error: err.Error()})

		return
	}

	resp, err := th.loader.Handle(r.Context(), req)

	switch {
	case errors.Is(err, loader.ErrSourceTooLarge):
		writeJSON(r.Context(), w, http.StatusRequestEntityTooLarge, errorResponse{Error: err.Error()})
	case errors.Is(err, jsimport.ErrUnknownDialect):
		writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case err != nil && resp.Dialect == "":
		th.logger.ErrorContext(r.Context(), "transform setup failed", "error", err)
		writeJSON(r.Context(), w, http.StatusInternalServerError, errorResponse{Error: "transform setup failed"})
	case err != nil:
		writeJSON(r.Context(), w, http.StatusOK, transformResponse{Response: resp, Error: err.Error()})
	default:
		writeJSON(r.Context(), w, http.StatusOK, transformResponse{Response: resp})
	}
}

// decode validates body against the request schema, then unmarshals it.
func (th *transformHandler) decode(body []byte) (loader.Request, error) {
	result, err := th.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return loader.Request{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}

		return loader.Request{}, fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(msgs, "; "))
	}

	var req loader.Request

	err = json.Unmarshal(body, &req)
	if err != nil {
		return loader.Request{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	return req, nil
}

// writeJSON encodes the given value as JSON and writes it with status.
func writeJSON(ctx context.Context, w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	encodeErr := json.NewEncoder(w).Encode(value)
	if encodeErr != nil {
		slog.Default().ErrorContext(ctx, "failed to encode JSON response", "error", encodeErr)
	}
}
