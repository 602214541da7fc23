package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sdg-cli/internal/indicator"
	"github.com/sells-group/sdg-cli/internal/metrics"
	"github.com/sells-group/sdg-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored indicator results over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(st),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// buildRouter wires the read API. A nil store serves health and metrics
// only; the indicator routes answer 503.
func buildRouter(st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	h := &indicatorHandler{store: st}
	r.Route("/indicators", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{year}", h.get)
	})

	return r
}

type indicatorHandler struct {
	store store.Store
}

func (h *indicatorHandler) list(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "result store is disabled")
		return
	}

	filter, err := parseResultFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := h.store.ListResults(r.Context(), filter)
	if err != nil {
		zap.L().Error("list results failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list results failed")
		return
	}
	if results == nil {
		results = []indicator.Result{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *indicatorHandler) get(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "result store is disabled")
		return
	}

	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year <= 0 {
		writeError(w, http.StatusBadRequest, "year must be a positive integer")
		return
	}

	res, err := h.store.GetResult(r.Context(), year)
	switch {
	case eris.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("no result for year %d", year))
		return
	case err != nil:
		zap.L().Error("get result failed", zap.Int("year", year), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get result failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// parseResultFilter reads from, to, limit and offset query parameters.
func parseResultFilter(r *http.Request) (store.ResultFilter, error) {
	var f store.ResultFilter
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"from", &f.FromYear},
		{"to", &f.ToYear},
		{"limit", &f.Limit},
		{"offset", &f.Offset},
	} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return f, eris.Errorf("%s must be a non-negative integer", p.name)
		}
		*p.dst = v
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
