package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/invoice-analytics/internal/model"
	"github.com/sells-group/invoice-analytics/internal/monitoring"
	"github.com/sells-group/invoice-analytics/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the analytics HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sink := monitoring.NewPrometheusSink()

		env, err := initPipeline(ctx, "serve", sink)
		if err != nil {
			return err
		}
		defer env.Close()

		router := buildRouter(env.Pipeline, env.Store, sink,
			semaphore.NewWeighted(int64(cfg.Server.MaxConcurrency)))

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(context.Background())
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

// questionAnswerer is the pipeline surface the HTTP layer depends on.
type questionAnswerer interface {
	Answer(ctx context.Context, q model.Question) *model.AnalyticsAnswer
}

// buildRouter wires the chat, analytics, and metrics routes. Pipeline
// work is bounded by the semaphore so a burst of chat requests cannot
// exhaust the store's connection pool.
func buildRouter(p questionAnswerer, st store.Store, sink *monitoring.PrometheusSink, sem *semaphore.Weighted) http.Handler {
	collector := monitoring.NewCollector(st)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/chat", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Question string `json:"question"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if body.Question == "" {
			http.Error(w, `{"error":"question is required"}`, http.StatusBadRequest)
			return
		}

		if err := sem.Acquire(req.Context(), 1); err != nil {
			http.Error(w, `{"error":"request cancelled"}`, http.StatusServiceUnavailable)
			return
		}
		defer sem.Release(1)

		writeJSON(w, http.StatusOK, p.Answer(req.Context(), model.NewQuestion(body.Question)))
	})

	r.Get("/analytics/vendor/{vendor}", func(w http.ResponseWriter, req *http.Request) {
		invoices, err := st.ListByVendor(req.Context(), chi.URLParam(req, "vendor"), queryLimit(req))
		if err != nil {
			serveError(w, "list by vendor", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices, "count": len(invoices)})
	})

	r.Get("/analytics/vendor/{vendor}/aggregate", func(w http.ResponseWriter, req *http.Request) {
		vendor := chi.URLParam(req, "vendor")
		aggs, err := st.AggregateByVendor(req.Context(), vendor)
		if err != nil {
			serveError(w, "aggregate vendor", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"vendor": vendor, "aggregates": aggs})
	})

	r.Get("/analytics/high-risk", func(w http.ResponseWriter, req *http.Request) {
		invoices, err := st.HighRiskInvoices(req.Context(), queryLimit(req))
		if err != nil {
			serveError(w, "high risk invoices", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices, "count": len(invoices)})
	})

	r.Get("/analytics/stats", func(w http.ResponseWriter, req *http.Request) {
		snap, err := collector.Collect(req.Context())
		if err != nil {
			serveError(w, "collect stats", err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	r.Method(http.MethodGet, "/metrics", sink.Handler())

	return r
}

// queryLimit parses the optional ?limit= parameter. The store clamps
// out-of-range values, so 0 on parse failure is fine.
func queryLimit(req *http.Request) int {
	n, err := strconv.Atoi(req.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func serveError(w http.ResponseWriter, action string, err error) {
	zap.L().Error("serve: "+action, zap.Error(err))
	http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
}
