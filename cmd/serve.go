package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/charm-heritage/market-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis summary and export artifacts over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close()
		}

		port := servePort
		if port == 0 {
			port = cfg.Serve.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(st, cfg.Export.Dir),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// newRouter builds the read-only API: summary and artifacts come straight
// from the export directory, record listings from the store when enabled.
func newRouter(st store.Store, exportDir string) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/summary", func(w http.ResponseWriter, req *http.Request) {
		serveArtifact(w, req, filepath.Join(exportDir, "analysis.json"), "application/json")
	})

	r.Get("/api/insights", func(w http.ResponseWriter, req *http.Request) {
		serveArtifact(w, req, filepath.Join(exportDir, "insights.md"), "text/markdown; charset=utf-8")
	})

	r.Get("/api/jobs", func(w http.ResponseWriter, req *http.Request) {
		if st == nil {
			http.Error(w, `{"error":"store disabled"}`, http.StatusNotImplemented)
			return
		}
		jobs, err := st.ListJobs(req.Context())
		if err != nil {
			zap.L().Error("serve: list jobs", zap.Error(err))
			http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, jobs)
	})

	r.Get("/api/reports", func(w http.ResponseWriter, req *http.Request) {
		if st == nil {
			http.Error(w, `{"error":"store disabled"}`, http.StatusNotImplemented)
			return
		}
		reports, err := st.ListReports(req.Context())
		if err != nil {
			zap.L().Error("serve: list reports", zap.Error(err))
			http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, reports)
	})

	r.Get("/api/runs", func(w http.ResponseWriter, req *http.Request) {
		if st == nil {
			http.Error(w, `{"error":"store disabled"}`, http.StatusNotImplemented)
			return
		}
		runs, err := st.ListRuns(req.Context(), 50)
		if err != nil {
			zap.L().Error("serve: list runs", zap.Error(err))
			http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, runs)
	})

	r.Handle("/exports/*", http.StripPrefix("/exports/", http.FileServer(http.Dir(exportDir))))

	return r
}

func serveArtifact(w http.ResponseWriter, req *http.Request, path, contentType string) {
	if _, err := os.Stat(path); err != nil {
		http.Error(w, `{"error":"artifact not generated yet"}`, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", contentType)
	http.ServeFile(w, req, path)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
