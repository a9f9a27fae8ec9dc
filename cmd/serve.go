package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brightline-qa/qms-cli/internal/model"
	"github.com/brightline-qa/qms-cli/internal/report"
	"github.com/brightline-qa/qms-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve records and reports over a JSON API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(st, cfg.Server.AllowedOrigins),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func newRouter(st store.Store, allowedOrigins []string) http.Handler {
	builder := report.NewBuilder(st)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/records", func(w http.ResponseWriter, req *http.Request) {
		filter, err := recordFilterFromQuery(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		records, err := st.ListRecords(req.Context(), filter)
		if err != nil {
			zap.L().Error("list records", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "list records failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"records": records,
			"count":   len(records),
		})
	})

	r.Get("/records/{id}", func(w http.ResponseWriter, req *http.Request) {
		rec, err := st.GetRecord(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			zap.L().Error("get record", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "get record failed")
			return
		}
		if rec == nil {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	})

	r.Get("/reports/summary", func(w http.ResponseWriter, req *http.Request) {
		filter, err := recordFilterFromQuery(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		sum, err := builder.ComplianceSummary(req.Context(), filter)
		if err != nil {
			zap.L().Error("summary report", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "summary report failed")
			return
		}
		writeJSON(w, http.StatusOK, sum)
	})

	r.Get("/reports/statistical/{templateID}", func(w http.ResponseWriter, req *http.Request) {
		rng, err := parseRange(req.URL.Query().Get("from"), req.URL.Query().Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		rep, err := builder.Statistical(req.Context(), chi.URLParam(req, "templateID"), rng)
		if err != nil {
			zap.L().Warn("statistical report", zap.Error(err))
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, rep)
	})

	return r
}

func recordFilterFromQuery(req *http.Request) (store.RecordFilter, error) {
	q := req.URL.Query()
	rng, err := parseRange(q.Get("from"), q.Get("to"))
	if err != nil {
		return store.RecordFilter{}, err
	}
	filter := store.RecordFilter{
		TemplateID: q.Get("template_id"),
		Status:     model.RecordStatus(q.Get("status")),
		Department: q.Get("department"),
		Range:      rng,
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return store.RecordFilter{}, eris.Errorf("invalid limit %q", limit)
		}
		filter.Limit = n
	}
	return filter, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
