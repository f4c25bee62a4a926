package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fukui-lab/subsidy-cli/internal/analysis"
	"github.com/fukui-lab/subsidy-cli/internal/fetcher"
	"github.com/fukui-lab/subsidy-cli/internal/model"
	"github.com/fukui-lab/subsidy-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the subsidy API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		heuristic, _ := initExtractor(false)
		pages := fetcher.NewPageFetcher(initHTTPFetcher())
		analyzer := analysis.New(st, pages, heuristic)

		var assistedAnalyzer *analysis.Analyzer
		if cfg.Anthropic.Key != "" {
			assisted, err := initExtractor(true)
			if err != nil {
				return err
			}
			assistedAnalyzer = analysis.New(st, pages, assisted)
		}

		router := newRouter(st, analyzer, assistedAnalyzer, cfg.Server.AllowedOrigins)

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
			srv.Shutdown(context.Background()) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the API routes. assistedAnalyzer may be nil when no
// Anthropic key is configured; requests asking for it then fall back to
// the heuristic analyzer.
func newRouter(st store.Store, analyzer, assistedAnalyzer *analysis.Analyzer, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/subsidies", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			q := req.URL.Query()
			filter := store.SubsidyFilter{
				Status:     model.SubsidyStatus(q.Get("status")),
				Category:   q.Get("category"),
				Prefecture: q.Get("prefecture"),
				Search:     q.Get("search"),
			}
			records, err := st.ListSubsidies(req.Context(), filter)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to list subsidies")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"subsidies": records,
				"total":     len(records),
			})
		})

		r.Get("/meta/categories", func(w http.ResponseWriter, req *http.Request) {
			cats, err := st.ListCategories(req.Context())
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to list categories")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"categories": cats})
		})

		r.Get("/meta/prefectures", func(w http.ResponseWriter, req *http.Request) {
			prefs, err := st.ListPrefectures(req.Context())
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to list prefectures")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"prefectures": prefs})
		})

		r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
			rec, err := st.GetSubsidy(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				if store.IsNotFound(err) {
					writeError(w, http.StatusNotFound, "subsidy not found")
					return
				}
				writeError(w, http.StatusInternalServerError, "failed to get subsidy")
				return
			}
			writeJSON(w, http.StatusOK, rec)
		})
	})

	r.Post("/api/analysis/analyze-website", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			URL      string `json:"url"`
			Assisted bool   `json:"assisted"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.URL == "" {
			writeError(w, http.StatusBadRequest, "url is required")
			return
		}
		if err := fetcher.ValidateURL(body.URL); err != nil {
			writeError(w, http.StatusBadRequest, "invalid url")
			return
		}

		a := analyzer
		if body.Assisted && assistedAnalyzer != nil {
			a = assistedAnalyzer
		}

		run, err := a.AnalyzeURL(req.Context(), body.URL)
		if err != nil {
			zap.L().Error("analysis failed", zap.String("url", body.URL), zap.Error(err))
			writeError(w, http.StatusBadGateway, "analysis failed")
			return
		}
		writeJSON(w, http.StatusOK, run)
	})

	r.Get("/api/analysis/{id}", func(w http.ResponseWriter, req *http.Request) {
		run, err := st.GetAnalysis(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			if store.IsNotFound(err) {
				writeError(w, http.StatusNotFound, "analysis not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to get analysis")
			return
		}
		writeJSON(w, http.StatusOK, run)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
