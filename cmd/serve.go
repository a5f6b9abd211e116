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

	"github.com/scoutbase/curator/internal/directory"
	"github.com/scoutbase/curator/internal/importer"
	"github.com/scoutbase/curator/internal/model"
	"github.com/scoutbase/curator/internal/review"
	"github.com/scoutbase/curator/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the curation HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("import"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		api := &apiServer{
			directory: directory.New(st),
			review:    review.New(st),
			importer:  importer.New(st, enrichClient(), cfg.Import.Workers),
			store:     st,
			pageSize:  cfg.Directory.PageSize,
		}

		r := buildRouter(api)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

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

// buildRouter wires the API routes and middleware.
func buildRouter(api *apiServer) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Actor"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/startups", api.handleListStartups)
		r.Post("/startups/preview", api.handlePreview)
		r.Post("/startups/transition", api.handleTransition)
		r.Post("/imports", api.handleImport)
		r.Get("/audit/{id}", api.handleAudit)
	})
	return r
}

type apiServer struct {
	directory *directory.Service
	review    *review.Service
	importer  *importer.Pipeline
	store     store.Store
	pageSize  int
}

func (s *apiServer) handleListStartups(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := store.DirectoryFilter{
		Search:   q.Get("q"),
		PageSize: s.pageSize,
	}
	if v := q.Get("status"); v != "" {
		status := model.Status(v)
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid status %q", v))
			return
		}
		filter.Status = &status
	}
	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 0 {
			writeError(w, http.StatusBadRequest, "invalid page")
			return
		}
		filter.Page = page
	}
	if v := q.Get("page_size"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size <= 0 {
			writeError(w, http.StatusBadRequest, "invalid page_size")
			return
		}
		filter.PageSize = size
	}

	page, err := s.directory.List(r.Context(), filter)
	if err != nil {
		zap.L().Error("directory query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type transitionRequest struct {
	IDs    []string `json:"ids"`
	Action string   `json:"action"`
}

// actionStatus maps an API action to its target status.
func actionStatus(action string) (model.Status, bool) {
	switch action {
	case "approve":
		return model.StatusApproved, true
	case "reject":
		return model.StatusRejected, true
	}
	return "", false
}

func (s *apiServer) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	target, ok := actionStatus(req.Action)
	if !ok || len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "action must be approve or reject with at least one id")
		return
	}

	items, err := s.review.Preview(r.Context(), req.IDs, target)
	if err != nil {
		zap.L().Error("preview failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "preview failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *apiServer) handleTransition(w http.ResponseWriter, r *http.Request) {
	actor := r.Header.Get("X-Actor")
	if actor == "" {
		writeError(w, http.StatusBadRequest, "X-Actor header is required")
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	target, ok := actionStatus(req.Action)
	if !ok || len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "action must be approve or reject with at least one id")
		return
	}

	count, err := s.review.Transition(r.Context(), req.IDs, target, actor)
	if err != nil {
		var nf *model.NotFoundError
		if eris.As(err, &nf) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":         "not pending or not found",
				"offending_ids": nf.IDs,
			})
			return
		}
		zap.L().Error("transition failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "transition failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": count})
}

type importRequest struct {
	IDs []int64 `json:"ids"`
}

func (s *apiServer) handleImport(w http.ResponseWriter, r *http.Request) {
	actor := r.Header.Get("X-Actor")
	if actor == "" {
		writeError(w, http.StatusBadRequest, "X-Actor header is required")
		return
	}

	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "at least one id is required")
		return
	}

	outcomes, err := s.importer.Import(r.Context(), req.IDs, actor)
	if err != nil {
		zap.L().Error("import failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "import failed")
		return
	}

	ok := 0
	for _, o := range outcomes {
		if o.OK {
			ok++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"outcomes":  outcomes,
		"succeeded": ok,
		"failed":    len(outcomes) - ok,
	})
}

func (s *apiServer) handleAudit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var records []model.AuditRecord
	var err error
	if r.URL.Query().Get("candidate") == "true" {
		candidateID, parseErr := strconv.ParseInt(id, 10, 64)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid candidate id")
			return
		}
		records, err = s.store.ListAuditByCandidate(r.Context(), candidateID)
	} else {
		records, err = s.store.ListAudit(r.Context(), id)
	}
	if err != nil {
		zap.L().Error("audit query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "audit query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
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
