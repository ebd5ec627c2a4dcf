// Package server exposes the layout engine over HTTP.
//
// Clients upload analyzer bundles, then fetch computed layouts, derived
// indexes, and search results per view and side. Bundles are persisted in
// a snapshot store (in-memory by default, MongoDB when configured) so a
// layout request never has to re-upload the graphs.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	dgerrors "github.com/miltonlaufer/diffgraph/pkg/errors"
	"github.com/miltonlaufer/diffgraph/pkg/engine"
	"github.com/miltonlaufer/diffgraph/pkg/structure"
)

// maxBundleBytes caps uploaded bundle size at 32 MiB.
const maxBundleBytes = 32 << 20

// Server routes HTTP requests to the layout engine.
type Server struct {
	engine *engine.Engine
	store  Store
	logger *log.Logger
	router chi.Router
}

// New creates a server around the given engine and snapshot store.
func New(eng *engine.Engine, store Store, logger *log.Logger) *Server {
	s := &Server{
		engine: eng,
		store:  store,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/bundles", func(r chi.Router) {
		r.Post("/", s.handleUpload)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleViews)
			r.Delete("/", s.handleDelete)
			r.Get("/layout", s.handleLayout)
			r.Get("/index", s.handleIndex)
			r.Get("/search", s.handleSearch)
		})
	})

	s.router = r
	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully with a short drain window.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleUpload accepts a bundle document and stores it under a fresh id.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxBundleBytes)
	var raw json.RawMessage
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		s.writeError(w, dgerrors.Wrap(dgerrors.ErrCodeInvalidInput, err, "decode bundle"))
		return
	}
	bundle, err := structure.UnmarshalBundle(raw)
	if err != nil {
		s.writeError(w, dgerrors.Wrap(dgerrors.ErrCodeInvalidGraph, err, "validate bundle"))
		return
	}

	id := uuid.NewString()
	if err := s.store.Put(r.Context(), id, bundle); err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":    id,
		"views": bundle.ViewNames(),
	})
}

// handleViews lists the view types available in a stored bundle.
func (s *Server) handleViews(w http.ResponseWriter, r *http.Request) {
	bundle, ok := s.loadBundle(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"diff_id": bundle.DiffID,
		"views":   bundle.ViewNames(),
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLayout returns the aligned layout for one view of a stored bundle.
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	bundle, ok := s.loadBundle(w, r)
	if !ok {
		return
	}
	pair, view, ok := s.resolveView(w, r, bundle)
	if !ok {
		return
	}

	out, err := s.engine.Layout(r.Context(), pair, view)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleIndex returns the derived search/hover indexes for one side.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	bundle, ok := s.loadBundle(w, r)
	if !ok {
		return
	}
	pair, view, ok := s.resolveView(w, r, bundle)
	if !ok {
		return
	}
	side, ok := s.resolveSide(w, r)
	if !ok {
		return
	}

	derived, err := s.engine.Indexes(r.Context(), pair, view, side)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, derived)
}

// handleSearch returns the node ids matching a query on one side.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	bundle, ok := s.loadBundle(w, r)
	if !ok {
		return
	}
	pair, view, ok := s.resolveView(w, r, bundle)
	if !ok {
		return
	}
	side, ok := s.resolveSide(w, r)
	if !ok {
		return
	}

	query := r.URL.Query().Get("q")
	exclude, _ := strconv.ParseBool(r.URL.Query().Get("exclude"))

	ids, err := s.engine.Search(r.Context(), pair, view, side, query, exclude)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query": query,
		"ids":   ids,
	})
}

// =============================================================================
// Request Helpers
// =============================================================================

// loadBundle fetches the stored bundle for the request's id path param.
func (s *Server) loadBundle(w http.ResponseWriter, r *http.Request) (*structure.Bundle, bool) {
	id := chi.URLParam(r, "id")
	bundle, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return bundle, true
}

// resolveView picks the bundle view named by the "view" query parameter,
// defaulting to the sole view of a single-view bundle.
func (s *Server) resolveView(w http.ResponseWriter, r *http.Request, bundle *structure.Bundle) (*structure.Pair, string, bool) {
	view := r.URL.Query().Get("view")
	if view == "" {
		names := bundle.ViewNames()
		if len(names) != 1 {
			s.writeError(w, dgerrors.New(dgerrors.ErrCodeInvalidView,
				"bundle has %d views, pass ?view=", len(names)))
			return nil, "", false
		}
		view = names[0]
	}
	pair, ok := bundle.Views[view]
	if !ok {
		s.writeError(w, dgerrors.New(dgerrors.ErrCodeInvalidView, "bundle has no %q view", view))
		return nil, "", false
	}
	return pair, view, true
}

// resolveSide validates the "side" query parameter, defaulting to new.
func (s *Server) resolveSide(w http.ResponseWriter, r *http.Request) (string, bool) {
	side := r.URL.Query().Get("side")
	if side == "" {
		side = structure.SideNew
	}
	if side != structure.SideOld && side != structure.SideNew {
		s.writeError(w, dgerrors.New(dgerrors.ErrCodeInvalidInput, "unknown side %q", side))
		return "", false
	}
	return side, true
}

// =============================================================================
// Responses
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an error code to an HTTP status and emits a JSON body.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := dgerrors.GetCode(err)
	status := http.StatusInternalServerError
	switch code {
	case dgerrors.ErrCodeInvalidInput, dgerrors.ErrCodeInvalidGraph,
		dgerrors.ErrCodeInvalidView, dgerrors.ErrCodeInvalidFormat:
		status = http.StatusBadRequest
	case dgerrors.ErrCodeNotFound, dgerrors.ErrCodeSnapshotNotFound:
		status = http.StatusNotFound
	case dgerrors.ErrCodeTimeout:
		status = http.StatusGatewayTimeout
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "code", code, "err", err)
	}
	writeJSON(w, status, map[string]string{
		"code":  string(code),
		"error": dgerrors.UserMessage(err),
	})
}

// logRequests logs each request at debug level with its duration.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}
