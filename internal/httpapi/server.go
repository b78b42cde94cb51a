// Package httpapi exposes a store.Store over HTTP.
//
// The adapter is deliberately thin: it binds requests, calls the store, and
// maps error kinds to status codes. All storage semantics live behind the
// store.Store contract.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/filecrate/filecrate/internal/logger"
	"github.com/filecrate/filecrate/internal/store"
)

// Server routes HTTP requests to a storage engine.
type Server struct {
	store store.Store
	log   *logger.Logger
}

// NewServer wires the handlers for st. A nil log disables request logging.
func NewServer(st store.Store, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{store: st, log: log}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handlePing)

	r.Route("/files", func(r chi.Router) {
		r.Post("/", s.handleUpload)
		r.Get("/", s.handleList)
		r.Post("/search", s.handleSearch)
		r.Post("/bulk", s.handleBulkUpload)
		r.Post("/bulk-delete", s.handleBulkDelete)
		r.Post("/bulk-move", s.handleBulkMove)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleDownload)
			r.Delete("/", s.handleDelete)
			r.Get("/metadata", s.handleMetadata)
			r.Post("/rename", s.handleRename)
			r.Post("/move", s.handleMove)
			r.Post("/copy", s.handleCopy)
			r.Get("/thumbnail", s.handleThumbnail)
			r.Get("/urls", s.handleURLs)
		})
	})

	r.Route("/folders", func(r chi.Router) {
		r.Get("/", s.handleListFolders)
		r.Post("/", s.handleCreateFolder)
		r.Delete("/", s.handleDeleteFolder)
	})

	return r
}

// requestLogger emits one structured line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
