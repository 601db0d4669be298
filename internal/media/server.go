package media

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Server exposes stored media over HTTP so the backend can fetch first-contact
// attachments by URL.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	logger     *zap.Logger
}

// NewServer binds addr and prepares the router. Serving starts with Start.
func NewServer(store *Store, addr string, logger *zap.Logger) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return &Server{
		httpServer: &http.Server{
			Handler:           NewRouter(store, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
		listener: listener,
		logger:   logger,
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Start serves requests. Blocks until stopped.
func (s *Server) Start() error {
	s.logger.Info("media server starting", zap.String("addr", s.Addr()))
	if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop performs a graceful shutdown.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("media server stopping")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("media server shutdown", zap.Error(err))
	}
}

// NewRouter builds the media HTTP routes.
func NewRouter(store *Store, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/media/{uid}/{name}", func(w http.ResponseWriter, r *http.Request) {
		uid, err1 := pathParam(r, "uid")
		name, err2 := pathParam(r, "name")
		if err1 != nil || err2 != nil {
			http.Error(w, "bad media path", http.StatusBadRequest)
			return
		}
		key := uid + "/" + name
		blob, err := store.Get(key)
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "media not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.Error("read media", zap.String("key", key), zap.Error(err))
			http.Error(w, "failed to read media", http.StatusInternalServerError)
			return
		}
		if blob.MimeType != "" {
			w.Header().Set("Content-Type", blob.MimeType)
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
		w.Header().Set("Cache-Control", "public, max-age=86400")
		_, _ = w.Write(blob.Data)
	})

	return r
}

// pathParam returns a decoded route parameter. chi matches on the raw path
// whenever the request carries one, leaving its parameters escaped.
func pathParam(r *http.Request, key string) (string, error) {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v, nil
	}
	return url.PathUnescape(v)
}

func accessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("media request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
