// Package server hosts the live streaming endpoints: a chunked HTTP
// stream, a WebSocket stream for MSE players, and a stats endpoint.
// Muxed output reaches connected clients through a Broadcaster.
package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/streamkit/mkvmux/internal/util"
)

// Server serves one live stream on one listen address.
type Server struct {
	addr        string
	broadcaster *Broadcaster
	httpServer  *http.Server
}

// New creates a streaming server around an existing broadcaster.
func New(addr string, broadcaster *Broadcaster, contentType string) *Server {
	mux := http.NewServeMux()
	NewHandler(broadcaster, contentType).Register(mux)

	return &Server{
		addr:        addr,
		broadcaster: broadcaster,
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      loggingMiddleware(mux),
			ReadTimeout:  0, // No read timeout for streaming connections
			WriteTimeout: 0, // No write timeout for streaming connections
			IdleTimeout:  0, // No idle timeout for streaming connections
		},
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Start begins serving and blocks until the listener fails or Stop is
// called. After a clean Stop it returns http.ErrServerClosed.
func (s *Server) Start() error {
	util.GetLogger().Info("streaming server listening", "addr", s.addr)
	return s.httpServer.ListenAndServe()
}

// Stop closes the broadcaster, which ends every subscriber loop, then
// shuts the HTTP server down.
func (s *Server) Stop() error {
	s.broadcaster.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		util.GetLogger().Warn("graceful shutdown failed, forcing close", "error", err)
		return s.httpServer.Close()
	}
	return nil
}

type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	length int
}

func (lw *loggingResponseWriter) WriteHeader(code int) {
	lw.status = code
	lw.ResponseWriter.WriteHeader(code)
}

func (lw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lw.status == 0 {
		lw.status = http.StatusOK
	}
	n, err := lw.ResponseWriter.Write(b)
	lw.length += n
	return n, err
}

// Flush forwards to the wrapped writer so the stream handler can push
// each cluster as soon as it is written.
func (lw *loggingResponseWriter) Flush() {
	if flusher, ok := lw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack forwards to the wrapped writer so WebSocket upgrades work
// through the logging middleware.
func (lw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := lw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("http.Hijacker interface is not supported")
	}
	return hj.Hijack()
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lw := &loggingResponseWriter{ResponseWriter: w}
		next.ServeHTTP(lw, r)
		util.GetLogger().Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", lw.status,
			"bytes", lw.length,
			"duration", time.Since(start).Round(time.Millisecond),
			"remote", r.RemoteAddr,
		)
	})
}
