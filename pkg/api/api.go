// Package api provides the HTTP API server implementation for Watchless.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// readHeaderTimeout is the timeout for reading request headers.
const readHeaderTimeout = 10 * time.Second

// shutdownTimeout is the timeout for graceful server shutdown.
const shutdownTimeout = 5 * time.Second

// errMissingToken indicates the API was started without an authentication token.
var errMissingToken = errors.New("api token is empty or unset")

// HTTPServer abstracts the underlying server for testing.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// API represents the HTTP API server for Watchless.
//
// Every registered handler sits behind bearer-token authentication.
type API struct {
	token       string
	addr        string
	hasHandlers bool
	mux         *http.ServeMux
	server      HTTPServer
}

// New is a factory function creating a new API instance.
// The server parameter is optional and allows dependency injection for testing.
func New(token, addr string, server ...HTTPServer) *API {
	var injectedServer HTTPServer
	if len(server) > 0 {
		injectedServer = server[0]
	}

	return &API{
		token:  token,
		addr:   addr,
		mux:    http.NewServeMux(),
		server: injectedServer,
	}
}

// Addr formats the listen address from host and port, bracketing IPv6 hosts.
func Addr(host, port string) string {
	if host != "" && strings.Contains(host, ":") && net.ParseIP(host) != nil {
		return "[" + host + "]:" + port
	}

	return host + ":" + port
}

// RegisterFunc registers an authenticated HTTP handler function for the given path.
func (a *API) RegisterFunc(path string, handler func(http.ResponseWriter, *http.Request)) {
	a.mux.HandleFunc(path, a.RequireToken(handler))
	a.hasHandlers = true
}

// RegisterHandler registers an authenticated HTTP handler for the given path.
func (a *API) RegisterHandler(path string, handler http.Handler) {
	a.mux.Handle(path, a.RequireToken(handler.ServeHTTP))
	a.hasHandlers = true
}

// RequireToken wraps a handler function with bearer-token authentication.
func (a *API) RequireToken(handler func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") ||
			strings.TrimPrefix(auth, "Bearer ") != a.token {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)

			return
		}

		handler(w, r)
	}
}

// Start launches the HTTP API server in the background and shuts it down
// gracefully when the context is cancelled.
//
// Returns:
//   - error: Non-nil if no token is configured; nil otherwise, including
//     when no handlers are registered and the server is skipped.
func (a *API) Start(ctx context.Context) error {
	if !a.hasHandlers {
		logrus.Info("No HTTP API handlers registered, skipping API start")

		return nil
	}

	if a.token == "" {
		return errMissingToken
	}

	server := a.server
	if server == nil {
		server = &http.Server{
			Addr:              a.addr,
			Handler:           a.mux,
			ReadHeaderTimeout: readHeaderTimeout,
			BaseContext:       func(_ net.Listener) context.Context { return ctx },
		}
	}

	logrus.WithField("addr", a.addr).Info("Starting HTTP API server")

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("HTTP API server failed")
		}
	}()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Error("Failed to shutdown HTTP API server")
		}
	}()

	return nil
}

// RunHTTPServer starts the given server and blocks until it fails or the
// context is cancelled, then shuts it down gracefully.
func RunHTTPServer(ctx context.Context, server HTTPServer) error {
	errChan := make(chan error, 1)

	go func() {
		errChan <- server.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		return nil
	}
}
