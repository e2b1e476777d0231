// Package gateway builds the serve-mode HTTP surface from a composed stack.
// The mux mirrors the declared gateway exactly: one handler per route
// binding, a uniform CORS policy at the root, and no authentication layer —
// the same documented gap the deployed gateway has.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/voicekb/voicekb/internal/ctxlog"
	"github.com/voicekb/voicekb/internal/registry"
	"github.com/voicekb/voicekb/internal/stack"
)

// NewMux builds the route table for the stack's gateway. Every route target
// must already be registered; parity between declared routes and runtime
// handlers is validated by the registry before this is called.
func NewMux(ctx context.Context, b *stack.Builder, reg *registry.Registry) (http.Handler, error) {
	logger := ctxlog.FromContext(ctx)

	var gw *stack.Gateway
	for _, e := range b.Entities() {
		if g, ok := e.(*stack.Gateway); ok {
			if gw != nil {
				return nil, fmt.Errorf("stack declares more than one gateway")
			}
			gw = g
		}
	}
	if gw == nil {
		return nil, fmt.Errorf("stack declares no gateway")
	}

	mux := http.NewServeMux()
	for _, route := range gw.Routes {
		h, ok := reg.Lookup(route.FunctionID)
		if !ok {
			return nil, fmt.Errorf("route %s %s: no handler registered for %q", route.Method, route.Path, route.FunctionID)
		}
		mux.Handle(route.Method+" "+route.Path, withCORS(gw.CORS, h))
		mux.Handle("OPTIONS "+route.Path, preflight(gw.CORS))
		logger.Debug("Route registered.", "method", route.Method, "path", route.Path, "target", route.FunctionID)
	}
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		ctxlog.FromContext(r.Context()).Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr)
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})

	return mux, nil
}

// corsHeaders applies the declared policy to a response.
func corsHeaders(policy stack.CORSPolicy, w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", strings.Join(policy.AllowOrigins, ","))
	w.Header().Set("Access-Control-Allow-Methods", strings.Join(policy.AllowMethods, ","))
	w.Header().Set("Access-Control-Allow-Headers", strings.Join(policy.AllowHeaders, ","))
}

// withCORS decorates a route handler with the gateway's uniform CORS policy.
func withCORS(policy stack.CORSPolicy, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corsHeaders(policy, w)
		next.ServeHTTP(w, r)
	})
}

// preflight answers OPTIONS requests for a route.
func preflight(policy stack.CORSPolicy) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corsHeaders(policy, w)
		w.WriteHeader(http.StatusNoContent)
	})
}

// Serve runs the gateway until the context is cancelled, then shuts the
// server down gracefully.
func Serve(ctx context.Context, port int, h http.Handler) error {
	logger := ctxlog.FromContext(ctx)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: h,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("🌐 Gateway listening.", "address", fmt.Sprintf("http://localhost%s", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("🌐 Shutting down gateway...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("gateway shutdown failed: %w", err)
	}
	return <-errCh
}
