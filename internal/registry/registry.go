// Package registry maps declared function identities to the runtime
// http.Handler implementations serve mode dispatches to. It enforces a
// strict parity check between the composed stack and the registered Go
// handlers: a route whose target has no handler, or a handler whose target
// was never declared, is a startup error rather than a runtime surprise.
package registry

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/voicekb/voicekb/internal/ctxlog"
	"github.com/voicekb/voicekb/internal/stack"
)

// Registry holds the runtime handlers for a single application instance.
type Registry struct {
	handlers map[string]http.Handler
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		handlers: make(map[string]http.Handler),
	}
}

// Register binds a runtime handler to a declared function's logical ID.
func (r *Registry) Register(functionID string, h http.Handler) error {
	if functionID == "" {
		return fmt.Errorf("function id must not be empty")
	}
	if h == nil {
		return fmt.Errorf("handler for %q must not be nil", functionID)
	}
	if _, exists := r.handlers[functionID]; exists {
		return fmt.Errorf("handler for %q is already registered", functionID)
	}
	r.handlers[functionID] = h
	return nil
}

// Lookup returns the runtime handler bound to a function's logical ID.
func (r *Registry) Lookup(functionID string) (http.Handler, bool) {
	h, ok := r.handlers[functionID]
	return h, ok
}

// FunctionIDs returns the registered logical IDs in sorted order.
func (r *Registry) FunctionIDs() []string {
	ids := make([]string, 0, len(r.handlers))
	for id := range r.handlers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate performs the parity check between the composed stack and the
// registered handlers.
func (r *Registry) Validate(ctx context.Context, b *stack.Builder) error {
	logger := ctxlog.FromContext(ctx)
	var errs []string

	for _, e := range b.Entities() {
		gw, ok := e.(*stack.Gateway)
		if !ok {
			continue
		}
		for _, route := range gw.Routes {
			if _, ok := r.handlers[route.FunctionID]; !ok {
				errs = append(errs, fmt.Sprintf("route %s %s targets function %q which has no registered handler",
					route.Method, route.Path, route.FunctionID))
			}
		}
	}

	for _, id := range r.FunctionIDs() {
		e, ok := b.Entity(id)
		if !ok {
			errs = append(errs, fmt.Sprintf("handler registered for %q, but the stack declares no such entity", id))
			continue
		}
		if _, ok := e.(*stack.Function); !ok {
			errs = append(errs, fmt.Sprintf("handler registered for %q, but that entity is %s, not a function", id, e.EntityKind()))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	logger.Debug("Registry validation passed.", "handlers", len(r.handlers))
	return nil
}
