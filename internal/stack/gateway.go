package stack

import (
	"fmt"
	"strings"
)

// CORSPolicy is applied uniformly at the gateway root. The defaults used by
// this stack are permissive (all origins, all methods) with a fixed header
// allow-list: a prototyping posture, tightened by configuration rather than
// by a design change.
type CORSPolicy struct {
	AllowOrigins []string
	AllowMethods []string
	AllowHeaders []string
}

// Route binds one path and verb to exactly one declared function.
type Route struct {
	Path       string
	Method     string
	FunctionID string
}

// GatewaySpec is the construction input for the HTTP entry point.
type GatewaySpec struct {
	LogicalID string
	CORS      CORSPolicy
	Routes    []Route
}

// Gateway is the HTTP entry point with an ordered set of route bindings.
// No authentication layer is declared: any caller reaching the public
// endpoint can invoke either route. That gap is a documented property of
// this design, not something this layer silently patches.
type Gateway struct {
	id     string
	CORS   CORSPolicy
	Routes []Route
}

// AddGateway declares the gateway. Every route target must already be
// declared; wildcard fallback routes are rejected.
func (b *Builder) AddGateway(spec GatewaySpec) (*Gateway, error) {
	if len(spec.Routes) == 0 {
		return nil, fmt.Errorf("gateway %q: at least one route is required", spec.LogicalID)
	}
	seen := make(map[string]bool, len(spec.Routes))
	for _, r := range spec.Routes {
		if !strings.HasPrefix(r.Path, "/") {
			return nil, fmt.Errorf("gateway %q: route path %q must start with /", spec.LogicalID, r.Path)
		}
		if strings.Contains(r.Path, "*") || strings.Contains(r.Path, "{proxy+}") {
			return nil, fmt.Errorf("gateway %q: wildcard route %q is not allowed", spec.LogicalID, r.Path)
		}
		switch r.Method {
		case "GET", "POST", "PUT", "PATCH", "DELETE":
		default:
			return nil, fmt.Errorf("gateway %q: route %q has unsupported method %q", spec.LogicalID, r.Path, r.Method)
		}
		key := r.Method + " " + r.Path
		if seen[key] {
			return nil, fmt.Errorf("gateway %q: duplicate route %s", spec.LogicalID, key)
		}
		seen[key] = true

		e, ok := b.ids[r.FunctionID]
		if !ok {
			return nil, fmt.Errorf("gateway %q: route %s targets undeclared entity %q", spec.LogicalID, key, r.FunctionID)
		}
		if _, ok := e.(*Function); !ok {
			return nil, fmt.Errorf("gateway %q: route %s targets %s %q, expected %s",
				spec.LogicalID, key, e.EntityKind(), r.FunctionID, KindFunction)
		}
	}

	gw := &Gateway{
		id:     spec.LogicalID,
		CORS:   spec.CORS,
		Routes: spec.Routes,
	}
	if err := b.register(gw); err != nil {
		return nil, err
	}
	return gw, nil
}

// LogicalID implements Entity.
func (g *Gateway) LogicalID() string { return g.id }

// EntityKind implements Entity.
func (g *Gateway) EntityKind() Kind { return KindGateway }

// DependsOn implements Entity.
func (g *Gateway) DependsOn() []string {
	seen := make(map[string]bool, len(g.Routes))
	var deps []string
	for _, r := range g.Routes {
		if !seen[r.FunctionID] {
			seen[r.FunctionID] = true
			deps = append(deps, r.FunctionID)
		}
	}
	return deps
}
