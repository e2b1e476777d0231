package stack

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/voicekb/voicekb/internal/ctxlog"
)

// Resolver assigns generated attributes to a declared entity. The real
// assignment happens in an external provisioning tool; implementations of
// this interface either simulate it (local development) or read back the
// attributes that tool recorded.
type Resolver interface {
	Resolve(ctx context.Context, e Entity) (map[string]cty.Value, error)
}

// Resolved is the output of the final linking pass: every generated
// attribute assigned, every deferred reference replaced by its concrete
// value. It is immutable by convention once returned.
type Resolved struct {
	Name   string
	Region string
	// Order is the deterministic topological order the entities resolve in.
	Order []string
	// Attrs maps logical ID to that entity's generated attributes.
	Attrs map[string]map[string]cty.Value
	// FunctionEnv maps function logical ID to its fully-resolved environment.
	FunctionEnv map[string]map[string]string
	// Outputs maps export names to their resolved values.
	Outputs map[string]string
}

// Finalize runs the linking pass: validate the dependency graph, resolve
// entities in topological order, then replace every deferred reference in
// function environments and exports. A deferred reference that cannot be
// satisfied is a fatal error; no placeholder values survive this pass.
func (b *Builder) Finalize(ctx context.Context, r Resolver) (*Resolved, error) {
	logger := ctxlog.FromContext(ctx)

	g, err := b.Graph()
	if err != nil {
		return nil, err
	}
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	logger.Debug("Finalize: dependency graph validated.", "entity_count", len(order))

	res := &Resolved{
		Name:        b.name,
		Region:      b.region,
		Order:       order,
		Attrs:       make(map[string]map[string]cty.Value, len(order)),
		FunctionEnv: make(map[string]map[string]string),
		Outputs:     make(map[string]string, len(b.exports)),
	}

	for _, id := range order {
		attrs, err := r.Resolve(ctx, b.ids[id])
		if err != nil {
			return nil, fmt.Errorf("resolving %q: %w", id, err)
		}
		res.Attrs[id] = attrs
	}
	logger.Debug("Finalize: attribute resolution complete.")

	lookup := func(ref *AttrRef) (string, error) {
		attrs, ok := res.Attrs[ref.LogicalID]
		if !ok {
			return "", fmt.Errorf("unresolved reference %s: entity not resolved", ref)
		}
		v, ok := attrs[ref.Attribute]
		if !ok {
			return "", fmt.Errorf("unresolved reference %s: attribute not provided by resolver", ref)
		}
		if v.IsNull() || !v.Type().Equals(cty.String) {
			return "", fmt.Errorf("unresolved reference %s: attribute is not a known string", ref)
		}
		return v.AsString(), nil
	}

	for _, id := range order {
		fn, ok := b.ids[id].(*Function)
		if !ok {
			continue
		}
		env := make(map[string]string, len(fn.Env))
		for _, name := range fn.EnvNames() {
			v := fn.Env[name]
			if lit, ok := v.LiteralString(); ok {
				env[name] = lit
				continue
			}
			resolved, err := lookup(v.Target())
			if err != nil {
				return nil, fmt.Errorf("function %q env %q: %w", id, name, err)
			}
			env[name] = resolved
		}
		res.FunctionEnv[id] = env
	}

	for _, ex := range b.exports {
		v, err := lookup(&ex.Source)
		if err != nil {
			return nil, fmt.Errorf("export %q: %w", ex.Name, err)
		}
		res.Outputs[ex.Name] = v
	}
	logger.Debug("Finalize: linking pass complete.", "outputs", len(res.Outputs))

	return res, nil
}
