package stack

import (
	"fmt"
	"sort"
)

// LayerSpec is the construction input for a packaged dependency bundle.
type LayerSpec struct {
	LogicalID          string
	ContentPath        string
	CompatibleRuntimes []string
}

// LayerArtifact is a packaged dependency bundle attachable to functions.
type LayerArtifact struct {
	id                 string
	ContentPath        string
	CompatibleRuntimes []string
}

// AddLayer declares a layer artifact. Layers are leaf declarations.
func (b *Builder) AddLayer(spec LayerSpec) (*LayerArtifact, error) {
	if spec.ContentPath == "" {
		return nil, fmt.Errorf("layer %q: content path must be set", spec.LogicalID)
	}
	layer := &LayerArtifact{
		id:                 spec.LogicalID,
		ContentPath:        spec.ContentPath,
		CompatibleRuntimes: spec.CompatibleRuntimes,
	}
	if err := b.register(layer); err != nil {
		return nil, err
	}
	return layer, nil
}

// LogicalID implements Entity.
func (l *LayerArtifact) LogicalID() string { return l.id }

// EntityKind implements Entity.
func (l *LayerArtifact) EntityKind() Kind { return KindLayer }

// DependsOn implements Entity.
func (l *LayerArtifact) DependsOn() []string { return nil }

// FunctionSpec is the construction input for a request handler declaration.
// The handler's business logic lives outside this layer; the spec only pins
// its runtime contract.
type FunctionSpec struct {
	LogicalID      string
	Handler        string
	Runtime        string
	CodePath       string
	RoleID         string
	TimeoutSeconds int
	MemoryMB       int
	LayerIDs       []string
	// Env maps environment variable names to literal strings or deferred
	// references to other entities' generated attributes. A deferred
	// reference creates a hard ordering dependency on its target.
	Env map[string]Value
}

// Function declares one request-handling unit.
type Function struct {
	id             string
	Handler        string
	Runtime        string
	CodePath       string
	RoleID         string
	TimeoutSeconds int
	MemoryMB       int
	LayerIDs       []string
	Env            map[string]Value
}

// AddFunction declares a handler. Everything the handler reads identifiers
// from (role, layers, deferred env targets) must already be declared.
func (b *Builder) AddFunction(spec FunctionSpec) (*Function, error) {
	if spec.Handler == "" {
		return nil, fmt.Errorf("function %q: entry point must be set", spec.LogicalID)
	}
	if spec.Runtime == "" {
		return nil, fmt.Errorf("function %q: runtime must be set", spec.LogicalID)
	}
	if spec.TimeoutSeconds <= 0 {
		return nil, fmt.Errorf("function %q: time budget must be positive, got %d", spec.LogicalID, spec.TimeoutSeconds)
	}
	if spec.MemoryMB <= 0 {
		return nil, fmt.Errorf("function %q: memory budget must be positive, got %d", spec.LogicalID, spec.MemoryMB)
	}
	role, err := b.roleRef(spec.RoleID)
	if err != nil {
		return nil, fmt.Errorf("function %q: %w", spec.LogicalID, err)
	}
	if role.TrustedPrincipal != PrincipalFunctions {
		return nil, fmt.Errorf("function %q: role %q trusts %q, must trust %q",
			spec.LogicalID, spec.RoleID, role.TrustedPrincipal, PrincipalFunctions)
	}
	for _, layerID := range spec.LayerIDs {
		e, ok := b.ids[layerID]
		if !ok {
			return nil, fmt.Errorf("function %q: references undeclared layer %q", spec.LogicalID, layerID)
		}
		if _, ok := e.(*LayerArtifact); !ok {
			return nil, fmt.Errorf("function %q: entity %q is %s, expected %s",
				spec.LogicalID, layerID, e.EntityKind(), KindLayer)
		}
	}
	for name, v := range spec.Env {
		ref := v.Target()
		if ref == nil {
			continue
		}
		if ref.Attribute == "" {
			return nil, fmt.Errorf("function %q: env %q references %q with empty attribute", spec.LogicalID, name, ref.LogicalID)
		}
		if _, ok := b.ids[ref.LogicalID]; !ok {
			return nil, fmt.Errorf("function %q: env %q references undeclared entity %q", spec.LogicalID, name, ref.LogicalID)
		}
	}

	fn := &Function{
		id:             spec.LogicalID,
		Handler:        spec.Handler,
		Runtime:        spec.Runtime,
		CodePath:       spec.CodePath,
		RoleID:         spec.RoleID,
		TimeoutSeconds: spec.TimeoutSeconds,
		MemoryMB:       spec.MemoryMB,
		LayerIDs:       spec.LayerIDs,
		Env:            spec.Env,
	}
	if err := b.register(fn); err != nil {
		return nil, err
	}
	return fn, nil
}

// LogicalID implements Entity.
func (f *Function) LogicalID() string { return f.id }

// EntityKind implements Entity.
func (f *Function) EntityKind() Kind { return KindFunction }

// DependsOn implements Entity. The edge set is the role, the layers, and
// every deferred env reference target, deduplicated and sorted.
func (f *Function) DependsOn() []string {
	seen := map[string]bool{f.RoleID: true}
	deps := []string{f.RoleID}
	for _, layerID := range f.LayerIDs {
		if !seen[layerID] {
			seen[layerID] = true
			deps = append(deps, layerID)
		}
	}
	for _, v := range f.Env {
		if ref := v.Target(); ref != nil && !seen[ref.LogicalID] {
			seen[ref.LogicalID] = true
			deps = append(deps, ref.LogicalID)
		}
	}
	sort.Strings(deps)
	return deps
}

// EnvNames returns the environment variable names in sorted order.
func (f *Function) EnvNames() []string {
	names := make([]string, 0, len(f.Env))
	for name := range f.Env {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
