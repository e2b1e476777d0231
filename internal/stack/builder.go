package stack

import (
	"errors"
	"fmt"

	"github.com/voicekb/voicekb/internal/dag"
)

// Builder is the explicit, mutable context every construction call records
// into. It replaces ambient global registration: callers create one Builder
// per stack evaluation and thread it through each Add* call in dependency
// order (leaves first). The Builder does not infer ordering; declaring an
// entity before its dependencies is a fatal configuration error.
type Builder struct {
	name    string
	region  string
	ids     map[string]Entity
	order   []string
	exports []Export
}

// NewBuilder creates an empty builder for a named stack in a region.
func NewBuilder(name, region string) (*Builder, error) {
	if name == "" {
		return nil, errors.New("stack name must not be empty")
	}
	if region == "" {
		return nil, errors.New("stack region must not be empty")
	}
	return &Builder{
		name:   name,
		region: region,
		ids:    make(map[string]Entity),
	}, nil
}

// Name returns the stack name.
func (b *Builder) Name() string { return b.name }

// Region returns the deployment region.
func (b *Builder) Region() string { return b.region }

// register records a constructed entity, enforcing identity uniqueness and
// the declare-dependencies-first contract shared by every Add* method.
func (b *Builder) register(e Entity) error {
	id := e.LogicalID()
	if id == "" {
		return errors.New("logical id must not be empty")
	}
	if _, exists := b.ids[id]; exists {
		return fmt.Errorf("identity collision: %q is already declared", id)
	}
	for _, dep := range e.DependsOn() {
		if _, ok := b.ids[dep]; !ok {
			return fmt.Errorf("entity %q references undeclared entity %q: dependencies must be declared first", id, dep)
		}
	}
	b.ids[id] = e
	b.order = append(b.order, id)
	return nil
}

// Entity looks up a declaration by logical ID.
func (b *Builder) Entity(id string) (Entity, bool) {
	e, ok := b.ids[id]
	return e, ok
}

// Entities returns every declaration in the order it was registered.
func (b *Builder) Entities() []Entity {
	out := make([]Entity, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.ids[id])
	}
	return out
}

// EntityIDs returns the logical IDs in registration order.
func (b *Builder) EntityIDs() []string {
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

// Exports returns the declared post-provisioning outputs in declaration order.
func (b *Builder) Exports() []Export {
	out := make([]Export, len(b.exports))
	copy(out, b.exports)
	return out
}

// Graph materialises the dependency edges declared by every entity into a
// DAG and validates it for cycles.
func (b *Builder) Graph() (*dag.Graph, error) {
	g := dag.New()
	for _, id := range b.order {
		g.AddNode(id)
	}
	for _, id := range b.order {
		for _, dep := range b.ids[id].DependsOn() {
			if err := g.AddEdge(dep, id); err != nil {
				return nil, fmt.Errorf("wiring dependency %s -> %s: %w", dep, id, err)
			}
		}
	}
	if err := g.DetectCycles(); err != nil {
		return nil, fmt.Errorf("validating dependency graph: %w", err)
	}
	return g, nil
}

// bucketRef resolves a logical ID that must name a declared bucket.
func (b *Builder) bucketRef(id string) (*Bucket, error) {
	e, ok := b.ids[id]
	if !ok {
		return nil, fmt.Errorf("references undeclared entity %q", id)
	}
	bucket, ok := e.(*Bucket)
	if !ok {
		return nil, fmt.Errorf("entity %q is %s, expected %s", id, e.EntityKind(), KindBucket)
	}
	return bucket, nil
}

// roleRef resolves a logical ID that must name a declared role.
func (b *Builder) roleRef(id string) (*Role, error) {
	e, ok := b.ids[id]
	if !ok {
		return nil, fmt.Errorf("references undeclared entity %q", id)
	}
	role, ok := e.(*Role)
	if !ok {
		return nil, fmt.Errorf("entity %q is %s, expected %s", id, e.EntityKind(), KindRole)
	}
	return role, nil
}
