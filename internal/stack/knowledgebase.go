package stack

import (
	"fmt"
)

// KnowledgeBaseSpec is the construction input for the managed vector index.
type KnowledgeBaseSpec struct {
	LogicalID         string
	EmbeddingModelARN string
	RoleID            string
}

// KnowledgeBase declares the managed vector index. Its identifier is
// generated during provisioning and reachable through the
// AttrKnowledgeBaseID attribute.
type KnowledgeBase struct {
	id                string
	EmbeddingModelARN string
	RoleID            string
}

// Generated attribute names, per entity kind.
const (
	AttrKnowledgeBaseID = "KnowledgeBaseId"
	AttrDataSourceID    = "DataSourceId"
	AttrBucketName      = "BucketName"
	AttrARN             = "Arn"
	AttrURL             = "Url"
)

// AddKnowledgeBase declares the knowledge base. The owning role must already
// be declared and must be assumable by the knowledge engine.
func (b *Builder) AddKnowledgeBase(spec KnowledgeBaseSpec) (*KnowledgeBase, error) {
	if spec.EmbeddingModelARN == "" {
		return nil, fmt.Errorf("knowledge base %q: embedding model must be set", spec.LogicalID)
	}
	role, err := b.roleRef(spec.RoleID)
	if err != nil {
		return nil, fmt.Errorf("knowledge base %q: %w", spec.LogicalID, err)
	}
	if role.TrustedPrincipal != PrincipalKnowledgeEngine {
		return nil, fmt.Errorf("knowledge base %q: role %q trusts %q, must trust %q",
			spec.LogicalID, spec.RoleID, role.TrustedPrincipal, PrincipalKnowledgeEngine)
	}

	kb := &KnowledgeBase{
		id:                spec.LogicalID,
		EmbeddingModelARN: spec.EmbeddingModelARN,
		RoleID:            spec.RoleID,
	}
	if err := b.register(kb); err != nil {
		return nil, err
	}
	return kb, nil
}

// LogicalID implements Entity.
func (kb *KnowledgeBase) LogicalID() string { return kb.id }

// EntityKind implements Entity.
func (kb *KnowledgeBase) EntityKind() Kind { return KindKnowledgeBase }

// DependsOn implements Entity.
func (kb *KnowledgeBase) DependsOn() []string { return []string{kb.RoleID} }

// Chunking holds the policy parameters handed to the knowledge engine for
// splitting documents. The engine performs the actual chunking and embedding;
// this layer only records the policy.
type Chunking struct {
	// MaxTokens bounds the size of one retrievable unit. Must be positive.
	MaxTokens int
	// OverlapFraction is the share of each unit repeated in its neighbour,
	// in the half-open interval [0, 1).
	OverlapFraction float64
}

// Validate checks the chunking parameters against their documented ranges.
func (c Chunking) Validate() error {
	if c.MaxTokens <= 0 {
		return fmt.Errorf("chunking max tokens must be positive, got %d", c.MaxTokens)
	}
	if c.OverlapFraction < 0 || c.OverlapFraction >= 1 {
		return fmt.Errorf("chunking overlap fraction must be in [0, 1), got %g", c.OverlapFraction)
	}
	return nil
}

// DataSourceSpec is the construction input for a data source binding.
type DataSourceSpec struct {
	LogicalID       string
	KnowledgeBaseID string
	BucketID        string
	Chunking        Chunking
}

// DataSourceBinding associates a bucket with a knowledge base under a
// chunking policy. One binding exists per (knowledge base, bucket) pair.
type DataSourceBinding struct {
	id              string
	KnowledgeBaseID string
	BucketID        string
	Chunking        Chunking
}

// AddDataSourceBinding declares the binding. Construction is rejected when
// the chunking parameters are out of range, or when the knowledge base's
// owning role cannot read the bucket: permission assembly must precede
// binding construction, never the reverse.
func (b *Builder) AddDataSourceBinding(spec DataSourceSpec) (*DataSourceBinding, error) {
	if err := spec.Chunking.Validate(); err != nil {
		return nil, fmt.Errorf("data source %q: %w", spec.LogicalID, err)
	}

	e, ok := b.ids[spec.KnowledgeBaseID]
	if !ok {
		return nil, fmt.Errorf("data source %q: references undeclared entity %q", spec.LogicalID, spec.KnowledgeBaseID)
	}
	kb, ok := e.(*KnowledgeBase)
	if !ok {
		return nil, fmt.Errorf("data source %q: entity %q is %s, expected %s",
			spec.LogicalID, spec.KnowledgeBaseID, e.EntityKind(), KindKnowledgeBase)
	}
	bucket, err := b.bucketRef(spec.BucketID)
	if err != nil {
		return nil, fmt.Errorf("data source %q: %w", spec.LogicalID, err)
	}

	role, err := b.roleRef(kb.RoleID)
	if err != nil {
		return nil, fmt.Errorf("data source %q: %w", spec.LogicalID, err)
	}
	if !role.CanRead(bucket) {
		return nil, fmt.Errorf("data source %q: role %q has no read grant on bucket %q",
			spec.LogicalID, kb.RoleID, spec.BucketID)
	}

	for _, other := range b.Entities() {
		ds, ok := other.(*DataSourceBinding)
		if ok && ds.KnowledgeBaseID == spec.KnowledgeBaseID && ds.BucketID == spec.BucketID {
			return nil, fmt.Errorf("data source %q: pair (%s, %s) is already bound by %q",
				spec.LogicalID, spec.KnowledgeBaseID, spec.BucketID, ds.id)
		}
	}

	ds := &DataSourceBinding{
		id:              spec.LogicalID,
		KnowledgeBaseID: spec.KnowledgeBaseID,
		BucketID:        spec.BucketID,
		Chunking:        spec.Chunking,
	}
	if err := b.register(ds); err != nil {
		return nil, err
	}
	return ds, nil
}

// LogicalID implements Entity.
func (ds *DataSourceBinding) LogicalID() string { return ds.id }

// EntityKind implements Entity.
func (ds *DataSourceBinding) EntityKind() Kind { return KindDataSource }

// DependsOn implements Entity.
func (ds *DataSourceBinding) DependsOn() []string {
	return []string{ds.KnowledgeBaseID, ds.BucketID}
}
