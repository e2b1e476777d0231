package stack

import (
	"fmt"
	"strings"
)

// DeletionPolicy controls what happens to the bucket's contents when the
// stack is torn down. There is deliberately no default: keeping or dropping
// source documents is an auditable operator choice.
type DeletionPolicy string

// Valid deletion policies.
const (
	DeletionPolicyDelete DeletionPolicy = "delete"
	DeletionPolicyRetain DeletionPolicy = "retain"
)

// BucketSpec is the construction input for a storage bucket.
type BucketSpec struct {
	LogicalID      string
	DeletionPolicy DeletionPolicy
	Versioned      bool
}

// Bucket is the private, encrypted object store holding source documents.
// Public access blocking and at-rest encryption are not configurable; every
// bucket this stack declares has both.
type Bucket struct {
	id             string
	name           string
	DeletionPolicy DeletionPolicy
	Versioned      bool
}

// AddBucket declares the storage bucket. The physical bucket name is derived
// from the stack name and logical ID, so it is stable across evaluations and
// usable in permission grants at construction time.
func (b *Builder) AddBucket(spec BucketSpec) (*Bucket, error) {
	switch spec.DeletionPolicy {
	case DeletionPolicyDelete, DeletionPolicyRetain:
	case "":
		return nil, fmt.Errorf("bucket %q: deletion policy must be set explicitly", spec.LogicalID)
	default:
		return nil, fmt.Errorf("bucket %q: unknown deletion policy %q", spec.LogicalID, spec.DeletionPolicy)
	}

	bucket := &Bucket{
		id:             spec.LogicalID,
		name:           fmt.Sprintf("%s-%s", strings.ToLower(b.name), strings.ToLower(spec.LogicalID)),
		DeletionPolicy: spec.DeletionPolicy,
		Versioned:      spec.Versioned,
	}
	if err := b.register(bucket); err != nil {
		return nil, err
	}
	return bucket, nil
}

// LogicalID implements Entity.
func (bk *Bucket) LogicalID() string { return bk.id }

// EntityKind implements Entity.
func (bk *Bucket) EntityKind() Kind { return KindBucket }

// DependsOn implements Entity. Buckets are leaf declarations.
func (bk *Bucket) DependsOn() []string { return nil }

// BucketName returns the derived physical bucket name.
func (bk *Bucket) BucketName() string { return bk.name }

// ARN returns the bucket's own ARN, used as the first of the two resource
// patterns every storage grant is scoped to.
func (bk *Bucket) ARN() string {
	return "arn:aws:s3:::" + bk.name
}

// ObjectsARN returns the contained-object wildcard pattern, the second of the
// two resource patterns storage grants are scoped to.
func (bk *Bucket) ObjectsARN() string {
	return bk.ARN() + "/*"
}
