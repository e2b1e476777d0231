package provision

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/voicekb/voicekb/internal/stack"
)

// resolveStack composes a small stack and resolves every entity with a fresh
// local resolver.
func resolveStack(t *testing.T) map[string]map[string]cty.Value {
	t.Helper()

	b, err := stack.NewBuilder("voicekb", "us-east-1")
	require.NoError(t, err)
	bucket, err := b.AddBucket(stack.BucketSpec{LogicalID: "Documents", DeletionPolicy: stack.DeletionPolicyRetain})
	require.NoError(t, err)
	_, err = b.AddRole(stack.RoleSpec{
		LogicalID:        "EngineRole",
		TrustedPrincipal: stack.PrincipalKnowledgeEngine,
		Grants: []stack.Grant{
			{Actions: []string{"s3:GetObject"}, Resources: []string{bucket.ObjectsARN()}},
		},
	})
	require.NoError(t, err)
	_, err = b.AddKnowledgeBase(stack.KnowledgeBaseSpec{
		LogicalID:         "KB",
		EmbeddingModelARN: "arn:aws:bedrock:us-east-1::foundation-model/amazon.titan-embed-text-v2:0",
		RoleID:            "EngineRole",
	})
	require.NoError(t, err)

	r := NewLocalResolver("voicekb", "us-east-1")
	attrs := make(map[string]map[string]cty.Value)
	for _, e := range b.Entities() {
		resolved, err := r.Resolve(context.Background(), e)
		require.NoError(t, err)
		attrs[e.LogicalID()] = resolved
	}
	return attrs
}

func TestLocalResolver_IsDeterministic(t *testing.T) {
	t.Parallel()

	// --- Act ---
	first := resolveStack(t)
	second := resolveStack(t)

	// --- Assert ---
	// Identifier assignment is derived, not random: two evaluations of the
	// same stack agree on every attribute.
	assert.Equal(t, first, second)
}

func TestLocalResolver_GeneratedIDShape(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	attrs := resolveStack(t)

	// --- Assert ---
	kbID := attrs["KB"][stack.AttrKnowledgeBaseID].AsString()
	assert.Regexp(t, regexp.MustCompile(`^[0-9A-F]{10}$`), kbID,
		"generated ids use the managed service's 10-character uppercase shape")
}

func TestLocalResolver_BucketAttributes(t *testing.T) {
	t.Parallel()

	attrs := resolveStack(t)

	assert.Equal(t, "voicekb-documents", attrs["Documents"][stack.AttrBucketName].AsString())
	assert.Equal(t, "arn:aws:s3:::voicekb-documents", attrs["Documents"][stack.AttrARN].AsString())
}

func TestLocalResolver_DifferentStacksDiverge(t *testing.T) {
	t.Parallel()

	// --- Act ---
	one := NewLocalResolver("stack-a", "us-east-1").shortID("KB")
	other := NewLocalResolver("stack-b", "us-east-1").shortID("KB")

	// --- Assert ---
	assert.NotEqual(t, one, other, "the stack name namespaces the derived identifiers")
}
