package stack

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

// mapResolver serves canned attributes per logical ID. Entities without an
// entry resolve to no attributes, which is fine unless something refers to them.
type mapResolver struct {
	attrs map[string]map[string]cty.Value
}

func (r *mapResolver) Resolve(_ context.Context, e Entity) (map[string]cty.Value, error) {
	return r.attrs[e.LogicalID()], nil
}

// declareLinkedStack builds a bucket, both roles, knowledge base, and one
// function whose env defers to the knowledge base id.
func declareLinkedStack(t *testing.T) *Builder {
	t.Helper()
	b := newTestBuilder(t)
	bucket, err := b.AddBucket(BucketSpec{LogicalID: "Documents", DeletionPolicy: DeletionPolicyRetain})
	require.NoError(t, err)
	addReaderRole(t, b, "EngineRole", bucket)
	addHandlerRole(t, b, "HandlerRole")
	_, err = b.AddKnowledgeBase(KnowledgeBaseSpec{
		LogicalID:         "KB",
		EmbeddingModelARN: testEmbeddingModelARN,
		RoleID:            "EngineRole",
	})
	require.NoError(t, err)

	spec := validFunctionSpec()
	spec.LogicalID = "QueryFn"
	spec.Env = map[string]Value{
		"REGION": Literal("us-east-1"),
		"KB_ID":  Deferred("KB", AttrKnowledgeBaseID),
	}
	_, err = b.AddFunction(spec)
	require.NoError(t, err)
	return b
}

func TestFinalize_LinksEnvAndExports(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	b := declareLinkedStack(t)
	require.NoError(t, b.AddExport("KnowledgeBaseId", "KB", AttrKnowledgeBaseID))

	resolver := &mapResolver{attrs: map[string]map[string]cty.Value{
		"KB": {AttrKnowledgeBaseID: cty.StringVal("A1B2C3D4E5")},
	}}

	// --- Act ---
	resolved, err := b.Finalize(context.Background(), resolver)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, "demo", resolved.Name)
	assert.Len(t, resolved.Order, 5)

	env := resolved.FunctionEnv["QueryFn"]
	require.NotNil(t, env)
	assert.Equal(t, "us-east-1", env["REGION"], "literal values pass through untouched")
	assert.Equal(t, "A1B2C3D4E5", env["KB_ID"], "deferred references resolve to the provisioned value")

	assert.Equal(t, "A1B2C3D4E5", resolved.Outputs["KnowledgeBaseId"])
}

func TestFinalize_UnresolvedReferenceIsFatal(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// The resolver never provides the knowledge base id the env refers to.
	b := declareLinkedStack(t)
	resolver := &mapResolver{attrs: map[string]map[string]cty.Value{}}

	// --- Act ---
	_, err := b.Finalize(context.Background(), resolver)

	// --- Assert ---
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unresolved reference KB.KnowledgeBaseId")
}

func TestFinalize_NonStringAttributeIsFatal(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	b := declareLinkedStack(t)
	resolver := &mapResolver{attrs: map[string]map[string]cty.Value{
		"KB": {AttrKnowledgeBaseID: cty.NumberIntVal(42)},
	}}

	// --- Act ---
	_, err := b.Finalize(context.Background(), resolver)

	// --- Assert ---
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a known string")
}

func TestFinalize_OrderIsDeterministic(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	resolver := &mapResolver{attrs: map[string]map[string]cty.Value{
		"KB": {AttrKnowledgeBaseID: cty.StringVal("A1B2C3D4E5")},
	}}

	// --- Act ---
	// Two independent evaluations of the same declarations.
	first, err := declareLinkedStack(t).Finalize(context.Background(), resolver)
	require.NoError(t, err)
	second, err := declareLinkedStack(t).Finalize(context.Background(), resolver)
	require.NoError(t, err)

	// --- Assert ---
	assert.Equal(t, first.Order, second.Order)
}
