package stack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validFunctionSpec returns a spec that passes every check against the
// fixtures addHandlerRole and AddLayer install.
func validFunctionSpec() FunctionSpec {
	return FunctionSpec{
		LogicalID:      "Fn",
		Handler:        "handler.lambda_handler",
		Runtime:        "python3.12",
		CodePath:       "handlers/query",
		RoleID:         "HandlerRole",
		TimeoutSeconds: 60,
		MemoryMB:       512,
	}
}

func TestAddFunction_Validation(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		mutate  func(*FunctionSpec)
		wantErr string
	}{
		{
			name:   "valid spec is accepted",
			mutate: func(s *FunctionSpec) {},
		},
		{
			name:    "missing entry point",
			mutate:  func(s *FunctionSpec) { s.Handler = "" },
			wantErr: "entry point must be set",
		},
		{
			name:    "missing runtime",
			mutate:  func(s *FunctionSpec) { s.Runtime = "" },
			wantErr: "runtime must be set",
		},
		{
			name:    "zero time budget",
			mutate:  func(s *FunctionSpec) { s.TimeoutSeconds = 0 },
			wantErr: "time budget must be positive",
		},
		{
			name:    "negative memory budget",
			mutate:  func(s *FunctionSpec) { s.MemoryMB = -1 },
			wantErr: "memory budget must be positive",
		},
		{
			name:    "undeclared role",
			mutate:  func(s *FunctionSpec) { s.RoleID = "Ghost" },
			wantErr: "undeclared entity",
		},
		{
			name:    "undeclared layer",
			mutate:  func(s *FunctionSpec) { s.LayerIDs = []string{"GhostLayer"} },
			wantErr: "undeclared layer",
		},
		{
			name: "env referencing an undeclared entity",
			mutate: func(s *FunctionSpec) {
				s.Env = map[string]Value{"KB_ID": Deferred("Ghost", AttrKnowledgeBaseID)}
			},
			wantErr: "undeclared entity",
		},
		{
			name: "env reference with empty attribute",
			mutate: func(s *FunctionSpec) {
				s.Env = map[string]Value{"KB_ID": Deferred("HandlerRole", "")}
			},
			wantErr: "empty attribute",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			b := newTestBuilder(t)
			addHandlerRole(t, b, "HandlerRole")

			spec := validFunctionSpec()
			tc.mutate(&spec)
			_, err := b.AddFunction(spec)

			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestAddFunction_RoleMustTrustFunctionService(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	b := newTestBuilder(t)
	bucket, err := b.AddBucket(BucketSpec{LogicalID: "Documents", DeletionPolicy: DeletionPolicyRetain})
	require.NoError(t, err)
	addReaderRole(t, b, "EngineRole", bucket)

	// --- Act ---
	spec := validFunctionSpec()
	spec.RoleID = "EngineRole"
	_, err = b.AddFunction(spec)

	// --- Assert ---
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must trust")
}

func TestFunction_DependsOn(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	b := newTestBuilder(t)
	bucket, err := b.AddBucket(BucketSpec{LogicalID: "Documents", DeletionPolicy: DeletionPolicyRetain})
	require.NoError(t, err)
	addReaderRole(t, b, "EngineRole", bucket)
	addHandlerRole(t, b, "HandlerRole")
	_, err = b.AddLayer(LayerSpec{LogicalID: "DepsLayer", ContentPath: "layers/deps.zip"})
	require.NoError(t, err)
	_, err = b.AddKnowledgeBase(KnowledgeBaseSpec{
		LogicalID:         "KB",
		EmbeddingModelARN: testEmbeddingModelARN,
		RoleID:            "EngineRole",
	})
	require.NoError(t, err)

	spec := validFunctionSpec()
	spec.LayerIDs = []string{"DepsLayer"}
	spec.Env = map[string]Value{
		"REGION": Literal("us-east-1"),
		"KB_ID":  Deferred("KB", AttrKnowledgeBaseID),
		"KB_TWO": Deferred("KB", AttrARN), // Second ref to the same entity.
	}

	// --- Act ---
	fn, err := b.AddFunction(spec)
	require.NoError(t, err)

	// --- Assert ---
	// Role, layer, and the deferred target, deduplicated and sorted. The
	// literal env value contributes no edge.
	assert.Equal(t, []string{"DepsLayer", "HandlerRole", "KB"}, fn.DependsOn())
	assert.Equal(t, []string{"KB_ID", "KB_TWO", "REGION"}, fn.EnvNames())
}

func TestAddLayer_ContentPathRequired(t *testing.T) {
	t.Parallel()

	b := newTestBuilder(t)

	_, err := b.AddLayer(LayerSpec{LogicalID: "DepsLayer"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "content path must be set")
}
