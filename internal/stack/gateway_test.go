package stack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// declareFunction installs a handler role and one function the gateway tests
// can route to.
func declareFunction(t *testing.T, b *Builder, id string) {
	t.Helper()
	if _, ok := b.Entity("HandlerRole"); !ok {
		addHandlerRole(t, b, "HandlerRole")
	}
	spec := validFunctionSpec()
	spec.LogicalID = id
	_, err := b.AddFunction(spec)
	require.NoError(t, err)
}

func TestAddGateway(t *testing.T) {
	t.Parallel()

	corsPolicy := CORSPolicy{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"*"},
		AllowHeaders: []string{"Content-Type"},
	}

	t.Run("valid routes are accepted", func(t *testing.T) {
		t.Parallel()

		b := newTestBuilder(t)
		declareFunction(t, b, "QueryFn")
		declareFunction(t, b, "TranscribeFn")

		gw, err := b.AddGateway(GatewaySpec{
			LogicalID: "Api",
			CORS:      corsPolicy,
			Routes: []Route{
				{Path: "/knowledge-base/query", Method: "POST", FunctionID: "QueryFn"},
				{Path: "/transcribe", Method: "POST", FunctionID: "TranscribeFn"},
			},
		})

		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"QueryFn", "TranscribeFn"}, gw.DependsOn())
	})

	testCases := []struct {
		name    string
		routes  []Route
		wantErr string
	}{
		{
			name:    "no routes",
			routes:  nil,
			wantErr: "at least one route is required",
		},
		{
			name:    "path without leading slash",
			routes:  []Route{{Path: "transcribe", Method: "POST", FunctionID: "QueryFn"}},
			wantErr: "must start with /",
		},
		{
			name:    "wildcard path",
			routes:  []Route{{Path: "/api/*", Method: "POST", FunctionID: "QueryFn"}},
			wantErr: "wildcard route",
		},
		{
			name:    "proxy fallback path",
			routes:  []Route{{Path: "/{proxy+}", Method: "POST", FunctionID: "QueryFn"}},
			wantErr: "wildcard route",
		},
		{
			name:    "unsupported method",
			routes:  []Route{{Path: "/transcribe", Method: "BREW", FunctionID: "QueryFn"}},
			wantErr: "unsupported method",
		},
		{
			name: "duplicate method and path",
			routes: []Route{
				{Path: "/transcribe", Method: "POST", FunctionID: "QueryFn"},
				{Path: "/transcribe", Method: "POST", FunctionID: "QueryFn"},
			},
			wantErr: "duplicate route",
		},
		{
			name:    "undeclared target",
			routes:  []Route{{Path: "/transcribe", Method: "POST", FunctionID: "GhostFn"}},
			wantErr: "undeclared entity",
		},
		{
			name:    "target that is not a function",
			routes:  []Route{{Path: "/transcribe", Method: "POST", FunctionID: "HandlerRole"}},
			wantErr: "expected compute.function",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			b := newTestBuilder(t)
			declareFunction(t, b, "QueryFn")

			_, err := b.AddGateway(GatewaySpec{LogicalID: "Api", CORS: corsPolicy, Routes: tc.routes})

			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
