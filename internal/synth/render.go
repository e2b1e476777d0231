// Package synth renders a composed stack into a deployment template. Every
// deferred reference becomes a template intrinsic, so the external
// provisioning tool is the one to substitute generated identifiers; synth
// itself never guesses at their values.
package synth

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/voicekb/voicekb/internal/ctxlog"
	"github.com/voicekb/voicekb/internal/stack"
)

// Render walks the composed stack in topological order and emits one or more
// template resources per entity.
func Render(ctx context.Context, b *stack.Builder) (*Template, error) {
	logger := ctxlog.FromContext(ctx)

	g, err := b.Graph()
	if err != nil {
		return nil, err
	}
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	t := &Template{
		FormatVersion: "2010-09-09",
		Description:   fmt.Sprintf("Voice knowledge-base stack %q", b.Name()),
		Resources:     make(map[string]Resource),
		Outputs:       make(map[string]Output),
	}

	for _, id := range order {
		e, _ := b.Entity(id)
		switch v := e.(type) {
		case *stack.Bucket:
			renderBucket(t, v)
		case *stack.Role:
			renderRole(t, v, b.Name())
		case *stack.KnowledgeBase:
			renderKnowledgeBase(t, v)
		case *stack.DataSourceBinding:
			renderDataSource(t, v, b)
		case *stack.LayerArtifact:
			renderLayer(t, v)
		case *stack.Function:
			renderFunction(t, v, b.Name())
		case *stack.Gateway:
			renderGateway(t, v, b.Name())
		default:
			return nil, fmt.Errorf("no template rendering rule for kind %s", e.EntityKind())
		}
	}

	for _, ex := range b.Exports() {
		t.Outputs[ex.Name] = Output{
			Value: getAtt(ex.Source.LogicalID, ex.Source.Attribute),
		}
	}

	logger.Debug("Template rendered.", "resources", len(t.Resources), "outputs", len(t.Outputs))
	return t, nil
}

// getAtt builds the attribute-lookup intrinsic for a generated attribute.
func getAtt(logicalID, attribute string) map[string]any {
	return map[string]any{"Fn::GetAtt": []string{logicalID, attribute}}
}

// ref builds the identity-lookup intrinsic for a declared resource.
func ref(logicalID string) map[string]any {
	return map[string]any{"Ref": logicalID}
}

// value translates a stack.Value into either a literal or an intrinsic.
func value(v stack.Value) any {
	if lit, ok := v.LiteralString(); ok {
		return lit
	}
	target := v.Target()
	return getAtt(target.LogicalID, target.Attribute)
}

func renderBucket(t *Template, bk *stack.Bucket) {
	props := map[string]any{
		"BucketName": bk.BucketName(),
		"BucketEncryption": map[string]any{
			"ServerSideEncryptionConfiguration": []any{
				map[string]any{
					"ServerSideEncryptionByDefault": map[string]any{"SSEAlgorithm": "AES256"},
				},
			},
		},
		"PublicAccessBlockConfiguration": map[string]any{
			"BlockPublicAcls":       true,
			"BlockPublicPolicy":     true,
			"IgnorePublicAcls":      true,
			"RestrictPublicBuckets": true,
		},
	}
	if bk.Versioned {
		props["VersioningConfiguration"] = map[string]any{"Status": "Enabled"}
	}

	policy := "Delete"
	if bk.DeletionPolicy == stack.DeletionPolicyRetain {
		policy = "Retain"
	}
	t.Resources[bk.LogicalID()] = Resource{
		Type:           "AWS::S3::Bucket",
		DeletionPolicy: policy,
		Properties:     props,
	}
}

func renderRole(t *Template, r *stack.Role, stackName string) {
	statements := make([]any, 0, len(r.Grants))
	for _, g := range r.Grants {
		statements = append(statements, map[string]any{
			"Effect":   "Allow",
			"Action":   g.Actions,
			"Resource": g.Resources,
		})
	}
	t.Resources[r.LogicalID()] = Resource{
		Type: "AWS::IAM::Role",
		Properties: map[string]any{
			"RoleName": fmt.Sprintf("%s-%s", stackName, r.LogicalID()),
			"AssumeRolePolicyDocument": map[string]any{
				"Version": "2012-10-17",
				"Statement": []any{
					map[string]any{
						"Effect":    "Allow",
						"Principal": map[string]any{"Service": r.TrustedPrincipal},
						"Action":    "sts:AssumeRole",
					},
				},
			},
			"Policies": []any{
				map[string]any{
					"PolicyName": r.LogicalID() + "Policy",
					"PolicyDocument": map[string]any{
						"Version":   "2012-10-17",
						"Statement": statements,
					},
				},
			},
		},
	}
}

func renderKnowledgeBase(t *Template, kb *stack.KnowledgeBase) {
	t.Resources[kb.LogicalID()] = Resource{
		Type: "AWS::Bedrock::KnowledgeBase",
		Properties: map[string]any{
			"Name":    kb.LogicalID(),
			"RoleArn": getAtt(kb.RoleID, stack.AttrARN),
			"KnowledgeBaseConfiguration": map[string]any{
				"Type": "VECTOR",
				"VectorKnowledgeBaseConfiguration": map[string]any{
					"EmbeddingModelArn": kb.EmbeddingModelARN,
				},
			},
		},
	}
}

func renderDataSource(t *Template, ds *stack.DataSourceBinding, b *stack.Builder) {
	// The bucket ARN is known at construction time, so it is emitted as a
	// literal rather than an intrinsic.
	bucketARN := ""
	if e, ok := b.Entity(ds.BucketID); ok {
		if bk, ok := e.(*stack.Bucket); ok {
			bucketARN = bk.ARN()
		}
	}
	t.Resources[ds.LogicalID()] = Resource{
		Type: "AWS::Bedrock::DataSource",
		Properties: map[string]any{
			"Name":            ds.LogicalID(),
			"KnowledgeBaseId": ref(ds.KnowledgeBaseID),
			"DataSourceConfiguration": map[string]any{
				"Type": "S3",
				"S3Configuration": map[string]any{
					"BucketArn": bucketARN,
				},
			},
			"VectorIngestionConfiguration": map[string]any{
				"ChunkingConfiguration": map[string]any{
					"ChunkingStrategy": "FIXED_SIZE",
					"FixedSizeChunkingConfiguration": map[string]any{
						"MaxTokens":         ds.Chunking.MaxTokens,
						"OverlapPercentage": int(math.Round(ds.Chunking.OverlapFraction * 100)),
					},
				},
			},
		},
	}
}

func renderLayer(t *Template, l *stack.LayerArtifact) {
	t.Resources[l.LogicalID()] = Resource{
		Type: "AWS::Lambda::LayerVersion",
		Properties: map[string]any{
			"LayerName":          l.LogicalID(),
			"Content":            l.ContentPath,
			"CompatibleRuntimes": l.CompatibleRuntimes,
		},
	}
}

func renderFunction(t *Template, f *stack.Function, stackName string) {
	props := map[string]any{
		"FunctionName": fmt.Sprintf("%s-%s", stackName, f.LogicalID()),
		"Handler":      f.Handler,
		"Runtime":      f.Runtime,
		"Code":         f.CodePath,
		"Role":         getAtt(f.RoleID, stack.AttrARN),
		"Timeout":      f.TimeoutSeconds,
		"MemorySize":   f.MemoryMB,
	}
	if len(f.LayerIDs) > 0 {
		layers := make([]any, 0, len(f.LayerIDs))
		for _, id := range f.LayerIDs {
			layers = append(layers, ref(id))
		}
		props["Layers"] = layers
	}
	if len(f.Env) > 0 {
		vars := make(map[string]any, len(f.Env))
		for _, name := range f.EnvNames() {
			vars[name] = value(f.Env[name])
		}
		props["Environment"] = map[string]any{"Variables": vars}
	}
	t.Resources[f.LogicalID()] = Resource{
		Type:       "AWS::Lambda::Function",
		Properties: props,
	}
}

func renderGateway(t *Template, gw *stack.Gateway, stackName string) {
	t.Resources[gw.LogicalID()] = Resource{
		Type: "AWS::ApiGatewayV2::Api",
		Properties: map[string]any{
			"Name":         fmt.Sprintf("%s-%s", stackName, gw.LogicalID()),
			"ProtocolType": "HTTP",
			"CorsConfiguration": map[string]any{
				"AllowOrigins": gw.CORS.AllowOrigins,
				"AllowMethods": gw.CORS.AllowMethods,
				"AllowHeaders": gw.CORS.AllowHeaders,
			},
		},
	}

	for _, route := range gw.Routes {
		suffix := routeSuffix(route.Path)
		integrationID := gw.LogicalID() + suffix + "Integration"
		routeID := gw.LogicalID() + suffix + "Route"

		t.Resources[integrationID] = Resource{
			Type: "AWS::ApiGatewayV2::Integration",
			Properties: map[string]any{
				"ApiId":                ref(gw.LogicalID()),
				"IntegrationType":      "AWS_PROXY",
				"IntegrationUri":       getAtt(route.FunctionID, stack.AttrARN),
				"PayloadFormatVersion": "2.0",
			},
		}
		t.Resources[routeID] = Resource{
			Type: "AWS::ApiGatewayV2::Route",
			Properties: map[string]any{
				"ApiId":    ref(gw.LogicalID()),
				"RouteKey": route.Method + " " + route.Path,
				"Target":   "integrations/" + integrationID,
			},
		}
	}
}

// routeSuffix turns a route path into a logical ID fragment, e.g.
// "/knowledge-base/query" -> "KnowledgeBaseQuery".
func routeSuffix(path string) string {
	var sb strings.Builder
	for _, part := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '-' }) {
		sb.WriteString(strings.ToUpper(part[:1]))
		sb.WriteString(part[1:])
	}
	return sb.String()
}
