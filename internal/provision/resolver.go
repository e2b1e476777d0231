// Package provision resolves generated attributes for a composed stack.
// Real provisioning belongs to an external reconciler; this package supplies
// the Resolver implementations the rest of the tool runs against, including
// a local resolver that simulates identifier assignment for development and
// tests.
package provision

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"

	"github.com/voicekb/voicekb/internal/stack"
)

// localAccountID stands in for the account number in ARNs the local
// resolver fabricates.
const localAccountID = "000000000000"

// LocalResolver assigns physical identifiers without talking to any cloud
// API. Identifiers are derived with uuid.NewSHA1 from the stack name and the
// entity's logical ID, so resolution is fully reproducible: the same stack
// resolves to the same identifiers on every run.
type LocalResolver struct {
	stackName string
	region    string
	namespace uuid.UUID
}

// NewLocalResolver creates a resolver for one named stack.
func NewLocalResolver(stackName, region string) *LocalResolver {
	return &LocalResolver{
		stackName: stackName,
		region:    region,
		namespace: uuid.NewSHA1(uuid.NameSpaceDNS, []byte(stackName)),
	}
}

// Resolve implements stack.Resolver.
func (r *LocalResolver) Resolve(_ context.Context, e stack.Entity) (map[string]cty.Value, error) {
	switch v := e.(type) {
	case *stack.Bucket:
		return map[string]cty.Value{
			stack.AttrBucketName: cty.StringVal(v.BucketName()),
			stack.AttrARN:        cty.StringVal(v.ARN()),
		}, nil
	case *stack.Role:
		arn := fmt.Sprintf("arn:aws:iam::%s:role/%s-%s", localAccountID, r.stackName, v.LogicalID())
		return map[string]cty.Value{
			stack.AttrARN: cty.StringVal(arn),
		}, nil
	case *stack.KnowledgeBase:
		return map[string]cty.Value{
			stack.AttrKnowledgeBaseID: cty.StringVal(r.shortID(v.LogicalID())),
		}, nil
	case *stack.DataSourceBinding:
		return map[string]cty.Value{
			stack.AttrDataSourceID: cty.StringVal(r.shortID(v.LogicalID())),
		}, nil
	case *stack.LayerArtifact:
		arn := fmt.Sprintf("arn:aws:lambda:%s:%s:layer:%s:1", r.region, localAccountID, v.LogicalID())
		return map[string]cty.Value{
			stack.AttrARN: cty.StringVal(arn),
		}, nil
	case *stack.Function:
		arn := fmt.Sprintf("arn:aws:lambda:%s:%s:function:%s-%s", r.region, localAccountID, r.stackName, v.LogicalID())
		return map[string]cty.Value{
			stack.AttrARN: cty.StringVal(arn),
		}, nil
	case *stack.Gateway:
		host := strings.ToLower(r.shortID(v.LogicalID()))
		url := fmt.Sprintf("https://%s.execute-api.%s.amazonaws.com/prod", host, r.region)
		return map[string]cty.Value{
			stack.AttrURL: cty.StringVal(url),
		}, nil
	default:
		return nil, fmt.Errorf("no local resolution rule for kind %s", e.EntityKind())
	}
}

// shortID derives a 10-character uppercase identifier in the style the
// managed knowledge service uses for its generated IDs.
func (r *LocalResolver) shortID(logicalID string) string {
	u := uuid.NewSHA1(r.namespace, []byte(logicalID))
	hexed := strings.ToUpper(strings.ReplaceAll(u.String(), "-", ""))
	return hexed[:10]
}
