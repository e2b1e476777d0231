package stack

import (
	"fmt"
	"strings"
)

// Grant authorizes an action set against a resource set. A role's permission
// set is exactly the union of its declared grants; nothing is implicit.
type Grant struct {
	Actions   []string
	Resources []string
}

// RoleSpec is the construction input for an execution role.
type RoleSpec struct {
	LogicalID        string
	TrustedPrincipal string
	Grants           []Grant
}

// Role is an assumable identity with an ordered list of permission grants.
type Role struct {
	id               string
	TrustedPrincipal string
	Grants           []Grant
}

// AddRole declares an execution role. Grants are validated for syntactic
// well-formedness only; a role with too few grants will simply be denied at
// runtime by the platform, which is outside this layer's control. The one
// semantic rule enforced here is scoping: a grant that touches storage must
// name the bucket patterns explicitly and may never use a bare wildcard
// resource.
func (b *Builder) AddRole(spec RoleSpec) (*Role, error) {
	if spec.TrustedPrincipal == "" {
		return nil, fmt.Errorf("role %q: trusted principal must be set", spec.LogicalID)
	}
	for i, g := range spec.Grants {
		if err := validateGrant(g); err != nil {
			return nil, fmt.Errorf("role %q: grant %d: %w", spec.LogicalID, i, err)
		}
	}

	role := &Role{
		id:               spec.LogicalID,
		TrustedPrincipal: spec.TrustedPrincipal,
		Grants:           spec.Grants,
	}
	if err := b.register(role); err != nil {
		return nil, err
	}
	return role, nil
}

// LogicalID implements Entity.
func (r *Role) LogicalID() string { return r.id }

// EntityKind implements Entity.
func (r *Role) EntityKind() Kind { return KindRole }

// DependsOn implements Entity. Roles are leaf declarations; the resources
// their grants name are carried as literal ARNs.
func (r *Role) DependsOn() []string { return nil }

// CanRead reports whether any grant lets the role read objects under the
// given bucket. Used by the data source binding cross-check.
func (r *Role) CanRead(bucket *Bucket) bool {
	for _, g := range r.Grants {
		if !containsAction(g.Actions, "s3:GetObject") {
			continue
		}
		for _, res := range g.Resources {
			if res == bucket.ObjectsARN() {
				return true
			}
		}
	}
	return false
}

// validateGrant checks a single grant statement for well-formedness.
func validateGrant(g Grant) error {
	if len(g.Actions) == 0 {
		return fmt.Errorf("action set must not be empty")
	}
	if len(g.Resources) == 0 {
		return fmt.Errorf("resource set must not be empty")
	}
	touchesStorage := false
	for _, a := range g.Actions {
		service, action, ok := strings.Cut(a, ":")
		if !ok || service == "" || action == "" {
			return fmt.Errorf("malformed action %q: want service:Action", a)
		}
		if service == "s3" {
			touchesStorage = true
		}
	}
	for _, res := range g.Resources {
		if res == "" {
			return fmt.Errorf("resource must not be empty")
		}
		if res != "*" && !strings.HasPrefix(res, "arn:") {
			return fmt.Errorf("malformed resource %q: want an ARN or *", res)
		}
		if touchesStorage && res == "*" {
			return fmt.Errorf("storage grants must be scoped to the bucket and its objects, not *")
		}
	}
	return nil
}

func containsAction(actions []string, want string) bool {
	for _, a := range actions {
		if a == want {
			return true
		}
	}
	return false
}
