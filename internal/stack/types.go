package stack

// Kind identifies the category of a declared entity.
type Kind string

// The set of entity kinds a stack can declare.
const (
	KindBucket        Kind = "storage.bucket"
	KindRole          Kind = "iam.role"
	KindKnowledgeBase Kind = "knowledge.base"
	KindDataSource    Kind = "knowledge.datasource"
	KindLayer         Kind = "compute.layer"
	KindFunction      Kind = "compute.function"
	KindGateway       Kind = "gateway.api"
)

// Service principals that may be named as an execution role's trusted principal.
const (
	PrincipalFunctions       = "lambda.amazonaws.com"
	PrincipalKnowledgeEngine = "bedrock.amazonaws.com"
)

// Entity is a single resource declaration registered with a Builder.
type Entity interface {
	// LogicalID is the stack-scoped identity of the declaration.
	LogicalID() string
	// EntityKind reports the category of the declaration.
	EntityKind() Kind
	// DependsOn returns the logical IDs of every entity this declaration
	// references. The builder turns these into graph edges.
	DependsOn() []string
}
