package stack

import "fmt"

// AttrRef names one generated attribute of one declared entity.
type AttrRef struct {
	LogicalID string
	Attribute string
}

// String renders the reference in the "id.attribute" form used in error messages.
func (r AttrRef) String() string {
	return fmt.Sprintf("%s.%s", r.LogicalID, r.Attribute)
}

// Value is a tagged variant: either a literal string known at construction
// time, or a deferred reference to another entity's generated attribute.
// Deferred references are resolved in the linking pass run by Finalize, never
// by speculative string interpolation.
type Value struct {
	literal string
	ref     *AttrRef
}

// Literal wraps a string known at construction time.
func Literal(s string) Value {
	return Value{literal: s}
}

// Deferred creates a reference to an attribute that only exists after the
// target entity has been provisioned.
func Deferred(logicalID, attribute string) Value {
	return Value{ref: &AttrRef{LogicalID: logicalID, Attribute: attribute}}
}

// IsDeferred reports whether the value is an unresolved reference.
func (v Value) IsDeferred() bool {
	return v.ref != nil
}

// Target returns the reference behind a deferred value, or nil for literals.
func (v Value) Target() *AttrRef {
	return v.ref
}

// LiteralString returns the literal behind the value. It reports false for
// deferred references.
func (v Value) LiteralString() (string, bool) {
	if v.ref != nil {
		return "", false
	}
	return v.literal, true
}
