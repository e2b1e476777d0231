// Package dag provides the directed acyclic graph that backs stack
// composition. The stack builder records every resource declaration as a
// node and every reference between declarations as an edge; this package
// validates that the result is acyclic and produces the deterministic
// topological order used for template emission.
package dag
