// Package stack is the declaration layer of voicekb. It models every cloud
// resource the stack is made of (bucket, roles, knowledge base, data source
// binding, layer, functions, gateway) as an entity registered into an
// explicit Builder context.
//
// Construction is a single synchronous pass: each Add* call accepts only
// literals plus handles of entities that were already declared, and fails
// loudly on identity collisions or references to undeclared entities. Values
// that depend on attributes generated during provisioning (knowledge base
// identifier, data source identifier, gateway URL) are carried as deferred
// references and resolved in a final linking pass by Finalize.
package stack
