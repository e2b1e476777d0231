// Package app owns the application lifecycle: it configures logging, loads
// the deployment definition, composes the stack, and dispatches the
// requested command (validate, synth, serve).
package app
