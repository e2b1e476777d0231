// Package config loads the deployment definition from HCL files. The
// definition carries only construction-time configuration: stack identity,
// storage deletion policy, chunking parameters, handler budgets, the CORS
// allow-list, and the voice/model settings handed to the managed services.
// Everything else about the stack's shape is fixed by the compose package.
package config
