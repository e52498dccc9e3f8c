// Package diag defines the diagnostic model shared by all build phases.
//
// # Purpose
//
//   - Give every phase (config, resolve, load, emit) one deterministic record
//     type for the problems it finds.
//   - Let phases accumulate findings in a Bag instead of stopping at the first
//     failure, so a single invocation reports every broken reference.
//   - Surface the accumulated findings to callers as a BuildError that still
//     exposes the typed cause of each finding through errors.As.
//
// # Data model
//
// Diagnostic is the central record:
//
//   - Severity – Info, Warning or Error (severity.go).
//   - Code – compact numeric identifier with a stable string form (codes.go).
//   - Path – file the finding is about (module id, output file), may be empty.
//   - Message – short, actionable text.
//   - Err – the typed error that produced the finding, if any.
//
// Package diag does no formatting beyond Error() strings; colour rendering
// lives in the CLI.
package diag
