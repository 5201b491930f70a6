// Package flows contains pure-function orchestrators for the Engine's
// credential operations.
//
// Each flow function (RunIssue, RunRotate, RunAuthenticate) accepts a typed
// dependency struct and returns a result carrying either its output or a
// failure kind. Mapping kinds to public errors, audit events and metrics is
// left to the caller.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the signer, the user directory and the
// refresh store. They do NOT own any of these resources; ownership stays with
// the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import staffauth (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency interfaces.
package flows
