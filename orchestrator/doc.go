// Package orchestrator drives the sandboxed code execution lifecycle.
//
// The orchestrator turns one execution request into a deterministic sequence
// of steps against a sandbox provider: ensure the environment exists, install
// missing dependencies, write the code artifact, run it with a bounded
// timeout, classify the outcome, and optionally tear the environment down.
//
// An Orchestrator owns at most one live environment at a time, together with
// the set of packages installed into it. Requests are serialized; the
// environment and its installed-package state are shared by successive
// requests until Reset destroys both atomically.
//
// Execute never returns an error: every fault, expected or not, is converted
// into a well-formed ExecutionResult carrying an error kind and a
// human-readable message.
package orchestrator
