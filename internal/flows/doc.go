// Package flows holds the orchestration behind every public service
// operation: verify, refresh, revoke, introspection and cleanup.
//
// Each Run* function takes a dependency struct and returns a tagged result.
// Flows hold no state between calls and perform I/O only through their
// dependencies, so they can be driven directly with fakes in tests.
//
// Flows never import the root package; sentinel errors they need to match
// are passed in through the dependency structs.
package flows
