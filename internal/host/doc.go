// Package host defines the narrow interfaces through which the engine
// talks to the environment that owns the commits: reading and rewriting
// commit content, subscribing to triggers, and emitting one completion per
// processed job.
//
// Memory is a complete in-process host used by tests, the scenario harness
// and the CLI.
package host
