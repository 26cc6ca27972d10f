// Package workflow runs multi-step workflows against targets.
//
// An Engine starts at most one active run per target, drives each run's
// steps in order through a SideEffectFunc, and publishes every transition to
// a Hub. Step lists come from a Registry keyed by Kind. Runs are addressed by
// ID; finished runs are retained per target up to a configurable limit.
package workflow
