// Package store defines the durable persistence contract for jobq: the
// set of atomic primitives that make the rest of the system race-free
// against a shared store.
//
// Store composes four role interfaces — Inserter, Claimer, Observer and
// Cleaner — mirroring the separation the teacher package drew between
// Pusher, Puller, Observer and Cleaner, but collapsed into a single
// interface so the Queue Service has one dependency to construct and
// pass around.
//
// Implementations must preserve the job invariants documented on
// job.Job: claim-field consistency, monotonic Version, single ownership
// of any Processing job, and absorbing terminal states. The only shipped
// implementation is store/sql, backed by github.com/uptrace/bun.
package store
