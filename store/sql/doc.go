// Package sql provides a bun-based SQL storage implementation of
// store.Store.
//
// # Overview
//
// The SQL backend provides:
//
//   - durable persistence of jobs
//   - the atomic claim protocol (priority- and FIFO-ordered)
//   - visibility timeout (lease) semantics via deadline_at
//   - optimistic concurrency via a monotonic version column
//   - crash-recovery primitives (ResetAllProcessing, ResetWorker)
//
// It is compatible with SQLite, PostgreSQL and other bun-supported
// dialects, subject to their transactional guarantees.
//
// # Concurrency Model
//
// ClaimNext is implemented using a single atomic UPDATE statement with a
// subquery to avoid race conditions between selection and state
// transition, exactly as spec.md's claim protocol requires. The
// follow-up deadline_at write (see claim.go) is the one exception the
// spec itself allows: since the job is already owned by the time that
// second statement runs, no other claimer can interfere with it.
//
// Operations that append to execution_history (Complete, ScheduleRetry,
// MoveToDLQ) use fetch-then-CAS: read the current row, build the new
// history slice in Go, then write it back conditioned on the row's
// Version being unchanged. A concurrent transition causes the write to
// affect zero rows, surfacing as store.ErrLockLost/store.ErrJobLost
// rather than silently discarding history.
//
// SQLite users are strongly encouraged to enable WAL mode and configure
// an appropriate busy_timeout; see store/sql tests for a working DSN.
//
// # Schema
//
// InitDB (or MustInitDB) creates the jobs table and the four indexes
// spec.md requires:
//
//   - (state, run_at, priority_weight, created_at) — claim
//   - (state, deadline_at)              — reaper
//   - (worker_id, state)                — ResetWorker
//   - (created_at)                      — administrative listing
//
// InitDB is idempotent and runs inside a transaction. It does not perform
// destructive migrations; schema evolution must be handled externally.
//
// # Database Lifecycle
//
// This package does not manage connection pooling or database lifecycle.
// The caller is responsible for creating and configuring *bun.DB,
// connection limits, WAL/busy_timeout configuration (for SQLite), and
// running InitDB before use.
//
// # Limitations
//
// Delivery semantics remain at-least-once: a crash between Complete's
// commit and the caller observing success is indistinguishable from a
// crash before it, and the job will not be re-run in the former case
// only because it already reached the terminal Completed state.
package sql
