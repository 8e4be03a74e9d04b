// Package jobq implements a durable, multi-worker background job queue for
// running shell commands, with at-least-once delivery semantics and
// visibility-timeout-based lease recovery.
//
// # Overview
//
// jobq models a durable command queue with explicit state transitions. It
// separates the persistence contract (store.Store) from the runtime
// objects that drive it (Worker, Service), so storage implementations can
// be swapped without touching queue logic. The bundled implementation
// (store/sql) targets SQLite through bun, but any store.Store is usable.
//
// # Delivery Semantics
//
// jobq provides at-least-once processing guarantees. A job may run more
// than once if:
//
//   - a worker crashes mid-execution
//   - the visibility timeout (lease) expires before completion
//   - the job is explicitly retried out of the dead letter queue
//
// Commands should therefore be idempotent, or at least safe to repeat.
//
// # Visibility Timeout (Lease Model)
//
// When a job is claimed, it transitions from Pending to Processing and
// receives a lease: DeadlineAt is set to StartedAt plus the job's own
// Timeout. While the lease holds, the job is invisible to other workers.
//
// If a worker crashes or hangs past the lease, Service's reaper
// (ReapTimeouts) reclaims the job and routes it through the normal
// retry/dead-letter decision. Because a job's lease duration and its
// executor timeout are the same value, Worker never needs to extend its
// own lease while a command runs.
//
// # State Machine
//
// Jobs follow this lifecycle:
//
//	Pending    -> Processing           (claimNext)
//	Scheduled  -> Pending              (promoteScheduled, once RunAt elapses)
//	Processing -> Completed            (success)
//	Processing -> Pending              (retry, with backoff delay)
//	Processing -> Dead                 (retries exhausted)
//	Dead       -> Pending              (operator-initiated dlqRetry)
//	any        -> Cancelled            (operator-initiated)
//
// Completed, Dead and Cancelled are terminal; nothing transitions a job
// out of them automatically. Failed and Timeout are not states a job
// persists in — they are recorded as reasons inside the job's append-only
// ExecutionHistory, since a job is always either actively retrying or
// already Dead by the time an observer can read it.
//
// # Retry Policy
//
// Retry behavior is controlled by BackoffConfig and RetryPolicy: delay
// grows as base_delay * 2^attempts, capped at max_delay, with optional
// jitter. When a run fails:
//
//   - if attempts have not exhausted max_retries, the job is rescheduled
//     with the computed backoff delay
//   - otherwise, the job transitions to Dead
//
// # Crash Recovery
//
// Service.Start calls store.Store.ResetAllProcessing once, before
// spawning any workers, rewriting every orphaned Processing row back to
// Pending and leaving Attempts as it was; since Attempts is incremented
// at claim time, the interrupted run stays counted. Scheduled jobs need no
// special recovery: the first promoteScheduled tick after restart picks
// up anything whose RunAt already elapsed during downtime.
//
// # Components
//
//	job.Job        — the persistent job record and its state machine
//	store.Store    — the persistence contract (Inserter, Claimer, Observer, Cleaner)
//	exec.Executor   — runs a job's command (ShellExecutor by default)
//	exec.Filter     — allow/deny gate applied to a command before execution
//	Worker          — claims, filters, executes, and resolves one job at a time
//	internal/pool.Pool — a named, individually addressable pool of Workers
//	Service         — composition root: enqueue, sweepers, DLQ and stats operations
//	CleanWorker     — periodic retention sweep of terminal jobs
//
// # Concurrency Model
//
// Each Worker runs its own claim/execute loop; a Pool manages many
// Workers, each independently startable and stoppable. Service runs two
// background sweepers — promoteScheduled and reapTimeouts — as
// internal/pool.TimerTasks, safe to run concurrently with claims and with
// each other, since every mutation they trigger is itself a
// compare-and-swap against the target row's current state.
//
// Shutdown is graceful throughout: Stop accepts a timeout and allows
// in-flight work to finish before returning.
package jobq
