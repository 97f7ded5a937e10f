// Package engine implements the sealpost execution engine.
//
// The engine is the host-side half of the concurrency model: it admits
// operations into a single global total order and executes each one
// atomically before the next is admitted. The length-CAS appends in the
// store only work because no two operations ever interleave.
//
// ARCHITECTURE:
//
// Single-Writer Operation Loop:
// All operations are processed by one goroutine for strict serialization.
// Callers submit an operation envelope (with the authenticated caller
// identity) via Submit() and block on a reply channel; Run() dequeues
// envelopes in FIFO order, executes them against the store, and replies.
//
// Per operation the engine supplies what the core logic cannot:
//   - attribution: the Sender of a message is forced to the submitting
//     caller, never taken from operation input
//   - a monotonic non-decreasing timestamp from the engine clock
//   - a logical sequence number and a UUIDv7 operation ID for the
//     audit journal
//   - the mutation quota, the engine's throughput throttle
//
// A failing operation replies with its fault and the loop continues;
// no failure is fatal to the engine, and no failure leaves partial state
// (the store runs each mutation in one transaction).
package engine
