// Package store persists the sealpost world state in SQLite.
//
// The store is the durability half of the host-engine contract: every
// mutating method runs its precondition checks and its writes inside a
// single transaction, so a rejected operation leaves the database
// byte-for-byte unchanged. The engine is the single writer; the store
// enforces nothing about cross-operation ordering and relies on the
// engine's serialization for that.
//
// Mutating methods return *record.Fault for precondition failures
// (already registered, stale length, not owner, out-of-range reads,
// invalid cursor advances) and plain errors for storage failures.
package store
