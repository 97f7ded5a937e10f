// Package record defines the persistent data model of sealpost.
//
// Three record kinds exist:
//
//   - Account: a one-time registration binding an identity to a public
//     key, a read cursor, and an owned ledger.
//   - MessageEntry: one immutable entry in the single global message log.
//   - LedgerEntry: one immutable entry in an account's private ledger.
//
// Both sequences are append-only: entries are created once, at the index
// equal to the sequence length at execution time, and never edited,
// removed, or reordered. The index is the permanent handle for retrieval.
//
// All payload fields (public keys, addressed ciphertext, ledger payloads)
// are opaque byte blobs. Their structure and confidentiality belong to an
// external encryption scheme that this package never inspects.
//
// The package also defines Fault, the typed precondition-failure error
// shared by the store and the engine.
package record
