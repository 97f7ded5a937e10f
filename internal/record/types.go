package record

// Identity is an unforgeable caller reference. The host platform
// authenticates it before an operation reaches the engine; nothing in
// this codebase ever derives or verifies one.
type Identity string

// CursorNone is the initial read cursor value: nothing read yet.
// It sits one position before the first valid message index (0), so the
// first successful cursor advance requires at least one message to exist.
const CursorNone int64 = -1

// Account is a registered participant. Accounts are created exactly once
// and never destroyed or renamed.
type Account struct {
	Identity Identity `json:"identity"`

	// PublicKey is an opaque blob owned entirely by the external
	// encryption scheme.
	PublicKey []byte `json:"public_key"`

	// ReadCursor marks "every message with index <= ReadCursor is read".
	// Monotonic non-decreasing, starts at CursorNone.
	ReadCursor int64 `json:"read_cursor"`

	// RegisteredSeq is the logical sequence number of the registering
	// operation.
	RegisteredSeq int64 `json:"registered_seq"`

	// RegisteredAt is the engine timestamp (unix nanoseconds) of
	// registration.
	RegisteredAt int64 `json:"registered_at"`
}

// MessageEntry is one immutable entry in the global message log.
//
// Sender and SentAt are assigned by the engine at append time. The caller
// never supplies them; a caller-provided sender is ignored.
type MessageEntry struct {
	// Index is the permanent position in the message log.
	Index int64 `json:"index"`

	Sender Identity `json:"sender"`

	// SentAt is the engine clock reading at append time, unix
	// nanoseconds, non-decreasing across entries.
	SentAt int64 `json:"sent_at"`

	// EncryptedTo is recipient-identifying ciphertext, opaque to sealpost.
	EncryptedTo []byte `json:"encrypted_to"`

	EncryptedMessage []byte `json:"encrypted_message"`

	// Seq is the logical sequence number of the appending operation.
	Seq int64 `json:"seq"`
}

// LedgerEntry is one immutable entry in an account's private ledger.
// Only the owning identity may append; any registered identity may read.
type LedgerEntry struct {
	Owner Identity `json:"owner"`

	// Index is the permanent position in the owner's ledger.
	Index int64 `json:"index"`

	Payload []byte `json:"payload"`

	Seq int64 `json:"seq"`
}
