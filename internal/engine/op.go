package engine

import (
	"github.com/tidemark/sealpost/internal/record"
)

// OpKind names an operation on the public surface.
type OpKind string

const (
	OpRegister         OpKind = "register"
	OpSendMessage      OpKind = "sendMessage"
	OpGetMessage       OpKind = "getMessage"
	OpMessageCount     OpKind = "messageCount"
	OpUpdateReadCursor OpKind = "updateReadCursor"
	OpReadCursor       OpKind = "readCursor"
	OpAddLedgerEntry   OpKind = "addLedgerEntry"
	OpGetLedgerEntry   OpKind = "getLedgerEntry"
	OpLedgerCount      OpKind = "ledgerCount"
	OpIsRegistered     OpKind = "isRegistered"
)

// Mutates reports whether the operation kind changes world state.
// Only mutating operations count against the caller's quota and produce
// journal rows.
func (k OpKind) Mutates() bool {
	switch k {
	case OpRegister, OpSendMessage, OpUpdateReadCursor, OpAddLedgerEntry:
		return true
	}
	return false
}

// Op is one operation envelope. Caller is the authenticated identity the
// host platform attributed the submission to; the engine trusts it and
// stamps it onto everything the operation creates. All other fields are
// caller input, used per kind:
//
//	register:         PublicKey
//	sendMessage:      EncryptedTo, EncryptedMessage, ExpectedLength
//	getMessage:       Index
//	messageCount:     -
//	updateReadCursor: NewIndex
//	readCursor:       -
//	addLedgerEntry:   Payload, ExpectedLength, Owner (empty = caller)
//	getLedgerEntry:   Owner, Index
//	ledgerCount:      Owner
//	isRegistered:     Target
type Op struct {
	Kind   OpKind
	Caller record.Identity

	PublicKey        []byte
	EncryptedTo      []byte
	EncryptedMessage []byte
	Payload          []byte
	ExpectedLength   int64
	Index            int64
	NewIndex         int64
	Owner            record.Identity
	Target           record.Identity
}

// Result is the output of a successful operation. Which fields are
// meaningful depends on the operation kind; the rest are zero.
type Result struct {
	// OpID is the engine-assigned operation ID (all kinds).
	OpID string

	// Seq is the logical sequence number the operation was admitted at.
	Seq int64

	// Index is the appended entry's index (sendMessage, addLedgerEntry).
	Index int64

	// Count is a sequence length (messageCount, ledgerCount).
	Count int64

	// Cursor is the read cursor value (readCursor).
	Cursor int64

	// Registered is the lookup answer (isRegistered).
	Registered bool

	// Message is the retrieved log entry (getMessage).
	Message record.MessageEntry

	// Payload is the retrieved ledger payload (getLedgerEntry).
	Payload []byte
}

// outcome pairs a result with its error for the reply channel.
type outcome struct {
	res Result
	err error
}

// submission is an operation waiting in the queue together with the
// channel its caller is blocked on. The reply channel is buffered so the
// Run loop never blocks on a caller that gave up.
type submission struct {
	op    Op
	reply chan outcome
}
