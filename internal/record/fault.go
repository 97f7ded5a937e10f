package record

import (
	"errors"
	"fmt"
)

// FaultCode categorizes precondition failures.
type FaultCode string

const (
	// CodeAlreadyRegistered indicates a second registration attempt for
	// an identity.
	CodeAlreadyRegistered FaultCode = "ALREADY_REGISTERED"

	// CodeNotRegistered indicates an acting or target identity with no
	// account.
	CodeNotRegistered FaultCode = "NOT_REGISTERED"

	// CodeStaleLength indicates an optimistic-concurrency conflict: the
	// caller-supplied expected length did not match the sequence length
	// at execution time.
	CodeStaleLength FaultCode = "STALE_LENGTH"

	// CodeNotOwner indicates a ledger append from an identity other than
	// the ledger's owner.
	CodeNotOwner FaultCode = "NOT_OWNER"

	// CodeIndexOutOfRange indicates a read past the end of a sequence.
	CodeIndexOutOfRange FaultCode = "INDEX_OUT_OF_RANGE"

	// CodeInvalidCursorAdvance indicates a cursor move that is not
	// strictly forward, or that points past the message log.
	CodeInvalidCursorAdvance FaultCode = "INVALID_CURSOR_ADVANCE"
)

// Fault is a precondition failure. Every Fault is detected before any
// mutation, so a returned Fault guarantees the world state is unchanged.
//
// Fault carries structured fields so callers can re-derive fresh
// preconditions (current lengths, current cursor) without a second read.
type Fault struct {
	// Code identifies the failure category.
	Code FaultCode

	// Message is a human-readable description.
	Message string

	// Identity is the acting or target identity, when relevant.
	Identity Identity

	// Expected is the caller-supplied precondition value
	// (expected length, requested cursor index).
	Expected int64

	// Actual is the value observed at execution time
	// (current length, current cursor).
	Actual int64
}

// Error implements the error interface.
func (f *Fault) Error() string {
	if f.Identity != "" {
		return fmt.Sprintf("%s: %s (identity=%s)", f.Code, f.Message, f.Identity)
	}
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

// CodeOf extracts the fault code from an error chain.
// Returns "" if the error is not a Fault.
func CodeOf(err error) FaultCode {
	var f *Fault
	if errors.As(err, &f) {
		return f.Code
	}
	return ""
}

// IsFault reports whether the error chain contains a Fault with the
// given code.
func IsFault(err error, code FaultCode) bool {
	return CodeOf(err) == code
}

// NewAlreadyRegistered creates a Fault for a repeated registration.
func NewAlreadyRegistered(identity Identity) *Fault {
	return &Fault{
		Code:     CodeAlreadyRegistered,
		Message:  "account already exists",
		Identity: identity,
	}
}

// NewNotRegistered creates a Fault for an unknown identity.
func NewNotRegistered(identity Identity) *Fault {
	return &Fault{
		Code:     CodeNotRegistered,
		Message:  "no account for identity",
		Identity: identity,
	}
}

// NewStaleLength creates a Fault for a length-CAS mismatch.
func NewStaleLength(identity Identity, expected, actual int64) *Fault {
	return &Fault{
		Code:     CodeStaleLength,
		Message:  fmt.Sprintf("expected length %d, current length is %d", expected, actual),
		Identity: identity,
		Expected: expected,
		Actual:   actual,
	}
}

// NewNotOwner creates a Fault for a ledger append by a non-owner.
func NewNotOwner(caller, owner Identity) *Fault {
	return &Fault{
		Code:     CodeNotOwner,
		Message:  fmt.Sprintf("caller %s may not append to ledger of %s", caller, owner),
		Identity: caller,
	}
}

// NewIndexOutOfRange creates a Fault for a read past a sequence end.
func NewIndexOutOfRange(identity Identity, index, length int64) *Fault {
	return &Fault{
		Code:     CodeIndexOutOfRange,
		Message:  fmt.Sprintf("index %d out of range, length is %d", index, length),
		Identity: identity,
		Expected: index,
		Actual:   length,
	}
}

// NewInvalidCursorAdvance creates a Fault for a non-forward cursor move.
func NewInvalidCursorAdvance(identity Identity, requested, current int64) *Fault {
	return &Fault{
		Code:     CodeInvalidCursorAdvance,
		Message:  fmt.Sprintf("cursor must advance strictly forward: requested %d, current %d", requested, current),
		Identity: identity,
		Expected: requested,
		Actual:   current,
	}
}
