package record

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFault_Error(t *testing.T) {
	f := NewStaleLength("alice", 3, 5)
	assert.Contains(t, f.Error(), "STALE_LENGTH")
	assert.Contains(t, f.Error(), "alice")
	assert.Contains(t, f.Error(), "expected length 3")
}

func TestCodeOf_Unwraps(t *testing.T) {
	f := NewNotOwner("bob", "alice")
	wrapped := fmt.Errorf("append ledger: %w", f)

	assert.Equal(t, CodeNotOwner, CodeOf(wrapped))
	assert.True(t, IsFault(wrapped, CodeNotOwner))
	assert.False(t, IsFault(wrapped, CodeStaleLength))
}

func TestCodeOf_NonFault(t *testing.T) {
	assert.Equal(t, FaultCode(""), CodeOf(errors.New("plain error")))
	assert.False(t, IsFault(nil, CodeNotRegistered))
}

func TestFault_Fields(t *testing.T) {
	f := NewInvalidCursorAdvance("carol", 2, 4)
	assert.Equal(t, CodeInvalidCursorAdvance, f.Code)
	assert.Equal(t, Identity("carol"), f.Identity)
	assert.Equal(t, int64(2), f.Expected)
	assert.Equal(t, int64(4), f.Actual)
}

func TestFault_Constructors(t *testing.T) {
	assert.Equal(t, CodeAlreadyRegistered, NewAlreadyRegistered("a").Code)
	assert.Equal(t, CodeNotRegistered, NewNotRegistered("a").Code)
	assert.Equal(t, CodeIndexOutOfRange, NewIndexOutOfRange("a", 9, 2).Code)
}
