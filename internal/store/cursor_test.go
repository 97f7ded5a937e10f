package store

import (
	"context"
	"testing"

	"github.com/tidemark/sealpost/internal/record"
)

func TestCursor_StartsAtSentinel(t *testing.T) {
	s := openTestStore(t)
	mustRegister(t, s, "alice", 1)

	cursor, err := s.Cursor(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Cursor failed: %v", err)
	}
	if cursor != record.CursorNone {
		t.Errorf("initial cursor = %d, want %d", cursor, record.CursorNone)
	}
}

func TestAdvanceCursor_Forward(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	mustRegister(t, s, "alice", 1)
	mustRegister(t, s, "bob", 2)

	for seq := int64(3); seq <= 5; seq++ {
		if _, err := s.AppendMessage(ctx, testMessage("alice", seq), seq-3, testJournal(seq, "alice", "sendMessage")); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	if err := s.AdvanceCursor(ctx, "bob", 1, testJournal(6, "bob", "updateReadCursor")); err != nil {
		t.Fatalf("AdvanceCursor(1) failed: %v", err)
	}

	cursor, err := s.Cursor(ctx, "bob")
	if err != nil || cursor != 1 {
		t.Fatalf("cursor = %d, %v; want 1, nil", cursor, err)
	}

	// Skipping ahead is fine as long as it is forward and in range.
	if err := s.AdvanceCursor(ctx, "bob", 2, testJournal(7, "bob", "updateReadCursor")); err != nil {
		t.Fatalf("AdvanceCursor(2) failed: %v", err)
	}
}

func TestAdvanceCursor_RejectsNonForward(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	mustRegister(t, s, "alice", 1)

	for seq := int64(2); seq <= 4; seq++ {
		if _, err := s.AppendMessage(ctx, testMessage("alice", seq), seq-2, testJournal(seq, "alice", "sendMessage")); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	if err := s.AdvanceCursor(ctx, "alice", 1, testJournal(5, "alice", "updateReadCursor")); err != nil {
		t.Fatalf("AdvanceCursor(1) failed: %v", err)
	}

	// Same index again: not strictly greater.
	err := s.AdvanceCursor(ctx, "alice", 1, testJournal(6, "alice", "updateReadCursor"))
	if !record.IsFault(err, record.CodeInvalidCursorAdvance) {
		t.Fatalf("repeat advance = %v, want INVALID_CURSOR_ADVANCE fault", err)
	}

	// Backward.
	err = s.AdvanceCursor(ctx, "alice", 0, testJournal(7, "alice", "updateReadCursor"))
	if !record.IsFault(err, record.CodeInvalidCursorAdvance) {
		t.Fatalf("backward advance = %v, want INVALID_CURSOR_ADVANCE fault", err)
	}

	cursor, err := s.Cursor(ctx, "alice")
	if err != nil || cursor != 1 {
		t.Fatalf("cursor after rejected advances = %d, %v; want 1, nil", cursor, err)
	}
}

func TestAdvanceCursor_RejectsPastEnd(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	mustRegister(t, s, "alice", 1)

	// Empty log: no valid target exists for the first advance.
	err := s.AdvanceCursor(ctx, "alice", 0, testJournal(2, "alice", "updateReadCursor"))
	if !record.IsFault(err, record.CodeInvalidCursorAdvance) {
		t.Fatalf("advance on empty log = %v, want INVALID_CURSOR_ADVANCE fault", err)
	}

	if _, err := s.AppendMessage(ctx, testMessage("alice", 3), 0, testJournal(3, "alice", "sendMessage")); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	// length == 1, so index 1 is past the end.
	err = s.AdvanceCursor(ctx, "alice", 1, testJournal(4, "alice", "updateReadCursor"))
	if !record.IsFault(err, record.CodeInvalidCursorAdvance) {
		t.Fatalf("past-end advance = %v, want INVALID_CURSOR_ADVANCE fault", err)
	}
}

func TestAdvanceCursor_Unregistered(t *testing.T) {
	s := openTestStore(t)

	err := s.AdvanceCursor(context.Background(), "ghost", 0, testJournal(1, "ghost", "updateReadCursor"))
	if !record.IsFault(err, record.CodeNotRegistered) {
		t.Fatalf("unregistered advance = %v, want NOT_REGISTERED fault", err)
	}
}

func TestCursor_Unregistered(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Cursor(context.Background(), "ghost")
	if !record.IsFault(err, record.CodeNotRegistered) {
		t.Fatalf("unregistered cursor read = %v, want NOT_REGISTERED fault", err)
	}
}
