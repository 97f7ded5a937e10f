package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidemark/sealpost/internal/record"
	"github.com/tidemark/sealpost/internal/store"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// startEngine builds an engine over a fresh store and runs its loop
// until the test ends.
func startEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	s := setupTestStore(t)
	eng := New(s, NewSequenceGenerator(), opts...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = eng.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return eng
}

func register(t *testing.T, eng *Engine, identity record.Identity) {
	t.Helper()
	_, err := eng.Submit(context.Background(), Op{
		Kind:      OpRegister,
		Caller:    identity,
		PublicKey: []byte("pk-" + identity),
	})
	require.NoError(t, err)
}

func TestRegister_Once(t *testing.T) {
	eng := startEngine(t)
	ctx := context.Background()

	register(t, eng, "alice")

	res, err := eng.Submit(ctx, Op{Kind: OpIsRegistered, Caller: "alice", Target: "alice"})
	require.NoError(t, err)
	assert.True(t, res.Registered)

	_, err = eng.Submit(ctx, Op{Kind: OpRegister, Caller: "alice", PublicKey: []byte("another")})
	assert.True(t, record.IsFault(err, record.CodeAlreadyRegistered))
}

func TestUnregisteredCallers_AreRejected(t *testing.T) {
	eng := startEngine(t)
	ctx := context.Background()

	ops := []Op{
		{Kind: OpSendMessage, Caller: "ghost", EncryptedTo: []byte{1}, EncryptedMessage: []byte{2}},
		{Kind: OpGetMessage, Caller: "ghost"},
		{Kind: OpMessageCount, Caller: "ghost"},
		{Kind: OpUpdateReadCursor, Caller: "ghost"},
		{Kind: OpReadCursor, Caller: "ghost"},
		{Kind: OpAddLedgerEntry, Caller: "ghost", Payload: []byte{3}},
		{Kind: OpGetLedgerEntry, Caller: "ghost", Owner: "ghost"},
		{Kind: OpLedgerCount, Caller: "ghost", Owner: "ghost"},
	}
	for _, op := range ops {
		_, err := eng.Submit(ctx, op)
		assert.Truef(t, record.IsFault(err, record.CodeNotRegistered),
			"%s by unregistered caller = %v, want NOT_REGISTERED", op.Kind, err)
	}
}

func TestSendMessage_AppendsAndStamps(t *testing.T) {
	eng := startEngine(t)
	ctx := context.Background()
	register(t, eng, "alice")

	res, err := eng.Submit(ctx, Op{
		Kind:             OpSendMessage,
		Caller:           "alice",
		EncryptedTo:      []byte{0x01},
		EncryptedMessage: []byte{0x02},
		ExpectedLength:   0,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Index)

	got, err := eng.Submit(ctx, Op{Kind: OpGetMessage, Caller: "alice", Index: 0})
	require.NoError(t, err)
	assert.Equal(t, record.Identity("alice"), got.Message.Sender)
	assert.Equal(t, []byte{0x01}, got.Message.EncryptedTo)
	assert.Equal(t, []byte{0x02}, got.Message.EncryptedMessage)
	assert.Greater(t, got.Message.SentAt, int64(0))

	count, err := eng.Submit(ctx, Op{Kind: OpMessageCount, Caller: "alice"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count.Count)
}

func TestSendMessage_StaleLengthLeavesLogUnchanged(t *testing.T) {
	eng := startEngine(t)
	ctx := context.Background()
	register(t, eng, "alice")

	_, err := eng.Submit(ctx, Op{
		Kind: OpSendMessage, Caller: "alice",
		EncryptedTo: []byte{1}, EncryptedMessage: []byte{2}, ExpectedLength: 0,
	})
	require.NoError(t, err)

	// Re-submitting with the same expected length models the racing
	// loser: it must fail cleanly.
	_, err = eng.Submit(ctx, Op{
		Kind: OpSendMessage, Caller: "alice",
		EncryptedTo: []byte{1}, EncryptedMessage: []byte{2}, ExpectedLength: 0,
	})
	assert.True(t, record.IsFault(err, record.CodeStaleLength))

	count, err := eng.Submit(ctx, Op{Kind: OpMessageCount, Caller: "alice"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count.Count)
}

// TestExchangeScenario walks the two-account scenario end to end:
// register A and B, A sends, a stale re-send fails, B advances its
// cursor once and fails to advance to the same index again.
func TestExchangeScenario(t *testing.T) {
	eng := startEngine(t)
	ctx := context.Background()

	register(t, eng, "alice")
	register(t, eng, "bob")

	res, err := eng.Submit(ctx, Op{
		Kind: OpSendMessage, Caller: "alice",
		EncryptedTo: []byte("blobX"), EncryptedMessage: []byte("blobY"), ExpectedLength: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Index)

	_, err = eng.Submit(ctx, Op{
		Kind: OpSendMessage, Caller: "alice",
		EncryptedTo: []byte("blobX"), EncryptedMessage: []byte("blobY"), ExpectedLength: 0,
	})
	assert.True(t, record.IsFault(err, record.CodeStaleLength))

	count, err := eng.Submit(ctx, Op{Kind: OpMessageCount, Caller: "bob"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count.Count)

	// Bob: cursor -1 < 0 < 1.
	_, err = eng.Submit(ctx, Op{Kind: OpUpdateReadCursor, Caller: "bob", NewIndex: 0})
	require.NoError(t, err)

	cursor, err := eng.Submit(ctx, Op{Kind: OpReadCursor, Caller: "bob"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), cursor.Cursor)

	// Not strictly greater: rejected.
	_, err = eng.Submit(ctx, Op{Kind: OpUpdateReadCursor, Caller: "bob", NewIndex: 0})
	assert.True(t, record.IsFault(err, record.CodeInvalidCursorAdvance))
}

func TestLedger_OwnerOnlyAppend(t *testing.T) {
	eng := startEngine(t)
	ctx := context.Background()
	register(t, eng, "alice")
	register(t, eng, "bob")

	res, err := eng.Submit(ctx, Op{
		Kind: OpAddLedgerEntry, Caller: "alice",
		Payload: []byte("entry-0"), ExpectedLength: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Index)

	// Bob reads Alice's ledger: allowed.
	got, err := eng.Submit(ctx, Op{Kind: OpGetLedgerEntry, Caller: "bob", Owner: "alice", Index: 0})
	require.NoError(t, err)
	assert.Equal(t, []byte("entry-0"), got.Payload)

	// Bob names Alice's ledger as the append target: rejected, and
	// neither ledger grows.
	_, err = eng.Submit(ctx, Op{
		Kind: OpAddLedgerEntry, Caller: "bob", Owner: "alice",
		Payload: []byte("forged"), ExpectedLength: 1,
	})
	assert.True(t, record.IsFault(err, record.CodeNotOwner))

	count, err := eng.Submit(ctx, Op{Kind: OpLedgerCount, Caller: "bob", Owner: "alice"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count.Count)

	// An explicit owner equal to the caller behaves like an omitted one.
	res, err = eng.Submit(ctx, Op{
		Kind: OpAddLedgerEntry, Caller: "bob", Owner: "bob",
		Payload: []byte("entry-0"), ExpectedLength: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Index)

	bobCount, err := eng.Submit(ctx, Op{Kind: OpLedgerCount, Caller: "alice", Owner: "bob"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), bobCount.Count)
}

func TestTimestamps_NonDecreasing(t *testing.T) {
	eng := startEngine(t)
	ctx := context.Background()
	register(t, eng, "alice")

	var last int64
	for i := int64(0); i < 5; i++ {
		_, err := eng.Submit(ctx, Op{
			Kind: OpSendMessage, Caller: "alice",
			EncryptedTo: []byte{byte(i)}, EncryptedMessage: []byte{byte(i)}, ExpectedLength: i,
		})
		require.NoError(t, err)

		got, err := eng.Submit(ctx, Op{Kind: OpGetMessage, Caller: "alice", Index: i})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got.Message.SentAt, last)
		last = got.Message.SentAt
	}
}

func TestTimestamps_ClampedAgainstBackwardClock(t *testing.T) {
	// A time source that steps backward must not produce regressing
	// timestamps.
	times := []time.Time{
		time.Unix(0, 3000),
		time.Unix(0, 1000), // wall clock stepped back
		time.Unix(0, 5000),
	}
	i := 0
	clock := NewClockWithSource(func() time.Time {
		t := times[i%len(times)]
		i++
		return t
	})

	_, n1 := clock.Tick()
	_, n2 := clock.Tick()
	_, n3 := clock.Tick()
	assert.Equal(t, int64(3000), n1)
	assert.Equal(t, int64(3000), n2) // clamped
	assert.Equal(t, int64(5000), n3)
}

func TestMutationQuota_RejectsOverLimit(t *testing.T) {
	eng := startEngine(t, WithMutationQuota(2))
	ctx := context.Background()

	register(t, eng, "alice") // mutation 1

	_, err := eng.Submit(ctx, Op{
		Kind: OpSendMessage, Caller: "alice",
		EncryptedTo: []byte{1}, EncryptedMessage: []byte{2}, ExpectedLength: 0,
	}) // mutation 2
	require.NoError(t, err)

	_, err = eng.Submit(ctx, Op{
		Kind: OpSendMessage, Caller: "alice",
		EncryptedTo: []byte{1}, EncryptedMessage: []byte{2}, ExpectedLength: 1,
	}) // mutation 3: over quota
	assert.True(t, IsQuotaExceeded(err))

	// Reads are not throttled.
	_, err = eng.Submit(ctx, Op{Kind: OpMessageCount, Caller: "alice"})
	assert.NoError(t, err)
}

func TestPayloadCeiling_Rejected(t *testing.T) {
	eng := startEngine(t, WithMaxPayloadBytes(10))
	ctx := context.Background()
	register(t, eng, "alice")

	_, err := eng.Submit(ctx, Op{
		Kind: OpSendMessage, Caller: "alice",
		EncryptedTo: []byte{1}, EncryptedMessage: []byte("way too large"), ExpectedLength: 0,
	})
	assert.True(t, IsPayloadTooLarge(err))
}

func TestAppendHook_FiresOnSend(t *testing.T) {
	var indexes []int64
	eng := startEngine(t, WithAppendHook(func(idx int64) {
		indexes = append(indexes, idx)
	}))
	ctx := context.Background()
	register(t, eng, "alice")

	for i := int64(0); i < 3; i++ {
		_, err := eng.Submit(ctx, Op{
			Kind: OpSendMessage, Caller: "alice",
			EncryptedTo: []byte{1}, EncryptedMessage: []byte{2}, ExpectedLength: i,
		})
		require.NoError(t, err)
	}

	assert.Equal(t, []int64{0, 1, 2}, indexes)
}

func TestSubmit_MissingCaller(t *testing.T) {
	eng := startEngine(t)

	_, err := eng.Submit(context.Background(), Op{Kind: OpMessageCount})
	assert.Error(t, err)
}

func TestSubmit_AfterStop(t *testing.T) {
	s := setupTestStore(t)
	eng := New(s, NewSequenceGenerator())
	eng.Stop()

	_, err := eng.Submit(context.Background(), Op{Kind: OpMessageCount, Caller: "alice"})
	assert.ErrorIs(t, err, ErrStopped)
}
