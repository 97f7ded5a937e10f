package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64p(v int64) *int64 { return &v }

func TestRun_PassingScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "inline-pass",
		Description: "register then count",
		Steps: []Step{
			{Caller: "alice", Op: "register", Args: Args{PublicKey: "pk"}},
			{Caller: "alice", Op: "messageCount", Expect: &Expect{Count: int64p(0)}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Passed(), "errors: %v", result.Errors)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, "ok", result.Trace[0].Status)
	assert.Equal(t, int64(1), result.Trace[0].Seq)
}

func TestRun_DetectsExpectationMismatch(t *testing.T) {
	scenario := &Scenario{
		Name:        "inline-fail",
		Description: "wrong expected count",
		Steps: []Step{
			{Caller: "alice", Op: "register", Args: Args{PublicKey: "pk"}},
			{Caller: "alice", Op: "messageCount", Expect: &Expect{Count: int64p(7)}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Passed())
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected count 7")
}

func TestRun_DetectsWrongFault(t *testing.T) {
	scenario := &Scenario{
		Name:        "inline-wrong-fault",
		Description: "expected fault differs from actual",
		Steps: []Step{
			{Caller: "alice", Op: "register", Args: Args{PublicKey: "pk"}},
			{Caller: "alice", Op: "register", Args: Args{PublicKey: "pk"},
				Expect: &Expect{Fault: "STALE_LENGTH"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Passed())
	assert.Contains(t, result.Errors[0], "expected fault STALE_LENGTH")
}

func TestRun_DeterministicAcrossRuns(t *testing.T) {
	scenario := &Scenario{
		Name:        "inline-deterministic",
		Description: "same trace on every run",
		Steps: []Step{
			{Caller: "alice", Op: "register", Args: Args{PublicKey: "pk"}},
			{Caller: "alice", Op: "sendMessage",
				Args: Args{To: "ct", Message: "body", ExpectedLength: 0}},
			{Caller: "alice", Op: "messageCount"},
		},
	}

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace)
}
