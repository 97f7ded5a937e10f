package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot is the serialized form of a scenario trace, compared
// against golden files.
type TraceSnapshot struct {
	Scenario string       `json:"scenario"`
	Trace    []TraceEvent `json:"trace"`
}

// RunWithGolden executes a scenario, fails the test on any expectation
// mismatch, and compares the trace against a golden file stored in
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		t.Fatalf("scenario %s: %v", scenario.Name, err)
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}

	AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares a result's trace against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	snapshot := TraceSnapshot{
		Scenario: scenarioName,
		Trace:    result.Trace,
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		t.Fatalf("marshal trace: %v", err)
	}
	data = append(data, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
}
