package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario: a sequence of operations
// submitted to a fresh engine, with expected outcomes per step.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Steps are executed in order against a single engine instance.
	Steps []Step `yaml:"steps"`
}

// Step is one operation submission.
type Step struct {
	// Caller is the identity the operation is attributed to.
	Caller string `yaml:"caller"`

	// Op is the operation kind (register, sendMessage, getMessage,
	// messageCount, updateReadCursor, readCursor, addLedgerEntry,
	// getLedgerEntry, ledgerCount, isRegistered).
	Op string `yaml:"op"`

	// Args carries the operation input fields. Unused fields stay zero.
	Args Args `yaml:"args,omitempty"`

	// Expect specifies the expected outcome. If nil, the step is only
	// required to succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Args holds operation input. Blob fields take plain strings; scenarios
// exercise ordering and precondition behavior, not cryptography.
type Args struct {
	PublicKey      string `yaml:"publicKey,omitempty"`
	To             string `yaml:"to,omitempty"`
	Message        string `yaml:"message,omitempty"`
	Payload        string `yaml:"payload,omitempty"`
	ExpectedLength int64  `yaml:"expectedLength,omitempty"`
	Index          int64  `yaml:"index,omitempty"`
	NewIndex       int64  `yaml:"newIndex,omitempty"`
	Owner          string `yaml:"owner,omitempty"`
	Target         string `yaml:"target,omitempty"`
}

// Expect specifies an expected step outcome. If Fault is set, the step
// must be rejected with that fault code and the other fields are
// ignored. Otherwise the step must succeed and every set field must
// match the result.
type Expect struct {
	Fault      string `yaml:"fault,omitempty"`
	Index      *int64 `yaml:"index,omitempty"`
	Count      *int64 `yaml:"count,omitempty"`
	Cursor     *int64 `yaml:"cursor,omitempty"`
	Registered *bool  `yaml:"registered,omitempty"`
	Sender     string `yaml:"sender,omitempty"`
	Message    string `yaml:"message,omitempty"`
	Payload    string `yaml:"payload,omitempty"`
}

// knownOps is the operation surface scenarios may exercise.
var knownOps = map[string]bool{
	"register":         true,
	"sendMessage":      true,
	"getMessage":       true,
	"messageCount":     true,
	"updateReadCursor": true,
	"readCursor":       true,
	"addLedgerEntry":   true,
	"getLedgerEntry":   true,
	"ledgerCount":      true,
	"isRegistered":     true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "step:" vs "steps:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarioDir loads every *.yaml scenario under dir, sorted by file
// name for deterministic test ordering.
func LoadScenarioDir(dir string) ([]*Scenario, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	scenarios := make([]*Scenario, 0, len(matches))
	for _, path := range matches {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Caller == "" {
			return fmt.Errorf("steps[%d]: caller is required", i)
		}
		if step.Op == "" {
			return fmt.Errorf("steps[%d]: op is required", i)
		}
		if !knownOps[step.Op] {
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
	}

	return nil
}
