package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is a conformance script: command lines to send against one
// protocol, the answers the device gives, and checks on the resulting trace.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description says what device behaviour the scenario pins down.
	Description string `yaml:"description"`

	// Protocol is an exact descriptor key, e.g. "descale/v2.0.0/debug".
	Protocol string `yaml:"protocol,omitempty"`

	// Device, Version and Policy select a descriptor through the registry
	// when Protocol is empty.
	Device  string `yaml:"device,omitempty"`
	Version string `yaml:"version,omitempty"`
	Policy  string `yaml:"policy,omitempty"`

	// Tables is a directory of CUE protocol tables used instead of the
	// built-in ones. Relative paths are resolved against the scenario file.
	Tables string `yaml:"tables,omitempty"`

	// Token is the fixed transaction token. Defaults to testutil.DefaultToken.
	Token string `yaml:"token,omitempty"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the journaled trace.
	Assertions []Assertion `yaml:"assertions"`
}

// Step sends one command line and optionally answers it.
type Step struct {
	// Send is a typed command line such as "!f=1000000" or "?log_level[global]".
	Send string `yaml:"send"`

	// Answer is the device reply. A step without answer leaves its call pending.
	Answer *AnswerSpec `yaml:"answer,omitempty"`

	// Reject names the error kind the step must fail with. See RejectKinds.
	Reject string `yaml:"reject,omitempty"`
}

// AnswerSpec describes a device answer. The code defaults to the call's code.
type AnswerSpec struct {
	// Code overrides the answer code, by name ("GET_GAIN") or number.
	Code string `yaml:"code,omitempty"`

	// Error gives an error answer code by name, e.g. "E_SYNTAX_ERROR".
	Error string `yaml:"error,omitempty"`

	// Fields maps answer field names to values, converted with each field's type.
	Fields map[string]any `yaml:"fields,omitempty"`
}

// Assertion validates the trace.
type Assertion struct {
	Type string `yaml:"type"`

	// Command is a code name or number (trace_contains, trace_count).
	Command string `yaml:"command,omitempty"`

	// Args is a subset of call arguments to match (trace_contains).
	Args map[string]any `yaml:"args,omitempty"`

	// Commands is the expected call order (trace_order).
	Commands []string `yaml:"commands,omitempty"`

	// Count is the expected number (trace_count, error_count, pending_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertErrorCount    = "error_count"
	AssertPendingCount  = "pending_count"
)

// LoadScenario reads a scenario file. Unknown keys are errors, so a
// misspelled field fails loudly instead of being ignored.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Tables != "" && !filepath.IsAbs(scenario.Tables) {
		scenario.Tables = filepath.Join(filepath.Dir(path), scenario.Tables)
	}
	return scenario, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
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

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Protocol != "" && (s.Device != "" || s.Version != ""):
		return fmt.Errorf("protocol and device/version are mutually exclusive")
	case s.Protocol == "" && (s.Device == "" || s.Version == ""):
		return fmt.Errorf("protocol, or device and version, is required")
	case s.Protocol != "" && s.Policy != "":
		return fmt.Errorf("policy applies only to device/version lookups")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for i, step := range s.Steps {
		if step.Send == "" {
			return fmt.Errorf("steps[%d]: send is required", i)
		}
		if step.Reject != "" && !validRejectKind(step.Reject) {
			return fmt.Errorf("steps[%d]: unknown reject kind %q", i, step.Reject)
		}
		if a := step.Answer; a != nil && a.Code != "" && a.Error != "" {
			return fmt.Errorf("steps[%d].answer: code and error are mutually exclusive", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains, AssertTraceCount:
		if a.Command == "" {
			return fmt.Errorf("assertions[%d]: command is required for %s", index, a.Type)
		}
	case AssertTraceOrder:
		if len(a.Commands) == 0 {
			return fmt.Errorf("assertions[%d]: commands list is required for trace_order", index)
		}
	case AssertErrorCount, AssertPendingCount:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}
	return nil
}
