package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tensorgen/internal/scope"
)

// Scenario defines one generation test case.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists CUE files to load as one instance.
	Specs []string `yaml:"specs"`

	// Graph names the graph under the top-level graph field to generate.
	Graph string `yaml:"graph"`

	// Expect lists decisions that must appear in the trace.
	Expect []Expectation `yaml:"expect,omitempty"`

	// ExpectError makes the scenario pass only if generation fails with
	// the given code.
	ExpectError *ExpectError `yaml:"expect_error,omitempty"`

	// Golden compares the generated source with a golden file.
	Golden bool `yaml:"golden,omitempty"`
}

// Expectation asserts the decision for one use of a value.
//
// When a value is read more than once at the same position (x + x),
// expectations for it match those reads in order.
type Expectation struct {
	Position int    `yaml:"position"`
	Value    string `yaml:"value"`
	Decision string `yaml:"decision"`
}

// ExpectError names the code generation is expected to fail with.
type ExpectError struct {
	Code string `yaml:"code"`
}

// LoadScenario reads and parses a scenario YAML file. Spec paths are
// resolved relative to the scenario file's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving spec paths relative to basePath.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	// Resolve spec paths relative to base path BEFORE validation
	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return scenario, nil
}

// ParseScenario decodes scenario YAML without resolving or checking spec
// paths.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Specs) == 0 {
		return fmt.Errorf("specs list is required and must be non-empty")
	}

	if s.Graph == "" {
		return fmt.Errorf("graph is required")
	}

	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}

	if s.ExpectError != nil {
		if s.ExpectError.Code == "" {
			return fmt.Errorf("expect_error: code is required")
		}
		if len(s.Expect) > 0 || s.Golden {
			return fmt.Errorf("expect_error cannot be combined with expect or golden")
		}
		return nil
	}

	if len(s.Expect) == 0 && !s.Golden {
		return fmt.Errorf("one of expect, expect_error or golden is required")
	}

	for i, e := range s.Expect {
		if err := validateExpectation(i, e); err != nil {
			return err
		}
	}

	return nil
}

func validateExpectation(index int, e Expectation) error {
	if e.Value == "" {
		return fmt.Errorf("expect[%d]: value is required", index)
	}
	if e.Position < 0 {
		return fmt.Errorf("expect[%d]: position must be non-negative", index)
	}
	switch e.Decision {
	case scope.Duplicate.String(), scope.Move.String():
	default:
		return fmt.Errorf("expect[%d]: decision must be %q or %q, got %q",
			index, scope.Duplicate, scope.Move, e.Decision)
	}
	return nil
}
