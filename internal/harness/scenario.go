package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is one YAML test suite: a program, a script and assertions on
// the resulting run.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Image is the ROM image to load, relative to Dir.
	Image string `yaml:"image,omitempty"`

	// Test names a .tst file next to Image to compile instead of the
	// image's first test.
	Test string `yaml:"test,omitempty"`

	// Script is an inline test script. Mutually exclusive with Test.
	Script string `yaml:"script,omitempty"`

	// Compare is the expected output for Script.
	Compare string `yaml:"compare,omitempty"`

	// Animate publishes every step instead of only the last.
	Animate bool `yaml:"animate,omitempty"`

	// MaxSteps bounds a run to completion. Zero means the engine default.
	MaxSteps int `yaml:"max_steps,omitempty"`

	// Steps, when positive, steps exactly this many times instead of
	// running to completion.
	Steps int `yaml:"steps,omitempty"`

	Assertions []Assertion `yaml:"assertions"`

	// Dir is the directory of the scenario file. Files resolve against it.
	Dir string `yaml:"-"`
}

// Assertion checks one property of a Result.
type Assertion struct {
	// Type selects the check; see the package documentation.
	Type string `yaml:"type"`

	Outcome  string `yaml:"outcome,omitempty"`
	Passed   *bool  `yaml:"passed,omitempty"`
	Line     int    `yaml:"line,omitempty"`
	Register string `yaml:"register,omitempty"`
	Address  *int   `yaml:"address,omitempty"`
	Value    *int   `yaml:"value,omitempty"`
	Text     string `yaml:"text,omitempty"`
	Event    string `yaml:"event,omitempty"`
	Count    *int   `yaml:"count,omitempty"`
	Code     string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertOutcome        = "outcome"
	AssertComparison     = "comparison"
	AssertNoComparison   = "no_comparison"
	AssertRegister       = "register"
	AssertRAM            = "ram"
	AssertStatusContains = "status_contains"
	AssertOutput         = "output"
	AssertEventCount     = "event_count"
	AssertErrorCode      = "error_code"
	AssertJournal        = "journal"
)

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so that typos do not silently disable assertions.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	sc, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	sc.Dir = filepath.Dir(path)

	if sc.Image != "" {
		p := sc.Image
		if !filepath.IsAbs(p) {
			p = filepath.Join(sc.Dir, p)
		}
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: image not found: %s", sc.Image)
		}
	}
	return sc, nil
}

// ParseScenario decodes and validates scenario YAML. Dir is left empty.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Image == "" && s.Test == "" && s.Script == "" {
		return fmt.Errorf("one of image, test or script is required")
	}
	if s.Test != "" && s.Script != "" {
		return fmt.Errorf("test and script are mutually exclusive")
	}
	if s.Compare != "" && s.Script == "" {
		return fmt.Errorf("compare requires script")
	}
	if s.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be non-negative")
	}
	if s.Steps < 0 {
		return fmt.Errorf("steps must be non-negative")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertOutcome:
		if a.Outcome == "" {
			return fmt.Errorf("assertions[%d]: outcome is required for outcome", index)
		}
	case AssertComparison:
		if a.Passed == nil {
			return fmt.Errorf("assertions[%d]: passed is required for comparison", index)
		}
	case AssertNoComparison:
	case AssertRegister:
		switch a.Register {
		case "A", "D", "PC":
		default:
			return fmt.Errorf("assertions[%d]: register must be A, D or PC, got %q", index, a.Register)
		}
		if a.Value == nil {
			return fmt.Errorf("assertions[%d]: value is required for register", index)
		}
	case AssertRAM:
		if a.Address == nil || a.Value == nil {
			return fmt.Errorf("assertions[%d]: address and value are required for ram", index)
		}
	case AssertStatusContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for status_contains", index)
		}
	case AssertOutput:
	case AssertEventCount:
		if a.Event == "" || a.Count == nil {
			return fmt.Errorf("assertions[%d]: event and count are required for event_count", index)
		}
		if *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	case AssertErrorCode:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for error_code", index)
		}
	case AssertJournal:
		if a.Count == nil && a.Outcome == "" {
			return fmt.Errorf("assertions[%d]: count or outcome is required for journal", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
