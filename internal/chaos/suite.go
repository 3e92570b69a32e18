package chaos

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultRecoveryWindow bounds how long a scenario waits for automatic
// recovery when the suite does not say otherwise
const DefaultRecoveryWindow = 5 * time.Minute

// Suite is a YAML-described list of fault-injection scenarios
type Suite struct {
	Name          string           `yaml:"name"`
	SettleSeconds int              `yaml:"settle_seconds"`
	Scenarios     []ScenarioConfig `yaml:"scenarios"`
}

// SettleTime is the pause between scenarios, giving the monitor time to
// return to steady state before the next fault
func (s Suite) SettleTime() time.Duration {
	return time.Duration(s.SettleSeconds) * time.Second
}

// ScenarioConfig is the YAML form of one scenario. Which fields apply
// depends on the type.
type ScenarioConfig struct {
	Type            string `yaml:"type"`
	Name            string `yaml:"name"`
	Target          string `yaml:"target"`
	WindowSeconds   int    `yaml:"window_seconds"`
	DurationSeconds int    `yaml:"duration_seconds"`
	InjectCmd       string `yaml:"inject_cmd"`
	RestoreCmd      string `yaml:"restore_cmd"`
	RevertCmd       string `yaml:"revert_cmd"`
	VerifyCmd       string `yaml:"verify_cmd"`
}

func (c ScenarioConfig) window() time.Duration {
	if c.WindowSeconds <= 0 {
		return DefaultRecoveryWindow
	}
	return time.Duration(c.WindowSeconds) * time.Second
}

func (c ScenarioConfig) duration() time.Duration {
	return time.Duration(c.DurationSeconds) * time.Second
}

// LoadSuite reads and validates a suite file
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading suite file: %w", err)
	}
	return ParseSuite(data)
}

// ParseSuite parses suite YAML and validates every scenario
func ParseSuite(data []byte) (*Suite, error) {
	var suite Suite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("parsing suite: %w", err)
	}

	if len(suite.Scenarios) == 0 {
		return nil, fmt.Errorf("suite defines no scenarios")
	}
	for i, sc := range suite.Scenarios {
		if sc.Name == "" {
			return nil, fmt.Errorf("scenario %d: name is required", i)
		}
		if sc.Target == "" {
			return nil, fmt.Errorf("scenario %q: target is required", sc.Name)
		}
		switch sc.Type {
		case KindKillService, KindDatabaseCorruption:
		case KindResourceExhaustion:
			if sc.InjectCmd == "" {
				return nil, fmt.Errorf("scenario %q: inject_cmd is required", sc.Name)
			}
			if sc.DurationSeconds <= 0 {
				return nil, fmt.Errorf("scenario %q: duration_seconds is required", sc.Name)
			}
		case KindNetworkFailure:
			if sc.InjectCmd == "" || sc.RevertCmd == "" {
				return nil, fmt.Errorf("scenario %q: inject_cmd and revert_cmd are required", sc.Name)
			}
			if sc.DurationSeconds <= 0 {
				return nil, fmt.Errorf("scenario %q: duration_seconds is required", sc.Name)
			}
		default:
			return nil, fmt.Errorf("scenario %q: unknown type %q", sc.Name, sc.Type)
		}
	}

	return &suite, nil
}

// Build turns the suite into runnable scenarios
func (s *Suite) Build() []Scenario {
	scenarios := make([]Scenario, 0, len(s.Scenarios))
	for _, c := range s.Scenarios {
		scenarios = append(scenarios, c.build())
	}
	return scenarios
}

func (c ScenarioConfig) build() Scenario {
	switch c.Type {
	case KindResourceExhaustion:
		return &ResourceExhaustion{
			ScenarioName: c.Name,
			Dimension:    c.Target,
			InjectCmd:    c.InjectCmd,
			RevertCmd:    c.RevertCmd,
			Duration:     c.duration(),
			Window:       c.window(),
		}
	case KindNetworkFailure:
		return &NetworkFailure{
			ScenarioName: c.Name,
			TargetName:   c.Target,
			InjectCmd:    c.InjectCmd,
			RevertCmd:    c.RevertCmd,
			Duration:     c.duration(),
			Window:       c.window(),
		}
	case KindDatabaseCorruption:
		return &DatabaseCorruption{
			ScenarioName: c.Name,
			Service:      c.Target,
			InjectCmd:    c.InjectCmd,
			RestoreCmd:   c.RestoreCmd,
			VerifyCmd:    c.VerifyCmd,
			Window:       c.window(),
		}
	default:
		return &KillService{
			ScenarioName: c.Name,
			Service:      c.Target,
			InjectCmd:    c.InjectCmd,
			RestoreCmd:   c.RestoreCmd,
			Window:       c.window(),
		}
	}
}
