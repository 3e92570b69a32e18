package config

import (
	"fmt"
	"strings"

	"github.com/streamops/sentinel/internal/domain"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors. Any failure here prevents
// the monitor from starting: running with an undefined dependency graph or
// an unknown probe kind is worse than not running at all.
func Validate(config *Config) error {
	var errs []string

	if config.API.Port < 0 || config.API.Port > 65535 {
		errs = append(errs, fmt.Sprintf("api.port: must be between 0 and 65535, got %d", config.API.Port))
	}

	if len(config.Services) == 0 {
		errs = append(errs, "services: at least one service must be defined")
	}

	for name, svc := range config.Services {
		if err := ValidateServiceName(name); err != nil {
			errs = append(errs, fmt.Sprintf("services.%s: %v", name, err))
		}
		if !domain.ProbeKind(svc.Probe).Valid() {
			errs = append(errs, fmt.Sprintf("services.%s.probe: unknown probe kind %q", name, svc.Probe))
		}
		if svc.Target == "" {
			errs = append(errs, fmt.Sprintf("services.%s.target: target is required", name))
		}
		if svc.RestoreCmd == "" {
			errs = append(errs, fmt.Sprintf("services.%s.restore_cmd: command is required", name))
		}
		for _, dep := range svc.Dependencies {
			if dep == name {
				errs = append(errs, fmt.Sprintf("services.%s.dependencies: service cannot depend on itself", name))
				continue
			}
			if _, ok := config.Services[dep]; !ok {
				errs = append(errs, fmt.Sprintf("services.%s.dependencies: unknown service %q", name, dep))
			}
		}
	}

	if cycle := findDependencyCycle(config.Services); cycle != nil {
		errs = append(errs, fmt.Sprintf("services: dependency cycle: %s", strings.Join(cycle, " -> ")))
	}

	if config.Thresholds.RecoveryThreshold < 1 {
		errs = append(errs, "thresholds.recovery_threshold: must be at least 1")
	}
	if config.Thresholds.MaxRestartsPerDay < 1 {
		errs = append(errs, "thresholds.max_restarts_per_day: must be at least 1")
	}
	if config.Thresholds.CheckIntervalSeconds < 1 {
		errs = append(errs, "thresholds.check_interval_seconds: must be at least 1")
	}

	if config.Backups.Enabled && config.Backups.Dir == "" {
		errs = append(errs, "backups.dir: required when backups are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

// ValidateServiceName checks if a service name is valid
func ValidateServiceName(name string) error {
	if name == "" {
		return &ValidationError{Field: "name", Message: "service name cannot be empty"}
	}
	if strings.ContainsAny(name, " \t\n/\\") {
		return &ValidationError{Field: "name", Message: "service name cannot contain whitespace or path separators"}
	}
	return nil
}

// findDependencyCycle runs a three-color DFS over the declared dependency
// edges. It returns one cycle as a name path, or nil if the graph is acyclic.
func findDependencyCycle(services map[string]ServiceConfig) []string {
	const (
		white = iota // unvisited
		gray         // on the current DFS path
		black        // fully explored
	)

	color := make(map[string]int, len(services))
	var cycle []string

	var visit func(name string, path []string) bool
	visit = func(name string, path []string) bool {
		color[name] = gray
		path = append(path, name)

		for _, dep := range services[name].Dependencies {
			if _, ok := services[dep]; !ok {
				continue // reported separately as an unknown service
			}
			switch color[dep] {
			case gray:
				// Found the back edge; slice the path from the repeat
				for i, n := range path {
					if n == dep {
						cycle = append(append([]string{}, path[i:]...), dep)
						return true
					}
				}
			case white:
				if visit(dep, path) {
					return true
				}
			}
		}

		color[name] = black
		return false
	}

	for name := range services {
		if color[name] == white {
			if visit(name, nil) {
				return cycle
			}
		}
	}
	return nil
}
