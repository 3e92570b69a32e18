// Package correlate groups simultaneous service failures by shared error
// signatures and selects one recovery strategy per group instead of
// restarting every failing service independently.
package correlate

import (
	"log/slog"
	"sort"

	"github.com/streamops/sentinel/internal/domain"
)

// Strategy is the recovery approach selected for a correlation group
type Strategy string

const (
	// StrategyFixPrimary restarts only the group's primary service
	StrategyFixPrimary Strategy = "fix-primary-only"
	// StrategyDependencyChain restarts the primary's dependency chain in
	// post-order, dependencies first
	StrategyDependencyChain Strategy = "restart-dependency-chain"
	// StrategyRecoveryProcedure runs a named remediation procedure
	StrategyRecoveryProcedure Strategy = "execute-recovery-procedure"
)

// procedureBySignature maps resource signatures to configured procedure names
var procedureBySignature = map[domain.ErrorSignature]string{
	domain.SigOutOfMemory:   "memory-recovery",
	domain.SigDiskFull:      "disk-recovery",
	domain.SigDatabaseError: "database-recovery",
}

// Group is one set of correlated failures
type Group struct {
	// Primary is the service the strategy is rooted at
	Primary string
	// Members are all services sharing a signature with the primary,
	// primary included
	Members []string
	// Signatures are the shared failure classes
	Signatures []domain.ErrorSignature
	// Strategy is the selected recovery approach
	Strategy Strategy
	// Procedure names the remediation script for StrategyRecoveryProcedure
	Procedure string
	// ChainOrder is the restart order for StrategyDependencyChain,
	// dependencies before their dependents
	ChainOrder []string
}

// Failure is one unhealthy service observation fed to the analyzer
type Failure struct {
	Service string
	Error   string
}

// Analyzer groups failures and picks strategies. It is stateless; the
// dependency graph comes from the definitions handed in at construction.
type Analyzer struct {
	defs   map[string]domain.ServiceDefinition
	logger *slog.Logger
}

// NewAnalyzer creates a correlation analyzer over the given definitions
func NewAnalyzer(defs map[string]domain.ServiceDefinition, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		defs:   defs,
		logger: logger.With("component", "correlate"),
	}
}

// Analyze groups the given failures by shared signature. Each service lands
// in at most one group. Groups need at least two members; a lone failure is
// not a correlation and stays with normal recovery.
func (a *Analyzer) Analyze(failures []Failure) []Group {
	if len(failures) < 2 {
		return nil
	}

	sigsByService := make(map[string][]domain.ErrorSignature, len(failures))
	ordered := make([]string, 0, len(failures))
	for _, f := range failures {
		sigsByService[f.Service] = domain.ExtractSignatures(f.Error)
		ordered = append(ordered, f.Service)
	}
	sort.Strings(ordered)

	assigned := make(map[string]bool)
	var groups []Group

	for _, svc := range ordered {
		if assigned[svc] || len(sigsByService[svc]) == 0 {
			continue
		}

		members := []string{svc}
		shared := sigSet(sigsByService[svc])
		for _, other := range ordered {
			if other == svc || assigned[other] {
				continue
			}
			if overlaps(shared, sigsByService[other]) {
				members = append(members, other)
			}
		}
		if len(members) < 2 {
			continue
		}

		// A failing service the members depend on belongs to the group
		// even without a shared signature: it is the likelier root cause.
		failing := make(map[string]bool, len(ordered))
		for _, s := range ordered {
			failing[s] = true
		}
		memberSet := make(map[string]bool, len(members))
		for _, m := range members {
			memberSet[m] = true
		}
		for _, m := range members {
			for _, dep := range a.transitiveDeps(m) {
				if failing[dep] && !assigned[dep] && !memberSet[dep] {
					members = append(members, dep)
					memberSet[dep] = true
				}
			}
		}

		for _, m := range members {
			assigned[m] = true
		}

		group := Group{
			Primary:    a.electPrimary(members),
			Members:    members,
			Signatures: unionSignatures(members, sigsByService),
		}
		a.selectStrategy(&group)
		groups = append(groups, group)

		a.logger.Info("correlated failure group",
			"primary", group.Primary,
			"members", group.Members,
			"strategy", string(group.Strategy))
	}
	return groups
}

// electPrimary prefers the member the others depend on, transitively;
// otherwise the first member in sorted order.
func (a *Analyzer) electPrimary(members []string) string {
	memberSet := make(map[string]bool, len(members))
	for _, m := range members {
		memberSet[m] = true
	}

	// A member nobody in the group depends on is a leaf consumer; the
	// primary is the member most depended upon within the group.
	dependedUpon := make(map[string]int)
	for _, m := range members {
		for _, dep := range a.transitiveDeps(m) {
			if memberSet[dep] {
				dependedUpon[dep]++
			}
		}
	}

	primary := members[0]
	best := -1
	sorted := append([]string{}, members...)
	sort.Strings(sorted)
	for _, m := range sorted {
		if dependedUpon[m] > best {
			best = dependedUpon[m]
			primary = m
		}
	}
	return primary
}

// transitiveDeps returns every service reachable through dependency edges
func (a *Analyzer) transitiveDeps(name string) []string {
	var out []string
	seen := map[string]bool{name: true}
	var walk func(n string)
	walk = func(n string) {
		for _, dep := range a.defs[n].Dependencies {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			out = append(out, dep)
			walk(dep)
		}
	}
	walk(name)
	return out
}

// selectStrategy is a pure function of the group's signature set
func (a *Analyzer) selectStrategy(group *Group) {
	var hasDependency, hasResource bool
	var procedure string
	for _, sig := range group.Signatures {
		if domain.DependencySignature(sig) {
			hasDependency = true
		}
		if domain.ResourceSignature(sig) {
			hasResource = true
			if procedure == "" {
				procedure = procedureBySignature[sig]
			}
		}
	}

	switch {
	case hasDependency:
		group.Strategy = StrategyDependencyChain
		group.ChainOrder = a.ChainOrder(group.Primary, group.Members)
	case hasResource:
		group.Strategy = StrategyRecoveryProcedure
		group.Procedure = procedure
	default:
		group.Strategy = StrategyFixPrimary
	}
}

// ChainOrder computes the restart order rooted at primary: a depth-first
// post-order traversal of the dependency graph, so every service's
// dependencies restart before the service itself. Group members not on the
// primary's dependency subtree are appended afterwards in sorted order.
func (a *Analyzer) ChainOrder(primary string, members []string) []string {
	visited := make(map[string]bool)
	var order []string

	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		for _, dep := range a.defs[name].Dependencies {
			visit(dep)
		}
		order = append(order, name)
	}
	visit(primary)

	rest := make([]string, 0, len(members))
	for _, m := range members {
		if !visited[m] {
			rest = append(rest, m)
		}
	}
	sort.Strings(rest)
	for _, m := range rest {
		visit(m)
	}
	return order
}

func sigSet(sigs []domain.ErrorSignature) map[domain.ErrorSignature]bool {
	set := make(map[domain.ErrorSignature]bool, len(sigs))
	for _, s := range sigs {
		set[s] = true
	}
	return set
}

func overlaps(set map[domain.ErrorSignature]bool, sigs []domain.ErrorSignature) bool {
	for _, s := range sigs {
		if set[s] {
			return true
		}
	}
	return false
}

// unionSignatures collects the distinct signatures across members in a
// stable order.
func unionSignatures(members []string, sigsByService map[string][]domain.ErrorSignature) []domain.ErrorSignature {
	seen := make(map[domain.ErrorSignature]bool)
	var out []domain.ErrorSignature
	for _, m := range members {
		for _, s := range sigsByService[m] {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}
