package correlate

import (
	"testing"

	"github.com/streamops/sentinel/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDefs() map[string]domain.ServiceDefinition {
	return map[string]domain.ServiceDefinition{
		"database": {Name: "database", RestoreCmd: "systemctl restart postgresql"},
		"web":      {Name: "web", Dependencies: []string{"database"}, RestoreCmd: "systemctl restart web"},
		"bot":      {Name: "bot", Dependencies: []string{"database"}, RestoreCmd: "systemctl restart bot"},
		"cache":    {Name: "cache", RestoreCmd: "systemctl restart redis"},
	}
}

func TestAnalyze_DependencyChain(t *testing.T) {
	a := NewAnalyzer(testDefs(), nil)

	// web and bot both refuse connections toward database, which is itself down
	groups := a.Analyze([]Failure{
		{Service: "web", Error: "dial tcp 127.0.0.1:5432: connect: connection refused"},
		{Service: "bot", Error: "dial tcp 127.0.0.1:5432: connect: connection refused"},
		{Service: "database", Error: "unit postgresql: failed"},
	})

	require.Len(t, groups, 1)
	g := groups[0]

	assert.Equal(t, StrategyDependencyChain, g.Strategy)
	assert.Equal(t, "database", g.Primary, "rooted at the failing dependency")
	assert.ElementsMatch(t, []string{"web", "bot", "database"}, g.Members)

	// dependencies restart before dependents
	require.NotEmpty(t, g.ChainOrder)
	assert.Equal(t, "database", g.ChainOrder[0])
	assert.ElementsMatch(t, []string{"database", "web", "bot"}, g.ChainOrder)
}

func TestAnalyze_RecoveryProcedure(t *testing.T) {
	a := NewAnalyzer(testDefs(), nil)

	groups := a.Analyze([]Failure{
		{Service: "web", Error: "fork: cannot allocate memory"},
		{Service: "bot", Error: "worker oom-killed"},
	})

	require.Len(t, groups, 1)
	g := groups[0]
	assert.Equal(t, StrategyRecoveryProcedure, g.Strategy)
	assert.Equal(t, "memory-recovery", g.Procedure)
}

func TestAnalyze_FixPrimaryOnly(t *testing.T) {
	a := NewAnalyzer(testDefs(), nil)

	groups := a.Analyze([]Failure{
		{Service: "web", Error: "request timed out"},
		{Service: "cache", Error: "read timeout"},
	})

	require.Len(t, groups, 1)
	g := groups[0]
	assert.Equal(t, StrategyFixPrimary, g.Strategy)
	assert.Empty(t, g.Procedure)
	assert.Empty(t, g.ChainOrder)
}

func TestAnalyze_NoCorrelation(t *testing.T) {
	a := NewAnalyzer(testDefs(), nil)

	t.Run("single failure is not a correlation", func(t *testing.T) {
		groups := a.Analyze([]Failure{
			{Service: "web", Error: "connection refused"},
		})
		assert.Empty(t, groups)
	})

	t.Run("disjoint signatures stay separate", func(t *testing.T) {
		groups := a.Analyze([]Failure{
			{Service: "web", Error: "permission denied"},
			{Service: "cache", Error: "no space left on device"},
		})
		assert.Empty(t, groups)
	})

	t.Run("unrecognized errors never group", func(t *testing.T) {
		groups := a.Analyze([]Failure{
			{Service: "web", Error: "mysterious"},
			{Service: "bot", Error: "mysterious"},
		})
		assert.Empty(t, groups)
	})
}

func TestChainOrder_DeepGraph(t *testing.T) {
	defs := map[string]domain.ServiceDefinition{
		"storage": {Name: "storage"},
		"db":      {Name: "db", Dependencies: []string{"storage"}},
		"api":     {Name: "api", Dependencies: []string{"db"}},
		"web":     {Name: "web", Dependencies: []string{"api"}},
	}
	a := NewAnalyzer(defs, nil)

	order := a.ChainOrder("web", []string{"web", "api", "db", "storage"})
	assert.Equal(t, []string{"storage", "db", "api", "web"}, order)
}

func TestChainOrder_SharedDependencyVisitedOnce(t *testing.T) {
	a := NewAnalyzer(testDefs(), nil)

	order := a.ChainOrder("database", []string{"database", "web", "bot"})
	assert.Equal(t, []string{"database", "bot", "web"}, order)

	seen := map[string]int{}
	for _, s := range order {
		seen[s]++
	}
	for svc, n := range seen {
		assert.Equal(t, 1, n, "service %s restarted once", svc)
	}
}
