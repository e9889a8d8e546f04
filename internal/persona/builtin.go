package persona

import "fmt"

// builtinSpec is the declarative form of one built-in council member.
type builtinSpec struct {
	identity Identity
	signals  map[string][]string
	caution  []string
	proceed  string
	hold     string
}

// builtinCouncil is the default persona set registered when no quorum.yml
// overrides it. Weights are fixed per persona so that dissent from a
// low-confidence generalist cannot dominate a domain specialist.
var builtinCouncil = []builtinSpec{
	{
		identity: Identity{ID: "architect", Name: "The Architect", Domains: []string{"architecture", "scalability"}, Weight: 1.2},
		signals: map[string][]string{
			"architecture": {"architecture", "design", "module", "interface", "coupling", "boundary"},
			"scalability":  {"scale", "scalability", "load", "growth", "throughput"},
		},
		caution: []string{"rewrite", "big bang", "monolith split"},
		proceed: "proceed with the proposal as described",
		hold:    "hold until the structural impact is mapped",
	},
	{
		identity: Identity{ID: "guardian", Name: "The Guardian", Domains: []string{"security", "compliance"}, Weight: 1.3},
		signals: map[string][]string{
			"security":   {"security", "auth", "credential", "secret", "vulnerability", "encryption"},
			"compliance": {"compliance", "audit", "gdpr", "policy", "regulation"},
		},
		caution: []string{"plaintext", "public exposure", "skip review", "disable auth"},
		proceed: "proceed with the proposal as described",
		hold:    "hold until the security exposure is assessed",
	},
	{
		identity: Identity{ID: "performance", Name: "The Profiler", Domains: []string{"performance", "efficiency"}, Weight: 1.0},
		signals: map[string][]string{
			"performance": {"performance", "latency", "benchmark", "hot path", "slow"},
			"efficiency":  {"memory", "allocation", "cpu", "cache", "efficiency"},
		},
		caution: []string{"n+1", "unbounded", "quadratic"},
		proceed: "proceed with the proposal as described",
		hold:    "hold until the hot paths are measured",
	},
	{
		identity: Identity{ID: "economist", Name: "The Economist", Domains: []string{"cost", "budget"}, Weight: 0.9},
		signals: map[string][]string{
			"cost":   {"cost", "pricing", "spend", "bill", "license"},
			"budget": {"budget", "headcount", "runway", "quarter"},
		},
		caution: []string{"overrun", "unbudgeted"},
		proceed: "proceed with the proposal as described",
		hold:    "hold until the spend is budgeted",
	},
	{
		identity: Identity{ID: "pragmatist", Name: "The Pragmatist", Domains: []string{"delivery", "scope"}, Weight: 1.0},
		signals: map[string][]string{
			"delivery": {"deadline", "ship", "release", "milestone", "delivery"},
			"scope":    {"scope", "mvp", "cut", "phase", "increment"},
		},
		caution: []string{"scope creep", "gold plating"},
		proceed: "proceed with the proposal as described",
		hold:    "hold and trim the scope to the next milestone",
	},
	{
		identity: Identity{ID: "operator", Name: "The Operator", Domains: []string{"reliability", "operations"}, Weight: 1.1},
		signals: map[string][]string{
			"reliability": {"reliability", "uptime", "failover", "incident", "sla"},
			"operations":  {"deploy", "rollback", "monitor", "alert", "on-call"},
		},
		caution: []string{"no rollback", "untested migration", "friday deploy"},
		proceed: "proceed with the proposal as described",
		hold:    "hold until a rollback path exists",
	},
	{
		identity: Identity{ID: "mentor", Name: "The Mentor", Domains: []string{"team", "maintainability"}, Weight: 0.8},
		signals: map[string][]string{
			"team":            {"team", "onboarding", "knowledge", "review", "pairing"},
			"maintainability": {"maintainability", "readability", "documentation", "tests", "debt"},
		},
		caution: []string{"bus factor", "undocumented"},
		proceed: "proceed with the proposal as described",
		hold:    "hold until the team can sustain the change",
	},
	{
		identity: Identity{ID: "innovator", Name: "The Innovator", Domains: []string{"novelty", "experimentation"}, Weight: 0.8},
		signals: map[string][]string{
			"novelty":         {"novel", "prototype", "research", "spike", "emerging"},
			"experimentation": {"experiment", "a/b", "hypothesis", "trial", "pilot"},
		},
		caution: []string{"irreversible", "one-way door"},
		proceed: "proceed with the proposal as described",
		hold:    "hold and run a reversible experiment first",
	},
	{
		identity: Identity{ID: "advocate", Name: "The User Advocate", Domains: []string{"users", "experience"}, Weight: 1.0},
		signals: map[string][]string{
			"users":      {"user", "customer", "feedback", "adoption", "support"},
			"experience": {"ux", "usability", "accessibility", "workflow", "friction"},
		},
		caution: []string{"breaking change", "regression"},
		proceed: "proceed with the proposal as described",
		hold:    "hold until the user impact is understood",
	},
	{
		identity: Identity{ID: "skeptic", Name: "The Skeptic", Domains: []string{"risk", "assumptions"}, Weight: 1.0},
		signals: map[string][]string{
			"risk":        {"risk", "unknown", "dependency", "single point", "assumption"},
			"assumptions": {"assume", "estimate", "projection", "belief", "unvalidated"},
		},
		caution: []string{"no fallback", "untested assumption", "vendor lock"},
		proceed: "proceed with the proposal as described",
		hold:    "hold until the riskiest assumption is tested",
	},
}

// BuiltinRegistry returns a registry populated with the default council.
// Panics only on a programming error in the built-in table.
func BuiltinRegistry() *Registry {
	registry := NewRegistry()
	for _, spec := range builtinCouncil {
		advisor, err := NewAdvisor(spec.identity, spec.signals, spec.caution, spec.proceed, spec.hold)
		if err != nil {
			panic(fmt.Sprintf("invalid built-in persona %q: %v", spec.identity.ID, err))
		}
		if err := registry.Register(advisor); err != nil {
			panic(fmt.Sprintf("failed to register built-in persona %q: %v", spec.identity.ID, err))
		}
	}
	return registry
}
