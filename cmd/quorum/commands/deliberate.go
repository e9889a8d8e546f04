package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dyluth/quorum/internal/config"
	"github.com/dyluth/quorum/internal/knowledge"
	"github.com/dyluth/quorum/internal/memory"
	"github.com/dyluth/quorum/internal/orchestrator"
	"github.com/dyluth/quorum/internal/printer"
	"github.com/dyluth/quorum/pkg/deliberation"
)

var (
	deliberateConfigPath     string
	deliberateQuery          string
	deliberateTopic          string
	deliberateMethod         string
	deliberateContext        []string
	deliberatePersonas       []string
	deliberateRequired       []string
	deliberateRoundTimeout   time.Duration
	deliberatePersonaTimeout time.Duration
	deliberateShowOpinions   bool
)

var deliberateCmd = &cobra.Command{
	Use:   "deliberate",
	Short: "Put a question to the council",
	Long: `Run one deliberation round: the question is dispatched to every selected
persona in parallel, their opinions are aggregated, and the consensus
decision is printed.

Context values are signals the personas scan for relevance, e.g.:

  quorum deliberate --query "split the billing module?" \
      --context domain=architecture --context deadline=2026-09-30 \
      --required architect --method weighted`,
	RunE: runDeliberate,
}

func init() {
	deliberateCmd.Flags().StringVarP(&deliberateConfigPath, "config", "c", "", "Path to quorum.yml (default: ./quorum.yml if present)")
	deliberateCmd.Flags().StringVarP(&deliberateQuery, "query", "q", "", "The question to deliberate (required)")
	deliberateCmd.Flags().StringVarP(&deliberateTopic, "topic", "t", "", "Optional topic grouping key")
	deliberateCmd.Flags().StringVarP(&deliberateMethod, "method", "m", "", "Consensus method: weighted, majority, or unanimous")
	deliberateCmd.Flags().StringArrayVar(&deliberateContext, "context", nil, "Context entry as key=value (repeatable)")
	deliberateCmd.Flags().StringSliceVar(&deliberatePersonas, "personas", nil, "Explicit persona selection (default: full registry)")
	deliberateCmd.Flags().StringSliceVar(&deliberateRequired, "required", nil, "Personas that must respond or the outcome is degraded")
	deliberateCmd.Flags().DurationVar(&deliberateRoundTimeout, "round-timeout", 0, "Hard deadline for the whole round")
	deliberateCmd.Flags().DurationVar(&deliberatePersonaTimeout, "persona-timeout", 0, "Budget for each persona task")
	deliberateCmd.Flags().BoolVar(&deliberateShowOpinions, "opinions", false, "Print every persona's opinion, not just the decision")
	deliberateCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(deliberateCmd)
}

func runDeliberate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(deliberateConfigPath)
	if err != nil {
		return printer.Error("Configuration error", err.Error(), []string{
			"Fix the reported field in quorum.yml",
			"Run 'quorum init' to generate a fresh configuration",
		})
	}

	registry, err := cfg.Registry()
	if err != nil {
		return printer.Error("Invalid persona configuration", err.Error(), nil)
	}

	mem, graph, cleanup, err := buildCollaborators(cfg)
	if err != nil {
		return printer.Error("Redis connection error", err.Error(), []string{
			"Check the redis section of quorum.yml",
			"Remove the redis section to run without persistence",
		})
	}
	defer cleanup()

	contextMap, err := parseContext(deliberateContext)
	if err != nil {
		return printer.Error("Invalid context flag", err.Error(), nil)
	}

	req := deliberation.Request{
		Query:            deliberateQuery,
		Context:          contextMap,
		Topic:            deliberateTopic,
		Personas:         deliberatePersonas,
		RequiredPersonas: deliberateRequired,
		Method:           deliberation.ConsensusMethod(deliberateMethod),
		RoundTimeout:     deliberateRoundTimeout,
		PersonaTimeout:   deliberatePersonaTimeout,
	}
	cfg.ApplyDefaults(&req)

	engine := orchestrator.NewEngine(registry, mem, graph, cfg.Instance)
	engine.SetProgressSink(func(s orchestrator.Settlement) {
		if s.Opinion != nil {
			printer.Step("%s settled (confidence %.2f)\n", s.PersonaID, s.Opinion.Confidence)
		} else {
			printer.Warning("%s absent (%s)\n", s.PersonaID, s.Absence)
		}
	})

	printer.Info("Deliberating with %d personas...\n", registryCount(registry.Len(), req.Personas))

	outcome, err := engine.Deliberate(cmd.Context(), req)
	if err != nil {
		return printer.Error("Deliberation rejected", err.Error(), nil)
	}

	printer.Outcome(outcome)
	if deliberateShowOpinions {
		printer.Println()
		printer.Opinions(outcome)
	}

	return nil
}

// loadConfig loads an explicit config path, falls back to ./quorum.yml, and
// finally to the built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	if _, err := os.Stat("quorum.yml"); err == nil {
		return config.Load("quorum.yml")
	}

	return config.Default(), nil
}

// buildCollaborators wires the Redis-backed memory store and knowledge
// graph when quorum.yml configures Redis, and the no-op implementations
// otherwise.
func buildCollaborators(cfg *config.Config) (memory.Store, knowledge.Graph, func(), error) {
	if cfg.Redis == nil {
		return memory.NullStore{}, knowledge.NullGraph{}, func() {}, nil
	}

	opts := &redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	store, err := memory.NewRedisStore(opts, cfg.Instance)
	if err != nil {
		return nil, nil, nil, err
	}

	graph, err := knowledge.NewRedisGraph(opts, cfg.Instance)
	if err != nil {
		store.Close()
		return nil, nil, nil, err
	}

	cleanup := func() {
		store.Close()
		graph.Close()
	}

	return store, graph, cleanup, nil
}

// parseContext converts repeated key=value flags into the request context.
func parseContext(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	contextMap := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("context entry %q is not key=value", pair)
		}
		contextMap[key] = value
	}

	return contextMap, nil
}

// registryCount reports how many personas the round will actually run.
func registryCount(registered int, selection []string) int {
	if len(selection) > 0 {
		return len(selection)
	}
	return registered
}
