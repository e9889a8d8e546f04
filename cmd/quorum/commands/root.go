package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quorum",
	Short: "Quorum - council deliberation engine",
	Long: `Quorum runs a council of domain-specialist personas over a question,
collects their opinions on a shared blackboard, and aggregates them into a
single weighted decision with a measurable agreement level.

Deliberations run fully in-process. Configure Redis in quorum.yml to keep
long-term memory and a knowledge graph of past decisions.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}
