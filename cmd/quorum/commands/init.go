package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dyluth/quorum/internal/printer"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter quorum.yml",
	Long: `Write a starter quorum.yml in the current directory.

The generated file documents the engine defaults, the optional Redis
persistence backend, and how to declare a custom council. With no custom
personas declared the built-in council is used.

Use --force to overwrite an existing quorum.yml.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing quorum.yml")
	rootCmd.AddCommand(initCmd)
}

const starterConfig = `version: "1.0"

# Namespace for Redis keys; lets multiple engines share one Redis server.
instance: default

defaults:
  method: weighted        # weighted, majority, or unanimous
  round_timeout: 30s      # hard deadline for a whole round
  persona_timeout: 10s    # budget for each persona, including memory recall

# Uncomment to persist deliberation memory and the knowledge graph.
# redis:
#   addr: localhost:6379

# Declare personas to replace the built-in council. Example:
# personas:
#   architect:
#     name: The Architect
#     weight: 1.2
#     domains: [architecture, scalability]
#     signals:
#       architecture: [design, module, interface]
#     caution: [rewrite, big bang]
#     hold: hold until the structural impact is mapped
`

func runInit(cmd *cobra.Command, args []string) error {
	if !forceInit {
		if _, err := os.Stat("quorum.yml"); err == nil {
			return printer.Error("quorum.yml already exists",
				"Refusing to overwrite the existing configuration.",
				[]string{"Use --force to overwrite it"})
		}
	}

	if err := os.WriteFile("quorum.yml", []byte(starterConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write quorum.yml: %w", err)
	}

	printer.Success("Created quorum.yml\n")
	printer.Info("Run 'quorum personas' to see the council, then 'quorum deliberate --query ...'\n")

	return nil
}
