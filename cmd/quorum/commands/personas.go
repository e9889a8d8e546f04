package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyluth/quorum/internal/printer"
)

var personasConfigPath string

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "List the configured council",
	Long:  `List every registered persona with its expertise domains and voting weight.`,
	RunE:  runPersonas,
}

func init() {
	personasCmd.Flags().StringVarP(&personasConfigPath, "config", "c", "", "Path to quorum.yml (default: ./quorum.yml if present)")
	rootCmd.AddCommand(personasCmd)
}

func runPersonas(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(personasConfigPath)
	if err != nil {
		return printer.Error("Configuration error", err.Error(), nil)
	}

	registry, err := cfg.Registry()
	if err != nil {
		return printer.Error("Invalid persona configuration", err.Error(), nil)
	}

	printer.Info("%d personas registered:\n\n", registry.Len())

	for _, id := range registry.IDs() {
		p, _ := registry.Get(id)
		identity := p.Identity()
		printer.Printf("  %-12s %-20s weight %.1f  [%s]\n",
			identity.ID, identity.Name, identity.Weight, strings.Join(identity.Domains, ", "))
	}

	return nil
}
