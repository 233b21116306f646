package cli

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/avelios/maestro/pkg/toolregistry"
)

var (
	toolsSearch     string
	toolsCategory   string
	toolsCategories bool
)

// toolsCmd lists the tools the executor can run
var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the available tools",
	RunE:  runTools,
}

func init() {
	toolsCmd.Flags().StringVar(&toolsSearch, "search", "", "filter tools by name or description")
	toolsCmd.Flags().StringVar(&toolsCategory, "category", "", "only show tools in this category")
	toolsCmd.Flags().BoolVar(&toolsCategories, "categories", false, "show category counts instead of tools")
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	registry, err := buildToolRegistry(cfg, nil, log.Logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if toolsCategories {
		stats := registry.Stats()
		names := make([]string, 0, len(stats.Categories))
		for name := range stats.Categories {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "%-14s %d\n", name, stats.Categories[name])
		}
		fmt.Fprintf(out, "\n%d tools, %d enabled\n", stats.Total, stats.Enabled)
		return nil
	}

	var tools []toolregistry.Tool
	switch {
	case toolsSearch != "":
		tools = registry.Search(toolsSearch)
	case toolsCategory != "":
		tools = registry.ByCategory(toolsCategory)
	default:
		// Search with an empty query returns every enabled tool
		tools = registry.Search("")
	}

	if len(tools) == 0 {
		fmt.Fprintln(out, "No tools matched")
		return nil
	}

	for _, tool := range tools {
		fmt.Fprintf(out, "%-20s %-12s %s\n", tool.Name, tool.Category, tool.Description)
	}
	return nil
}
