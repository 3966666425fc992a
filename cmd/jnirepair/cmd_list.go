package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ochairo/jnirepair/internal/domain/entities"
)

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available repair profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profiles, err := newProfileRepository().ListProfiles(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(profiles) == 0 {
				fmt.Fprintln(out, "No profiles found")
				return nil
			}
			fmt.Fprintf(out, "Available profiles (%d):\n\n", len(profiles))
			for _, p := range profiles {
				fmt.Fprintf(out, "  %-16s %s (drops %s)\n", p.Name, p.Library, p.Dependency)
				if p.Description != "" {
					fmt.Fprintf(out, "  %-16s %s\n", "", p.Description)
				}
				if p.Acquire.Enabled {
					fmt.Fprintf(out, "  %-16s 📦 prebuilt: %s\n", "", p.Acquire.URLTemplate)
				}
				fmt.Fprintf(out, "  %-16s strategies: %v\n", "", strategyNames(p.Strip.Strategies))
			}
			return nil
		},
	}
}

func strategyNames(strategies []entities.Strategy) []entities.Strategy {
	if len(strategies) == 0 {
		return entities.DefaultStrategies
	}
	return strategies
}

func parseStrategies(names []string) ([]entities.Strategy, error) {
	strategies := make([]entities.Strategy, 0, len(names))
	for _, n := range names {
		switch s := entities.Strategy(n); s {
		case entities.StrategyPatchelf, entities.StrategyElfCleaner, entities.StrategyBuiltin:
			strategies = append(strategies, s)
		default:
			return nil, invalidArgument("unknown strip strategy " + n)
		}
	}
	return strategies, nil
}
