package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRosterCmd() *cobra.Command {
	src := &sourceFlags{}
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Print the players a build would process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			services, err := newServices(cmd.Context(), e.cfg, e.logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			defer services.Close()

			subjects, err := services.Loader().Load(cmd.Context(), src.sources(e.cfg.Sources.ListingURL, e.cfg.Build.Limit))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, s := range subjects {
				if s.Team != "" {
					fmt.Fprintf(out, "%d. %s (%s)\n", i+1, s.Name, s.Team)
					continue
				}
				fmt.Fprintf(out, "%d. %s\n", i+1, s.Name)
			}
			return nil
		},
	}
	src.register(cmd.Flags())
	return cmd
}
