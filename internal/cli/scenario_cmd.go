package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/elicit-dev/elicit/internal/config"
	"github.com/elicit-dev/elicit/internal/scenario"
	"github.com/elicit-dev/elicit/internal/store"
)

func newScenarioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Manage interview scenarios",
	}

	cmd.AddCommand(newScenarioSeedCmd())
	cmd.AddCommand(newScenarioListCmd())

	return cmd
}

func newScenarioSeedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load scenarios from a YAML file into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				cfg, err := config.Load(paths.Config)
				if err != nil {
					return err
				}
				file = cfg.Scenarios.SeedFile
			}
			if file == "" {
				return fmt.Errorf("no seed file given; pass --file or set scenarios.seedFile")
			}

			if err := paths.EnsureDirs(); err != nil {
				return err
			}
			db, err := store.Open(paths.Database(), log)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			n, err := scenario.Seed(cmd.Context(), scenario.NewStore(db), file)
			if err != nil {
				return err
			}
			fmt.Printf("Seeded %d scenario(s) from %s\n", n, file)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "scenario YAML file")

	return cmd
}

func newScenarioListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scenarios in the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := store.Open(paths.Database(), log)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			scenarios, err := scenario.NewStore(db).List(cmd.Context())
			if err != nil {
				return err
			}
			if len(scenarios) == 0 {
				fmt.Println("No scenarios found. Run 'elicit scenario seed' first.")
				return nil
			}
			for _, sc := range scenarios {
				fmt.Printf("%-12s %s (%s, %s)\n", sc.ID, sc.Name, sc.Role, sc.Company)
			}
			return nil
		},
	}
}
