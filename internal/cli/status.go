package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/elicit-dev/elicit/internal/config"
	"github.com/elicit-dev/elicit/internal/scenario"
	"github.com/elicit-dev/elicit/internal/store"
	"github.com/elicit-dev/elicit/internal/version"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show elicit status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("Elicit %s (commit %s)\n\n", version.Version, version.Commit)

			// Show paths
			fmt.Printf("Config:   %s\n", paths.Config)
			fmt.Printf("Data:     %s\n", paths.Data)
			fmt.Printf("Logs:     %s\n", paths.Logs)
			fmt.Println()

			// Load config
			cfg, err := config.Load(paths.Config)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Println("Config:   not found (using defaults)")
				} else {
					fmt.Printf("Config:   error loading: %v\n", err)
				}
				return nil
			}

			fmt.Printf("Server:   port=%d bind=%s\n", cfg.Server.Port, cfg.Server.Bind)
			fmt.Printf("Session:  store=%s resume=%dm\n", cfg.Session.Store, cfg.Session.ResumeMinutes)
			fmt.Printf("Limits:   backend=%s max=%d window=%ds\n",
				cfg.RateLimit.Backend, cfg.RateLimit.MaxRequests, cfg.RateLimit.WindowSeconds)

			models := append([]string{cfg.AI.PrimaryModel}, cfg.AI.FallbackModels...)
			key := "(not set)"
			if cfg.AI.APIKey != "" {
				key = "configured"
			}
			fmt.Printf("AI:       models=%s key=%s\n", strings.Join(models, " -> "), key)

			// Database and scenario inventory, best effort
			if db, err := store.Open(paths.Database(), log); err == nil {
				if v, err := db.SchemaVersion(); err == nil {
					fmt.Printf("Database: %s (schema v%d)\n", paths.Database(), v)
				}
				if scenarios, err := scenario.NewStore(db).List(cmd.Context()); err == nil {
					if len(scenarios) == 0 {
						fmt.Println("Scenarios: (none seeded)")
					} else {
						ids := make([]string, 0, len(scenarios))
						for _, sc := range scenarios {
							ids = append(ids, sc.ID)
						}
						fmt.Printf("Scenarios: %s\n", strings.Join(ids, ", "))
					}
				}
				db.Close()
			}

			// Validation
			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Printf("\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}
