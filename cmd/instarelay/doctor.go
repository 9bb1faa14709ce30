package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"instarelay/internal/assistant"
	"instarelay/internal/config"
	"instarelay/internal/history"
	"instarelay/internal/messenger"

	"github.com/spf13/cobra"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on the relay setup",
		Long: `Verifies that the configuration, the assistant backend, the Graph API,
and the history database are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("Instarelay Doctor v%s\n\n", version)

			passed := 0
			failed := 0

			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'instarelay init' to create a default configuration.\n")
				return nil
			}
			printPass("Config file", cfgPath)
			passed++

			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				fmt.Printf("\n%d passed, %d failed\n", passed, failed+1)
				return nil
			}
			printPass("Config validation", "valid")
			passed++

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			backend := assistant.New(assistant.Config{
				APIKey:  cfg.Assistant.APIKey,
				APIBase: cfg.Assistant.APIBase,
				Logger:  logger,
			})
			if err := backend.Healthy(ctx); err != nil {
				printFail("Assistant backend", err.Error())
				failed++
			} else {
				printPass("Assistant backend", cfg.Assistant.APIBase)
				passed++
			}

			sender := messenger.New(messenger.Config{
				APIBase:     cfg.Platform.APIBase,
				PageID:      cfg.Platform.PageID,
				AccessToken: cfg.Platform.AccessToken,
				Logger:      logger,
			})
			if err := sender.Healthy(ctx); err != nil {
				printFail("Graph API", err.Error())
				failed++
			} else {
				printPass("Graph API", cfg.Platform.APIBase)
				passed++
			}

			if cfg.History.Enabled {
				store, err := history.NewSQLiteStore(cfg.History.DBPath, logger)
				if err != nil {
					printFail("History database", err.Error())
					failed++
				} else {
					store.Close()
					printPass("History database", cfg.History.DBPath)
					passed++
				}
			}

			fmt.Printf("\n%d passed, %d failed\n", passed, failed)
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently relayed exchanges",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return fmt.Errorf("history is disabled in config")
			}

			store, err := history.NewSQLiteStore(cfg.History.DBPath, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			exchanges, err := store.RecentExchanges(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(exchanges) == 0 {
				fmt.Println("No exchanges recorded yet.")
				return nil
			}
			for _, ex := range exchanges {
				fmt.Printf("[%s] %s -> thread %s (%d chunks)\n  in:  %s\n  out: %s\n",
					ex.CreatedAt.Format(time.RFC3339), ex.SenderID, ex.ThreadID,
					ex.Chunks, truncate(ex.Inbound, 80), truncate(ex.Reply, 80))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of exchanges to show")
	return cmd
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func printPass(name, detail string) {
	fmt.Printf("  [ok]   %-20s %s\n", name, detail)
}

func printFail(name, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", name, detail)
}
