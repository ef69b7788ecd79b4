package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show how many items are incomplete and need a pass",
	Long: `Show the number of items not yet Completed.

The retry sweeper in the running daemon revisits these on its own
schedule; this is a point-in-time count, not a trigger.`,
	RunE: runStatusCmd,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatusCmd(cmd *cobra.Command, args []string) error {
	store, cfg, closeDB, err := openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	count, err := store.CountIncomplete()
	if err != nil {
		return fmt.Errorf("count incomplete: %w", err)
	}

	fmt.Printf("arrflow v%s | store: %s\n", version, cfg.Store.Path)
	fmt.Printf("Incomplete items: %d\n", count)
	return nil
}
