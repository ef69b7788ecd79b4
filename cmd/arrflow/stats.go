package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate item counts by kind, state, and symlink status",
	RunE:  runStatsCmd,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStatsCmd(cmd *cobra.Command, args []string) error {
	store, _, closeDB, err := openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	stats, err := store.Stats()
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}

	fmt.Println("By kind:")
	for _, k := range sortedKeys(stats.ByKind) {
		fmt.Printf("  %-10s %d\n", k, stats.ByKind[k])
	}

	fmt.Println("By state:")
	for _, s := range sortedKeys(stats.ByState) {
		fmt.Printf("  %-20s %d\n", s, stats.ByState[s])
	}

	fmt.Printf("Symlinked:   %d\n", stats.Symlinked)
	fmt.Printf("Unsymlinked: %d\n", stats.Unsymlinked)
	return nil
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
