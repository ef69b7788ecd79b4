package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arrflow/arrflow/internal/mediaitem"
)

var requeueCmd = &cobra.Command{
	Use:   "requeue <imdb-id>",
	Short: "Clear a stuck item's Failed state so the next sweep reconsiders it",
	Long: `Requeue loads the item tree for imdb-id and clears any Failed
last_state on it and its children, without touching their indexed,
scraped, or symlinked progress. The retry sweeper picks it back up on
its next pass.`,
	Args: cobra.ExactArgs(1),
	RunE: runRequeueCmd,
}

func init() {
	rootCmd.AddCommand(requeueCmd)
}

func runRequeueCmd(cmd *cobra.Command, args []string) error {
	store, _, closeDB, err := openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	imdbID := args[0]
	item, err := store.GetByImdb(imdbID, nil, nil)
	if err != nil {
		return fmt.Errorf("load %s: %w", imdbID, err)
	}

	cleared := clearFailed(item)
	if cleared == 0 {
		fmt.Printf("%s (%s): nothing to requeue, no item in the tree is Failed\n", item.Title, imdbID)
		return nil
	}

	if err := store.Upsert(item); err != nil {
		return fmt.Errorf("requeue %s: %w", imdbID, err)
	}

	fmt.Printf("%s (%s): cleared Failed on %d item(s)\n", item.Title, imdbID, cleared)
	return nil
}

// clearFailed walks item's tree resetting any Failed last_state back to
// Unknown so mediaitem.DeriveState recomputes it fresh from progress
// fields rather than preserving the sticky Failed override, returning how
// many items were changed.
func clearFailed(item *mediaitem.Item) int {
	n := 0
	if item.LastState == mediaitem.StateFailed {
		item.LastState = mediaitem.StateUnknown
		n++
	}
	for _, season := range item.Seasons {
		n += clearFailed(season)
	}
	for _, episode := range item.Episodes {
		n += clearFailed(episode)
	}
	return n
}
