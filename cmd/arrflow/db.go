package main

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/arrflow/arrflow/internal/config"
	"github.com/arrflow/arrflow/internal/mediaitem"
)

// openStore loads the config at configPath and opens its item store
// read-write, without running migrations - the daemon owns schema setup,
// this CLI only ever talks to an already-initialized store.
func openStore() (*mediaitem.Store, *config.Config, func(), error) {
	cfg, err := config.LoadWithoutValidation(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Store.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open store %s: %w", cfg.Store.Path, err)
	}

	return mediaitem.NewStore(db), cfg, func() { _ = db.Close() }, nil
}
