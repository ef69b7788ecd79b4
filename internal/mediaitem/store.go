package mediaitem

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// querier abstracts *sql.DB and *sql.Tx for shared query logic, following
// the teacher's internal/library.querier pattern.
type querier interface {
	QueryRow(query string, args ...any) *sql.Row
	Query(query string, args ...any) (*sql.Rows, error)
	Exec(query string, args ...any) (sql.Result, error)
}

// Notifier is called whenever an upsert changes an item's last_state. The
// Item Store is the only shared mutable state across workflows; this hook
// is its one outbound side effect, modeling the WebSocket broadcast sink
// as an external notification consumer (SPEC_FULL.md design notes).
type Notifier interface {
	ItemStateChanged(item *Item, from, to State)
}

// Store persists MediaItem trees, their streams, blacklist, and subtitles.
type Store struct {
	db        *sql.DB
	notifiers []Notifier
}

// NewStore creates an Item Store. The caller owns the *sql.DB and is
// responsible for running migrations and enabling foreign keys.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// OnStateChange registers a notifier invoked after every upsert whose
// last_state differs from the previously stored value.
func (s *Store) OnStateChange(n Notifier) {
	s.notifiers = append(s.notifiers, n)
}

// Tx wraps a database transaction exposing the same read methods as Store.
type Tx struct {
	tx *sql.Tx
}

// Begin starts a transaction.
func (s *Store) Begin() (*Tx, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

func (t *Tx) Commit() error   { return t.tx.Commit() }
func (t *Tx) Rollback() error { return t.tx.Rollback() }

// mapSQLiteError classifies a raw sqlite error into a mediaitem sentinel.
func mapSQLiteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed: UNIQUE") {
		return fmt.Errorf("%w: %s", ErrConflict, msg)
	}
	if strings.Contains(msg, "FOREIGN KEY constraint failed") {
		return fmt.Errorf("%w: %s", ErrConflict, msg)
	}
	return err
}

// GetByID loads a single item by internal id, eager-loading its full tree
// (seasons, episodes, streams, blacklist, subtitles).
func (s *Store) GetByID(id int64) (*Item, error) {
	item, err := getItemRow(s.db, id)
	if err != nil {
		return nil, err
	}
	if err := s.loadTree(item); err != nil {
		return nil, err
	}
	return item, nil
}

// GetByImdb returns the most specific match for an imdb id: an episode if
// both season and episode are given, a season if only season is given
// (ErrInvalidLookup if only episode is given), otherwise the top-level
// movie/show.
func (s *Store) GetByImdb(imdbID string, season, episode *int) (*Item, error) {
	if episode != nil && season == nil {
		return nil, ErrInvalidLookup
	}

	root, err := getItemByImdb(s.db, imdbID)
	if err != nil {
		return nil, err
	}
	if err := s.loadTree(root); err != nil {
		return nil, err
	}
	if season == nil {
		return root, nil
	}

	var seasonItem *Item
	for _, sn := range root.Seasons {
		if sn.Number == *season {
			seasonItem = sn
			break
		}
	}
	if seasonItem == nil {
		return nil, ErrNotFound
	}
	if episode == nil {
		return seasonItem, nil
	}
	for _, ep := range seasonItem.Episodes {
		if ep.Number == *episode {
			return ep, nil
		}
	}
	return nil, ErrNotFound
}

// KnownFolder reports whether any item already tracks folder as either
// its primary or alternative folder, so a library scan does not re-submit
// a title that was already imported through it.
func (s *Store) KnownFolder(folder string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(1) FROM media_items WHERE folder = ? OR alternative_folder = ?`,
		folder, folder,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("known folder: %w", err)
	}
	return count > 0, nil
}

// ListIncomplete returns movies and shows whose last_state is not
// Completed, ordered by requested_at descending, paginated, with full
// trees loaded.
func (s *Store) ListIncomplete(page, pageSize int) ([]*Item, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	offset := (page - 1) * pageSize

	rows, err := s.db.Query(selectItemColumns+` FROM media_items
		WHERE kind IN ('movie','show') AND last_state != ?
		ORDER BY requested_at DESC
		LIMIT ? OFFSET ?`, StateCompleted, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list incomplete: %w", err)
	}
	defer rows.Close()

	items, err := scanItemRows(rows)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if err := s.loadTree(it); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// CountIncomplete returns the number of movies/shows not yet Completed.
func (s *Store) CountIncomplete() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM media_items WHERE kind IN ('movie','show') AND last_state != ?`, StateCompleted).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count incomplete: %w", err)
	}
	return n, nil
}

// Upsert merges an item tree by primary key (inserting children that lack
// an ID), recomputing and persisting last_state atomically with the rest
// of the row. The whole tree is written in one transaction.
func (s *Store) Upsert(item *Item) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	prevState := StateUnknown
	if item.ID != 0 {
		if existing, err := getItemRow(tx, item.ID); err == nil {
			prevState = existing.LastState
		}
	}

	if err := s.upsertTree(tx, item, 0, 0); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}

	if item.LastState != prevState {
		for _, n := range s.notifiers {
			n.ItemStateChanged(item, prevState, item.LastState)
		}
	}
	return nil
}

// upsertTree recursively writes item and its Seasons/Episodes, setting
// ShowID/SeasonID from the parent ids passed in.
func (s *Store) upsertTree(tx *sql.Tx, item *Item, showID, seasonID int64) error {
	item.ShowID = showID
	item.SeasonID = seasonID
	item.LastState = DeriveState(item)

	if err := upsertItemRow(tx, item); err != nil {
		return err
	}

	if item.Kind == KindShow {
		for _, season := range item.Seasons {
			if err := s.upsertTree(tx, season, item.ID, 0); err != nil {
				return err
			}
		}
	}
	if item.Kind == KindSeason {
		for _, ep := range item.Episodes {
			if err := s.upsertTree(tx, ep, item.ShowID, item.ID); err != nil {
				return err
			}
		}
	}

	if err := syncStreams(tx, item); err != nil {
		return err
	}
	if err := syncSubtitles(tx, item); err != nil {
		return err
	}
	return nil
}

// DeleteByImdb removes an item (and its streams, blacklist relations,
// subtitles, and children via cascade) by imdb id. Returns false if not
// found.
func (s *Store) DeleteByImdb(imdbID string) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRow(`SELECT id FROM media_items WHERE imdb_id = ? AND show_id IS NULL AND season_id IS NULL`, imdbID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find for delete: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM media_items WHERE id = ?`, id); err != nil {
		return false, fmt.Errorf("delete media item %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete: %w", err)
	}
	return true, nil
}

// Stats holds aggregate counts across all items.
type Stats struct {
	ByKind      map[Kind]int
	ByState     map[State]int
	Symlinked   int
	Unsymlinked int
}

// Stats computes totals by variant, by state, and by symlinked flag.
func (s *Store) Stats() (*Stats, error) {
	stats := &Stats{ByKind: map[Kind]int{}, ByState: map[State]int{}}

	rows, err := s.db.Query(`SELECT kind, COUNT(*) FROM media_items GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("stats by kind: %w", err)
	}
	for rows.Next() {
		var k Kind
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan stats by kind: %w", err)
		}
		stats.ByKind[k] = n
	}
	rows.Close()

	rows, err = s.db.Query(`SELECT last_state, COUNT(*) FROM media_items GROUP BY last_state`)
	if err != nil {
		return nil, fmt.Errorf("stats by state: %w", err)
	}
	for rows.Next() {
		var st State
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan stats by state: %w", err)
		}
		stats.ByState[st] = n
	}
	rows.Close()

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM media_items WHERE symlinked = 1`).Scan(&stats.Symlinked); err != nil {
		return nil, fmt.Errorf("stats symlinked: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM media_items WHERE symlinked = 0`).Scan(&stats.Unsymlinked); err != nil {
		return nil, fmt.Errorf("stats unsymlinked: %w", err)
	}
	return stats, nil
}
