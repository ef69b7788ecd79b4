package mediaitem

import (
	"database/sql"
	"fmt"
)

func (s *Store) loadSubtitles(item *Item) error {
	rows, err := s.db.Query(`SELECT id, language, path FROM subtitles WHERE item_id = ?`, item.ID)
	if err != nil {
		return fmt.Errorf("load subtitles for item %d: %w", item.ID, err)
	}
	defer rows.Close()

	var subs []*Subtitle
	for rows.Next() {
		var sub Subtitle
		if err := rows.Scan(&sub.ID, &sub.Language, &sub.Path); err != nil {
			return fmt.Errorf("scan subtitle: %w", err)
		}
		subs = append(subs, &sub)
	}
	item.Subtitles = subs
	return rows.Err()
}

// syncSubtitles replaces item's subtitle rows with item.Subtitles. Rows are
// cascade-deleted with their owning item (see migrations).
func syncSubtitles(tx *sql.Tx, item *Item) error {
	if _, err := tx.Exec(`DELETE FROM subtitles WHERE item_id = ?`, item.ID); err != nil {
		return fmt.Errorf("clear subtitles: %w", err)
	}
	for _, sub := range item.Subtitles {
		result, err := tx.Exec(`INSERT INTO subtitles (item_id, language, path) VALUES (?,?,?)`, item.ID, sub.Language, sub.Path)
		if err != nil {
			return fmt.Errorf("insert subtitle: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		sub.ID = id
	}
	return nil
}
