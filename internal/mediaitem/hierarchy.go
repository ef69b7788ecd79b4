package mediaitem

import "fmt"

// loadTree populates Seasons/Episodes/Streams/Blacklisted/Subtitles and
// Parent back-references for item, recursing into children.
func (s *Store) loadTree(item *Item) error {
	if err := s.loadStreams(item); err != nil {
		return err
	}
	if err := s.loadSubtitles(item); err != nil {
		return err
	}

	switch item.Kind {
	case KindShow:
		seasons, err := s.listChildren(item.ID, "show_id")
		if err != nil {
			return fmt.Errorf("load seasons for show %d: %w", item.ID, err)
		}
		item.Seasons = seasons
		for _, season := range seasons {
			season.Parent = item
			if err := s.loadTree(season); err != nil {
				return err
			}
		}
	case KindSeason:
		episodes, err := s.listChildren(item.ID, "season_id")
		if err != nil {
			return fmt.Errorf("load episodes for season %d: %w", item.ID, err)
		}
		item.Episodes = episodes
		for _, ep := range episodes {
			ep.Parent = item
			if err := s.loadTree(ep); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) listChildren(parentID int64, fkColumn string) ([]*Item, error) {
	query := selectItemColumns + ` FROM media_items WHERE ` + fkColumn + ` = ? ORDER BY number`
	rows, err := s.db.Query(query, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItemRows(rows)
}
