package mediaitem

import (
	"database/sql"
	"fmt"
)

// loadStreams populates item.Streams and item.Blacklisted from the
// attached/blacklisted relation tables.
func (s *Store) loadStreams(item *Item) error {
	attached, err := queryStreams(s.db, `
		SELECT st.id, st.infohash, st.raw_title, st.parsed_title, st.rank, st.title_ratio
		FROM streams st JOIN item_streams_attached a ON a.stream_id = st.id
		WHERE a.item_id = ?`, item.ID)
	if err != nil {
		return fmt.Errorf("load attached streams for item %d: %w", item.ID, err)
	}
	item.Streams = attached

	rows, err := s.db.Query(`
		SELECT st.id, st.infohash, st.raw_title, st.parsed_title, st.rank, st.title_ratio, b.reason
		FROM streams st JOIN item_streams_blacklisted b ON b.stream_id = st.id
		WHERE b.item_id = ?`, item.ID)
	if err != nil {
		return fmt.Errorf("load blacklisted streams for item %d: %w", item.ID, err)
	}
	defer rows.Close()

	item.Blacklisted = nil
	item.BlacklistReasons = map[string]BlacklistReason{}
	for rows.Next() {
		var st Stream
		var reason BlacklistReason
		if err := rows.Scan(&st.ID, &st.Infohash, &st.RawTitle, &st.ParsedTitle, &st.Rank, &st.TitleRatio, &reason); err != nil {
			return fmt.Errorf("scan blacklisted stream: %w", err)
		}
		item.Blacklisted = append(item.Blacklisted, &st)
		item.BlacklistReasons[st.Infohash] = reason
	}
	return rows.Err()
}

func queryStreams(q querier, query string, args ...any) ([]*Stream, error) {
	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var streams []*Stream
	for rows.Next() {
		var st Stream
		if err := rows.Scan(&st.ID, &st.Infohash, &st.RawTitle, &st.ParsedTitle, &st.Rank, &st.TitleRatio); err != nil {
			return nil, fmt.Errorf("scan stream: %w", err)
		}
		streams = append(streams, &st)
	}
	return streams, rows.Err()
}

// upsertStreamByInfohash gets-or-creates a stream row by its unique
// infohash and refreshes its ranking fields, returning the row's id.
func upsertStreamByInfohash(tx *sql.Tx, st *Stream) error {
	var id int64
	err := tx.QueryRow(`SELECT id FROM streams WHERE infohash = ?`, st.Infohash).Scan(&id)
	switch {
	case err == nil:
		st.ID = id
		_, err = tx.Exec(`UPDATE streams SET raw_title=?, parsed_title=?, rank=?, title_ratio=? WHERE id=?`,
			st.RawTitle, st.ParsedTitle, st.Rank, st.TitleRatio, id)
		if err != nil {
			return fmt.Errorf("update stream %s: %w", st.Infohash, err)
		}
	case err == sql.ErrNoRows:
		result, err := tx.Exec(`INSERT INTO streams (infohash, raw_title, parsed_title, rank, title_ratio) VALUES (?,?,?,?,?)`,
			st.Infohash, st.RawTitle, st.ParsedTitle, st.Rank, st.TitleRatio)
		if err != nil {
			return fmt.Errorf("insert stream %s: %w", st.Infohash, err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		st.ID = id
	default:
		return fmt.Errorf("lookup stream %s: %w", st.Infohash, err)
	}
	return nil
}

// syncStreams reconciles item.Streams/item.Blacklisted against the
// attached/blacklisted relation tables. A stream is never left in both:
// blacklisting always wins, matching the invariant in SPEC_FULL.md §3.
func syncStreams(tx *sql.Tx, item *Item) error {
	blacklistedHash := map[string]bool{}
	for _, st := range item.Blacklisted {
		if err := upsertStreamByInfohash(tx, st); err != nil {
			return err
		}
		blacklistedHash[st.Infohash] = true
	}

	var kept []*Stream
	for _, st := range item.Streams {
		if blacklistedHash[st.Infohash] {
			continue
		}
		if err := upsertStreamByInfohash(tx, st); err != nil {
			return err
		}
		kept = append(kept, st)
	}
	item.Streams = kept

	if _, err := tx.Exec(`DELETE FROM item_streams_attached WHERE item_id = ?`, item.ID); err != nil {
		return fmt.Errorf("clear attached streams: %w", err)
	}
	for _, st := range item.Streams {
		if _, err := tx.Exec(`INSERT INTO item_streams_attached (item_id, stream_id) VALUES (?,?)`, item.ID, st.ID); err != nil {
			return fmt.Errorf("attach stream %s: %w", st.Infohash, err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM item_streams_blacklisted WHERE item_id = ?`, item.ID); err != nil {
		return fmt.Errorf("clear blacklisted streams: %w", err)
	}
	for _, st := range item.Blacklisted {
		reason := item.BlacklistReasons[st.Infohash]
		if reason == "" {
			reason = BlacklistNoMatch
		}
		if _, err := tx.Exec(`INSERT INTO item_streams_blacklisted (item_id, stream_id, reason) VALUES (?,?,?)`, item.ID, st.ID, reason); err != nil {
			return fmt.Errorf("blacklist stream %s: %w", st.Infohash, err)
		}
	}
	return nil
}
