package mediaitem

import (
	"database/sql"
	"fmt"
)

const selectItemColumns = `SELECT
	id, item_id, kind, imdb_id, tvdb_id, tmdb_id, title, year, aired_at,
	language, country, network, genres, is_anime,
	requested_at, requested_by, overseerr_id,
	indexed_at, scraped_at, scraped_times,
	active_stream, file, folder, alternative_folder,
	symlinked, symlinked_at, symlinked_times, symlink_path,
	key, guid, update_folder, last_state, show_id, season_id, number`

func scanItemRow(row interface{ Scan(...any) error }) (*Item, error) {
	var it Item
	var showID, seasonID, overseerrID sql.NullInt64
	var activeStream any
	var genres any

	err := row.Scan(
		&it.ID, &it.ItemID, &it.Kind, &it.ImdbID, &it.TvdbID, &it.TmdbID, &it.Title, &it.Year, &it.AiredAt,
		&it.Language, &it.Country, &it.Network, &genres, &it.IsAnime,
		&it.RequestedAt, &it.RequestedBy, &overseerrID,
		&it.IndexedAt, &it.ScrapedAt, &it.ScrapedTimes,
		&activeStream, &it.File, &it.Folder, &it.AltFolder,
		&it.Symlinked, &it.SymlinkedAt, &it.SymlinkedTimes, &it.SymlinkPath,
		&it.Key, &it.GUID, &it.UpdateFolder, &it.LastState, &showID, &seasonID, &it.Number,
	)
	if err != nil {
		return nil, err
	}

	if overseerrID.Valid {
		it.OverseerrID = &overseerrID.Int64
	}
	if showID.Valid {
		it.ShowID = showID.Int64
	}
	if seasonID.Valid {
		it.SeasonID = seasonID.Int64
	}

	it.ActiveStream, err = scanActiveStream(activeStream)
	if err != nil {
		return nil, err
	}
	it.Genres, err = unmarshalGenres(genres)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func scanItemRows(rows *sql.Rows) ([]*Item, error) {
	var items []*Item
	for rows.Next() {
		it, err := scanItemRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media items: %w", err)
	}
	return items, nil
}

func getItemRow(q querier, id int64) (*Item, error) {
	row := q.QueryRow(selectItemColumns+` FROM media_items WHERE id = ?`, id)
	it, err := scanItemRow(row)
	if err != nil {
		return nil, fmt.Errorf("get media item %d: %w", id, mapSQLiteError(err))
	}
	return it, nil
}

func getItemByImdb(q querier, imdbID string) (*Item, error) {
	row := q.QueryRow(selectItemColumns+` FROM media_items WHERE imdb_id = ? AND show_id IS NULL AND season_id IS NULL`, imdbID)
	it, err := scanItemRow(row)
	if err != nil {
		return nil, fmt.Errorf("get media item by imdb %s: %w", imdbID, mapSQLiteError(err))
	}
	return it, nil
}

// upsertItemRow inserts a new row (when ID is zero) or updates the
// existing one, setting item.ID on insert.
func upsertItemRow(q querier, it *Item) error {
	genresJSON, err := marshalGenres(it.Genres)
	if err != nil {
		return err
	}
	activeStreamVal, err := it.ActiveStream.Value()
	if err != nil {
		return err
	}

	var showID, seasonID, overseerrID any
	if it.ShowID != 0 {
		showID = it.ShowID
	}
	if it.SeasonID != 0 {
		seasonID = it.SeasonID
	}
	if it.OverseerrID != nil {
		overseerrID = *it.OverseerrID
	}

	if it.ID == 0 {
		result, err := q.Exec(`INSERT INTO media_items (
			item_id, kind, imdb_id, tvdb_id, tmdb_id, title, year, aired_at,
			language, country, network, genres, is_anime,
			requested_at, requested_by, overseerr_id,
			indexed_at, scraped_at, scraped_times,
			active_stream, file, folder, alternative_folder,
			symlinked, symlinked_at, symlinked_times, symlink_path,
			key, guid, update_folder, last_state, show_id, season_id, number
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			it.ItemID, it.Kind, it.ImdbID, it.TvdbID, it.TmdbID, it.Title, it.Year, it.AiredAt,
			it.Language, it.Country, it.Network, genresJSON, it.IsAnime,
			it.RequestedAt, it.RequestedBy, overseerrID,
			it.IndexedAt, it.ScrapedAt, it.ScrapedTimes,
			activeStreamVal, it.File, it.Folder, it.AltFolder,
			it.Symlinked, it.SymlinkedAt, it.SymlinkedTimes, it.SymlinkPath,
			it.Key, it.GUID, it.UpdateFolder, it.LastState, showID, seasonID, it.Number,
		)
		if err != nil {
			return fmt.Errorf("insert media item: %w", mapSQLiteError(err))
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		it.ID = id
		return nil
	}

	_, err = q.Exec(`UPDATE media_items SET
		item_id=?, kind=?, imdb_id=?, tvdb_id=?, tmdb_id=?, title=?, year=?, aired_at=?,
		language=?, country=?, network=?, genres=?, is_anime=?,
		requested_at=?, requested_by=?, overseerr_id=?,
		indexed_at=?, scraped_at=?, scraped_times=?,
		active_stream=?, file=?, folder=?, alternative_folder=?,
		symlinked=?, symlinked_at=?, symlinked_times=?, symlink_path=?,
		key=?, guid=?, update_folder=?, last_state=?, show_id=?, season_id=?, number=?
		WHERE id=?`,
		it.ItemID, it.Kind, it.ImdbID, it.TvdbID, it.TmdbID, it.Title, it.Year, it.AiredAt,
		it.Language, it.Country, it.Network, genresJSON, it.IsAnime,
		it.RequestedAt, it.RequestedBy, overseerrID,
		it.IndexedAt, it.ScrapedAt, it.ScrapedTimes,
		activeStreamVal, it.File, it.Folder, it.AltFolder,
		it.Symlinked, it.SymlinkedAt, it.SymlinkedTimes, it.SymlinkPath,
		it.Key, it.GUID, it.UpdateFolder, it.LastState, showID, seasonID, it.Number,
		it.ID,
	)
	if err != nil {
		return fmt.Errorf("update media item %d: %w", it.ID, mapSQLiteError(err))
	}
	return nil
}
