package database

import (
	"context"
	"fmt"

	"github.com/snarg/scribe-engine/internal/media"
)

// AudioSources reads an item's tracks from the media catalog, in track order.
// An item row without tracks yields an empty list, no item row yields
// media.ErrItemNotFound.
func (db *DB) AudioSources(ctx context.Context, itemID string) ([]media.AudioSource, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT path, COALESCE(display_name, '') FROM audio_files
		WHERE item_id = $1
		ORDER BY track_index
	`, itemID)
	if err != nil {
		return nil, fmt.Errorf("query audio files: %w", err)
	}
	defer rows.Close()

	var sources []media.AudioSource
	for rows.Next() {
		var s media.AudioSource
		if err := rows.Scan(&s.Path, &s.DisplayName); err != nil {
			return nil, err
		}
		if s.DisplayName == "" {
			s.DisplayName = media.DisplayName(s.Path)
		}
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(sources) > 0 {
		return sources, nil
	}

	var exists bool
	err = db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM items WHERE item_id = $1)`, itemID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("query item: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", media.ErrItemNotFound, itemID)
	}
	return nil, nil
}
