// Package library maintains the cached view of the Plex movie section so the
// UI can list titles without a round trip to the media server.
package library

import "time"

// Movie is a cached library entry. TMDbID, PosterURL and Labels are filled in
// lazily as scans and per-movie lookups discover them.
type Movie struct {
	RatingKey string   `json:"rating_key"`
	Title     string   `json:"title"`
	Year      int      `json:"year,omitempty"`
	AddedAt   int64    `json:"addedAt,omitempty"`
	TMDbID    int      `json:"tmdb_id,omitempty"`
	PosterURL string   `json:"poster_url,omitempty"`
	Labels    []string `json:"labels"`
}

// MovieRecord is the gorm model backing the cache.
type MovieRecord struct {
	RatingKey  string `gorm:"primaryKey;size:64"`
	Title      string `gorm:"size:512;not null"`
	Year       int
	AddedAt    int64
	TMDbID     int    `gorm:"column:tmdb_id"`
	PosterURL  string `gorm:"size:1024"`
	LabelsJSON string `gorm:"type:text"`
	UpdatedAt  time.Time
}

// TableName overrides the default table name.
func (MovieRecord) TableName() string {
	return "movie_cache"
}
