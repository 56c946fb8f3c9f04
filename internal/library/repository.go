package library

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/postersmith/postersmith/pkg/errors"
)

// Repository persists the movie cache through GORM.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates the repository and migrates its table.
func NewRepository(db *gorm.DB) (*Repository, error) {
	if err := db.AutoMigrate(&MovieRecord{}); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeInternal, "migrating movie cache table", err)
	}
	return &Repository{db: db}, nil
}

// Refresh upserts the given movies and drops cache rows whose rating key is
// no longer in the library. Enrichment columns (tmdb id, poster, labels) on
// existing rows are preserved.
func (r *Repository) Refresh(ctx context.Context, movies []Movie) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		keys := make([]string, 0, len(movies))
		for _, m := range movies {
			keys = append(keys, m.RatingKey)
			rec := MovieRecord{
				RatingKey: m.RatingKey,
				Title:     m.Title,
				Year:      m.Year,
				AddedAt:   m.AddedAt,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "rating_key"}},
				DoUpdates: clause.AssignmentColumns([]string{"title", "year", "added_at", "updated_at"}),
			}).Create(&rec).Error
			if err != nil {
				return err
			}
		}
		if len(keys) == 0 {
			return tx.Where("1 = 1").Delete(&MovieRecord{}).Error
		}
		return tx.Where("rating_key NOT IN ?", keys).Delete(&MovieRecord{}).Error
	})
	if err != nil {
		return errors.Wrap(errors.ErrorTypeInternal, "refreshing movie cache", err)
	}
	return nil
}

// SetLabels stores the known labels of a cached movie.
func (r *Repository) SetLabels(ctx context.Context, ratingKey string, labels []string) error {
	raw, err := json.Marshal(labels)
	if err != nil {
		return errors.Wrap(errors.ErrorTypeInternal, "encoding labels", err)
	}
	return r.update(ctx, ratingKey, map[string]interface{}{"labels_json": string(raw)})
}

// SetTMDbID stores the resolved TMDb id of a cached movie.
func (r *Repository) SetTMDbID(ctx context.Context, ratingKey string, tmdbID int) error {
	return r.update(ctx, ratingKey, map[string]interface{}{"tmdb_id": tmdbID})
}

// SetPosterURL stores the current poster URL of a cached movie.
func (r *Repository) SetPosterURL(ctx context.Context, ratingKey string, posterURL string) error {
	return r.update(ctx, ratingKey, map[string]interface{}{"poster_url": posterURL})
}

// List returns the cached movies, most recently updated first.
func (r *Repository) List(ctx context.Context) ([]Movie, error) {
	var rows []MovieRecord
	err := r.db.WithContext(ctx).
		Order("updated_at DESC, added_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeInternal, "listing movie cache", err)
	}

	out := make([]Movie, 0, len(rows))
	for _, row := range rows {
		m := Movie{
			RatingKey: row.RatingKey,
			Title:     row.Title,
			Year:      row.Year,
			AddedAt:   row.AddedAt,
			TMDbID:    row.TMDbID,
			PosterURL: row.PosterURL,
			Labels:    []string{},
		}
		if row.LabelsJSON != "" {
			// Rows written before labels were known hold "", treat as empty.
			_ = json.Unmarshal([]byte(row.LabelsJSON), &m.Labels)
		}
		out = append(out, m)
	}
	return out, nil
}

// Count returns the number of cached movies.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&MovieRecord{}).Count(&n).Error; err != nil {
		return 0, errors.Wrap(errors.ErrorTypeInternal, "counting movie cache", err)
	}
	return n, nil
}

func (r *Repository) update(ctx context.Context, ratingKey string, fields map[string]interface{}) error {
	err := r.db.WithContext(ctx).
		Model(&MovieRecord{}).
		Where("rating_key = ?", ratingKey).
		Updates(fields).Error
	if err != nil {
		return errors.Wrap(errors.ErrorTypeInternal, "updating movie cache row", err)
	}
	return nil
}
