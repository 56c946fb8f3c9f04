package runner

import (
	"context"

	"github.com/google/uuid"

	"github.com/postersmith/postersmith/internal/library"
	"github.com/postersmith/postersmith/internal/progress"
	"github.com/postersmith/postersmith/pkg/interfaces"
	"github.com/postersmith/postersmith/pkg/models"
)

// ScanOptions control how much per-movie enrichment a scan performs beyond
// refreshing the basic movie list.
type ScanOptions = models.ScanOptions

// StartScan claims the scan slot and launches a library rescan in the
// background.
func (s *Service) StartScan(ctx context.Context, opts ScanOptions) (string, error) {
	if err := s.tracker.Start(progress.KindScan); err != nil {
		return "", err
	}

	runID := uuid.NewString()
	s.logger.Info("Library scan started",
		interfaces.String("run_id", runID),
		interfaces.Bool("include_labels", opts.IncludeLabels),
		interfaces.Bool("include_tmdb", opts.IncludeTMDb))

	go s.runScan(context.Background(), runID, opts)
	return runID, nil
}

func (s *Service) runScan(ctx context.Context, runID string, opts ScanOptions) {
	plexClient, _, _, err := s.clients(ctx)
	if err != nil {
		_ = s.tracker.Fail(progress.KindScan, "settings unavailable: "+err.Error())
		return
	}

	_ = s.tracker.Apply(progress.KindScan, progress.Update{
		CurrentStep: progress.StrPtr("listing library"),
		AppendLog:   "scan started",
	})

	// Enumeration failure fails the whole job; there is nothing to iterate.
	movies, err := plexClient.Movies(ctx)
	if err != nil {
		s.logger.Error("Scan aborted, could not list library",
			interfaces.String("run_id", runID), interfaces.Error(err))
		_ = s.tracker.Fail(progress.KindScan, "listing library failed: "+err.Error())
		return
	}

	total := len(movies)
	_ = s.tracker.Apply(progress.KindScan, progress.Update{
		Total:     progress.IntPtr(total),
		AppendLog: "library listed",
	})

	cached := make([]library.Movie, 0, total)
	for _, m := range movies {
		cached = append(cached, library.Movie{
			RatingKey: m.RatingKey,
			Title:     m.Title,
			Year:      m.Year,
			AddedAt:   m.AddedAt,
		})
	}
	if err := s.cache.Refresh(ctx, cached); err != nil {
		s.logger.Error("Scan aborted, cache refresh failed",
			interfaces.String("run_id", runID), interfaces.Error(err))
		_ = s.tracker.Fail(progress.KindScan, "cache refresh failed: "+err.Error())
		return
	}

	for i, m := range movies {
		_ = s.tracker.Apply(progress.KindScan, progress.Update{
			CurrentItem: progress.StrPtr(m.Title),
			CurrentStep: progress.StrPtr("refreshing"),
		})

		line := itemLogLine(m.RatingKey, "refreshed")
		if err := s.enrichMovie(ctx, plexClient, m.RatingKey, opts); err != nil {
			// Enrichment is best effort per movie, the scan keeps going.
			line = itemLogLine(m.RatingKey, "enrichment failed: "+err.Error())
		}

		_ = s.tracker.Apply(progress.KindScan, progress.Update{
			Processed: progress.IntPtr(i + 1),
			AppendLog: line,
		})
	}

	_ = s.tracker.Finish(progress.KindScan, total, total)
	s.logger.Info("Library scan finished",
		interfaces.String("run_id", runID),
		interfaces.Int("movies", total))
}

func (s *Service) enrichMovie(ctx context.Context, plexClient PlexLibrary, ratingKey string, opts ScanOptions) error {
	if opts.IncludeLabels {
		labels, err := plexClient.Labels(ctx, ratingKey)
		if err != nil {
			return err
		}
		if err := s.cache.SetLabels(ctx, ratingKey, labels); err != nil {
			return err
		}
	}
	if opts.IncludeTMDb {
		tmdbID, err := plexClient.TMDbID(ctx, ratingKey)
		if err != nil {
			return err
		}
		if tmdbID != 0 {
			if err := s.cache.SetTMDbID(ctx, ratingKey, tmdbID); err != nil {
				return err
			}
		}
	}
	return nil
}
