package runner

import (
	"context"

	"github.com/google/uuid"

	"github.com/postersmith/postersmith/internal/progress"
	"github.com/postersmith/postersmith/internal/settings"
	"github.com/postersmith/postersmith/pkg/errors"
	"github.com/postersmith/postersmith/pkg/interfaces"
	"github.com/postersmith/postersmith/pkg/models"
)

// BatchRequest selects the movies and render parameters for one batch run.
type BatchRequest = models.BatchRequest

// ItemResult is the structured outcome of one batch item. The final report
// is this data, not parsed log lines.
type ItemResult = models.ItemResult

// Item statuses.
const (
	StatusOK    = models.StatusOK
	StatusError = models.StatusError
)

// StartBatch validates the request, claims the batch slot and launches the
// run in the background. The returned id identifies the run in logs.
func (s *Service) StartBatch(ctx context.Context, req BatchRequest) (string, error) {
	if len(req.Items) == 0 {
		return "", errors.BadRequest("batch requires at least one item")
	}
	if req.TemplateID == "" {
		req.TemplateID = "default"
	}

	options := s.resolveOptions(ctx, req.TemplateID, req.PresetID, req.Options)

	if err := s.tracker.Start(progress.KindBatch); err != nil {
		return "", err
	}
	s.setResults(nil)

	runID := uuid.NewString()
	s.logger.Info("Batch run started",
		interfaces.String("run_id", runID),
		interfaces.String("template_id", req.TemplateID),
		interfaces.Int("items", len(req.Items)))

	// Detached from the request: the poll endpoints observe the run.
	go s.runBatch(context.Background(), runID, req, options)
	return runID, nil
}

func (s *Service) runBatch(ctx context.Context, runID string, req BatchRequest, options map[string]interface{}) {
	total := len(req.Items)
	_ = s.tracker.Apply(progress.KindBatch, progress.Update{
		Total:     progress.IntPtr(total),
		AppendLog: "batch started",
	})

	plexClient, provider, cfg, err := s.clients(ctx)
	if err != nil {
		s.logger.Error("Batch aborted, settings unavailable", interfaces.String("run_id", runID), interfaces.Error(err))
		_ = s.tracker.Fail(progress.KindBatch, "settings unavailable: "+err.Error())
		return
	}

	results := make([]ItemResult, 0, total)
	for i, ratingKey := range req.Items {
		_ = s.tracker.Apply(progress.KindBatch, progress.Update{
			CurrentItem: progress.StrPtr(ratingKey),
			CurrentStep: progress.StrPtr("rendering"),
		})

		result := s.processBatchItem(ctx, plexClient, provider, cfg, req, options, ratingKey)
		results = append(results, result)
		s.setResults(results)

		line := itemLogLine(ratingKey, "done")
		if result.Status == StatusError {
			line = itemLogLine(ratingKey, "failed: "+result.Err)
			s.logger.Warn("Batch item failed",
				interfaces.String("run_id", runID),
				interfaces.String("rating_key", ratingKey),
				interfaces.String("error", result.Err))
		}

		// Processed counts attempts, success or not, exactly once per item.
		_ = s.tracker.Apply(progress.KindBatch, progress.Update{
			Processed: progress.IntPtr(i + 1),
			AppendLog: line,
		})
	}

	_ = s.tracker.Finish(progress.KindBatch, total, total)
	s.logger.Info("Batch run finished",
		interfaces.String("run_id", runID),
		interfaces.Int("items", total))
}

func (s *Service) processBatchItem(
	ctx context.Context,
	plexClient PlexLibrary,
	provider MetadataProvider,
	cfg settings.Settings,
	req BatchRequest,
	options map[string]interface{},
	ratingKey string,
) ItemResult {
	result := ItemResult{
		ID:        uuid.NewString(),
		RatingKey: ratingKey,
		Status:    StatusOK,
	}

	rendered, picked, err := s.renderItem(ctx, plexClient, provider, cfg, ratingKey, req.TemplateID, options)
	if err != nil {
		result.Status = StatusError
		result.Err = err.Error()
		return result
	}
	result.Title = picked.Title
	result.PosterURL = picked.PosterURL
	result.LogoURL = picked.LogoURL

	if req.SaveLocally {
		path, err := s.saveLocally(cfg, rendered, picked.Title, picked.Year, ratingKey, true)
		if err != nil {
			result.Status = StatusError
			result.Err = err.Error()
			return result
		}
		result.SavedPath = path
	}

	if req.SendToPlex {
		if err := s.uploadAndCleanup(ctx, plexClient, ratingKey, rendered, req.Labels); err != nil {
			result.Status = StatusError
			result.Err = err.Error()
			return result
		}
		result.Uploaded = true
	}

	return result
}
