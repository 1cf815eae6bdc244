package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/noah-isme/userboard/internal/jobs"
)

// Warmer is the part of the directory service the warm job drives.
type Warmer interface {
	Warm(ctx context.Context, pages, perPage int) (int, error)
	Invalidate(ctx context.Context) error
}

// DirectoryWarmJob keeps the first listing pages hot in the cache.
type DirectoryWarmJob struct {
	Directory Warmer
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	PerPage   int
}

// NewDirectoryWarmJob wires dependencies for the warm handlers.
func NewDirectoryWarmJob(directory Warmer, perPage int, logger *slog.Logger, metrics *jobmetrics.Metrics) *DirectoryWarmJob {
	return &DirectoryWarmJob{Directory: directory, PerPage: perPage, Logger: logger, Metrics: metrics}
}

// Handle processes TaskDirectoryWarm tasks.
func (j *DirectoryWarmJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Directory == nil {
		return errors.New("directory warm: handler not configured")
	}
	var payload DirectoryWarmPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.PerPage <= 0 {
		payload.PerPage = j.PerPage
	}
	if payload.Pages <= 0 || payload.PerPage <= 0 {
		return nil
	}

	tracker := j.Metrics.Track(TaskDirectoryWarm)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("pages", payload.Pages), slog.Int("per_page", payload.PerPage))
	start := time.Now()
	warmed, err := j.Directory.Warm(ctx, payload.Pages, payload.PerPage)
	j.Metrics.AddWarmed(warmed)
	if err != nil {
		logger.Error("warm directory", slog.Int("warmed", warmed), slog.Any("error", err))
		return err
	}
	logger.Info("completed directory warm", slog.Int("warmed", warmed), slog.Duration("duration", time.Since(start)))
	return nil
}

// HandleInvalidate processes TaskDirectoryInvalidate tasks.
func (j *DirectoryWarmJob) HandleInvalidate(ctx context.Context, _ *asynq.Task) (resultErr error) {
	if j == nil || j.Directory == nil {
		return errors.New("directory invalidate: handler not configured")
	}
	tracker := j.Metrics.Track(TaskDirectoryInvalidate)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()
	if err := j.Directory.Invalidate(ctx); err != nil {
		j.logger().Error("invalidate directory cache", slog.Any("error", err))
		return err
	}
	j.logger().Info("directory cache invalidated")
	return nil
}

func (j *DirectoryWarmJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
