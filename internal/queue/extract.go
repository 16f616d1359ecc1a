package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/c4designer/internal/storage"
	"github.com/OFFIS-RIT/c4designer/internal/util"
	"github.com/OFFIS-RIT/c4designer/pkg/extract"
	"github.com/OFFIS-RIT/c4designer/pkg/leaselock"
	"github.com/OFFIS-RIT/c4designer/pkg/logger"
	"github.com/OFFIS-RIT/c4designer/pkg/store"
)

// Processor turns requirement text into a diagram.
type Processor interface {
	Process(ctx context.Context, text string) (*extract.ProcessResult, error)
}

// Locker serialises work on one key.
type Locker interface {
	WithLease(ctx context.Context, key string, opts leaselock.Options, fn func(ctx context.Context) error) error
}

// ExtractWorker handles deliveries of the extraction queue.
type ExtractWorker struct {
	Store     store.ProjectStore
	Pipeline  Processor
	Objects   storage.ObjectAPI
	Locker    Locker
	LockTTL   time.Duration
	Uploads   int
	UploadGap time.Duration
}

// ProcessExtractMessage runs the pipeline for the project named in msg and
// stores the result. Jobs for deleted projects are dropped. Any other
// failure marks the project failed and is returned so the delivery can be
// retried.
func (w *ExtractWorker) ProcessExtractMessage(ctx context.Context, msg []byte) error {
	var job ExtractJobMsg
	if err := json.Unmarshal(msg, &job); err != nil {
		return fmt.Errorf("decode extract job: %w", err)
	}
	if job.ProjectID <= 0 {
		return fmt.Errorf("extract job without project id")
	}

	run := func(ctx context.Context) error {
		return w.extract(ctx, job)
	}
	if w.Locker == nil {
		return run(ctx)
	}
	return w.Locker.WithLease(ctx, leaselock.ProjectKey(job.ProjectID), leaselock.Options{
		TTL:   w.LockTTL,
		Wait:  true,
		Owner: "worker-",
	}, run)
}

func (w *ExtractWorker) extract(ctx context.Context, job ExtractJobMsg) (err error) {
	project, err := w.Store.GetProject(ctx, job.ProjectID)
	if errors.Is(err, store.ErrNotFound) {
		logger.Warn("[Worker] Project gone, dropping job", "project_id", job.ProjectID, "correlation_id", job.CorrelationID)
		return nil
	}
	if err != nil {
		return err
	}

	if err := w.Store.SetStatus(ctx, project.ID, store.StatusProcessing, ""); err != nil {
		return err
	}
	defer func() {
		if err == nil {
			return
		}
		updateCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if updateErr := w.Store.SetStatus(updateCtx, project.ID, store.StatusFailed, err.Error()); updateErr != nil {
			logger.Warn("[Worker] Failed to mark project as failed", "project_id", project.ID, "correlation_id", job.CorrelationID, "err", updateErr)
		}
	}()

	start := time.Now()
	result, err := w.Pipeline.Process(ctx, project.Requirements)
	if err != nil {
		return fmt.Errorf("extract project %d: %w", project.ID, err)
	}

	key := ""
	if w.Objects != nil {
		key, err = util.RetryWithBackoff(ctx, max(w.Uploads, 1), w.UploadGap, func(ctx context.Context) (string, error) {
			return storage.PutMarkup(ctx, w.Objects, project.ID, result.PlantUMLCode)
		})
		if err != nil {
			return fmt.Errorf("upload markup of project %d: %w", project.ID, err)
		}
	}

	if err := w.Store.SaveDiagram(ctx, project.ID, result.Hierarchy, result.PlantUMLCode, key); err != nil {
		return err
	}
	if err := w.Store.SetStatus(ctx, project.ID, store.StatusReady, ""); err != nil {
		return err
	}

	logger.Info("[Worker] Extracted project",
		"project_id", project.ID,
		"correlation_id", job.CorrelationID,
		"entities", len(result.Entities),
		"relations", len(result.Relations),
		"artifact", key,
		"duration", time.Since(start),
	)
	return nil
}
