package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/learnlive/backend/internal/recordings"
	"github.com/learnlive/backend/pkg/queue"
	"github.com/learnlive/backend/pkg/storage"
)

// Worker consumes recording import jobs: fetch the provider's file and copy
// it into our S3 bucket.
type Worker struct {
	queue  *queue.Queue
	repo   *recordings.Repository
	s3     *storage.S3
	client *http.Client
	logger *zap.Logger
}

// New creates a Worker.
func New(q *queue.Queue, repo *recordings.Repository, s3 *storage.S3, logger *zap.Logger) *Worker {
	return &Worker{
		queue:  q,
		repo:   repo,
		s3:     s3,
		client: &http.Client{Timeout: 10 * time.Minute},
		logger: logger,
	}
}

// Run processes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping")
			return ctx.Err()
		default:
		}

		job, _, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("dequeue", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}
		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job *queue.Job) {
	switch job.Type {
	case queue.JobTypeRecordingImport:
		var payload queue.RecordingImportPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			w.logger.Error("bad job payload", zap.Error(err), zap.String("job_id", job.ID))
			return
		}
		if err := w.importRecording(ctx, payload); err != nil {
			w.logger.Error("import recording failed",
				zap.Error(err),
				zap.String("job_id", job.ID),
				zap.Int("attempt", job.Attempt),
			)
			if job.Attempt+1 >= queue.MaxRetries {
				if markErr := w.repo.MarkFailed(ctx, payload.RecordingID); markErr != nil {
					w.logger.Error("mark recording failed", zap.Error(markErr))
				}
			}
			if err := w.queue.Retry(ctx, job); err != nil {
				w.logger.Error("retry job", zap.Error(err), zap.String("job_id", job.ID))
			}
			return
		}
		w.logger.Info("recording imported",
			zap.String("recording_id", payload.RecordingID.String()),
			zap.String("session_id", payload.SessionID.String()),
		)
	default:
		w.logger.Warn("unknown job type", zap.String("type", string(job.Type)), zap.String("job_id", job.ID))
	}
}

// importRecording streams the provider file into S3 and marks the row
// completed. The file never touches local disk.
func (w *Worker) importRecording(ctx context.Context, payload queue.RecordingImportPayload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, payload.OriginalURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch recording: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch recording: status %d", resp.StatusCode)
	}

	key := storage.RecordingKey(payload.SessionID.String(), payload.RecordingID.String())
	if _, err := w.s3.Upload(ctx, w.s3.RecordingsBucket(), key, "video/mp4", resp.Body, resp.ContentLength); err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	size := resp.ContentLength
	if size < 0 {
		if head, err := w.s3.HeadObject(ctx, w.s3.RecordingsBucket(), key); err == nil && head.ContentLength != nil {
			size = *head.ContentLength
		} else {
			size = 0
		}
	}
	if err := w.repo.MarkCompleted(ctx, payload.RecordingID, key, size); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}
