package workers

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"rentscout/models"
)

const maxExportAttempts = 3

// Uploader writes an object to S3-compatible storage.
type Uploader interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
}

type publicURLer interface {
	PublicURL(key string) string
}

// ExportQueue is the slice of the operational store the worker drains.
type ExportQueue interface {
	PendingExports(limit, maxAttempts int) ([]models.Export, error)
	MarkExportUploaded(id string) error
	MarkExportFailed(id string) error
}

// ExportWorker uploads queued run exports.
type ExportWorker struct {
	queue     ExportQueue
	uploader  Uploader
	logger    *logrus.Logger
	triggerCh chan struct{}
}

func NewExportWorker(queue ExportQueue, uploader Uploader, logger *logrus.Logger) *ExportWorker {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ExportWorker{
		queue:     queue,
		uploader:  uploader,
		logger:    logger,
		triggerCh: make(chan struct{}, 1),
	}
}

// Trigger causes the worker to run immediately
func (w *ExportWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// Run starts the export worker loop
func (w *ExportWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Export worker stopping")
			return
		case <-ticker.C:
			w.ProcessBatch(ctx, batchSize)
		case <-w.triggerCh:
			w.logger.Info("Export worker triggered manually")
			w.ProcessBatch(ctx, batchSize)
		}
	}
}

// ProcessBatch uploads up to batchSize pending exports and returns how many
// succeeded and failed.
func (w *ExportWorker) ProcessBatch(ctx context.Context, batchSize int) (uploaded, failed int) {
	exports, err := w.queue.PendingExports(batchSize, maxExportAttempts)
	if err != nil {
		w.logger.WithError(err).Error("Export worker: query error")
		return 0, 0
	}
	if len(exports) == 0 {
		return 0, 0
	}

	w.logger.Infof("Export worker: processing %d exports", len(exports))

	for i := range exports {
		if ctx.Err() != nil {
			break
		}
		e := &exports[i]
		entry := w.logger.WithFields(logrus.Fields{"export_id": e.ID, "key": e.Key})

		if err := w.uploader.Upload(ctx, e.Key, bytes.NewReader(e.Payload), "application/json"); err != nil {
			entry.WithError(err).Warn("Export worker: upload failed")
			if err := w.queue.MarkExportFailed(e.ID); err != nil {
				entry.WithError(err).Error("Export worker: failed to record failure")
			}
			failed++
			continue
		}

		if err := w.queue.MarkExportUploaded(e.ID); err != nil {
			entry.WithError(err).Error("Export worker: failed to mark uploaded")
			failed++
			continue
		}
		uploaded++
		if pub, ok := w.uploader.(publicURLer); ok {
			entry = entry.WithField("url", pub.PublicURL(e.Key))
		}
		entry.Debugf("Export worker: uploaded %d bytes", len(e.Payload))
	}

	if uploaded > 0 || failed > 0 {
		w.logger.Infof("Export worker: uploaded %d, failed %d", uploaded, failed)
	}
	return uploaded, failed
}

// NoOpUploader drains the payload without storing it.
type NoOpUploader struct{}

func (NoOpUploader) Upload(_ context.Context, _ string, data io.Reader, _ string) error {
	_, err := io.Copy(io.Discard, data)
	return err
}
