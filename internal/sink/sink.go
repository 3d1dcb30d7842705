// Package sink owns the archival and notification side effects of a
// detection. Completions arrive on a one-way queue and are processed by a
// background worker, so sink latency and sink failures never touch the
// user-facing response path.
package sink

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/detectext/detectext/internal/detect"
	"github.com/detectext/detectext/internal/email"
	"github.com/detectext/detectext/internal/observability"
	"github.com/detectext/detectext/internal/storage"
	"github.com/rs/zerolog/log"
)

const (
	defaultQueueSize = 64
	opTimeout        = 30 * time.Second
)

// Worker consumes completion events and performs archival + notification.
type Worker struct {
	archive *storage.Service
	mailer  email.Service

	toAddress     string
	subjectPrefix string

	events  chan detect.Completion
	done    chan struct{}
	once    sync.Once
	started atomic.Bool

	metrics *observability.Metrics
}

// NewWorker creates a sink worker. Call Start to begin consuming and Close
// to drain and stop.
func NewWorker(archive *storage.Service, mailer email.Service, toAddress, subjectPrefix string, metrics *observability.Metrics) *Worker {
	return &Worker{
		archive:       archive,
		mailer:        mailer,
		toAddress:     toAddress,
		subjectPrefix: subjectPrefix,
		events:        make(chan detect.Completion, defaultQueueSize),
		done:          make(chan struct{}),
		metrics:       metrics,
	}
}

// Start launches the background worker goroutine.
func (w *Worker) Start() {
	w.started.Store(true)
	go func() {
		defer close(w.done)
		for event := range w.events {
			w.process(event)
		}
	}()
}

// Enqueue hands a completion to the worker without blocking. When the
// queue is full the event is dropped and logged; archival is best-effort.
func (w *Worker) Enqueue(event detect.Completion) {
	select {
	case w.events <- event:
	default:
		w.metrics.RecordSinkEvent("dropped")
		log.Warn().
			Str("upload_id", event.UploadID).
			Str("provider", string(event.Provider)).
			Msg("Sink queue full, dropping completion event")
	}
}

// Close stops accepting events, drains the queue, and waits for the
// worker to finish. Safe to call on a worker that was never started.
func (w *Worker) Close() {
	w.once.Do(func() {
		close(w.events)
	})
	if !w.started.Load() {
		return
	}
	<-w.done
}

// process archives the image (always), the text sidecar (on success), and
// sends one notification. Every failure here is logged and swallowed.
func (w *Worker) process(event detect.Completion) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	imageKey := event.UploadID
	contentType := http.DetectContentType(event.Image)
	spanCtx, span := observability.StartArchiveSpan(ctx, "image", w.archive.Bucket(), imageKey)
	err := w.archive.Archive(spanCtx, imageKey, event.Image, contentType)
	observability.EndSpan(span, err)
	if err != nil {
		w.metrics.RecordSinkEvent("archive_error")
		log.Error().
			Err(err).
			Str("key", imageKey).
			Msg("Failed to archive image")
	} else {
		w.metrics.RecordSinkEvent("archived")
	}

	if event.Err == nil {
		textKey := event.UploadID + ".txt"
		spanCtx, span := observability.StartArchiveSpan(ctx, "text", w.archive.Bucket(), textKey)
		err := w.archive.Archive(spanCtx, textKey, []byte(event.Text), "text/plain; charset=utf-8")
		observability.EndSpan(span, err)
		if err != nil {
			w.metrics.RecordSinkEvent("archive_error")
			log.Error().
				Err(err).
				Str("key", textKey).
				Msg("Failed to archive detected text")
		}
	}

	w.notify(ctx, event)
}

// notify sends the per-completion email. Skipped silently when the mail
// service is not configured.
func (w *Worker) notify(ctx context.Context, event detect.Completion) {
	if !w.mailer.IsConfigured() {
		return
	}

	location := fmt.Sprintf("%s/%s", w.archive.Bucket(), event.UploadID)

	var subject, body string
	if event.Err != nil {
		subject = w.subjectPrefix + " Error"
		body = fmt.Sprintf("Error: %v\n\nSee image at %s", event.Err, location)
	} else {
		subject = w.subjectPrefix + " New image uploaded"
		body = fmt.Sprintf("Detected text:\n\n%s\n\nSee image at %s", event.Text, location)
	}

	if err := w.mailer.Send(ctx, w.toAddress, subject, body); err != nil {
		w.metrics.RecordSinkEvent("notify_error")
		log.Error().
			Err(err).
			Str("upload_id", event.UploadID).
			Msg("Failed to send notification email")
		return
	}
	w.metrics.RecordSinkEvent("notified")
}
