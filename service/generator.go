// Package service wires the encoder to the archive store, the batch ledger,
// the completion webhook and metrics.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/qrbatch/bundle"
	"github.com/openclaw/qrbatch/encoder"
	"github.com/openclaw/qrbatch/metrics"
	"github.com/openclaw/qrbatch/store"
)

var (
	// ErrNoPayloads is returned for an empty payload list.
	ErrNoPayloads = errors.New("no payloads supplied")

	// ErrTooManyPayloads is returned when a request exceeds the configured
	// batch limit.
	ErrTooManyPayloads = errors.New("too many payloads")
)

// DownloadPath returns the URL path that serves the archive of batch id.
func DownloadPath(id string) string {
	return "/batches/" + id + "/download"
}

// Generator runs generate requests: encode every payload, bundle the
// successful images under a fresh batch id, and record the outcome.
type Generator struct {
	archives    *bundle.Store
	batches     *store.BatchStore
	notifier    *WebhookSender
	metrics     *metrics.Metrics
	log         *slog.Logger
	workers     int
	maxPayloads int
	publicURL   string

	now func() time.Time
}

// NewGenerator creates a Generator. notifier and m may be nil. workers <= 0
// means one worker per CPU; maxPayloads <= 0 disables the batch limit.
func NewGenerator(archives *bundle.Store, batches *store.BatchStore, notifier *WebhookSender, m *metrics.Metrics,
	log *slog.Logger, workers, maxPayloads int, publicURL string) *Generator {
	return &Generator{
		archives:    archives,
		batches:     batches,
		notifier:    notifier,
		metrics:     m,
		log:         log,
		workers:     workers,
		maxPayloads: maxPayloads,
		publicURL:   publicURL,
		now:         time.Now,
	}
}

// Generate encodes payloads with the shared opts. Per-payload failures are
// recorded as failed items of the returned batch; only request-level
// problems (no payloads, too many, invalid shared options, storage errors)
// return an error.
func (g *Generator) Generate(ctx context.Context, payloads []string, opts encoder.Options) (*store.Batch, error) {
	if len(payloads) == 0 {
		return nil, ErrNoPayloads
	}
	if g.maxPayloads > 0 && len(payloads) > g.maxPayloads {
		return nil, fmt.Errorf("%w: %d exceeds limit of %d", ErrTooManyPayloads, len(payloads), g.maxPayloads)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	batch := &store.Batch{
		ID:        uuid.NewString(),
		CreatedAt: g.now().UTC(),
		Format:    string(opts.Format),
		Total:     len(payloads),
	}
	log := g.log.With("batch_id", batch.ID)

	start := time.Now()
	results := encoder.EncodeAll(ctx, encoder.Batch(payloads, opts), g.workers)
	g.metrics.ObserveBatch(batch.Format, len(payloads), time.Since(start))

	batch.Items = make([]store.Item, len(results))
	for i, r := range results {
		item := store.Item{Position: r.Index, Payload: r.Payload}
		if r.OK() {
			item.Status = store.StatusOK
			item.Filename = r.Artifact.Filename()
			g.metrics.ObserveEncode(batch.Format, "ok")
		} else {
			item.Status = store.StatusFailed
			item.Error = r.Err.Error()
			item.Kind = encoder.Kind(r.Err)
			batch.Failed++
			g.metrics.ObserveEncode(batch.Format, item.Kind)
			log.Warn("payload failed to encode", "index", r.Index, "kind", item.Kind, "error", r.Err)
		}
		batch.Items[i] = item
	}

	if artifacts := encoder.Artifacts(results); len(artifacts) > 0 {
		path, err := g.archives.Save(batch.ID, artifacts)
		if err != nil {
			return nil, fmt.Errorf("save archive: %w", err)
		}
		batch.ArchivePath = path
	}

	if err := g.batches.SaveBatch(ctx, batch); err != nil {
		if batch.ArchivePath != "" {
			if rmErr := g.archives.Remove(batch.ID); rmErr != nil {
				log.Error("remove orphaned archive", "error", rmErr)
			}
		}
		return nil, fmt.Errorf("record batch: %w", err)
	}

	log.Info("batch generated", "total", batch.Total, "failed", batch.Failed, "format", batch.Format)
	g.notify(batch)
	return batch, nil
}

// Batch returns the recorded batch with id.
func (g *Generator) Batch(ctx context.Context, id string) (*store.Batch, error) {
	return g.batches.GetBatch(ctx, id)
}

// Batches lists recent batches, newest first.
func (g *Generator) Batches(ctx context.Context, limit int) ([]store.Batch, error) {
	return g.batches.ListBatches(ctx, limit)
}

// Archives exposes the archive store for download handlers.
func (g *Generator) Archives() *bundle.Store {
	return g.archives
}

// Expire deletes batches created before cutoff from the ledger and disk and
// returns how many were removed.
func (g *Generator) Expire(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := g.batches.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := g.archives.Remove(id); err != nil {
			g.log.Warn("remove expired archive", "batch_id", id, "error", err)
		}
	}
	return len(ids), nil
}

func (g *Generator) notify(b *store.Batch) {
	if g.notifier == nil {
		return
	}
	evt := &BatchEvent{
		BatchID:   b.ID,
		Total:     b.Total,
		Failed:    b.Failed,
		Format:    b.Format,
		CreatedAt: b.CreatedAt.Unix(),
	}
	if b.ArchivePath != "" {
		evt.DownloadURL = g.publicURL + DownloadPath(b.ID)
	}
	go func() {
		if err := g.notifier.Send(context.Background(), evt); err != nil {
			g.log.Warn("batch webhook failed", "batch_id", b.ID, "error", err)
		}
	}()
}
