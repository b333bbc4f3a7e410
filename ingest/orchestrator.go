package ingest

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/camden-git/curatorbackend/analysis"
	"github.com/camden-git/curatorbackend/media"
	"github.com/camden-git/curatorbackend/models"
	"github.com/camden-git/curatorbackend/repository"
	"github.com/camden-git/curatorbackend/utils"
)

// Item is one file submitted for ingestion
type Item struct {
	Filename     string
	SourceFolder string
	Data         []byte
}

// ImageStore is the subset of the repository the orchestrator needs
type ImageStore interface {
	FindByFingerprint(fingerprint string) (*models.Image, error)
	Insert(image *models.Image) error
}

// ThumbnailQueuer accepts background thumbnail work for a freshly ingested
// record. Thumbnailing is derived-asset work and never part of the intake
// sequence itself.
type ThumbnailQueuer interface {
	Enqueue(imageID int64, filename string)
}

// Orchestrator drives a batch of files through fingerprinting, deduplication,
// external analysis and persistence. Items are processed strictly one at a
// time: this bounds load on the analysis service and keeps the progress
// counter monotonic. A fault in one item never aborts the rest of the batch.
type Orchestrator struct {
	Store    ImageStore
	Blobs    media.Store
	Analyzer analysis.Analyzer
	Thumbs   ThumbnailQueuer // optional
}

// NewOrchestrator wires an orchestrator over its collaborators
func NewOrchestrator(store ImageStore, blobs media.Store, analyzer analysis.Analyzer, thumbs ThumbnailQueuer) *Orchestrator {
	return &Orchestrator{Store: store, Blobs: blobs, Analyzer: analyzer, Thumbs: thumbs}
}

// Run processes the batch sequentially and reports one outcome event plus one
// progress event per item through sink. The processed counter increases by
// exactly one per item and reaches the total exactly once, so callers can
// render a deterministic progress bar. Cancelling ctx stops the run between
// items; items already processed stay processed.
func (o *Orchestrator) Run(ctx context.Context, items []Item, sink EventSink) Summary {
	summary := Summary{Total: len(items)}
	if sink == nil {
		sink = func(Event) {}
	}

	for _, item := range items {
		if ctx.Err() != nil {
			log.Printf("ingest: batch aborted by caller after %d/%d items", summary.Processed, summary.Total)
			break
		}

		o.processItem(ctx, item, sink, &summary)

		summary.Processed++
		sink(Event{Type: EventProgress, Processed: summary.Processed, Total: summary.Total})
	}

	return summary
}

// processItem runs the pipeline steps for a single file and emits its outcome
// event. Progress accounting is owned by Run.
func (o *Orchestrator) processItem(ctx context.Context, item Item, sink EventSink, summary *Summary) {
	// non-image files in a folder selection are expected; skip them silently
	// rather than reporting noise
	if !utils.IsRasterImage(item.Filename) {
		summary.Skipped++
		return
	}

	fingerprint := Fingerprint(item.Data)

	existing, err := o.Store.FindByFingerprint(fingerprint)
	if err == nil {
		summary.Duplicates++
		sink(Event{Type: EventDuplicateDetected, ExistingID: existing.ID, ExistingFilename: existing.Filename})
		return
	}
	if !errors.Is(err, repository.ErrNotFound) {
		summary.Failures++
		log.Printf("ingest: fingerprint lookup failed for %s: %v", item.Filename, err)
		sink(Event{Type: EventItemFailed, Filename: item.Filename, Reason: err.Error()})
		return
	}

	tagString, err := o.Analyzer.Analyze(ctx, item.Data)
	if err == nil && strings.TrimSpace(tagString) == "" {
		// a record must never be persisted without tags
		err = errors.New("analysis returned no tags")
	}
	if err != nil {
		summary.Failures++
		log.Printf("ingest: analysis failed for %s: %v", item.Filename, err)
		sink(Event{Type: EventAnalysisFailed, Filename: item.Filename, Reason: err.Error()})
		return
	}

	if _, err := o.Blobs.Save(media.AssetTypeOriginal, item.Filename, bytes.NewReader(item.Data)); err != nil {
		summary.Failures++
		log.Printf("ingest: blob save failed for %s: %v", item.Filename, err)
		sink(Event{Type: EventItemFailed, Filename: item.Filename, Reason: err.Error()})
		return
	}

	record := &models.Image{
		Filename:     item.Filename,
		Tags:         tagString,
		Fingerprint:  fingerprint,
		SourceFolder: item.SourceFolder,
		TakenAt:      utils.ExtractTakenAt(item.Data),
		EnteredAt:    time.Now(),
	}

	if err := o.Store.Insert(record); err != nil {
		if errors.Is(err, repository.ErrDuplicateFingerprint) {
			// lost a race against a concurrent insert of the same bytes; the
			// unique index kept the invariant, report it as a duplicate
			summary.Duplicates++
			if existing, lookupErr := o.Store.FindByFingerprint(fingerprint); lookupErr == nil {
				sink(Event{Type: EventDuplicateDetected, ExistingID: existing.ID, ExistingFilename: existing.Filename})
			} else {
				sink(Event{Type: EventDuplicateDetected})
			}
			return
		}

		summary.Failures++
		log.Printf("ingest: insert failed for %s: %v", item.Filename, err)
		if delErr := o.Blobs.Delete(media.AssetTypeOriginal, item.Filename); delErr != nil {
			log.Printf("ingest: failed to roll back blob for %s: %v", item.Filename, delErr)
		}
		sink(Event{Type: EventItemFailed, Filename: item.Filename, Reason: err.Error()})
		return
	}

	if o.Thumbs != nil {
		o.Thumbs.Enqueue(record.ID, record.Filename)
	}

	summary.Ingested++
	sink(Event{Type: EventItemIngested, Record: record})
}
