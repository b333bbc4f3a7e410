package ingest

import "github.com/camden-git/curatorbackend/models"

// EventType identifies a per-item outcome reported during a batch run
type EventType string

const (
	// EventItemIngested reports a newly persisted pending record
	EventItemIngested EventType = "item_ingested"
	// EventDuplicateDetected reports that the item's bytes already exist,
	// pointing at the record that holds them
	EventDuplicateDetected EventType = "duplicate_detected"
	// EventAnalysisFailed reports an external analysis fault for one item
	EventAnalysisFailed EventType = "analysis_failed"
	// EventItemFailed reports a storage or blob fault for one item
	EventItemFailed EventType = "item_failed"
	// EventProgress is emitted after every item, including skipped ones
	EventProgress EventType = "progress"
)

// Event is a single per-item report from the orchestrator. Which fields are
// set depends on Type.
type Event struct {
	Type EventType `json:"type"`

	Record *models.Image `json:"record,omitempty"` // item_ingested

	ExistingID       int64  `json:"existing_id,omitempty"`       // duplicate_detected
	ExistingFilename string `json:"existing_filename,omitempty"` // duplicate_detected

	Filename string `json:"filename,omitempty"` // analysis_failed, item_failed
	Reason   string `json:"reason,omitempty"`   // analysis_failed, item_failed

	Processed int `json:"processed,omitempty"` // progress
	Total     int `json:"total,omitempty"`     // progress
}

// EventSink receives orchestrator events as they occur. Sinks are called
// synchronously between pipeline steps and must not block for long.
type EventSink func(Event)

// Summary is the final accounting for a batch run
type Summary struct {
	Processed  int `json:"processed"`
	Total      int `json:"total"`
	Ingested   int `json:"ingested"`
	Duplicates int `json:"duplicates"`
	Failures   int `json:"failures"`
	Skipped    int `json:"skipped"` // non-image items, counted but never flagged
}
