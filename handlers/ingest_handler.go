package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/camden-git/curatorbackend/ingest"
	"github.com/camden-git/curatorbackend/realtime"
	"github.com/camden-git/curatorbackend/utils"
)

// IngestHandler accepts batches of files and drives them through the
// ingestion pipeline
type IngestHandler struct {
	Orchestrator *ingest.Orchestrator
	Hub          *realtime.Hub // optional; nil disables websocket fanout
}

type batchItemRequest struct {
	Filename     string `json:"filename"`
	SourceFolder string `json:"source_folder"`
	Data         string `json:"data"` // base64, optionally a data URL
}

type batchResponse struct {
	ingest.Summary
	Events []ingest.Event `json:"events"`
}

// decodeItems validates and decodes the submitted batch upfront; malformed
// base64 is a client error, not a pipeline fault
func decodeItems(reqItems []batchItemRequest) ([]ingest.Item, error) {
	items := make([]ingest.Item, 0, len(reqItems))
	for i, reqItem := range reqItems {
		if reqItem.Filename == "" {
			return nil, fmt.Errorf("item %d: filename is required", i)
		}
		data, err := decodeImageData(reqItem.Data)
		if err != nil {
			return nil, fmt.Errorf("item %d (%s): invalid base64 image data", i, reqItem.Filename)
		}
		items = append(items, ingest.Item{
			Filename:     reqItem.Filename,
			SourceFolder: reqItem.SourceFolder,
			Data:         data,
		})
	}
	return items, nil
}

// IngestBatch runs the submitted files through the pipeline in order. Every
// per-item event is broadcast to websocket watchers as it happens and
// collected into the response alongside the final accounting.
func (bh *IngestHandler) IngestBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []batchItemRequest `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid request body: "+err.Error())
		return
	}

	items, err := decodeItems(req.Items)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	var events []ingest.Event
	sink := func(ev ingest.Event) {
		events = append(events, ev)
		if bh.Hub != nil {
			bh.Hub.Broadcast(string(ev.Type), ev)
		}
	}

	summary := bh.Orchestrator.Run(r.Context(), items, sink)

	if events == nil {
		events = []ingest.Event{}
	}
	writeJSON(w, http.StatusOK, batchResponse{Summary: summary, Events: events})
}

// IngestSingle ingests one file, mirroring the batch pipeline but with
// direct per-outcome status codes: 409 for a duplicate with a pointer to the
// existing record, 502 for an analysis fault.
func (bh *IngestHandler) IngestSingle(w http.ResponseWriter, r *http.Request) {
	var req batchItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid request body: "+err.Error())
		return
	}

	if req.Filename == "" {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "filename is required")
		return
	}
	if !utils.IsRasterImage(req.Filename) {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "unsupported file type: "+req.Filename)
		return
	}

	data, err := decodeImageData(req.Data)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid base64 image data")
		return
	}

	var outcome *ingest.Event
	sink := func(ev ingest.Event) {
		if ev.Type != ingest.EventProgress {
			evCopy := ev
			outcome = &evCopy
		}
		if bh.Hub != nil {
			bh.Hub.Broadcast(string(ev.Type), ev)
		}
	}

	bh.Orchestrator.Run(r.Context(), []ingest.Item{{
		Filename:     req.Filename,
		SourceFolder: req.SourceFolder,
		Data:         data,
	}}, sink)

	if outcome == nil {
		WriteAPIError(w, http.StatusInternalServerError, CodeStorageFailure, "ingestion produced no result")
		return
	}

	switch outcome.Type {
	case ingest.EventItemIngested:
		writeJSON(w, http.StatusCreated, outcome.Record)
	case ingest.EventDuplicateDetected:
		WriteAPIError(w, http.StatusConflict, CodeDuplicateFingerprint,
			fmt.Sprintf("image already exists as %q (id %d)", outcome.ExistingFilename, outcome.ExistingID))
	case ingest.EventAnalysisFailed:
		WriteAPIError(w, http.StatusBadGateway, CodeAnalysisFailed, outcome.Reason)
	default:
		WriteAPIError(w, http.StatusInternalServerError, CodeStorageFailure, outcome.Reason)
	}
}
