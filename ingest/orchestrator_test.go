package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/camden-git/curatorbackend/media"
	"github.com/camden-git/curatorbackend/models"
	"github.com/camden-git/curatorbackend/repository"
)

type fakeStore struct {
	nextID    int64
	byPrint   map[string]*models.Image
	insertErr error // forced error for every insert, when set
}

func newFakeStore() *fakeStore {
	return &fakeStore{byPrint: map[string]*models.Image{}}
}

func (s *fakeStore) FindByFingerprint(fp string) (*models.Image, error) {
	if rec, ok := s.byPrint[fp]; ok {
		return rec, nil
	}
	return nil, repository.ErrNotFound
}

func (s *fakeStore) Insert(image *models.Image) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	if _, ok := s.byPrint[image.Fingerprint]; ok {
		return repository.ErrDuplicateFingerprint
	}
	s.nextID++
	image.ID = s.nextID
	s.byPrint[image.Fingerprint] = image
	return nil
}

type fakeBlobs struct {
	files   map[string][]byte
	saveErr error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{files: map[string][]byte{}}
}

func (b *fakeBlobs) key(t media.AssetType, name string) string { return string(t) + "/" + name }

func (b *fakeBlobs) Save(t media.AssetType, name string, data io.Reader) (string, error) {
	if b.saveErr != nil {
		return "", b.saveErr
	}
	content, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	b.files[b.key(t, name)] = content
	return b.key(t, name), nil
}

func (b *fakeBlobs) Get(t media.AssetType, name string) (io.ReadCloser, os.FileInfo, error) {
	data, ok := b.files[b.key(t, name)]
	if !ok {
		return nil, nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil, nil
}

func (b *fakeBlobs) ReadFile(t media.AssetType, name string) ([]byte, error) {
	data, ok := b.files[b.key(t, name)]
	if !ok {
		return nil, os.ErrNotExist
	}
	return data, nil
}

func (b *fakeBlobs) Delete(t media.AssetType, name string) error {
	delete(b.files, b.key(t, name))
	return nil
}

func (b *fakeBlobs) List(t media.AssetType) ([]string, error) { return nil, nil }

func (b *fakeBlobs) FullPath(t media.AssetType, name string) (string, error) {
	return b.key(t, name), nil
}

func (b *fakeBlobs) EnsureDir(t media.AssetType) (string, error) { return string(t), nil }

type fakeAnalyzer struct {
	analyze func(data []byte) (string, error)
}

func (a *fakeAnalyzer) Analyze(_ context.Context, data []byte) (string, error) {
	return a.analyze(data)
}

type fakeThumbs struct {
	enqueued []int64
}

func (f *fakeThumbs) Enqueue(imageID int64, _ string) {
	f.enqueued = append(f.enqueued, imageID)
}

func constTags(tags string) *fakeAnalyzer {
	return &fakeAnalyzer{analyze: func([]byte) (string, error) { return tags, nil }}
}

func countEvents(events []Event, eventType EventType) int {
	n := 0
	for _, ev := range events {
		if ev.Type == eventType {
			n++
		}
	}
	return n
}

func TestRunBatchAccounting(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	blobs := newFakeBlobs()
	thumbs := &fakeThumbs{}
	orch := NewOrchestrator(store, blobs, constTags("tree, house"), thumbs)

	items := []Item{
		{Filename: "a.jpg", SourceFolder: "vacation", Data: []byte("image-a")},
		{Filename: "b.png", SourceFolder: "vacation", Data: []byte("image-b")},
		{Filename: "c.jpg", SourceFolder: "vacation", Data: []byte("image-c")},
		{Filename: "notes.txt", SourceFolder: "vacation", Data: []byte("not an image")},
		{Filename: "a-copy.jpg", SourceFolder: "vacation", Data: []byte("image-a")}, // byte-identical to a.jpg
	}

	var events []Event
	summary := orch.Run(context.Background(), items, func(ev Event) { events = append(events, ev) })

	if summary.Processed != 5 || summary.Total != 5 {
		t.Errorf("summary processed/total = %d/%d, want 5/5", summary.Processed, summary.Total)
	}
	if summary.Ingested != 3 {
		t.Errorf("summary.Ingested = %d, want 3", summary.Ingested)
	}
	if summary.Duplicates != 1 {
		t.Errorf("summary.Duplicates = %d, want 1", summary.Duplicates)
	}
	if summary.Skipped != 1 {
		t.Errorf("summary.Skipped = %d, want 1", summary.Skipped)
	}
	if summary.Failures != 0 {
		t.Errorf("summary.Failures = %d, want 0", summary.Failures)
	}

	if got := countEvents(events, EventItemIngested); got != 3 {
		t.Errorf("ItemIngested events = %d, want 3", got)
	}
	if got := countEvents(events, EventDuplicateDetected); got != 1 {
		t.Errorf("DuplicateDetected events = %d, want 1", got)
	}
	// the non-image is neither ingested nor flagged as an error
	if got := countEvents(events, EventItemFailed) + countEvents(events, EventAnalysisFailed); got != 0 {
		t.Errorf("failure events = %d, want 0", got)
	}

	// the duplicate must point at the record created for a.jpg
	for _, ev := range events {
		if ev.Type == EventDuplicateDetected {
			if ev.ExistingFilename != "a.jpg" {
				t.Errorf("duplicate references %q, want a.jpg", ev.ExistingFilename)
			}
		}
	}

	if len(thumbs.enqueued) != 3 {
		t.Errorf("thumbnail jobs enqueued = %d, want 3", len(thumbs.enqueued))
	}
}

func TestRunProgressMonotonic(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	orch := NewOrchestrator(store, newFakeBlobs(), constTags("tag"), nil)

	items := []Item{
		{Filename: "a.jpg", Data: []byte("a")},
		{Filename: "b.jpg", Data: []byte("b")},
		{Filename: "readme.md", Data: []byte("text")},
	}

	var progress []int
	orch.Run(context.Background(), items, func(ev Event) {
		if ev.Type == EventProgress {
			progress = append(progress, ev.Processed)
			if ev.Total != len(items) {
				t.Errorf("progress total = %d, want %d", ev.Total, len(items))
			}
		}
	})

	if len(progress) != len(items) {
		t.Fatalf("progress events = %d, want %d", len(progress), len(items))
	}
	for i, p := range progress {
		if p != i+1 {
			t.Errorf("progress[%d] = %d, want %d (strictly +1 per item)", i, p, i+1)
		}
	}
}

func TestRunAnalysisFailureDoesNotAbortBatch(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	analyzer := &fakeAnalyzer{analyze: func(data []byte) (string, error) {
		if bytes.Equal(data, []byte("broken")) {
			return "", fmt.Errorf("model unavailable")
		}
		return "tree", nil
	}}
	orch := NewOrchestrator(store, newFakeBlobs(), analyzer, nil)

	items := []Item{
		{Filename: "bad.jpg", Data: []byte("broken")},
		{Filename: "good.jpg", Data: []byte("fine")},
	}

	var events []Event
	summary := orch.Run(context.Background(), items, func(ev Event) { events = append(events, ev) })

	if summary.Failures != 1 || summary.Ingested != 1 {
		t.Errorf("failures/ingested = %d/%d, want 1/1", summary.Failures, summary.Ingested)
	}
	if summary.Processed != 2 {
		t.Errorf("processed = %d, want 2 (batch must continue past the failure)", summary.Processed)
	}
	if got := countEvents(events, EventAnalysisFailed); got != 1 {
		t.Errorf("AnalysisFailed events = %d, want 1", got)
	}
}

func TestRunEmptyAnalysisResultIsFailure(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	orch := NewOrchestrator(store, newFakeBlobs(), constTags("   "), nil)

	summary := orch.Run(context.Background(), []Item{{Filename: "a.jpg", Data: []byte("a")}}, nil)

	if summary.Failures != 1 || summary.Ingested != 0 {
		t.Errorf("failures/ingested = %d/%d, want 1/0 (no record without tags)", summary.Failures, summary.Ingested)
	}
	if len(store.byPrint) != 0 {
		t.Error("record was persisted despite empty analysis result")
	}
}

func TestRunInsertRaceReportsDuplicate(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.insertErr = repository.ErrDuplicateFingerprint
	orch := NewOrchestrator(store, newFakeBlobs(), constTags("tree"), nil)

	var events []Event
	summary := orch.Run(context.Background(), []Item{{Filename: "a.jpg", Data: []byte("a")}},
		func(ev Event) { events = append(events, ev) })

	if summary.Duplicates != 1 || summary.Failures != 0 {
		t.Errorf("duplicates/failures = %d/%d, want 1/0", summary.Duplicates, summary.Failures)
	}
	if got := countEvents(events, EventDuplicateDetected); got != 1 {
		t.Errorf("DuplicateDetected events = %d, want 1", got)
	}
}

func TestRunStorageFaultIsolatedToItem(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.insertErr = errors.New("disk full")
	orch := NewOrchestrator(store, newFakeBlobs(), constTags("tree"), nil)

	var events []Event
	summary := orch.Run(context.Background(), []Item{
		{Filename: "a.jpg", Data: []byte("a")},
		{Filename: "b.jpg", Data: []byte("b")},
	}, func(ev Event) { events = append(events, ev) })

	if summary.Failures != 2 {
		t.Errorf("failures = %d, want 2", summary.Failures)
	}
	if summary.Processed != 2 {
		t.Errorf("processed = %d, want 2 (batch continues past storage faults)", summary.Processed)
	}
	if got := countEvents(events, EventItemFailed); got != 2 {
		t.Errorf("ItemFailed events = %d, want 2", got)
	}
}

func TestRunBlobRollbackOnInsertFailure(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.insertErr = errors.New("disk full")
	blobs := newFakeBlobs()
	orch := NewOrchestrator(store, blobs, constTags("tree"), nil)

	orch.Run(context.Background(), []Item{{Filename: "a.jpg", Data: []byte("a")}}, nil)

	if _, err := blobs.ReadFile(media.AssetTypeOriginal, "a.jpg"); err == nil {
		t.Error("blob survived a failed insert, want rollback")
	}
}

func TestRunStopsBetweenItemsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	store := newFakeStore()
	orch := NewOrchestrator(store, newFakeBlobs(), constTags("tree"), nil)

	items := []Item{
		{Filename: "a.jpg", Data: []byte("a")},
		{Filename: "b.jpg", Data: []byte("b")},
		{Filename: "c.jpg", Data: []byte("c")},
	}

	summary := orch.Run(ctx, items, func(ev Event) {
		if ev.Type == EventProgress && ev.Processed == 1 {
			cancel()
		}
	})

	if summary.Processed != 1 {
		t.Errorf("processed = %d, want 1 (run stops between items, already-processed items stay)", summary.Processed)
	}
	if summary.Ingested != 1 {
		t.Errorf("ingested = %d, want 1", summary.Ingested)
	}
}
