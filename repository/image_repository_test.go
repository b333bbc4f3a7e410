package repository

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/camden-git/curatorbackend/database"
	"github.com/camden-git/curatorbackend/models"
)

func newTestRepo(t *testing.T) *ImageRepository {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := database.InitGormDB(dbPath)
	if err != nil {
		t.Fatalf("failed to init test database: %v", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return NewImageRepository(db)
}

func testImage(filename, fingerprint string) *models.Image {
	return &models.Image{
		Filename:     filename,
		Tags:         "tree, house",
		Fingerprint:  fingerprint,
		SourceFolder: "vacation",
		EnteredAt:    time.Now(),
	}
}

func TestInsertAssignsDefaults(t *testing.T) {
	repo := newTestRepo(t)

	img := testImage("a.jpg", "fp-a")
	if err := repo.Insert(img); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if img.ID == 0 {
		t.Error("Insert did not assign an id")
	}
	if img.Status != database.StatusPending {
		t.Errorf("status = %q, want %q", img.Status, database.StatusPending)
	}
	if img.ThumbnailStatus != database.TaskStatusPending {
		t.Errorf("thumbnail status = %q, want %q", img.ThumbnailStatus, database.TaskStatusPending)
	}
}

func TestInsertDuplicateFingerprint(t *testing.T) {
	repo := newTestRepo(t)

	if err := repo.Insert(testImage("a.jpg", "fp-a")); err != nil {
		t.Fatalf("first Insert failed: %v", err)
	}

	err := repo.Insert(testImage("b.jpg", "fp-a"))
	if !errors.Is(err, ErrDuplicateFingerprint) {
		t.Errorf("second Insert error = %v, want ErrDuplicateFingerprint", err)
	}
}

func TestFindByFingerprint(t *testing.T) {
	repo := newTestRepo(t)

	inserted := testImage("a.jpg", "fp-a")
	if err := repo.Insert(inserted); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	found, err := repo.FindByFingerprint("fp-a")
	if err != nil {
		t.Fatalf("FindByFingerprint failed: %v", err)
	}
	if found.ID != inserted.ID || found.Filename != "a.jpg" {
		t.Errorf("found record %+v, want id %d filename a.jpg", found, inserted.ID)
	}

	if _, err := repo.FindByFingerprint("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("lookup of absent fingerprint = %v, want ErrNotFound", err)
	}
}

func TestListAllOrdering(t *testing.T) {
	repo := newTestRepo(t)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	oldest := testImage("oldest.jpg", "fp-1")
	oldest.EnteredAt = base.Add(-time.Hour)
	tieA := testImage("tie-a.jpg", "fp-2")
	tieA.EnteredAt = base
	tieB := testImage("tie-b.jpg", "fp-3")
	tieB.EnteredAt = base
	newest := testImage("newest.jpg", "fp-4")
	newest.EnteredAt = base.Add(time.Hour)

	for _, img := range []*models.Image{oldest, tieA, tieB, newest} {
		if err := repo.Insert(img); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	images, err := repo.ListAll()
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}

	// newest entered_at first; equal timestamps tie-break by descending id
	want := []string{"newest.jpg", "tie-b.jpg", "tie-a.jpg", "oldest.jpg"}
	if len(images) != len(want) {
		t.Fatalf("ListAll returned %d records, want %d", len(images), len(want))
	}
	for i, name := range want {
		if images[i].Filename != name {
			t.Errorf("ListAll[%d] = %q, want %q", i, images[i].Filename, name)
		}
	}
}

func TestApprove(t *testing.T) {
	repo := newTestRepo(t)

	img := testImage("a.jpg", "fp-a")
	if err := repo.Insert(img); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := repo.Approve(img.ID); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	// idempotent on an already-approved record
	if err := repo.Approve(img.ID); err != nil {
		t.Fatalf("second Approve failed: %v", err)
	}

	got, err := repo.GetByID(img.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != database.StatusApproved {
		t.Errorf("status = %q, want %q", got.Status, database.StatusApproved)
	}

	if err := repo.Approve(99999); !errors.Is(err, ErrNotFound) {
		t.Errorf("Approve of absent id = %v, want ErrNotFound", err)
	}
}

func TestUpdateTagsForcesPending(t *testing.T) {
	repo := newTestRepo(t)

	img := testImage("a.jpg", "fp-a")
	if err := repo.Insert(img); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := repo.Approve(img.ID); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	if err := repo.UpdateTags(img.ID, "lake, mountain"); err != nil {
		t.Fatalf("UpdateTags failed: %v", err)
	}

	got, err := repo.GetByID(img.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Tags != "lake, mountain" {
		t.Errorf("tags = %q, want %q", got.Tags, "lake, mountain")
	}
	if got.Status != database.StatusPending {
		t.Errorf("status after re-analysis = %q, want %q", got.Status, database.StatusPending)
	}

	if err := repo.UpdateTags(99999, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateTags of absent id = %v, want ErrNotFound", err)
	}
}

func TestDeleteFreesFingerprint(t *testing.T) {
	repo := newTestRepo(t)

	img := testImage("a.jpg", "fp-a")
	if err := repo.Insert(img); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := repo.Delete(img.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := repo.GetByID(img.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID after delete = %v, want ErrNotFound", err)
	}

	images, err := repo.ListAll()
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(images) != 0 {
		t.Errorf("ListAll after delete returned %d records, want 0", len(images))
	}

	// the row is hard-deleted, so the same bytes can be re-ingested
	if err := repo.Insert(testImage("a-again.jpg", "fp-a")); err != nil {
		t.Errorf("re-insert after delete failed: %v", err)
	}

	if err := repo.Delete(99999); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete of absent id = %v, want ErrNotFound", err)
	}
}

func TestSetThumbnailResult(t *testing.T) {
	repo := newTestRepo(t)

	img := testImage("a.jpg", "fp-a")
	if err := repo.Insert(img); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := repo.MarkThumbnailProcessing(img.ID); err != nil {
		t.Fatalf("MarkThumbnailProcessing failed: %v", err)
	}

	thumbName := "thumb.jpg"
	if err := repo.SetThumbnailResult(img.ID, &thumbName, nil); err != nil {
		t.Fatalf("SetThumbnailResult failed: %v", err)
	}

	got, err := repo.GetByID(img.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.ThumbnailStatus != database.TaskStatusDone {
		t.Errorf("thumbnail status = %q, want %q", got.ThumbnailStatus, database.TaskStatusDone)
	}
	if got.ThumbnailPath == nil || *got.ThumbnailPath != thumbName {
		t.Errorf("thumbnail path = %v, want %q", got.ThumbnailPath, thumbName)
	}

	if err := repo.SetThumbnailResult(img.ID, nil, errors.New("decode failed")); err != nil {
		t.Fatalf("SetThumbnailResult with error failed: %v", err)
	}
	got, _ = repo.GetByID(img.ID)
	if got.ThumbnailStatus != database.TaskStatusError {
		t.Errorf("thumbnail status after failure = %q, want %q", got.ThumbnailStatus, database.TaskStatusError)
	}
	if got.ThumbnailError == nil {
		t.Error("thumbnail error not recorded")
	}
}
