package repository

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/camden-git/curatorbackend/database"
	"github.com/camden-git/curatorbackend/models"
)

// ImageRepository handles database operations for Image records
type ImageRepository struct {
	DB *gorm.DB
}

// NewImageRepository creates a new instance of ImageRepository
func NewImageRepository(db *gorm.DB) *ImageRepository {
	return &ImageRepository{DB: db}
}

// isUniqueViolation reports whether err is the sqlite unique-index violation
// for the fingerprint column. GORM's error translation covers the common
// case; the string check catches drivers that bypass it.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Insert persists a new image record. The fingerprint-uniqueness invariant is
// enforced by the unique index on the fingerprint column, so the check and
// the write are a single atomic storage operation; a concurrent insert of the
// same bytes loses with ErrDuplicateFingerprint rather than racing.
func (r *ImageRepository) Insert(image *models.Image) error {
	if image.Status == "" {
		image.Status = database.StatusPending
	}
	if image.ThumbnailStatus == "" {
		image.ThumbnailStatus = database.TaskStatusPending
	}
	if image.EnteredAt.IsZero() {
		image.EnteredAt = time.Now()
	}

	err := r.DB.Create(image).Error
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateFingerprint
		}
		return fmt.Errorf("failed to insert image record %s: %w", image.Filename, err)
	}
	return nil
}

// FindByFingerprint retrieves the live record holding the given content
// fingerprint, or ErrNotFound when no such record exists
func (r *ImageRepository) FindByFingerprint(fingerprint string) (*models.Image, error) {
	var image models.Image
	err := r.DB.Where("fingerprint = ?", fingerprint).First(&image).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up fingerprint %s: %w", fingerprint, err)
	}
	return &image, nil
}

// GetByID retrieves a single image record by its id
func (r *ImageRepository) GetByID(id int64) (*models.Image, error) {
	var image models.Image
	err := r.DB.First(&image, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get image %d: %w", id, err)
	}
	return &image, nil
}

// ListAll returns every image record, newest ingestion first. Records sharing
// an entered_at timestamp are tie-broken by descending id so the ordering
// shown to the reviewer is stable.
func (r *ImageRepository) ListAll() ([]models.Image, error) {
	var images []models.Image
	err := r.DB.Order("entered_at DESC, id DESC").Find(&images).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list image records: %w", err)
	}
	return images, nil
}

// Approve transitions the record to approved. Approving an already-approved
// record is a no-op; a missing id yields ErrNotFound.
func (r *ImageRepository) Approve(id int64) error {
	result := r.DB.Model(&models.Image{}).Where("id = ?", id).
		Update("status", database.StatusApproved)
	if result.Error != nil {
		return fmt.Errorf("failed to approve image %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateTags replaces the record's tag string and forces status back to
// pending; re-analysis never leaves a record approved
func (r *ImageRepository) UpdateTags(id int64, tags string) error {
	result := r.DB.Model(&models.Image{}).Where("id = ?", id).Updates(map[string]interface{}{
		"tags":   tags,
		"status": database.StatusPending,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update tags for image %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkThumbnailProcessing updates the thumbnail task status to 'processing'
// and clears its error
func (r *ImageRepository) MarkThumbnailProcessing(id int64) error {
	result := r.DB.Model(&models.Image{}).Where("id = ?", id).Updates(map[string]interface{}{
		"thumbnail_status": database.TaskStatusProcessing,
		"thumbnail_error":  gorm.Expr("NULL"),
	})
	if result.Error != nil {
		return fmt.Errorf("failed to mark thumbnail processing for image %d: %w", id, result.Error)
	}
	return nil
}

// SetThumbnailResult records the outcome of thumbnail generation
func (r *ImageRepository) SetThumbnailResult(id int64, thumbnailPath *string, taskErr error) error {
	status := database.TaskStatusDone
	var errStr *string
	if taskErr != nil {
		status = database.TaskStatusError
		s := taskErr.Error()
		errStr = &s
	}

	result := r.DB.Model(&models.Image{}).Where("id = ?", id).Updates(map[string]interface{}{
		"thumbnail_path":   thumbnailPath,
		"thumbnail_status": status,
		"thumbnail_error":  errStr,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to set thumbnail result for image %d: %w", id, result.Error)
	}
	return nil
}

// Delete removes the record permanently. The row is hard-deleted so its
// fingerprint is immediately free for re-ingestion.
func (r *ImageRepository) Delete(id int64) error {
	result := r.DB.Delete(&models.Image{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete image %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
