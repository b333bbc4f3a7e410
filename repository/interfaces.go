package repository

import (
	"github.com/camden-git/curatorbackend/models"
)

// ImageRepositoryInterface defines the methods for image record data operations
type ImageRepositoryInterface interface {
	Insert(image *models.Image) error
	FindByFingerprint(fingerprint string) (*models.Image, error)
	GetByID(id int64) (*models.Image, error)
	ListAll() ([]models.Image, error)
	Approve(id int64) error
	UpdateTags(id int64, tags string) error
	MarkThumbnailProcessing(id int64) error
	SetThumbnailResult(id int64, thumbnailPath *string, taskErr error) error
	Delete(id int64) error
}
