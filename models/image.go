package models

import "time"

// Image represents one ingested image record in the database using GORM.
// It corresponds to the 'images' table.
//
// Records are hard-deleted: a deleted row must release its fingerprint so
// the same bytes can be re-ingested later.
type Image struct {
	ID           int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Filename     string `gorm:"not null" json:"filename"`                // display name, also the blob key
	Tags         string `gorm:"type:text;not null" json:"tags"`          // comma-separated, insertion order preserved
	Fingerprint  string `gorm:"uniqueIndex;not null" json:"fingerprint"` // content digest, dedup key
	Status       string `gorm:"not null;default:pending" json:"status"`
	SourceFolder string `gorm:"" json:"source_folder"`

	TakenAt *int64 `gorm:"" json:"taken_at,omitempty"` // Nullable, Unix timestamp from EXIF

	ThumbnailPath   *string `gorm:"" json:"thumbnail_path,omitempty"` // Nullable
	ThumbnailStatus string  `gorm:"not null;default:pending" json:"thumbnail_status"`
	ThumbnailError  *string `gorm:"" json:"thumbnail_error,omitempty"` // Nullable

	EnteredAt time.Time `gorm:"index;not null" json:"entered_at"` // logical ingestion time
	CreatedAt time.Time `gorm:"not null" json:"created_at"`       // row creation time
}

// TableName explicitly sets the table name for GORM.
func (Image) TableName() string {
	return "images"
}
