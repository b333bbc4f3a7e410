package utils

import (
	"bytes"

	"github.com/rwcarlsen/goexif/exif"
)

// ExtractTakenAt reads the EXIF capture timestamp from raw image bytes.
// Missing or unreadable EXIF data is normal (screenshots, stripped exports)
// and yields nil rather than an error.
func ExtractTakenAt(data []byte) *int64 {
	exifData, err := exif.Decode(bytes.NewReader(data))
	if err != nil || exifData == nil {
		return nil
	}

	dt, err := exifData.DateTime()
	if err != nil {
		return nil
	}

	ts := dt.Unix()
	return &ts
}
