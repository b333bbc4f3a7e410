package utils

import (
	"path/filepath"
	"strings"

	"github.com/facette/natsort"
)

var supportedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// IsRasterImage checks if the filename has a common raster image extension
func IsRasterImage(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return supportedImageExtensions[ext]
}

// SortedImageFilenames filters a file listing down to raster images and
// natural-sorts it ("img2.jpg" before "img10.jpg") for display
func SortedImageFilenames(filenames []string) []string {
	images := make([]string, 0, len(filenames))
	for _, name := range filenames {
		if IsRasterImage(name) {
			images = append(images, name)
		}
	}
	natsort.Sort(images)
	return images
}
