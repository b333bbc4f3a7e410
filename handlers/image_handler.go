package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/camden-git/curatorbackend/analysis"
	"github.com/camden-git/curatorbackend/ingest"
	"github.com/camden-git/curatorbackend/media"
	"github.com/camden-git/curatorbackend/models"
	"github.com/camden-git/curatorbackend/repository"
	"github.com/camden-git/curatorbackend/tags"
	"github.com/camden-git/curatorbackend/utils"
)

// ImageHandler exposes the curation operations on stored image records
type ImageHandler struct {
	Repo     repository.ImageRepositoryInterface
	Blobs    media.Store
	Analyzer analysis.Analyzer
}

func (ih *ImageHandler) imageIDFromURL(r *http.Request) (int64, error) {
	idStr := chi.URLParam(r, "image_id")
	return strconv.ParseInt(idStr, 10, 64)
}

// decodeImageData accepts plain base64 or a data URL and returns raw bytes
func decodeImageData(data string) ([]byte, error) {
	if idx := strings.Index(data, ";base64,"); idx >= 0 {
		data = data[idx+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(data)
}

// ListImages returns every record, newest ingestion first
func (ih *ImageHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	images, err := ih.Repo.ListAll()
	if err != nil {
		writeRepoError(w, err)
		return
	}
	if images == nil {
		images = []models.Image{}
	}
	writeJSON(w, http.StatusOK, images)
}

// GetImage returns a single record by id
func (ih *ImageHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, err := ih.imageIDFromURL(r)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid image id")
		return
	}

	image, err := ih.Repo.GetByID(id)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, image)
}

// ApproveImage transitions a pending record to approved. Approval is
// idempotent and final; only deletion or an explicit re-analysis moves the
// record afterwards.
func (ih *ImageHandler) ApproveImage(w http.ResponseWriter, r *http.Request) {
	id, err := ih.imageIDFromURL(r)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid image id")
		return
	}

	if err := ih.Repo.Approve(id); err != nil {
		writeRepoError(w, err)
		return
	}

	image, err := ih.Repo.GetByID(id)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, image)
}

// ReanalyzeImage re-runs the vision analysis against the stored bytes of an
// existing record, merges the reviewer's kept tags with the fresh result and
// forces the record back to pending
func (ih *ImageHandler) ReanalyzeImage(w http.ResponseWriter, r *http.Request) {
	id, err := ih.imageIDFromURL(r)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid image id")
		return
	}

	var req struct {
		KeptTags []string `json:"kept_tags"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid request body: "+err.Error())
			return
		}
	}

	image, err := ih.Repo.GetByID(id)
	if err != nil {
		writeRepoError(w, err)
		return
	}

	data, err := ih.Blobs.ReadFile(media.AssetTypeOriginal, image.Filename)
	if err != nil {
		log.Printf("handlers: failed to read stored bytes for image %d (%s): %v", id, image.Filename, err)
		WriteAPIError(w, http.StatusInternalServerError, CodeBlobIOFailure, "stored image bytes unavailable")
		return
	}

	fresh, err := ih.Analyzer.Analyze(r.Context(), data)
	if err != nil {
		log.Printf("handlers: re-analysis failed for image %d (%s): %v", id, image.Filename, err)
		WriteAPIError(w, http.StatusBadGateway, CodeAnalysisFailed, err.Error())
		return
	}

	reconciled := tags.Reconcile(tags.Split(image.Tags), req.KeptTags, tags.Split(fresh))
	if len(reconciled) == 0 {
		WriteAPIError(w, http.StatusBadGateway, CodeAnalysisFailed, "analysis produced no usable tags")
		return
	}

	if err := ih.Repo.UpdateTags(id, tags.Join(reconciled)); err != nil {
		writeRepoError(w, err)
		return
	}

	updated, err := ih.Repo.GetByID(id)
	if err != nil {
		writeRepoError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteImage removes the record and its stored bytes. The blob is removed
// first; bytes that are already gone are fine, but an unexpected blob error
// leaves the record untouched so nothing is half-deleted.
func (ih *ImageHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id, err := ih.imageIDFromURL(r)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid image id")
		return
	}

	image, err := ih.Repo.GetByID(id)
	if err != nil {
		writeRepoError(w, err)
		return
	}

	if err := ih.Blobs.Delete(media.AssetTypeOriginal, image.Filename); err != nil {
		log.Printf("handlers: failed to delete stored bytes for image %d (%s): %v", id, image.Filename, err)
		WriteAPIError(w, http.StatusInternalServerError, CodeBlobIOFailure, "failed to delete stored image bytes")
		return
	}

	// thumbnails are derived assets; a leftover thumbnail is only noise
	if image.ThumbnailPath != nil {
		if err := ih.Blobs.Delete(media.AssetTypeThumbnail, *image.ThumbnailPath); err != nil {
			log.Printf("handlers: failed to delete thumbnail for image %d: %v", id, err)
		}
	}

	if err := ih.Repo.Delete(id); err != nil {
		writeRepoError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// CheckDuplicate reports whether the submitted bytes are already stored,
// without ingesting anything
func (ih *ImageHandler) CheckDuplicate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Data string `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid request body: "+err.Error())
		return
	}

	data, err := decodeImageData(req.Data)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid base64 image data")
		return
	}

	existing, err := ih.Repo.FindByFingerprint(ingest.Fingerprint(data))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"is_duplicate": false})
			return
		}
		writeRepoError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"is_duplicate": true,
		"duplicate": map[string]interface{}{
			"id":       existing.ID,
			"filename": existing.Filename,
		},
	})
}

// ListAvailableImages lists the stored original filenames, natural-sorted
func (ih *ImageHandler) ListAvailableImages(w http.ResponseWriter, r *http.Request) {
	names, err := ih.Blobs.List(media.AssetTypeOriginal)
	if err != nil {
		if os.IsNotExist(err) {
			writeJSON(w, http.StatusOK, []string{})
			return
		}
		log.Printf("handlers: failed to list stored images: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, CodeBlobIOFailure, "unable to read images directory")
		return
	}

	writeJSON(w, http.StatusOK, utils.SortedImageFilenames(names))
}
