package workers

import (
	"fmt"
	"log"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/camden-git/curatorbackend/media"
	"github.com/camden-git/curatorbackend/repository"
)

// ThumbnailJob asks for a thumbnail of one stored original
type ThumbnailJob struct {
	ImageID  int64
	Filename string
}

// ThumbnailProcessor generates review-grade thumbnails in the background.
// Thumbnails are derived assets: generation happens off the intake path and
// a failure only marks the record's thumbnail task, never the record itself.
type ThumbnailProcessor struct {
	JobQueue chan ThumbnailJob
	Repo     repository.ImageRepositoryInterface
	Blobs    media.Store
	MaxSize  int
	Wg       sync.WaitGroup
	StopChan chan struct{}
	Pending  map[int64]bool
	Mutex    sync.Mutex
}

// NewThumbnailProcessor starts the worker pool
func NewThumbnailProcessor(repo repository.ImageRepositoryInterface, blobs media.Store, maxSize, queueSize, numWorkers int) *ThumbnailProcessor {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	proc := &ThumbnailProcessor{
		JobQueue: make(chan ThumbnailJob, queueSize),
		Repo:     repo,
		Blobs:    blobs,
		MaxSize:  maxSize,
		StopChan: make(chan struct{}),
		Pending:  make(map[int64]bool),
	}
	proc.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go proc.worker(i)
	}
	log.Printf("Started %d thumbnail worker(s) with queue size %d", numWorkers, queueSize)
	return proc
}

// Enqueue schedules thumbnail generation for a record. Duplicate requests
// for a record already queued are dropped; a full queue drops the job and
// leaves the record's thumbnail task pending for a later retry.
func (tp *ThumbnailProcessor) Enqueue(imageID int64, filename string) {
	tp.Mutex.Lock()
	if tp.Pending[imageID] {
		tp.Mutex.Unlock()
		return
	}
	tp.Pending[imageID] = true
	tp.Mutex.Unlock()

	select {
	case tp.JobQueue <- ThumbnailJob{ImageID: imageID, Filename: filename}:
	default:
		log.Printf("Thumbnail queue full, dropping job for image %d (%s)", imageID, filename)
		tp.Mutex.Lock()
		delete(tp.Pending, imageID)
		tp.Mutex.Unlock()
	}
}

func (tp *ThumbnailProcessor) worker(id int) {
	defer tp.Wg.Done()
	log.Printf("Thumbnail worker %d started", id)

	for {
		select {
		case job, ok := <-tp.JobQueue:
			if !ok {
				log.Printf("Thumbnail worker %d stopping: job queue closed", id)
				return
			}

			if err := tp.Repo.MarkThumbnailProcessing(job.ImageID); err != nil {
				log.Printf("Worker %d: ERROR marking thumbnail processing for image %d: %v. Skipping job.", id, job.ImageID, err)
				tp.clearPending(job.ImageID)
				continue
			}

			tp.processJob(id, job)
			tp.clearPending(job.ImageID)

		case <-tp.StopChan:
			log.Printf("Thumbnail worker %d stopping: stop signal received", id)
			return
		}
	}
}

func (tp *ThumbnailProcessor) clearPending(imageID int64) {
	tp.Mutex.Lock()
	delete(tp.Pending, imageID)
	tp.Mutex.Unlock()
}

// processJob generates the thumbnail and records the outcome
func (tp *ThumbnailProcessor) processJob(id int, job ThumbnailJob) {
	thumbName, taskErr := tp.generate(job.Filename)

	var thumbPathPtr *string
	if taskErr == nil {
		thumbPathPtr = &thumbName
		log.Printf("Worker %d: Generated thumbnail for image %d (%s)", id, job.ImageID, job.Filename)
	} else {
		log.Printf("Worker %d: ERROR generating thumbnail for image %d (%s): %v", id, job.ImageID, job.Filename, taskErr)
	}

	if dbErr := tp.Repo.SetThumbnailResult(job.ImageID, thumbPathPtr, taskErr); dbErr != nil {
		log.Printf("Worker %d: ERROR updating thumbnail result for image %d: %v", id, job.ImageID, dbErr)
	}
}

// generate creates a UUID-named jpeg thumbnail next to the stored originals
// and returns its filename within the thumbnail asset directory
func (tp *ThumbnailProcessor) generate(originalFilename string) (string, error) {
	originalPath, err := tp.Blobs.FullPath(media.AssetTypeOriginal, originalFilename)
	if err != nil {
		return "", fmt.Errorf("failed to resolve original %s: %w", originalFilename, err)
	}

	img, err := imaging.Open(originalPath)
	if err != nil {
		return "", fmt.Errorf("failed to open image %s: %w", originalFilename, err)
	}

	thumb := imaging.Fit(img, tp.MaxSize, tp.MaxSize, imaging.Lanczos)

	thumbUUID, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID for thumbnail: %w", err)
	}
	thumbFilename := thumbUUID.String() + ".jpg" // save all as jpg with UUID name

	if _, err := tp.Blobs.EnsureDir(media.AssetTypeThumbnail); err != nil {
		return "", err
	}
	thumbSavePath, err := tp.Blobs.FullPath(media.AssetTypeThumbnail, thumbFilename)
	if err != nil {
		return "", err
	}

	if err := imaging.Save(thumb, thumbSavePath, imaging.JPEGQuality(80)); err != nil {
		return "", fmt.Errorf("failed to save thumbnail to %s: %w", thumbSavePath, err)
	}

	return thumbFilename, nil
}

// Shutdown stops the workers and waits for in-flight jobs to finish
func (tp *ThumbnailProcessor) Shutdown() {
	close(tp.StopChan)
	tp.Wg.Wait()
	log.Println("Thumbnail workers stopped")
}
