package media

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Store defines the interface for saving, retrieving, and deleting image
// assets. Assets are keyed by filename within their asset type directory.
type Store interface {
	// Save stores data under the given filename, overwriting any previous
	// asset with the same name. Returns the path relative to the store root.
	Save(assetType AssetType, filename string, data io.Reader) (string, error)
	// Get retrieves a reader for an asset
	Get(assetType AssetType, filename string) (io.ReadCloser, os.FileInfo, error)
	// ReadFile returns the full contents of an asset
	ReadFile(assetType AssetType, filename string) ([]byte, error)
	// Delete removes an asset; a missing asset is not an error
	Delete(assetType AssetType, filename string) error
	// List returns the filenames currently stored for an asset type
	List(assetType AssetType) ([]string, error)
	// FullPath returns the absolute filesystem path for an asset filename
	FullPath(assetType AssetType, filename string) (string, error)
	// EnsureDir makes sure a specific asset type directory exists
	EnsureDir(assetType AssetType) (string, error)
}

// LocalStorage implements the Store interface using the local filesystem
type LocalStorage struct {
	basePath  string               // absolute path to MEDIA_STORAGE_PATH
	subDirMap map[AssetType]string // maps AssetType to subdirectory name (e.g., "thumbnails")
}

// NewLocalStorage creates a new local filesystem store
func NewLocalStorage(basePath string, subDirs map[AssetType]string) (*LocalStorage, error) {
	absBasePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base storage path '%s': %w", basePath, err)
	}

	if err := os.MkdirAll(absBasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory '%s': %w", absBasePath, err)
	}

	for assetType, subDir := range subDirs {
		fullPath := filepath.Join(absBasePath, subDir)
		if !strings.HasPrefix(filepath.Clean(fullPath), absBasePath) {
			return nil, fmt.Errorf("invalid subdirectory configuration: '%s' resolves outside base path '%s'", subDir, absBasePath)
		}
		if err := os.MkdirAll(fullPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create asset directory '%s': %w", fullPath, err)
		}
		_ = assetType
	}

	log.Printf("media.store: Initialized LocalStorage at %s", absBasePath)
	return &LocalStorage{
		basePath:  absBasePath,
		subDirMap: subDirs,
	}, nil
}

// getAssetTypeDir resolves the absolute path for a given asset type
func (ls *LocalStorage) getAssetTypeDir(assetType AssetType) (string, error) {
	subDir, ok := ls.subDirMap[assetType]
	if !ok {
		log.Printf("media.store: Warning - Asset type '%s' not explicitly configured, using as subdirectory name", assetType)
		subDir = string(assetType)
	}

	dirPath := filepath.Join(ls.basePath, subDir)
	if !strings.HasPrefix(filepath.Clean(dirPath), ls.basePath) {
		return "", fmt.Errorf("asset type '%s' resolves outside base path", assetType)
	}
	return dirPath, nil
}

// EnsureDir creates the directory for the asset type if it doesn't exist
func (ls *LocalStorage) EnsureDir(assetType AssetType) (string, error) {
	dirPath, err := ls.getAssetTypeDir(assetType)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to ensure directory '%s': %w", dirPath, err)
	}
	return dirPath, nil
}

// FullPath calculates the absolute path for an asset and rejects names
// that would escape the asset type directory
func (ls *LocalStorage) FullPath(assetType AssetType, filename string) (string, error) {
	dirPath, err := ls.getAssetTypeDir(assetType)
	if err != nil {
		return "", err
	}

	cleanName := filepath.Clean(filename)
	if cleanName == "." || strings.Contains(cleanName, "..") || strings.ContainsAny(cleanName, `/\`) {
		return "", fmt.Errorf("invalid asset filename '%s'", filename)
	}

	fullPath := filepath.Join(dirPath, cleanName)
	if !strings.HasPrefix(fullPath, dirPath) {
		return "", fmt.Errorf("invalid path: access denied for '%s'", filename)
	}
	return fullPath, nil
}

// Save writes data under filename, replacing any existing asset of that name
func (ls *LocalStorage) Save(assetType AssetType, filename string, data io.Reader) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("filename cannot be empty for LocalStorage.Save")
	}
	if _, err := ls.EnsureDir(assetType); err != nil {
		return "", err
	}

	fullSavePath, err := ls.FullPath(assetType, filename)
	if err != nil {
		return "", err
	}

	outFile, err := os.Create(fullSavePath)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file '%s': %w", fullSavePath, err)
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, data); err != nil {
		outFile.Close()
		os.Remove(fullSavePath)
		return "", fmt.Errorf("failed to write data to '%s': %w", fullSavePath, err)
	}

	relativePath, err := filepath.Rel(ls.basePath, fullSavePath)
	if err != nil {
		log.Printf("media.store: Error calculating relative path for '%s': %v", fullSavePath, err)
		return "", fmt.Errorf("internal error calculating relative path: %w", err)
	}

	log.Printf("media.store: Saved asset to %s", fullSavePath)
	return filepath.ToSlash(relativePath), nil
}

func (ls *LocalStorage) Get(assetType AssetType, filename string) (io.ReadCloser, os.FileInfo, error) {
	fullPath, err := ls.FullPath(assetType, filename)
	if err != nil {
		return nil, nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("asset not found at '%s': %w", filename, err)
		}
		return nil, nil, fmt.Errorf("failed to open asset '%s': %w", filename, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("failed to stat asset '%s': %w", filename, err)
	}

	return file, info, nil
}

// ReadFile returns the full contents of an asset
func (ls *LocalStorage) ReadFile(assetType AssetType, filename string) ([]byte, error) {
	fullPath, err := ls.FullPath(assetType, filename)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("asset not found at '%s': %w", filename, err)
		}
		return nil, fmt.Errorf("failed to read asset '%s': %w", filename, err)
	}
	return data, nil
}

// Delete removes an asset file. A file that is already gone is treated as
// success; only unexpected I/O errors propagate.
func (ls *LocalStorage) Delete(assetType AssetType, filename string) error {
	fullPath, err := ls.FullPath(assetType, filename)
	if err != nil {
		return err
	}

	err = os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete asset '%s': %w", filename, err)
	}
	if err == nil {
		log.Printf("media.store: Deleted asset %s", fullPath)
	}
	return nil
}

// List returns the filenames currently present for an asset type
func (ls *LocalStorage) List(assetType AssetType) ([]string, error) {
	dirPath, err := ls.EnsureDir(assetType)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read asset directory '%s': %w", dirPath, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}
