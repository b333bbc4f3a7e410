package database

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// LibraryStats summarizes the curation backlog for the dashboard
type LibraryStats struct {
	TotalImages      int64              `json:"total_images"`
	PendingImages    int64              `json:"pending_images"`
	ApprovedImages   int64              `json:"approved_images"`
	ThumbnailBacklog int64              `json:"thumbnail_backlog"` // thumbnails not yet generated
	SourceFolders    []SourceFolderStat `json:"source_folders"`
}

// SourceFolderStat is the per-provenance-folder image count
type SourceFolderStat struct {
	SourceFolder string `json:"source_folder"`
	ImageCount   int64  `json:"image_count"`
}

func countWhere(db *sql.DB, pred interface{}, args ...interface{}) (int64, error) {
	builder := psql.Select("COUNT(*)").From("images")
	if pred != nil {
		builder = builder.Where(pred, args...)
	}

	sqlStr, queryArgs, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build SQL query for image count: %w", err)
	}

	var count int64
	if err := db.QueryRow(sqlStr, queryArgs...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to query image count: %w", err)
	}
	return count, nil
}

// GetLibraryStats computes aggregate counts across all stored image records
func GetLibraryStats(db *sql.DB) (LibraryStats, error) {
	var stats LibraryStats
	var err error

	if stats.TotalImages, err = countWhere(db, nil); err != nil {
		return LibraryStats{}, err
	}
	if stats.PendingImages, err = countWhere(db, sq.Eq{"status": StatusPending}); err != nil {
		return LibraryStats{}, err
	}
	if stats.ApprovedImages, err = countWhere(db, sq.Eq{"status": StatusApproved}); err != nil {
		return LibraryStats{}, err
	}
	if stats.ThumbnailBacklog, err = countWhere(db, sq.NotEq{"thumbnail_status": TaskStatusDone}); err != nil {
		return LibraryStats{}, err
	}

	queryBuilder := psql.Select("source_folder", "COUNT(*) AS image_count").
		From("images").
		GroupBy("source_folder").
		OrderBy("image_count DESC", "source_folder ASC")

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return LibraryStats{}, fmt.Errorf("failed to build SQL query for source folder stats: %w", err)
	}

	rows, err := db.Query(sqlStr, args...)
	if err != nil {
		return LibraryStats{}, fmt.Errorf("failed to query source folder stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var stat SourceFolderStat
		if err := rows.Scan(&stat.SourceFolder, &stat.ImageCount); err != nil {
			return LibraryStats{}, fmt.Errorf("failed to scan source folder stat: %w", err)
		}
		stats.SourceFolders = append(stats.SourceFolders, stat)
	}
	if err := rows.Err(); err != nil {
		return LibraryStats{}, fmt.Errorf("error iterating source folder stats: %w", err)
	}

	return stats, nil
}
