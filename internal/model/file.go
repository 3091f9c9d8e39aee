package model

import (
	"time"

	"github.com/google/uuid"
)

// StoredFile is a persisted upload plus its derived metadata.
type StoredFile struct {
	FileID           uuid.UUID `json:"file_id"`
	OriginalFilename string    `json:"original_filename"`
	StoredPath       string    `json:"stored_path"`
	FileHash         string    `json:"file_hash"`
	SizeBytes        int64     `json:"size_bytes"`
	Format           string    `json:"format"`
	Width            int       `json:"width"`
	Height           int       `json:"height"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// FileValidationResult is the outcome of a pure (no disk I/O) image check.
type FileValidationResult struct {
	IsValid      bool   `json:"is_valid"`
	Format       string `json:"format,omitempty"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	SizeBytes    int64  `json:"size_bytes"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// FileStats aggregates the storage directory contents.
type FileStats struct {
	TotalFiles     int    `json:"total_files"`
	TotalSizeBytes int64  `json:"total_size_bytes"`
	TempDir        string `json:"temp_dir"`
}
