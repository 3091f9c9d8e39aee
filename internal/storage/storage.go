// Package storage persists uploaded images to a temp directory with
// validation, content hashing and TTL-based reclamation.
package storage

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	// webp is sniffable but not registered by imaging.
	_ "golang.org/x/image/webp"

	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/apperr"
	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/config"
	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/model"
)

// Manager validates and persists uploaded byte buffers as uniquely named
// files under a single temp directory. No index is kept; cleanup and stats
// are full directory scans.
type Manager struct {
	tempDir     string
	maxFileSize int64
	fileTTL     time.Duration
	supported   map[string]struct{}
}

func NewManager(cfg config.StorageConfig) (*Manager, error) {
	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "create temp directory %s", cfg.TempDir)
	}

	supported := make(map[string]struct{}, len(cfg.SupportedFormats))
	for _, f := range cfg.SupportedFormats {
		supported[strings.ToLower(f)] = struct{}{}
	}

	log.Info().Str("temp_dir", cfg.TempDir).Msg("file storage initialized")

	return &Manager{
		tempDir:     cfg.TempDir,
		maxFileSize: cfg.MaxFileSize,
		fileTTL:     cfg.FileTTL,
		supported:   supported,
	}, nil
}

// MaxFileSize is the per-upload byte limit enforced by Store and Validate.
func (m *Manager) MaxFileSize() int64 { return m.maxFileSize }

// TempDir is the directory uploads are written to.
func (m *Manager) TempDir() string { return m.tempDir }

// Store validates data and writes it to disk under a collision-resistant
// name. Nothing is written when validation fails.
func (m *Manager) Store(data []byte, originalFilename string) (*model.StoredFile, error) {
	if int64(len(data)) > m.maxFileSize {
		return nil, apperr.New(apperr.Validation,
			"file size %d exceeds maximum allowed size %d", len(data), m.maxFileSize)
	}

	validation := m.Validate(data)
	if !validation.IsValid {
		return nil, apperr.New(apperr.Validation, "%s", validation.ErrorMessage)
	}

	sum := sha256.Sum256(data)
	fileHash := hex.EncodeToString(sum[:])

	fileID := uuid.New()
	ext := fileExtension(originalFilename, validation.Format)
	filename := fmt.Sprintf("%s_%d.%s", fileID, time.Now().Unix(), ext)
	path := filepath.Join(m.tempDir, filename)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "write file %s", path)
	}

	createdAt := time.Now().UTC()
	stored := &model.StoredFile{
		FileID:           fileID,
		OriginalFilename: originalFilename,
		StoredPath:       path,
		FileHash:         fileHash,
		SizeBytes:        int64(len(data)),
		Format:           validation.Format,
		Width:            validation.Width,
		Height:           validation.Height,
		CreatedAt:        createdAt,
		ExpiresAt:        createdAt.Add(m.fileTTL),
	}

	log.Info().
		Str("file_id", fileID.String()).
		Int64("size_bytes", stored.SizeBytes).
		Str("path", path).
		Msg("stored uploaded image")

	return stored, nil
}

// Validate checks size, decodability and the format allow-list without
// touching the disk.
func (m *Manager) Validate(data []byte) *model.FileValidationResult {
	size := int64(len(data))

	if size == 0 {
		return &model.FileValidationResult{
			SizeBytes:    0,
			ErrorMessage: "empty file",
		}
	}
	if size > m.maxFileSize {
		return &model.FileValidationResult{
			SizeBytes: size,
			ErrorMessage: fmt.Sprintf("file size %d exceeds maximum allowed size %d",
				size, m.maxFileSize),
		}
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return &model.FileValidationResult{
			SizeBytes:    size,
			ErrorMessage: fmt.Sprintf("failed to decode image: %v", err),
		}
	}

	format := DetectFormat(data)
	if format != "" {
		if _, ok := m.supported[format]; !ok {
			return &model.FileValidationResult{
				Format:       format,
				Width:        img.Bounds().Dx(),
				Height:       img.Bounds().Dy(),
				SizeBytes:    size,
				ErrorMessage: fmt.Sprintf("unsupported format: %s", format),
			}
		}
	}

	return &model.FileValidationResult{
		IsValid:   true,
		Format:    format,
		Width:     img.Bounds().Dx(),
		Height:    img.Bounds().Dy(),
		SizeBytes: size,
	}
}

// Read returns the raw bytes of a stored file.
func (m *Manager) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "read file %s", path)
	}
	return data, nil
}

// Delete removes a stored file. Deleting a missing file is not an error.
func (m *Manager) Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return apperr.Wrap(apperr.Internal, err, "delete file %s", path)
	}
	return nil
}

// CleanupExpired deletes every file in the temp directory older than the
// TTL, regardless of job state, and returns the count deleted. The file's
// mtime stands in for its creation time: stored files are written once
// and never touched again. Cost is O(files on disk).
func (m *Manager) CleanupExpired() (int, error) {
	entries, err := os.ReadDir(m.tempDir)
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, err, "scan temp directory")
	}

	deleted := 0
	now := time.Now()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.After(info.ModTime().Add(m.fileTTL)) {
			if err := os.Remove(filepath.Join(m.tempDir, entry.Name())); err != nil {
				log.Warn().Err(err).Str("file", entry.Name()).Msg("failed to delete expired file")
				continue
			}
			deleted++
		}
	}

	log.Info().Int("deleted", deleted).Msg("cleaned up expired files")
	return deleted, nil
}

// Stats scans the temp directory and aggregates file count and total size.
func (m *Manager) Stats() (*model.FileStats, error) {
	entries, err := os.ReadDir(m.tempDir)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "scan temp directory")
	}

	stats := &model.FileStats{TempDir: m.tempDir}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		stats.TotalFiles++
		stats.TotalSizeBytes += info.Size()
	}
	return stats, nil
}

// DetectFormat sniffs the image format from magic bytes, independent of
// the decoder. Returns "" when no known signature matches.
func DetectFormat(data []byte) string {
	if len(data) < 8 {
		return ""
	}
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return "jpeg"
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return "png"
	case bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a")):
		return "gif"
	case bytes.HasPrefix(data, []byte("RIFF")) && len(data) > 12 && bytes.Equal(data[8:12], []byte("WEBP")):
		return "webp"
	case bytes.HasPrefix(data, []byte("BM")):
		return "bmp"
	default:
		return ""
	}
}

// fileExtension picks the stored file's extension: the original filename's
// extension when present, else the sniffed format, else a generic one.
func fileExtension(filename, detectedFormat string) string {
	if ext := strings.TrimPrefix(filepath.Ext(filename), "."); ext != "" {
		return strings.ToLower(ext)
	}
	if detectedFormat != "" {
		return detectedFormat
	}
	return "bin"
}
