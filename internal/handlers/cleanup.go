package handlers

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// FileCleanupService removes upload files, both on request and by sweeping
// the upload directory for files a crashed request left behind.
type FileCleanupService struct {
	uploadDir string
	maxAge    time.Duration
	interval  time.Duration
	logger    *zap.Logger
}

func NewFileCleanupService(uploadDir string, maxAge time.Duration, logger *zap.Logger) *FileCleanupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileCleanupService{
		uploadDir: uploadDir,
		maxAge:    maxAge,
		interval:  time.Hour,
		logger:    logger,
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (fcs *FileCleanupService) Run(ctx context.Context) error {
	ticker := time.NewTicker(fcs.interval)
	defer ticker.Stop()

	fcs.logger.Info("File cleanup service started",
		zap.String("dir", fcs.uploadDir),
		zap.Duration("max_age", fcs.maxAge),
	)
	fcs.CleanupOldFiles()

	for {
		select {
		case <-ctx.Done():
			fcs.logger.Info("File cleanup service stopped")
			return nil
		case <-ticker.C:
			fcs.CleanupOldFiles()
		}
	}
}

// CleanupOldFiles removes files older than maxAge and returns how many
// were deleted.
func (fcs *FileCleanupService) CleanupOldFiles() int {
	if _, err := os.Stat(fcs.uploadDir); os.IsNotExist(err) {
		return 0
	}

	removed := 0
	err := filepath.Walk(fcs.uploadDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() && time.Since(info.ModTime()) > fcs.maxAge {
			fcs.logger.Info("Cleaning up old file", zap.String("path", path))
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return err
			}
			removed++
		}

		return nil
	})

	if err != nil {
		fcs.logger.Error("Error during upload cleanup", zap.String("dir", fcs.uploadDir), zap.Error(err))
	}
	return removed
}

// DeleteFile removes a single upload. A missing file is not an error.
func (fcs *FileCleanupService) DeleteFile(filePath string) error {
	err := os.Remove(filePath)
	if err != nil && !os.IsNotExist(err) {
		fcs.logger.Warn("Failed to delete upload", zap.String("path", filePath), zap.Error(err))
		return err
	}
	fcs.logger.Debug("Deleted upload", zap.String("path", filePath))
	return nil
}
