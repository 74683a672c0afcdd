package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"DF-APPT/internal/config"
	"DF-APPT/internal/models"
	"DF-APPT/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var spreadsheetExtensions = map[string]bool{
	".xlsx": true,
	".xlsm": true,
	".xltx": true,
	".xltm": true,
}

type UploadOptions struct {
	UploadDir   string
	MaxBytes    int64
	ArchiveName string
	// ArchiveMode is config.ArchiveModeStream to send entries as they are
	// rendered or config.ArchiveModeBuffer to build the whole archive first.
	ArchiveMode string
}

// UploadHandler serves POST /upload-excel.
type UploadHandler struct {
	archiver *services.BatchArchiver
	files    *FileCleanupService
	opts     UploadOptions
	logger   *zap.Logger
}

func NewUploadHandler(archiver *services.BatchArchiver, files *FileCleanupService, opts UploadOptions, logger *zap.Logger) *UploadHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ArchiveName == "" {
		opts.ArchiveName = "appointment_letters.zip"
	}
	if opts.ArchiveMode == "" {
		opts.ArchiveMode = config.ArchiveModeStream
	}
	return &UploadHandler{
		archiver: archiver,
		files:    files,
		opts:     opts,
		logger:   logger,
	}
}

func (h *UploadHandler) UploadExcel(c *gin.Context) {
	logger := RequestLogger(c, h.logger)

	if h.opts.MaxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxBytes)
	}

	upload := &tempUpload{files: h.files}
	defer upload.remove()

	records, err := h.readRecords(c, upload)
	if err != nil {
		h.fail(c, logger, err)
		return
	}

	logger.Info("Generating appointment letters",
		zap.Int("records", len(records)),
		zap.String("archive_mode", h.opts.ArchiveMode),
	)

	if h.opts.ArchiveMode == config.ArchiveModeBuffer {
		h.sendBuffered(c, logger, records)
		return
	}
	h.sendStreamed(c, logger, records)
}

func (h *UploadHandler) sendStreamed(c *gin.Context, logger *zap.Logger, records []models.Record) {
	sink := newResponseSink(c, h.opts.ArchiveName)

	result, err := h.archiver.Run(c.Request.Context(), records, sink)
	if err == nil {
		return
	}
	if result.Committed {
		// Headers are gone; the client keeps a truncated archive.
		logger.Error("Archive stream terminated after output was sent",
			zap.Int("entries", len(result.Entries)),
			zap.Int64("bytes", result.Bytes),
			zap.Error(err),
		)
		c.Abort()
		return
	}
	h.fail(c, logger, err)
}

func (h *UploadHandler) sendBuffered(c *gin.Context, logger *zap.Logger, records []models.Record) {
	sink := &services.BufferSink{}

	if _, err := h.archiver.Run(c.Request.Context(), records, sink); err != nil {
		h.fail(c, logger, err)
		return
	}

	setArchiveHeaders(c, h.opts.ArchiveName)
	c.Data(http.StatusOK, "application/zip", sink.Bytes())
}

// readRecords accepts a JSON body {"data": [[header...], [row...]]}, or a
// multipart form carrying the same table in a "data" field or a workbook in
// a "file" field. The data field wins when both are present.
func (h *UploadHandler) readRecords(c *gin.Context, upload *tempUpload) ([]models.Record, error) {
	switch c.ContentType() {
	case gin.MIMEJSON:
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return nil, requestBodyError(err)
		}
		return services.DecodeUploadBody(body)

	case gin.MIMEMultipartPOSTForm:
		form, err := c.MultipartForm()
		if err != nil {
			return nil, requestBodyError(err)
		}
		defer form.RemoveAll()

		if data := firstValue(form.Value["data"]); data != "" {
			return services.RecordsFromJSON([]byte(data))
		}
		if files := form.File["file"]; len(files) > 0 {
			if err := upload.save(c, files[0], h.opts.UploadDir); err != nil {
				return nil, err
			}
			return services.ReadSpreadsheet(upload.path)
		}

	default:
		if data := c.PostForm("data"); data != "" {
			return services.RecordsFromJSON([]byte(data))
		}
	}

	return nil, &services.InputError{Message: services.MsgNoData}
}

func (h *UploadHandler) fail(c *gin.Context, logger *zap.Logger, err error) {
	status := services.HTTPStatus(err)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		status = http.StatusRequestEntityTooLarge
	}

	logger.Error("Letter generation failed", zap.Int("status", status), zap.Error(err))
	c.JSON(status, gin.H{
		"success": false,
		"error":   services.ClientMessage(err),
	})
}

// MethodNotAllowed answers requests with an unsupported method.
func MethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
}

func setArchiveHeaders(c *gin.Context, name string) {
	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", "attachment; filename="+name)
}

// responseSink writes archive bytes to the response, sending the archive
// headers with the first byte.
type responseSink struct {
	c         *gin.Context
	name      string
	committed bool
}

func newResponseSink(c *gin.Context, name string) *responseSink {
	return &responseSink{c: c, name: name}
}

func (s *responseSink) Write(p []byte) (int, error) {
	if !s.committed {
		setArchiveHeaders(s.c, s.name)
		s.c.Status(http.StatusOK)
		s.c.Writer.WriteHeaderNow()
		s.committed = true
	}
	return s.c.Writer.Write(p)
}

func (s *responseSink) Flush() error {
	if s.committed {
		s.c.Writer.Flush()
	}
	return s.c.Request.Context().Err()
}

func (s *responseSink) Committed() bool {
	return s.committed
}

// tempUpload is a workbook saved for parsing. It is removed exactly once.
type tempUpload struct {
	files *FileCleanupService
	path  string
	once  sync.Once
}

func (u *tempUpload) save(c *gin.Context, file *multipart.FileHeader, dir string) error {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !spreadsheetExtensions[ext] {
		return &services.InputError{Message: "Only .xlsx spreadsheets are supported"}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}

	// Recorded before saving so a partial file is still removed.
	u.path = filepath.Join(dir, uuid.New().String()+ext)
	if err := c.SaveUploadedFile(file, u.path); err != nil {
		return fmt.Errorf("failed to save upload: %w", err)
	}
	return nil
}

func (u *tempUpload) remove() {
	u.once.Do(func() {
		if u.path == "" {
			return
		}
		if u.files != nil {
			_ = u.files.DeleteFile(u.path)
			return
		}
		_ = os.Remove(u.path)
	})
}

func requestBodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &services.InputError{Message: fmt.Sprintf("Upload exceeds %d bytes", tooLarge.Limit), Cause: err}
	}
	return &services.InputError{Message: "Failed to read request body", Cause: err}
}

func firstValue(values []string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
