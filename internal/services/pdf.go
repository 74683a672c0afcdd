package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"DF-APPT/internal/processor"

	"github.com/starwalkn/gotenberg-go-client/v8"
	"github.com/starwalkn/gotenberg-go-client/v8/document"
	"go.uber.org/zap"
)

// Converter turns a rendered DOCX into another format.
type Converter interface {
	Convert(ctx context.Context, docx []byte, filename string) ([]byte, error)
	Extension() string
}

// PDFService converts letters to PDF through a Gotenberg instance.
type PDFService struct {
	client     *gotenberg.Client
	timeout    time.Duration
	maxRetries int
	layout     *processor.DocxProcessor
	logger     *zap.Logger
}

func NewPDFService(gotenbergURL string, timeoutStr string, logger *zap.Logger) (*PDFService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		timeout = 30 * time.Second
		logger.Warn("Invalid Gotenberg timeout, using default",
			zap.String("timeout", timeoutStr),
			zap.Duration("default", timeout),
			zap.Error(err),
		)
	}

	httpClient := &http.Client{
		Timeout: timeout,
	}

	client, err := gotenberg.NewClient(gotenbergURL, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gotenberg client: %w", err)
	}

	return &PDFService{
		client:     client,
		timeout:    timeout,
		maxRetries: 3,
		layout:     processor.NewDocxProcessor(processor.DefaultOptions()),
		logger:     logger,
	}, nil
}

func (s *PDFService) Extension() string {
	return ".pdf"
}

// Convert renders docx as PDF, keeping landscape pages landscape.
func (s *PDFService) Convert(ctx context.Context, docx []byte, filename string) ([]byte, error) {
	landscape, err := s.layout.DetectOrientation(docx)
	if err != nil {
		s.logger.Debug("Could not read page layout, assuming portrait", zap.String("file", filename), zap.Error(err))
		landscape = false
	}
	return s.convertWithRetry(ctx, docx, filename, landscape)
}

func (s *PDFService) convertWithRetry(ctx context.Context, docx []byte, filename string, landscape bool) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		pdf, err := s.convertOnce(ctx, docx, filename, landscape)
		if err == nil {
			return pdf, nil
		}

		lastErr = err
		s.logger.Warn("PDF conversion attempt failed",
			zap.String("file", filename),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.maxRetries),
			zap.Error(err),
		)

		if attempt < s.maxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
	}

	return nil, fmt.Errorf("failed to convert document after %d attempts: %w", s.maxRetries, lastErr)
}

func (s *PDFService) convertOnce(ctx context.Context, docx []byte, filename string, landscape bool) ([]byte, error) {
	convertCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc, err := document.FromReader(filename, bytes.NewReader(docx))
	if err != nil {
		return nil, fmt.Errorf("failed to create document from reader: %w", err)
	}

	req := gotenberg.NewLibreOfficeRequest(doc)
	if landscape {
		req.Landscape()
	}

	resp, err := s.client.Send(convertCtx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("gotenberg returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	pdf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read converted document: %w", err)
	}
	return pdf, nil
}
