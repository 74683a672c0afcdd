package services

import (
	"context"
	"fmt"

	"DF-APPT/internal/models"
	"DF-APPT/internal/processor"
	"DF-APPT/internal/storage"
)

// Renderer produces one finished letter from a template and a normalized record.
type Renderer interface {
	Render(ctx context.Context, templateID string, data models.NormalizedRecord) ([]byte, error)
	Extension() string
}

// DocumentService loads template artifacts, fills them and optionally
// converts the result.
type DocumentService struct {
	store     storage.TemplateStore
	processor *processor.DocxProcessor
	converter Converter
}

// NewDocumentService builds the renderer. converter may be nil, in which
// case letters are delivered as DOCX.
func NewDocumentService(store storage.TemplateStore, proc *processor.DocxProcessor, converter Converter) *DocumentService {
	return &DocumentService{
		store:     store,
		processor: proc,
		converter: converter,
	}
}

func (s *DocumentService) Render(ctx context.Context, templateID string, data models.NormalizedRecord) ([]byte, error) {
	template, err := s.store.Load(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}

	document, err := s.processor.Render(template, data)
	if err != nil {
		return nil, err
	}

	if s.converter == nil {
		return document, nil
	}

	converted, err := s.converter.Convert(ctx, document, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to convert document: %w", err)
	}
	return converted, nil
}

// Extension is the file extension of rendered documents.
func (s *DocumentService) Extension() string {
	if s.converter == nil {
		return ".docx"
	}
	return s.converter.Extension()
}
