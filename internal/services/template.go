package services

import (
	"context"
	"fmt"

	"DF-APPT/internal/models"
	"DF-APPT/internal/processor"
	"DF-APPT/internal/rules"
	"DF-APPT/internal/storage"
)

// TemplateService describes the templates the active rule table can select.
type TemplateService struct {
	store     storage.TemplateStore
	processor *processor.DocxProcessor
	rules     rules.Provider
}

func NewTemplateService(store storage.TemplateStore, proc *processor.DocxProcessor, provider rules.Provider) *TemplateService {
	return &TemplateService{
		store:     store,
		processor: proc,
		rules:     provider,
	}
}

// GetPlaceholders lists the placeholder names used by a template.
func (s *TemplateService) GetPlaceholders(ctx context.Context, templateID string) ([]string, error) {
	content, err := s.store.Load(ctx, templateID)
	if err != nil {
		return nil, err
	}

	placeholders, err := s.processor.ExtractPlaceholders(content)
	if err != nil {
		return nil, fmt.Errorf("failed to extract placeholders: %w", err)
	}
	return placeholders, nil
}

// ListTemplates returns one entry per distinct template, in rule order with
// the fallback last. Templates that cannot be read carry an error instead
// of placeholders.
func (s *TemplateService) ListTemplates(ctx context.Context) []models.TemplateInfo {
	table := s.rules.Table()

	var infos []models.TemplateInfo
	index := make(map[string]int)

	add := func(rule models.TemplateRule, isDefault bool) {
		key := rule.TemplateID + "\x00" + rule.Folder
		i, ok := index[key]
		if !ok {
			index[key] = len(infos)
			infos = append(infos, models.TemplateInfo{
				TemplateID: rule.TemplateID,
				Folder:     rule.Folder,
				MatchKeys:  []string{},
			})
			i = len(infos) - 1
		}
		if rule.MatchKey != "" {
			infos[i].MatchKeys = append(infos[i].MatchKeys, rule.MatchKey)
		}
		if isDefault {
			infos[i].Default = true
		}
	}

	for _, rule := range table.Rules() {
		add(rule, false)
	}
	add(table.Fallback(), true)

	for i := range infos {
		placeholders, err := s.GetPlaceholders(ctx, infos[i].TemplateID)
		if err != nil {
			infos[i].Error = err.Error()
			infos[i].Placeholders = []string{}
			continue
		}
		if placeholders == nil {
			placeholders = []string{}
		}
		infos[i].Placeholders = placeholders
	}

	return infos
}
