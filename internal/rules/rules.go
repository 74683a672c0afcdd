// Package rules maps a candidate's designation to the template and archive
// folder used for their letter.
package rules

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"DF-APPT/internal/models"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTemplate = "EmploymentAgreementandAppointment.docx"
	DefaultFolder   = "Other"

	JuniorEngineerTemplate = "Junior Software Engineer-Appointment_Letter.docx"
	JuniorEngineerFolder   = "Junior Software Engineer"
)

// Table is an ordered, read-only list of designation rules. The first rule
// whose key equals the normalized designation wins.
type Table struct {
	rules    []models.TemplateRule
	fallback models.TemplateRule
}

// New builds a table, normalizing every match key.
func New(rules []models.TemplateRule, fallback models.TemplateRule) *Table {
	normalized := make([]models.TemplateRule, len(rules))
	for i, r := range rules {
		r.MatchKey = NormalizeKey(r.MatchKey)
		normalized[i] = r
	}
	fallback.MatchKey = ""
	return &Table{rules: normalized, fallback: fallback}
}

// Default is the shipped rule table.
func Default() *Table {
	return New([]models.TemplateRule{
		{MatchKey: "jr. software engineer", TemplateID: JuniorEngineerTemplate, Folder: JuniorEngineerFolder},
		{MatchKey: "junior software engineer", TemplateID: JuniorEngineerTemplate, Folder: JuniorEngineerFolder},
	}, models.TemplateRule{TemplateID: DefaultTemplate, Folder: DefaultFolder})
}

// NormalizeKey trims and lower-cases a designation.
func NormalizeKey(designation string) string {
	return strings.ToLower(strings.TrimSpace(designation))
}

// Select returns the rule for rec's designation, or the fallback rule.
func (t *Table) Select(rec models.Record) models.TemplateRule {
	key := NormalizeKey(rec.String(models.FieldDesignation))
	for _, r := range t.rules {
		if r.MatchKey == key {
			return r
		}
	}
	return t.fallback
}

func (t *Table) Rules() []models.TemplateRule {
	out := make([]models.TemplateRule, len(t.rules))
	copy(out, t.rules)
	return out
}

func (t *Table) Fallback() models.TemplateRule {
	return t.fallback
}

// Table lets a fixed table stand in wherever a reloading Source is accepted.
func (t *Table) Table() *Table {
	return t
}

type target struct {
	Template string `yaml:"template" validate:"required"`
	Folder   string `yaml:"folder" validate:"required"`
}

type ruleFile struct {
	Default target                `yaml:"default"`
	Rules   []models.TemplateRule `yaml:"rules" validate:"dive"`
}

// Load reads a YAML rule table:
//
//	default: {template: EmploymentAgreementandAppointment.docx, folder: Other}
//	rules:
//	  - {match: jr. software engineer, template: ..., folder: Junior Software Engineer}
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML rule table.
func Parse(data []byte) (*Table, error) {
	var file ruleFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse rule file: %w", err)
	}

	if err := validator.New().Struct(&file); err != nil {
		return nil, fmt.Errorf("invalid rule file: %w", err)
	}
	for i, rule := range file.Rules {
		if NormalizeKey(rule.MatchKey) == "" {
			return nil, fmt.Errorf("invalid rule file: rule %d has a blank match", i+1)
		}
	}

	return New(file.Rules, models.TemplateRule{
		TemplateID: file.Default.Template,
		Folder:     file.Default.Folder,
	}), nil
}
