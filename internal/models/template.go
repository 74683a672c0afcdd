package models

// TemplateRule maps a normalized designation to a template artifact and the
// archive folder its letters are written to.
type TemplateRule struct {
	MatchKey   string `yaml:"match" json:"match_key" validate:"required"`
	TemplateID string `yaml:"template" json:"template_id" validate:"required"`
	Folder     string `yaml:"folder" json:"folder" validate:"required"`
}

// TemplateInfo describes a template artifact and the placeholders it contains.
type TemplateInfo struct {
	TemplateID   string   `json:"template_id"`
	Folder       string   `json:"folder"`
	MatchKeys    []string `json:"match_keys"`
	Default      bool     `json:"default"`
	Placeholders []string `json:"placeholders"`
	Error        string   `json:"error,omitempty"`
}
