package processor

import "fmt"

// TemplateError reports a template that could not be rendered: malformed
// markup, unbalanced tags or a placeholder with no value in strict mode.
type TemplateError struct {
	Part    string
	Message string
	Cause   error
}

func (e *TemplateError) Error() string {
	prefix := "template error"
	if e.Part != "" {
		prefix = fmt.Sprintf("template error in %s", e.Part)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *TemplateError) Unwrap() error {
	return e.Cause
}
