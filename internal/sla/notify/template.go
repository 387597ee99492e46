package notify

import (
	"bytes"
	"errors"
	"text/template"
)

const DefaultTemplate = `[Incident {{.EventLabel}}]
Tenant: {{.Tenant}}
Title: {{.Title}}
Component: {{.Component}}
Severity: {{.Severity}}
Started: {{.StartedAt}}
Current Status: {{.Status}}
{{- if .ResolvedAt }}
Resolved: {{.ResolvedAt}} ({{.Duration}} min)
{{- end }}
{{- if .Notes }}
Notes: {{.Notes}}
{{- end }}
Action: {{.Suggestion}}`

// TemplateData provides fields for rendering notification content.
type TemplateData struct {
	Tenant     string
	TenantID   string
	IncidentID string
	Title      string
	Component  string
	Severity   string
	StartedAt  string
	ResolvedAt string
	Duration   string
	Status     string
	Notes      string
	Suggestion string
	Event      string
	EventLabel string
}

// Template renders notification content.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses a notification template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("incident-notification").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to data.
func (t *Template) Render(data TemplateData) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("incident template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
