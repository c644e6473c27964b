package notifications

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/watchless/watchless/pkg/types"
)

// defaultTemplate renders the run summary: one headline with the counts,
// then a line per container that needs operator attention.
const defaultTemplate = `{{- with .Report -}}
Checked {{len .Results}} containers: {{len .Updated}} updated, {{len .Fresh}} up to date, {{len .Stale}} update available, {{len .Skipped}} skipped, {{len .Failed}} failed ({{Duration .}})
{{- range .Updated}}
- updated {{.Name}} ({{.ImageName}})
{{- range .Warnings}}
  warning: {{.}}
{{- end}}
{{- end}}
{{- range .Stale}}
- update available for {{.Name}} ({{.ImageName}}), not applied
{{- end}}
{{- range .Skipped}}
- skipped {{.Name}} ({{.ImageName}}): {{.Error}}
{{- end}}
{{- range .Failed}}
- FAILED {{.Name}} ({{.ImageName}}): {{.Error}}
{{- end}}
{{- end -}}`

// templateFuncs are the helpers available to summary templates.
var templateFuncs = template.FuncMap{
	"Title": cases.Title(language.AmericanEnglish).String,
	"Outcome": func(result types.ContainerReport) string {
		return strings.ReplaceAll(result.Outcome(), "_", " ")
	},
	"Duration": func(report types.Report) string {
		return report.Finished().Sub(report.Started()).Round(time.Millisecond).String()
	},
}

// summaryTemplate renders run reports into notification bodies.
type summaryTemplate struct {
	template *template.Template
}

// newSummaryTemplate parses the given template string, falling back to the
// default when empty.
func newSummaryTemplate(templateString string) (*summaryTemplate, error) {
	if templateString == "" {
		templateString = defaultTemplate
	}

	parsed, err := template.New("summary").Funcs(templateFuncs).Parse(templateString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse notification template: %w", err)
	}

	return &summaryTemplate{template: parsed}, nil
}

// templateData is the root object summary templates execute against.
type templateData struct {
	Report types.Report
}

// Render executes the template over the report.
func (t *summaryTemplate) Render(report types.Report) (string, error) {
	var body bytes.Buffer

	if err := t.template.Execute(&body, templateData{Report: report}); err != nil {
		return "", fmt.Errorf("failed to render notification template: %w", err)
	}

	return strings.TrimSpace(body.String()), nil
}
