// Package render exports a report as plain text, Markdown or HTML.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/empire-ui/report-ocr-service/internal/models"
)

// Format is an export format
type Format string

const (
	FormatJSON     Format = "json"
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

const title = "Annual Report Analysis"

// ParseFormat accepts the format names plus the "txt" and "md" aliases. An
// empty string selects text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatJSON:
		return "application/json"
	default:
		return "text/plain; charset=utf-8"
	}
}

// FileName is the attachment name used for downloads
func (f Format) FileName() string {
	switch f {
	case FormatMarkdown:
		return "annual-report-analysis.md"
	case FormatHTML:
		return "annual-report-analysis.html"
	case FormatJSON:
		return "annual-report-analysis.json"
	default:
		return "annual-report-analysis.txt"
	}
}

// Render writes the report in the given format
func Render(w io.Writer, f Format, r *models.ReportResponse) error {
	switch f {
	case FormatText:
		_, err := io.WriteString(w, Text(r))
		return err
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(r))
		return err
	case FormatHTML:
		return HTML(w, r)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	default:
		return fmt.Errorf("unsupported format: %s", f)
	}
}

// Text is the plain text download layout: the OCR text followed by every
// section title and content.
func Text(r *models.ReportResponse) string {
	var sb strings.Builder
	sb.WriteString("OCR Results:\n")
	sb.WriteString(r.Text)
	sb.WriteString("\n\nAnalysis Reports:\n")
	for i, a := range r.Analyses {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "\n%s\n%s\n", a.Title, a.Content)
	}
	return sb.String()
}

// Markdown renders every section under its own heading, with the OCR text last
func Markdown(r *models.ReportResponse) string {
	var sb strings.Builder
	sb.WriteString("# " + title + "\n")
	if r.Partial {
		sb.WriteString("\n> Some pages or sections could not be processed.\n")
	}
	for _, a := range r.Analyses {
		fmt.Fprintf(&sb, "\n## %s\n\n%s\n", a.Title, strings.TrimSpace(a.Content))
	}
	sb.WriteString("\n## OCR Results\n\n")
	sb.WriteString(strings.ReplaceAll(r.Text, strings.TrimSpace(models.PageBreak), "---"))
	sb.WriteString("\n")
	return sb.String()
}

var page = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>body{font-family:sans-serif;max-width:52rem;margin:2rem auto;line-height:1.5}table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:.25rem .5rem}</style>
</head>
<body>
{{.Body}}</body>
</html>
`))

// HTML converts the Markdown rendering to a standalone page. Raw HTML in
// generated content is not passed through.
func HTML(w io.Writer, r *models.ReportResponse) error {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))

	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(r)), &body); err != nil {
		return fmt.Errorf("convert markdown: %w", err)
	}
	return page.Execute(w, struct {
		Title string
		Body  template.HTML
	}{Title: title, Body: template.HTML(body.String())})
}
