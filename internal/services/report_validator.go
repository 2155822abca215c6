package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/empire-ui/report-ocr-service/internal/models"
)

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// ValidationWarning represents a non-critical issue
type ValidationWarning struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ComputedValues holds figures measured on the report
type ComputedValues struct {
	Pages             int `json:"pages"`
	Characters        int `json:"characters"`
	Words             int `json:"words"`
	SectionsGenerated int `json:"sections_generated"`
	SectionsFallback  int `json:"sections_fallback"`
	FiguresChecked    int `json:"figures_checked"`
	FiguresUnmatched  int `json:"figures_unmatched"`
}

// ValidationResult is the response from validation
type ValidationResult struct {
	Valid       bool                `json:"valid"`
	NeedsReview bool                `json:"needs_review"`
	Errors      []ValidationError   `json:"errors"`
	Warnings    []ValidationWarning `json:"warnings"`
	Computed    ComputedValues      `json:"computed"`
}

var (
	// Figures with at least two digits; list markers and single digits are ignored
	figurePattern      = regexp.MustCompile(`\d[\d,]*\d(?:\.\d+)?`)
	placeholderPattern = regexp.MustCompile(`\[Page (\d+): text not available\]`)
)

// ReportValidator cross-checks generated sections against the OCR text
type ReportValidator struct {
	minTextChars int
	tolerance    float64 // share of a section's figures allowed to be missing from the text
}

// NewReportValidator creates a validator with a 200 character minimum and 25% tolerance
func NewReportValidator() *ReportValidator {
	return &ReportValidator{minTextChars: 200, tolerance: 0.25}
}

// Validate performs all checks on a report
func (v *ReportValidator) Validate(r *models.ReportResponse) *ValidationResult {
	result := &ValidationResult{
		Valid:       true,
		NeedsReview: false,
		Errors:      []ValidationError{},
		Warnings:    []ValidationWarning{},
	}

	result.Computed = ComputedValues{
		Pages:      strings.Count(r.Text, models.PageBreak) + 1,
		Characters: len(r.Text),
		Words:      len(strings.Fields(r.Text)),
	}
	if r.Text == "" {
		result.Computed.Pages = 0
	}

	// 1. Validate section list
	v.validateSections(r, result)

	// 2. Validate OCR text
	v.validateText(r, result)

	// 3. Validate figures quoted by each section
	v.validateFigures(r, result)

	// Set final status
	result.Valid = len(result.Errors) == 0
	result.NeedsReview = len(result.Warnings) > 0

	return result
}

// validateSections checks that every section is present, ordered and generated
func (v *ReportValidator) validateSections(r *models.ReportResponse, result *ValidationResult) {
	if len(r.Analyses) != len(models.SectionNames) {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "analyses",
			Code:    "sections_missing",
			Message: fmt.Sprintf("expected %d sections, got %d", len(models.SectionNames), len(r.Analyses)),
		})
	}

	for i, a := range r.Analyses {
		field := fmt.Sprintf("analyses[%d]", i)
		if i < len(models.SectionNames) && a.Title != models.SectionNames[i] {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field,
				Code:    "section_order",
				Message: fmt.Sprintf("expected %q, got %q", models.SectionNames[i], a.Title),
			})
		}
		if a.Content == models.AnalysisFallback {
			result.Computed.SectionsFallback++
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   field,
				Code:    "section_unavailable",
				Message: a.Title + " could not be generated",
			})
			continue
		}
		result.Computed.SectionsGenerated++
	}
}

// validateText checks the OCR text is usable
func (v *ReportValidator) validateText(r *models.ReportResponse, result *ValidationResult) {
	if strings.TrimSpace(r.Text) == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "text",
			Code:    "empty_text",
			Message: "no text was extracted",
		})
		return
	}

	if len(r.Text) < v.minTextChars {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "text",
			Code:    "short_text",
			Message: fmt.Sprintf("only %d characters extracted", len(r.Text)),
		})
	}

	for _, m := range placeholderPattern.FindAllStringSubmatch(r.Text, -1) {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "text",
			Code:    "page_unavailable",
			Message: "page " + m[1] + " could not be read",
		})
	}
}

// validateFigures flags sections quoting numbers that do not appear in the text
func (v *ReportValidator) validateFigures(r *models.ReportResponse, result *ValidationResult) {
	known := map[string]bool{}
	for _, f := range figurePattern.FindAllString(r.Text, -1) {
		known[normalizeFigure(f)] = true
	}

	for i, a := range r.Analyses {
		if a.Content == models.AnalysisFallback {
			continue
		}
		figures := figurePattern.FindAllString(a.Content, -1)
		if len(figures) == 0 {
			continue
		}

		unmatched := 0
		for _, f := range figures {
			if !known[normalizeFigure(f)] {
				unmatched++
			}
		}
		result.Computed.FiguresChecked += len(figures)
		result.Computed.FiguresUnmatched += unmatched

		if float64(unmatched) > float64(len(figures))*v.tolerance {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   fmt.Sprintf("analyses[%d]", i),
				Code:    "unverified_figures",
				Message: fmt.Sprintf("%d of %d figures in %s do not appear in the report text", unmatched, len(figures), a.Title),
			})
		}
	}
}

func normalizeFigure(s string) string {
	return strings.ReplaceAll(s, ",", "")
}
