package ai

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxPromptChars bounds the report text embedded in a prompt. Long reports are
// truncated so a single section request stays within provider context limits.
const maxPromptChars = 60000

var sectionFocus = map[string]string{
	"Executive Summary":                  "Summarize the year in a few paragraphs: overall performance, headline figures and the most important events.",
	"Chairperson's Letter":               "Write the chairperson's letter to shareholders in the first person, reflecting on the year and thanking stakeholders.",
	"Company Overview":                   "Describe the business: what it does, its segments, markets, size and ownership.",
	"Financial Highlights":               "List the key financial figures (revenue, profit, margins, cash flow, earnings per share) with year-over-year changes where the text provides them.",
	"Business Review":                    "Review performance by segment or division: volumes, market conditions and notable operational developments.",
	"Strategic Initiatives":              "Describe the strategy and the initiatives pursued during the year: investments, acquisitions, new products and transformation programmes.",
	"Corporate Governance":               "Summarize board composition, committees, remuneration and governance practices.",
	"Sustainability and CSR Initiatives": "Summarize environmental, social and community commitments, metrics and progress.",
	"Risk Factors and Management":        "Identify the principal risks and uncertainties and how management mitigates them.",
	"Future Outlook":                     "Summarize guidance, targets and management's expectations for the coming periods.",
}

// Analyzer writes one section of the annual report analysis
type Analyzer struct {
	provider Provider
}

func NewAnalyzer(provider Provider) *Analyzer {
	return &Analyzer{provider: provider}
}

func (a *Analyzer) Provider() Provider { return a.provider }

// Analyze asks the provider for the named section and returns its markdown.
func (a *Analyzer) Analyze(ctx context.Context, section, text string) (string, error) {
	out, err := a.provider.Generate(ctx, BuildPrompt(section, text))
	if err != nil {
		return "", err
	}
	out = cleanMarkdown(out)
	if out == "" {
		return "", fmt.Errorf("%s: %w", section, ErrEmptyCompletion)
	}
	return out, nil
}

// BuildPrompt returns the instruction prompt for one report section
func BuildPrompt(section, text string) string {
	focus, ok := sectionFocus[section]
	if !ok {
		focus = "Write this section based on the report."
	}
	if len(text) > maxPromptChars {
		n := maxPromptChars
		for n > 0 && !utf8.RuneStart(text[n]) {
			n--
		}
		text = text[:n]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Write the \"%s\" section of an analysis of the annual report below.\n\n", section)
	sb.WriteString("## Instructions\n")
	fmt.Fprintf(&sb, "- %s\n", focus)
	sb.WriteString("- Use only facts found in the report text. If the text does not cover this topic, say so briefly.\n")
	sb.WriteString("- Format the answer in Markdown with short paragraphs and bullet lists.\n")
	sb.WriteString("- Do not repeat the section title as a heading.\n\n")
	sb.WriteString("## Annual report text\n")
	sb.WriteString(text)
	return sb.String()
}

func cleanMarkdown(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.Index(s, "\n"); i >= 0 {
			s = s[i+1:]
		} else {
			s = ""
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
