// Package pipeline turns a batch of uploaded annual report pages into the
// aggregated OCR text plus the ten generated report sections.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/empire-ui/report-ocr-service/internal/models"
)

// OCR failure policies
const (
	PolicyAbort    = "abort"
	PolicyFallback = "fallback"
)

// Pipeline stages reported by StageError
const (
	StageOCR      = "ocr"
	StageAnalysis = "analysis"
)

// ErrNoPages is returned when Run is called with an empty batch
var ErrNoPages = errors.New("no pages to process")

// StageError reports which stage of the pipeline failed. Index is the page
// position for OCR failures, or -1 when the whole stage was interrupted.
type StageError struct {
	Stage string
	Index int
	Err   error
}

func (e *StageError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s stage failed on page %d: %v", e.Stage, e.Index+1, e.Err)
	}
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Recognizer extracts the text of one page. ocr.Engine satisfies it.
type Recognizer interface {
	Recognize(ctx context.Context, path, apiKey string) (string, error)
}

// SectionWriter generates one report section from the aggregated text.
// *ai.Analyzer satisfies it.
type SectionWriter interface {
	Analyze(ctx context.Context, section, text string) (string, error)
}

// Pipeline runs OCR and section analysis with bounded fan-out
type Pipeline struct {
	ocr Recognizer
	cfg models.PipelineConfig
}

func New(ocr Recognizer, cfg models.PipelineConfig) *Pipeline {
	return &Pipeline{ocr: ocr, cfg: cfg}
}

// Run executes the full pipeline for one request. A nil writer yields the
// fallback text for every section.
func (p *Pipeline) Run(ctx context.Context, images []models.UploadedImage, apiKey string, writer SectionWriter) (*models.ReportResponse, error) {
	if len(images) == 0 {
		return nil, ErrNoPages
	}
	log := zerolog.Ctx(ctx)

	start := time.Now()
	pages, ocrPartial, err := p.ExtractText(ctx, images, apiKey)
	if err != nil {
		return nil, err
	}
	text := Aggregate(pages)
	log.Info().
		Int("pages", len(images)).
		Int("chars", len(text)).
		Dur("took", time.Since(start)).
		Msg("text extracted")

	start = time.Now()
	analyses, analysisPartial, err := p.AnalyzeSections(ctx, writer, text)
	if err != nil {
		return nil, err
	}
	log.Info().
		Int("sections", len(analyses)).
		Bool("partial", analysisPartial).
		Dur("took", time.Since(start)).
		Msg("sections analyzed")

	return Assemble(text, analyses, ocrPartial || analysisPartial), nil
}

// ExtractText runs OCR on every image concurrently and returns the page texts
// in upload order. Under the abort policy the first failure cancels the other
// calls and is returned as a *StageError. Under the fallback policy a failed
// page gets placeholder text and partial is true.
func (p *Pipeline) ExtractText(ctx context.Context, images []models.UploadedImage, apiKey string) ([]string, bool, error) {
	log := zerolog.Ctx(ctx)
	abort := p.cfg.OCRFailurePolicy != PolicyFallback

	pages := make([]string, len(images))
	failed := make([]bool, len(images))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit(p.cfg.OCRConcurrency))
	for i, img := range images {
		g.Go(func() error {
			callCtx, cancel := withTimeout(gctx, p.cfg.OCRTimeout)
			defer cancel()

			text, err := p.recognize(callCtx, img.Path, apiKey)
			if err == nil {
				pages[i] = text
				return nil
			}
			if abort {
				// The request itself ran out, not this page
				if ctxErr := ctx.Err(); ctxErr != nil {
					return &StageError{Stage: StageOCR, Index: -1, Err: ctxErr}
				}
				return &StageError{Stage: StageOCR, Index: i, Err: err}
			}
			log.Warn().Err(err).Int("page", i+1).Str("filename", img.Filename).Msg("ocr failed, using placeholder")
			pages[i] = fmt.Sprintf("[Page %d: text not available]", i+1)
			failed[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, err
	}
	if err := ctx.Err(); err != nil {
		return nil, false, &StageError{Stage: StageOCR, Index: -1, Err: err}
	}

	partial := false
	for _, f := range failed {
		partial = partial || f
	}
	return pages, partial, nil
}

// AnalyzeSections generates every section in models.SectionNames order.
// A failed or timed out section gets models.AnalysisFallback and partial is
// true. Only cancellation of ctx itself is returned as an error.
func (p *Pipeline) AnalyzeSections(ctx context.Context, writer SectionWriter, text string) ([]models.SectionAnalysis, bool, error) {
	log := zerolog.Ctx(ctx)

	analyses := make([]models.SectionAnalysis, len(models.SectionNames))
	failed := make([]bool, len(models.SectionNames))

	var g errgroup.Group
	g.SetLimit(limit(p.cfg.AnalysisConcurrency))
	for i, section := range models.SectionNames {
		g.Go(func() error {
			analyses[i] = models.SectionAnalysis{Title: section, Content: models.AnalysisFallback}
			if writer == nil {
				failed[i] = true
				return nil
			}

			callCtx, cancel := withTimeout(ctx, p.cfg.AnalysisTimeout)
			defer cancel()

			content, err := analyze(callCtx, writer, section, text)
			if err != nil {
				log.Warn().Err(err).Str("section", section).Msg("section analysis failed")
				failed[i] = true
				return nil
			}
			analyses[i].Content = content
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, false, &StageError{Stage: StageAnalysis, Index: -1, Err: err}
	}
	if writer == nil {
		log.Warn().Msg("no text provider available, every section uses the fallback")
	}

	partial := false
	for _, f := range failed {
		partial = partial || f
	}
	return analyses, partial, nil
}

// recognize calls the OCR engine, turning a panic in a decoder into an error
// so one bad upload cannot take the process down.
func (p *Pipeline) recognize(ctx context.Context, path, apiKey string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("ocr panicked: %v", r)
		}
	}()
	return p.ocr.Recognize(ctx, path, apiKey)
}

func analyze(ctx context.Context, writer SectionWriter, section, text string) (content string, err error) {
	defer func() {
		if r := recover(); r != nil {
			content, err = "", fmt.Errorf("analysis panicked: %v", r)
		}
	}()
	return writer.Analyze(ctx, section, text)
}

// Aggregate joins page texts in order with models.PageBreak
func Aggregate(pages []string) string {
	return strings.Join(pages, models.PageBreak)
}

// Assemble builds the response returned to the caller
func Assemble(text string, analyses []models.SectionAnalysis, partial bool) *models.ReportResponse {
	return &models.ReportResponse{
		Text:     text,
		Analyses: analyses,
		Partial:  partial,
	}
}

func limit(n int) int {
	if n <= 0 {
		return -1
	}
	return n
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
