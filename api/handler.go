package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/empire-ui/report-ocr-service/internal/ai"
	"github.com/empire-ui/report-ocr-service/internal/auth"
	"github.com/empire-ui/report-ocr-service/internal/db"
	"github.com/empire-ui/report-ocr-service/internal/intake"
	"github.com/empire-ui/report-ocr-service/internal/models"
	"github.com/empire-ui/report-ocr-service/internal/ocr"
	"github.com/empire-ui/report-ocr-service/internal/pipeline"
	"github.com/empire-ui/report-ocr-service/internal/services"
)

const Version = "1.0.0"

// Error messages returned to clients
const (
	msgNoImages      = "No images provided"
	msgInvalidForm   = "Invalid form data"
	msgUnsupported   = "Unsupported file type"
	msgBadProvider   = "Unsupported provider"
	msgOCRFailed     = "Failed to extract text from images"
	msgProcessFailed = "Failed to process images"
)

// Archiver copies uploaded pages to object storage. *storage.Archive implements it.
type Archiver interface {
	ArchivePage(ctx context.Context, reportID string, createdAt time.Time, img models.UploadedImage) (string, error)
	PageURLs(ctx context.Context, reportID string, createdAt time.Time) ([]string, error)
	Ping(ctx context.Context) error
}

// WriterFactory builds the section writer for one request from the optional
// provider and apiKey form fields.
type WriterFactory func(provider, apiKey string) (pipeline.SectionWriter, error)

// Handler handles HTTP requests for report generation
type Handler struct {
	config    *models.Config
	engine    ocr.Engine
	logger    zerolog.Logger
	store     db.Store
	archive   Archiver
	newWriter WriterFactory
	validator *services.ReportValidator
}

// Option configures optional Handler dependencies
type Option func(*Handler)

// WithStore enables report persistence
func WithStore(s db.Store) Option {
	return func(h *Handler) { h.store = s }
}

// WithArchive enables page archiving
func WithArchive(a Archiver) Option {
	return func(h *Handler) { h.archive = a }
}

// WithWriterFactory replaces the default provider-backed section writer
func WithWriterFactory(f WriterFactory) Option {
	return func(h *Handler) { h.newWriter = f }
}

// NewHandler creates a new API handler
func NewHandler(config *models.Config, engine ocr.Engine, logger zerolog.Logger, opts ...Option) *Handler {
	h := &Handler{
		config:    config,
		engine:    engine,
		logger:    logger,
		validator: services.NewReportValidator(),
	}
	h.newWriter = func(provider, apiKey string) (pipeline.SectionWriter, error) {
		p, err := ai.NewProvider(h.config.AI, provider, apiKey)
		if err != nil {
			return nil, err
		}
		return ai.NewAnalyzer(p), nil
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetupRoutes configures the HTTP routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		RequestLogger(h.logger),
		middleware.Recoverer,
	)

	// Health check
	router.HandleFunc("/health", h.Health).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.Use(auth.Middleware(h.config.Auth.JWTSecret))

	// Main endpoints
	api.HandleFunc("/ocr", h.GenerateReport).Methods("POST")
	api.HandleFunc("/ocr", h.OCRStatus).Methods("GET")

	// Stored reports
	api.HandleFunc("/reports", h.GenerateReport).Methods("POST")
	api.HandleFunc("/reports", h.ListReports).Methods("GET")
	api.HandleFunc("/reports/{id}", h.GetReport).Methods("GET")
	api.HandleFunc("/reports/{id}/download", h.DownloadReport).Methods("GET")
	api.HandleFunc("/reports/{id}/review", h.ReviewReport).Methods("GET")

	return router
}

// OCRStatus answers GET on the upload endpoint
func (h *Handler) OCRStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "OCR endpoint is working",
	})
}

// GenerateReport runs the OCR and analysis pipeline over the uploaded images
func (h *Handler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	log := zerolog.Ctx(ctx)
	startTime := time.Now()

	batch, err := intake.FromRequest(w, r, h.config.MaxUploadMB<<20)
	if err != nil {
		switch {
		case errors.Is(err, intake.ErrNoImages):
			h.sendError(w, http.StatusBadRequest, msgNoImages, "")
		case errors.Is(err, intake.ErrUnsupportedType):
			h.sendError(w, http.StatusBadRequest, msgUnsupported, err.Error())
		case errors.Is(err, intake.ErrInvalidForm):
			h.sendError(w, http.StatusBadRequest, msgInvalidForm, err.Error())
		default:
			log.Error().Err(err).Msg("failed to store uploads")
			h.sendError(w, http.StatusInternalServerError, msgProcessFailed, err.Error())
		}
		return
	}
	defer func() {
		if err := batch.Cleanup(); err != nil {
			log.Warn().Err(err).Str("dir", batch.Dir).Msg("failed to remove upload dir")
		}
	}()

	writer, err := h.newWriter(batch.Provider, batch.APIKey)
	switch {
	case errors.Is(err, ai.ErrProviderNotConfigured):
		log.Warn().Err(err).Msg("text provider not configured")
		writer = nil
	case err != nil:
		h.sendError(w, http.StatusBadRequest, msgBadProvider, err.Error())
		return
	}

	if d := h.config.Pipeline.RequestTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	log.Info().Int("images", len(batch.Images)).Str("engine", h.engine.Name()).Msg("processing report")

	resp, err := pipeline.New(h.engine, h.config.Pipeline).Run(ctx, batch.Images, batch.APIKey, writer)
	if err != nil {
		var stageErr *pipeline.StageError
		if errors.As(err, &stageErr) && stageErr.Stage == pipeline.StageOCR && stageErr.Index >= 0 {
			log.Error().Err(err).Msg("ocr failed")
			h.sendError(w, http.StatusInternalServerError, msgOCRFailed, err.Error())
			return
		}
		log.Error().Err(err).Msg("pipeline failed")
		h.sendError(w, http.StatusInternalServerError, msgProcessFailed, err.Error())
		return
	}

	if h.store != nil {
		reportID := uuid.NewString()
		createdAt := time.Now().UTC()
		stored := &models.StoredReport{
			ID:        reportID,
			Owner:     auth.SubjectFromContext(ctx),
			Text:      resp.Text,
			Analyses:  resp.Analyses,
			Partial:   resp.Partial,
			PageCount: len(batch.Images),
			CreatedAt: createdAt,
		}
		// Log but don't fail - the caller still gets the report
		if err := h.store.Save(ctx, stored); err != nil {
			log.Error().Err(err).Str("report_id", reportID).Msg("failed to save report")
		} else {
			resp.ID = reportID
			// Archived pages are only reachable through a stored report
			if h.archive != nil {
				h.archivePages(ctx, reportID, createdAt, batch.Images)
			}
		}
	}

	review := h.validator.Validate(resp)
	log.Info().
		Str("report_id", resp.ID).
		Bool("partial", resp.Partial).
		Bool("needs_review", review.NeedsReview).
		Int("warnings", len(review.Warnings)).
		Dur("took", time.Since(startTime)).
		Msg("report generated")

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// archivePages uploads every page; failures are logged and skipped
func (h *Handler) archivePages(ctx context.Context, reportID string, createdAt time.Time, images []models.UploadedImage) {
	log := zerolog.Ctx(ctx)
	for _, img := range images {
		objectPath, err := h.archive.ArchivePage(ctx, reportID, createdAt, img)
		if err != nil {
			log.Warn().Err(err).Int("page", img.Index+1).Msg("failed to archive page")
			continue
		}
		log.Debug().Str("object", objectPath).Msg("page archived")
	}
}

// sendError sends an error response
func (h *Handler) sendError(w http.ResponseWriter, statusCode int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Error:   message,
		Details: details,
	})
}
