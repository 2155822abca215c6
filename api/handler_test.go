package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/empire-ui/report-ocr-service/internal/auth"
	"github.com/empire-ui/report-ocr-service/internal/db"
	"github.com/empire-ui/report-ocr-service/internal/models"
	"github.com/empire-ui/report-ocr-service/internal/ocr"
	"github.com/empire-ui/report-ocr-service/internal/pipeline"
)

type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) Name() string {
	return m.Called().String(0)
}

func (m *mockEngine) Recognize(ctx context.Context, path, apiKey string) (string, error) {
	args := m.Called(ctx, path, apiKey)
	return args.String(0), args.Error(1)
}

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) Analyze(ctx context.Context, section, text string) (string, error) {
	args := m.Called(ctx, section, text)
	return args.String(0), args.Error(1)
}

type mockArchive struct {
	mock.Mock
}

func (m *mockArchive) ArchivePage(ctx context.Context, reportID string, createdAt time.Time, img models.UploadedImage) (string, error) {
	args := m.Called(ctx, reportID, createdAt, img)
	return args.String(0), args.Error(1)
}

func (m *mockArchive) PageURLs(ctx context.Context, reportID string, createdAt time.Time) ([]string, error) {
	args := m.Called(ctx, reportID, createdAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockArchive) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// page matches the temp path of the i-th upload
func page(i int) interface{} {
	prefix := fmt.Sprintf("%03d_", i)
	return mock.MatchedBy(func(p string) bool {
		return strings.HasPrefix(filepath.Base(p), prefix)
	})
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

type upload struct {
	name string
	data []byte
}

func uploadRequest(t *testing.T, target string, files []upload, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreateFormFile("images", f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func testConfig() *models.Config {
	return &models.Config{
		MaxUploadMB: 10,
		AI:          models.AIConfig{DefaultProvider: "together"},
		Pipeline: models.PipelineConfig{
			OCRConcurrency:      2,
			AnalysisConcurrency: 3,
			OCRTimeout:          2 * time.Second,
			AnalysisTimeout:     2 * time.Second,
			RequestTimeout:      10 * time.Second,
			OCRFailurePolicy:    pipeline.PolicyAbort,
		},
	}
}

type fixture struct {
	handler http.Handler
	engine  *mockEngine
	writer  *mockWriter
}

func newFixture(t *testing.T, cfg *models.Config, opts ...Option) *fixture {
	t.Helper()
	engine := new(mockEngine)
	engine.On("Name").Return("fake").Maybe()
	writer := new(mockWriter)

	opts = append([]Option{WithWriterFactory(func(string, string) (pipeline.SectionWriter, error) {
		return writer, nil
	})}, opts...)
	h := NewHandler(cfg, engine, zerolog.New(zerolog.NewTestWriter(t)), opts...)
	return &fixture{handler: h.SetupRoutes(), engine: engine, writer: writer}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeReport(t *testing.T, rec *httptest.ResponseRecorder) models.ReportResponse {
	t.Helper()
	var resp models.ReportResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestGenerateReport_NoImages(t *testing.T) {
	f := newFixture(t, testConfig())

	rec := f.do(uploadRequest(t, "/api/ocr", nil, map[string]string{"apiKey": "k"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No images provided", decodeError(t, rec).Error)
	f.engine.AssertNotCalled(t, "Recognize", mock.Anything, mock.Anything, mock.Anything)
	f.writer.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateReport_Success(t *testing.T) {
	f := newFixture(t, testConfig())
	f.engine.On("Recognize", mock.Anything, page(0), "user-key").Return("A", nil)
	f.engine.On("Recognize", mock.Anything, page(1), "user-key").Return("B", nil)
	f.writer.On("Analyze", mock.Anything, mock.AnythingOfType("string"), "A"+models.PageBreak+"B").
		Return("analysis", nil)

	img := pngBytes(t)
	rec := f.do(uploadRequest(t, "/api/ocr",
		[]upload{{"page1.png", img}, {"page2.png", img}},
		map[string]string{"apiKey": "user-key"}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decodeReport(t, rec)
	assert.Equal(t, "A\n\n--- Page Break ---\n\nB", resp.Text)
	require.Len(t, resp.Analyses, 10)
	for i, name := range models.SectionNames {
		assert.Equal(t, name, resp.Analyses[i].Title)
		assert.Equal(t, "analysis", resp.Analyses[i].Content)
	}
	assert.False(t, resp.Partial)
	assert.Empty(t, resp.ID)
	f.writer.AssertNumberOfCalls(t, "Analyze", 10)
}

func TestGenerateReport_OCRFailureAborts(t *testing.T) {
	f := newFixture(t, testConfig())
	f.engine.On("Recognize", mock.Anything, page(0), "").Return("A", nil).Maybe()
	f.engine.On("Recognize", mock.Anything, page(1), "").Return("", errors.New("provider rejected image"))

	img := pngBytes(t)
	rec := f.do(uploadRequest(t, "/api/ocr", []upload{{"a.png", img}, {"b.png", img}}, nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "Failed to extract text from images", body.Error)
	assert.Contains(t, body.Details, "provider rejected image")
	f.writer.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateReport_SectionFailureFallsBack(t *testing.T) {
	f := newFixture(t, testConfig())
	f.engine.On("Recognize", mock.Anything, page(0), "").Return("A", nil)
	f.writer.On("Analyze", mock.Anything, "Corporate Governance", "A").Return("", errors.New("rate limited"))
	f.writer.On("Analyze", mock.Anything, mock.Anything, "A").Return("analysis", nil)

	rec := f.do(uploadRequest(t, "/api/ocr", []upload{{"a.png", pngBytes(t)}}, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeReport(t, rec)
	assert.True(t, resp.Partial)
	for _, a := range resp.Analyses {
		if a.Title == "Corporate Governance" {
			assert.Equal(t, "Analysis not available", a.Content)
		} else {
			assert.Equal(t, "analysis", a.Content)
		}
	}
}

func TestGenerateReport_RemovesTempFiles(t *testing.T) {
	f := newFixture(t, testConfig())
	var (
		mu    sync.Mutex
		paths []string
	)
	f.engine.On("Recognize", mock.Anything, mock.Anything, "").
		Run(func(args mock.Arguments) {
			mu.Lock()
			paths = append(paths, args.String(1))
			mu.Unlock()
		}).
		Return("text", nil)
	f.writer.On("Analyze", mock.Anything, mock.Anything, mock.Anything).Return("analysis", nil)

	img := pngBytes(t)
	rec := f.do(uploadRequest(t, "/api/reports", []upload{{"same.png", img}, {"same.png", img}}, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, paths, 2)
	assert.NotEqual(t, paths[0], paths[1])
	for _, p := range paths {
		_, err := os.Stat(p)
		assert.True(t, os.IsNotExist(err), p)
		_, err = os.Stat(filepath.Dir(p))
		assert.True(t, os.IsNotExist(err), filepath.Dir(p))
	}
}

func TestGenerateReport_MalformedPDFIsOCRFailure(t *testing.T) {
	// Sniffs as application/pdf but the xref entry points back at the xref keyword
	broken := []byte("%PDF-1.4\nxref\n0 2\n0000000000 65535 f \n0000000009 00000 n \n" +
		"trailer\n<< /Root 1 0 R /Size 2 >>\nstartxref\n9\n%%EOF\n")

	images := new(mockEngine)
	images.On("Name").Return("fake").Maybe()
	writer := new(mockWriter)
	engine := &ocr.Router{Images: images, PDFs: ocr.NewPDFTextEngine()}
	h := NewHandler(testConfig(), engine, zerolog.New(zerolog.NewTestWriter(t)),
		WithWriterFactory(func(string, string) (pipeline.SectionWriter, error) { return writer, nil }))

	rec := httptest.NewRecorder()
	h.SetupRoutes().ServeHTTP(rec, uploadRequest(t, "/api/ocr", []upload{{"annual.pdf", broken}}, nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to extract text from images", decodeError(t, rec).Error)
	images.AssertNotCalled(t, "Recognize", mock.Anything, mock.Anything, mock.Anything)
	writer.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateReport_UnsupportedType(t *testing.T) {
	f := newFixture(t, testConfig())

	rec := f.do(uploadRequest(t, "/api/ocr", []upload{{"notes.txt", []byte("just some text")}}, nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Unsupported file type", decodeError(t, rec).Error)
}

func TestGenerateReport_NotMultipart(t *testing.T) {
	f := newFixture(t, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/ocr", strings.NewReader(`{"images":[]}`))
	req.Header.Set("Content-Type", "application/json")
	rec := f.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid form data", decodeError(t, rec).Error)
}

func TestGenerateReport_UnconfiguredProviderFallsBack(t *testing.T) {
	engine := new(mockEngine)
	engine.On("Name").Return("fake").Maybe()
	engine.On("Recognize", mock.Anything, mock.Anything, "").Return("A", nil)
	h := NewHandler(testConfig(), engine, zerolog.Nop()).SetupRoutes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/api/ocr", []upload{{"a.png", pngBytes(t)}}, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeReport(t, rec)
	assert.True(t, resp.Partial)
	for _, a := range resp.Analyses {
		assert.Equal(t, models.AnalysisFallback, a.Content)
	}
}

func TestGenerateReport_UnknownProvider(t *testing.T) {
	engine := new(mockEngine)
	h := NewHandler(testConfig(), engine, zerolog.Nop()).SetupRoutes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/api/ocr", []upload{{"a.png", pngBytes(t)}},
		map[string]string{"provider": "nope"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Unsupported provider", decodeError(t, rec).Error)
	engine.AssertNotCalled(t, "Recognize", mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateReport_ArchivesPages(t *testing.T) {
	archive := new(mockArchive)
	f := newFixture(t, testConfig(), WithStore(newStore(t)), WithArchive(archive))
	f.engine.On("Recognize", mock.Anything, mock.Anything, "").Return("A", nil)
	f.writer.On("Analyze", mock.Anything, mock.Anything, mock.Anything).Return("analysis", nil)
	archive.On("ArchivePage", mock.Anything, mock.AnythingOfType("string"), mock.Anything,
		mock.MatchedBy(func(img models.UploadedImage) bool { return img.ContentType == "image/png" })).
		Return("annual-reports/reports/x/page-001.png", nil)

	img := pngBytes(t)
	rec := f.do(uploadRequest(t, "/api/ocr", []upload{{"a.png", img}, {"b.png", img}}, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeReport(t, rec)
	require.NotEmpty(t, resp.ID)
	archive.AssertNumberOfCalls(t, "ArchivePage", 2)
	archive.AssertCalled(t, "ArchivePage", mock.Anything, resp.ID, mock.Anything, mock.Anything)
}

func TestGenerateReport_NoArchiveWithoutStore(t *testing.T) {
	archive := new(mockArchive)
	f := newFixture(t, testConfig(), WithArchive(archive))
	f.engine.On("Recognize", mock.Anything, mock.Anything, "").Return("A", nil)
	f.writer.On("Analyze", mock.Anything, mock.Anything, mock.Anything).Return("analysis", nil)

	rec := f.do(uploadRequest(t, "/api/ocr", []upload{{"a.png", pngBytes(t)}}, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeReport(t, rec).ID)
	archive.AssertNotCalled(t, "ArchivePage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

type failingStore struct{ db.Store }

func (failingStore) Save(context.Context, *models.StoredReport) error { return errors.New("disk full") }

func TestGenerateReport_NoArchiveWhenSaveFails(t *testing.T) {
	archive := new(mockArchive)
	f := newFixture(t, testConfig(), WithStore(failingStore{}), WithArchive(archive))
	f.engine.On("Recognize", mock.Anything, mock.Anything, "").Return("A", nil)
	f.writer.On("Analyze", mock.Anything, mock.Anything, mock.Anything).Return("analysis", nil)

	rec := f.do(uploadRequest(t, "/api/ocr", []upload{{"a.png", pngBytes(t)}}, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeReport(t, rec).ID)
	archive.AssertNotCalled(t, "ArchivePage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOCRStatus(t *testing.T) {
	f := newFixture(t, testConfig())

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/ocr", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"OCR endpoint is working"}`, rec.Body.String())
}

func TestGetReport_NoStore(t *testing.T) {
	f := newFixture(t, testConfig())

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/reports/abc", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func newStore(t *testing.T) db.Store {
	t.Helper()
	s, err := db.NewSQLiteStore(filepath.Join(t.TempDir(), "reports.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func bearer(t *testing.T, secret, subject string) string {
	t.Helper()
	token, err := auth.GenerateToken(secret, subject, "", time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestStoredReportLifecycle(t *testing.T) {
	const secret = "s3cret"
	cfg := testConfig()
	cfg.Auth.JWTSecret = secret
	f := newFixture(t, cfg, WithStore(newStore(t)))
	f.engine.On("Recognize", mock.Anything, mock.Anything, "").Return("Revenue 10M", nil)
	f.writer.On("Analyze", mock.Anything, mock.Anything, mock.Anything).Return("analysis", nil)

	// Unauthenticated upload is rejected before any processing
	rec := f.do(uploadRequest(t, "/api/ocr", []upload{{"a.png", pngBytes(t)}}, nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	f.engine.AssertNotCalled(t, "Recognize", mock.Anything, mock.Anything, mock.Anything)

	req := uploadRequest(t, "/api/ocr", []upload{{"a.png", pngBytes(t)}}, nil)
	req.Header.Set("Authorization", bearer(t, secret, "alice"))
	rec = f.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decodeReport(t, rec)
	require.NotEmpty(t, created.ID)

	// Owner can read it
	req = httptest.NewRequest(http.MethodGet, "/api/reports/"+created.ID, nil)
	req.Header.Set("Authorization", bearer(t, secret, "alice"))
	rec = f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	var stored models.StoredReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stored))
	assert.Equal(t, "alice", stored.Owner)
	assert.Equal(t, "Revenue 10M", stored.Text)
	assert.Equal(t, 1, stored.PageCount)
	assert.Len(t, stored.Analyses, 10)

	// Other subjects cannot
	req = httptest.NewRequest(http.MethodGet, "/api/reports/"+created.ID, nil)
	req.Header.Set("Authorization", bearer(t, secret, "mallory"))
	assert.Equal(t, http.StatusNotFound, f.do(req).Code)

	// Listing is scoped to the subject
	req = httptest.NewRequest(http.MethodGet, "/api/reports", nil)
	req.Header.Set("Authorization", bearer(t, secret, "alice"))
	rec = f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Reports []ReportSummary `json:"reports"`
		Count   int             `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, created.ID, list.Reports[0].ID)

	req = httptest.NewRequest(http.MethodGet, "/api/reports", nil)
	req.Header.Set("Authorization", bearer(t, secret, "mallory"))
	rec = f.do(req)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Zero(t, list.Count)

	// Text download matches the plain text export layout
	req = httptest.NewRequest(http.MethodGet, "/api/reports/"+created.ID+"/download", nil)
	req.Header.Set("Authorization", bearer(t, secret, "alice"))
	rec = f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "annual-report-analysis.txt")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "OCR Results:\nRevenue 10M\n\nAnalysis Reports:\n"))

	req = httptest.NewRequest(http.MethodGet, "/api/reports/"+created.ID+"/download?format=html", nil)
	req.Header.Set("Authorization", bearer(t, secret, "alice"))
	rec = f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "<h2>Executive Summary</h2>")
}

func TestGetReport_NotFound(t *testing.T) {
	f := newFixture(t, testConfig(), WithStore(newStore(t)))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/reports/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Report not found", decodeError(t, rec).Error)
}

func TestGetReport_IncludesArchivedPages(t *testing.T) {
	store := newStore(t)
	archive := new(mockArchive)
	f := newFixture(t, testConfig(), WithStore(store), WithArchive(archive))

	report := &models.StoredReport{ID: "r1", Text: "t", Analyses: []models.SectionAnalysis{}}
	require.NoError(t, store.Save(context.Background(), report))
	archive.On("PageURLs", mock.Anything, "r1", mock.Anything).Return([]string{"https://minio/p1"}, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/reports/r1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		ID    string   `json:"id"`
		Pages []string `json:"pages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "r1", body.ID)
	assert.Equal(t, []string{"https://minio/p1"}, body.Pages)
}

func TestReviewReport(t *testing.T) {
	store := newStore(t)
	f := newFixture(t, testConfig(), WithStore(store))

	analyses := make([]models.SectionAnalysis, len(models.SectionNames))
	for i, name := range models.SectionNames {
		analyses[i] = models.SectionAnalysis{Title: name, Content: "Nothing to add."}
	}
	analyses[2].Content = models.AnalysisFallback
	report := &models.StoredReport{ID: "r1", Text: "Revenue 10M", Analyses: analyses, Partial: true}
	require.NoError(t, store.Save(context.Background(), report))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/reports/r1/review", nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Valid       bool `json:"valid"`
		NeedsReview bool `json:"needs_review"`
		Warnings    []struct {
			Field string `json:"field"`
			Code  string `json:"code"`
		} `json:"warnings"`
		Computed struct {
			SectionsFallback int `json:"sections_fallback"`
		} `json:"computed"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.Valid)
	assert.True(t, body.NeedsReview)
	assert.Equal(t, 1, body.Computed.SectionsFallback)
	require.NotEmpty(t, body.Warnings)
	assert.Equal(t, "analyses[2]", body.Warnings[0].Field)
	assert.Equal(t, "section_unavailable", body.Warnings[0].Code)
}

func TestReviewReport_NotFound(t *testing.T) {
	f := newFixture(t, testConfig(), WithStore(newStore(t)))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/reports/missing/review", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadReport_BadFormat(t *testing.T) {
	f := newFixture(t, testConfig(), WithStore(newStore(t)))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/reports/r1/download?format=docx", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListReports_BadLimit(t *testing.T) {
	f := newFixture(t, testConfig(), WithStore(newStore(t)))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/reports?limit=-1", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, testConfig(), WithStore(newStore(t)))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, Version, body.Version)
	assert.Equal(t, "fake", body.OCR.Version)
	assert.True(t, body.Database.Available)
	assert.Equal(t, "sqlite", body.Database.Version)
	assert.False(t, body.Storage.Enabled)
	assert.Equal(t, "together", body.AI.DefaultProvider)
	assert.False(t, body.AI.Configured["together"])
}

func TestHealth_DegradedArchive(t *testing.T) {
	archive := new(mockArchive)
	archive.On("Ping", mock.Anything).Return(errors.New("bucket missing"))
	f := newFixture(t, testConfig(), WithArchive(archive))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "bucket missing", body.Storage.Error)
}

func TestHealth_SkipsAuth(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.JWTSecret = "s3cret"
	f := newFixture(t, cfg)

	assert.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
}
