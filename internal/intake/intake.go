package intake

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/empire-ui/report-ocr-service/internal/models"
)

// Form field names accepted by FromRequest
const (
	FieldImages   = "images"
	FieldAPIKey   = "apiKey"
	FieldProvider = "provider"
)

var (
	// ErrNoImages is returned when the request carries no files under FieldImages.
	ErrNoImages = errors.New("no images provided")
	// ErrInvalidForm is returned when the body is not a parsable multipart form.
	ErrInvalidForm = errors.New("invalid multipart form")
	// ErrUnsupportedType is returned for uploads that are neither images nor PDFs.
	ErrUnsupportedType = errors.New("unsupported file type")
)

var acceptedTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"image/bmp",
	"image/tiff",
	"application/pdf",
}

// Batch is the set of uploaded pages of one request. Every image lives under
// Dir until Cleanup is called.
type Batch struct {
	Dir      string
	Images   []models.UploadedImage
	APIKey   string
	Provider string

	owned bool
}

// Cleanup removes the batch's temp directory. It is safe to call more than once.
func (b *Batch) Cleanup() error {
	if b == nil || !b.owned || b.Dir == "" {
		return nil
	}
	err := os.RemoveAll(b.Dir)
	b.owned = false
	return err
}

// FromRequest parses the multipart body of r and writes every file under the
// images field to a per-request temp directory. On error nothing is left on disk.
func FromRequest(w http.ResponseWriter, r *http.Request, maxBytes int64) (*Batch, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	// Files beyond 32MB of memory spill to disk inside ParseMultipartForm
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidForm, err)
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[FieldImages]
	if len(headers) == 0 {
		return nil, ErrNoImages
	}

	dir, err := os.MkdirTemp("", "report-upload-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	batch := &Batch{
		Dir:      dir,
		APIKey:   strings.TrimSpace(r.FormValue(FieldAPIKey)),
		Provider: strings.TrimSpace(r.FormValue(FieldProvider)),
		owned:    true,
	}

	for i, header := range headers {
		img, err := persist(dir, i, header)
		if err != nil {
			batch.Cleanup()
			return nil, err
		}
		batch.Images = append(batch.Images, img)
	}
	return batch, nil
}

// FromFiles builds a batch over files already on disk. The files are not
// copied and Cleanup leaves them in place.
func FromFiles(paths []string) (*Batch, error) {
	if len(paths) == 0 {
		return nil, ErrNoImages
	}
	batch := &Batch{}
	for i, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		contentType, err := sniff(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		batch.Images = append(batch.Images, models.UploadedImage{
			Index:       i,
			Filename:    filepath.Base(path),
			ContentType: contentType,
			Path:        path,
			Size:        info.Size(),
		})
	}
	return batch, nil
}

func persist(dir string, index int, header *multipart.FileHeader) (models.UploadedImage, error) {
	src, err := header.Open()
	if err != nil {
		return models.UploadedImage{}, fmt.Errorf("failed to open upload %s: %w", header.Filename, err)
	}
	defer src.Close()

	// The original name is never used on disk: the uuid keeps identically
	// named uploads apart and the extension comes from the sniffed type.
	path := filepath.Join(dir, fmt.Sprintf("%03d_%s", index, uuid.NewString()))

	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return models.UploadedImage{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	size, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return models.UploadedImage{}, fmt.Errorf("failed to write %s: %w", header.Filename, err)
	}

	contentType, err := sniff(path)
	if err != nil {
		return models.UploadedImage{}, fmt.Errorf("%s: %w", header.Filename, err)
	}
	typed := path + Extension(contentType)
	if err := os.Rename(path, typed); err != nil {
		return models.UploadedImage{}, fmt.Errorf("failed to rename temp file: %w", err)
	}
	path = typed

	return models.UploadedImage{
		Index:       index,
		Filename:    header.Filename,
		ContentType: contentType,
		Path:        path,
		Size:        size,
	}, nil
}

func sniff(path string) (string, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to detect content type: %w", err)
	}
	for _, accepted := range acceptedTypes {
		if mtype.Is(accepted) {
			return accepted, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mtype.String())
}

// Extension maps an accepted content type to a file extension
func Extension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	case "image/tiff":
		return ".tiff"
	case "application/pdf":
		return ".pdf"
	default:
		return ".bin"
	}
}
