// Package storage archives uploaded report pages in MinIO.
package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/empire-ui/report-ocr-service/internal/intake"
	"github.com/empire-ui/report-ocr-service/internal/models"
)

// PresignExpiry is how long page download links stay valid
const PresignExpiry = 24 * time.Hour

// Archive stores page images under {bucket}/reports/YYYY/MM/{reportID}/
type Archive struct {
	client *minio.Client
	bucket string
}

// New connects to MinIO and verifies the bucket. An empty endpoint disables
// archiving and returns a nil Archive.
func New(ctx context.Context, cfg models.ArchiveConfig) (*Archive, error) {
	if cfg.Endpoint == "" {
		return nil, nil
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	a := &Archive{client: client, bucket: cfg.Bucket}

	// Verify bucket exists
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := a.Ping(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Archive) Bucket() string { return a.bucket }

// Ping checks that the bucket is reachable
func (a *Archive) Ping(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", a.bucket)
	}
	return nil
}

// ArchivePage uploads one page and returns its "bucket/object" path
func (a *Archive) ArchivePage(ctx context.Context, reportID string, createdAt time.Time, img models.UploadedImage) (string, error) {
	f, err := os.Open(img.Path)
	if err != nil {
		return "", fmt.Errorf("open page: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat page: %w", err)
	}

	objectName := ObjectName(reportID, createdAt, img.Index, img.ContentType)
	_, err = a.client.PutObject(ctx, a.bucket, objectName, f, st.Size(), minio.PutObjectOptions{
		ContentType: img.ContentType,
		UserMetadata: map[string]string{
			"original-filename": img.Filename,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload page: %w", err)
	}

	// Return the full path for logging and storage
	return path.Join(a.bucket, objectName), nil
}

// PageURLs returns presigned download links for every archived page of a
// report, in page order.
func (a *Archive) PageURLs(ctx context.Context, reportID string, createdAt time.Time) ([]string, error) {
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var objects []string
	for obj := range a.client.ListObjects(listCtx, a.bucket, minio.ListObjectsOptions{
		Prefix:    Prefix(reportID, createdAt),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list pages: %w", obj.Err)
		}
		objects = append(objects, obj.Key)
	}
	SortPages(objects)

	urls := make([]string, 0, len(objects))
	for _, name := range objects {
		u, err := a.client.PresignedGetObject(ctx, a.bucket, name, PresignExpiry, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to generate presigned URL: %w", err)
		}
		urls = append(urls, u.String())
	}
	return urls, nil
}

// Prefix is the object prefix holding every page of a report
func Prefix(reportID string, createdAt time.Time) string {
	createdAt = createdAt.UTC()
	return fmt.Sprintf("reports/%d/%02d/%s/", createdAt.Year(), createdAt.Month(), reportID)
}

// ObjectName is the object key of one page; index is 0-based
func ObjectName(reportID string, createdAt time.Time, index int, contentType string) string {
	return fmt.Sprintf("%spage-%03d%s", Prefix(reportID, createdAt), index+1, intake.Extension(contentType))
}

// SortPages orders object keys by page number rather than lexically, so
// page-1000 sorts after page-999.
func SortPages(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		pi, pj := pageNumber(keys[i]), pageNumber(keys[j])
		if pi != pj {
			return pi < pj
		}
		return keys[i] < keys[j]
	})
}

// pageNumber parses N from ".../page-N.ext"; unparseable keys sort last
func pageNumber(key string) int {
	base := path.Base(key)
	base = strings.TrimPrefix(base, "page-")
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	n, err := strconv.Atoi(base)
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return n
}
