package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/empire-ui/report-ocr-service/internal/models"
)

func TestObjectName(t *testing.T) {
	created := time.Date(2024, time.March, 9, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, "reports/2024/03/abc/", Prefix("abc", created))
	assert.Equal(t, "reports/2024/03/abc/page-001.png", ObjectName("abc", created, 0, "image/png"))
	assert.Equal(t, "reports/2024/03/abc/page-012.pdf", ObjectName("abc", created, 11, "application/pdf"))
	assert.Equal(t, "reports/2024/03/abc/page-003.bin", ObjectName("abc", created, 2, "text/plain"))
}

func TestSortPages_NumericOrder(t *testing.T) {
	created := time.Date(2024, time.March, 9, 0, 0, 0, 0, time.UTC)
	var keys []string
	for _, i := range []int{1000, 99, 10, 0, 998} {
		keys = append(keys, ObjectName("abc", created, i, "image/png"))
	}
	keys = append(keys, "reports/2024/03/abc/notes.txt")

	SortPages(keys)

	assert.Equal(t, []string{
		"reports/2024/03/abc/page-001.png",
		"reports/2024/03/abc/page-011.png",
		"reports/2024/03/abc/page-100.png",
		"reports/2024/03/abc/page-999.png",
		"reports/2024/03/abc/page-1001.png",
		"reports/2024/03/abc/notes.txt",
	}, keys)
}

func TestPrefix_UsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	created := time.Date(2024, time.April, 1, 1, 0, 0, 0, loc)
	assert.Equal(t, "reports/2024/03/r1/", Prefix("r1", created))
}

func TestNew_DisabledWithoutEndpoint(t *testing.T) {
	a, err := New(context.Background(), models.ArchiveConfig{})
	require.NoError(t, err)
	assert.Nil(t, a)
}
