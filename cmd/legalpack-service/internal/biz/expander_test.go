package biz

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dealtracker/cmd/legalpack-service/internal/domain"
)

func testExpander() *Expander {
	return NewExpander(testExtractor(), wordCounter(), zap.NewNop())
}

func buildZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestExpand_LexicographicOrder(t *testing.T) {
	archive := buildZip(t, map[string]string{
		"c_search.txt":   "local authority search results",
		"a_register.txt": "title register entries",
		"b_lease.txt":    "lease terms and covenants",
	})

	report, err := testExpander().Expand(context.Background(), archive)
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 3)
	assert.Equal(t, "a_register.txt", report.Outcomes[0].Filename)
	assert.Equal(t, "b_lease.txt", report.Outcomes[1].Filename)
	assert.Equal(t, "c_search.txt", report.Outcomes[2].Filename)
	for _, outcome := range report.Outcomes {
		assert.True(t, outcome.Succeeded())
		assert.Greater(t, outcome.Document.TokenCount, 0)
	}
	assert.Greater(t, report.TotalTokens, 0)
}

func TestExpand_FiltersMetadataEntries(t *testing.T) {
	archive := buildZip(t, map[string]string{
		"pack/deed.txt":           "deed of covenant",
		"__MACOSX/pack/deed.txt":  "resource fork",
		"pack/__MACOSX/other.txt": "resource fork",
		"pack/._deed.txt":         "apple double",
		"pack/.DS_Store":          "finder metadata",
		"pack/~lock.txt":          "editor lock file",
	})

	report, err := testExpander().Expand(context.Background(), archive)
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, "deed.txt", report.Outcomes[0].Filename)
}

func TestExpand_RecordsFailuresAndContinues(t *testing.T) {
	archive := buildZip(t, map[string]string{
		"a_photo.png":  "not a document",
		"b_nested.zip": "nested archive bytes",
		"c_notes.txt":  "vendor confirms vacant possession",
	})

	report, err := testExpander().Expand(context.Background(), archive)
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 3)
	assert.False(t, report.Outcomes[0].Succeeded())
	assert.Contains(t, report.Outcomes[0].Reason, "unsupported file type")
	assert.False(t, report.Outcomes[1].Succeeded())
	assert.Equal(t, "nested archives are not supported", report.Outcomes[1].Reason)
	assert.True(t, report.Outcomes[2].Succeeded())

	assert.Equal(t, []string{"a_photo.png", "b_nested.zip"}, report.FailedFiles())
	require.Len(t, report.Documents(), 1)
	assert.Equal(t, "c_notes.txt", report.Documents()[0].Name)
}

func TestExpand_CorruptArchive(t *testing.T) {
	_, err := testExpander().Expand(context.Background(), []byte("definitely not a zip"))
	assert.ErrorIs(t, err, domain.ErrArchiveCorrupt)
}

func TestExpand_EmptyAfterFiltering(t *testing.T) {
	archive := buildZip(t, map[string]string{
		"__MACOSX/ignored.txt": "resource fork",
		".hidden":              "hidden file",
	})

	_, err := testExpander().Expand(context.Background(), archive)
	assert.ErrorIs(t, err, domain.ErrArchiveEmpty)
}

func TestExpand_Deterministic(t *testing.T) {
	archive := buildZip(t, map[string]string{
		"b.txt": "second document text",
		"a.txt": "first document text",
	})
	expander := testExpander()

	first, err := expander.Expand(context.Background(), archive)
	require.NoError(t, err)
	second, err := expander.Expand(context.Background(), archive)
	require.NoError(t, err)

	assert.Equal(t, first.Transcript(), second.Transcript())
	assert.Equal(t, first.TotalTokens, second.TotalTokens)
}
