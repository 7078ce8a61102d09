package checkpoint

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradharvest/gradcafe-crawler/internal/scrape"
)

func strPtr(s string) *string { return &s }

func sampleEntries() []scrape.Entry {
	return []scrape.Entry{
		{School: strPtr("MIT"), Major: strPtr("Computer Science"), Status: strPtr("Accepted")},
		{School: strPtr("Stanford"), Major: strPtr("Statistics"), Status: strPtr("Rejected")},
	}
}

func TestFileSinkSaveRoundTrips(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sink, err := NewFileSink(dir, "applicant_data", nil)
	require.NoError(t, err)

	require.NoError(t, sink.Save(context.Background(), 50, sampleEntries()))

	matches, err := filepath.Glob(filepath.Join(dir, "applicant_data_*_page0050.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)

	var got []scrape.Entry
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, sampleEntries(), got)
}

func TestFileSinkDistinctFilesPerPage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sink, err := NewFileSink(dir, "applicant_data", nil)
	require.NoError(t, err)

	require.NoError(t, sink.Save(context.Background(), 50, sampleEntries()))
	require.NoError(t, sink.Save(context.Background(), 100, sampleEntries()))

	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestFileSinkCreatesDirectory(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "checkpoints")
	sink, err := NewFileSink(dir, "", nil)
	require.NoError(t, err)

	require.NoError(t, sink.Save(context.Background(), 1, nil))

	matches, err := filepath.Glob(filepath.Join(dir, "applicant_data_*_page0001.json"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestFileSinkOmitsAbsentFields(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sink, err := NewFileSink(dir, "applicant_data", nil)
	require.NoError(t, err)

	entries := []scrape.Entry{{School: strPtr("MIT")}}
	require.NoError(t, sink.Save(context.Background(), 1, entries))

	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"school"`)
	assert.NotContains(t, string(data), `"gpa"`)
	assert.NotContains(t, string(data), `null`)
}

func TestDiscardSavesNothing(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Discard{}.Save(context.Background(), 1, sampleEntries()))
}
