package drive

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/retail-sales-etl/internal/observability"
)

type fakeFileAPI struct {
	files   []File
	content map[string][]byte
	failID  string

	mu        sync.Mutex
	downloads []string
}

func (f *fakeFileAPI) list(_ context.Context) ([]File, error) {
	return f.files, nil
}

func (f *fakeFileAPI) download(_ context.Context, fileID string) ([]byte, error) {
	f.mu.Lock()
	f.downloads = append(f.downloads, fileID)
	f.mu.Unlock()

	if fileID == f.failID {
		return nil, errors.New("drive: 403 rate limited")
	}
	return f.content[fileID], nil
}

type errorFileAPI struct{}

func (errorFileAPI) list(_ context.Context) ([]File, error) {
	return nil, errors.New("drive: invalid credentials")
}

func (errorFileAPI) download(_ context.Context, _ string) ([]byte, error) {
	return nil, errors.New("unreachable")
}

func testSource(api fileAPI, workers int) *Source {
	return &Source{
		api:     api,
		workers: workers,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: observability.NewMetricsForTesting(),
	}
}

func TestParseFilename(t *testing.T) {
	parts, err := parseFilename("Bangor, ME__2023-01-15__james.xlsx")
	require.NoError(t, err)

	assert.Equal(t, filenameParts{
		Stem:     "Bangor, ME__2023-01-15__james",
		Location: "Bangor, ME",
		Date:     "2023-01-15",
		Employee: "james",
	}, parts)
}

func TestParseFilename_Malformed(t *testing.T) {
	names := []string{
		"report.xlsx",
		"Bangor, ME__2023-01-15.xlsx",
		"Bangor, ME__2023-01-15__james__extra.xlsx",
		"Bangor, ME__2023-01-15__james",
		"Bangor, ME__2023-01-15__james.backup.xlsx",
	}

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			_, err := parseFilename(name)
			require.ErrorIs(t, err, ErrMalformedFilename)
		})
	}
}

func TestSplitFiles(t *testing.T) {
	files := make([]File, 5)
	for i := range files {
		files[i] = File{ID: string(rune('a' + i))}
	}

	chunks := splitFiles(files, 2)
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], 3)
	assert.Len(t, chunks[1], 2)

	chunks = splitFiles(files[:3], 25)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.Len(t, c, 1)
	}

	assert.Empty(t, splitFiles(nil, 4))

	chunks = splitFiles(files, 0)
	require.Len(t, chunks, 1)
	assert.Len(t, chunks[0], 5)
}

func TestSource_Fetch(t *testing.T) {
	good := marketWorkbook(t, marketHeader, [][]any{
		{1, "strawberries", 6.99, 3, "09:34"},
		{2, "blueberries", 8.99, 1, "12:05"},
	})
	other := marketWorkbook(t, marketHeader, [][]any{
		{1, "raspberries", 10.49, 2, "15:12"},
	})

	api := &fakeFileAPI{
		files: []File{
			{ID: "f1", Name: "Bangor, ME__2023-01-15__james.xlsx"},
			{ID: "f2", Name: "Portland, ME__2023-01-16__sarah.xlsx"},
		},
		content: map[string][]byte{"f1": good, "f2": other},
	}

	s := testSource(api, 4)
	records, malformed, err := s.Fetch(context.Background())
	require.NoError(t, err)

	assert.Empty(t, malformed)
	require.Len(t, records, 3)
	assert.ElementsMatch(t, []string{"f1", "f2"}, api.downloads)

	locations := make(map[string]int)
	for _, rec := range records {
		locations[rec.Location]++
	}
	assert.Equal(t, map[string]int{"Bangor, ME": 2, "Portland, ME": 1}, locations)
}

func TestSource_Fetch_CollectsMalformed(t *testing.T) {
	good := marketWorkbook(t, marketHeader, [][]any{
		{1, "strawberries", 6.99, 3, "09:34"},
	})

	api := &fakeFileAPI{
		files: []File{
			{ID: "f1", Name: "Bangor, ME__2023-01-15__james.xlsx"},
			{ID: "f2", Name: "notes.txt.xlsx"},
			{ID: "f3", Name: "Portland, ME__2023-01-16__sarah.xlsx"},
			{ID: "f4", Name: "Ellsworth, ME__2023-01-17__peter.xlsx"},
		},
		content: map[string][]byte{
			"f1": good,
			"f3": []byte("not a workbook"),
		},
		failID: "f4",
	}

	// Single worker keeps the malformed order deterministic.
	s := testSource(api, 1)
	records, malformed, err := s.Fetch(context.Background())
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, "Bangor, ME", records[0].Location)
	assert.Equal(t, []string{
		"notes.txt.xlsx",
		"Portland, ME__2023-01-16__sarah.xlsx",
		"Ellsworth, ME__2023-01-17__peter.xlsx",
	}, malformed)

	// The malformed name was never downloaded.
	assert.NotContains(t, api.downloads, "f2")
}

func TestSource_Fetch_ListError(t *testing.T) {
	s := testSource(errorFileAPI{}, 4)
	_, _, err := s.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list market files")
}
