// Package drive fetches market sales spreadsheets from a Google Drive
// folder and decodes them into raw market records.
package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	drv "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/couchcryptid/retail-sales-etl/internal/domain"
	"github.com/couchcryptid/retail-sales-etl/internal/observability"
)

// ErrMalformedFilename marks a spreadsheet whose name does not follow the
// <location>__<date>__<employee>.<ext> convention.
var ErrMalformedFilename = errors.New("malformed market file name")

// File is one spreadsheet in the market reports folder.
type File struct {
	ID       string
	Name     string
	MimeType string
}

// fileAPI is the slice of the Drive API the source needs. Tests substitute
// an in-memory implementation.
type fileAPI interface {
	list(ctx context.Context) ([]File, error)
	download(ctx context.Context, fileID string) ([]byte, error)
}

// Source lists and downloads market spreadsheets from one Drive folder.
type Source struct {
	api     fileAPI
	workers int
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewSource creates a Drive-backed market source reading the given folder
// with a service account credentials file.
func NewSource(ctx context.Context, folderID, credentialsFile string, workers int, logger *slog.Logger, metrics *observability.Metrics) (*Source, error) {
	if folderID == "" {
		return nil, errors.New("drive folder ID is required")
	}

	svc, err := drv.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(drv.DriveReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return &Source{
		api:     &driveAPI{svc: svc, folderID: folderID},
		workers: workers,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Fetch lists every file in the folder and downloads and decodes them across
// the configured number of workers. Files with malformed names or content are
// reported by name, not as errors; the second return value carries them so
// the caller can flag unprocessed sales.
func (s *Source) Fetch(ctx context.Context) ([]domain.RawMarketRecord, []string, error) {
	files, err := s.api.list(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list market files: %w", err)
	}
	s.logger.Info("listed market files", "count", len(files))

	var (
		mu        sync.Mutex
		records   []domain.RawMarketRecord
		malformed []string
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, chunk := range splitFiles(files, s.workers) {
		g.Go(func() error {
			for _, f := range chunk {
				recs, err := s.processFile(ctx, f)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					s.logger.Warn("skipping market file", "name", f.Name, "error", err)
					s.metrics.MalformedFiles.Inc()
					mu.Lock()
					malformed = append(malformed, f.Name)
					mu.Unlock()
					continue
				}
				mu.Lock()
				records = append(records, recs...)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return records, malformed, nil
}

// processFile downloads and decodes one spreadsheet. Any failure means the
// file's sales are not processed this run.
func (s *Source) processFile(ctx context.Context, f File) ([]domain.RawMarketRecord, error) {
	parts, err := parseFilename(f.Name)
	if err != nil {
		return nil, err
	}

	content, err := s.api.download(ctx, f.ID)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}

	recs, err := decodeWorkbook(content, parts)
	if err != nil {
		return nil, fmt.Errorf("decode workbook: %w", err)
	}
	return recs, nil
}

// filenameParts are the fields encoded in a market spreadsheet name. Stem is
// the name without its extension and keys the skipped-row registry.
type filenameParts struct {
	Stem     string
	Location string
	Date     string
	Employee string
}

// parseFilename splits "<location>__<date>__<employee>.<ext>" into its
// fields. Names with extra dots or the wrong number of double-underscore
// fields are malformed.
func parseFilename(name string) (filenameParts, error) {
	dotParts := strings.Split(name, ".")
	if len(dotParts) != 2 {
		return filenameParts{}, fmt.Errorf("%w: %q", ErrMalformedFilename, name)
	}

	fields := strings.Split(dotParts[0], "__")
	if len(fields) != 3 {
		return filenameParts{}, fmt.Errorf("%w: %q", ErrMalformedFilename, name)
	}

	return filenameParts{
		Stem:     dotParts[0],
		Location: fields[0],
		Date:     fields[1],
		Employee: fields[2],
	}, nil
}

// splitFiles divides files into at most n contiguous chunks of near-equal
// size, dropping empty ones.
func splitFiles(files []File, n int) [][]File {
	if n < 1 {
		n = 1
	}

	base := len(files) / n
	extra := len(files) % n

	var chunks [][]File
	i := 0
	for c := 0; c < n && i < len(files); c++ {
		size := base
		if c < extra {
			size++
		}
		chunks = append(chunks, files[i:i+size])
		i += size
	}
	return chunks
}

// driveAPI implements fileAPI against the real Drive v3 service.
type driveAPI struct {
	svc      *drv.Service
	folderID string
}

func (d *driveAPI) list(ctx context.Context) ([]File, error) {
	query := fmt.Sprintf("'%s' in parents and trashed = false", d.folderID)
	call := d.svc.Files.List().
		Q(query).
		Fields("nextPageToken, files(id, name, mimeType)").
		PageSize(1000)

	var files []File
	err := call.Pages(ctx, func(page *drv.FileList) error {
		for _, f := range page.Files {
			files = append(files, File{ID: f.Id, Name: f.Name, MimeType: f.MimeType})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list folder %s: %w", d.folderID, err)
	}
	return files, nil
}

func (d *driveAPI) download(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := d.svc.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}
