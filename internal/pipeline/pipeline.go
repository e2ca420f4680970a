package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/retail-sales-etl/internal/domain"
	"github.com/couchcryptid/retail-sales-etl/internal/observability"
)

// Loader persists canonical transactions.
type Loader interface {
	LoadTransactions(ctx context.Context, txns []domain.Transaction) error
}

// MarketSource fetches raw market spreadsheet rows plus the names of files
// that could not be processed.
type MarketSource interface {
	Fetch(ctx context.Context) ([]domain.RawMarketRecord, []string, error)
}

// OnlineSource reads the staged Stripe payloads.
type OnlineSource interface {
	OnlineTransactions(ctx context.Context) ([]domain.RawOnlineRecord, error)
}

// CryptoSource reads the staged crypto ledger rows.
type CryptoSource interface {
	CryptoTransactions(ctx context.Context) ([]domain.RawCryptoRecord, error)
}

// POSSource reads the staged point-of-sale rows.
type POSSource interface {
	POSTransactions(ctx context.Context) ([]domain.RawPOSRecord, error)
}

// PriceSource returns ETH-USD daily opening prices covering the UTC days of
// [from, to], keyed by YYYY-MM-DD date.
type PriceSource interface {
	DailyOpen(ctx context.Context, from, to time.Time) (map[string]float64, error)
}

// Channel is one sales channel's extract and transform pair. Process returns
// the canonical transactions ready to load plus counts of what it saw.
type Channel interface {
	Name() string
	Process(ctx context.Context) ([]domain.Transaction, Stats, error)
}

// Stats counts a channel run's rows. Accepted is implied by the transactions
// a channel returns. Report carries the per-file skipped rows for channels
// that validate row by row; other channels leave it nil.
type Stats struct {
	Extracted      int
	Rejected       int
	MalformedFiles []string
	Report         *domain.Report
}

// RunSummary describes one completed or failed channel run. The status
// endpoint serves recent summaries.
type RunSummary struct {
	RunID          string    `json:"run_id"`
	Channel        string    `json:"channel"`
	StartedAt      time.Time `json:"started_at"`
	Duration       string    `json:"duration"`
	Extracted      int       `json:"extracted"`
	Accepted       int       `json:"accepted"`
	Rejected       int       `json:"rejected"`
	MalformedFiles []string  `json:"malformed_files,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// maxSummaries bounds the run history kept for the status endpoint.
const maxSummaries = 20

// Runner executes extract-transform-load runs over the registered channels
// and shares one loader across them.
type Runner struct {
	channels []Channel
	loader   Loader
	logger   *slog.Logger
	metrics  *observability.Metrics
	clock    clockwork.Clock

	ready atomic.Bool

	mu        sync.Mutex
	summaries []RunSummary
}

// NewRunner creates a Runner over the given channels. RunAll processes them
// in the order given here.
func NewRunner(channels []Channel, loader Loader, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Runner {
	return &Runner{
		channels: channels,
		loader:   loader,
		logger:   logger,
		metrics:  metrics,
		clock:    clock,
	}
}

// ChannelNames returns the registered channel names in run order.
func (r *Runner) ChannelNames() []string {
	names := make([]string, len(r.channels))
	for i, ch := range r.channels {
		names[i] = ch.Name()
	}
	return names
}

// CheckReadiness returns nil once at least one run has completed
// successfully, or an error describing why the service is not yet ready.
func (r *Runner) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("no channel run has completed yet")
	}
	return nil
}

// LastSummaries returns recent run summaries, newest first.
func (r *Runner) LastSummaries() []RunSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]RunSummary, len(r.summaries))
	copy(out, r.summaries)
	return out
}

// Run executes one extract-transform-load pass for the named channel.
func (r *Runner) Run(ctx context.Context, name string) (RunSummary, error) {
	ch, err := r.channel(name)
	if err != nil {
		return RunSummary{}, err
	}

	runID := uuid.NewString()
	logger := r.logger.With("run_id", runID, "channel", name)
	start := r.clock.Now()
	summary := RunSummary{RunID: runID, Channel: name, StartedAt: start}

	r.metrics.RunsActive.Inc()
	defer r.metrics.RunsActive.Dec()
	logger.Info("run started")

	txns, stats, err := ch.Process(ctx)
	if err != nil {
		return r.fail(logger, summary, start, fmt.Errorf("%s run: %w", name, err))
	}

	if err := r.loader.LoadTransactions(ctx, txns); err != nil {
		return r.fail(logger, summary, start, fmt.Errorf("load %s transactions: %w", name, err))
	}

	duration := r.clock.Since(start)
	r.metrics.RowsExtracted.WithLabelValues(name).Add(float64(stats.Extracted))
	r.metrics.RowsAccepted.WithLabelValues(name).Add(float64(len(txns)))
	r.metrics.RowsRejected.WithLabelValues(name).Add(float64(stats.Rejected))
	r.metrics.LoadBatchSize.Observe(float64(len(txns)))
	r.metrics.RunDuration.WithLabelValues(name).Observe(duration.Seconds())

	summary.Duration = duration.String()
	summary.Extracted = stats.Extracted
	summary.Accepted = len(txns)
	summary.Rejected = stats.Rejected
	summary.MalformedFiles = stats.MalformedFiles
	r.record(summary)
	r.ready.Store(true)

	logger.Info("run completed",
		"extracted", summary.Extracted,
		"accepted", summary.Accepted,
		"rejected", summary.Rejected,
		"malformed_files", len(summary.MalformedFiles),
		"duration", summary.Duration,
	)
	return summary, nil
}

// RunAll executes every channel in registration order, stopping at the first
// failure so later channels never load on top of a broken run.
func (r *Runner) RunAll(ctx context.Context) ([]RunSummary, error) {
	summaries := make([]RunSummary, 0, len(r.channels))
	for _, ch := range r.channels {
		summary, err := r.Run(ctx, ch.Name())
		summaries = append(summaries, summary)
		if err != nil {
			return summaries, err
		}
	}
	return summaries, nil
}

func (r *Runner) fail(logger *slog.Logger, summary RunSummary, start time.Time, err error) (RunSummary, error) {
	summary.Duration = r.clock.Since(start).String()
	summary.Error = err.Error()
	r.record(summary)
	logger.Error("run failed", "error", err)
	return summary, err
}

func (r *Runner) channel(name string) (Channel, error) {
	for _, ch := range r.channels {
		if ch.Name() == name {
			return ch, nil
		}
	}
	return nil, fmt.Errorf("unknown channel %q", name)
}

func (r *Runner) record(summary RunSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.summaries = append([]RunSummary{summary}, r.summaries...)
	if len(r.summaries) > maxSummaries {
		r.summaries = r.summaries[:maxSummaries]
	}
}
