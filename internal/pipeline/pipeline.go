package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/buoy-data-etl/internal/domain"
	"github.com/couchcryptid/buoy-data-etl/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// FileSource lists and reads the files mirrored for a station.
type FileSource interface {
	List(ctx context.Context, stationID string) ([]string, error)
	Read(ctx context.Context, stationID, name string) ([]byte, error)
}

// Ledger remembers the content digest each file was last published with.
type Ledger interface {
	Seen(ctx context.Context, stationID, file, digest string) (bool, error)
	Mark(ctx context.Context, stationID, file, digest string) error
}

// BatchLoader writes a decoded file to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, fb domain.FileBatch) error
}

// Options tunes a Pipeline. Zero values get defaults.
type Options struct {
	PollInterval time.Duration
	Clock        clockwork.Clock
}

// Pipeline polls every station's inbox and publishes newly decoded files.
type Pipeline struct {
	stations    []domain.StationLink
	source      FileSource
	transformer *Transformer
	ledger      Ledger
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	clock       clockwork.Clock
	interval    time.Duration
	ready       atomic.Bool

	mu     sync.Mutex
	status map[string]*domain.StationStatus
	// rejected holds the digest each file last failed to decode with, keyed
	// by station and file name.
	rejected map[string]string
}

// New creates a Pipeline for the given stations and stages.
func New(
	stations []domain.StationLink,
	source FileSource,
	transformer *Transformer,
	ledger Ledger,
	loader BatchLoader,
	logger *slog.Logger,
	metrics *observability.Metrics,
	opts Options,
) *Pipeline {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Minute
	}
	status := make(map[string]*domain.StationStatus, len(stations))
	for _, link := range stations {
		status[link.ID] = &domain.StationStatus{ID: link.ID, Mode: link.Mode()}
	}
	return &Pipeline{
		status:      status,
		rejected:    make(map[string]string),
		stations:    stations,
		source:      source,
		transformer: transformer,
		ledger:      ledger,
		loader:      loader,
		logger:      logger,
		metrics:     metrics,
		clock:       opts.Clock,
		interval:    opts.PollInterval,
	}
}

// CheckReadiness returns nil once a poll cycle has visited every station.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a poll cycle yet")
	}
	return nil
}

// StationStatuses reports per-station progress, ordered by station ID.
func (p *Pipeline) StationStatuses() []domain.StationStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.StationStatus, 0, len(p.status))
	for _, st := range p.status {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (p *Pipeline) updateStatus(id string, fn func(st *domain.StationStatus)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st, ok := p.status[id]; ok {
		fn(st)
	}
}

func (p *Pipeline) isRejected(stationID, file, digest string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.rejected[stationID+"|"+file]
	return ok && d == digest
}

func (p *Pipeline) markRejected(stationID, file, digest string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejected[stationID+"|"+file] = digest
}

func (p *Pipeline) clearRejected(stationID, file string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.rejected, stationID+"|"+file)
}

// Run polls until the context is cancelled. A cycle that fails to publish is
// retried with exponential backoff instead of waiting a full poll interval.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "stations", len(p.stations), "poll_interval", p.interval)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}

		wait := p.interval
		if p.RunCycle(ctx) {
			backoff = initialBackoff
		} else {
			if ctx.Err() != nil {
				continue
			}
			wait = backoff
			backoff = nextBackoff(backoff, maxBackoff)
			p.logger.Warn("poll cycle incomplete, retrying", "backoff", wait)
		}

		if !sleepWithContext(ctx, p.clock, wait) {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// RunCycle processes every station once. Stations are independent: a
// transient failure (listing, reading, ledger, publish) on one is recorded on
// its status and the cycle moves on to the next. It returns false when any
// station failed that way; decode and configuration problems are logged and
// do not fail the cycle.
func (p *Pipeline) RunCycle(ctx context.Context) bool {
	start := p.clock.Now()
	defer func() {
		p.metrics.CycleDuration.Observe(p.clock.Since(start).Seconds())
	}()

	ok := true
	for _, link := range p.stations {
		if ctx.Err() != nil {
			return false
		}
		p.updateStatus(link.ID, func(st *domain.StationStatus) {
			st.LastCycleAt = p.clock.Now()
			st.LastError = ""
		})
		if err := p.processStation(ctx, link); err != nil {
			p.updateStatus(link.ID, func(st *domain.StationStatus) { st.LastError = err.Error() })
			if ctx.Err() != nil {
				return false
			}
			p.logger.Error("station cycle failed", "station", link.ID, "error", err)
			ok = false
		}
	}
	p.ready.Store(true)
	return ok
}

func (p *Pipeline) processStation(ctx context.Context, link domain.StationLink) error {
	files, err := p.source.List(ctx, link.ID)
	if err != nil {
		return fmt.Errorf("list files: %w", err)
	}
	p.metrics.FilesListed.WithLabelValues(link.ID).Add(float64(len(files)))

	selected, err := p.transformer.Select(link, files)
	if err != nil {
		if errors.Is(err, domain.ErrConfiguration) {
			p.logger.Error("station misconfigured, skipping", "station", link.ID, "error", err)
			p.metrics.ConfigErrors.WithLabelValues(link.ID).Inc()
			p.updateStatus(link.ID, func(st *domain.StationStatus) { st.LastError = err.Error() })
			return nil
		}
		return fmt.Errorf("select files: %w", err)
	}
	p.metrics.FilesSelected.WithLabelValues(link.ID).Add(float64(len(selected)))
	p.logger.Debug("files selected",
		"station", link.ID,
		"listed", len(files),
		"selected", len(selected),
		"backfill", link.HasStartDate(),
	)

	var errs []error
	for _, name := range selected {
		if err := p.processFile(ctx, link, name); err != nil {
			if ctx.Err() != nil {
				return err
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Pipeline) processFile(ctx context.Context, link domain.StationLink, name string) error {
	content, err := p.source.Read(ctx, link.ID, name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}

	digest := domain.ContentDigest(content)
	seen, err := p.ledger.Seen(ctx, link.ID, name, digest)
	if err != nil {
		return err
	}
	if seen || p.isRejected(link.ID, name, digest) {
		p.metrics.FilesSkipped.WithLabelValues(link.ID).Inc()
		return nil
	}

	fb, err := p.transformer.Transform(link.ID, name, content)
	if err != nil {
		var derr *domain.DecodeError
		if errors.As(err, &derr) {
			p.logger.Warn("decode failed, rejecting file",
				"station", link.ID,
				"file", name,
				"kind", derr.Kind.String(),
				"line", derr.Line,
				"error", err,
			)
			p.metrics.DecodeErrors.WithLabelValues(link.ID, derr.Kind.String()).Inc()
			p.markRejected(link.ID, name, digest)
			p.updateStatus(link.ID, func(st *domain.StationStatus) { st.FilesRejected++ })
			return nil
		}
		return fmt.Errorf("decode %s: %w", name, err)
	}

	n := len(fb.Batch.Values)
	p.metrics.FilesDecoded.WithLabelValues(link.ID).Inc()
	p.metrics.RecordsDecoded.WithLabelValues(link.ID).Add(float64(n))
	p.metrics.BatchSize.Observe(float64(n))

	if err := p.loader.LoadBatch(ctx, fb); err != nil {
		p.metrics.PublishErrors.Inc()
		return fmt.Errorf("publish %s: %w", name, err)
	}
	p.metrics.RecordsPublished.Add(float64(n))

	if err := p.ledger.Mark(ctx, link.ID, name, digest); err != nil {
		return err
	}
	p.clearRejected(link.ID, name)

	p.updateStatus(link.ID, func(st *domain.StationStatus) {
		st.FilesPublished++
		st.LastFile = name
		st.LastPublishAt = p.clock.Now()
	})

	p.logger.Info("file published",
		"station", link.ID,
		"file", name,
		"records", n,
		"batch_id", fb.BatchID,
	)
	return nil
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
