// Package engine runs the per-file pipeline: type detection, a single
// streaming scan, correlation and insight generation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/atikulmunna/sleuth/internal/config"
	"github.com/atikulmunna/sleuth/internal/correlate"
	"github.com/atikulmunna/sleuth/internal/detect"
	"github.com/atikulmunna/sleuth/internal/extract"
	"github.com/atikulmunna/sleuth/internal/insight"
	"github.com/atikulmunna/sleuth/internal/metrics"
	"github.com/atikulmunna/sleuth/internal/model"
	"github.com/atikulmunna/sleuth/internal/scanner"
	"github.com/atikulmunna/sleuth/internal/source"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrNotFound is returned when the input path does not exist.
var ErrNotFound = errors.New("log file not found")

// Pattern is an extra entity pattern evaluated after the built-in table.
type Pattern struct {
	Name    string
	Pattern string
}

// Options configure an Analyzer. Zero values select package defaults.
type Options struct {
	SampleLines      int
	Scan             scanner.Options
	ProgressInterval int
	Correlate        correlate.Options
	Thresholds       insight.Thresholds
	CustomPatterns   []Pattern
	PatternTimeout   time.Duration
	Workers          int
	CacheSize        int
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		SampleLines: detect.SampleLines,
		Scan:        scanner.Options{ContextWindow: scanner.DefaultContextWindow, MaxAlerts: 10000},
		Correlate:   correlate.Options{TopK: correlate.DefaultTopK, TopValues: correlate.DefaultTopValues},
		Thresholds:  insight.DefaultThresholds(),
		Workers:     4,
	}
}

// OptionsFromConfig maps loaded configuration onto engine options.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		SampleLines:      cfg.Detect.SampleLines,
		Scan:             scanner.Options{ContextWindow: cfg.Scan.ContextWindow, MaxAlerts: cfg.Scan.MaxAlerts},
		ProgressInterval: cfg.Scan.ProgressInterval,
		Correlate:        correlate.Options{TopK: cfg.Correlate.TopK, TopValues: cfg.Correlate.TopValues},
		Thresholds:       cfg.Insight,
		PatternTimeout:   cfg.Extract.PatternTimeout,
		Workers:          cfg.Workers,
		CacheSize:        cfg.Cache.Size,
	}
	for _, p := range cfg.Extract.CustomPatterns {
		opts.CustomPatterns = append(opts.CustomPatterns, Pattern{Name: p.Name, Pattern: p.Pattern})
	}
	return opts
}

type cacheKey struct {
	path    string
	size    int64
	modTime time.Time
}

// Analyzer is safe for concurrent use. Each Analyze call owns its scanner
// and state; only compiled patterns and the result cache are shared.
type Analyzer struct {
	opts  Options
	ex    *extract.Extractor
	gen   *insight.Generator
	cache *lru.Cache[cacheKey, *model.AnalysisResult]
	log   *zap.Logger
}

// New compiles custom patterns and returns an Analyzer. A nil logger
// disables logging.
func New(opts Options, logger *zap.Logger) (*Analyzer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SampleLines <= 0 {
		opts.SampleLines = detect.SampleLines
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}

	ex := extract.New()
	ex.SetPatternTimeout(opts.PatternTimeout)
	for _, p := range opts.CustomPatterns {
		if err := ex.AddPattern(p.Name, p.Pattern); err != nil {
			return nil, fmt.Errorf("custom pattern: %w", err)
		}
	}

	a := &Analyzer{
		opts: opts,
		ex:   ex,
		gen:  insight.New(opts.Thresholds),
		log:  logger,
	}
	if opts.CacheSize > 0 {
		c, err := lru.New[cacheKey, *model.AnalysisResult](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("result cache: %w", err)
		}
		a.cache = c
	}
	return a, nil
}

// Analyze runs the full pipeline over one file. On error no partial result
// is returned. Results may be served from the cache while the file's size
// and modification time are unchanged; callers must not modify them.
func (a *Analyzer) Analyze(ctx context.Context, path string) (*model.AnalysisResult, error) {
	start := time.Now()

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			metrics.AnalysesTotal.WithLabelValues("not_found").Inc()
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		metrics.AnalysesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	key := cacheKey{path: path, size: info.Size(), modTime: info.ModTime()}
	if a.cache != nil {
		if res, ok := a.cache.Get(key); ok {
			metrics.CacheHits.Inc()
			a.log.Debug("analysis served from cache", zap.String("path", path))
			return res, nil
		}
	}

	res, err := a.analyze(ctx, path)
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	elapsed := time.Since(start)
	metrics.AnalysesTotal.WithLabelValues("ok").Inc()
	metrics.AnalysisDuration.WithLabelValues(string(res.DetectedType)).Observe(elapsed.Seconds())
	a.log.Info("analysis complete",
		zap.String("path", path),
		zap.String("type", string(res.DetectedType)),
		zap.Int("lines", res.TotalLines),
		zap.Int("operations", len(res.Operations)),
		zap.Int("alerts", len(res.Alerts)),
		zap.Int("insights", len(res.Insights)),
		zap.Duration("elapsed", elapsed),
	)

	if a.cache != nil {
		a.cache.Add(key, res)
	}
	return res, nil
}

func (a *Analyzer) analyze(ctx context.Context, path string) (*model.AnalysisResult, error) {
	sample, err := source.Sample(path, a.opts.SampleLines)
	if err != nil {
		return nil, err
	}
	typ := detect.Detect(sample)
	a.log.Debug("type detected",
		zap.String("path", path),
		zap.String("type", string(typ)),
		zap.Any("scores", detect.Scores(sample)),
	)

	lf, err := source.Open(path)
	if err != nil {
		return nil, err
	}
	defer lf.Close()

	ex := a.ex.Clone()
	sc := scanner.New(typ, ex, a.opts.Scan)
	scanned, err := scanner.Run(ctx, sc, lf.Lines(), scanner.RunOptions{
		ProgressEvery: a.opts.ProgressInterval,
		Progress: func(n int) {
			a.log.Debug("scan progress", zap.String("path", path), zap.Int("lines", n))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	metrics.LinesScanned.WithLabelValues(string(typ)).Add(float64(scanned.State.TotalLines))

	c := correlate.Correlate(scanned, a.opts.Correlate)
	insights := a.gen.Generate(c, typ)

	st := scanned.State
	res := &model.AnalysisResult{
		FilePath:         path,
		SizeBytes:        lf.Size,
		DetectedType:     typ,
		TotalLines:       st.TotalLines,
		TimeRange:        st.TimeRange,
		Entities:         c.Entities,
		OperationsByKind: c.ByKind,
		Operations:       c.Operations,
		Alerts:           c.Alerts,
		Insights:         insights,
		Stats: model.Stats{
			AlertLevels:      st.AlertLevels,
			SensitiveOps:     st.SensitiveOps,
			Exceptions:       st.Exceptions,
			DroppedRowEvents: st.DroppedRowEvents,
			AlertsDropped:    st.AlertsDropped,
			PatternTimeouts:  ex.Timeouts(),
		},
	}
	if res.Alerts == nil {
		res.Alerts = []model.Alert{}
	}

	for _, in := range insights {
		metrics.InsightsGenerated.WithLabelValues(string(in.Category), string(in.Severity)).Inc()
	}
	metrics.AlertsDropped.Add(float64(st.AlertsDropped))
	metrics.PatternTimeouts.Add(float64(ex.Timeouts()))
	if st.DroppedRowEvents > 0 {
		a.log.Warn("row events referenced unknown table ids",
			zap.String("path", path), zap.Int("dropped", st.DroppedRowEvents))
	}
	if st.AlertsDropped > 0 {
		a.log.Warn("alert cap reached",
			zap.String("path", path), zap.Int("kept", len(res.Alerts)), zap.Int("dropped", st.AlertsDropped))
	}
	return res, nil
}

// Outcome is the per-file result of AnalyzeAll.
type Outcome struct {
	Path   string
	Result *model.AnalysisResult
	Err    error
}

// AnalyzeAll analyses paths concurrently, at most Workers at a time, and
// returns outcomes in input order. A failing file does not stop the others;
// only context cancellation aborts the batch.
func (a *Analyzer) AnalyzeAll(ctx context.Context, paths []string) ([]Outcome, error) {
	out := make([]Outcome, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := a.Analyze(ctx, p)
			out[i] = Outcome{Path: p, Result: res, Err: err}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if err != nil {
				a.log.Error("analysis failed", zap.String("path", p), zap.Error(err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
