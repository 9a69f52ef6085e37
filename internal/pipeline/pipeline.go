// Package pipeline runs the fetch, unpack and serialize stages in order.
package pipeline

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geonames-cli/internal/config"
	"github.com/sells-group/geonames-cli/internal/export"
	"github.com/sells-group/geonames-cli/internal/fetcher"
	"github.com/sells-group/geonames-cli/internal/geonames"
	"github.com/sells-group/geonames-cli/internal/normalize"
	"github.com/sells-group/geonames-cli/internal/serialize"
)

// Pipeline wires the stages of one conversion run. Stages never overlap: each
// one finishes before the next starts.
type Pipeline struct {
	Fetcher    fetcher.Fetcher
	Unpacker   *normalize.Unpacker
	Serializer *serialize.Serializer
	// Sink is optional; nil skips the export stage.
	Sink export.Sink

	URL         string
	ArchivePath string
	OutputPath  string
}

// Result summarizes a successful run.
type Result struct {
	RunID      string
	Records    int
	OutputPath string
	Exported   int64
	Duration   time.Duration
}

// New builds a Pipeline from cfg using the production fetchers. The export sink
// is not opened here; see OpenSink.
func New(cfg *config.Config) (*Pipeline, error) {
	format, err := geonames.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}
	policy, err := normalize.ParseMultiplePolicy(cfg.Unpack.OnMultiple)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		Fetcher: fetcher.NewRouter(
			fetcher.HTTPOptions{
				UserAgent:  cfg.Fetch.UserAgent,
				Timeout:    cfg.Fetch.Timeout(),
				RatePerSec: cfg.Fetch.RatePerSec,
			},
			fetcher.FTPOptions{Timeout: cfg.Fetch.Timeout()},
		),
		Unpacker: &normalize.Unpacker{
			WorkDir:          cfg.Paths.WorkDir,
			Pattern:          cfg.Paths.Pattern,
			NormalizedName:   cfg.Paths.Normalized,
			ExtractAll:       cfg.Unpack.ExtractAll,
			CleanupExtracted: cfg.Unpack.CleanupExtracted,
			OnMultiple:       policy,
		},
		Serializer: &serialize.Serializer{
			Format: format,
			Indent: cfg.Output.Indent,
		},
		URL:         cfg.Source.URL,
		ArchivePath: cfg.Paths.Resolve(cfg.Paths.Archive),
		OutputPath:  cfg.Paths.Resolve(cfg.Paths.Output),
	}, nil
}

// OpenSink opens the configured export sink and attaches it to p.
func (p *Pipeline) OpenSink(ctx context.Context, cfg config.ExportConfig) error {
	sink, err := export.Open(ctx, cfg.Driver, cfg.DSN, cfg.Table)
	if err != nil {
		return &StageError{Stage: StageExport, Err: err}
	}
	p.Sink = sink
	return nil
}

// Run executes fetch, unpack, serialize and, when a sink is set, export.
// The first failing stage aborts the run with a *StageError.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	runID := uuid.New().String()
	log := zap.L().With(zap.String("run_id", runID))

	if p.Unpacker != nil && p.Unpacker.WorkDir != "" {
		if err := os.MkdirAll(p.Unpacker.WorkDir, 0o755); err != nil {
			return nil, &StageError{Stage: StageSetup, Err: eris.Wrap(err, "create work dir")}
		}
	}

	log.Info("stage started", zap.String("stage", string(StageFetch)), zap.String("url", p.URL))
	archive, err := fetcher.Fetch(ctx, p.Fetcher, p.URL, p.ArchivePath)
	if err != nil {
		return nil, &StageError{Stage: StageFetch, Err: err}
	}

	log.Info("stage started", zap.String("stage", string(StageUnpack)), zap.String("archive", archive))
	normalized, err := p.Unpacker.Unpack(ctx, archive)
	if err != nil {
		return nil, &StageError{Stage: StageUnpack, Err: err}
	}

	log.Info("stage started", zap.String("stage", string(StageSerialize)), zap.String("input", normalized))
	records, err := p.Serializer.Serialize(ctx, normalized, p.OutputPath)
	if err != nil {
		return nil, &StageError{Stage: StageSerialize, Err: err}
	}

	res := &Result{
		RunID:      runID,
		Records:    len(records),
		OutputPath: p.OutputPath,
	}

	if p.Sink != nil {
		log.Info("stage started", zap.String("stage", string(StageExport)))
		n, err := p.Sink.Write(ctx, records)
		if err != nil {
			return nil, &StageError{Stage: StageExport, Err: err}
		}
		res.Exported = n
	}

	res.Duration = time.Since(start)
	log.Info("run complete",
		zap.Int("records", res.Records),
		zap.String("output", res.OutputPath),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// Close releases the export sink, if any.
func (p *Pipeline) Close() error {
	if p.Sink == nil {
		return nil
	}
	return p.Sink.Close()
}
