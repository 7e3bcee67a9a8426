// Package pipeline strings the batch steps together: fetch the dataset,
// make sure an index exists, then organize it into the YOLO layout while
// recording the run in the catalog.
package pipeline

import (
	"context"
	"fmt"

	"github.com/mschirtzinger/yoloprep/internal/catalog"
	"github.com/mschirtzinger/yoloprep/internal/config"
	"github.com/mschirtzinger/yoloprep/internal/index"
	"github.com/mschirtzinger/yoloprep/internal/kaggle"
	"github.com/mschirtzinger/yoloprep/internal/logging"
	"github.com/mschirtzinger/yoloprep/internal/yolo"
	"go.uber.org/zap"
)

// Pipeline runs the steps against one configuration.
type Pipeline struct {
	cfg    *config.Config
	logger *zap.Logger

	// Downloader is built lazily from Kaggle credentials when nil.
	Downloader kaggle.Downloader
}

// New returns a pipeline. A nil logger discards output.
func New(cfg *config.Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Pipeline{cfg: cfg, logger: logger}
}

func (p *Pipeline) downloader() (kaggle.Downloader, error) {
	if p.Downloader != nil {
		return p.Downloader, nil
	}
	creds, err := kaggle.LoadCredentials(p.cfg.Kaggle.ConfigDir)
	if err != nil {
		return nil, err
	}
	client, err := kaggle.NewClient(creds, &kaggle.Config{Logger: logging.Std(p.logger, "kaggle")})
	if err != nil {
		return nil, err
	}
	p.Downloader = client
	return client, nil
}

// Download fetches and unzips the dataset unless its images are already
// present and force is false.
func (p *Pipeline) Download(ctx context.Context, force bool) (*kaggle.FetchResult, error) {
	slug, err := kaggle.ParseSlug(p.cfg.Dataset.Slug)
	if err != nil {
		return nil, err
	}

	imagesDir := p.cfg.Dataset.ImagesDir()
	d, err := p.downloader()
	if err != nil {
		// Credentials only matter when a download is actually needed.
		if !force && dirExists(imagesDir) {
			return &kaggle.FetchResult{Skipped: true}, nil
		}
		return nil, err
	}

	p.logger.Info("fetching dataset", zap.String("slug", slug.String()), zap.String("dest", p.cfg.Dataset.BaseDir))
	res, err := kaggle.Fetch(ctx, d, slug, p.cfg.Dataset.BaseDir, imagesDir, force)
	if err != nil {
		return nil, err
	}
	if res.Skipped {
		p.logger.Info("dataset already present, skipping download", zap.String("images", imagesDir))
	} else {
		p.logger.Info("dataset downloaded and unzipped",
			zap.Int64("bytes", res.Bytes), zap.Int("files", res.FilesTotal))
	}
	return res, nil
}

// Index creates Train/Validation/Test.csv from image names when the index
// directory is missing, or always when rebuild is set.
func (p *Pipeline) Index(rebuild bool) (*index.EnsureResult, error) {
	indexDir := p.cfg.Dataset.IndexDir()
	res, err := index.EnsureIndex(p.cfg.Dataset.ImagesDir(), indexDir, index.EnsureOptions{
		Build: index.BuildOptions{
			LabelField: p.cfg.Index.LabelField,
			Binarize:   p.cfg.Index.Binarize,
		},
		Split: index.SplitOptions{
			Train: p.cfg.Split.Train,
			Val:   p.cfg.Split.Val,
			Seed:  p.cfg.Split.Seed,
		},
		LabelColumn: p.cfg.Index.LabelColumn,
		Rebuild:     rebuild,
	})
	if err != nil {
		return nil, err
	}
	if res.Created {
		p.logger.Info("index created",
			zap.String("dir", indexDir),
			zap.Int("train", len(res.Splits.Train)),
			zap.Int("val", len(res.Splits.Validation)),
			zap.Int("test", len(res.Splits.Test)))
	} else {
		p.logger.Debug("index present", zap.String("dir", indexDir))
	}
	return res, nil
}

// OrganizeOptions tune one organize pass.
type OrganizeOptions struct {
	// Workers overrides organize.workers when > 0
	Workers int

	// Observers receive progress events in addition to the catalog
	Observers []yolo.Observer

	// SkipCatalog disables the run ledger
	SkipCatalog bool
}

// OrganizeResult pairs the organizer result with the catalog run id.
type OrganizeResult struct {
	*yolo.RunResult
	RunID string
}

// RunObserver is an optional extension of yolo.Observer. Observers passed in
// OrganizeOptions that implement it are told when each organize pass ends,
// whether it succeeded or not.
type RunObserver interface {
	RunFinished(copied int, err error)
}

// Organize processes the index into the YOLO layout.
func (p *Pipeline) Organize(ctx context.Context, opts OrganizeOptions) (*OrganizeResult, error) {
	res, err := p.organize(ctx, opts)

	copied := 0
	if res != nil {
		copied = res.Copied()
	}
	for _, o := range opts.Observers {
		if ro, ok := o.(RunObserver); ok {
			ro.RunFinished(copied, err)
		}
	}
	return res, err
}

func (p *Pipeline) organize(ctx context.Context, opts OrganizeOptions) (*OrganizeResult, error) {
	observers := append(yolo.MultiObserver{}, opts.Observers...)

	var (
		db       *catalog.DB
		run      *catalog.Run
		recorder *catalog.Recorder
	)
	if !opts.SkipCatalog {
		var err error
		db, err = catalog.Open(p.cfg.CatalogPath())
		if err != nil {
			return nil, err
		}
		defer db.Close()

		run, err = db.BeginRun(ctx, p.cfg.Dataset.Slug, p.cfg.Output.Dir)
		if err != nil {
			return nil, err
		}
		recorder = catalog.NewRecorder(db, run.ID, logging.Std(p.logger, "catalog"))
		observers = append(observers, recorder)
	}

	workers := p.cfg.Organize.Workers
	if opts.Workers > 0 {
		workers = opts.Workers
	}

	org, err := yolo.NewOrganizer(&yolo.Config{
		OutputDir:   p.cfg.Output.Dir,
		ImagesDir:   p.cfg.Dataset.ImagesDir(),
		LabelColumn: p.cfg.Index.LabelColumn,
		ClassMap:    p.cfg.Classes.Map,
		ClassNames:  p.cfg.Classes.Names,
		Workers:     workers,
		Observer:    observers,
		Logger:      logging.Std(p.logger, "organize"),
	})
	if err != nil {
		return nil, err
	}

	res, runErr := org.Run(ctx, p.cfg.Dataset.IndexDir())

	if db != nil {
		status := catalog.StatusComplete
		if runErr != nil {
			status = catalog.StatusFailed
		}
		// The run context may already be cancelled; the ledger still needs the final status.
		if err := db.FinishRun(context.WithoutCancel(ctx), run.ID, status); err != nil {
			p.logger.Warn("failed to finish catalog run", zap.Error(err))
		}
		if err := recorder.Err(); err != nil {
			p.logger.Warn("catalog missed samples", zap.Error(err))
		}
	}
	if runErr != nil {
		return nil, runErr
	}

	for _, s := range res.Splits {
		if s.Empty {
			p.logger.Warn("index file is empty, check its contents", zap.String("split", string(s.Split)))
			continue
		}
		p.logger.Info("split organized",
			zap.String("split", string(s.Split)),
			zap.Int("copied", s.Copied),
			zap.Int("unknown_label", s.UnknownLabel),
			zap.Int("missing_source", s.MissingSource),
			zap.Int("duplicate", s.Duplicate),
			zap.Int("malformed", s.Malformed))
	}

	out := &OrganizeResult{RunResult: res}
	if run != nil {
		out.RunID = run.ID
	}
	return out, nil
}

// Run performs Download, Index and Organize in order.
func (p *Pipeline) Run(ctx context.Context, force bool, opts OrganizeOptions) (*OrganizeResult, error) {
	if _, err := p.Download(ctx, force); err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	if _, err := p.Index(false); err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	return p.Organize(ctx, opts)
}
