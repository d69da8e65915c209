// Package app wires the discovery engine and its collaborators into the
// end-to-end generation pipeline shared by the CLI and the HTTP API.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/v0xg/bddgen/internal/ai"
	"github.com/v0xg/bddgen/internal/analyzer"
	"github.com/v0xg/bddgen/internal/cache"
	"github.com/v0xg/bddgen/internal/config"
	"github.com/v0xg/bddgen/internal/crawler"
	"github.com/v0xg/bddgen/internal/detector"
	"github.com/v0xg/bddgen/internal/evidence"
	"github.com/v0xg/bddgen/internal/gherkin"
	"github.com/v0xg/bddgen/internal/scenario"
	"go.uber.org/zap"
)

// Outcome is how a run ended.
type Outcome string

const (
	OutcomeCompleted      Outcome = "completed"
	OutcomeNoInteractions Outcome = "no_interactions"
	OutcomeCached         Outcome = "cached"
)

// Session is a live page the pipeline can drive, read and capture.
type Session interface {
	detector.Session
	evidence.Capturer
	PageContent(ctx context.Context) (string, error)
	Close() error
}

// SessionFactory opens a fresh, isolated page session.
type SessionFactory func(ctx context.Context) (Session, error)

// DiscoverFunc runs interaction discovery over a loaded session. rec may be
// nil.
type DiscoverFunc func(ctx context.Context, s Session, pageURL string, rec detector.Recorder) (*detector.Mapper, error)

// ResultCache stores finished analyses.
type ResultCache interface {
	Get(ctx context.Context, url string) (*cache.Entry, error)
	Store(ctx context.Context, url string, interactions []*detector.Interaction, scenarios []scenario.Scenario, feature string) error
}

// Progress receives stage notifications for user-facing output.
type Progress interface {
	Start(stage string)
	Done(detail string)
	Fail()
}

type nopProgress struct{}

func (nopProgress) Start(string) {}
func (nopProgress) Done(string)  {}
func (nopProgress) Fail()        {}

// Options tunes a single run.
type Options struct {
	// OutputName overrides the generated feature file name.
	OutputName string
	// NoCache skips the cache lookup. Results are still stored.
	NoCache bool
	// EvidencePath, when set, receives an animated GIF of each reveal.
	EvidencePath string
	Progress     Progress
}

// Result is a finished run.
type Result struct {
	URL            string                  `json:"url"`
	Outcome        Outcome                 `json:"outcome"`
	FeaturePath    string                  `json:"feature_path"`
	FeatureContent string                  `json:"-"`
	Interactions   []*detector.Interaction `json:"interactions"`
	Scenarios      []scenario.Scenario     `json:"scenarios"`
	Summary        detector.Summary        `json:"summary"`
	Page           *analyzer.Structure     `json:"page,omitempty"`
	EvidencePath   string                  `json:"evidence_path,omitempty"`
	Elapsed        time.Duration           `json:"elapsed"`
}

// Generator runs the pipeline.
type Generator struct {
	cfg        *config.Config
	cache      ResultCache
	newSession SessionFactory
	discover   DiscoverFunc
	synth      *scenario.Synthesizer
	filter     *scenario.QualityFilter
	gherkin    *gherkin.Generator
	logger     *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithSessionFactory replaces the browser launcher.
func WithSessionFactory(f SessionFactory) Option {
	return func(g *Generator) { g.newSession = f }
}

// WithDiscoverer replaces the discovery step.
func WithDiscoverer(f DiscoverFunc) Option {
	return func(g *Generator) { g.discover = f }
}

// NewGenerator creates a pipeline. provider and rc may be nil to disable
// model drafting and caching.
func NewGenerator(cfg *config.Config, provider ai.Provider, rc ResultCache, logger *zap.Logger, opts ...Option) *Generator {
	g := &Generator{
		cfg:     cfg,
		cache:   rc,
		synth:   scenario.NewSynthesizer(provider, logger),
		filter:  scenario.NewQualityFilter(logger),
		gherkin: gherkin.NewGenerator(logger),
		logger:  logger.Named("app"),
	}
	g.newSession = func(context.Context) (Session, error) {
		b, err := crawler.Launch(crawler.OptionsFromConfig(cfg.Browser))
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	g.discover = func(ctx context.Context, s Session, pageURL string, rec detector.Recorder) (*detector.Mapper, error) {
		var dopts []detector.DriverOption
		if rec != nil {
			dopts = append(dopts, detector.WithRecorder(rec))
		}
		return detector.NewDriver(s, cfg.Detection, logger, dopts...).Discover(ctx, pageURL)
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate analyzes pageURL and writes its feature file. A failed run
// returns an error and no Result.
func (g *Generator) Generate(ctx context.Context, pageURL string, opts Options) (*Result, error) {
	start := time.Now()
	progress := opts.Progress
	if progress == nil {
		progress = nopProgress{}
	}
	log := g.logger.With(zap.String("url", pageURL))

	if g.cache != nil && !opts.NoCache {
		entry, err := g.cache.Get(ctx, pageURL)
		if err != nil {
			log.Warn("Cache lookup failed", zap.Error(err))
		} else if entry != nil && entry.FeatureContent != "" {
			progress.Start("Using cached results")
			path, err := g.save(pageURL, opts.OutputName, entry.FeatureContent)
			if err != nil {
				progress.Fail()
				return nil, err
			}
			progress.Done("")
			return &Result{
				URL:            pageURL,
				Outcome:        OutcomeCached,
				FeaturePath:    path,
				FeatureContent: entry.FeatureContent,
				Interactions:   entry.Interactions,
				Scenarios:      entry.Scenarios,
				Elapsed:        time.Since(start),
			}, nil
		}
	}

	progress.Start("Launching browser")
	session, err := g.newSession(ctx)
	if err != nil {
		progress.Fail()
		return nil, fmt.Errorf("launching browser: %w", err)
	}
	defer session.Close()
	progress.Done("")

	progress.Start("Loading " + pageURL)
	if err := session.Navigate(ctx, pageURL); err != nil {
		progress.Fail()
		return nil, err
	}
	progress.Done("")

	var rec *evidence.Recorder
	var observer detector.Recorder
	if opts.EvidencePath != "" {
		rec = evidence.NewRecorder(session, g.logger)
		observer = rec
	}

	progress.Start("Discovering hidden interactions")
	mapper, err := g.discover(ctx, session, pageURL, observer)
	if err != nil {
		progress.Fail()
		return nil, fmt.Errorf("discovering interactions: %w", err)
	}
	summary := mapper.Summary()
	progress.Done(fmt.Sprintf("%d hover, %d popup", summary.HoverCount, summary.PopupCount))

	res := &Result{
		URL:          pageURL,
		Interactions: mapper.All(),
		Summary:      summary,
	}

	if mapper.Len() == 0 {
		log.Warn("No meaningful interactions detected")
		res.Outcome = OutcomeNoInteractions
		res.FeatureContent = g.gherkin.RenderEmpty(pageURL)
		if res.FeaturePath, err = g.save(pageURL, opts.OutputName, res.FeatureContent); err != nil {
			return nil, err
		}
		res.Elapsed = time.Since(start)
		return res, nil
	}

	progress.Start("Analyzing page structure")
	res.Page = g.analyze(ctx, session, pageURL)
	if res.Page != nil {
		progress.Done("type: " + res.Page.PageType)
	} else {
		progress.Done("skipped")
	}

	progress.Start("Generating scenarios")
	raw, err := g.synth.Synthesize(ctx, pageURL, res.Page, mapper.All())
	if err != nil {
		progress.Fail()
		return nil, fmt.Errorf("generating scenarios: %w", err)
	}
	res.Scenarios = g.filter.Process(raw)
	progress.Done(fmt.Sprintf("%d of %d kept", len(res.Scenarios), len(raw)))

	res.FeatureContent = g.gherkin.Render(pageURL, res.Scenarios)
	if err := gherkin.Validate(res.FeatureContent); err != nil {
		log.Warn("Feature document is incomplete", zap.Error(err))
	}
	if res.FeaturePath, err = g.save(pageURL, opts.OutputName, res.FeatureContent); err != nil {
		return nil, err
	}

	if g.cache != nil {
		if err := g.cache.Store(ctx, pageURL, res.Interactions, res.Scenarios, res.FeatureContent); err != nil {
			log.Warn("Cache store failed", zap.Error(err))
		}
	}

	if rec != nil && len(rec.Frames()) > 0 {
		progress.Start("Writing evidence")
		if _, err := rec.WriteGIF(opts.EvidencePath, evidence.DefaultOptions()); err != nil {
			progress.Fail()
			log.Warn("Evidence not written", zap.Error(err))
		} else {
			res.EvidencePath = opts.EvidencePath
			progress.Done(fmt.Sprintf("%d frames", len(rec.Frames())))
		}
	}

	res.Outcome = OutcomeCompleted
	res.Elapsed = time.Since(start)
	log.Info("Generation completed",
		zap.Int("scenarios", len(res.Scenarios)),
		zap.String("feature", res.FeaturePath),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

// analyze summarizes the live DOM. Failures only cost the summary.
func (g *Generator) analyze(ctx context.Context, s Session, pageURL string) *analyzer.Structure {
	html, err := s.PageContent(ctx)
	if err != nil {
		g.logger.Warn("Reading page content failed", zap.Error(err))
		return nil
	}
	structure, err := analyzer.Analyze(html, pageURL)
	if err != nil {
		g.logger.Warn("Page analysis failed", zap.Error(err))
		return nil
	}
	return structure
}

func (g *Generator) save(pageURL, name, content string) (string, error) {
	return g.gherkin.Save(g.cfg.Output.Dir, g.gherkin.FileName(pageURL, name), content)
}
