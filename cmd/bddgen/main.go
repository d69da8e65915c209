package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/v0xg/bddgen/internal/ai"
	"github.com/v0xg/bddgen/internal/app"
	"github.com/v0xg/bddgen/internal/cache"
	"github.com/v0xg/bddgen/internal/config"
	"github.com/v0xg/bddgen/internal/observability"
	"go.uber.org/zap"
)

var (
	cfgFile  string
	output   string
	noCache  bool
	evidence string
	verbose  bool

	cfg *config.Config
	v   = viper.New()
)

func main() {
	// Load .env file if present (silently ignore if not found)
	_ = godotenv.Load()

	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		observability.Sync()
		os.Exit(1)
	}
	observability.Sync()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bddgen <url>",
		Short: "Discover hidden page interactions and write them as BDD scenarios",
		Long: `bddgen opens a page in a headless browser, probes navigation items and
buttons for hover menus and popups, and writes what it finds as Gherkin
scenarios to a .feature file.

Example:
  bddgen https://shop.example.com --evidence reveal.gif`,
		Args:              cobra.ExactArgs(1),
		PersistentPreRunE: setup,
		RunE:              run,
		SilenceUsage:      true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "Config file (yaml, toml or json)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Show debug logging")
	pf.Bool("show-browser", false, "Run the browser with a visible window")
	pf.String("provider", "", "LLM provider: claude, openai, ollama, none")
	pf.String("model", "", "Specific model override")
	pf.Bool("advanced-hover", false, "Enable mutation-based hover discovery")
	pf.Bool("advanced-popup", false, "Enable call-to-action popup exploration")
	pf.String("profile", "", "Chrome/Chromium profile directory for authenticated sessions (close browser first)")

	f := rootCmd.Flags()
	f.StringVarP(&output, "output", "o", "", "Output feature file name (default: <domain>_<timestamp>.feature)")
	f.BoolVar(&noCache, "no-cache", false, "Ignore cached results")
	f.StringVar(&evidence, "evidence", "", "Write an animated GIF of each discovered reveal")
	f.String("output-dir", "", "Directory for feature files")

	bind := map[string]string{
		"llm.provider":             "provider",
		"llm.model":                "model",
		"detection.advanced_hover": "advanced-hover",
		"detection.advanced_popup": "advanced-popup",
		"browser.profile_dir":      "profile",
	}
	for key, name := range bind {
		_ = v.BindPFlag(key, pf.Lookup(name))
	}
	_ = v.BindPFlag("output.dir", f.Lookup("output-dir"))

	rootCmd.AddCommand(newServeCmd(), newCacheCmd())
	return rootCmd
}

// setup loads configuration and initializes logging before any command runs.
func setup(cmd *cobra.Command, _ []string) error {
	if show, _ := cmd.Flags().GetBool("show-browser"); show {
		v.Set("browser.headless", false)
	}
	if verbose {
		v.Set("logger.level", "debug")
	}

	var err error
	cfg, err = config.Load(v, cfgFile)
	if err != nil {
		observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "bddgen"})
		return err
	}
	observability.InitializeLogger(cfg.Logger)
	return nil
}

func run(cmd *cobra.Command, args []string) error {
	pageURL := args[0]
	if err := checkPageURL(pageURL); err != nil {
		return err
	}
	logger := observability.GetLogger()

	ctx, stop := withSignals(cmd.Context())
	defer stop()

	provider := newProvider(logger)
	rc, closeCache := openCache(logger)
	defer closeCache()

	name := "none (deterministic)"
	if provider != nil {
		name = provider.Name()
	}
	fmt.Printf("Analyzing %s (synthesis: %s)\n", pageURL, name)

	gen := app.NewGenerator(cfg, provider, rc, logger)
	res, err := gen.Generate(ctx, pageURL, app.Options{
		OutputName:   output,
		NoCache:      noCache,
		EvidencePath: evidence,
		Progress:     &cliProgress{w: os.Stdout},
	})
	if err != nil {
		fmt.Printf("✗ Analysis failed: %v\n", err)
		return err
	}

	switch res.Outcome {
	case app.OutcomeNoInteractions:
		fmt.Println("⚠ No testable interactions found; wrote a placeholder feature for manual review")
	case app.OutcomeCached:
		fmt.Println("✓ Served from cache (use --no-cache to re-analyze)")
	default:
		fmt.Printf("✓ %d scenarios from %d interactions\n", len(res.Scenarios), len(res.Interactions))
	}
	fmt.Printf("✓ Saved to %s\n", res.FeaturePath)
	if res.EvidencePath != "" {
		fmt.Printf("✓ Evidence saved to %s\n", res.EvidencePath)
	}
	return nil
}

// checkPageURL accepts only absolute http(s) URLs, matching POST /analyze.
func checkPageURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid url %q: must be an absolute http(s) URL", raw)
	}
	return nil
}

// newProvider returns the configured LLM provider, or nil when it cannot be
// created so synthesis falls back to deterministic templates.
func newProvider(logger *zap.Logger) ai.Provider {
	p, err := ai.NewProvider(cfg.LLM)
	if err != nil {
		logger.Warn("LLM provider unavailable, using deterministic scenarios",
			zap.String("provider", cfg.LLM.Provider), zap.Error(err))
		return nil
	}
	return p
}

// openCache opens the result cache when enabled. The returned close func is
// always safe to call.
func openCache(logger *zap.Logger) (app.ResultCache, func()) {
	if !cfg.Cache.Enabled {
		return nil, func() {}
	}
	c, err := cache.Open(cfg.Cache.Path, cfg.Cache.Expiry, logger)
	if err != nil {
		logger.Warn("Cache unavailable, continuing without it", zap.Error(err))
		return nil, func() {}
	}
	return c, func() {
		if err := c.Close(); err != nil {
			logger.Warn("Closing cache failed", zap.Error(err))
		}
	}
}

func requireCache() (*cache.Cache, error) {
	if !cfg.Cache.Enabled {
		return nil, errors.New("cache is disabled (cache.enabled=false)")
	}
	return cache.Open(cfg.Cache.Path, cfg.Cache.Expiry, observability.GetLogger())
}

func withSignals(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
