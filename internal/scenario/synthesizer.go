package scenario

import (
	"context"
	"strings"

	"github.com/v0xg/bddgen/internal/ai"
	"github.com/v0xg/bddgen/internal/analyzer"
	"github.com/v0xg/bddgen/internal/detector"
	"go.uber.org/zap"
)

// Synthesizer builds scenarios for discovered interactions.
type Synthesizer struct {
	provider ai.Provider
	logger   *zap.Logger
}

// NewSynthesizer creates a synthesizer. A nil provider restricts it to
// deterministic templates.
func NewSynthesizer(provider ai.Provider, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{provider: provider, logger: logger.Named("scenario")}
}

// Synthesize returns one validated scenario per usable interaction. page
// supplies the page type hint for drafting and may be nil. A failure on one
// interaction never drops the others; only cancellation of ctx is returned
// as an error.
func (s *Synthesizer) Synthesize(ctx context.Context, pageURL string, page *analyzer.Structure, ins []*detector.Interaction) ([]Scenario, error) {
	pageType := pageTypeOf(page)
	buckets := Classify(ins)
	s.logger.Info("Classified interactions",
		zap.Int("hover", len(buckets.Hover)),
		zap.Int("popup", len(buckets.Popup)),
		zap.Int("click", len(buckets.Click)),
		zap.Int("other", len(buckets.Other)),
	)

	var out []Scenario
	for _, in := range buckets.Hover {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if sc, ok := s.hover(ctx, pageURL, pageType, in); ok {
			out = append(out, sc)
		}
	}
	for _, in := range buckets.Popup {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if sc, ok := s.popup(ctx, pageURL, pageType, in); ok {
			out = append(out, sc)
		}
	}
	s.logger.Info("Generated scenarios", zap.Int("count", len(out)))
	return out, nil
}

func (s *Synthesizer) hover(ctx context.Context, pageURL, pageType string, in *detector.Interaction) (Scenario, bool) {
	fallback := hoverFallback(pageURL, in)
	if len(in.ClickableLinks()) > 0 {
		if sc, ok := navigationScenario(pageURL, in); ok {
			return s.finish(sc, fallback)
		}
		return s.finish(fallback, Scenario{})
	}
	drafted, ok := s.draft(ctx, ai.HoverPrompt(pageURL, pageType, in), in, Scenario{
		FeatureName:  "Validate hover functionality",
		ScenarioName: "Verify hover interaction",
		Type:         TypeHover,
		URL:          pageURL,
	})
	if !ok {
		return s.finish(fallback, Scenario{})
	}
	return s.finish(drafted, fallback)
}

func (s *Synthesizer) popup(ctx context.Context, pageURL, pageType string, in *detector.Interaction) (Scenario, bool) {
	if !popupWorthy(in.PopupInfo) {
		s.logger.Debug("Skipping popup without title or buttons", zap.String("trigger", in.Trigger.Text))
		return Scenario{}, false
	}
	fallback := popupFallback(pageURL, in)
	drafted, ok := s.draft(ctx, ai.PopupPrompt(pageURL, pageType, in), in, Scenario{
		FeatureName:  "Validate popup functionality",
		ScenarioName: "Verify popup interaction",
		Type:         TypePopup,
		URL:          pageURL,
	})
	if !ok {
		return s.finish(fallback, Scenario{})
	}
	return s.finish(drafted, fallback)
}

func pageTypeOf(page *analyzer.Structure) string {
	if page == nil || page.PageType == "" {
		return analyzer.PageTypeGeneral
	}
	return page.PageType
}

// draft asks the provider for a scenario, filling missing names from
// defaults. It reports false when no provider is set or drafting failed.
func (s *Synthesizer) draft(ctx context.Context, prompt string, in *detector.Interaction, defaults Scenario) (Scenario, bool) {
	if s.provider == nil {
		return Scenario{}, false
	}
	d, err := s.provider.GenerateScenario(ctx, prompt)
	if err != nil {
		s.logger.Warn("Scenario drafting failed, using template",
			zap.String("provider", s.provider.Name()),
			zap.String("trigger", in.Trigger.Text),
			zap.Error(err),
		)
		return Scenario{}, false
	}
	sc := defaults
	if name := strings.TrimSpace(d.FeatureName); name != "" {
		sc.FeatureName = name
	}
	if name := strings.TrimSpace(d.ScenarioName); name != "" {
		sc.ScenarioName = name
	}
	sc.Steps = d.Steps
	sc.Confidence = ConfidenceDrafted
	return sc, true
}

// finish normalizes keywords and validates sc, trying alt when sc is
// invalid. alt with no steps means there is no alternative.
func (s *Synthesizer) finish(sc, alt Scenario) (Scenario, bool) {
	sc.Steps = NormalizeKeywords(sc.Steps)
	issues := Validate(sc)
	if len(issues) == 0 {
		return sc, true
	}
	s.logger.Warn("Scenario failed validation",
		zap.String("scenario", sc.ScenarioName),
		zap.Strings("issues", issues),
	)
	if len(alt.Steps) == 0 {
		return Scenario{}, false
	}
	return s.finish(alt, Scenario{})
}
