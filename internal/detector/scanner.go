package detector

import (
	"context"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/v0xg/bddgen/internal/config"
	"github.com/v0xg/bddgen/internal/crawler"
	"go.uber.org/zap"
)

// Scanner enumerates hover-trigger and popup-trigger candidates.
type Scanner struct {
	session Session
	cfg     config.DetectionConfig
	logger  *zap.Logger
}

// NewScanner creates a scanner over session.
func NewScanner(session Session, cfg config.DetectionConfig, logger *zap.Logger) *Scanner {
	return &Scanner{session: session, cfg: cfg, logger: logger.Named("scanner")}
}

// strategy is one candidate query plus its host-side filter.
type strategy struct {
	name  string
	query crawler.Query
	keep  func(ElementInfo, rawCandidate) bool
}

// HoverCandidates runs every hover strategy in order, dedupes the union by
// normalized label and truncates it to the configured maximum.
func (s *Scanner) HoverCandidates(ctx context.Context) ([]ElementInfo, error) {
	strategies := []strategy{
		{name: "aria", query: ariaTriggersQuery, keep: s.labelled},
		{name: "nav-strict", query: navTriggersQuery, keep: s.labelled},
		{name: "nav-loose", query: navTriggersLooseQuery, keep: s.inTopBand},
		{name: "css-class", query: cssTriggersQuery, keep: s.labelled},
	}

	var all []ElementInfo
	for _, st := range strategies {
		found, err := s.run(ctx, st)
		if err != nil {
			if isSessionFatal(ctx, err) {
				return nil, err
			}
			s.logger.Warn("Hover strategy failed", zap.String("strategy", st.name), zap.Error(err))
			continue
		}
		s.logger.Debug("Hover strategy finished", zap.String("strategy", st.name), zap.Int("found", len(found)))
		all = append(all, found...)
	}

	unique := DedupeByLabel(all)
	s.logger.Info("Found hover menu triggers", zap.Int("count", len(unique)))
	return truncate(unique, s.cfg.MaxHoverElements), nil
}

// LooseNavCandidates returns only the loose navigation strategy's results,
// deduped by label. Used by the mutation-based hover strategy.
func (s *Scanner) LooseNavCandidates(ctx context.Context) ([]ElementInfo, error) {
	found, err := s.run(ctx, strategy{name: "nav-loose", query: navTriggersLooseQuery, keep: s.inTopBand})
	if err != nil {
		return nil, err
	}
	return DedupeByLabel(found), nil
}

// PopupCandidates runs the popup strategies, dedupes by text and locator and
// truncates to the configured maximum.
func (s *Scanner) PopupCandidates(ctx context.Context) ([]ElementInfo, error) {
	var all []ElementInfo

	classic, err := s.run(ctx, strategy{name: "modal-attribute", query: modalTriggersQuery, keep: s.popupLabelled})
	if err != nil {
		if isSessionFatal(ctx, err) {
			return nil, err
		}
		s.logger.Warn("Popup strategy failed", zap.String("strategy", "modal-attribute"), zap.Error(err))
	}
	all = append(all, classic...)

	external, err := s.externalLinks(ctx)
	if err != nil {
		if isSessionFatal(ctx, err) {
			return nil, err
		}
		s.logger.Warn("Popup strategy failed", zap.String("strategy", "external-link"), zap.Error(err))
	}
	all = append(all, external...)

	for i := range all {
		all[i].Text = truncateRunes(all[i].Text, s.cfg.PopupLabelMaxLength)
	}
	unique := DedupeByTextAndLocator(all)
	s.logger.Info("Found popup triggers", zap.Int("count", len(unique)))
	return truncate(unique, s.cfg.MaxPopupTriggers), nil
}

// CTACandidates returns mid-page call-to-action elements: below the header
// band and above the lower part of the viewport.
func (s *Scanner) CTACandidates(ctx context.Context) ([]ElementInfo, error) {
	var page pageCandidates
	if err := s.session.Evaluate(ctx, ctaCandidatesQuery, &page); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var out []ElementInfo
	for _, c := range page.Candidates {
		el := c.element()
		if c.Hidden || !el.Visible() || el.Text == "" || el.Locator == "" {
			continue
		}
		if el.Location.Y < ctaTopMinPx || el.Location.Y > page.ViewportHeight*ctaBottomRatio {
			continue
		}
		key := strings.ToLower(el.Text) + "|" + el.Locator
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		el.Text = truncateRunes(el.Text, s.cfg.PopupLabelMaxLength)
		out = append(out, el)
	}
	return out, nil
}

func (s *Scanner) run(ctx context.Context, st strategy) ([]ElementInfo, error) {
	var raw []rawCandidate
	if err := s.session.Evaluate(ctx, st.query, &raw); err != nil {
		return nil, err
	}

	var out []ElementInfo
	for _, c := range raw {
		el := c.element()
		if !el.Visible() || el.Locator == "" {
			continue
		}
		if st.keep(el, c) {
			out = append(out, el)
		}
	}
	return out, nil
}

// labelled keeps elements with a non-empty label under the label cap.
func (s *Scanner) labelled(el ElementInfo, _ rawCandidate) bool {
	n := utf8.RuneCountInString(el.Text)
	return n > 0 && n < s.cfg.LabelMaxLength
}

// inTopBand keeps shown, labelled elements near the top of the viewport.
func (s *Scanner) inTopBand(el ElementInfo, c rawCandidate) bool {
	if c.Hidden || el.Location.Y > s.cfg.TopBandPx {
		return false
	}
	return s.labelled(el, c)
}

func (s *Scanner) popupLabelled(el ElementInfo, _ rawCandidate) bool {
	return el.Text != ""
}

func (s *Scanner) externalLinks(ctx context.Context) ([]ElementInfo, error) {
	var page pageCandidates
	if err := s.session.Evaluate(ctx, externalLinksQuery, &page); err != nil {
		return nil, err
	}
	return filterExternalLinks(page, s.cfg.FooterCutoffRatio), nil
}

// filterExternalLinks keeps visible labelled anchors to another host that sit
// above the footer cutoff.
func filterExternalLinks(page pageCandidates, footerRatio float64) []ElementInfo {
	current, err := url.Parse(page.PageURL)
	if err != nil {
		return nil
	}
	currentHost := bareHost(current.Hostname())
	cutoff := page.ViewportHeight * footerRatio

	seen := make(map[string]struct{})
	var out []ElementInfo
	for _, c := range page.Candidates {
		el := c.element()
		if c.Hidden || !el.Visible() || el.Text == "" || el.Locator == "" {
			continue
		}
		target, err := url.Parse(el.Attributes["href"])
		if err != nil || (target.Scheme != "http" && target.Scheme != "https") {
			continue
		}
		if bareHost(target.Hostname()) == currentHost {
			continue
		}
		if el.Location.Y > cutoff {
			continue
		}
		key := strings.ToLower(el.Text) + "|" + target.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, el)
	}
	return out
}

func bareHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

// DedupeByLabel keeps the first element for each normalized label and drops
// unlabelled elements. It is a pure function of its input.
func DedupeByLabel(elements []ElementInfo) []ElementInfo {
	seen := make(map[string]struct{}, len(elements))
	out := make([]ElementInfo, 0, len(elements))
	for _, el := range elements {
		key := normalizeLabel(el.Text)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, el)
	}
	return out
}

// DedupeByTextAndLocator keeps the first element for each (text, locator) pair.
func DedupeByTextAndLocator(elements []ElementInfo) []ElementInfo {
	type key struct{ text, locator string }
	seen := make(map[key]struct{}, len(elements))
	out := make([]ElementInfo, 0, len(elements))
	for _, el := range elements {
		k := key{el.Text, el.Locator}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, el)
	}
	return out
}

func truncate(elements []ElementInfo, max int) []ElementInfo {
	if max >= 0 && len(elements) > max {
		return elements[:max]
	}
	return elements
}

func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
