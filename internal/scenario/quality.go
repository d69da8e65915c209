package scenario

import (
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

var lowQualityPatterns = compileAll(
	`(?i)button element`,
	`(?i)the element`,
	`(?i)a element`,
	`(?i)with the title ''`,
	`(?i)with the title ""`,
	`(?i)should appear with ''`,
	`(?i)clicks the  button`,
	`(?i)clicks the "" button`,
	`(?i)the popup should appear with the title `,
)

type improvement struct {
	re   *regexp.Regexp
	with string
}

var improvements = []improvement{
	{regexp.MustCompile(`(?i)additional content should appear`), "a dropdown menu or overlay should appear"},
	{regexp.MustCompile(`(?i)button element`), "navigation button"},
	{regexp.MustCompile(`(?i)the element`), "the navigation element"},
	{regexp.MustCompile(`(?i)with the title ''`), "with a title"},
	{regexp.MustCompile(`(?i)with the title ""`), "with a title"},
}

const maxLowQualityHits = 2

var (
	navTargetRe     = regexp.MustCompile(`Then the page URL should change to "([^"]+)"`)
	navLinkRe       = regexp.MustCompile(`(?i)clicks the link "([^"]+)" from the dropdown`)
	cookieTitleRe   = regexp.MustCompile(`(?i)"([^"]*Cookie Disclaimer[^"]*)"`)
	whitespaceRunRe = regexp.MustCompile(`\s+`)
)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// QualityFilter rejects weak scenarios, rewrites generic phrasing, removes
// duplicates and orders the survivors.
type QualityFilter struct {
	logger *zap.Logger
}

// NewQualityFilter creates a quality filter.
func NewQualityFilter(logger *zap.Logger) *QualityFilter {
	return &QualityFilter{logger: logger.Named("quality")}
}

// Process filters, improves, deduplicates and sorts scenarios.
func (q *QualityFilter) Process(scenarios []Scenario) []Scenario {
	var kept []Scenario
	for _, s := range scenarios {
		if !Acceptable(s) {
			q.logger.Warn("Rejected low-quality scenario", zap.String("scenario", s.ScenarioName))
			continue
		}
		kept = append(kept, Improve(s))
	}
	unique := Dedupe(kept)
	q.logger.Info("Quality filter applied",
		zap.Int("input", len(scenarios)),
		zap.Int("accepted", len(kept)),
		zap.Int("unique", len(unique)),
	)
	return SortByImportance(unique)
}

// Acceptable reports whether s meets the minimum quality bar.
func Acceptable(s Scenario) bool {
	if len(s.Steps) < 3 {
		return false
	}

	all := strings.Join(append(append([]string{}, s.Steps...), s.ScenarioName, s.FeatureName), " ")
	hits := 0
	for _, re := range lowQualityPatterns {
		if re.MatchString(all) {
			hits++
		}
	}
	if hits > maxLowQualityHits {
		return false
	}

	var given, when, then bool
	for _, step := range s.Steps {
		given = given || strings.Contains(step, "Given")
		when = when || strings.Contains(step, "When")
		then = then || strings.Contains(step, "Then")
		switch strings.TrimSpace(step) {
		case "", "Given", "When", "Then", "And":
			return false
		}
	}
	return given && when && then
}

// Improve rewrites generic phrasing and collapses whitespace.
func Improve(s Scenario) Scenario {
	steps := make([]string, len(s.Steps))
	for i, step := range s.Steps {
		steps[i] = strings.TrimSpace(whitespaceRunRe.ReplaceAllString(improveText(step), " "))
	}
	s.Steps = steps
	s.FeatureName = improveText(s.FeatureName)
	s.ScenarioName = improveText(s.ScenarioName)
	return s
}

func improveText(text string) string {
	for _, imp := range improvements {
		text = imp.re.ReplaceAllString(text, imp.with)
	}
	return text
}

// Signature identifies scenarios that test the same flow. Navigation flows
// match on link and target regardless of the hovered menu, and every
// cookie disclaimer popup is one flow. Otherwise the non-Given steps are
// compared as a set.
func Signature(s Scenario) string {
	var actions []string
	for _, step := range s.Steps {
		step = strings.TrimSpace(step)
		if !strings.HasPrefix(step, "Given") {
			actions = append(actions, step)
		}
	}

	var target, link string
	for _, step := range actions {
		if m := navTargetRe.FindStringSubmatch(step); m != nil {
			target = m[1]
		}
		if m := navLinkRe.FindStringSubmatch(step); m != nil {
			link = m[1]
		}
	}
	if target != "" && link != "" {
		return "NAV|" + link + "|" + target
	}

	if s.Type == TypePopup {
		if m := cookieTitleRe.FindStringSubmatch(strings.Join(actions, " ")); m != nil {
			return "POPUP|" + strings.ToLower(strings.TrimSpace(m[1]))
		}
	}

	sort.Strings(actions)
	return strings.Join(actions, "|")
}

// Dedupe keeps the first scenario of each signature.
func Dedupe(scenarios []Scenario) []Scenario {
	seen := make(map[string]bool, len(scenarios))
	var out []Scenario
	for _, s := range scenarios {
		sig := Signature(s)
		if seen[sig] {
			continue
		}
		seen[sig] = true
		out = append(out, s)
	}
	return out
}

// SortByImportance puts popup scenarios first, keeping relative order.
func SortByImportance(scenarios []Scenario) []Scenario {
	out := make([]Scenario, 0, len(scenarios))
	for _, s := range scenarios {
		if s.Type == TypePopup {
			out = append(out, s)
		}
	}
	for _, s := range scenarios {
		if s.Type != TypePopup {
			out = append(out, s)
		}
	}
	return out
}
