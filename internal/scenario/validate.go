package scenario

import (
	"fmt"
	"regexp"
	"strings"
)

var stepKeywords = []string{"Given", "When", "Then", "And", "But"}

var genericPhrases = []string{"button element", "the ''", "with the title ''", "element element"}

var selectorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`#[a-zA-Z0-9_-]+`),
	regexp.MustCompile(`\.[a-zA-Z0-9_-]+`),
	regexp.MustCompile(`//[a-zA-Z]+\[`),
}

func hasKeyword(step string) bool {
	for _, kw := range stepKeywords {
		if strings.HasPrefix(step, kw) {
			return true
		}
	}
	return false
}

// NormalizeKeywords trims steps and prefixes a keyword to steps without
// one: Given for the first, When for the second, Then for the third and And
// for the rest.
func NormalizeKeywords(steps []string) []string {
	out := make([]string, 0, len(steps))
	for i, step := range steps {
		step = strings.TrimSpace(step)
		if hasKeyword(step) {
			out = append(out, step)
			continue
		}
		switch i {
		case 0:
			step = "Given " + step
		case 1:
			step = "When " + step
		case 2:
			step = "Then " + step
		default:
			step = "And " + step
		}
		out = append(out, step)
	}
	return out
}

// Validate returns the problems that make s unusable, or nil.
func Validate(s Scenario) []string {
	var issues []string

	if len(s.Steps) < 3 {
		issues = append(issues, "too few steps (minimum 3 required)")
	}
	for i, step := range s.Steps {
		step = strings.TrimSpace(step)
		if step == "" {
			issues = append(issues, "contains empty steps")
			continue
		}
		if !hasKeyword(step) {
			issues = append(issues, fmt.Sprintf("step %d missing Gherkin keyword: %q", i+1, truncate(step, 50)))
		}
	}

	joined := strings.Join(s.Steps, " ")
	for _, kw := range []string{"Given", "When", "Then"} {
		if !strings.Contains(joined, kw) {
			issues = append(issues, fmt.Sprintf("missing %q step", kw))
		}
	}

	lower := strings.ToLower(joined)
	for _, phrase := range genericPhrases {
		if strings.Contains(lower, phrase) {
			issues = append(issues, fmt.Sprintf("contains generic phrase: %q", phrase))
		}
	}

	if strings.TrimSpace(s.FeatureName) == "" {
		issues = append(issues, "empty feature name")
	}
	if strings.TrimSpace(s.ScenarioName) == "" {
		issues = append(issues, "empty scenario name")
	}

	// Text carrying a URL is exempt, its dots and slashes look like selectors.
	if !strings.Contains(lower, "http") {
		for _, re := range selectorPatterns {
			if re.MatchString(lower) {
				issues = append(issues, "contains technical selector: "+re.String())
			}
		}
	}

	return issues
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
