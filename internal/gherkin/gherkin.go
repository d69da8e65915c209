// Package gherkin assembles scenarios into .feature documents and writes
// them to disk.
package gherkin

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/v0xg/bddgen/internal/scenario"
	"go.uber.org/zap"
)

const (
	timestampLayout = "2006-01-02 15:04:05"
	fileStampLayout = "20060102_150405"
	stepIndent      = "    "
)

var requiredKeywords = []string{"Feature:", "Scenario:", "Given", "When", "Then"}

// Generator renders and saves feature documents.
type Generator struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewGenerator creates a generator stamped with the wall clock.
func NewGenerator(logger *zap.Logger) *Generator {
	return &Generator{logger: logger.Named("gherkin"), now: time.Now}
}

// Render builds the feature document for pageURL. Popup scenarios come
// first, or a feature stating that no popups were found, followed by hover
// scenarios. With no scenarios at all the empty document is returned.
func (g *Generator) Render(pageURL string, scenarios []scenario.Scenario) string {
	if len(scenarios) == 0 {
		g.logger.Warn("No scenarios provided, rendering empty feature", zap.String("url", pageURL))
		return g.RenderEmpty(pageURL)
	}

	var hover, popup []scenario.Scenario
	for _, s := range scenarios {
		switch s.Type {
		case scenario.TypeHover:
			hover = append(hover, s)
		case scenario.TypePopup:
			popup = append(popup, s)
		}
	}

	var b strings.Builder
	b.WriteString("# Auto-generated BDD test scenarios\n")
	fmt.Fprintf(&b, "# URL: %s\n", pageURL)
	fmt.Fprintf(&b, "# Generated: %s\n\n", g.now().Format(timestampLayout))

	if len(popup) > 0 {
		writeScenarios(&b, popup)
	} else {
		writeNoPopup(&b, pageURL)
	}
	b.WriteString("\n")
	writeScenarios(&b, hover)

	return b.String()
}

// RenderEmpty builds the document used when a page exposes no testable
// interactions.
func (g *Generator) RenderEmpty(pageURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# No interactive elements detected for %s\n", pageURL)
	fmt.Fprintf(&b, "# Generated: %s\n\n", g.now().Format(timestampLayout))
	b.WriteString("Feature: No testable interactions found\n\n")
	b.WriteString("  Scenario: Manual review required\n")
	fmt.Fprintf(&b, "%sGiven the user navigates to %q\n", stepIndent, pageURL)
	fmt.Fprintf(&b, "%sThen the page should load successfully\n", stepIndent)
	fmt.Fprintf(&b, "%s# Note: No hoverable elements or popups were detected automatically\n", stepIndent)
	fmt.Fprintf(&b, "%s# Manual test case creation may be required\n", stepIndent)
	return b.String()
}

func writeScenarios(b *strings.Builder, scenarios []scenario.Scenario) {
	for _, s := range scenarios {
		fmt.Fprintf(b, "Feature: %s\n\n", s.FeatureName)
		fmt.Fprintf(b, "  Scenario: %s\n\n", s.ScenarioName)
		for _, step := range s.Steps {
			if !strings.HasPrefix(step, "  ") {
				step = stepIndent + step
			}
			b.WriteString(step + "\n")
		}
		b.WriteString("\n")
	}
}

func writeNoPopup(b *strings.Builder, pageURL string) {
	b.WriteString("Feature: No popup interactions detected\n\n")
	b.WriteString("  Scenario: Confirm absence of popups\n\n")
	fmt.Fprintf(b, "%sGiven the user is on %q page\n", stepIndent, pageURL)
	fmt.Fprintf(b, "%sThen no pop-up dialogs should appear during automatic exploration\n", stepIndent)
}

// Validate checks that content carries every required Gherkin keyword.
func Validate(content string) error {
	var missing []string
	for _, kw := range requiredKeywords {
		if !strings.Contains(content, kw) {
			missing = append(missing, kw)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required Gherkin keywords: %s", strings.Join(missing, ", "))
	}
	return nil
}

// FileName returns the output file name: name with a .feature suffix when
// given, else the page domain followed by a timestamp.
func (g *Generator) FileName(pageURL, name string) string {
	if name != "" {
		if !strings.HasSuffix(name, ".feature") {
			name += ".feature"
		}
		return name
	}
	domain := "page"
	if u, err := url.Parse(pageURL); err == nil && u.Host != "" {
		domain = strings.TrimPrefix(u.Host, "www.")
	}
	domain = strings.NewReplacer(".", "_", ":", "_").Replace(domain)
	return fmt.Sprintf("%s_%s.feature", domain, g.now().Format(fileStampLayout))
}

// Save writes content to dir/fileName, creating dir as needed, and returns
// the written path.
func (g *Generator) Save(dir, fileName, content string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, fileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write feature file: %w", err)
	}
	g.logger.Info("Feature file saved", zap.String("path", path))
	return path, nil
}
