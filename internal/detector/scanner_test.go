package detector

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/v0xg/bddgen/internal/config"
	"github.com/v0xg/bddgen/internal/crawler"
	"go.uber.org/zap/zaptest"
)

func testDetectionConfig() config.DetectionConfig {
	cfg := config.NewDefaultConfig().Detection
	cfg.SettleDelay = 0
	return cfg
}

func TestDedupeByLabel(t *testing.T) {
	input := []ElementInfo{
		{Text: "Shop", Locator: "//a[1]"},
		{Text: "  shop ", Locator: "//a[2]"},
		{Text: "", Locator: "//a[3]"},
		{Text: "Help   Center", Locator: "//a[4]"},
		{Text: "help center", Locator: "//a[5]"},
		{Text: "About", Locator: "//a[6]"},
	}

	once := DedupeByLabel(input)
	require.Len(t, once, 3)
	assert.Equal(t, "//a[1]", once[0].Locator, "first seen wins")
	assert.Equal(t, "//a[4]", once[1].Locator)
	assert.Equal(t, "//a[6]", once[2].Locator)

	assert.Equal(t, once, DedupeByLabel(once), "dedupe is idempotent")
	assert.Equal(t, once, DedupeByLabel(input), "dedupe is pure")
}

func TestDedupeByTextAndLocator(t *testing.T) {
	input := []ElementInfo{
		{Text: "Learn more", Locator: "//a[1]"},
		{Text: "Learn more", Locator: "//a[2]"},
		{Text: "Learn more", Locator: "//a[1]"},
	}
	out := DedupeByTextAndLocator(input)
	require.Len(t, out, 2)
	assert.Equal(t, "//a[2]", out[1].Locator)
}

func TestScanner_HoverCandidates(t *testing.T) {
	f := newFakeSession("https://shop.example.com/")
	zero := candidateAt("Zero size", "//a[9]", 20)
	zero.Width = 0
	f.serve(queryAriaTriggers, []rawCandidate{
		candidateAt("Shop", "//*[@id=\"shop\"]", 20),
		zero,
		candidateAt(strings.Repeat("x", 60), "//a[10]", 20),
		candidateAt("   ", "//a[11]", 20),
	})
	f.serve(queryNavTriggers, []rawCandidate{
		candidateAt("shop", "//nav/ul/li[1]/a", 20),
		candidateAt("Sale", "//nav/ul/li[2]/a", 20),
	})

	hidden := candidateAt("Hidden", "//nav/a[1]", 20)
	hidden.Hidden = true
	f.serve(queryNavTriggersLoose, []rawCandidate{
		candidateAt("Brands", "//nav/a[2]", 150),
		candidateAt("Footer link", "//nav/a[3]", 900),
		hidden,
		{Tag: "a", Text: "No locator", Width: 10, Height: 10, Y: 10},
	})
	f.queryErrs[queryCSSTriggers] = errors.New("ReferenceError")

	cfg := testDetectionConfig()
	s := NewScanner(f, cfg, zaptest.NewLogger(t))

	got, err := s.HoverCandidates(context.Background())
	require.NoError(t, err)

	var labels []string
	for _, el := range got {
		labels = append(labels, el.Text)
		assert.True(t, el.Visible())
		assert.LessOrEqual(t, utf8.RuneCountInString(el.Text), cfg.LabelMaxLength)
	}
	assert.Equal(t, []string{"Shop", "Sale", "Brands"}, labels)
}

func TestScanner_HoverCandidatesTruncated(t *testing.T) {
	f := newFakeSession("https://example.com/")
	var raw []rawCandidate
	for i := 0; i < 40; i++ {
		raw = append(raw, candidateAt(strings.Repeat("m", i%45+1), "//a["+strings.Repeat("1", i+1)+"]", 10))
	}
	f.serve(queryAriaTriggers, raw)

	cfg := testDetectionConfig()
	got, err := NewScanner(f, cfg, zaptest.NewLogger(t)).HoverCandidates(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, cfg.MaxHoverElements)
	assert.Equal(t, "m", got[0].Text, "discovery order preserved")
}

func TestScanner_SessionClosed(t *testing.T) {
	f := newFakeSession("https://example.com/")
	f.queryErrs[queryAriaTriggers] = crawler.ErrSessionClosed

	_, err := NewScanner(f, testDetectionConfig(), zaptest.NewLogger(t)).HoverCandidates(context.Background())
	assert.ErrorIs(t, err, crawler.ErrSessionClosed)
}

func TestScanner_PopupCandidates(t *testing.T) {
	f := newFakeSession("https://www.example.com/page")

	long := candidateAt(strings.Repeat("Open dialog ", 20), "//button[1]", 300)
	f.serve(queryModalTriggers, []rawCandidate{
		candidateAt("Subscribe", "//button[2]", 300),
		candidateAt("Subscribe", "//button[2]", 300),
		long,
	})

	ext := func(text, href, locator string, y float64) rawCandidate {
		c := candidateAt(text, locator, y)
		c.Attributes = map[string]string{"href": href}
		return c
	}
	f.serve(queryExternalLinks, pageCandidates{
		PageURL:        "https://www.example.com/page",
		ViewportHeight: 1000,
		Candidates: []rawCandidate{
			ext("Partner site", "https://partner.org/x", "//a[1]", 400),
			ext("Same host", "https://example.com/about", "//a[2]", 400),
			ext("Social", "https://social.net/us", "//a[3]", 990),
			ext("Mail us", "mailto:hi@example.com", "//a[4]", 400),
			ext("Partner site", "https://partner.org/x", "//a[5]", 420),
		},
	})

	cfg := testDetectionConfig()
	got, err := NewScanner(f, cfg, zaptest.NewLogger(t)).PopupCandidates(context.Background())
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, "Subscribe", got[0].Text)
	assert.Equal(t, cfg.PopupLabelMaxLength, utf8.RuneCountInString(got[1].Text))
	assert.Equal(t, "Partner site", got[2].Text)
	assert.Equal(t, "//a[1]", got[2].Locator)
}

func TestFilterExternalLinks_FooterCutoff(t *testing.T) {
	page := pageCandidates{
		PageURL:        "https://example.com/",
		ViewportHeight: 1000,
		Candidates: []rawCandidate{
			{Tag: "a", Text: "Above", Locator: "//a[1]", Width: 10, Height: 10, Y: 800, Attributes: map[string]string{"href": "https://other.com"}},
			{Tag: "a", Text: "Below", Locator: "//a[2]", Width: 10, Height: 10, Y: 800, Attributes: map[string]string{"href": "https://another.com"}},
		},
	}

	assert.Len(t, filterExternalLinks(page, 0.95), 2)
	assert.Empty(t, filterExternalLinks(page, 0.5))
}

func TestScanner_CTACandidates(t *testing.T) {
	f := newFakeSession("https://example.com/")
	f.serve(queryCTACandidates, pageCandidates{
		PageURL:        "https://example.com/",
		ViewportHeight: 1000,
		Candidates: []rawCandidate{
			candidateAt("Header button", "//header/button[1]", 40),
			candidateAt("Get started", "//main/a[1]", 400),
			candidateAt("get started", "//main/a[1]", 400),
			candidateAt("Footer button", "//footer/button[1]", 900),
		},
	})

	got, err := NewScanner(f, testDetectionConfig(), zaptest.NewLogger(t)).CTACandidates(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Get started", got[0].Text)
}
