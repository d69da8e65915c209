package detector

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/v0xg/bddgen/internal/crawler"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type recorderFunc func(context.Context, *Interaction)

func (f recorderFunc) Record(ctx context.Context, in *Interaction) { f(ctx, in) }

// megaNav serves n top-level nav items, each opening its own dropdown
// content in a shared container.
func megaNav(n int) *fakeSession {
	f := newFakeSession("https://store.example.com/")
	var candidates []rawCandidate
	for i := 1; i <= n; i++ {
		candidates = append(candidates, candidateAt(fmt.Sprintf("Section %d", i), fmt.Sprintf("//nav/ul/li[%d]/a", i), 20))
	}
	f.serve(queryNavTriggers, candidates)
	f.queries[queryMenuState] = func([]any) any {
		if f.hovered == "" {
			return []rawMenu{}
		}
		return []rawMenu{visibleMenu("mega", "content for "+f.hovered)}
	}
	f.queries[queryMenuContent] = func([]any) any {
		if f.hovered == "" {
			return []rawMenuContent{}
		}
		return []rawMenuContent{menuWithLinks(rawLink{Text: "Item under " + f.hovered, Href: "/p" + f.hovered})}
	}
	return f
}

func assertEngineInvariants(t *testing.T, m *Mapper) {
	t.Helper()
	for _, in := range m.All() {
		assert.True(t, in.Qualifies())
		if in.URLAfter != "" && in.URLAfter != in.URLBefore {
			assert.False(t, in.PopupAppeared)
		}
	}
}

func TestDiscover_ShopMenu(t *testing.T) {
	f := shopPage()
	f.serve(queryAriaTriggers, []rawCandidate{candidateAt("Shop", shopLocator, 20)})

	m, err := NewDriver(f, testDetectionConfig(), zaptest.NewLogger(t)).Discover(context.Background(), f.url)
	require.NoError(t, err)

	require.Equal(t, 1, m.Len())
	in := m.All()[0]
	assert.Equal(t, ActionHover, in.ActionType)
	assert.Equal(t, []Link{{Text: "New Arrivals", TargetURL: "/new"}}, in.ClickableLinks())
	assertEngineInvariants(t, m)
}

func TestDiscover_PoisonedCandidate(t *testing.T) {
	f := megaNav(5)
	f.hoverErrs["//nav/ul/li[3]/a"] = context.DeadlineExceeded

	core, logs := observer.New(zap.WarnLevel)
	m, err := NewDriver(f, testDetectionConfig(), zap.New(core)).Discover(context.Background(), f.url)
	require.NoError(t, err)

	require.Equal(t, 4, m.Len())
	for _, in := range m.All() {
		assert.NotEqual(t, "//nav/ul/li[3]/a", in.Trigger.Locator)
	}
	assert.Equal(t, 1, logs.FilterMessage("Probe failed, skipping candidate").Len())
	assertEngineInvariants(t, m)
}

func TestDiscover_ProbeLimits(t *testing.T) {
	f := megaNav(8)
	cfg := testDetectionConfig()
	cfg.HoverProbeLimit = 3

	m, err := NewDriver(f, cfg, zaptest.NewLogger(t)).Discover(context.Background(), f.url)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Len())
	assert.Equal(t, "//nav/ul/li[3]/a", m.All()[2].Trigger.Locator, "candidates probed in scan order")
}

func TestDiscover_PopupAndLoadOrder(t *testing.T) {
	f := confirmPage()
	f.serve(queryModalTriggers, []rawCandidate{candidateAt("Delete", "//button[1]", 300)})
	banner := true
	base := f.queries[queryModals]
	f.queries[queryModals] = func(args []any) any {
		if banner {
			banner = false
			return []rawModal{dialog("We use cookies", "Accept")}
		}
		return base(args)
	}

	m, err := NewDriver(f, testDetectionConfig(), zaptest.NewLogger(t)).Discover(context.Background(), f.url)
	require.NoError(t, err)

	require.Equal(t, 2, m.Len())
	assert.Equal(t, ActionLoad, m.All()[0].ActionType)
	assert.Equal(t, ActionClick, m.All()[1].ActionType)
	assert.Len(t, m.Popup(), 2)
	assertEngineInvariants(t, m)
}

func TestDiscover_FailedPopupProbeRestoresPage(t *testing.T) {
	f := leavingPage()
	f.serve(queryModalTriggers, []rawCandidate{
		candidateAt("Read more", "//a[1]", 300),
		candidateAt("Open dialog", "//button[1]", 340),
	})

	core, logs := observer.New(zap.WarnLevel)
	m, err := NewDriver(f, testDetectionConfig(), zap.New(core)).Discover(context.Background(), f.url)
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("Probe failed, skipping candidate").Len())
	require.Len(t, m.Popup(), 1)
	assert.Equal(t, "//button[1]", m.Popup()[0].Trigger.Locator)
	assert.Equal(t, "https://site.example.com/", f.url)
	assertEngineInvariants(t, m)
}

func TestDiscover_NoCandidates(t *testing.T) {
	f := newFakeSession("https://blank.example.com/")

	m, err := NewDriver(f, testDetectionConfig(), zaptest.NewLogger(t)).Discover(context.Background(), f.url)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
}

func TestDiscover_SessionClosed(t *testing.T) {
	f := megaNav(3)
	f.hoverErrs["//nav/ul/li[2]/a"] = crawler.ErrSessionClosed

	_, err := NewDriver(f, testDetectionConfig(), zaptest.NewLogger(t)).Discover(context.Background(), f.url)
	assert.ErrorIs(t, err, crawler.ErrSessionClosed)
}

func TestDiscover_Cancelled(t *testing.T) {
	f := megaNav(3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDriver(f, testDetectionConfig(), zaptest.NewLogger(t)).Discover(ctx, f.url)
	assert.Error(t, err)
}

func TestDiscover_AdvancedStrategies(t *testing.T) {
	newPage := func() *fakeSession {
		f := newFakeSession("https://modern.example.com/")
		f.serve(queryNavTriggersLoose, []rawCandidate{candidateAt("Store", "//nav/a[1]", 10)})
		f.queries[queryMutationReveal] = func([]any) any {
			return mutationReveal{After: []rawAnchor{{Href: "https://modern.example.com/mac", Text: "Mac", Opacity: 1}}}
		}
		f.serve(queryCTACandidates, pageCandidates{
			PageURL:        "https://modern.example.com/",
			ViewportHeight: 1000,
			Candidates:     []rawCandidate{candidateAt("Book a demo", "//main/button[1]", 400)},
		})
		open := false
		f.onClick["//main/button[1]"] = func() { open = true }
		f.queries[queryModals] = func([]any) any {
			if open {
				return []rawModal{dialog("Book a demo", "Send")}
			}
			return []rawModal{}
		}
		return f
	}

	t.Run("disabled by default", func(t *testing.T) {
		f := newPage()
		m, err := NewDriver(f, testDetectionConfig(), zaptest.NewLogger(t)).Discover(context.Background(), f.url)
		require.NoError(t, err)
		assert.Equal(t, 0, m.Len())
		assert.NotContains(t, f.evaluated, queryMutationReveal)
		assert.NotContains(t, f.evaluated, queryCTACandidates)
	})

	t.Run("popup exploration", func(t *testing.T) {
		f := newPage()
		cfg := testDetectionConfig()
		cfg.AdvancedPopup = true
		m, err := NewDriver(f, cfg, zaptest.NewLogger(t)).Discover(context.Background(), f.url)
		require.NoError(t, err)
		require.Len(t, m.Popup(), 1)
		assert.Equal(t, "Book a demo", m.Popup()[0].PopupInfo.Title)
	})

	t.Run("mutation hover only when nothing found", func(t *testing.T) {
		f := newPage()
		cfg := testDetectionConfig()
		cfg.AdvancedPopup = true
		cfg.AdvancedHover = true
		m, err := NewDriver(f, cfg, zaptest.NewLogger(t)).Discover(context.Background(), f.url)
		require.NoError(t, err)
		assert.Equal(t, 1, m.Len(), "popup exploration found one, so mutation hover is skipped")
		assert.NotContains(t, f.evaluated, queryMutationReveal)

		f = newPage()
		cfg.AdvancedPopup = false
		m, err = NewDriver(f, cfg, zaptest.NewLogger(t)).Discover(context.Background(), f.url)
		require.NoError(t, err)
		require.Equal(t, 1, m.Len())
		assert.Equal(t, MethodHoverAdvanced, m.All()[0].Method)
	})
}

func TestDiscover_Recorder(t *testing.T) {
	f := megaNav(2)
	var recorded []string
	rec := recorderFunc(func(_ context.Context, in *Interaction) {
		recorded = append(recorded, in.Trigger.Text)
	})

	_, err := NewDriver(f, testDetectionConfig(), zaptest.NewLogger(t), WithRecorder(rec)).Discover(context.Background(), f.url)
	require.NoError(t, err)
	assert.Equal(t, []string{"Section 1", "Section 2"}, recorded)
}
