package detector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/v0xg/bddgen/internal/crawler"
	"go.uber.org/zap/zaptest"
)

const shopLocator = "//nav/ul/li[1]/a"

// shopPage serves a nav item whose hover opens a role=menu panel.
func shopPage() *fakeSession {
	f := newFakeSession("https://shop.example.com/")
	f.queries[queryMenuState] = func([]any) any {
		if f.hovered == shopLocator {
			return []rawMenu{visibleMenu("shop-menu", "New Arrivals\nShop")}
		}
		return []rawMenu{}
	}
	f.queries[queryMenuContent] = func([]any) any {
		if f.hovered != shopLocator {
			return []rawMenuContent{}
		}
		return []rawMenuContent{menuWithLinks(
			rawLink{Text: "New Arrivals", Href: "/new"},
			rawLink{Text: "Shop", Href: "/shop"},
		)}
	}
	return f
}

func TestProbeHover_MenuReveal(t *testing.T) {
	f := shopPage()
	d := New(f, testDetectionConfig(), zaptest.NewLogger(t))

	in, err := d.ProbeHover(context.Background(), ElementInfo{Text: "Shop", Locator: shopLocator, Location: Location{Y: 20, Width: 50, Height: 20}})
	require.NoError(t, err)
	require.NotNil(t, in)

	assert.Equal(t, ActionHover, in.ActionType)
	assert.Equal(t, MethodHoverMenu, in.Method)
	assert.False(t, in.PopupAppeared)
	assert.Equal(t, []Link{{Text: "New Arrivals", TargetURL: "/new"}}, in.ClickableLinks())
	require.NotNil(t, in.MenuStructure)
	assert.Equal(t, []string{"New Arrivals", "Shop"}, in.MenuStructure.AllLinks)
	assert.True(t, in.Qualifies())
}

func TestProbeHover_NavDiffFallback(t *testing.T) {
	f := newFakeSession("https://apple.example.com/")
	f.serve(queryMenuState, []rawMenu{})
	f.visible = func() []crawler.VisibleElement {
		els := []crawler.VisibleElement{{Tag: "a", Text: "Store", Href: "https://apple.example.com/store", Y: 10}}
		if f.hovered == "//nav/a[1]" {
			els = append(els,
				crawler.VisibleElement{Tag: "a", Text: "Shop the Latest", Href: "https://apple.example.com/latest", Y: 120},
				crawler.VisibleElement{Tag: "a", Text: "Far below", Href: "https://apple.example.com/far", Y: 2000},
			)
		}
		return els
	}

	d := New(f, testDetectionConfig(), zaptest.NewLogger(t))
	in, err := d.ProbeHover(context.Background(), ElementInfo{Text: "Store", Locator: "//nav/a[1]", Location: Location{Y: 10, Width: 40, Height: 20}})
	require.NoError(t, err)
	require.NotNil(t, in)
	assert.Equal(t, MethodHoverNavDiff, in.Method)
	assert.Nil(t, in.MenuStructure)
	assert.Equal(t, []Link{{Text: "Shop the Latest", TargetURL: "https://apple.example.com/latest"}}, in.ClickableLinks())
}

func TestProbeHover_NothingRevealed(t *testing.T) {
	f := shopPage()
	d := New(f, testDetectionConfig(), zaptest.NewLogger(t))

	in, err := d.ProbeHover(context.Background(), ElementInfo{Text: "About", Locator: "//nav/ul/li[2]/a"})
	require.NoError(t, err)
	assert.Nil(t, in)
}

func TestProbeHover_ActionTimeout(t *testing.T) {
	f := shopPage()
	f.hoverErrs["//stale"] = context.DeadlineExceeded
	d := New(f, testDetectionConfig(), zaptest.NewLogger(t))

	in, err := d.ProbeHover(context.Background(), ElementInfo{Text: "Gone", Locator: "//stale"})
	assert.Nil(t, in)
	var timeout *crawler.ActionTimeoutError
	assert.ErrorAs(t, err, &timeout)
}

// confirmPage serves a button that opens a Confirm dialog without navigating.
func confirmPage() *fakeSession {
	f := newFakeSession("https://bank.example.com/")
	open := false
	f.onClick["//button[1]"] = func() { open = true }
	f.queries[queryModals] = func([]any) any {
		if open {
			return []rawModal{dialog("Confirm", "Cancel", "Continue")}
		}
		return []rawModal{}
	}
	return f
}

func TestProbePopup_Dialog(t *testing.T) {
	f := confirmPage()
	d := New(f, testDetectionConfig(), zaptest.NewLogger(t))

	in, err := d.ProbePopup(context.Background(), ElementInfo{Text: "Delete", Locator: "//button[1]"})
	require.NoError(t, err)
	require.NotNil(t, in)

	assert.True(t, in.PopupAppeared)
	assert.Equal(t, ActionClick, in.ActionType)
	assert.Equal(t, MethodClickPopup, in.Method)
	assert.Empty(t, in.URLAfter)
	require.NotNil(t, in.PopupInfo)
	assert.Equal(t, "Confirm", in.PopupInfo.Title)
	assert.Equal(t, []PopupButton{{Text: "Cancel", Href: ""}, {Text: "Continue", Href: ""}}, in.PopupInfo.Buttons)
	assert.Equal(t, CategoryPopupClick, in.Category())
}

func TestProbePopup_AlreadyOpen(t *testing.T) {
	f := confirmPage()
	d := New(f, testDetectionConfig(), zaptest.NewLogger(t))

	first, err := d.ProbePopup(context.Background(), ElementInfo{Text: "Delete", Locator: "//button[1]"})
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := d.ProbePopup(context.Background(), ElementInfo{Text: "Other", Locator: "//button[2]"})
	require.NoError(t, err)
	assert.Nil(t, second, "a dialog left open by an earlier probe is not credited")
}

func TestProbePopup_NavigationIsNotPopup(t *testing.T) {
	f := newFakeSession("https://news.example.com/")
	f.onClick["//a[1]"] = func() { f.url = "https://news.example.com/article" }
	f.queries[queryModals] = func([]any) any {
		if f.url != "https://news.example.com/" {
			return []rawModal{dialog("Loading")}
		}
		return []rawModal{}
	}

	d := New(f, testDetectionConfig(), zaptest.NewLogger(t))
	in, err := d.ProbePopup(context.Background(), ElementInfo{Text: "Read", Locator: "//a[1]"})
	require.NoError(t, err)
	assert.Nil(t, in)
	assert.Equal(t, []string{"https://news.example.com/"}, f.navigated, "page restored after navigation")
}

// leavingPage serves a link whose click navigates away to a page where the
// modal query breaks, and a button that opens a Confirm dialog.
func leavingPage() *fakeSession {
	const home = "https://site.example.com/"
	f := newFakeSession(home)
	open := false
	f.onClick["//a[1]"] = func() { f.url = "https://site.example.com/other" }
	f.onClick["//button[1]"] = func() { open = true }
	f.queries[queryModals] = func([]any) any {
		if f.url != home {
			return "execution context was destroyed"
		}
		if open {
			return []rawModal{dialog("Confirm", "Cancel", "Continue")}
		}
		return []rawModal{}
	}
	return f
}

func TestProbePopup_RestoresPageAfterFailure(t *testing.T) {
	f := leavingPage()
	d := New(f, testDetectionConfig(), zaptest.NewLogger(t))

	in, err := d.ProbePopup(context.Background(), ElementInfo{Text: "Read more", Locator: "//a[1]"})
	assert.Error(t, err)
	assert.Nil(t, in)
	assert.Equal(t, []string{"https://site.example.com/"}, f.navigated)
	assert.Equal(t, "https://site.example.com/", f.url)

	in, err = d.ProbePopup(context.Background(), ElementInfo{Text: "Open dialog", Locator: "//button[1]"})
	require.NoError(t, err)
	require.NotNil(t, in)
	assert.Equal(t, "Confirm", in.PopupInfo.Title)
	assert.Len(t, f.navigated, 1, "no restore when the URL never changed")
}

func TestProbePopup_NoPopup(t *testing.T) {
	f := newFakeSession("https://example.com/")
	d := New(f, testDetectionConfig(), zaptest.NewLogger(t))

	in, err := d.ProbePopup(context.Background(), ElementInfo{Text: "Nothing", Locator: "//button[9]"})
	require.NoError(t, err)
	assert.Nil(t, in)
	assert.Equal(t, []string{"//button[9]"}, f.clicked)
}

func TestDetectInitialPopup(t *testing.T) {
	t.Run("newsletter popup", func(t *testing.T) {
		f := newFakeSession("https://example.com/")
		f.serve(queryModals, []rawModal{dialog("Join our newsletter", "Subscribe", "No thanks")})

		in, err := New(f, testDetectionConfig(), zaptest.NewLogger(t)).DetectInitialPopup(context.Background(), "https://example.com/")
		require.NoError(t, err)
		require.NotNil(t, in)
		assert.Equal(t, ActionLoad, in.ActionType)
		assert.Equal(t, MethodAutoPopup, in.Method)
		assert.Equal(t, "//body", in.Trigger.Locator)
		assert.Equal(t, "page load popup", in.Trigger.Text)
		assert.Equal(t, CategoryLoadPopup, in.Category())
	})

	t.Run("navigation panel in a dialog", func(t *testing.T) {
		buttons := make([]string, 10)
		for i := range buttons {
			buttons[i] = "Category"
		}
		f := newFakeSession("https://example.com/")
		f.serve(queryModals, []rawModal{dialog("Menu", buttons...)})

		in, err := New(f, testDetectionConfig(), zaptest.NewLogger(t)).DetectInitialPopup(context.Background(), "https://example.com/")
		require.NoError(t, err)
		assert.Nil(t, in)
	})

	t.Run("nine buttons is still a popup", func(t *testing.T) {
		buttons := make([]string, 9)
		for i := range buttons {
			buttons[i] = "Option"
		}
		f := newFakeSession("https://example.com/")
		f.serve(queryModals, []rawModal{dialog("Choose", buttons...)})

		in, err := New(f, testDetectionConfig(), zaptest.NewLogger(t)).DetectInitialPopup(context.Background(), "https://example.com/")
		require.NoError(t, err)
		assert.NotNil(t, in)
	})

	t.Run("no popup", func(t *testing.T) {
		f := newFakeSession("https://example.com/")
		in, err := New(f, testDetectionConfig(), zaptest.NewLogger(t)).DetectInitialPopup(context.Background(), "https://example.com/")
		require.NoError(t, err)
		assert.Nil(t, in)
	})
}

func TestProbeHoverMutation(t *testing.T) {
	f := newFakeSession("https://example.com/")
	f.queries[queryMutationReveal] = func(args []any) any {
		if len(args) == 0 || args[0] != "//nav/a[1]" {
			return nil
		}
		return mutationReveal{
			Before: []rawAnchor{{Href: "https://example.com/mac", Text: "Mac", Opacity: 0}},
			After:  []rawAnchor{{Href: "https://example.com/mac", Text: "Mac", Opacity: 1}},
		}
	}
	d := New(f, testDetectionConfig(), zaptest.NewLogger(t))

	in, err := d.ProbeHoverMutation(context.Background(), ElementInfo{Text: "Store", Locator: "//nav/a[1]"})
	require.NoError(t, err)
	require.NotNil(t, in)
	assert.Equal(t, MethodHoverAdvanced, in.Method)
	assert.Equal(t, []Link{{Text: "Mac", TargetURL: "https://example.com/mac"}}, in.ClickableLinks())

	in, err = d.ProbeHoverMutation(context.Background(), ElementInfo{Text: "Gone", Locator: "//nav/a[9]"})
	require.NoError(t, err)
	assert.Nil(t, in)
}
