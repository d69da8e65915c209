package detector

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickModal(t *testing.T) {
	hidden := dialog("Hidden")
	hidden.Visibility = "hidden"
	transparent := dialog("Transparent")
	transparent.Opacity = "0"
	empty := dialog("Empty")
	empty.Width = 0

	confirm := dialog("  Confirm ", "Cancel", "", "Continue")
	link := PopupButton{Text: "Read policy", Href: "https://example.com/policy"}
	confirm.Buttons = append(confirm.Buttons, link)

	got := pickModal([]rawModal{hidden, transparent, empty, confirm, dialog("Later")})
	require.NotNil(t, got)
	assert.Equal(t, "Confirm", got.Title)
	assert.Equal(t, []PopupButton{
		{Text: "Cancel"},
		{Text: "Continue"},
		{Text: "Read policy", Href: "https://example.com/policy"},
	}, got.Buttons)

	assert.Nil(t, pickModal([]rawModal{hidden}))
	assert.Nil(t, pickModal(nil))
}

func TestClickableLinks(t *testing.T) {
	var links []rawLink
	for i := 0; i < 15; i++ {
		links = append(links, rawLink{Text: fmt.Sprintf("Item %d", i), Href: fmt.Sprintf("/item/%d", i%8)})
	}

	got := clickableLinks(links, 10, "Menu")
	assert.Len(t, got, 8, "first ten, deduplicated by href")
	assert.Equal(t, Link{Text: "Item 0", TargetURL: "/item/0"}, got[0])

	self := clickableLinks([]rawLink{{Text: "Shop", Href: "/shop"}, {Text: "New Arrivals", Href: "/new"}}, 10, "shop")
	assert.Equal(t, []Link{{Text: "New Arrivals", TargetURL: "/new"}}, self)
}

func TestRevealedMenu(t *testing.T) {
	f := newFakeSession("https://example.com/")
	closed := menuWithLinks(rawLink{Text: "Hidden", Href: "/hidden"})
	closed.Display = "none"
	f.serve(queryMenuContent, []rawMenuContent{
		closed,
		menuWithLinks(rawLink{Text: "Icon only", Href: ""}),
		menuWithLinks(rawLink{Text: "Shop", Href: "/shop"}, rawLink{Text: "New\n Arrivals", Href: "/new"}),
	})

	structure, links, err := revealedMenu(context.Background(), f, ElementInfo{Text: "Shop"}, 10)
	require.NoError(t, err)
	require.NotNil(t, structure)
	assert.Equal(t, []string{"Shop", "New Arrivals"}, structure.AllLinks)
	assert.Equal(t, MenuTypeDropdown, structure.MenuType)
	assert.Equal(t, []Link{{Text: "New Arrivals", TargetURL: "/new"}}, links)

	f.serve(queryMenuContent, []rawMenuContent{closed})
	structure, links, err = revealedMenu(context.Background(), f, ElementInfo{Text: "Shop"}, 10)
	require.NoError(t, err)
	assert.Nil(t, structure)
	assert.Nil(t, links)
}

func TestRevealedAnchors(t *testing.T) {
	before := []rawAnchor{
		{Href: "https://x.com/a", Text: "Alpha", Opacity: 0},
		{Href: "https://x.com/b", Text: "Beta", Opacity: 0},
	}
	after := []rawAnchor{
		{Href: "https://x.com/a", Text: "Alpha", Opacity: 1},
		{Href: "https://x.com/b", Text: "Beta", Opacity: 0.5},
		{Href: "https://x.com/c", Text: "Gamma", Opacity: 0},
		{Href: "https://x.com/a", Text: "Alpha dup", Opacity: 1},
		{Href: "https://x.com/d", Text: "Delta", Opacity: 1, AriaHidden: "true"},
	}

	got := revealedAnchors(before, after)
	assert.Equal(t, []Link{
		{Text: "Alpha", TargetURL: "https://x.com/a"},
		{Text: "Gamma", TargetURL: "https://x.com/c"},
		{Text: "Delta", TargetURL: "https://x.com/d"},
	}, got)
}
