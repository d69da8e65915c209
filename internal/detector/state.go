package detector

import (
	"context"
	"strconv"
	"strings"

	"github.com/v0xg/bddgen/internal/crawler"
)

// minMenuSide is the smallest width and height of a container that counts
// as a visible menu.
const minMenuSide = 20

// MenuState fingerprints the visible menu-like containers on the page.
type MenuState struct {
	Count     int
	Signature string
}

// RevealedBy reports whether after shows a newly revealed dropdown: more
// visible menus, or the same non-zero number with different content.
func (s MenuState) RevealedBy(after MenuState) bool {
	if after.Count > s.Count {
		return true
	}
	return after.Count >= 1 && after.Signature != s.Signature
}

// menuStateOf builds the state from raw containers, keeping only visible ones
// in query order.
func menuStateOf(menus []rawMenu) MenuState {
	parts := make([]string, 0, len(menus))
	for _, m := range menus {
		if !m.shown() || !m.opaque() || m.Width <= minMenuSide || m.Height <= minMenuSide {
			continue
		}
		parts = append(parts, m.ID+"|"+m.ClassName+"|"+m.Text)
	}
	return MenuState{Count: len(parts), Signature: strings.Join(parts, "||")}
}

func readMenuState(ctx context.Context, s Session) (MenuState, error) {
	var menus []rawMenu
	if err := s.Evaluate(ctx, menuStateQuery, &menus); err != nil {
		return MenuState{}, err
	}
	return menuStateOf(menus), nil
}

func (b boxStyle) shown() bool {
	return b.Display != "none" && b.Visibility != "hidden"
}

// opaque reports a computed opacity other than zero. Unparseable values
// count as opaque.
func (b boxStyle) opaque() bool {
	if b.Opacity == "" {
		return true
	}
	v, err := strconv.ParseFloat(b.Opacity, 64)
	return err != nil || v != 0
}

// newNavLinks diffs two visible-element snapshots and returns anchors that
// appeared after the action, are labelled, and lie between the top of the
// viewport and maxDeltaY below the trigger. Links are unique by href.
func newNavLinks(before, after []crawler.VisibleElement, triggerY, maxDeltaY float64) []Link {
	type key struct{ href, text string }
	existing := make(map[key]struct{}, len(before))
	for _, el := range before {
		href, text := strings.TrimSpace(el.Href), strings.TrimSpace(el.Text)
		if href != "" && text != "" {
			existing[key{href, text}] = struct{}{}
		}
	}

	seen := make(map[string]struct{})
	var links []Link
	for _, el := range after {
		href, text := strings.TrimSpace(el.Href), strings.TrimSpace(el.Text)
		if href == "" || text == "" {
			continue
		}
		if _, ok := existing[key{href, text}]; ok {
			continue
		}
		if el.Y < 0 || el.Y > triggerY+maxDeltaY {
			continue
		}
		if _, dup := seen[href]; dup {
			continue
		}
		seen[href] = struct{}{}
		links = append(links, Link{Text: text, TargetURL: href})
	}
	return links
}
