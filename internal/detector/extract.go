package detector

import (
	"context"
	"strings"
)

// Menu types and layouts reported in MenuStructure.
const (
	MenuTypeDropdown = "dropdown"
	LayoutSingleCol  = "single-column"
)

// detectModal returns the first visible modal in selector priority order, or
// nil when none is showing.
func detectModal(ctx context.Context, s Session) (*PopupInfo, error) {
	var modals []rawModal
	if err := s.Evaluate(ctx, modalsQuery, &modals); err != nil {
		return nil, err
	}
	return pickModal(modals), nil
}

func pickModal(modals []rawModal) *PopupInfo {
	for _, m := range modals {
		if !m.shown() || !m.opaque() || m.Width <= 0 || m.Height <= 0 {
			continue
		}
		buttons := make([]PopupButton, 0, len(m.Buttons))
		for _, b := range m.Buttons {
			text := collapseSpace(b.Text)
			if text == "" {
				continue
			}
			buttons = append(buttons, PopupButton{Text: text, Href: b.Href, Class: b.Class})
		}
		return &PopupInfo{
			Title:    collapseSpace(m.Title),
			Content:  strings.TrimSpace(m.Content),
			Buttons:  buttons,
			Selector: m.Selector,
		}
	}
	return nil
}

// revealedMenu re-queries menu containers after a confirmed reveal and
// returns the structure of the first visible one with links, plus its
// clickable links. Both are nil when no container has a usable link.
func revealedMenu(ctx context.Context, s Session, trigger ElementInfo, linkCap int) (*MenuStructure, []Link, error) {
	var menus []rawMenuContent
	if err := s.Evaluate(ctx, menuContentQuery, &menus); err != nil {
		return nil, nil, err
	}

	links := pickMenuLinks(menus)
	if len(links) == 0 {
		return nil, nil, nil
	}

	all := make([]string, 0, len(links))
	for _, l := range links {
		all = append(all, l.Text)
	}
	structure := &MenuStructure{
		Sections: []MenuSection{},
		AllLinks: all,
		MenuType: MenuTypeDropdown,
		Layout:   LayoutSingleCol,
	}
	return structure, clickableLinks(links, linkCap, trigger.Text), nil
}

// pickMenuLinks returns the labelled links of the first visible menu that
// has any.
func pickMenuLinks(menus []rawMenuContent) []rawLink {
	for _, m := range menus {
		if !m.shown() || m.Width <= minMenuSide || m.Height <= minMenuSide {
			continue
		}
		var links []rawLink
		for _, l := range m.Links {
			text := collapseSpace(l.Text)
			if text == "" || l.Href == "" {
				continue
			}
			links = append(links, rawLink{Text: text, Href: l.Href})
		}
		if len(links) > 0 {
			return links
		}
	}
	return nil
}

// clickableLinks takes the first linkCap links, dedupes them by href and
// drops the self-link whose text matches the trigger label.
func clickableLinks(links []rawLink, linkCap int, triggerLabel string) []Link {
	if linkCap >= 0 && len(links) > linkCap {
		links = links[:linkCap]
	}
	self := normalizeLabel(triggerLabel)

	seen := make(map[string]struct{}, len(links))
	var out []Link
	for _, l := range links {
		text := strings.TrimSpace(l.Text)
		if text == "" || l.Href == "" {
			continue
		}
		if _, dup := seen[l.Href]; dup {
			continue
		}
		seen[l.Href] = struct{}{}
		if self != "" && normalizeLabel(text) == self {
			continue
		}
		out = append(out, Link{Text: text, TargetURL: l.Href})
	}
	return out
}
