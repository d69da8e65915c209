package detector

import (
	"fmt"
	"strings"
)

// ActionType is the user action that produced an interaction.
type ActionType string

const (
	ActionHover ActionType = "hover"
	ActionClick ActionType = "click"
	ActionLoad  ActionType = "load"
)

// Category is the definitive classification of an interaction.
type Category string

const (
	CategoryHover      Category = "hover"
	CategoryPopupClick Category = "popup-click"
	CategoryLoadPopup  Category = "load-popup"
	CategoryNone       Category = "none"
)

// Detection methods, recorded on each interaction for diagnostics.
const (
	MethodHoverMenu     = "hover-menu"
	MethodHoverNavDiff  = "hover-nav-diff"
	MethodHoverAdvanced = "hover-advanced"
	MethodClickPopup    = "click-popup"
	MethodAutoPopup     = "auto-popup"
)

// Location is an element's bounding box in viewport coordinates.
type Location struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ElementInfo is a located, visible candidate element.
type ElementInfo struct {
	Tag        string            `json:"tag"`
	Text       string            `json:"text"`
	Role       string            `json:"role"`
	Locator    string            `json:"locator"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Location   Location          `json:"location"`
}

// Description returns a human-readable label: the quoted text, else the
// quoted aria-label, else the role.
func (e ElementInfo) Description() string {
	if e.Text != "" {
		return fmt.Sprintf("%q", e.Text)
	}
	if label := e.Attributes["aria-label"]; label != "" {
		return fmt.Sprintf("%q", label)
	}
	return e.Role + " element"
}

// Visible reports whether the element has a non-empty box.
func (e ElementInfo) Visible() bool {
	return e.Location.Width > 0 && e.Location.Height > 0
}

// MenuSection is a labelled group of links inside a revealed menu.
type MenuSection struct {
	Label string   `json:"label"`
	Links []string `json:"links"`
}

// MenuStructure describes a revealed dropdown.
type MenuStructure struct {
	Sections []MenuSection `json:"sections"`
	AllLinks []string      `json:"all_links"`
	MenuType string        `json:"menu_type"`
	Layout   string        `json:"layout"`
}

// Link is a navigable link revealed by an interaction.
type Link struct {
	Text      string `json:"text"`
	TargetURL string `json:"target_url"`
}

// PopupButton is an actionable element inside a popup. Href is set for
// anchors only.
type PopupButton struct {
	Text  string `json:"text"`
	Href  string `json:"href"`
	Class string `json:"class,omitempty"`
}

// PopupInfo is the content extracted from a visible modal or dialog.
type PopupInfo struct {
	Title    string        `json:"title"`
	Content  string        `json:"content,omitempty"`
	Buttons  []PopupButton `json:"buttons"`
	Selector string        `json:"selector,omitempty"`
}

// VisualChanges holds content revealed without an explicit menu container.
type VisualChanges struct {
	ClickableLinks []Link `json:"clickable_links"`
}

// Interaction is one discovered hidden behavior.
type Interaction struct {
	Trigger          ElementInfo    `json:"trigger_element"`
	ActionType       ActionType     `json:"action_type"`
	Method           string         `json:"interaction_method"`
	RevealedElements []ElementInfo  `json:"revealed_elements"`
	MenuStructure    *MenuStructure `json:"menu_structure,omitempty"`
	URLBefore        string         `json:"url_before"`
	URLAfter         string         `json:"url_after,omitempty"`
	PopupAppeared    bool           `json:"popup_appeared"`
	PopupInfo        *PopupInfo     `json:"popup_info,omitempty"`
	VisualChanges    *VisualChanges `json:"visual_changes,omitempty"`
}

// URLChanged reports whether the action navigated away.
func (i *Interaction) URLChanged() bool {
	return i.URLAfter != "" && i.URLAfter != i.URLBefore
}

// ClickableLinks returns the revealed links, or nil.
func (i *Interaction) ClickableLinks() []Link {
	if i.VisualChanges == nil {
		return nil
	}
	return i.VisualChanges.ClickableLinks
}

// Qualifies reports whether the interaction is a genuine discovery: a popup,
// a menu structure or revealed links, and never a popup that navigated.
func (i *Interaction) Qualifies() bool {
	if i == nil {
		return false
	}
	if i.PopupAppeared && i.URLChanged() {
		return false
	}
	return i.PopupAppeared || i.MenuStructure != nil || len(i.ClickableLinks()) > 0
}

// Category classifies a qualifying interaction.
func (i *Interaction) Category() Category {
	if !i.Qualifies() {
		return CategoryNone
	}
	switch {
	case i.ActionType == ActionHover:
		return CategoryHover
	case i.PopupAppeared && i.ActionType == ActionLoad:
		return CategoryLoadPopup
	case i.PopupAppeared:
		return CategoryPopupClick
	}
	return CategoryNone
}

// normalizeLabel collapses whitespace and lowercases a label for comparison.
func normalizeLabel(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// collapseSpace joins whitespace runs with single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
