package scenario

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/v0xg/bddgen/internal/detector"
)

var helpLinks = map[string]bool{"help": true, "support": true, "contact": true, "faq": true}

var (
	cancelWords = map[string]bool{"cancel": true, "close": true, "no": true}
	goWords     = map[string]bool{"continue": true, "yes": true, "ok": true, "confirm": true, "accept": true}
)

// navigationScenario builds the hover-then-click scenario for a menu whose
// links are known. It returns false when no link is suitable.
func navigationScenario(pageURL string, in *detector.Interaction) (Scenario, bool) {
	menu := in.Trigger.Text
	if menu == "" {
		menu = "navigation menu"
	}
	link, ok := primaryLink(in.ClickableLinks(), menu)
	if !ok {
		return Scenario{}, false
	}
	return Scenario{
		FeatureName:  "Validate navigation menu functionality",
		ScenarioName: "Verify navigation from menu to " + link.Text,
		Steps: []string{
			fmt.Sprintf("Given the user is on the %q page", pageURL),
			fmt.Sprintf("When the user hovers over the navigation menu %q", menu),
			fmt.Sprintf("And clicks the link %q from the dropdown", link.Text),
			fmt.Sprintf("Then the page URL should change to %q", link.TargetURL),
		},
		Type:       TypeHover,
		URL:        pageURL,
		Confidence: ConfidenceNavigation,
	}, true
}

// primaryLink picks the first link that is neither the menu itself nor a
// generic help link, unless the menu is the help menu.
func primaryLink(links []detector.Link, menu string) (detector.Link, bool) {
	menu = strings.ToLower(strings.TrimSpace(menu))
	for _, l := range links {
		text := strings.TrimSpace(l.Text)
		href := strings.TrimSpace(l.TargetURL)
		if text == "" || href == "" {
			continue
		}
		lower := strings.ToLower(text)
		if lower == menu {
			continue
		}
		if menu != "help" && helpLinks[lower] {
			continue
		}
		return detector.Link{Text: text, TargetURL: href}, true
	}
	return detector.Link{}, false
}

func hoverFallback(pageURL string, in *detector.Interaction) Scenario {
	trigger := in.Trigger.Text
	if trigger == "" {
		trigger = "navigation element"
	}
	tag := in.Trigger.Tag
	if tag == "" || tag == "a" {
		tag = "link"
	}
	return Scenario{
		FeatureName:  fmt.Sprintf("Validate %s hover functionality", trigger),
		ScenarioName: "Verify hover behavior on " + trigger,
		Steps: []string{
			fmt.Sprintf("Given the user is on %q page", pageURL),
			fmt.Sprintf("When the user hovers over the %q %s", trigger, tag),
			"Then a dropdown menu with additional options should appear",
		},
		Type:       TypeHover,
		URL:        pageURL,
		Confidence: ConfidenceFallback,
	}
}

// popupWorthy reports whether the popup has a title or a labelled button.
func popupWorthy(info *detector.PopupInfo) bool {
	if info == nil {
		return false
	}
	return strings.TrimSpace(info.Title) != "" || len(buttonNames(info)) > 0
}

func buttonNames(info *detector.PopupInfo) []string {
	var names []string
	for _, b := range info.Buttons {
		if t := strings.TrimSpace(b.Text); t != "" {
			names = append(names, t)
		}
	}
	return names
}

// classifyButtons returns the first dismissing and the first proceeding
// button of the popup.
func classifyButtons(buttons []detector.PopupButton) (cancel, proceed *detector.PopupButton) {
	for i := range buttons {
		b := &buttons[i]
		switch {
		case cancel == nil && hasWord(b.Text, cancelWords):
			cancel = b
		case proceed == nil && hasWord(b.Text, goWords):
			proceed = b
		}
	}
	return cancel, proceed
}

func hasWord(text string, words map[string]bool) bool {
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		if words[w] {
			return true
		}
	}
	return false
}

func popupFallback(pageURL string, in *detector.Interaction) Scenario {
	info := in.PopupInfo
	if info == nil {
		info = &detector.PopupInfo{}
	}
	title := strings.TrimSpace(info.Title)
	trigger := in.Trigger.Text
	if trigger == "" {
		trigger = "button"
	}

	appear := "Then a modal dialog should appear"
	if title != "" {
		appear = fmt.Sprintf("Then a popup should appear with the title %q", title)
	}

	var steps []string
	var open string
	if in.ActionType == detector.ActionLoad {
		steps = []string{
			fmt.Sprintf("Given the user navigates to %q", pageURL),
			"When the page finishes loading",
			appear,
		}
		open = "When the user reloads the page"
	} else {
		steps = []string{
			fmt.Sprintf("Given the user is on %q page", pageURL),
			fmt.Sprintf("When the user clicks the %q button", trigger),
			appear,
		}
		open = fmt.Sprintf("When the user clicks the %q button", trigger)
	}

	cancel, proceed := classifyButtons(info.Buttons)
	if cancel != nil {
		steps = append(steps,
			fmt.Sprintf("When the user clicks the %q button", strings.TrimSpace(cancel.Text)),
			"Then the popup should close",
			"And the user should remain on the same page",
		)
	}
	if proceed != nil {
		if cancel != nil {
			steps = append(steps, open)
			if title != "" {
				steps = append(steps, appear)
			}
		}
		steps = append(steps, fmt.Sprintf("When the user clicks the %q button", strings.TrimSpace(proceed.Text)))
		if proceed.Href != "" {
			steps = append(steps, fmt.Sprintf("Then the page should navigate to %q", proceed.Href))
		} else {
			steps = append(steps, "Then the popup should close")
		}
	}

	feature := fmt.Sprintf("Validate %s popup functionality", trigger)
	name := "Verify popup behavior when clicking " + trigger
	if in.ActionType == detector.ActionLoad {
		feature = "Validate page load popup functionality"
		name = "Verify popup shown on page load"
		if title != "" {
			name = fmt.Sprintf("Verify %q popup shown on page load", title)
		}
	}
	return Scenario{
		FeatureName:  feature,
		ScenarioName: name,
		Steps:        steps,
		Type:         TypePopup,
		URL:          pageURL,
		Confidence:   ConfidenceFallback,
	}
}
