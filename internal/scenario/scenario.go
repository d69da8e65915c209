// Package scenario converts discovered interactions into validated BDD
// scenarios, drafting with a language model where one is configured and
// falling back to deterministic templates otherwise.
package scenario

import "github.com/v0xg/bddgen/internal/detector"

// Type is the interaction family a scenario was built from.
type Type string

const (
	TypeHover Type = "hover"
	TypePopup Type = "popup"
	TypeClick Type = "click"
	TypeOther Type = "other"
)

// Confidence levels by how a scenario was produced.
const (
	ConfidenceNavigation = 0.9
	ConfidenceDrafted    = 0.8
	ConfidenceFallback   = 0.5
)

// Scenario is one Gherkin scenario under its own feature.
type Scenario struct {
	FeatureName  string   `json:"feature_name"`
	ScenarioName string   `json:"scenario_name"`
	Steps        []string `json:"steps"`
	Type         Type     `json:"scenario_type"`
	URL          string   `json:"url"`
	Confidence   float64  `json:"confidence"`
}

// Buckets groups interactions by family.
type Buckets struct {
	Hover []*detector.Interaction
	Popup []*detector.Interaction
	Click []*detector.Interaction
	Other []*detector.Interaction
}

// Classify splits interactions into hover, popup, click and other buckets.
func Classify(ins []*detector.Interaction) Buckets {
	var b Buckets
	for _, in := range ins {
		switch {
		case in == nil:
			continue
		case in.ActionType == detector.ActionHover:
			b.Hover = append(b.Hover, in)
		case in.PopupAppeared:
			b.Popup = append(b.Popup, in)
		case in.ActionType == detector.ActionClick:
			b.Click = append(b.Click, in)
		default:
			b.Other = append(b.Other, in)
		}
	}
	return b
}
