package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/v0xg/bddgen/internal/detector"
)

const (
	defaultMaxTokens = 1024
	jsonTemperature  = 0.3
)

const systemPrompt = `You are a QA expert who writes behavior-driven test scenarios for web pages.

You will receive the context of one interaction discovered on a live page: the element that was hovered or clicked and what it revealed.

Output a single JSON object with:
- "feature_name": a short feature title
- "scenario_name": a short scenario title
- "steps": an array of Gherkin steps, each starting with Given, When, Then or And

Guidelines:
- Quote element texts, popup titles and URLs exactly as given
- Never use CSS selectors or XPath in steps
- Avoid generic phrases such as "button element" or "the element"
- Use at least one Given, one When and one Then step
- Word the expected outcomes the way a user of that kind of page (the page type) would`

const hoverPrompt = `Generate a hover test scenario.

CONTEXT:
- URL: %s
- Page Type: %s
- Element: %s
- Trigger Text: "%s"
- Revealed Elements: %d

Describe how to hover over the element, what becomes visible and what actions can be taken.

Return JSON format:
{
  "feature_name": "Validate [element] hover functionality",
  "scenario_name": "Verify [specific behavior]",
  "steps": [
    "Given the user is on \"%s\" page",
    "When the user hovers over the \"%s\"",
    "Then [expected outcome]"
  ]
}`

const popupPrompt = `Generate a popup test scenario that tests ALL button actions.

CONTEXT:
- URL: %s
- Page Type: %s
- Trigger Element: %s
- Trigger Text: "%s"
- Popup Title: "%s"
- Buttons: %s

REQUIREMENTS:
1. Test the Cancel/Close button if present and verify the popup closes
2. Test the Continue/Confirm button if present and verify the expected action
3. Use exact button names
4. Include the popup title in quotes

Return JSON format:
{
  "feature_name": "Validate [trigger] popup functionality",
  "scenario_name": "Verify popup behavior with [buttons]",
  "steps": [
    "Given the user is on \"%s\" page",
    "When the user clicks the \"%s\" button",
    "Then a popup should appear with the title \"%s\"",
    "When the user clicks the \"[Button]\" button",
    "Then [expected outcome]"
  ]
}`

// HoverPrompt builds the drafting prompt for a hover interaction. pageType
// is the classified category of the page, such as "ecommerce".
func HoverPrompt(pageURL, pageType string, in *detector.Interaction) string {
	rec := detector.NewPromptRecord(in)
	text := rec.Trigger.Text
	if text == "" {
		text = "element"
	}
	return fmt.Sprintf(hoverPrompt, pageURL, pageType, rec.Trigger.Description, text, len(rec.RevealedElements), pageURL, text)
}

// PopupPrompt builds the drafting prompt for a popup interaction.
func PopupPrompt(pageURL, pageType string, in *detector.Interaction) string {
	rec := detector.NewPromptRecord(in)
	text := rec.Trigger.Text
	if text == "" {
		text = "button"
	}
	var title string
	var buttons []string
	if rec.PopupInfo != nil {
		title = rec.PopupInfo.Title
		for _, b := range rec.PopupInfo.Buttons {
			buttons = append(buttons, b.Text)
		}
	}
	names := "None"
	if len(buttons) > 0 {
		names = strings.Join(buttons, ", ")
	}
	return fmt.Sprintf(popupPrompt, pageURL, pageType, rec.Trigger.Description, text, title, names, pageURL, text, title)
}

func withJSONInstruction(prompt string) string {
	return prompt + "\n\nRespond ONLY with valid JSON. No explanations, no markdown."
}

func maxTokensOrDefault(n int) int {
	if n <= 0 {
		return defaultMaxTokens
	}
	return n
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
