package detector

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

const (
	// Call-to-action candidates sit between the header band and the lower
	// part of the viewport.
	ctaTopMinPx    = 80
	ctaBottomRatio = 0.85

	// mutationWaitMs is how long the mutation observer collects changes
	// after the synthetic mouseover.
	mutationWaitMs = 800

	// An anchor that already existed counts as revealed once it is fully
	// opaque and not aria-hidden.
	revealedOpacity = 0.95
)

// ProbeHoverMutation fires a synthetic mouseover on el inside the page and
// reports anchors whose class, style or aria-hidden changed in response.
func (d *Detector) ProbeHoverMutation(ctx context.Context, el ElementInfo) (*Interaction, error) {
	urlBefore, err := d.session.CurrentURL(ctx)
	if err != nil {
		return nil, err
	}

	var result *mutationReveal
	if err := d.session.Evaluate(ctx, mutationRevealQuery, &result, el.Locator, mutationWaitMs); err != nil {
		return nil, err
	}
	if result == nil {
		d.logger.Debug("Mutation probe trigger not found", zap.String("candidate", el.Description()))
		return nil, nil
	}

	links := revealedAnchors(result.Before, result.After)
	if len(links) == 0 {
		return nil, nil
	}

	d.logger.Info("Links revealed by mouseover",
		zap.String("candidate", el.Description()), zap.Int("links", len(links)))
	return &Interaction{
		Trigger:          el,
		ActionType:       ActionHover,
		Method:           MethodHoverAdvanced,
		RevealedElements: []ElementInfo{},
		URLBefore:        urlBefore,
		VisualChanges:    &VisualChanges{ClickableLinks: links},
	}, nil
}

// revealedAnchors returns the changed anchors that are new, or that existed
// before but are now fully shown. Links are unique by href.
func revealedAnchors(before, after []rawAnchor) []Link {
	type key struct{ href, text string }
	existing := make(map[key]struct{}, len(before))
	for _, a := range before {
		href, text := strings.TrimSpace(a.Href), strings.TrimSpace(a.Text)
		if href != "" && text != "" {
			existing[key{href, text}] = struct{}{}
		}
	}

	seen := make(map[string]struct{})
	var links []Link
	for _, a := range after {
		href, text := strings.TrimSpace(a.Href), collapseSpace(a.Text)
		if href == "" || text == "" {
			continue
		}
		if _, ok := existing[key{href, strings.TrimSpace(a.Text)}]; ok {
			if a.Opacity < revealedOpacity || strings.TrimSpace(a.AriaHidden) != "" {
				continue
			}
		}
		if _, dup := seen[href]; dup {
			continue
		}
		seen[href] = struct{}{}
		links = append(links, Link{Text: text, TargetURL: href})
	}
	return links
}
