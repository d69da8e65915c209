package detector

import (
	"context"
	"fmt"

	"github.com/v0xg/bddgen/internal/config"
	"go.uber.org/zap"
)

// Detector probes single candidates for qualifying state changes. Probes
// return (nil, nil) when nothing was detected and an error only for faults.
type Detector struct {
	session Session
	cfg     config.DetectionConfig
	logger  *zap.Logger
}

// New creates a detector over session.
func New(session Session, cfg config.DetectionConfig, logger *zap.Logger) *Detector {
	return &Detector{session: session, cfg: cfg, logger: logger.Named("detector")}
}

// DetectInitialPopup checks for a popup already showing after page load.
// Dialogs holding LoadPopupMaxButtons or more buttons are treated as site
// navigation rather than a popup.
func (d *Detector) DetectInitialPopup(ctx context.Context, pageURL string) (*Interaction, error) {
	popup, err := detectModal(ctx, d.session)
	if err != nil {
		return nil, fmt.Errorf("load popup probe: %w", err)
	}
	if popup == nil {
		return nil, nil
	}
	if len(popup.Buttons) >= d.cfg.LoadPopupMaxButtons {
		d.logger.Info("Load popup candidate looks like navigation, skipping",
			zap.Int("buttons", len(popup.Buttons)))
		return nil, nil
	}

	d.logger.Info("Popup detected on page load", zap.String("title", popup.Title))
	return &Interaction{
		Trigger: ElementInfo{
			Tag:        "body",
			Text:       "page load popup",
			Role:       "load",
			Locator:    "//body",
			Attributes: map[string]string{},
		},
		ActionType:       ActionLoad,
		Method:           MethodAutoPopup,
		RevealedElements: []ElementInfo{},
		URLBefore:        pageURL,
		PopupAppeared:    true,
		PopupInfo:        popup,
	}, nil
}

// ProbeHover hovers el and reports a revealed dropdown. A menu-container
// change is checked first; otherwise new links near the trigger count.
func (d *Detector) ProbeHover(ctx context.Context, el ElementInfo) (*Interaction, error) {
	urlBefore, err := d.session.CurrentURL(ctx)
	if err != nil {
		return nil, err
	}
	visibleBefore, err := d.session.SnapshotVisibleElements(ctx)
	if err != nil {
		return nil, err
	}
	stateBefore, err := readMenuState(ctx, d.session)
	if err != nil {
		return nil, err
	}

	if err := d.session.Hover(ctx, el.Locator, d.cfg.HoverActionTimeout); err != nil {
		return nil, err
	}
	if err := wait(ctx, d.cfg.SettleDelay); err != nil {
		return nil, err
	}

	stateAfter, err := readMenuState(ctx, d.session)
	if err != nil {
		return nil, err
	}

	if stateBefore.RevealedBy(stateAfter) {
		structure, links, err := revealedMenu(ctx, d.session, el, d.cfg.MenuLinkCap)
		if err != nil {
			return nil, err
		}
		in := &Interaction{
			Trigger:          el,
			ActionType:       ActionHover,
			Method:           MethodHoverMenu,
			RevealedElements: []ElementInfo{},
			MenuStructure:    structure,
			URLBefore:        urlBefore,
		}
		if len(links) > 0 {
			in.VisualChanges = &VisualChanges{ClickableLinks: links}
		}
		if in.Qualifies() {
			d.logger.Info("Dropdown appeared on hover",
				zap.String("candidate", el.Description()), zap.Int("links", len(links)))
			return in, nil
		}
	}

	visibleAfter, err := d.session.SnapshotVisibleElements(ctx)
	if err != nil {
		return nil, err
	}
	links := newNavLinks(visibleBefore, visibleAfter, el.Location.Y, d.cfg.NavDiffMaxDeltaY)
	if len(links) > 0 {
		d.logger.Info("Navigation links revealed on hover",
			zap.String("candidate", el.Description()), zap.Int("links", len(links)))
		return &Interaction{
			Trigger:          el,
			ActionType:       ActionHover,
			Method:           MethodHoverNavDiff,
			RevealedElements: []ElementInfo{},
			URLBefore:        urlBefore,
			VisualChanges:    &VisualChanges{ClickableLinks: links},
		}, nil
	}

	d.logger.Debug("No dropdown on hover", zap.String("candidate", el.Description()))
	return nil, nil
}

// ProbePopup clicks el and reports a popup that appeared without navigation.
// A popup seen together with a URL change is navigation. Once the click has
// happened the page is restored to the original URL on every return path.
func (d *Detector) ProbePopup(ctx context.Context, el ElementInfo) (in *Interaction, err error) {
	urlBefore, err := d.session.CurrentURL(ctx)
	if err != nil {
		return nil, err
	}
	// A popup still open from an earlier probe must not be credited to el.
	popupBefore, err := detectModal(ctx, d.session)
	if err != nil {
		return nil, err
	}

	if err := d.session.Click(ctx, el.Locator, d.cfg.ClickActionTimeout); err != nil {
		return nil, err
	}
	defer func() {
		if rerr := d.restoreURL(ctx, urlBefore); rerr != nil {
			if err == nil {
				in, err = nil, rerr
			} else {
				d.logger.Warn("Page not restored after failed probe",
					zap.String("candidate", el.Description()), zap.Error(rerr))
			}
		}
	}()
	if err := wait(ctx, d.cfg.SettleDelay); err != nil {
		return nil, err
	}

	popup, err := detectModal(ctx, d.session)
	if err != nil {
		return nil, err
	}
	urlAfter, err := d.session.CurrentURL(ctx)
	if err != nil {
		return nil, err
	}

	if urlAfter != urlBefore {
		if popup != nil {
			d.logger.Info("Popup seen with URL change, treating as navigation",
				zap.String("candidate", el.Description()), zap.String("url_after", urlAfter))
		}
		return nil, nil
	}

	if popup == nil || samePopup(popupBefore, popup) {
		d.logger.Debug("No popup after click", zap.String("candidate", el.Description()))
		return nil, nil
	}

	d.logger.Info("Popup appeared on click",
		zap.String("candidate", el.Description()), zap.String("title", popup.Title))
	return &Interaction{
		Trigger:          el,
		ActionType:       ActionClick,
		Method:           MethodClickPopup,
		RevealedElements: []ElementInfo{},
		URLBefore:        urlBefore,
		PopupAppeared:    true,
		PopupInfo:        popup,
	}, nil
}

// restoreURL navigates back to urlBefore when the tab has left it. A URL
// that cannot be read counts as having left.
func (d *Detector) restoreURL(ctx context.Context, urlBefore string) error {
	current, err := d.session.CurrentURL(ctx)
	if err == nil && current == urlBefore {
		return nil
	}
	if err := d.session.Navigate(ctx, urlBefore); err != nil {
		return fmt.Errorf("restoring %s after click: %w", urlBefore, err)
	}
	return nil
}

func samePopup(a, b *PopupInfo) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Selector == b.Selector && a.Title == b.Title && a.Content == b.Content
}
