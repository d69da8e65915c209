// Package detector discovers hidden page interactions: hover-revealed menus,
// click-triggered popups and popups shown on page load.
//
// Every probe drives a single browser tab. A Session must only be used by one
// probe at a time, since each probe snapshots, acts and re-snapshots the same
// page state.
package detector

import (
	"context"
	"errors"
	"time"

	"github.com/v0xg/bddgen/internal/crawler"
)

// Session is the page surface the detector needs. *crawler.Browser
// implements it.
type Session interface {
	Navigate(ctx context.Context, url string) error
	Evaluate(ctx context.Context, q crawler.Query, out any, args ...any) error
	SnapshotVisibleElements(ctx context.Context) ([]crawler.VisibleElement, error)
	Hover(ctx context.Context, locator string, timeout time.Duration) error
	Click(ctx context.Context, locator string, timeout time.Duration) error
	CurrentURL(ctx context.Context) (string, error)
}

var _ Session = (*crawler.Browser)(nil)

// isSessionFatal reports errors that end the whole run rather than one
// candidate.
func isSessionFatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, crawler.ErrSessionClosed)
}

// wait pauses for d unless ctx ends first.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
