package detector

import (
	"context"
	"encoding/json"
	"time"

	"github.com/v0xg/bddgen/internal/crawler"
)

// fakeSession serves canned query results keyed by query name. Results are
// produced by closures so they can depend on what was hovered or clicked.
type fakeSession struct {
	url       string
	queries   map[string]func(args []any) any
	queryErrs map[string]error
	visible   func() []crawler.VisibleElement

	hoverErrs map[string]error
	clickErrs map[string]error
	onClick   map[string]func()

	hovered   string
	clicked   []string
	navigated []string
	evaluated []string
}

var _ Session = (*fakeSession)(nil)

func newFakeSession(url string) *fakeSession {
	return &fakeSession{
		url:       url,
		queries:   map[string]func([]any) any{},
		queryErrs: map[string]error{},
		hoverErrs: map[string]error{},
		clickErrs: map[string]error{},
		onClick:   map[string]func(){},
	}
}

// serve registers a static result for a query.
func (f *fakeSession) serve(name string, v any) {
	f.queries[name] = func([]any) any { return v }
}

func (f *fakeSession) Navigate(_ context.Context, url string) error {
	f.navigated = append(f.navigated, url)
	f.url = url
	return nil
}

// Evaluate round-trips the canned value through JSON like the browser does.
func (f *fakeSession) Evaluate(_ context.Context, q crawler.Query, out any, args ...any) error {
	f.evaluated = append(f.evaluated, q.Name)
	if err := f.queryErrs[q.Name]; err != nil {
		return &crawler.EvaluationError{Query: q.Name, Err: err}
	}
	var v any
	if fn, ok := f.queries[q.Name]; ok {
		v = fn(args)
	}
	if out == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (f *fakeSession) SnapshotVisibleElements(context.Context) ([]crawler.VisibleElement, error) {
	if f.visible == nil {
		return nil, nil
	}
	return f.visible(), nil
}

func (f *fakeSession) Hover(_ context.Context, locator string, timeout time.Duration) error {
	if err, ok := f.hoverErrs[locator]; ok {
		return &crawler.ActionTimeoutError{Action: "hover", Locator: locator, Timeout: timeout, Err: err}
	}
	f.hovered = locator
	return nil
}

func (f *fakeSession) Click(_ context.Context, locator string, timeout time.Duration) error {
	if err, ok := f.clickErrs[locator]; ok {
		return &crawler.ActionTimeoutError{Action: "click", Locator: locator, Timeout: timeout, Err: err}
	}
	f.clicked = append(f.clicked, locator)
	if fn, ok := f.onClick[locator]; ok {
		fn()
	}
	return nil
}

func (f *fakeSession) CurrentURL(context.Context) (string, error) {
	return f.url, nil
}

// Canned record builders.

func candidateAt(text, locator string, y float64) rawCandidate {
	return rawCandidate{
		Tag:        "a",
		Text:       text,
		Role:       "menuitem",
		Locator:    locator,
		Attributes: map[string]string{"id": "", "class": ""},
		X:          10,
		Y:          y,
		Width:      80,
		Height:     24,
	}
}

func visibleMenu(id, text string) rawMenu {
	return rawMenu{
		boxStyle:  boxStyle{Display: "block", Visibility: "visible", Opacity: "1", Width: 300, Height: 200},
		ID:        id,
		ClassName: "dropdown-menu",
		Text:      text,
	}
}

func menuWithLinks(links ...rawLink) rawMenuContent {
	return rawMenuContent{
		boxStyle: boxStyle{Display: "block", Visibility: "visible", Opacity: "1", Width: 300, Height: 200},
		Selector: `[role="menu"]`,
		Links:    links,
	}
}

func dialog(title string, buttons ...string) rawModal {
	m := rawModal{
		boxStyle: boxStyle{Display: "block", Visibility: "visible", Opacity: "1", Width: 500, Height: 300},
		Selector: `[role="dialog"]`,
		Title:    title,
		Content:  title,
	}
	for _, b := range buttons {
		m.Buttons = append(m.Buttons, PopupButton{Text: b})
	}
	return m
}
