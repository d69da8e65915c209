package crawler

// Query is a named in-page script. JS must be a function expression; its
// return value is decoded from JSON into the caller's destination.
type Query struct {
	Name string
	JS   string
}

// VisibleElement is one entry of a visible-element snapshot.
type VisibleElement struct {
	Tag       string  `json:"tag"`
	Text      string  `json:"text"`
	ID        string  `json:"id"`
	ClassName string  `json:"className"`
	Href      string  `json:"href"`
	Role      string  `json:"role"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
}

// VisibleElementsQuery lists every laid-out, non-hidden element that
// intersects the viewport vertically.
var VisibleElementsQuery = Query{
	Name: "visible-elements",
	JS: `() => {
		const elements = [];
		const viewportHeight = window.innerHeight || document.documentElement.clientHeight || 0;

		document.querySelectorAll('*').forEach(el => {
			const rect = el.getBoundingClientRect();
			const styles = window.getComputedStyle(el);

			if (rect.width <= 0 || rect.height <= 0) return;
			if (styles.display === 'none' || styles.visibility === 'hidden') return;
			if (rect.bottom < 0 || rect.top > viewportHeight) return;

			const tag = el.tagName.toLowerCase();
			elements.push({
				tag: tag,
				text: (el.innerText || '').trim().substring(0, 80),
				id: el.id || '',
				className: typeof el.className === 'string' ? el.className : (el.getAttribute('class') || ''),
				href: (tag === 'a' && el.href) ? String(el.href) : '',
				role: el.getAttribute('role') || '',
				x: rect.x,
				y: rect.y,
				width: rect.width,
				height: rect.height
			});
		});
		return elements;
	}`,
}
