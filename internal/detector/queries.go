package detector

import "github.com/v0xg/bddgen/internal/crawler"

// In-page queries only collect raw records. Visibility thresholds, label caps
// and position rules are applied in Go by the scanner and probes.

// helpersJS is prepended to every query body.
const helpersJS = `
	function getXPath(el) {
		if (!el) return '';
		if (el.id && el.id.indexOf('"') === -1) return '//*[@id="' + el.id + '"]';
		if (el === document.body) return '/html/body';
		const parent = el.parentElement;
		if (!parent) return '';
		const parentPath = getXPath(parent);
		if (!parentPath) return '';
		let ix = 0;
		for (const sib of parent.children) {
			if (sib === el) return parentPath + '/' + el.tagName.toLowerCase() + '[' + (ix + 1) + ']';
			if (sib.tagName === el.tagName) ix++;
		}
		return '';
	}
	function className(el) {
		return typeof el.className === 'string' ? el.className : (el.getAttribute('class') || '');
	}
	function isHidden(el) {
		const s = window.getComputedStyle(el);
		return s.display === 'none' || s.visibility === 'hidden';
	}
	function candidate(el, role, attributes) {
		const r = el.getBoundingClientRect();
		return {
			tag: el.tagName.toLowerCase(),
			text: (el.textContent || '').trim().substring(0, 500),
			role: role,
			locator: getXPath(el),
			attributes: attributes,
			x: r.x,
			y: r.y,
			width: r.width,
			height: r.height,
			hidden: isHidden(el)
		};
	}
	function visibility(el) {
		const s = window.getComputedStyle(el);
		const r = el.getBoundingClientRect();
		return {
			display: s.display,
			visibility: s.visibility,
			opacity: s.opacity || '1',
			width: r.width,
			height: r.height
		};
	}
`

func inPage(body string) string {
	return "() => {" + helpersJS + body + "}"
}

func inPageArgs(params, body string) string {
	return "(" + params + ") => {" + helpersJS + body + "}"
}

// Query names. Tests key canned results by these.
const (
	queryAriaTriggers     = "aria-triggers"
	queryNavTriggers      = "nav-triggers"
	queryNavTriggersLoose = "nav-triggers-loose"
	queryCSSTriggers      = "css-triggers"
	queryModalTriggers    = "modal-triggers"
	queryExternalLinks    = "external-links"
	queryCTACandidates    = "cta-candidates"
	queryMenuState        = "menu-state"
	queryMenuContent      = "menu-content"
	queryModals           = "modals"
	queryMutationReveal   = "mutation-reveal"
)

var ariaTriggersQuery = crawler.Query{Name: queryAriaTriggers, JS: inPage(`
	const out = [];
	document.querySelectorAll('[aria-haspopup="true"], [aria-expanded]').forEach(el => {
		out.push(candidate(el, el.getAttribute('role') || 'button', {
			'id': el.id || '',
			'class': className(el),
			'aria-label': el.getAttribute('aria-label') || '',
			'aria-haspopup': el.getAttribute('aria-haspopup') || '',
			'aria-expanded': el.getAttribute('aria-expanded') || ''
		}));
	});
	return out;
`)}

// navTriggersQuery returns top-level navigation items whose subtree holds a
// nested menu.
var navTriggersQuery = crawler.Query{Name: queryNavTriggers, JS: inPage(`
	const out = [];
	document.querySelectorAll('nav, [role="navigation"], header nav').forEach(nav => {
		nav.querySelectorAll(':scope > ul > li, :scope > div > a, :scope > div > button').forEach(item => {
			if (!item.querySelector('ul, [role="menu"], .dropdown-menu, .submenu')) return;
			const trigger = item.querySelector('a, button') || item;
			out.push(candidate(trigger, 'menuitem', {
				'id': trigger.id || '',
				'class': className(trigger),
				'aria-label': trigger.getAttribute('aria-label') || '',
				'href': trigger.href ? String(trigger.href) : ''
			}));
		});
	});
	return out;
`)}

var navTriggersLooseQuery = crawler.Query{Name: queryNavTriggersLoose, JS: inPage(`
	const out = [];
	document.querySelectorAll('nav, [role="navigation"], header nav').forEach(nav => {
		nav.querySelectorAll('a, button, [role="button"]').forEach(trigger => {
			out.push(candidate(trigger, trigger.getAttribute('role') || 'menuitem', {
				'id': trigger.id || '',
				'class': className(trigger),
				'aria-label': trigger.getAttribute('aria-label') || '',
				'href': trigger.href ? String(trigger.href) : ''
			}));
		});
	});
	return out;
`)}

var cssTriggersQuery = crawler.Query{Name: queryCSSTriggers, JS: inPage(`
	const out = [];
	const patterns = [
		'[class*="dropdown"]',
		'[class*="has-submenu"]',
		'[class*="has-dropdown"]',
		'[class*="menu-item-has-children"]'
	];
	patterns.forEach(pattern => {
		document.querySelectorAll(pattern).forEach(el => {
			const trigger = el.querySelector('a, button, span') || el;
			out.push(candidate(trigger, 'menuitem', {
				'id': trigger.id || '',
				'class': className(trigger),
				'aria-label': trigger.getAttribute('aria-label') || ''
			}));
		});
	});
	return out;
`)}

var modalTriggersQuery = crawler.Query{Name: queryModalTriggers, JS: inPage(`
	const out = [];
	const selectors = [
		'button[data-toggle="modal"]',
		'[data-target*="modal"]',
		'a[href*="#modal"]',
		'.modal-trigger',
		'[onclick*="modal"]',
		'a[data-modal]',
		'button[data-modal]',
		'a[role="button"]',
		'button[role="button"]'
	];
	selectors.forEach(selector => {
		document.querySelectorAll(selector).forEach(el => {
			out.push(candidate(el, 'button', {
				'id': el.id || '',
				'class': className(el)
			}));
		});
	});
	return out;
`)}

var externalLinksQuery = crawler.Query{Name: queryExternalLinks, JS: inPage(`
	const anchors = [];
	document.querySelectorAll('a[href]').forEach(a => {
		anchors.push(candidate(a, 'link', {
			'id': a.id || '',
			'class': className(a),
			'href': a.href ? String(a.href) : ''
		}));
	});
	return {
		pageUrl: window.location.href,
		viewportHeight: window.innerHeight || 0,
		candidates: anchors
	};
`)}

var ctaCandidatesQuery = crawler.Query{Name: queryCTACandidates, JS: inPage(`
	const out = [];
	const selectors = ['button', 'a[role="button"]', 'a.button', '.btn', '.cta', '.cta-button'];
	document.querySelectorAll(selectors.join(',')).forEach(el => {
		out.push(candidate(el, el.getAttribute('role') || 'button', {
			'id': el.id || '',
			'class': className(el)
		}));
	});
	return {
		pageUrl: window.location.href,
		viewportHeight: window.innerHeight || 0,
		candidates: out
	};
`)}

// menuStateQuery lists every menu-like container. A container matching more
// than one selector is listed once per match.
var menuStateQuery = crawler.Query{Name: queryMenuState, JS: inPage(`
	const selectors = [
		'[role="menu"]',
		'.dropdown-menu',
		'.submenu',
		'ul[class*="sub"]',
		'[class*="dropdown"][style*="display"][style*="block"]'
	];
	const out = [];
	selectors.forEach(selector => {
		document.querySelectorAll(selector).forEach(menu => {
			out.push(Object.assign(visibility(menu), {
				id: menu.id || '',
				className: className(menu),
				text: (menu.innerText || '').trim().substring(0, 300)
			}));
		});
	});
	return out;
`)}

var menuContentQuery = crawler.Query{Name: queryMenuContent, JS: inPage(`
	const selectors = ['[role="menu"]', '.dropdown-menu', '.submenu', 'ul[class*="sub"]'];
	const out = [];
	selectors.forEach(selector => {
		document.querySelectorAll(selector).forEach(menu => {
			const links = [];
			menu.querySelectorAll('a').forEach(link => {
				links.push({
					text: (link.textContent || '').trim(),
					href: link.href ? String(link.href) : ''
				});
			});
			out.push(Object.assign(visibility(menu), { selector: selector, links: links }));
		});
	});
	return out;
`)}

// modalsQuery lists dialog-like elements in selector priority order.
var modalsQuery = crawler.Query{Name: queryModals, JS: inPage(`
	const selectors = [
		'[role="dialog"]',
		'[role="alertdialog"]',
		'dialog',
		'.modal',
		'.popup',
		'.dialog',
		'[class*="modal"]',
		'[class*="popup"]',
		'[class*="dialog"]',
		'[data-modal]',
		'[data-testid*="modal"]'
	];
	const out = [];
	selectors.forEach(selector => {
		document.querySelectorAll(selector).forEach(modal => {
			const titleEl = modal.querySelector('h1, h2, h3, [role="heading"]');
			const buttons = [];
			modal.querySelectorAll('button, [role="button"], a').forEach(btn => {
				const tag = btn.tagName.toLowerCase();
				buttons.push({
					text: (btn.innerText || '').trim(),
					class: className(btn),
					href: tag === 'a' && btn.href ? String(btn.href) : ''
				});
			});
			out.push(Object.assign(visibility(modal), {
				selector: selector,
				title: titleEl ? (titleEl.innerText || '').trim() : '',
				content: (modal.innerText || '').trim().substring(0, 200),
				buttons: buttons
			}));
		});
	});
	return out;
`)}

// mutationRevealQuery dispatches a synthetic mouseover on the element at
// xpath and reports the anchors whose class, style or aria-hidden changed
// within waitMs.
var mutationRevealQuery = crawler.Query{Name: queryMutationReveal, JS: inPageArgs("xpath, waitMs", `
	function snapshot(els) {
		const out = [];
		els.forEach(el => {
			if (!(el instanceof HTMLAnchorElement)) return;
			const r = el.getBoundingClientRect();
			const s = window.getComputedStyle(el);
			out.push({
				href: el.href || '',
				text: (el.textContent || '').trim(),
				x: r.x,
				y: r.y,
				opacity: parseFloat(s.opacity || '1'),
				ariaHidden: el.getAttribute('aria-hidden') || ''
			});
		});
		return out;
	}

	const trigger = document.evaluate(xpath, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
	if (!trigger) return null;

	const before = snapshot(Array.from(document.querySelectorAll('a')));

	return new Promise(resolve => {
		const changed = new Set();
		const observer = new MutationObserver(muts => {
			muts.forEach(m => {
				const t = m.target;
				if (t instanceof HTMLElement && t.tagName.toLowerCase() === 'a') changed.add(t);
			});
		});
		observer.observe(document.body, {
			attributes: true,
			childList: true,
			subtree: true,
			attributeFilter: ['class', 'style', 'aria-hidden']
		});
		trigger.dispatchEvent(new MouseEvent('mouseover', { bubbles: true, cancelable: true, view: window }));
		setTimeout(() => {
			observer.disconnect();
			resolve({ before: before, after: snapshot(Array.from(changed)) });
		}, waitMs);
	});
`)}

// rawCandidate is the record produced by the candidate queries.
type rawCandidate struct {
	Tag        string            `json:"tag"`
	Text       string            `json:"text"`
	Role       string            `json:"role"`
	Locator    string            `json:"locator"`
	Attributes map[string]string `json:"attributes"`
	X          float64           `json:"x"`
	Y          float64           `json:"y"`
	Width      float64           `json:"width"`
	Height     float64           `json:"height"`
	Hidden     bool              `json:"hidden"`
}

func (c rawCandidate) element() ElementInfo {
	return ElementInfo{
		Tag:        c.Tag,
		Text:       collapseSpace(c.Text),
		Role:       c.Role,
		Locator:    c.Locator,
		Attributes: c.Attributes,
		Location:   Location{X: c.X, Y: c.Y, Width: c.Width, Height: c.Height},
	}
}

// pageCandidates wraps candidates with the page context needed to filter
// them by host or viewport position.
type pageCandidates struct {
	PageURL        string         `json:"pageUrl"`
	ViewportHeight float64        `json:"viewportHeight"`
	Candidates     []rawCandidate `json:"candidates"`
}

// boxStyle carries the computed visibility of a container.
type boxStyle struct {
	Display    string  `json:"display"`
	Visibility string  `json:"visibility"`
	Opacity    string  `json:"opacity"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
}

type rawMenu struct {
	boxStyle
	ID        string `json:"id"`
	ClassName string `json:"className"`
	Text      string `json:"text"`
}

type rawLink struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

type rawMenuContent struct {
	boxStyle
	Selector string    `json:"selector"`
	Links    []rawLink `json:"links"`
}

type rawModal struct {
	boxStyle
	Selector string        `json:"selector"`
	Title    string        `json:"title"`
	Content  string        `json:"content"`
	Buttons  []PopupButton `json:"buttons"`
}

type rawAnchor struct {
	Href       string  `json:"href"`
	Text       string  `json:"text"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Opacity    float64 `json:"opacity"`
	AriaHidden string  `json:"ariaHidden"`
}

type mutationReveal struct {
	Before []rawAnchor `json:"before"`
	After  []rawAnchor `json:"after"`
}
