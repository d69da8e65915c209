// Package analyzer summarizes a page's DOM: title, navigation, content
// areas, element counts and a keyword-scored page type.
package analyzer

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	PageTypeEcommerce  = "ecommerce"
	PageTypeBlog       = "blog"
	PageTypeCorporate  = "corporate"
	PageTypeHealthcare = "healthcare"
	PageTypeGeneral    = "general"

	navItemCap = 10
)

type indicator struct {
	pageType string
	keywords []string
}

// Ties go to the earlier entry.
var indicators = []indicator{
	{PageTypeEcommerce, []string{"product", "cart", "checkout", "price", "buy"}},
	{PageTypeBlog, []string{"article", "post", "author", "comment"}},
	{PageTypeCorporate, []string{"about", "contact", "services", "team"}},
	{PageTypeHealthcare, []string{"patient", "doctor", "treatment", "medical"}},
}

// Menu is one navigation region.
type Menu struct {
	LinkCount int      `json:"link_count"`
	Items     []string `json:"items"`
}

// Navigation summarizes the page's navigation regions.
type Navigation struct {
	NavCount int    `json:"nav_count"`
	Menus    []Menu `json:"menus"`
}

// ElementCount counts common element types.
type ElementCount struct {
	Links   int `json:"links"`
	Buttons int `json:"buttons"`
	Forms   int `json:"forms"`
	Images  int `json:"images"`
}

// Structure is the analyzed DOM of one page.
type Structure struct {
	URL          string       `json:"url"`
	Domain       string       `json:"domain"`
	Title        string       `json:"title"`
	Navigation   Navigation   `json:"navigation"`
	PageType     string       `json:"page_type"`
	MainAreas    []string     `json:"main_content_areas"`
	ElementCount ElementCount `json:"element_count"`
}

// Analyze parses html and summarizes its structure.
func Analyze(html, pageURL string) (*Structure, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	s := &Structure{
		URL:          pageURL,
		Title:        strings.TrimSpace(doc.Find("title").First().Text()),
		Navigation:   navigation(doc),
		MainAreas:    mainAreas(doc),
		ElementCount: countElements(doc),
	}
	if u, err := url.Parse(pageURL); err == nil {
		s.Domain = u.Host
	}
	s.PageType = pageType(doc, pageURL)
	return s, nil
}

func navigation(doc *goquery.Document) Navigation {
	navs := doc.Find(`nav, [role="navigation"]`)
	n := Navigation{NavCount: navs.Length(), Menus: []Menu{}}
	navs.Each(func(_ int, nav *goquery.Selection) {
		links := nav.Find("a")
		m := Menu{LinkCount: links.Length(), Items: []string{}}
		links.EachWithBreak(func(i int, a *goquery.Selection) bool {
			m.Items = append(m.Items, strings.TrimSpace(a.Text()))
			return i+1 < navItemCap
		})
		n.Menus = append(n.Menus, m)
	})
	return n
}

func mainAreas(doc *goquery.Document) []string {
	areas := []string{}
	has := func(sel string) bool { return doc.Find(sel).Length() > 0 }
	if has("header") {
		areas = append(areas, "header")
	}
	if has(`main, [role="main"]`) {
		areas = append(areas, "main_content")
	}
	if has("aside, .sidebar") {
		areas = append(areas, "sidebar")
	}
	if has("footer") {
		areas = append(areas, "footer")
	}
	return areas
}

func countElements(doc *goquery.Document) ElementCount {
	return ElementCount{
		Links:   doc.Find("a").Length(),
		Buttons: doc.Find("button").Length(),
		Forms:   doc.Find("form").Length(),
		Images:  doc.Find("img").Length(),
	}
}

// pageType scores each indicator by how many of its keywords occur in the
// visible text or the URL.
func pageType(doc *goquery.Document, pageURL string) string {
	body := doc.Clone()
	body.Find("script, style, noscript").Remove()
	text := strings.ToLower(body.Text())
	lowerURL := strings.ToLower(pageURL)

	best, bestScore := PageTypeGeneral, 0
	for _, ind := range indicators {
		score := 0
		for _, kw := range ind.keywords {
			if strings.Contains(text, kw) || strings.Contains(lowerURL, kw) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = ind.pageType, score
		}
	}
	return best
}
