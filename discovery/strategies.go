package discovery

import (
	"strings"

	"catalog-crawler/adapters"
	"catalog-crawler/internal/types"

	"github.com/PuerkitoBio/goquery"
)

const (
	maxNameLength  = 50
	maxLabelLength = 30

	railMinChildren     = 5
	railHeightTolerance = 20
	railWidthRatio      = 0.7

	iconMinSize     = 30
	iconMaxSize     = 150
	iconLabelLevels = 5

	navMinItems = 5
)

// Strategy is one category-locating heuristic. Find is a pure function of
// the snapshot document.
type Strategy interface {
	Name() string
	Find(doc *goquery.Document) []types.CategoryNode
}

// nodeBuilder turns category elements into nodes
type nodeBuilder struct {
	origin string
	label  string
}

func (b nodeBuilder) fromElement(s *goquery.Selection) (types.CategoryNode, bool) {
	name := ""
	if b.label != "" {
		name = adapters.CleanText(s.Find(b.label).First().Text())
	}
	if name == "" {
		name = strings.TrimSpace(s.AttrOr("aria-label", ""))
	}
	if name == "" {
		name = strings.TrimSpace(s.AttrOr("title", ""))
	}
	if name == "" {
		name = adapters.CleanText(s.Text())
	}
	if name == "" {
		return types.CategoryNode{}, false
	}

	node := types.CategoryNode{Name: adapters.Truncate(name, maxNameLength)}
	if goquery.NodeName(s) == "a" {
		node.URL = adapters.ResolveURL(b.origin, s.AttrOr("href", ""))
	}
	node.ImageRef = b.image(s.Find("img").First())
	return node, true
}

func (b nodeBuilder) fromElements(sel *goquery.Selection) []types.CategoryNode {
	var nodes []types.CategoryNode
	sel.Each(func(_ int, s *goquery.Selection) {
		if node, ok := b.fromElement(s); ok {
			nodes = append(nodes, node)
		}
	})
	return nodes
}

// labelled builds a node from a short text label found near an element
func (b nodeBuilder) labelled(name string, holder *goquery.Selection, img *goquery.Selection) types.CategoryNode {
	link := holder
	if goquery.NodeName(holder) != "a" {
		link = holder.Find("a").First()
	}
	return types.CategoryNode{
		Name:     adapters.Truncate(name, maxNameLength),
		URL:      adapters.ResolveURL(b.origin, link.AttrOr("href", "")),
		ImageRef: b.image(img),
	}
}

func (b nodeBuilder) image(img *goquery.Selection) string {
	if img == nil || img.Length() == 0 {
		return ""
	}
	src := adapters.CleanupRef(adapters.ImageSource(img))
	if resolved := adapters.ResolveURL(b.origin, src); resolved != "" {
		return resolved
	}
	return src
}

// horizontalRail finds a full-width flex row whose equally tall children
// carry images, the usual shape of a category rail
type horizontalRail struct {
	nodeBuilder
}

func (horizontalRail) Name() string { return "horizontal-rail" }

func (h horizontalRail) Find(doc *goquery.Document) []types.CategoryNode {
	vw, ok := adapters.LayoutInt(doc.Find("html"), "data-layout-vw")
	if !ok || vw == 0 {
		return nil
	}

	var items *goquery.Selection
	doc.Find(`div[style*="display: flex"], div[class*="flex"], nav, header`).EachWithBreak(func(_ int, c *goquery.Selection) bool {
		children := c.Children()
		if children.Length() < railMinChildren {
			return true
		}
		if w, ok := adapters.LayoutInt(c, "data-layout-w"); !ok || float64(w) <= railWidthRatio*float64(vw) {
			return true
		}
		if !uniformHeight(children) {
			return true
		}
		withImages := children.FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.Find("img").Length() > 0
		})
		if withImages.Length() >= railMinChildren {
			items = children
			return false
		}
		return true
	})

	if items == nil {
		return nil
	}
	return h.fromElements(items)
}

func uniformHeight(children *goquery.Selection) bool {
	first, ok := adapters.LayoutInt(children.First(), "data-layout-h")
	if !ok {
		return false
	}
	uniform := true
	children.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		h, ok := adapters.LayoutInt(s, "data-layout-h")
		d := h - first
		if d < 0 {
			d = -d
		}
		if !ok || d >= railHeightTolerance {
			uniform = false
		}
		return uniform
	})
	return uniform
}

// knownRail applies the site's configured category rail selectors
type knownRail struct {
	nodeBuilder
	selectors []string
}

func (knownRail) Name() string { return "known-rail" }

func (k knownRail) Find(doc *goquery.Document) []types.CategoryNode {
	for _, selector := range k.selectors {
		if nodes := k.fromElements(doc.Find(selector)); len(nodes) > 0 {
			return nodes
		}
	}
	return nil
}

// navigationCards matches the "navigation card" class family and, failing
// that, flex containers whose every item holds an image
type navigationCards struct {
	nodeBuilder
	min int
}

func (navigationCards) Name() string { return "navigation-cards" }

func (n navigationCards) Find(doc *goquery.Document) []types.CategoryNode {
	var best []types.CategoryNode

	if container := doc.Find(`div[class*="navigationCard"]`).First().Parent().Parent(); container.Length() > 0 {
		best = n.fromElements(container.Find(`a[class*="navigationCard"], div[class*="navigationCard"]`))
	}
	if len(best) >= n.min {
		return best
	}

	if nodes := n.fromElements(doc.Find(`a[href*="navigationCard"], div[class*="rich_navigation"]`)); len(nodes) > len(best) {
		best = nodes
	}
	if len(best) >= n.min {
		return best
	}

	doc.Find(`div[style*="display: flex"]`).EachWithBreak(func(_ int, c *goquery.Selection) bool {
		items := c.Find("a, div")
		if items.Length() < n.min {
			return true
		}
		allImages := true
		items.EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if goquery.NodeName(s) != "img" && s.Find("img").Length() == 0 {
				allImages = false
			}
			return allImages
		})
		if allImages {
			if nodes := n.fromElements(items); len(nodes) > len(best) {
				best = nodes
			}
			return false
		}
		return true
	})

	return best
}

// imageContext looks for icon-sized images and climbs a few ancestors for a
// short text label
type imageContext struct {
	nodeBuilder
}

func (imageContext) Name() string { return "image-context" }

func (ic imageContext) Find(doc *goquery.Document) []types.CategoryNode {
	var nodes []types.CategoryNode
	seen := make(map[string]bool)

	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		w, okw := adapters.LayoutInt(img, "data-layout-w")
		h, okh := adapters.LayoutInt(img, "data-layout-h")
		if !okw || !okh || !iconSized(w) || !iconSized(h) {
			return
		}

		parent := img.Parent()
		for level := 0; level < iconLabelLevels && parent.Length() > 0; level++ {
			text := adapters.CleanText(parent.Text())
			if text != "" && len([]rune(text)) < maxLabelLength {
				if !seen[text] {
					seen[text] = true
					nodes = append(nodes, ic.labelled(text, parent, img))
				}
				return
			}
			parent = parent.Parent()
		}
	})

	return nodes
}

func iconSized(n int) bool {
	return n > iconMinSize && n < iconMaxSize
}

// navScan walks generic navigation containers for short-labelled items
type navScan struct {
	nodeBuilder
}

func (navScan) Name() string { return "nav-scan" }

func (ns navScan) Find(doc *goquery.Document) []types.CategoryNode {
	var nodes []types.CategoryNode
	seen := make(map[string]bool)

	doc.Find(`nav, [role="navigation"], header, [class*="menu"], [class*="nav"]`).Each(func(_ int, nav *goquery.Selection) {
		items := nav.Find(`a, li, div[role="button"], [class*="item"]`)
		if items.Length() < navMinItems {
			return
		}
		items.Each(func(_ int, item *goquery.Selection) {
			text := adapters.CleanText(item.Text())
			n := len([]rune(text))
			if n <= 2 || n >= maxLabelLength || seen[text] {
				return
			}
			seen[text] = true
			nodes = append(nodes, ns.labelled(text, item, item.Find("img").First()))
		})
	})

	return nodes
}
