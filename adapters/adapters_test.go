package adapters

import (
	"context"
	"strings"
	"testing"

	"catalog-crawler/internal/config"
	"catalog-crawler/internal/testutil"
	"catalog-crawler/internal/types"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const origin = "https://www.flipkart.com"

func newSite(t *testing.T, profile config.Site) *SiteAdapter {
	t.Helper()
	logger, _ := testutil.Logger()
	return NewSiteAdapter(profile, types.DefaultConfig(), logger)
}

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		href string
		want string
	}{
		{"/mobile-phones-store", "https://www.flipkart.com/mobile-phones-store"},
		{"search?q=tv", "https://www.flipkart.com/search?q=tv"},
		{" `https://www.flipkart.com/books` ", "https://www.flipkart.com/books"},
		{"//rukminim2.flixcart.com/img.png", "https://rukminim2.flixcart.com/img.png"},
		{"#top", ""},
		{"javascript:void(0)", ""},
		{"mailto:care@flipkart.com", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveURL(origin, tt.href), tt.href)
	}

	assert.Empty(t, ResolveURL("", "/relative"), "relative links need an absolute origin")
}

func TestTextHelpers(t *testing.T) {
	assert.Equal(t, "Top Offers", CleanText("  Top\n\t Offers  "))
	assert.Equal(t, "Electronics", Truncate("Electronics", 30))
	assert.Equal(t, "Home", Truncate("Home & Furniture", 5))
	assert.Equal(t, "https://x/y.png", CleanupRef("`https://x/y.png` "))
	assert.True(t, IsAbsoluteURL("http://example.com/p"))
	assert.False(t, IsAbsoluteURL("/p/1"))
	assert.False(t, IsAbsoluteURL("ftp://example.com/p"))
}

func TestLayoutHelpers(t *testing.T) {
	doc := parse(t, `<div id="a" data-layout-w="120" data-layout-hidden="1"></div>
		<img id="b" src="/raw.png" data-layout-src="https://cdn/rendered.png">
		<img id="c" data-src="/lazy.png">
		<div id="d" data-layout-w="wide"></div>`)

	w, ok := LayoutInt(doc.Find("#a"), "data-layout-w")
	assert.True(t, ok)
	assert.Equal(t, 120, w)
	_, ok = LayoutInt(doc.Find("#a"), "data-layout-h")
	assert.False(t, ok)
	_, ok = LayoutInt(doc.Find("#d"), "data-layout-w")
	assert.False(t, ok)

	assert.True(t, IsHidden(doc.Find("#a")))
	assert.False(t, IsHidden(doc.Find("#d")))

	assert.Equal(t, "https://cdn/rendered.png", ImageSource(doc.Find("#b")))
	assert.Equal(t, "/lazy.png", ImageSource(doc.Find("#c")))
}

func TestExtractText(t *testing.T) {
	site := newSite(t, config.Site{})
	doc := parse(t, "<html><head><title> Online Shopping\n Site </title></head></html>")

	title, err := site.ExtractText(doc, "title")
	require.NoError(t, err)
	assert.Equal(t, "Online Shopping Site", title)

	_, err = site.ExtractText(doc, "h1")
	assert.Error(t, err)
}

func TestNewSiteAdapter_FillsBuiltinProfile(t *testing.T) {
	site := newSite(t, config.Site{})

	assert.Equal(t, "flipkart", site.GetSiteName())
	assert.Equal(t, origin, site.Origin())
	assert.Equal(t, origin+"/", site.LandingURL())
	assert.Equal(t, "page", site.Profile().PageParam)
	assert.NotEmpty(t, site.Profile().Rules)
}

func TestNewSiteAdapter_KeepsOverrides(t *testing.T) {
	site := newSite(t, config.Site{
		Name:      "example",
		Origin:    "https://shop.example.com",
		PageParam: "p",
		Taxonomy: []config.ParentCategory{
			{Name: "Audio", Subcategories: []string{"Speakers"}},
		},
	})

	assert.Equal(t, "example", site.GetSiteName())
	assert.Equal(t, "https://shop.example.com/", site.LandingURL())
	assert.Equal(t, "https://shop.example.com/c?p=4", site.PageURL("https://shop.example.com/c", 4))
	assert.Equal(t, "Audio", site.ParentCategory("Speakers"))
	assert.Equal(t, types.OtherCategory, site.ParentCategory("Mobiles"))
}

func TestPageURL(t *testing.T) {
	site := newSite(t, config.Site{})

	assert.Equal(t, "https://www.flipkart.com/search?page=2&q=mobiles",
		site.PageURL("https://www.flipkart.com/search?q=mobiles", 2))
	assert.Equal(t, "https://www.flipkart.com/search?page=3&q=mobiles",
		site.PageURL("https://www.flipkart.com/search?q=mobiles&page=1", 3), "an existing page parameter is replaced")
}

func TestTaxonomyHelpers(t *testing.T) {
	site := newSite(t, config.Site{})

	assert.Equal(t, "Electronics", site.ParentCategory("Mobiles"))
	assert.Equal(t, "Men", site.ParentCategory("Shoes"))
	assert.Equal(t, types.OtherCategory, site.ParentCategory("Gardening"))
	assert.True(t, site.IsMapped("Toys"))
	assert.False(t, site.IsMapped("Gardening"))

	assert.Contains(t, site.Subcategories("Electronics"), "Laptops")
	assert.Nil(t, site.Subcategories("Groceries"))

	parents := site.ParentCategories()
	require.NotEmpty(t, parents)
	assert.Equal(t, "Electronics", parents[0])
}

func TestFallbackCategory(t *testing.T) {
	site := newSite(t, config.Site{})

	node, ok := site.FallbackCategory("Books")
	require.True(t, ok)
	assert.Equal(t, "https://www.flipkart.com/search?q=books", node.URL)

	_, ok = site.FallbackCategory("Gardening")
	assert.False(t, ok)
}

func TestDismissPopup(t *testing.T) {
	site := newSite(t, config.Site{})
	ctx := context.Background()

	page := testutil.NewFakePage().
		Route(origin+"/", `<html><body><button class="_2KpZ6l _2doB4z">✕</button></body></html>`)
	require.NoError(t, page.Navigate(ctx, origin+"/", 0))
	assert.True(t, site.DismissPopup(ctx, page))
	assert.Equal(t, []string{"button._2KpZ6l._2doB4z"}, page.Clicks)

	plain := testutil.NewFakePage().Route(origin+"/", `<html><body></body></html>`)
	require.NoError(t, plain.Navigate(ctx, origin+"/", 0))
	assert.False(t, site.DismissPopup(ctx, plain))
	assert.Empty(t, plain.Clicks)
}

func TestParseHTMLAndExtractAttribute(t *testing.T) {
	site := newSite(t, config.Site{})

	doc, err := site.ParseHTML(`<html><head><link rel="canonical" href=" https://www.flipkart.com/mobiles "></head>
		<body><a class="nav">Home</a></body></html>`)
	require.NoError(t, err)

	href, err := site.ExtractAttribute(doc, `link[rel="canonical"]`, "href")
	require.NoError(t, err)
	assert.Equal(t, "https://www.flipkart.com/mobiles", href)

	_, err = site.ExtractAttribute(doc, "a.nav", "href")
	assert.ErrorContains(t, err, "attribute href not found")

	_, err = site.ExtractAttribute(doc, "base", "href")
	assert.ErrorContains(t, err, "element not found")
}

func TestRemoveDuplicateURLs(t *testing.T) {
	site := newSite(t, config.Site{})

	got := site.RemoveDuplicateURLs([]string{
		"https://www.flipkart.com/b",
		"https://www.flipkart.com/a",
		"https://www.flipkart.com/b",
		"https://www.flipkart.com/c",
		"https://www.flipkart.com/a",
	})

	assert.Equal(t, []string{
		"https://www.flipkart.com/b",
		"https://www.flipkart.com/a",
		"https://www.flipkart.com/c",
	}, got)
	assert.Empty(t, site.RemoveDuplicateURLs(nil))
}
