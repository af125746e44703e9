package extractor

import (
	"strings"
	"testing"

	"catalog-crawler/adapters"
	"catalog-crawler/internal/config"
	"catalog-crawler/internal/testutil"
	"catalog-crawler/internal/types"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPipeline(t *testing.T) (*Pipeline, map[string]types.ExtractionRuleDescriptor) {
	t.Helper()
	logger, _ := testutil.Logger()
	site := adapters.NewSiteAdapter(config.Site{}, types.DefaultConfig(), logger)
	return NewPipeline(site, logger), site.Profile().Rules
}

func parse(t *testing.T, body string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body>" + body + "</body></html>"))
	require.NoError(t, err)
	return doc
}

const gridCards = `
<a class="CGtC98" href="/apple-iphone-15/p/itm1">
  <div class="KzDlHZ">  Apple iPhone 15
    (Black, 128 GB) </div>
  <div class="Nx9bqj _4b5DiR">₹69,900</div>
  <div class="XQDdHH">4.6</div>
</a>
<a class="CGtC98" href="https://www.flipkart.com/galaxy-s24/p/itm2">
  <div class="KzDlHZ">Samsung Galaxy S24</div>
  <div class="Nx9bqj _4b5DiR">₹74,999</div>
</a>
<a class="CGtC98" href="/no-price/p/itm3">
  <div class="KzDlHZ">Sold out phone</div>
</a>
<a class="CGtC98" href="/no-title/p/itm4">
  <div class="Nx9bqj _4b5DiR">₹9,999</div>
</a>`

func TestExtract_Descriptor(t *testing.T) {
	p, rules := newPipeline(t)

	res := p.Extract(parse(t, gridCards), rules["Mobiles"])

	assert.Equal(t, StrategyDescriptor, res.Strategy)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, Candidate{
		Title:  "Apple iPhone 15 (Black, 128 GB)",
		Price:  "₹69,900",
		Rating: "4.6",
		URL:    "https://www.flipkart.com/apple-iphone-15/p/itm1",
	}, res.Candidates[0])
	assert.Equal(t, "", res.Candidates[1].Rating)
	assert.Equal(t, "https://www.flipkart.com/galaxy-s24/p/itm2", res.Candidates[1].URL)
}

func TestExtract_RowGrouped(t *testing.T) {
	p, rules := newPipeline(t)
	html := `
<div class="cPHDOP col-12-12">
  <div data-id="A1"><a class="WKTcLC" href="/shirt/p/1">Slim Fit Shirt</a><div class="Nx9bqj">₹499</div><div class="XQDdHH">4.1</div></div>
  <div data-id="A2"><a class="wjcEIp" href="/tee/p/2">Graphic Tee</a><div class="Nx9bqj">₹299</div></div>
</div>
<div class="cPHDOP col-12-12">
  <div data-id="A3"><a class="WKTcLC" href="/jeans/p/3">Relaxed Jeans</a><div class="Nx9bqj">₹999</div></div>
  <div data-id="A4"><a class="WKTcLC" href="/cap/p/4">Cap without price</a></div>
</div>
<div class="cPHDOP col-12-12"><span>Filters</span></div>`

	res := p.Extract(parse(t, html), rules["Men Clothing"])

	assert.Equal(t, StrategyRowGrouped, res.Strategy)
	require.Len(t, res.Candidates, 3)
	assert.Equal(t, "Slim Fit Shirt", res.Candidates[0].Title)
	assert.Equal(t, "https://www.flipkart.com/tee/p/2", res.Candidates[1].URL)
	assert.Equal(t, "Relaxed Jeans", res.Candidates[2].Title)
}

func TestExtract_SpecialCasePrefersTitleLink(t *testing.T) {
	p, rules := newPipeline(t)
	html := `
<div class="_1sdMkc LFEi7Z">
  <a class="WKTcLC" href="/sneaker/p/9?pid=X">Running Sneakers</a>
  <a href="/brand-store">Brand</a>
  <div class="Nx9bqj">₹1,299</div>
</div>`

	res := p.Extract(parse(t, html), rules["Shoes"])

	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "https://www.flipkart.com/sneaker/p/9?pid=X", res.Candidates[0].URL)
}

func TestExtract_DescriptorFallsBackToFirstLink(t *testing.T) {
	p, _ := newPipeline(t)
	desc := types.ExtractionRuleDescriptor{CardSelector: "div.card", TitleSelector: "h3", PriceSelector: "span.price"}
	html := `<div class="card"><h3>Kettle</h3><span class="price">₹899</span><a href="/kettle/p/5">View</a></div>`

	res := p.Extract(parse(t, html), desc)

	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "https://www.flipkart.com/kettle/p/5", res.Candidates[0].URL)
}

func TestExtract_ResolvesAgainstDocumentBase(t *testing.T) {
	p, _ := newPipeline(t)
	desc := types.ExtractionRuleDescriptor{CardSelector: "div.card", TitleSelector: "a.name", PriceSelector: "span.price"}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<html><head><base href="/grocery/"></head><body>
		<div class="card"><a class="name" href="rice/p/7">Basmati Rice</a><span class="price">₹420</span></div>
		<div class="card"><a class="name" href="/oil/p/8">Sunflower Oil</a><span class="price">₹180</span></div>
	</body></html>`))
	require.NoError(t, err)

	res := p.Extract(doc, desc)

	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "https://www.flipkart.com/grocery/rice/p/7", res.Candidates[0].URL)
	assert.Equal(t, "https://www.flipkart.com/oil/p/8", res.Candidates[1].URL)
}

func TestExtract_GenericFallback(t *testing.T) {
	p, rules := newPipeline(t)
	html := `
<div data-id="G1">
  <a class="wjcEIp" href="/book/p/g1" title="Atomic Habits">Atomic Habits</a>
  <div class="_30jeq3">₹399</div>
  <div class="_3LWZlK">4.7</div>
</div>
<div data-id="G2">
  <img alt="">
  <div class="_1_WHN1">₹199</div>
  <a href="/toy/p/g2">view</a>
</div>
<div data-id="G3"><div class="_30jeq3">₹10</div></div>`

	res := p.Extract(parse(t, html), rules["Mobiles"])

	assert.Equal(t, StrategyGeneric, res.Strategy)
	require.Len(t, res.Candidates, 3)
	assert.Equal(t, Candidate{
		Title:  "Atomic Habits",
		Price:  "₹399",
		Rating: "4.7",
		URL:    "https://www.flipkart.com/book/p/g1",
	}, res.Candidates[0])
	assert.Equal(t, "₹199 view", res.Candidates[1].Title, "the card itself is the last title resort")
	assert.Equal(t, "https://www.flipkart.com/toy/p/g2", res.Candidates[1].URL)
	assert.Equal(t, "", res.Candidates[2].URL)
}

func TestExtract_NothingFound(t *testing.T) {
	p, rules := newPipeline(t)

	res := p.Extract(parse(t, `<div class="banner">Big Billion Days</div>`), rules["Mobiles"])

	assert.Equal(t, StrategyNone, res.Strategy)
	assert.Empty(t, res.Candidates)
}

func TestExtract_EveryCandidateHasTitleAndPrice(t *testing.T) {
	p, rules := newPipeline(t)

	for name, desc := range rules {
		res := p.Extract(parse(t, gridCards), desc)
		for _, c := range res.Candidates {
			assert.NotEmpty(t, c.Title, name)
			assert.NotEmpty(t, c.Price, name)
			if c.URL != "" {
				assert.True(t, adapters.IsAbsoluteURL(c.URL), name)
			}
		}
	}
}
