package adapters

import (
	"catalog-crawler/internal/config"
	"catalog-crawler/internal/types"
)

// Flipkart card/title/price/rating selector families
const (
	gridCard   = "a.CGtC98"
	gridTitle  = "div.KzDlHZ"
	gridPrice  = "div.Nx9bqj._4b5DiR"
	rowCard    = "div.cPHDOP.col-12-12"
	tileCard   = "div._1sdMkc.LFEi7Z"
	legacyRow  = "div._1AtVbE.col-12-12"
	linkTitle  = "a.WKTcLC"
	plainTitle = "a.wjcEIp"
	price      = "div.Nx9bqj"
	rating     = "div.XQDdHH"
	dataCard   = "div[data-id]"
)

func gridRule() types.ExtractionRuleDescriptor {
	return types.ExtractionRuleDescriptor{
		CardSelector:         gridCard,
		TitleSelector:        gridTitle,
		PriceSelector:        gridPrice,
		RatingSelector:       rating,
		FallbackCardSelector: dataCard,
	}
}

func listRule(card, title string) types.ExtractionRuleDescriptor {
	return types.ExtractionRuleDescriptor{
		CardSelector:         card,
		TitleSelector:        title,
		PriceSelector:        price,
		RatingSelector:       rating,
		FallbackCardSelector: dataCard,
	}
}

// rowGroupedRule describes listings whose data-id cards are nested inside
// full-width row containers
func rowGroupedRule() types.ExtractionRuleDescriptor {
	r := listRule(rowCard, linkTitle+", "+plainTitle)
	r.RowSelector = rowCard
	return r
}

func specialRule(card, title string) types.ExtractionRuleDescriptor {
	r := listRule(card, title)
	r.IsSpecialCase = true
	return r
}

// Flipkart returns the built-in site profile
func Flipkart() config.Site {
	return config.Site{
		Name:          "flipkart",
		Origin:        "https://www.flipkart.com",
		LandingURL:    "https://www.flipkart.com/",
		PageParam:     "page",
		PopupSelector: "button._2KpZ6l._2doB4z",
		Rules: map[string]types.ExtractionRuleDescriptor{
			"Mobiles":          gridRule(),
			"Laptops":          gridRule(),
			"Tablets":          gridRule(),
			"TVs":              gridRule(),
			"Refrigerators":    gridRule(),
			"Washing Machines": gridRule(),
			"Air Conditioners": gridRule(),
			"Men Clothing":     rowGroupedRule(),
			"Women Clothing":   rowGroupedRule(),
			"Appliances":       rowGroupedRule(),
			"Home & Kitchen":   rowGroupedRule(),
			"Smart Watches":    listRule(rowCard, linkTitle),
			"Gaming Consoles":  listRule(rowCard, plainTitle),
			"Toys":             listRule(legacyRow, plainTitle),
			"Books":            listRule(legacyRow, plainTitle),
			"Headphones":       specialRule(legacyRow, plainTitle),
			"Shoes":            specialRule(tileCard, linkTitle),
			"Bags":             specialRule(tileCard, linkTitle),
		},
		Generic: config.GenericRule{
			Card:        dataCard,
			Titles:      []string{linkTitle, plainTitle, gridTitle, "a[title]"},
			Prices:      []string{price, "div._30jeq3", "div._1_WHN1"},
			Ratings:     []string{rating, "div._3LWZlK", "span._2_R_DZ"},
			ProductLink: `a[href*="/p/"]`,
		},
		CardCandidates: []string{
			dataCard,
			`a[href*="/p/"]`,
			"div._1AtVbE",
			"div.cPHDOP",
			gridCard,
			"div._1sdMkc",
		},
		CategoryRails: []string{
			"div._3sdu8W.emupdz > a._1ch8e_, div._3sdu8W.emupdz > div._1ch8e_",
		},
		CategoryLabel: `span[class*="XjE3T"] > span, span[class*="text"] > span, div > span`,
		Subcategory: config.SubcategorySelectors{
			Primary:  `div[class*="subcategory"] a[href], a[class*="subcategory"]`,
			Fallback: `a[href*="sid="]`,
		},
		Taxonomy: []config.ParentCategory{
			{
				Name:          "Electronics",
				Description:   "Electronic devices and gadgets",
				Subcategories: []string{"Mobiles", "Laptops", "Tablets", "Headphones", "Smart Watches", "Gaming Consoles"},
			},
			{
				Name:          "TVs & Appliances",
				Description:   "Home entertainment and household appliances",
				Subcategories: []string{"TVs", "Refrigerators", "Washing Machines", "Air Conditioners", "Appliances", "Home & Kitchen"},
			},
			{
				Name:          "Men",
				Description:   "Products for men",
				Subcategories: []string{"Men Clothing", "Shoes", "Ethnic Wear"},
			},
			{
				Name:          "Women",
				Description:   "Products for women",
				Subcategories: []string{"Women Clothing", "Bags", "Jewelry"},
			},
			{
				Name:          "Baby & Kids",
				Description:   "Products for babies and children",
				Subcategories: []string{"Toys"},
			},
			{
				Name:          "Sports, Books & More",
				Description:   "Sports equipment, books, and other items",
				Subcategories: []string{"Books", "Sports"},
			},
		},
		FallbackCategories: map[string]config.FallbackCategory{
			"Mobiles":          {URL: "https://www.flipkart.com/search?q=mobiles"},
			"Laptops":          {URL: "https://www.flipkart.com/search?q=laptops"},
			"Tablets":          {URL: "https://www.flipkart.com/search?q=tablets"},
			"TVs":              {URL: "https://www.flipkart.com/search?q=televisions"},
			"Refrigerators":    {URL: "https://www.flipkart.com/search?q=refrigerators"},
			"Washing Machines": {URL: "https://www.flipkart.com/search?q=washing+machines"},
			"Air Conditioners": {URL: "https://www.flipkart.com/search?q=air+conditioners"},
			"Headphones":       {URL: "https://www.flipkart.com/search?q=headphones"},
			"Smart Watches":    {URL: "https://www.flipkart.com/search?q=smart+watches"},
			"Men Clothing":     {URL: "https://www.flipkart.com/search?q=men+clothing"},
			"Women Clothing":   {URL: "https://www.flipkart.com/search?q=women+clothing"},
			"Shoes":            {URL: "https://www.flipkart.com/search?q=shoes"},
			"Bags":             {URL: "https://www.flipkart.com/search?q=bags"},
			"Toys":             {URL: "https://www.flipkart.com/search?q=toys"},
			"Books":            {URL: "https://www.flipkart.com/search?q=books"},
		},
	}
}
