package cache

import (
	"os"
	"path/filepath"
	"testing"

	"catalog-crawler/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMissingFilesReadAsEmpty(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "nested", "cache"))
	require.NoError(t, err)

	tax, err := s.Taxonomy()
	require.NoError(t, err)
	assert.Empty(t, tax)

	subs, err := s.Subcategories()
	require.NoError(t, err)
	assert.Empty(t, subs)

	sel, err := s.Selectors()
	require.NoError(t, err)
	assert.Empty(t, sel)
}

func TestTaxonomyIsOverwritten(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.SaveTaxonomy([]types.CategoryNode{
		{Name: "Mobiles", URL: "https://www.flipkart.com/mobiles", ImageRef: "https://img/m.png"},
		{Name: "Fashion", URL: "https://www.flipkart.com/fashion"},
	}))
	require.NoError(t, s.SaveTaxonomy([]types.CategoryNode{
		{Name: "Mobiles", URL: "https://www.flipkart.com/mobiles-new"},
	}))

	tax, err := s.Taxonomy()
	require.NoError(t, err)
	assert.Equal(t, map[string]TaxonomyEntry{
		"Mobiles": {URL: "https://www.flipkart.com/mobiles-new"},
	}, tax)
}

func TestTaxonomyRecordsDiscoveryOrder(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.SaveTaxonomy([]types.CategoryNode{
		{Name: "Travel", URL: "https://www.flipkart.com/travel"},
		{Name: "Appliances", URL: "https://www.flipkart.com/appliances"},
		{Name: "Mobiles", URL: "https://www.flipkart.com/mobiles"},
		{Name: "Travel", URL: "https://www.flipkart.com/travel-2"},
	}))

	tax, err := s.Taxonomy()
	require.NoError(t, err)
	assert.Equal(t, map[string]TaxonomyEntry{
		"Travel":     {URL: "https://www.flipkart.com/travel", Position: 0},
		"Appliances": {URL: "https://www.flipkart.com/appliances", Position: 1},
		"Mobiles":    {URL: "https://www.flipkart.com/mobiles", Position: 2},
	}, tax, "the first occurrence of a name keeps its place")
}

func TestSubcategoriesMerge(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	phones := []types.SubcategoryLink{{Name: "Phones", URL: "https://www.flipkart.com/phones"}}
	require.NoError(t, s.SaveSubcategories("Mobiles", phones))
	require.NoError(t, s.SaveSubcategories("Books", nil))

	mapping, err := s.Subcategories()
	require.NoError(t, err)
	assert.Equal(t, phones, mapping["Mobiles"])

	none, ok := mapping["Books"]
	assert.True(t, ok, "an empty result is cached so the category is not probed again")
	assert.Empty(t, none)

	_, ok = mapping["Laptops"]
	assert.False(t, ok)
}

func TestSelectorsRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	desc := map[string]types.ExtractionRuleDescriptor{
		"Cameras": {CardSelector: "div.cPHDOP", TitleSelector: "a.wjcEIp", PriceSelector: "div.Nx9bqj"},
	}
	require.NoError(t, s.SaveSelectors(desc))

	got, err := s.Selectors()
	require.NoError(t, err)
	assert.Equal(t, desc, got)
}

func TestCorruptFileIsAnError(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, subcategoriesFile), []byte("{not json"), 0o644))

	_, err = s.Subcategories()
	assert.Error(t, err)
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, s.SaveSelectors(map[string]types.ExtractionRuleDescriptor{}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, selectorsFile, entries[0].Name())
}
