package adapters

import (
	"context"
	"net/url"
	"strconv"

	"catalog-crawler/internal/config"
	"catalog-crawler/internal/types"
)

// SiteAdapter carries everything the crawl engine knows about one target
// site: its origin, pagination parameter, popup, selector tables and
// static taxonomy. It is immutable after construction.
type SiteAdapter struct {
	*BaseAdapter
	profile config.Site
	config  *types.Config
	parents map[string]string
}

// NewSiteAdapter creates a site adapter from profile. Empty profile fields
// are completed from the built-in Flipkart profile.
func NewSiteAdapter(profile config.Site, cfg *types.Config, logger types.Logger) *SiteAdapter {
	profile = mergeProfile(profile, Flipkart())

	parents := make(map[string]string)
	for _, parent := range profile.Taxonomy {
		for _, sub := range parent.Subcategories {
			if _, exists := parents[sub]; !exists {
				parents[sub] = parent.Name
			}
		}
	}

	return &SiteAdapter{
		BaseAdapter: NewBaseAdapter(logger),
		profile:     profile,
		config:      cfg,
		parents:     parents,
	}
}

// GetSiteName returns the site name
func (s *SiteAdapter) GetSiteName() string {
	return s.profile.Name
}

// Origin returns the base origin relative links are resolved against
func (s *SiteAdapter) Origin() string {
	return s.profile.Origin
}

// LandingURL returns the page category discovery starts from
func (s *SiteAdapter) LandingURL() string {
	return s.profile.LandingURL
}

// Profile returns a copy of the site profile
func (s *SiteAdapter) Profile() config.Site {
	return s.profile
}

// Config returns the crawl configuration
func (s *SiteAdapter) Config() *types.Config {
	return s.config
}

// PageURL returns the listing URL for page n of a category
func (s *SiteAdapter) PageURL(categoryURL string, n int) string {
	u, err := url.Parse(categoryURL)
	if err != nil {
		return categoryURL
	}
	q := u.Query()
	q.Set(s.profile.PageParam, strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String()
}

// DismissPopup closes the login overlay if it appears within the popup
// timeout. Absence of the popup is the normal case and is not an error.
func (s *SiteAdapter) DismissPopup(ctx context.Context, page types.Page) bool {
	if s.profile.PopupSelector == "" {
		return false
	}
	if err := page.WaitForSelector(ctx, s.profile.PopupSelector, s.config.PopupTimeout); err != nil {
		s.logger.Debug("Login popup not found or already closed")
		return false
	}
	if err := page.Click(ctx, s.profile.PopupSelector); err != nil {
		s.logger.Debugf("Failed to close login popup: %v", err)
		return false
	}
	s.logger.Debug("Closed login popup")
	return true
}

// ParentCategory returns the top-level category a leaf belongs to, or
// types.OtherCategory when the static taxonomy does not map it
func (s *SiteAdapter) ParentCategory(name string) string {
	if parent, ok := s.parents[name]; ok {
		return parent
	}
	return types.OtherCategory
}

// IsMapped reports whether the static taxonomy knows the category
func (s *SiteAdapter) IsMapped(name string) bool {
	_, ok := s.parents[name]
	return ok
}

// Subcategories returns the statically configured leaves of a parent
func (s *SiteAdapter) Subcategories(parent string) []string {
	for _, p := range s.profile.Taxonomy {
		if p.Name == parent {
			return append([]string(nil), p.Subcategories...)
		}
	}
	return nil
}

// ParentCategories returns the top-level names in configuration order
func (s *SiteAdapter) ParentCategories() []string {
	names := make([]string, 0, len(s.profile.Taxonomy))
	for _, p := range s.profile.Taxonomy {
		names = append(names, p.Name)
	}
	return names
}

// FallbackCategory returns the statically known link for a category
func (s *SiteAdapter) FallbackCategory(name string) (types.CategoryNode, bool) {
	fb, ok := s.profile.FallbackCategories[name]
	if !ok {
		return types.CategoryNode{}, false
	}
	return types.CategoryNode{
		Name:     name,
		URL:      ResolveURL(s.profile.Origin, fb.URL),
		ImageRef: CleanupRef(fb.Image),
	}, true
}

func mergeProfile(p, d config.Site) config.Site {
	if p.Name == "" {
		p.Name = d.Name
	}
	if p.Origin == "" {
		p.Origin = d.Origin
	}
	if p.LandingURL == "" {
		p.LandingURL = p.Origin + "/"
	}
	if p.PageParam == "" {
		p.PageParam = d.PageParam
	}
	if p.PopupSelector == "" {
		p.PopupSelector = d.PopupSelector
	}
	if p.Rules == nil {
		p.Rules = d.Rules
	}
	if p.Generic.Card == "" {
		p.Generic = d.Generic
	}
	if len(p.CardCandidates) == 0 {
		p.CardCandidates = d.CardCandidates
	}
	if len(p.CategoryRails) == 0 {
		p.CategoryRails = d.CategoryRails
	}
	if p.CategoryLabel == "" {
		p.CategoryLabel = d.CategoryLabel
	}
	if p.Subcategory.Primary == "" {
		p.Subcategory.Primary = d.Subcategory.Primary
	}
	if p.Subcategory.Fallback == "" {
		p.Subcategory.Fallback = d.Subcategory.Fallback
	}
	if p.Taxonomy == nil {
		p.Taxonomy = d.Taxonomy
	}
	if p.FallbackCategories == nil {
		p.FallbackCategories = d.FallbackCategories
	}
	return p
}
