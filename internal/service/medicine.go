package service

import (
	"net/url"
	"strings"
)

// DefaultMedicineSearchURL is the pharmacy search page used for price comparison.
const DefaultMedicineSearchURL = "https://www.1mg.com/search/all"

// MedicineLinks holds the external search links for a brand/generic pair.
type MedicineLinks struct {
	Brand      string
	BrandURL   string
	Generic    string
	GenericURL string
}

// MedicineLookup builds price comparison links against an external search page.
type MedicineLookup struct {
	searchURL string
}

func NewMedicineLookup(searchURL string) *MedicineLookup {
	if strings.TrimSpace(searchURL) == "" {
		searchURL = DefaultMedicineSearchURL
	}
	return &MedicineLookup{searchURL: searchURL}
}

func (m *MedicineLookup) Compare(brand, generic string) MedicineLinks {
	return MedicineLinks{
		Brand:      brand,
		BrandURL:   m.SearchURL(brand),
		Generic:    generic,
		GenericURL: m.SearchURL(generic),
	}
}

// SearchURL returns the search link for term. Spaces are encoded as %20.
func (m *MedicineLookup) SearchURL(term string) string {
	// QueryEscape turns a literal '+' into %2B, so every remaining '+' is a space.
	escaped := strings.ReplaceAll(url.QueryEscape(term), "+", "%20")
	return m.searchURL + "?name=" + escaped
}
