// Package branding maps forecourt brands to logo URLs.
package branding

import (
	"fmt"
	"strings"
)

// brandDomains maps a lowercased brand name to its company domain.
var brandDomains = map[string]string{
	"tesco":         "tesco.com",
	"sainsbury's":   "sainsburys.co.uk",
	"sainsburys":    "sainsburys.co.uk",
	"asda":          "asda.com",
	"morrisons":     "morrisons.com",
	"shell":         "shell.co.uk",
	"bp":            "bp.com",
	"esso":          "esso.co.uk",
	"texaco":        "texaco.com",
	"jet":           "jetlocal.co.uk",
	"gulf":          "gulfenergy.co.uk",
	"total":         "totalenergies.com",
	"totalenergies": "totalenergies.com",
	"murco":         "murco.co.uk",
	"harvest":       "harvestenergy.com",
	"applegreen":    "applegreenstores.com",
	"costco":        "costco.co.uk",
}

// IconURL returns a Clearbit logo URL for a known brand, or the empty
// string when the brand is absent or unknown. Matching is
// case-insensitive and ignores surrounding whitespace.
func IconURL(brand string) string {
	key := strings.ToLower(strings.TrimSpace(brand))
	if key == "" {
		return ""
	}
	domain, ok := brandDomains[key]
	if !ok {
		return ""
	}
	return fmt.Sprintf("https://logo.clearbit.com/%s", domain)
}
