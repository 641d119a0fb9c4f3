package models

import "fmt"

// FuelType describes one entry in the provider's fuel catalog.
type FuelType struct {
	// Code is the provider's fuel type identifier (e.g. "E10").
	Code string
	// Family groups related grades for display labelling.
	Family string
	// Name is the full human-readable name.
	Name string
}

// FuelTypes is the catalog of fuel types offered by the provider.
var FuelTypes = map[string]FuelType{
	"E10":         {Code: "E10", Family: "Petrol", Name: "Regular Unleaded (E10)"},
	"E5":          {Code: "E5", Family: "Petrol", Name: "Super Unleaded (E5)"},
	"B7_STANDARD": {Code: "B7_STANDARD", Family: "Diesel", Name: "Diesel (B7)"},
	"B7_PREMIUM":  {Code: "B7_PREMIUM", Family: "Diesel", Name: "Premium Diesel"},
	"B10":         {Code: "B10", Family: "Biodiesel", Name: "Biodiesel (B10)"},
	"HVO":         {Code: "HVO", Family: "HVO", Name: "HVO Diesel"},
}

// ValidFuelCode reports whether code names a known fuel type.
func ValidFuelCode(code string) bool {
	_, ok := FuelTypes[code]
	return ok
}

// DisplayLabels builds a display label per selected fuel code. A code that
// is the only selected grade of its family gets the bare family name; when
// two or more grades of the same family are selected their codes are
// appended so the labels stay distinguishable.
func DisplayLabels(selected []string) map[string]string {
	familyCount := make(map[string]int)
	for _, code := range selected {
		if ft, ok := FuelTypes[code]; ok {
			familyCount[ft.Family]++
		}
	}

	labels := make(map[string]string, len(selected))
	for _, code := range selected {
		ft, ok := FuelTypes[code]
		if !ok {
			labels[code] = code
			continue
		}
		if familyCount[ft.Family] > 1 {
			labels[code] = fmt.Sprintf("%s (%s)", ft.Family, ft.Code)
		} else {
			labels[code] = ft.Family
		}
	}
	return labels
}
