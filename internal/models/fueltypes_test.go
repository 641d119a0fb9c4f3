package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fuelwatch/fuel-price-watcher/internal/models"
)

func TestDisplayLabels_LoneGradeGetsFamilyName(t *testing.T) {
	labels := models.DisplayLabels([]string{"E10", "B7_STANDARD"})
	assert.Equal(t, "Petrol", labels["E10"])
	assert.Equal(t, "Diesel", labels["B7_STANDARD"])
}

func TestDisplayLabels_SharedFamilyGetsCodeSuffix(t *testing.T) {
	labels := models.DisplayLabels([]string{"E10", "E5"})
	assert.Equal(t, "Petrol (E10)", labels["E10"])
	assert.Equal(t, "Petrol (E5)", labels["E5"])
}

func TestDisplayLabels_MixedSelection(t *testing.T) {
	labels := models.DisplayLabels([]string{"B7_STANDARD", "B7_PREMIUM", "HVO"})
	assert.Equal(t, "Diesel (B7_STANDARD)", labels["B7_STANDARD"])
	assert.Equal(t, "Diesel (B7_PREMIUM)", labels["B7_PREMIUM"])
	assert.Equal(t, "HVO", labels["HVO"])
}

func TestDisplayLabels_UnknownCodePassesThrough(t *testing.T) {
	labels := models.DisplayLabels([]string{"LPG"})
	assert.Equal(t, "LPG", labels["LPG"])
}

func TestValidFuelCode(t *testing.T) {
	assert.True(t, models.ValidFuelCode("E10"))
	assert.True(t, models.ValidFuelCode("HVO"))
	assert.False(t, models.ValidFuelCode("LPG"))
	assert.False(t, models.ValidFuelCode(""))
}
