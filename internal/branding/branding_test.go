package branding_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fuelwatch/fuel-price-watcher/internal/branding"
)

func TestIconURL_KnownBrand(t *testing.T) {
	assert.Equal(t, "https://logo.clearbit.com/tesco.com", branding.IconURL("Tesco"))
	assert.Equal(t, "https://logo.clearbit.com/bp.com", branding.IconURL("BP"))
}

func TestIconURL_CaseInsensitiveAndTrimmed(t *testing.T) {
	assert.Equal(t, "https://logo.clearbit.com/shell.co.uk", branding.IconURL("  SHELL  "))
}

func TestIconURL_ApostropheVariants(t *testing.T) {
	assert.Equal(t, "https://logo.clearbit.com/sainsburys.co.uk", branding.IconURL("Sainsbury's"))
	assert.Equal(t, "https://logo.clearbit.com/sainsburys.co.uk", branding.IconURL("Sainsburys"))
}

func TestIconURL_Unknown(t *testing.T) {
	assert.Empty(t, branding.IconURL("Dave's Discount Diesel"))
	assert.Empty(t, branding.IconURL(""))
}
