// Package pricing normalises raw fuel prices into pence per litre.
package pricing

import "math"

const (
	// MinPence is the lowest plausible price in pence per litre.
	MinPence = 100
	// MaxPence is the highest plausible price in pence per litre.
	MaxPence = 180
)

// Clean normalises a raw provider price into pence per litre.
//
// The feed contains two recurring misencodings: prices in pounds
// (1.289 instead of 128.9) and prices with an extra digit (1319
// instead of 131.9). After repair the value is only accepted when it
// falls inside the plausible [MinPence, MaxPence] window; anything
// else returns nil.
func Clean(raw *float64) *float64 {
	if raw == nil {
		return nil
	}

	price := *raw
	switch {
	case price < 10:
		price *= 100
	case price > 1000:
		price /= 10
	}

	if price < MinPence || price > MaxPence {
		return nil
	}

	rounded := math.Round(price*10) / 10
	return &rounded
}
