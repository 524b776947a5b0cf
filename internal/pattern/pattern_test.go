package pattern

import (
	"math"
	"math/rand"
	"testing"

	"candlebt/internal/domain"
)

func c(o, h, l, cl float64) domain.Bar {
	return domain.Bar{Open: o, High: h, Low: l, Close: cl}
}

func TestIsHammer(t *testing.T) {
	tests := []struct {
		name string
		bar  domain.Bar
		want bool
	}{
		{"classic hammer", c(98, 100, 90, 100), true},
		{"bearish body hammer", c(100, 100, 90, 98), true},
		{"upper wick too long", c(96, 100, 90, 98), false},
		{"body too large", c(95, 100, 90, 100), false},
		{"doji rejected", c(99.8, 100, 90, 100), false},
		{"zero range", c(100, 100, 100, 100), false},
		{"tiny range", c(100, 100.00005, 100, 100.00004), false},
		{"shooting star", c(92, 100, 90, 90), false},
		{"nan prices", c(math.NaN(), 100, 90, 100), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsHammer(tt.bar, DefaultBodyRatio, DefaultWickRatio); got != tt.want {
				t.Errorf("IsHammer(%+v) = %v, want %v", tt.bar, got, tt.want)
			}
		})
	}
}

func TestIsHammerCustomRatios(t *testing.T) {
	bar := c(98, 100, 90, 100) // body/range = 0.2, lower wick = 4x body
	if IsHammer(bar, 0.1, DefaultWickRatio) {
		t.Error("IsHammer with bodyRatio 0.1 should reject a 0.2 body")
	}
	if IsHammer(bar, DefaultBodyRatio, 5) {
		t.Error("IsHammer with wickRatio 5 should reject a 4x lower wick")
	}
}

func TestIsShootingStar(t *testing.T) {
	tests := []struct {
		name string
		bar  domain.Bar
		want bool
	}{
		{"classic star", c(92, 100, 90, 90), true},
		{"bullish body star", c(90, 100, 90, 92), true},
		{"lower wick too long", c(94, 100, 90, 92), false},
		{"doji rejected", c(90.2, 100, 90, 90), false},
		{"zero range", c(50, 50, 50, 50), false},
		{"hammer", c(98, 100, 90, 100), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsShootingStar(tt.bar, DefaultBodyRatio, DefaultWickRatio); got != tt.want {
				t.Errorf("IsShootingStar(%+v) = %v, want %v", tt.bar, got, tt.want)
			}
		})
	}
}

func TestHammerAndShootingStarExclusive(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20000; i++ {
		low := 50 + rng.Float64()*50
		high := low + rng.Float64()*10
		o := low + rng.Float64()*(high-low)
		cl := low + rng.Float64()*(high-low)
		bar := c(o, high, low, cl)

		for _, ratio := range [][2]float64{{DefaultBodyRatio, DefaultWickRatio}, {0.5, 1}, {1, 0}} {
			if IsHammer(bar, ratio[0], ratio[1]) && IsShootingStar(bar, ratio[0], ratio[1]) {
				t.Fatalf("bar %+v is both hammer and shooting star with ratios %v", bar, ratio)
			}
		}
	}
}

func TestIsDoji(t *testing.T) {
	if !IsDoji(c(95, 100, 90, 95.5), DefaultDojiThreshold) {
		t.Error("expected doji for body 5% of range")
	}
	if IsDoji(c(92, 100, 90, 98), DefaultDojiThreshold) {
		t.Error("unexpected doji for body 60% of range")
	}
	if IsDoji(c(100, 100, 100, 100), DefaultDojiThreshold) {
		t.Error("zero-range bar must not be a doji")
	}
}

func TestIsBullishEngulfing(t *testing.T) {
	prev := c(105, 106, 99, 100)
	if !IsBullishEngulfing(prev, c(99, 107, 98, 106)) {
		t.Error("expected bullish engulfing")
	}
	if IsBullishEngulfing(prev, c(100, 107, 98, 106)) {
		t.Error("open equal to previous close does not engulf")
	}
	if IsBullishEngulfing(c(100, 106, 99, 105), c(99, 107, 98, 106)) {
		t.Error("bullish previous candle cannot be engulfed")
	}
}

func TestDetect(t *testing.T) {
	bars := []domain.Bar{
		c(105, 106, 99, 100),
		c(98, 100, 90, 100),
	}
	ids := Detect(bars, 1)
	if len(ids) != 1 || ids[0] != Hammer {
		t.Errorf("Detect = %v, want [Hammer]", ids)
	}
	if Detect(bars, 5) != nil {
		t.Error("Detect out of range should return nil")
	}
}
