package geo

import (
	"math"
	"testing"
)

func TestHaversineKm(t *testing.T) {
	tests := []struct {
		name string
		a, b Point
		want float64
		tol  float64
	}{
		{"same point", Point{60.17, 24.93}, Point{60.17, 24.93}, 0, 1e-9},
		{"helsinki one hundredth of a degree east", Point{60.17, 24.93}, Point{60.17, 24.94}, 0.553, 0.01},
		{"helsinki to tampere", Point{60.1699, 24.9384}, Point{61.4978, 23.7610}, 160.6, 1.5},
		{"one degree latitude", Point{0, 0}, Point{1, 0}, 111.19, 0.01},
		{"antipodes", Point{0, 0}, Point{0, 180}, math.Pi * EarthRadiusKm, 1e-6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.a, tt.b)
			if math.Abs(got-tt.want) > tt.tol {
				t.Errorf("HaversineKm(%v, %v) = %.4f, want %.4f +/- %.4f", tt.a, tt.b, got, tt.want, tt.tol)
			}
			if back := HaversineKm(tt.b, tt.a); math.Abs(back-got) > 1e-9 {
				t.Errorf("distance not symmetric: %.6f vs %.6f", got, back)
			}
		})
	}
}

func TestPointValid(t *testing.T) {
	tests := []struct {
		p    Point
		want bool
	}{
		{Point{0, 0}, true},
		{Point{90, 180}, true},
		{Point{-90, -180}, true},
		{Point{90.01, 0}, false},
		{Point{0, -180.5}, false},
		{Point{math.NaN(), 0}, false},
		{Point{0, math.Inf(1)}, false},
	}

	for _, tt := range tests {
		if got := tt.p.Valid(); got != tt.want {
			t.Errorf("%v.Valid() = %v, want %v", tt.p, got, tt.want)
		}
	}
}
