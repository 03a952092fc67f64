package geo

import (
	"math"
	"testing"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name      string
		point     Point
		precision int
		want      string
	}{
		{"san francisco precision 6", Point{37.7749, -122.4194}, 6, "9q8yyk"},
		{"helsinki precision 5", Point{60.1699, 24.9384}, 5, "ud9wr"},
		{"origin precision 4", Point{0, 0}, 4, "7zzz"},
		{"zero precision falls back to display precision", Point{37.7749, -122.4194}, 0, "9q8yyk"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Encode(tt.point, tt.precision)
			if got != tt.want {
				t.Errorf("Encode(%v, %d) = %q, want %q", tt.point, tt.precision, got, tt.want)
			}
		})
	}
}

func TestDecode_ContainsEncodedPoint(t *testing.T) {
	points := []Point{
		{60.17, 24.93},
		{-33.8688, 151.2093},
		{37.7749, -122.4194},
		{0.0001, -0.0001},
	}

	for _, p := range points {
		hash := Encode(p, 8)
		cell, ok := Decode(hash)
		if !ok {
			t.Fatalf("Decode(%q) failed", hash)
		}
		if p.Lat < cell.MinLat || p.Lat > cell.MaxLat || p.Lon < cell.MinLon || p.Lon > cell.MaxLon {
			t.Errorf("point %v outside decoded cell %+v of %q", p, cell, hash)
		}
	}
}

func TestDecode_Invalid(t *testing.T) {
	for _, hash := range []string{"", "9q8a", "ilo", "9q8 yy"} {
		if _, ok := Decode(hash); ok {
			t.Errorf("Decode(%q) ok = true, want false", hash)
		}
	}
}

func TestDecode_UppercaseAccepted(t *testing.T) {
	lower, ok1 := Decode("ud9wr")
	upper, ok2 := Decode("UD9WR")
	if !ok1 || !ok2 {
		t.Fatal("expected both to decode")
	}
	if lower != upper {
		t.Errorf("case changed decoded cell: %+v vs %+v", lower, upper)
	}
}

func TestCoarsen(t *testing.T) {
	p := Point{60.17, 24.93}
	c := Coarsen(p)

	if d := HaversineKm(p, c); d > 0.8 {
		t.Errorf("coarse point %.3f km from original, want <= 0.8", d)
	}
	if c == p {
		t.Error("coarse point equals precise point")
	}
	if again := Coarsen(p); again != c {
		t.Errorf("Coarsen not deterministic: %v then %v", c, again)
	}

	// Nearby points in the same cell collapse to the same display point.
	cell, _ := Decode(Encode(p, DisplayPrecision))
	inside := Point{Lat: cell.MinLat + 1e-6, Lon: cell.MinLon + 1e-6}
	if Coarsen(inside) != c {
		t.Errorf("points in the same cell coarsened differently")
	}
}

func TestRoundGeohash(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		precision int
		want      string
	}{
		{"truncate to display precision", "9q8yyk8yuv", DisplayPrecision, "9q8yyk"},
		{"truncate to precision 4", "9q8yyk8yuv", 4, "9q8y"},
		{"shorter than precision returned as is", "9q8", 6, "9q8"},
		{"uppercase normalized", "9Q8YYK8", 6, "9q8yyk"},
		{"empty input", "", 6, ""},
		{"invalid character", "9q8ayk", 6, ""},
		{"zero precision", "9q8yyk", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RoundGeohash(tt.input, tt.precision); got != tt.want {
				t.Errorf("RoundGeohash(%q, %d) = %q, want %q", tt.input, tt.precision, got, tt.want)
			}
		})
	}
}

func TestCellCenter(t *testing.T) {
	c := Cell{MinLat: 10, MaxLat: 20, MinLon: -30, MaxLon: -10}
	got := c.Center()
	if math.Abs(got.Lat-15) > 1e-12 || math.Abs(got.Lon+20) > 1e-12 {
		t.Errorf("Center() = %v, want (15,-20)", got)
	}
}
