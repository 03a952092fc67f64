// Package geo provides the distance and coarse-location primitives used by
// search filtering, scoring and result display.
package geo

import "strings"

// DisplayPrecision is the geohash precision used for coarse result display.
// Precision 6 cells are about 1.2 km x 0.6 km, so a displayed point is within
// roughly 0.6 km of the true location without pinpointing a home address.
const DisplayPrecision = 6

// base32 is the geohash alphabet. It omits 'a', 'i', 'l' and 'o'.
const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// decodeMap maps an alphabet byte to its 5-bit value, or -1.
var decodeMap = func() [256]int8 {
	var m [256]int8
	for i := range m {
		m[i] = -1
	}
	for i := 0; i < len(base32); i++ {
		m[base32[i]] = int8(i)
	}
	return m
}()

// Encode encodes a point into a geohash of the given length.
// A precision below 1 uses DisplayPrecision.
func Encode(p Point, precision int) string {
	if precision < 1 {
		precision = DisplayPrecision
	}

	latRange := [2]float64{-90.0, 90.0}
	lonRange := [2]float64{-180.0, 180.0}

	var sb strings.Builder
	sb.Grow(precision)

	bits := 0
	var ch uint
	even := true
	for sb.Len() < precision {
		if even {
			mid := (lonRange[0] + lonRange[1]) / 2
			if p.Lon > mid {
				ch |= 1 << (4 - bits)
				lonRange[0] = mid
			} else {
				lonRange[1] = mid
			}
		} else {
			mid := (latRange[0] + latRange[1]) / 2
			if p.Lat > mid {
				ch |= 1 << (4 - bits)
				latRange[0] = mid
			} else {
				latRange[1] = mid
			}
		}

		even = !even
		bits++
		if bits == 5 {
			sb.WriteByte(base32[ch])
			bits = 0
			ch = 0
		}
	}

	return sb.String()
}

// Cell is the bounding box of a geohash.
type Cell struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// Center returns the midpoint of the cell.
func (c Cell) Center() Point {
	return Point{
		Lat: (c.MinLat + c.MaxLat) / 2,
		Lon: (c.MinLon + c.MaxLon) / 2,
	}
}

// Decode returns the cell described by hash. The second return value is false
// when hash is empty or contains characters outside the geohash alphabet.
func Decode(hash string) (Cell, bool) {
	if hash == "" {
		return Cell{}, false
	}

	cell := Cell{MinLat: -90, MaxLat: 90, MinLon: -180, MaxLon: 180}
	even := true
	lower := strings.ToLower(hash)
	for i := 0; i < len(lower); i++ {
		v := decodeMap[lower[i]]
		if v < 0 {
			return Cell{}, false
		}
		for bit := 4; bit >= 0; bit-- {
			set := v&(1<<bit) != 0
			if even {
				mid := (cell.MinLon + cell.MaxLon) / 2
				if set {
					cell.MinLon = mid
				} else {
					cell.MaxLon = mid
				}
			} else {
				mid := (cell.MinLat + cell.MaxLat) / 2
				if set {
					cell.MinLat = mid
				} else {
					cell.MaxLat = mid
				}
			}
			even = !even
		}
	}
	return cell, true
}

// RoundGeohash truncates hash to precision characters, lowercased.
// It returns "" for empty or invalid input and for precision < 1.
func RoundGeohash(hash string, precision int) string {
	if hash == "" || precision < 1 {
		return ""
	}

	lower := strings.ToLower(hash)
	for i := 0; i < len(lower); i++ {
		if decodeMap[lower[i]] < 0 {
			return ""
		}
	}

	if len(lower) <= precision {
		return lower
	}
	return lower[:precision]
}

// Coarsen returns the centre of the DisplayPrecision cell that contains p.
// The result is deterministic: the same input always maps to the same point.
func Coarsen(p Point) Point {
	cell, _ := Decode(Encode(p, DisplayPrecision))
	return cell.Center()
}
