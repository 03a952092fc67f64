package geocode

import (
	"context"
	"sort"
	"strings"
)

// City is a gazetteer entry.
type City struct {
	Name  string
	Admin string
	Lat   float64
	Lon   float64
}

// FinnishCities is the default gazetteer.
var FinnishCities = []City{
	{"Helsinki", "Uusimaa", 60.1699, 24.9384},
	{"Espoo", "Uusimaa", 60.1699, 24.7384},
	{"Tampere", "Pirkanmaa", 61.4991, 23.7871},
	{"Vantaa", "Uusimaa", 60.2941, 25.0403},
	{"Turku", "Varsinais-Suomi", 60.4518, 22.2666},
	{"Oulu", "Pohjois-Pohjanmaa", 65.0121, 25.4651},
	{"Lahti", "Päijät-Häme", 60.9827, 25.6612},
	{"Kuopio", "Pohjois-Savo", 62.8924, 27.6770},
	{"Jyväskylä", "Keski-Suomi", 62.2415, 25.7209},
	{"Pori", "Satakunta", 61.4858, 21.7974},
	{"Lappeenranta", "Etelä-Karjala", 61.0586, 28.1864},
	{"Vaasa", "Pohjanmaa", 63.0960, 21.6158},
	{"Joensuu", "Pohjois-Karjala", 62.6019, 29.7636},
	{"Hämeenlinna", "Kanta-Häme", 61.0030, 24.4643},
	{"Seinäjoki", "Etelä-Pohjanmaa", 62.7945, 22.8282},
	{"Mikkeli", "Etelä-Savo", 61.6886, 27.2723},
	{"Kotka", "Kymenlaakso", 60.4664, 26.9458},
	{"Kouvola", "Kymenlaakso", 60.8686, 26.7047},
	{"Imatra", "Etelä-Karjala", 61.1719, 28.7764},
	{"Nokia", "Pirkanmaa", 61.4667, 23.5000},
	{"Savonlinna", "Etelä-Savo", 61.8681, 28.8833},
	{"Riihimäki", "Kanta-Häme", 60.7372, 24.7775},
	{"Hyvinkää", "Uusimaa", 60.6331, 24.8631},
	{"Kemi", "Lappi", 65.7364, 24.5639},
	{"Kokkola", "Keski-Pohjanmaa", 63.8381, 23.1306},
	{"Rovaniemi", "Lappi", 66.5031, 25.7289},
	{"Tornio", "Lappi", 65.8481, 24.1467},
	{"Salo", "Varsinais-Suomi", 60.3831, 23.1256},
	{"Iisalmi", "Pohjois-Savo", 63.5614, 27.1875},
	{"Kajaani", "Kainuu", 64.2250, 27.7283},
	{"Forssa", "Kanta-Häme", 60.8142, 23.6217},
}

// Gazetteer is an offline Geocoder over a fixed city list.
type Gazetteer struct {
	cities []City
}

// NewGazetteer creates a Gazetteer. A nil list uses FinnishCities.
func NewGazetteer(cities []City) *Gazetteer {
	if cities == nil {
		cities = FinnishCities
	}
	return &Gazetteer{cities: cities}
}

// Search matches query case-insensitively against city and region names.
// Exact city names rank first, then city-name matches, then region matches.
func (g *Gazetteer) Search(_ context.Context, query string, limit int) ([]Place, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || limit <= 0 {
		return nil, nil
	}

	type hit struct {
		place Place
		rank  int
	}
	var hits []hit
	for _, c := range g.cities {
		name := strings.ToLower(c.Name)
		rank := -1
		switch {
		case name == q:
			rank = 0
		case strings.Contains(name, q):
			rank = 1
		case strings.Contains(strings.ToLower(c.Admin), q):
			rank = 2
		}
		if rank < 0 {
			continue
		}
		hits = append(hits, hit{
			place: Place{
				DisplayName: c.Name + ", " + c.Admin,
				Lat:         c.Lat,
				Lon:         c.Lon,
				Type:        "city",
				Confidence:  GazetteerConfidence,
				Source:      SourceGazetteer,
			},
			rank: rank,
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].rank < hits[j].rank })

	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]Place, len(hits))
	for i, h := range hits {
		out[i] = h.place
	}
	return out, nil
}
