// Package geo ranks branch stores by great-circle distance from the member.
package geo

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
)

// EarthRadiusKm is the mean Earth radius used by Distance.
const EarthRadiusKm = 6371.0

// ErrInvalidPoint indicates coordinates outside the valid latitude/longitude range.
var ErrInvalidPoint = errors.New("geo: invalid coordinates")

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the point lies within [-90,90] x [-180,180].
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// ParsePoint parses query-string coordinates.
func ParsePoint(lat, lng string) (Point, error) {
	latValue, errLat := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if errLat != nil {
		return Point{}, ErrInvalidPoint
	}
	lngValue, errLng := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if errLng != nil {
		return Point{}, ErrInvalidPoint
	}
	p := Point{Lat: latValue, Lng: lngValue}
	if !p.Valid() {
		return Point{}, ErrInvalidPoint
	}
	return p, nil
}

// Distance returns the haversine distance between a and b in kilometers.
func Distance(a, b Point) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	h = math.Min(1, h)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// Store is a physical branch.
type Store struct {
	ID      int     `json:"id"`
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// Point returns the store location.
func (s Store) Point() Point { return Point{Lat: s.Lat, Lng: s.Lng} }

// DefaultStores is the fixed branch list.
var DefaultStores = []Store{
	{ID: 1, Name: "สาขาสยามพารากอน", Address: "ชั้น 2 โซน Beauty Hall, สยามพารากอน", Lat: 13.7465, Lng: 100.5347},
	{ID: 2, Name: "สาขาเซ็นทรัลเวิลด์", Address: "ชั้น G ตรงข้าม Boots, เซ็นทรัลเวิลด์", Lat: 13.7458, Lng: 100.5393},
	{ID: 3, Name: "สาขาเมเจอร์ รังสิต", Address: "ชั้น 1 โซน Health & Beauty, เมเจอร์ รังสิต", Lat: 13.9605, Lng: 100.6073},
}

// DefaultLimit is how many stores the locator shows.
const DefaultLimit = 3

// Ranked is a store with its distance from the query point.
type Ranked struct {
	Store
	DistanceKm float64 `json:"distance_km"`
}

// Nearest returns up to limit stores ordered by distance from origin.
// Stores at equal distance keep their input order. limit <= 0 returns every store.
func Nearest(origin Point, stores []Store, limit int) []Ranked {
	ranked := make([]Ranked, 0, len(stores))
	for _, store := range stores {
		ranked = append(ranked, Ranked{Store: store, DistanceKm: Distance(origin, store.Point())})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].DistanceKm < ranked[j].DistanceKm
	})
	if limit > 0 && limit < len(ranked) {
		ranked = ranked[:limit]
	}
	return ranked
}
