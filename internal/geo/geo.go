// Package geo holds the pure coordinate and polygon validation used by
// the marker pipeline and the boundary loader. It has no dependencies on
// the store or the geocoding provider.
package geo

import (
	"fmt"
	"math"

	"github.com/mkelleher/territory-console-go/internal/domain"
)

// Service-area bounding box: the continental United States.
const (
	MinLat = 24.396308
	MaxLat = 49.384358
	MinLng = -125.0
	MaxLng = -66.934570
)

// Finite reports whether v is a usable coordinate component.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// FinitePoint reports whether both components of p are finite.
func FinitePoint(p domain.Point) bool {
	return Finite(p.Lat) && Finite(p.Lng)
}

// InBounds reports whether a finite pair falls inside the service area.
// Callers must check finiteness first; NaN comparisons are always false,
// which would silently pass through here otherwise.
func InBounds(lat, lng float64) bool {
	return lat >= MinLat && lat <= MaxLat && lng >= MinLng && lng <= MaxLng
}

// ValidCoordinate is the single check the pipeline applies to persisted
// and freshly geocoded coordinates: finite and inside the service area.
func ValidCoordinate(lat, lng float64) bool {
	return Finite(lat) && Finite(lng) && InBounds(lat, lng)
}

// ValidatePoint returns every problem with the pair. An empty slice means
// the point is usable.
func ValidatePoint(lat, lng float64) []string {
	if !Finite(lat) || !Finite(lng) {
		return []string{fmt.Sprintf("non-finite coordinate (%v, %v)", lat, lng)}
	}
	if !InBounds(lat, lng) {
		return []string{fmt.Sprintf("coordinate (%.6f, %.6f) outside service area", lat, lng)}
	}
	return nil
}

// ValidatePolygon checks a closed ring and aggregates every issue rather
// than stopping at the first one. Callers are expected to have dropped
// non-finite vertices already; any that remain are reported. An empty
// slice means the polygon is drawable.
func ValidatePolygon(points []domain.Point) []string {
	var issues []string

	for i, p := range points {
		if !FinitePoint(p) {
			issues = append(issues, fmt.Sprintf("vertex %d is non-finite", i))
		}
	}
	if len(issues) > 0 {
		// Geometry checks below are meaningless with NaN vertices.
		return issues
	}

	if len(points) < 3 {
		issues = append(issues, fmt.Sprintf("polygon has %d points, need at least 3", len(points)))
		return issues
	}

	first, last := points[0], points[len(points)-1]
	closed := first.Lat == last.Lat && first.Lng == last.Lng
	if !closed {
		issues = append(issues, "polygon is not closed: first and last points differ")
	}

	for i, p := range points {
		if !InBounds(p.Lat, p.Lng) {
			issues = append(issues, fmt.Sprintf("vertex %d (%.6f, %.6f) outside service area", i, p.Lat, p.Lng))
		}
	}

	if closed && selfIntersects(points) {
		issues = append(issues, "polygon edges self-intersect")
	}

	return issues
}

// selfIntersects tests every pair of non-adjacent edges of a closed ring.
// Adjacent edges share a vertex and would trivially report a crossing, so
// they are skipped, as is the (first, last) pair which shares the closing
// vertex.
func selfIntersects(points []domain.Point) bool {
	n := len(points) - 1 // edge count; last point duplicates the first
	for i := 0; i < n; i++ {
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue
			}
			if segmentsCross(points[i], points[i+1], points[j], points[j+1]) {
				return true
			}
		}
	}
	return false
}

func ccw(a, b, c domain.Point) bool {
	return (c.Lat-a.Lat)*(b.Lng-a.Lng) > (b.Lat-a.Lat)*(c.Lng-a.Lng)
}

func segmentsCross(p1, p2, p3, p4 domain.Point) bool {
	return ccw(p1, p3, p4) != ccw(p2, p3, p4) && ccw(p1, p2, p3) != ccw(p1, p2, p4)
}
