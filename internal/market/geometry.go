package market

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrPolygonEmpty    = errors.New("polygon has no ring")
	ErrPolygonTooShort = errors.New("polygon ring needs at least 4 positions")
	ErrPolygonOpen     = errors.New("polygon ring is not closed")
	ErrCoordinateRange = errors.New("coordinate out of range")
)

// UnmarshalJSON also accepts the geometry serialized as a JSON string, which
// is how multipart updates store it.
func (g *Geometry) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(s)
	}
	type plain Geometry
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return fmt.Errorf("geometry: %w", err)
	}
	*g = Geometry(p)
	return nil
}

// NewPolygon builds a single-ring polygon from [lng, lat] positions, closing
// the ring when the last position differs from the first.
func NewPolygon(ring [][2]float64) Geometry {
	r := append([][2]float64(nil), ring...)
	if len(r) > 0 && r[0] != r[len(r)-1] {
		r = append(r, r[0])
	}
	return Geometry{Type: "Polygon", Coordinates: [][][2]float64{r}}
}

// Validate checks a GeoJSON polygon: every ring closed, at least four
// positions, longitudes within ±180 and latitudes within ±90.
func (g Geometry) Validate() error {
	if g.Type != "Polygon" {
		return fmt.Errorf("geometry type %q: only Polygon is supported", g.Type)
	}
	if len(g.Coordinates) == 0 {
		return ErrPolygonEmpty
	}
	for i, ring := range g.Coordinates {
		if len(ring) < 4 {
			return fmt.Errorf("ring %d: %w", i, ErrPolygonTooShort)
		}
		if ring[0] != ring[len(ring)-1] {
			return fmt.Errorf("ring %d: %w", i, ErrPolygonOpen)
		}
		for j, p := range ring {
			if p[0] < -180 || p[0] > 180 || p[1] < -90 || p[1] > 90 {
				return fmt.Errorf("ring %d position %d (%g, %g): %w", i, j, p[0], p[1], ErrCoordinateRange)
			}
		}
	}
	return nil
}

// Centroid is the mean of the outer ring's distinct positions, as [lng, lat].
func (g Geometry) Centroid() ([2]float64, bool) {
	if len(g.Coordinates) == 0 || len(g.Coordinates[0]) == 0 {
		return [2]float64{}, false
	}
	ring := g.Coordinates[0]
	if len(ring) > 1 && ring[0] == ring[len(ring)-1] {
		ring = ring[:len(ring)-1]
	}
	var sum [2]float64
	for _, p := range ring {
		sum[0] += p[0]
		sum[1] += p[1]
	}
	n := float64(len(ring))
	return [2]float64{sum[0] / n, sum[1] / n}, true
}

// formFields flattens the polygon into the bracketed multipart keys the
// backend expects: coordinates[type] and coordinates[coordinates][r][p][0|1].
func (g Geometry) formFields() [][2]string {
	out := [][2]string{{"coordinates[type]", g.Type}}
	for r, ring := range g.Coordinates {
		for p, pos := range ring {
			prefix := fmt.Sprintf("coordinates[coordinates][%d][%d]", r, p)
			out = append(out,
				[2]string{prefix + "[0]", strconv.FormatFloat(pos[0], 'f', -1, 64)},
				[2]string{prefix + "[1]", strconv.FormatFloat(pos[1], 'f', -1, 64)},
			)
		}
	}
	return out
}
