// Package geometry normalizes and repairs feature geometry ahead of import.
// Validity testing and repair are delegated to GEOS; the orb geometry model
// is used everywhere else in the pipeline.
package geometry

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/twpayne/go-geos"
)

// Provenance records what the cleaner had to do to produce a valid geometry.
type Provenance string

const (
	ProvenanceUnchanged    Provenance = "unchanged"
	ProvenanceDeduplicated Provenance = "vertex_deduplicated"
	ProvenanceRepaired     Provenance = "repaired"
)

// Validated is a geometry guaranteed topologically valid in its source frame.
type Validated struct {
	Geometry   orb.Geometry
	Provenance Provenance
}

// RepairFailedError reports a geometry that could not be made valid. Reason
// carries the original invalidity diagnosis, not the repair step that gave up.
type RepairFailedError struct {
	Reason string
}

func (e *RepairFailedError) Error() string {
	return fmt.Sprintf("geometry repair failed: %s", e.Reason)
}

// Cleaner validates and repairs a single geometry.
type Cleaner struct{}

func NewCleaner() *Cleaner {
	return &Cleaner{}
}

// Clean deduplicates consecutive vertices, tests topological validity and, if
// needed, escalates through zero-width buffering and a full validity repair.
// A geometry that stays invalid, or degenerates to empty, fails with the
// original invalidity reason attached.
func (c *Cleaner) Clean(g orb.Geometry) (Validated, error) {
	if g == nil {
		return Validated{}, &RepairFailedError{Reason: "nil geometry"}
	}

	deduped, changed := dedupeVertices(g)

	provenance := ProvenanceUnchanged
	if changed {
		provenance = ProvenanceDeduplicated
	}

	// Points cannot be topologically invalid once duplicates are gone.
	switch deduped.(type) {
	case orb.Point, orb.MultiPoint:
		return Validated{Geometry: deduped, Provenance: provenance}, nil
	}

	geom, err := toGeos(deduped)
	if err != nil {
		return Validated{}, &RepairFailedError{Reason: err.Error()}
	}

	if geom.IsValid() {
		return Validated{Geometry: deduped, Provenance: provenance}, nil
	}

	reason := geom.IsValidReason()

	// Zero-width buffering fixes the common self-intersection case cheaply.
	if buffered := geom.Buffer(0, 8); buffered != nil && buffered.IsValid() && !buffered.IsEmpty() {
		repaired, err := fromGeos(buffered)
		if err == nil && sameKind(repaired, deduped) {
			return Validated{Geometry: repaired, Provenance: ProvenanceRepaired}, nil
		}
	}

	// Heavier general repair only when buffering did not yield a usable result.
	if fixed := geom.MakeValid(); fixed != nil && fixed.IsValid() && !fixed.IsEmpty() {
		repaired, err := fromGeos(fixed)
		if err == nil && sameKind(repaired, deduped) {
			return Validated{Geometry: repaired, Provenance: ProvenanceRepaired}, nil
		}
	}

	return Validated{}, &RepairFailedError{Reason: reason}
}

// dedupeVertices removes consecutive identical vertices from every ring and
// line of the geometry, reporting whether anything was removed.
func dedupeVertices(g orb.Geometry) (orb.Geometry, bool) {
	switch geom := g.(type) {
	case orb.Point:
		return geom, false
	case orb.MultiPoint:
		return geom, false
	case orb.LineString:
		out, changed := dedupeLine(geom)
		return orb.LineString(out), changed
	case orb.MultiLineString:
		changed := false
		out := make(orb.MultiLineString, 0, len(geom))
		for _, line := range geom {
			deduped, c := dedupeLine(orb.LineString(line))
			changed = changed || c
			out = append(out, orb.LineString(deduped))
		}
		return out, changed
	case orb.Polygon:
		out, changed := dedupePolygon(geom)
		return out, changed
	case orb.MultiPolygon:
		changed := false
		out := make(orb.MultiPolygon, 0, len(geom))
		for _, poly := range geom {
			deduped, c := dedupePolygon(poly)
			changed = changed || c
			out = append(out, deduped)
		}
		return out, changed
	default:
		return g, false
	}
}

func dedupeLine(line orb.LineString) (orb.LineString, bool) {
	if len(line) < 2 {
		return line, false
	}
	out := make(orb.LineString, 0, len(line))
	out = append(out, line[0])
	for _, pt := range line[1:] {
		if pt != out[len(out)-1] {
			out = append(out, pt)
		}
	}
	return out, len(out) != len(line)
}

func dedupePolygon(poly orb.Polygon) (orb.Polygon, bool) {
	changed := false
	out := make(orb.Polygon, 0, len(poly))
	for _, ring := range poly {
		// The closing vertex must survive deduplication.
		closed := len(ring) > 1 && ring[0] == ring[len(ring)-1]
		line, c := dedupeLine(orb.LineString(ring))
		if closed && (len(line) == 0 || line[0] != line[len(line)-1]) {
			line = append(line, line[0])
		}
		changed = changed || c
		out = append(out, orb.Ring(line))
	}
	return out, changed
}

// sameKind rejects repairs that change the dimensionality of the geometry,
// e.g. a polygon collapsing to a line.
func sameKind(repaired, original orb.Geometry) bool {
	return polygonal(repaired) == polygonal(original)
}

func polygonal(g orb.Geometry) bool {
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return true
	default:
		return false
	}
}

func toGeos(g orb.Geometry) (*geos.Geom, error) {
	raw, err := json.Marshal(geojson.NewGeometry(g))
	if err != nil {
		return nil, err
	}
	return geos.NewGeomFromGeoJSON(string(raw))
}

func fromGeos(g *geos.Geom) (orb.Geometry, error) {
	decoded, err := geojson.UnmarshalGeometry([]byte(g.ToGeoJSON(-1)))
	if err != nil {
		return nil, err
	}
	return decoded.Geometry(), nil
}
