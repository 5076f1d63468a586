package crs

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Reproject transforms the horizontal coordinates of g from the source frame
// into the target frame. The result is a 2D footprint; heights are handled by
// the vertical datum pipeline. Reprojection is pure and deterministic.
func Reproject(g orb.Geometry, fromSRID, toSRID int) (orb.Geometry, error) {
	if g == nil {
		return nil, fmt.Errorf("cannot reproject nil geometry")
	}

	from, err := ResolveFrame(fromSRID)
	if err != nil {
		return nil, err
	}
	to, err := ResolveFrame(toSRID)
	if err != nil {
		return nil, err
	}

	if !supported(g) {
		return nil, fmt.Errorf("unsupported geometry type %s", g.GeoJSONType())
	}
	if empty(g) {
		return nil, fmt.Errorf("cannot reproject empty geometry")
	}

	if from.SRID == to.SRID {
		return mapPoints(g, func(p orb.Point) orb.Point { return p }), nil
	}

	// All pairs pivot through WGS84.
	toWGS, err := toWGS84Func(from.SRID)
	if err != nil {
		return nil, err
	}
	fromWGS, err := fromWGS84Func(to.SRID)
	if err != nil {
		return nil, err
	}

	return mapPoints(g, func(p orb.Point) orb.Point {
		return fromWGS(toWGS(p))
	}), nil
}

func toWGS84Func(srid int) (func(orb.Point) orb.Point, error) {
	switch srid {
	case SRIDWGS84:
		return identity, nil
	case SRIDLV95:
		return lv95ToWGS84, nil
	case SRIDLV03:
		return func(p orb.Point) orb.Point {
			return lv95ToWGS84(lv03ToLV95(p))
		}, nil
	default:
		return nil, fmt.Errorf("no transformation from frame %d", srid)
	}
}

func fromWGS84Func(srid int) (func(orb.Point) orb.Point, error) {
	switch srid {
	case SRIDWGS84:
		return identity, nil
	case SRIDLV95:
		return wgs84ToLV95, nil
	case SRIDLV03:
		return func(p orb.Point) orb.Point {
			return lv95ToLV03(wgs84ToLV95(p))
		}, nil
	default:
		return nil, fmt.Errorf("no transformation to frame %d", srid)
	}
}

func identity(p orb.Point) orb.Point { return p }

// lv95ToWGS84 implements the swisstopo approximation series for projecting
// LV95 plane coordinates onto WGS84 longitude/latitude. Accuracy is on the
// order of a meter, which matches what the source geodesy provider documents
// for the closed-form solution.
func lv95ToWGS84(p orb.Point) orb.Point {
	y := (p[0] - 2600000.0) / 1000000.0
	x := (p[1] - 1200000.0) / 1000000.0

	lon := 2.6779094 +
		4.728982*y +
		0.791484*y*x +
		0.1306*y*x*x -
		0.0436*y*y*y

	lat := 16.9023892 +
		3.238272*x -
		0.270978*y*y -
		0.002528*x*x -
		0.0447*y*y*x -
		0.0140*x*x*x

	// Series results are in units of 10000 sexagesimal seconds.
	return orb.Point{lon * 100.0 / 36.0, lat * 100.0 / 36.0}
}

// wgs84ToLV95 is the inverse approximation series.
func wgs84ToLV95(p orb.Point) orb.Point {
	latSec := (p[1]*3600.0 - 169028.66) / 10000.0
	lonSec := (p[0]*3600.0 - 26782.5) / 10000.0

	e := 2600072.37 +
		211455.93*lonSec -
		10938.51*lonSec*latSec -
		0.36*lonSec*latSec*latSec -
		44.54*lonSec*lonSec*lonSec

	n := 1200147.07 +
		308807.95*latSec +
		3745.25*lonSec*lonSec +
		76.63*latSec*latSec -
		194.56*lonSec*lonSec*latSec +
		119.79*latSec*latSec*latSec

	return orb.Point{e, n}
}

// LV03 and LV95 share the projection; the frames differ by a constant offset.
func lv03ToLV95(p orb.Point) orb.Point {
	return orb.Point{p[0] + 2000000.0, p[1] + 1000000.0}
}

func lv95ToLV03(p orb.Point) orb.Point {
	return orb.Point{p[0] - 2000000.0, p[1] - 1000000.0}
}

// mapPoints applies fn to every vertex, producing a new geometry.
func mapPoints(g orb.Geometry, fn func(orb.Point) orb.Point) orb.Geometry {
	switch geom := g.(type) {
	case orb.Point:
		return fn(geom)
	case orb.MultiPoint:
		out := make(orb.MultiPoint, len(geom))
		for i, p := range geom {
			out[i] = fn(p)
		}
		return out
	case orb.LineString:
		out := make(orb.LineString, len(geom))
		for i, p := range geom {
			out[i] = fn(p)
		}
		return out
	case orb.MultiLineString:
		out := make(orb.MultiLineString, len(geom))
		for i, line := range geom {
			mapped := make(orb.LineString, len(line))
			for j, p := range line {
				mapped[j] = fn(p)
			}
			out[i] = mapped
		}
		return out
	case orb.Polygon:
		return mapPolygon(geom, fn)
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(geom))
		for i, poly := range geom {
			out[i] = mapPolygon(poly, fn)
		}
		return out
	default:
		return g
	}
}

func mapPolygon(poly orb.Polygon, fn func(orb.Point) orb.Point) orb.Polygon {
	out := make(orb.Polygon, len(poly))
	for i, ring := range poly {
		mapped := make(orb.Ring, len(ring))
		for j, p := range ring {
			mapped[j] = fn(p)
		}
		out[i] = mapped
	}
	return out
}

// supported reports whether the geometry is one of the vertex-based types
// mapPoints can rebuild. GeometryCollections in particular are not.
func supported(g orb.Geometry) bool {
	switch g.(type) {
	case orb.Point, orb.MultiPoint, orb.LineString, orb.MultiLineString,
		orb.Polygon, orb.MultiPolygon:
		return true
	}
	return false
}

func empty(g orb.Geometry) bool {
	switch geom := g.(type) {
	case orb.Point:
		return false
	case orb.MultiPoint:
		return len(geom) == 0
	case orb.LineString:
		return len(geom) == 0
	case orb.MultiLineString:
		return len(geom) == 0
	case orb.Polygon:
		return len(geom) == 0 || len(geom[0]) == 0
	case orb.MultiPolygon:
		return len(geom) == 0
	default:
		return true
	}
}
