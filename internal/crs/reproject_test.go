package crs

import (
	"math"
	"strings"
	"testing"

	"github.com/paulmach/orb"
)

// Reference point: the old Bern observatory, the LV95 projection origin.
const (
	bernEasting  = 2600000.0
	bernNorthing = 1200000.0
	bernLon      = 7.438632
	bernLat      = 46.951083
)

func TestReprojectLV95ToWGS84(t *testing.T) {
	got, err := Reproject(orb.Point{bernEasting, bernNorthing}, SRIDLV95, SRIDWGS84)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := got.(orb.Point)

	// The closed-form approximation is accurate to about a meter, which is
	// roughly 1e-5 degrees at this latitude.
	if math.Abs(p[0]-bernLon) > 1e-4 {
		t.Errorf("longitude = %v, want ~%v", p[0], bernLon)
	}
	if math.Abs(p[1]-bernLat) > 1e-4 {
		t.Errorf("latitude = %v, want ~%v", p[1], bernLat)
	}
}

func TestReprojectRoundTrip(t *testing.T) {
	points := []orb.Point{
		{2600000, 1200000},
		{2683358, 1248100}, // Zurich
		{2537368, 1152040}, // Geneva
	}

	for _, src := range points {
		wgs, err := Reproject(src, SRIDLV95, SRIDWGS84)
		if err != nil {
			t.Fatalf("forward: %v", err)
		}
		back, err := Reproject(wgs, SRIDWGS84, SRIDLV95)
		if err != nil {
			t.Fatalf("back: %v", err)
		}
		p := back.(orb.Point)
		if math.Abs(p[0]-src[0]) > 2.0 || math.Abs(p[1]-src[1]) > 2.0 {
			t.Errorf("round trip of %v drifted to %v", src, p)
		}
	}
}

func TestReprojectSameFrameIsIdentity(t *testing.T) {
	src := orb.Point{2600123.45, 1200456.78}
	got, err := Reproject(src, SRIDLV95, SRIDLV95)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.(orb.Point) != src {
		t.Errorf("got %v, want %v unchanged", got, src)
	}
}

func TestReprojectSameFrameAcrossVariantSRIDs(t *testing.T) {
	// 2056 and its neighbors resolve to the same frame, so no coordinate
	// math may happen between them.
	src := orb.Point{2600123.45, 1200456.78}
	got, err := Reproject(src, 2056, 2055)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.(orb.Point) != src {
		t.Errorf("got %v, want %v unchanged", got, src)
	}
}

func TestReprojectLV03Offset(t *testing.T) {
	// LV03 coordinates differ from LV95 by a constant false origin shift.
	lv03 := orb.Point{600000, 200000}
	viaLV03, err := Reproject(lv03, SRIDLV03, SRIDWGS84)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	viaLV95, err := Reproject(orb.Point{2600000, 1200000}, SRIDLV95, SRIDWGS84)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a, b := viaLV03.(orb.Point), viaLV95.(orb.Point)
	if math.Abs(a[0]-b[0]) > 1e-9 || math.Abs(a[1]-b[1]) > 1e-9 {
		t.Errorf("LV03 %v and LV95 %v should map to the same position", a, b)
	}
}

func TestReprojectPolygonMapsEveryVertex(t *testing.T) {
	poly := orb.Polygon{
		{{2600000, 1200000}, {2600100, 1200000}, {2600100, 1200100}, {2600000, 1200000}},
	}
	got, err := Reproject(poly, SRIDLV95, SRIDWGS84)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := got.(orb.Polygon)
	if len(out) != 1 || len(out[0]) != 4 {
		t.Fatalf("vertex structure changed: %v", out)
	}
	for _, p := range out[0] {
		if p[0] < 5 || p[0] > 11 || p[1] < 45 || p[1] > 48 {
			t.Errorf("vertex %v is outside Switzerland", p)
		}
	}
	// Reprojecting must not mutate the input.
	if poly[0][0] != (orb.Point{2600000, 1200000}) {
		t.Error("input polygon was mutated")
	}
}

func TestReprojectErrors(t *testing.T) {
	if _, err := Reproject(nil, SRIDLV95, SRIDWGS84); err == nil {
		t.Error("nil geometry must error")
	}
	if _, err := Reproject(orb.LineString{}, SRIDLV95, SRIDWGS84); err == nil {
		t.Error("empty geometry must error")
	}
	if _, err := Reproject(orb.Point{1, 2}, 9999, SRIDWGS84); err == nil {
		t.Error("unknown source frame must error")
	}
	if _, err := Reproject(orb.Point{1, 2}, SRIDLV95, 9999); err == nil {
		t.Error("unknown target frame must error")
	}

	coll := orb.Collection{orb.Point{2600000, 1200000}}
	_, err := Reproject(coll, SRIDLV95, SRIDWGS84)
	if err == nil {
		t.Fatal("geometry collection must error")
	}
	if !strings.Contains(err.Error(), "unsupported geometry type") {
		t.Errorf("error = %q, want it to name the unsupported type", err)
	}
}

func TestResolveFrameRanges(t *testing.T) {
	cases := []struct {
		srid     int
		wantSRID int
		wantErr  bool
	}{
		{2056, SRIDLV95, false},
		{2055, SRIDLV95, false},
		{2057, SRIDLV95, false},
		{21781, SRIDLV03, false},
		{4326, SRIDWGS84, false},
		{4329, SRIDWGS84, false},
		{3857, 0, true},
		{0, 0, true},
	}

	for _, tc := range cases {
		frame, err := ResolveFrame(tc.srid)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ResolveFrame(%d) expected error", tc.srid)
			}
			continue
		}
		if err != nil {
			t.Errorf("ResolveFrame(%d): %v", tc.srid, err)
			continue
		}
		if frame.SRID != tc.wantSRID {
			t.Errorf("ResolveFrame(%d) = %d, want %d", tc.srid, frame.SRID, tc.wantSRID)
		}
	}
}
