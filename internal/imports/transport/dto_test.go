package transport

import (
	"encoding/json"
	"testing"

	"geoimport_backend/internal/heights"

	"github.com/paulmach/orb"
)

func TestToRawDecodesGeometry(t *testing.T) {
	f := GeoJSONFeature{
		Type:       "Feature",
		Geometry:   json.RawMessage(`{"type": "Point", "coordinates": [2600000, 1200000, 612.3]}`),
		Properties: map[string]any{"name": "Bundeshaus"},
	}

	raw := f.ToRaw()
	if raw.ParseError != "" {
		t.Fatalf("unexpected parse error: %s", raw.ParseError)
	}
	if raw.GeometryType != "Point" {
		t.Errorf("geometry type = %q, want Point", raw.GeometryType)
	}

	p, ok := raw.Geometry.(orb.Point)
	if !ok {
		t.Fatalf("geometry is %T, want orb.Point", raw.Geometry)
	}
	if p[0] != 2600000 || p[1] != 1200000 {
		t.Errorf("point = %v", p)
	}

	// The 2D model drops Z, but the raw coordinates keep it available for
	// height resolution.
	z, ok := heights.FirstVertexZ(raw.GeometryType, raw.Coordinates)
	if !ok || z != 612.3 {
		t.Errorf("z from raw coordinates = (%v, %v), want (612.3, true)", z, ok)
	}
}

func TestToRawHandlesMissingAndMalformedGeometry(t *testing.T) {
	cases := []struct {
		name          string
		geometry      string
		wantParseErr  bool
		wantNilGeom   bool
		wantAttrsKept bool
	}{
		{"absent geometry", ``, false, true, true},
		{"null geometry", `null`, false, true, true},
		{"malformed json", `{"type": "Point", "coordinates": [1,`, true, true, true},
		{"unsupported type", `{"type": "CircularString", "coordinates": []}`, true, true, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := GeoJSONFeature{
				Type:       "Feature",
				Geometry:   json.RawMessage(tc.geometry),
				Properties: map[string]any{"id": 7.0},
			}
			raw := f.ToRaw()

			if (raw.ParseError != "") != tc.wantParseErr {
				t.Errorf("parse error = %q, want error: %v", raw.ParseError, tc.wantParseErr)
			}
			if (raw.Geometry == nil) != tc.wantNilGeom {
				t.Errorf("geometry = %v, want nil: %v", raw.Geometry, tc.wantNilGeom)
			}
			if tc.wantAttrsKept && raw.Properties["id"] != 7.0 {
				t.Errorf("properties lost: %v", raw.Properties)
			}
		})
	}
}

func TestToRawFeaturesKeepsOrder(t *testing.T) {
	in := []GeoJSONFeature{
		{Geometry: json.RawMessage(`{"type": "Point", "coordinates": [1, 2]}`)},
		{Geometry: json.RawMessage(`null`)},
		{Geometry: json.RawMessage(`{"type": "Point", "coordinates": [3, 4]}`)},
	}

	out := ToRawFeatures(in)
	if len(out) != 3 {
		t.Fatalf("length = %d, want 3", len(out))
	}
	if out[1].Geometry != nil {
		t.Error("null geometry must stay nil at its original index")
	}
	if p := out[2].Geometry.(orb.Point); p[0] != 3 {
		t.Errorf("order not preserved: %v", p)
	}
}
