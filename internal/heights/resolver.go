// Package heights determines a feature's base height value and the
// provenance of that value. Resolution never hard-fails: candidates that do
// not parse are skipped with a notice, and the absence of any height source
// is a legitimate terminal state, not an error.
package heights

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// SourceZCoord tags heights read from a geometry's third coordinate.
const SourceZCoord = "z_coord"

// attributeProbes is the fixed, ordered list of conventional height
// attribute names checked when the caller supplies no hint. The first value
// that parses as a finite number wins.
var attributeProbes = []string{
	"H_MEAN",
	"HOEHE",
	"HEIGHT",
	"height",
	"ELEVATION",
	"elevation",
	"Z",
	"z",
	"ALTITUDE",
}

// Height is a resolved base height and its provenance tag.
type Height struct {
	Value  float64
	Source string
}

// Resolver resolves feature heights. Notices about skipped candidates go to
// the supplied callback so the orchestrator can surface them as diagnostics.
type Resolver struct {
	notice func(string)
}

func NewResolver(notice func(string)) *Resolver {
	if notice == nil {
		notice = func(string) {}
	}
	return &Resolver{notice: notice}
}

// Resolve applies the height precedence rules: geometry Z coordinate first,
// then the caller-supplied attribute hint, then the conventional probe list.
// Each candidate is guarded independently; one unparsable candidate never
// blocks the next. Returns false when no height source exists.
func (r *Resolver) Resolve(geomType string, coords json.RawMessage, attrs map[string]any, hint string) (Height, bool) {
	if z, ok := FirstVertexZ(geomType, coords); ok {
		return Height{Value: z, Source: SourceZCoord}, true
	}

	if hint != "" {
		if v, ok := r.attributeValue(attrs, hint); ok {
			return Height{Value: v, Source: "attribute:" + hint}, true
		}
	}

	for _, name := range attributeProbes {
		if name == hint {
			continue
		}
		if v, ok := r.attributeValue(attrs, name); ok {
			return Height{Value: v, Source: "attribute:" + name}, true
		}
	}

	return Height{}, false
}

// ObjectHeight reads the caller-declared extrusion height attribute. Object
// height is never guessed from conventional names; explicit intent only.
func (r *Resolver) ObjectHeight(attrs map[string]any, attrName string) (float64, bool) {
	if attrName == "" {
		return 0, false
	}
	return r.attributeValue(attrs, attrName)
}

func (r *Resolver) attributeValue(attrs map[string]any, name string) (float64, bool) {
	raw, ok := attrs[name]
	if !ok || raw == nil {
		return 0, false
	}

	v, err := parseNumeric(raw)
	if err != nil {
		r.notice(fmt.Sprintf("height attribute %q skipped: %v", name, err))
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		r.notice(fmt.Sprintf("height attribute %q skipped: not finite", name))
		return 0, false
	}
	return v, true
}

func parseNumeric(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", raw)
	}
}

// FirstVertexZ extracts the third coordinate of a geometry's representative
// vertex from raw GeoJSON coordinates: the point itself, a line's first
// vertex, or the first vertex of a polygon's exterior ring.
func FirstVertexZ(geomType string, coords json.RawMessage) (float64, bool) {
	if len(coords) == 0 {
		return 0, false
	}

	switch geomType {
	case "Point":
		var pos []float64
		if err := json.Unmarshal(coords, &pos); err != nil {
			return 0, false
		}
		return zFrom(pos)
	case "LineString", "MultiPoint":
		var line [][]float64
		if err := json.Unmarshal(coords, &line); err != nil || len(line) == 0 {
			return 0, false
		}
		return zFrom(line[0])
	case "Polygon", "MultiLineString":
		var rings [][][]float64
		if err := json.Unmarshal(coords, &rings); err != nil || len(rings) == 0 || len(rings[0]) == 0 {
			return 0, false
		}
		return zFrom(rings[0][0])
	case "MultiPolygon":
		var polys [][][][]float64
		if err := json.Unmarshal(coords, &polys); err != nil || len(polys) == 0 || len(polys[0]) == 0 || len(polys[0][0]) == 0 {
			return 0, false
		}
		return zFrom(polys[0][0][0])
	default:
		return 0, false
	}
}

func zFrom(pos []float64) (float64, bool) {
	if len(pos) < 3 {
		return 0, false
	}
	z := pos[2]
	if math.IsNaN(z) || math.IsInf(z, 0) {
		return 0, false
	}
	return z, true
}
