// Package crs resolves coordinate reference frames and vertical datums from
// their numeric identifiers, and reprojects geometry between the supported
// horizontal frames.
package crs

import "fmt"

// Supported reference frame identifiers (EPSG codes).
const (
	SRIDWGS84 = 4326  // canonical horizontal frame
	SRIDLV95  = 2056  // Swiss LV95 / CH1903+
	SRIDLV03  = 21781 // Swiss LV03 / CH1903
)

// Frame describes a horizontal reference frame known to the registry.
type Frame struct {
	SRID int
	Name string
}

// frameRange maps a numeric identifier range onto a frame when no exact
// entry exists. A bare code inside the range implies that frame's datum.
type frameRange struct {
	min, max int
	srid     int
}

var frames = map[int]Frame{
	SRIDWGS84: {SRID: SRIDWGS84, Name: "WGS84"},
	SRIDLV95:  {SRID: SRIDLV95, Name: "CH1903+/LV95"},
	SRIDLV03:  {SRID: SRIDLV03, Name: "CH1903/LV03"},
}

// Codes without an explicit entry resolve by range; ordering matters, the
// first containing range wins.
var frameRanges = []frameRange{
	{min: 2055, max: 2057, srid: SRIDLV95},
	{min: 21780, max: 21782, srid: SRIDLV03},
	{min: 4326, max: 4329, srid: SRIDWGS84},
}

// ResolveFrame maps a reference frame identifier to a known frame, applying
// the range fallback rule for bare codes without an explicit mapping.
func ResolveFrame(srid int) (Frame, error) {
	if f, ok := frames[srid]; ok {
		return f, nil
	}
	for _, r := range frameRanges {
		if srid >= r.min && srid <= r.max {
			return frames[r.srid], nil
		}
	}
	return Frame{}, fmt.Errorf("unknown reference frame %d", srid)
}
