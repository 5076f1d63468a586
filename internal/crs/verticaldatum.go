package crs

// DatumType classifies the reference surface of a height system.
type DatumType string

const (
	DatumEllipsoidal DatumType = "ellipsoidal"
	DatumOrthometric DatumType = "orthometric"
	DatumGeoidal     DatumType = "geoidal"
	DatumOther       DatumType = "other"
)

// Transformation methods a vertical datum may require.
const (
	MethodNone    = "none"    // height is already ellipsoidal
	MethodReframe = "reframe" // two-step external geodesy transformation
)

// VerticalDatumRef maps a reference frame identifier, or a numeric range of
// identifiers, onto a named vertical datum and the transformation it needs.
// Read-only reference data; never mutated by the pipeline.
type VerticalDatumRef struct {
	SRID      int
	SRIDMin   *int
	SRIDMax   *int
	DatumName string
	Type      DatumType
	Method    string
}

// VerticalDatumRegistry answers datum lookups by frame identifier with a
// deterministic fallback-by-range rule when no exact match exists.
type VerticalDatumRegistry struct {
	exact  map[int]VerticalDatumRef
	ranges []VerticalDatumRef
}

// NewVerticalDatumRegistry builds a registry from reference rows. Rows with a
// range keep their declaration order for fallback resolution.
func NewVerticalDatumRegistry(refs []VerticalDatumRef) *VerticalDatumRegistry {
	reg := &VerticalDatumRegistry{exact: make(map[int]VerticalDatumRef)}
	for _, ref := range refs {
		if ref.SRIDMin != nil && ref.SRIDMax != nil {
			reg.ranges = append(reg.ranges, ref)
			continue
		}
		reg.exact[ref.SRID] = ref
	}
	return reg
}

// Lookup resolves the vertical datum for a frame identifier: exact entry
// first, then the first declared range containing the identifier.
func (r *VerticalDatumRegistry) Lookup(srid int) (VerticalDatumRef, bool) {
	if ref, ok := r.exact[srid]; ok {
		return ref, true
	}
	for _, ref := range r.ranges {
		if srid >= *ref.SRIDMin && srid <= *ref.SRIDMax {
			return ref, true
		}
	}
	return VerticalDatumRef{}, false
}

// DefaultVerticalDatums returns the built-in reference data. The database
// seed in the migrations mirrors these rows; the in-code copy keeps the
// pipeline usable in tests and CLIs without a datum table.
func DefaultVerticalDatums() []VerticalDatumRef {
	span := func(min, max int) (*int, *int) { return &min, &max }
	lv95Min, lv95Max := span(2055, 2057)
	lv03Min, lv03Max := span(21780, 21782)
	wgsMin, wgsMax := span(4326, 4979)

	return []VerticalDatumRef{
		{SRID: SRIDLV95, DatumName: "LHN95", Type: DatumOrthometric, Method: MethodReframe},
		{SRID: SRIDLV03, DatumName: "LN02", Type: DatumOrthometric, Method: MethodReframe},
		{SRID: SRIDWGS84, DatumName: "WGS84", Type: DatumEllipsoidal, Method: MethodNone},
		{SRIDMin: lv95Min, SRIDMax: lv95Max, DatumName: "LHN95", Type: DatumOrthometric, Method: MethodReframe},
		{SRIDMin: lv03Min, SRIDMax: lv03Max, DatumName: "LN02", Type: DatumOrthometric, Method: MethodReframe},
		{SRIDMin: wgsMin, SRIDMax: wgsMax, DatumName: "WGS84", Type: DatumEllipsoidal, Method: MethodNone},
	}
}
