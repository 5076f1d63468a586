package geodesy

import (
	"context"
	"fmt"
	"sync"

	"geoimport_backend/internal/crs"

	"github.com/paulmach/orb"
)

// ReframeAPI is the slice of the geodesy service the transformer needs.
type ReframeAPI interface {
	LHN95ToBessel(ctx context.Context, easting, northing, altitude float64) (float64, error)
	LV95ToWGS84(ctx context.Context, easting, northing, altitude float64) (WGS84Position, error)
}

// TransformError reports a failed height transformation, attributed to the
// stage that produced it. It never aborts a batch; the owning feature is
// persisted with a failed height status instead.
type TransformError struct {
	Stage string
	Err   error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("height transformation failed at %s: %v", e.Stage, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// Result is a successfully transformed height.
type Result struct {
	Ellipsoidal float64
	DatumSource string
}

type cacheKey struct {
	easting  float64
	northing float64
	height   float64
}

// transformCacheLimit caps the result cache. When the cap is reached the
// cache is discarded and refilled, so a long-running process importing many
// large layers holds at most one generation of entries.
const transformCacheLimit = 4096

// Transformer converts a resolved height plus representative point into the
// canonical ellipsoidal height. Identical (easting, northing, height) triples
// are answered from a per-instance cache so co-located features in a large
// batch cost one round trip.
type Transformer struct {
	api    ReframeAPI
	datums *crs.VerticalDatumRegistry

	mu    sync.Mutex
	cache map[cacheKey]Result
}

func NewTransformer(api ReframeAPI, datums *crs.VerticalDatumRegistry) *Transformer {
	return &Transformer{
		api:    api,
		datums: datums,
		cache:  make(map[cacheKey]Result),
	}
}

// ToEllipsoidal resolves the vertical datum of the source frame and converts
// the height accordingly. Frames with an ellipsoidal datum skip the external
// service entirely. Orthometric frames go through the two-stage protocol:
// datum-specific vertical correction first, then the global horizontal plus
// vertical reprojection.
func (t *Transformer) ToEllipsoidal(ctx context.Context, point orb.Point, height float64, srid int) (Result, error) {
	datum, ok := t.datums.Lookup(srid)
	if !ok {
		return Result{}, &TransformError{
			Stage: "datum_lookup",
			Err:   fmt.Errorf("no vertical datum reference for frame %d", srid),
		}
	}

	if datum.Type == crs.DatumEllipsoidal || datum.Method == crs.MethodNone {
		return Result{Ellipsoidal: height, DatumSource: datum.DatumName}, nil
	}

	// The external service speaks LV95 plane coordinates.
	lv95, err := crs.Reproject(point, srid, crs.SRIDLV95)
	if err != nil {
		return Result{}, &TransformError{Stage: "reproject", Err: err}
	}
	pos := lv95.(orb.Point)

	key := cacheKey{easting: pos[0], northing: pos[1], height: height}
	t.mu.Lock()
	cached, hit := t.cache[key]
	t.mu.Unlock()
	if hit {
		return cached, nil
	}

	intermediate, err := t.api.LHN95ToBessel(ctx, pos[0], pos[1], height)
	if err != nil {
		return Result{}, &TransformError{Stage: "vertical_correction", Err: err}
	}

	global, err := t.api.LV95ToWGS84(ctx, pos[0], pos[1], intermediate)
	if err != nil {
		return Result{}, &TransformError{Stage: "global_reprojection", Err: err}
	}

	result := Result{Ellipsoidal: global.Ellipsoidal, DatumSource: datum.DatumName}

	t.mu.Lock()
	if len(t.cache) >= transformCacheLimit {
		t.cache = make(map[cacheKey]Result, transformCacheLimit)
	}
	t.cache[key] = result
	t.mu.Unlock()

	return result, nil
}
