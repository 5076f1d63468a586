package geodesy

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"geoimport_backend/internal/crs"

	"github.com/paulmach/orb"
)

type fakeReframe struct {
	besselCalls atomic.Int32
	wgsCalls    atomic.Int32
	besselErr   error
	wgsErr      error
	// correction applied by the vertical stage, drop applied by the global one
	correction float64
	drop       float64
}

func (f *fakeReframe) LHN95ToBessel(ctx context.Context, easting, northing, altitude float64) (float64, error) {
	f.besselCalls.Add(1)
	if f.besselErr != nil {
		return 0, f.besselErr
	}
	return altitude + f.correction, nil
}

func (f *fakeReframe) LV95ToWGS84(ctx context.Context, easting, northing, altitude float64) (WGS84Position, error) {
	f.wgsCalls.Add(1)
	if f.wgsErr != nil {
		return WGS84Position{}, f.wgsErr
	}
	return WGS84Position{Longitude: 7.44, Latitude: 46.95, Ellipsoidal: altitude + f.drop}, nil
}

func newTestRegistry() *crs.VerticalDatumRegistry {
	return crs.NewVerticalDatumRegistry(crs.DefaultVerticalDatums())
}

func TestToEllipsoidalTwoStageProtocol(t *testing.T) {
	// 612.3 m LHN95 -> -0.4 m vertical correction -> -45.8 m geoid/ellipsoid
	// separation gives 566.1 m ellipsoidal.
	api := &fakeReframe{correction: -0.4, drop: -45.8}
	tr := NewTransformer(api, newTestRegistry())

	got, err := tr.ToEllipsoidal(context.Background(), orb.Point{2600000, 1200000}, 612.3, crs.SRIDLV95)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got.Ellipsoidal-566.1) > 1e-9 {
		t.Errorf("ellipsoidal = %v, want 566.1", got.Ellipsoidal)
	}
	if got.DatumSource != "LHN95" {
		t.Errorf("datum source = %q, want LHN95", got.DatumSource)
	}
	if api.besselCalls.Load() != 1 || api.wgsCalls.Load() != 1 {
		t.Errorf("calls = (%d, %d), want (1, 1)", api.besselCalls.Load(), api.wgsCalls.Load())
	}
}

func TestToEllipsoidalSkipsServiceForEllipsoidalDatum(t *testing.T) {
	api := &fakeReframe{}
	tr := NewTransformer(api, newTestRegistry())

	got, err := tr.ToEllipsoidal(context.Background(), orb.Point{7.44, 46.95}, 566.1, crs.SRIDWGS84)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Ellipsoidal != 566.1 {
		t.Errorf("ellipsoidal = %v, want pass-through 566.1", got.Ellipsoidal)
	}
	if api.besselCalls.Load() != 0 || api.wgsCalls.Load() != 0 {
		t.Error("ellipsoidal datum must not hit the external service")
	}
}

func TestToEllipsoidalCachesIdenticalTriples(t *testing.T) {
	api := &fakeReframe{correction: -0.4, drop: -45.8}
	tr := NewTransformer(api, newTestRegistry())
	point := orb.Point{2600000, 1200000}

	for range 5 {
		if _, err := tr.ToEllipsoidal(context.Background(), point, 612.3, crs.SRIDLV95); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if api.besselCalls.Load() != 1 || api.wgsCalls.Load() != 1 {
		t.Errorf("calls = (%d, %d), want one round trip for identical inputs",
			api.besselCalls.Load(), api.wgsCalls.Load())
	}

	// A different height is a different cache entry.
	if _, err := tr.ToEllipsoidal(context.Background(), point, 613.0, crs.SRIDLV95); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if api.besselCalls.Load() != 2 {
		t.Errorf("bessel calls = %d, want 2 after new height", api.besselCalls.Load())
	}
}

func TestToEllipsoidalCacheStaysBounded(t *testing.T) {
	api := &fakeReframe{correction: -0.4, drop: -45.8}
	tr := NewTransformer(api, newTestRegistry())
	point := orb.Point{2600000, 1200000}

	for i := range transformCacheLimit + 1 {
		if _, err := tr.ToEllipsoidal(context.Background(), point, float64(i), crs.SRIDLV95); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	tr.mu.Lock()
	size := len(tr.cache)
	tr.mu.Unlock()
	if size > transformCacheLimit {
		t.Errorf("cache size = %d, want at most %d", size, transformCacheLimit)
	}

	// The entry written after the reset still answers from cache.
	calls := api.besselCalls.Load()
	if _, err := tr.ToEllipsoidal(context.Background(), point, float64(transformCacheLimit), crs.SRIDLV95); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if api.besselCalls.Load() != calls {
		t.Errorf("bessel calls = %d, want %d (cached)", api.besselCalls.Load(), calls)
	}
}

func TestToEllipsoidalErrorStages(t *testing.T) {
	upstream := errors.New("boom")

	cases := []struct {
		name      string
		api       *fakeReframe
		srid      int
		wantStage string
	}{
		{"unknown datum", &fakeReframe{}, 3857, "datum_lookup"},
		{"vertical stage fails", &fakeReframe{besselErr: upstream}, crs.SRIDLV95, "vertical_correction"},
		{"global stage fails", &fakeReframe{wgsErr: upstream}, crs.SRIDLV95, "global_reprojection"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := NewTransformer(tc.api, newTestRegistry())
			_, err := tr.ToEllipsoidal(context.Background(), orb.Point{2600000, 1200000}, 100, tc.srid)
			if err == nil {
				t.Fatal("expected error")
			}
			var terr *TransformError
			if !errors.As(err, &terr) {
				t.Fatalf("error type %T, want *TransformError", err)
			}
			if terr.Stage != tc.wantStage {
				t.Errorf("stage = %q, want %q", terr.Stage, tc.wantStage)
			}
		})
	}
}

func TestToEllipsoidalFailureIsNotCached(t *testing.T) {
	api := &fakeReframe{besselErr: errors.New("transient")}
	tr := NewTransformer(api, newTestRegistry())
	point := orb.Point{2600000, 1200000}

	if _, err := tr.ToEllipsoidal(context.Background(), point, 500, crs.SRIDLV95); err == nil {
		t.Fatal("expected error")
	}

	api.besselErr = nil
	got, err := tr.ToEllipsoidal(context.Background(), point, 500, crs.SRIDLV95)
	if err != nil {
		t.Fatalf("retry after transient failure: %v", err)
	}
	if got.DatumSource != "LHN95" {
		t.Errorf("datum source = %q, want LHN95", got.DatumSource)
	}
}
