package geometry

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
)

func TestCleanValidPolygonUnchanged(t *testing.T) {
	poly := orb.Polygon{
		{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
	}

	got, err := NewCleaner().Clean(poly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Provenance != ProvenanceUnchanged {
		t.Errorf("provenance = %q, want unchanged", got.Provenance)
	}
	out := got.Geometry.(orb.Polygon)
	if len(out[0]) != 5 {
		t.Errorf("ring length = %d, want 5", len(out[0]))
	}
}

func TestCleanDeduplicatesConsecutiveVertices(t *testing.T) {
	line := orb.LineString{{0, 0}, {0, 0}, {5, 5}, {5, 5}, {10, 0}}

	got, err := NewCleaner().Clean(line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Provenance != ProvenanceDeduplicated {
		t.Errorf("provenance = %q, want vertex_deduplicated", got.Provenance)
	}
	out := got.Geometry.(orb.LineString)
	if len(out) != 3 {
		t.Errorf("vertex count = %d, want 3, got %v", len(out), out)
	}
}

func TestCleanDeduplicatesRingButKeepsClosure(t *testing.T) {
	poly := orb.Polygon{
		{{0, 0}, {10, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
	}

	got, err := NewCleaner().Clean(poly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := got.Geometry.(orb.Polygon)
	ring := out[0]
	if ring[0] != ring[len(ring)-1] {
		t.Errorf("ring no longer closed: %v", ring)
	}
	if len(ring) != 5 {
		t.Errorf("ring length = %d, want 5", len(ring))
	}
}

func TestCleanRepairsBowtiePolygon(t *testing.T) {
	// Self-intersecting "bowtie": crosses itself at (5,5).
	bowtie := orb.Polygon{
		{{0, 0}, {10, 10}, {10, 0}, {0, 10}, {0, 0}},
	}

	got, err := NewCleaner().Clean(bowtie)
	if err != nil {
		t.Fatalf("expected repair to succeed, got %v", err)
	}
	if got.Provenance != ProvenanceRepaired {
		t.Errorf("provenance = %q, want repaired", got.Provenance)
	}
	switch got.Geometry.(type) {
	case orb.Polygon, orb.MultiPolygon:
	default:
		t.Errorf("repair changed dimensionality to %T", got.Geometry)
	}
}

func TestCleanPointsSkipTopologyChecks(t *testing.T) {
	got, err := NewCleaner().Clean(orb.Point{2600000, 1200000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Provenance != ProvenanceUnchanged {
		t.Errorf("provenance = %q, want unchanged", got.Provenance)
	}
}

func TestCleanNilGeometryFails(t *testing.T) {
	_, err := NewCleaner().Clean(nil)
	var rfe *RepairFailedError
	if !errors.As(err, &rfe) {
		t.Fatalf("error type %T, want *RepairFailedError", err)
	}
}

func TestCleanUnrepairableReturnsOriginalReason(t *testing.T) {
	// A ring collapsing to a zero-area line cannot become a valid polygon.
	degenerate := orb.Polygon{
		{{0, 0}, {10, 0}, {0, 0}},
	}

	_, err := NewCleaner().Clean(degenerate)
	if err == nil {
		t.Fatal("expected repair failure for degenerate polygon")
	}
	var rfe *RepairFailedError
	if !errors.As(err, &rfe) {
		t.Fatalf("error type %T, want *RepairFailedError", err)
	}
	if rfe.Reason == "" {
		t.Error("reason must carry the invalidity diagnosis")
	}
}
