package geodesy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"geoimport_backend/platform/logger"
)

type clientTestConfig struct {
	baseURL string
}

func (c clientTestConfig) GetGeodesyBaseURL() string        { return c.baseURL }
func (c clientTestConfig) GetGeodesyTimeout() time.Duration { return 2 * time.Second }
func (c clientTestConfig) GetGeodesyMaxRetries() int        { return 2 }
func (c clientTestConfig) GetGeodesyRateLimit() float64     { return 1000 }
func (c clientTestConfig) GetGeodesyConcurrency() int       { return 4 }

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(clientTestConfig{baseURL: srv.URL}, logger.New("development")), srv
}

func TestLHN95ToBessel(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/lhn95tobessel" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("easting") != "2600000" || q.Get("northing") != "1200000" || q.Get("altitude") != "612.3" {
			t.Errorf("unexpected query %v", q)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"easting": 2600000, "northing": 1200000, "altitude": 611.9}`))
	}))

	got, err := client.LHN95ToBessel(context.Background(), 2600000, 1200000, 612.3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 611.9 {
		t.Errorf("altitude = %v, want 611.9", got)
	}
}

func TestLV95ToWGS84StringEncodedFields(t *testing.T) {
	// The upstream service has served coordinates as JSON strings.
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"easting": "7.438632", "northing": "46.951083", "altitude": "566.1"}`))
	}))

	got, err := client.LV95ToWGS84(context.Background(), 2600000, 1200000, 611.9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Longitude != 7.438632 || got.Latitude != 46.951083 || got.Ellipsoidal != 566.1 {
		t.Errorf("got %+v", got)
	}
}

func TestClientRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"altitude": 42.0}`))
	}))

	got, err := client.LHN95ToBessel(context.Background(), 1, 2, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42.0 {
		t.Errorf("altitude = %v, want 42.0", got)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))

	if _, err := client.LHN95ToBessel(context.Background(), 1, 2, 3); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want exactly 1", calls.Load())
	}
}

func TestClientGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	if _, err := client.LHN95ToBessel(context.Background(), 1, 2, 3); err == nil {
		t.Fatal("expected error")
	}
	// 1 initial attempt + 2 retries.
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestClientStopsOnCanceledContext(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.LHN95ToBessel(ctx, 1, 2, 3); err == nil {
		t.Fatal("expected error with canceled context")
	}
}
