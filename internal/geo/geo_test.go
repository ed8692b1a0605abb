package geo

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cabride/internal/domain"
	"cabride/internal/logging"
)

var (
	delhi  = domain.Location{Lat: 28.6139, Lng: 77.2090}
	mumbai = domain.Location{Lat: 19.0760, Lng: 72.8777}
)

func TestHaversine_KnownDistance(t *testing.T) {
	got := Haversine(delhi, mumbai)
	if math.Abs(got-1148) > 10 {
		t.Errorf("Haversine(delhi, mumbai) = %.1f, want about 1148", got)
	}
}

func TestHaversine_IdenticalPoints(t *testing.T) {
	if got := Haversine(delhi, delhi); got != 0 {
		t.Errorf("Haversine(p, p) = %v, want 0", got)
	}
}

func TestOSRMRouter_ParsesDistance(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"code":"Ok","routes":[{"distance":12345.0}]}`))
	}))
	defer srv.Close()

	km, err := NewOSRMRouter(srv.URL+"/", time.Second).RouteKm(context.Background(), delhi, mumbai)
	if err != nil {
		t.Fatalf("RouteKm() error = %v", err)
	}
	if km != 12.345 {
		t.Errorf("RouteKm() = %v, want 12.345", km)
	}
	if !strings.HasPrefix(gotPath, "/route/v1/driving/77.209000,28.613900;") {
		t.Errorf("path = %q, expected lon,lat ordering", gotPath)
	}
}

func TestOSRMRouter_Failures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"non-2xx": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		},
		"malformed": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`not json`))
		},
		"no route": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"code":"NoRoute","routes":[]}`))
		},
	}

	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()

			if _, err := NewOSRMRouter(srv.URL, time.Second).RouteKm(context.Background(), delhi, mumbai); err == nil {
				t.Error("expected error")
			}
		})
	}
}

type stubRouter struct {
	name  string
	km    float64
	err   error
	calls int
}

func (s *stubRouter) Name() string { return s.name }

func (s *stubRouter) RouteKm(ctx context.Context, a, b domain.Location) (float64, error) {
	s.calls++
	return s.km, s.err
}

func TestEstimator_UsesFirstHealthyRouter(t *testing.T) {
	first := &stubRouter{name: "first", err: errors.New("down")}
	second := &stubRouter{name: "second", km: 7.5}
	third := &stubRouter{name: "third", km: 99}

	got := NewEstimator(logging.Discard(), first, second, third).DistanceKm(context.Background(), delhi, mumbai)
	if got != 7.5 {
		t.Errorf("DistanceKm() = %v, want 7.5", got)
	}
	if third.calls != 0 {
		t.Error("third router should not be called")
	}
}

func TestEstimator_FallsBackToHaversine(t *testing.T) {
	down := &stubRouter{name: "down", err: errors.New("timeout")}

	got := NewEstimator(logging.Discard(), down).DistanceKm(context.Background(), delhi, mumbai)
	if want := Haversine(delhi, mumbai); got != want {
		t.Errorf("DistanceKm() = %v, want %v", got, want)
	}
}

func TestEstimator_SlowOSRMFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"code":"Ok","routes":[{"distance":1000}]}`))
	}))
	defer srv.Close()

	est := NewEstimator(logging.Discard(), NewOSRMRouter(srv.URL, 20*time.Millisecond))
	got := est.DistanceKm(context.Background(), delhi, delhi)
	if got != 0 {
		t.Errorf("DistanceKm() = %v, want 0 for identical points", got)
	}
}
