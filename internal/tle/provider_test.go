package tle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/star/across/internal/errs"
)

func issSource() Source {
	return Source{NORADID: 25544, Name: "ISS (ZARYA)", Window: 4 * 24 * time.Hour}
}

// TestChainProviderStoreFirst verifies no network call is made when the store
// already holds a set inside the window.
func TestChainProviderStoreFirst(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := NewStore()
	store.Add(mustParse(t, "ISS", issJan29Line1, issJan29Line2))

	src := issSource()
	src.URL = srv.URL
	p := NewChainProvider(store, testLogger, WithCelestrakURL(srv.URL))

	e, err := p.Elements(context.Background(), src, time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Elements: %v", err)
	}
	if e.Epoch.Day() != 29 {
		t.Errorf("epoch = %v, want Jan 29 set", e.Epoch)
	}
	if calls.Load() != 0 {
		t.Errorf("made %d HTTP calls, want 0", calls.Load())
	}
}

// TestChainProviderFallsThrough verifies that a failing mission URL falls
// through to the concatenated source, and that fetched sets are cached.
func TestChainProviderFallsThrough(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()

	concat := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(issLine1 + "\n" + issLine2 + "\n" + issJan29Line1 + "\n" + issJan29Line2 + "\n"))
	}))
	defer concat.Close()

	dir := t.TempDir()
	store := NewStore()
	src := issSource()
	src.URL = failing.URL
	src.ConcatURL = concat.URL

	p := NewChainProvider(store, testLogger, WithCache(NewCache(dir, 3)), WithCelestrakURL(""))
	e, err := p.Elements(context.Background(), src, time.Date(2024, 4, 8, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Elements: %v", err)
	}
	if e.Epoch.Month() != time.April {
		t.Errorf("epoch = %v, want the April set (closest)", e.Epoch)
	}
	if store.Len() != 2 {
		t.Errorf("store holds %d sets, want 2", store.Len())
	}

	files, _ := filepath.Glob(filepath.Join(dir, "tle_25544_*.txt"))
	if len(files) != 1 {
		t.Errorf("cache files = %d, want 1", len(files))
	}
}

// TestChainProviderCelestrakQuery verifies the Celestrak fallback asks for the
// catalog number.
func TestChainProviderCelestrakQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte("ISS (ZARYA)\n" + issJan29Line1 + "\n" + issJan29Line2 + "\n"))
	}))
	defer srv.Close()

	p := NewChainProvider(NewStore(), testLogger, WithCelestrakURL(srv.URL))
	if _, err := p.Elements(context.Background(), issSource(), time.Date(2024, 1, 29, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Elements: %v", err)
	}
	if gotQuery != "CATNR=25544&FORMAT=TLE" {
		t.Errorf("query = %q", gotQuery)
	}
}

// TestChainProviderClosestOutsideWindow verifies an out-of-window set is still
// returned when nothing better can be fetched.
func TestChainProviderClosestOutsideWindow(t *testing.T) {
	store := NewStore()
	store.Add(mustParse(t, "ISS", issJan29Line1, issJan29Line2))

	p := NewChainProvider(store, testLogger, Offline())
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	e, err := p.Elements(context.Background(), issSource(), at)
	if err != nil {
		t.Fatalf("Elements: %v", err)
	}
	var stale *errs.StaleDataError
	if err := e.CheckStale(at, issSource().Window); !errors.As(err, &stale) {
		t.Errorf("CheckStale = %v, want *StaleDataError", err)
	}
}

func TestChainProviderNoElements(t *testing.T) {
	p := NewChainProvider(NewStore(), testLogger, Offline())

	_, err := p.Elements(context.Background(), issSource(), time.Now())
	if !errors.Is(err, ErrNoElements) || !errors.Is(err, errs.ErrInput) {
		t.Errorf("err = %v, want ErrNoElements wrapping ErrInput", err)
	}

	_, err = p.Elements(context.Background(), Source{Name: "nameless"}, time.Now())
	if !errors.Is(err, errs.ErrInput) {
		t.Errorf("missing NORAD id: err = %v, want ErrInput", err)
	}
}

// TestChainProviderMinEpoch verifies sets older than the mission's minimum
// epoch are never served.
func TestChainProviderMinEpoch(t *testing.T) {
	store := NewStore()
	store.Add(mustParse(t, "ISS", issJan29Line1, issJan29Line2))

	src := issSource()
	src.MinEpoch = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	p := NewChainProvider(store, testLogger, Offline())
	if _, err := p.Elements(context.Background(), src, time.Date(2024, 1, 29, 0, 0, 0, 0, time.UTC)); !errors.Is(err, ErrNoElements) {
		t.Errorf("err = %v, want ErrNoElements", err)
	}
}
