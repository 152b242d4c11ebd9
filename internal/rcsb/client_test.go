package rcsb

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	pkgerrors "github.com/sjando/jolecule/pkg/errors"
)

func TestFetchSuccess(t *testing.T) {
	const body = "ATOM      1  N   ALA A   1      11.104   6.134  -6.504  1.00  0.00           N\nEND\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/1CRN.pdb" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(body))
	}))
	defer srv.Close()

	c := New(srv.URL, 2*time.Second, 1000000, nil)
	got, err := c.Fetch(t.Context(), "1CRN")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if string(got) != body {
		t.Errorf("body mismatch: got %d bytes", len(got))
	}
}

func TestFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := New(srv.URL, 2*time.Second, 1000000, nil)
	_, err := c.Fetch(t.Context(), "XXXX")
	if !errors.Is(err, pkgerrors.ErrStructureNotFound) {
		t.Errorf("expected ErrStructureNotFound for 404, got %v", err)
	}
}

func TestFetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, 2*time.Second, 1000000, nil)
	_, err := c.Fetch(t.Context(), "1CRN")
	if !errors.Is(err, pkgerrors.ErrFetchFailed) {
		t.Errorf("expected ErrFetchFailed for 500, got %v", err)
	}
}

func TestFetchTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer srv.Close()

	c := New(srv.URL, 2*time.Second, 1024, nil)
	_, err := c.Fetch(t.Context(), "HUGE")
	if !errors.Is(err, pkgerrors.ErrContentTooLarge) {
		t.Errorf("expected ErrContentTooLarge, got %v", err)
	}
}

func TestFetchExactlyAtLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 1024)))
	}))
	defer srv.Close()

	c := New(srv.URL, 2*time.Second, 1024, nil)
	body, err := c.Fetch(t.Context(), "FITS")
	if err != nil {
		t.Fatalf("a body exactly at the limit should succeed: %v", err)
	}
	if len(body) != 1024 {
		t.Errorf("expected 1024 bytes, got %d", len(body))
	}
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	c := New(srv.URL, 50*time.Millisecond, 1000000, nil)
	_, err := c.Fetch(t.Context(), "SLOW")
	if !errors.Is(err, pkgerrors.ErrFetchTimeout) {
		t.Errorf("expected ErrFetchTimeout, got %v", err)
	}
}

func TestFetchCircuitOpensAfterRepeatedFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, 2*time.Second, 1000000, nil)
	for i := 0; i < 5; i++ {
		if _, err := c.Fetch(t.Context(), "1CRN"); !errors.Is(err, pkgerrors.ErrFetchFailed) {
			t.Fatalf("fetch %d: expected ErrFetchFailed, got %v", i+1, err)
		}
	}
	tripped := hits.Load()

	if _, err := c.Fetch(t.Context(), "1CRN"); !errors.Is(err, pkgerrors.ErrFetchFailed) {
		t.Fatalf("expected fail-fast ErrFetchFailed, got %v", err)
	}
	if hits.Load() != tripped {
		t.Errorf("open circuit still reached the remote: %d hits, want %d", hits.Load(), tripped)
	}
}

func TestFetchOversizedBodiesDoNotTripCircuit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/OK.pdb" {
			w.Write([]byte("END\n"))
			return
		}
		w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer srv.Close()

	c := New(srv.URL, 2*time.Second, 1024, nil)
	for i := 0; i < 6; i++ {
		if _, err := c.Fetch(t.Context(), "HUGE"); !errors.Is(err, pkgerrors.ErrContentTooLarge) {
			t.Fatalf("fetch %d: expected ErrContentTooLarge, got %v", i+1, err)
		}
	}
	if _, err := c.Fetch(t.Context(), "OK"); err != nil {
		t.Errorf("circuit should stay closed after oversized bodies: %v", err)
	}
}

func TestFetchMissingStructuresDoNotTripCircuit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/OK.pdb" {
			w.Write([]byte("END\n"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := New(srv.URL, 2*time.Second, 1000000, nil)
	for i := 0; i < 6; i++ {
		if _, err := c.Fetch(t.Context(), "NOPE"); !errors.Is(err, pkgerrors.ErrStructureNotFound) {
			t.Fatalf("fetch %d: expected ErrStructureNotFound, got %v", i+1, err)
		}
	}
	if _, err := c.Fetch(t.Context(), "OK"); err != nil {
		t.Errorf("circuit should stay closed after missing ids: %v", err)
	}
}

func TestURL(t *testing.T) {
	c := New("https://files.rcsb.org/download/", time.Second, 1000000, nil)
	if got := c.URL("1MBN"); got != "https://files.rcsb.org/download/1MBN.pdb" {
		t.Errorf("unexpected url %q", got)
	}
}
