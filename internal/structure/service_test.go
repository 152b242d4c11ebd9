package structure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sjando/jolecule/internal/structure/claim"
	pkgerrors "github.com/sjando/jolecule/pkg/errors"
)

type fakeStore struct {
	mu       sync.Mutex
	data     map[string]string
	readErr  error
	writeErr error
	reads    int
	writes   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Read(ctx context.Context, structureID string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.readErr != nil {
		return "", false, f.readErr
	}
	text, ok := f.data[structureID]
	return text, ok, nil
}

func (f *fakeStore) Write(ctx context.Context, structureID, text string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.data[structureID] = text
	return 1, nil
}

func (f *fakeStore) get(structureID string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.data[structureID]
	return text, ok
}

func (f *fakeStore) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

type fakeFetcher struct {
	content string
	err     error
	delay   time.Duration
	calls   atomic.Int64
}

func (f *fakeFetcher) Fetch(ctx context.Context, structureID string) ([]byte, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.content), nil
}

func (f *fakeFetcher) URL(structureID string) string {
	return "http://files.test/" + structureID + ".pdb"
}

func atomLine(serial int, name string, x, y, z float64) string {
	padded := name
	if len(name) < 4 {
		padded = fmt.Sprintf(" %-3s", name)
	}
	return fmt.Sprintf("ATOM  %5d %-4s %-3s %1s%4d    %8.3f%8.3f%8.3f%6.2f%6.2f          %2s",
		serial, padded, "ALA", "A", 1, x, y, z, 1.0, 0.0, "C")
}

func TestLoaderServesFromStore(t *testing.T) {
	store := newFakeStore()
	store.data["1CRN"] = "var lines = [\n];\n"
	fetcher := &fakeFetcher{}
	svc := NewService(store, fetcher, Options{})

	got, err := svc.Loader(t.Context(), "1CRN")
	if err != nil {
		t.Fatalf("Loader: %v", err)
	}
	want := "// REMARK From database\nvar lines = [\n];\n"
	if got != want {
		t.Fatalf("artifact = %q, want %q", got, want)
	}
	if n := fetcher.calls.Load(); n != 0 {
		t.Fatalf("fetch calls = %d, want 0", n)
	}
}

func TestLoaderComputesAndStoresArtifact(t *testing.T) {
	line1 := atomLine(1, "CA", 0, 0, 0)
	line2 := atomLine(2, "CB", 1.5, 0, 0)
	fetcher := &fakeFetcher{content: line1 + "\n" + line2 + "\nEND\n"}
	store := newFakeStore()
	svc := NewService(store, fetcher, Options{})

	got, err := svc.Loader(t.Context(), "1CRN")
	if err != nil {
		t.Fatalf("Loader: %v", err)
	}

	want := "// REMARK from http://files.test/1CRN.pdb\n" +
		"var lines = [\n" +
		"\"" + line1 + "\",\n" +
		"\"" + line2 + "\",\n" +
		"];\n\n" +
		"var bond_pairs = [\n" +
		"[0, 1]\n" +
		"];\n\n" +
		"var max_length = 0.000000;"
	if got != want {
		t.Fatalf("artifact mismatch\n got: %q\nwant: %q", got, want)
	}

	stored, ok := store.get("1CRN")
	if !ok {
		t.Fatal("artifact was not written to the store")
	}
	if stored != want {
		t.Fatalf("stored text mismatch\n got: %q\nwant: %q", stored, want)
	}

	// A second request is served from the store without refetching.
	again, err := svc.Loader(t.Context(), "1CRN")
	if err != nil {
		t.Fatalf("Loader second call: %v", err)
	}
	if wantAgain := "// REMARK From database\n" + want; again != wantAgain {
		t.Fatalf("second call mismatch\n got: %q\nwant: %q", again, wantAgain)
	}
	if n := fetcher.calls.Load(); n != 1 {
		t.Fatalf("fetch calls = %d, want 1", n)
	}
}

func TestLoaderFetchDiagnostics(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"http error", pkgerrors.New(pkgerrors.ErrFetchFailed, http.StatusBadGateway, "status 500"), diagFetchError},
		{"not found", pkgerrors.New(pkgerrors.ErrStructureNotFound, http.StatusNotFound, "status 404"), diagFetchError},
		{"timeout", pkgerrors.New(pkgerrors.ErrFetchTimeout, http.StatusGatewayTimeout, "deadline exceeded"), diagFetchTimeout},
		{"too large", pkgerrors.New(pkgerrors.ErrContentTooLarge, http.StatusRequestEntityTooLarge, "over 1000000 bytes"), diagTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore()
			svc := NewService(store, &fakeFetcher{err: tc.err}, Options{})

			got, err := svc.Loader(t.Context(), "1ABC")
			if err != nil {
				t.Fatalf("Loader: %v", err)
			}
			if got != tc.want {
				t.Fatalf("diagnostic = %q, want %q", got, tc.want)
			}
			if n := store.writeCount(); n != 0 {
				t.Fatalf("diagnostic was persisted (%d writes)", n)
			}
		})
	}
}

func TestLoaderRetriesFetchAfterDiagnostic(t *testing.T) {
	fetcher := &fakeFetcher{err: pkgerrors.New(pkgerrors.ErrStructureNotFound, http.StatusNotFound, "status 404")}
	store := newFakeStore()
	svc := NewService(store, fetcher, Options{})

	if _, err := svc.Loader(t.Context(), "9XYZ"); err != nil {
		t.Fatalf("Loader: %v", err)
	}

	// The placeholder was not cached, so the next request fetches again and
	// succeeds once the remote recovers.
	fetcher.err = nil
	fetcher.content = atomLine(1, "CA", 0, 0, 0) + "\n"
	got, err := svc.Loader(t.Context(), "9XYZ")
	if err != nil {
		t.Fatalf("Loader retry: %v", err)
	}
	if n := fetcher.calls.Load(); n != 2 {
		t.Fatalf("fetch calls = %d, want 2", n)
	}
	if _, ok := store.get("9XYZ"); !ok {
		t.Fatal("recovered artifact was not stored")
	}
	if len(got) == 0 || got[0:14] != "// REMARK from" {
		t.Fatalf("recovered artifact = %q, want computed text", got)
	}
}

func TestLoaderMalformedRecord(t *testing.T) {
	bad := atomLine(1, "CA", 0, 0, 0)
	bad = bad[:30] + "  xx.xxx" + bad[38:]
	store := newFakeStore()
	svc := NewService(store, &fakeFetcher{content: bad + "\n"}, Options{})

	_, err := svc.Loader(t.Context(), "1BAD")
	if !errors.Is(err, pkgerrors.ErrMalformedRecord) {
		t.Fatalf("error = %v, want ErrMalformedRecord", err)
	}
	if n := store.writeCount(); n != 0 {
		t.Fatalf("malformed structure was persisted (%d writes)", n)
	}
}

func TestLoaderInvalidID(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{}
	svc := NewService(store, fetcher, Options{})

	for _, id := range []string{"", "../etc", "1ABC.js", "has space"} {
		if _, err := svc.Loader(t.Context(), id); !errors.Is(err, pkgerrors.ErrInvalidInput) {
			t.Errorf("Loader(%q) error = %v, want ErrInvalidInput", id, err)
		}
	}
	if store.reads != 0 {
		t.Fatalf("store was read %d times for invalid ids", store.reads)
	}
	if n := fetcher.calls.Load(); n != 0 {
		t.Fatalf("fetch calls = %d, want 0", n)
	}
}

func TestLoaderWriteFailureStillServes(t *testing.T) {
	store := newFakeStore()
	store.writeErr = pkgerrors.New(pkgerrors.ErrInternal, http.StatusInternalServerError, "insert failed")
	svc := NewService(store, &fakeFetcher{content: atomLine(1, "CA", 0, 0, 0) + "\n"}, Options{})

	got, err := svc.Loader(t.Context(), "1CRN")
	if err != nil {
		t.Fatalf("Loader: %v", err)
	}
	if len(got) == 0 || got[0:14] != "// REMARK from" {
		t.Fatalf("artifact = %q, want computed text despite write failure", got)
	}
}

func TestLoaderReadErrorSurfaces(t *testing.T) {
	store := newFakeStore()
	store.readErr = pkgerrors.New(pkgerrors.ErrStoreIntegrity, http.StatusInternalServerError, "chunk count mismatch")
	fetcher := &fakeFetcher{}
	svc := NewService(store, fetcher, Options{})

	_, err := svc.Loader(t.Context(), "1CRN")
	if !errors.Is(err, pkgerrors.ErrStoreIntegrity) {
		t.Fatalf("error = %v, want ErrStoreIntegrity", err)
	}
	if n := fetcher.calls.Load(); n != 0 {
		t.Fatalf("fetch calls = %d, want 0", n)
	}
}

func TestLoaderEmptyStructureFile(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &fakeFetcher{content: "HEADER    EMPTY\nEND\n"}, Options{})

	got, err := svc.Loader(t.Context(), "0EMP")
	if err != nil {
		t.Fatalf("Loader: %v", err)
	}
	want := "// REMARK from http://files.test/0EMP.pdb\n" +
		"var lines = [\n];\n\nvar bond_pairs = [\n\n];\n\nvar max_length = 0.000000;"
	if got != want {
		t.Fatalf("artifact mismatch\n got: %q\nwant: %q", got, want)
	}
	if _, ok := store.get("0EMP"); !ok {
		t.Fatal("empty artifact was not stored")
	}
}

func TestLoaderCollapsesConcurrentComputes(t *testing.T) {
	fetcher := &fakeFetcher{
		content: atomLine(1, "CA", 0, 0, 0) + "\n",
		delay:   100 * time.Millisecond,
	}
	store := newFakeStore()
	svc := NewService(store, fetcher, Options{
		Claims:    claim.New(nil, 5*time.Second),
		ClaimWait: time.Second,
	})

	const n = 8
	results := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Loader(t.Context(), "1CRN")
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("Loader %d: %v", i, errs[i])
		}
		if results[i] != results[0] {
			t.Fatalf("request %d got a different artifact", i)
		}
	}
	if calls := fetcher.calls.Load(); calls != 1 {
		t.Fatalf("fetch calls = %d, want 1", calls)
	}
}
