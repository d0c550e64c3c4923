package catalog

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/traceforge/traceforge/internal/group"
)

func sampleCatalog(service string) *Catalog {
	return &Catalog{
		Service: service,
		BaseURL: "https://api." + service + ".com",
		Endpoints: []*group.EndpointGroup{
			{Method: "GET", Path: "/users/{userId}", Category: group.CategoryRead, ExampleCount: 3},
		},
		Version: "abc123def456",
	}
}

func testStoreRoundTrip(t *testing.T, s Store) {
	t.Helper()

	if c, err := s.Load("missing"); err != nil || c != nil {
		t.Fatalf("Load(missing) = %v, %v; want nil, nil", c, err)
	}

	want := sampleCatalog("acme")
	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(sampleCatalog("globex")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load("acme")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Service != want.Service || got.Version != want.Version {
		t.Errorf("loaded %+v, want %+v", got, want)
	}
	if len(got.Endpoints) != 1 || got.Endpoints[0].Key() != "GET /users/{userId}" {
		t.Errorf("endpoints = %+v", got.Endpoints)
	}

	services, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !reflect.DeepEqual(services, []string{"acme", "globex"}) {
		t.Errorf("List = %v", services)
	}
}

func TestBoltStore(t *testing.T) {
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "catalogs.db"))
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	defer s.Close()

	testStoreRoundTrip(t, s)
}

func TestFileStore(t *testing.T) {
	testStoreRoundTrip(t, NewFileStore(t.TempDir(), false))
}

func TestFileStore_Compressed(t *testing.T) {
	testStoreRoundTrip(t, NewFileStore(t.TempDir(), true))
}

func TestMemoryStore(t *testing.T) {
	testStoreRoundTrip(t, NewMemoryStore())
}

func TestBoltStore_Overwrite(t *testing.T) {
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "catalogs.db"))
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	defer s.Close()

	c := sampleCatalog("acme")
	if err := s.Save(c); err != nil {
		t.Fatalf("Save: %v", err)
	}
	c.Version = "ffffffffffff"
	if err := s.Save(c); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load("acme")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Version != "ffffffffffff" {
		t.Errorf("version = %q", got.Version)
	}
}
