package drop_test

import (
	"testing"

	"drop-go/internal/drop"
	"drop-go/internal/testutil"
)

func fingerprintOf(t *testing.T, storage drop.Storage, clock drop.Clock) string {
	t.Helper()
	inv, err := drop.BuildInventory(storage, clock.Now(), drop.NewNopLogger())
	if err != nil {
		t.Fatalf("BuildInventory() error = %v", err)
	}
	fp, err := drop.Fingerprint(inv)
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	return fp
}

func TestFingerprint_IndependentOfListingOrder(t *testing.T) {
	clock := testutil.FixedClock()
	forward := seedStorage(clock)
	reversed := seedStorage(clock)
	reversed.ReverseListing = true

	a := fingerprintOf(t, forward, clock)
	b := fingerprintOf(t, reversed, clock)
	if a != b {
		t.Errorf("fingerprints differ across listing orders: %s vs %s", a, b)
	}
	if len(a) != 32 {
		t.Errorf("fingerprint %q is not 128-bit hex", a)
	}
}

func TestFingerprint_ChangesWithAnyName(t *testing.T) {
	clock := testutil.FixedClock()
	base := fingerprintOf(t, seedStorage(clock), clock)

	mutations := map[string]func(*testutil.MockStorage){
		"top-level file added":  func(s *testutil.MockStorage) { s.AddFile("c.txt", nil) },
		"top-level file gone":   func(s *testutil.MockStorage) { s.Remove("a.txt") },
		"nested file added":     func(s *testutil.MockStorage) { s.AddFile("proj/sub/deeper/z.txt", nil) },
		"nested file gone":      func(s *testutil.MockStorage) { s.Remove("proj/sub/y.txt") },
		"old folder file added": func(s *testutil.MockStorage) { s.AddFile("older/w.txt", nil) },
		"folder gone":           func(s *testutil.MockStorage) { s.RemoveAll("empty") },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			storage := seedStorage(clock)
			mutate(storage)
			if got := fingerprintOf(t, storage, clock); got == base {
				t.Error("fingerprint did not change")
			}
		})
	}
}

func TestFingerprint_IgnoresSizesAndContent(t *testing.T) {
	clock := testutil.FixedClock()
	storage := seedStorage(clock)
	before := fingerprintOf(t, storage, clock)

	storage.AddFile("a.txt", []byte("much longer content than before"))
	if after := fingerprintOf(t, storage, clock); after != before {
		t.Error("fingerprint changed on content-only edit")
	}
}

func TestFingerprint_EmptyInventory(t *testing.T) {
	fp, err := drop.Fingerprint(&drop.Inventory{})
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	data, _ := drop.CanonicalJSON(&drop.Inventory{})
	if string(data) != "{}" {
		t.Errorf("CanonicalJSON() = %s, want {}", data)
	}
	if fp == "" {
		t.Error("empty fingerprint")
	}
}

func TestCanonicalJSON(t *testing.T) {
	inv := &drop.Inventory{Buckets: []drop.Bucket{
		{
			Label:   "Today",
			Folders: []drop.Folder{{Name: "z", Files: []string{"b", "a"}}, {Name: "m", Files: []string{}}},
			Files:   []drop.File{{Name: "y.txt"}, {Name: "x.txt"}},
		},
	}}
	data, err := drop.CanonicalJSON(inv)
	if err != nil {
		t.Fatalf("CanonicalJSON() error = %v", err)
	}
	want := `{"Today":{"files":["x.txt","y.txt"],"folders":{"m":[],"z":["a","b"]}}}`
	if string(data) != want {
		t.Errorf("CanonicalJSON() = %s, want %s", data, want)
	}
}

func TestCompareFingerprint(t *testing.T) {
	if got := drop.CompareFingerprint("abc", "abc"); got.Updated || got.Hash != "abc" {
		t.Errorf("CompareFingerprint(same) = %+v", got)
	}
	if got := drop.CompareFingerprint("", "abc"); !got.Updated || got.Hash != "abc" {
		t.Errorf("CompareFingerprint(empty prior) = %+v", got)
	}
}
