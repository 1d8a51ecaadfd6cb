package store

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alecthomas/assert"
	"github.com/davecgh/go-spew/spew"
	"github.com/kjk/travelstore/record"
)

var (
	destinations = []string{"Турция", "Египет", "Greece", "Spain", "Cyprus", "Thailand"}
	hotels       = []string{"Sun Resort", "Beach Palace", "Grand Hotel", "Sea View", "Royal Resort"}
	indexKinds   = []IndexKind{IndexSorted, IndexBTree}
)

// genRandomPackages returns n packages with unique ids
func genRandomPackages(rng *rand.Rand, n int) []*record.Package {
	seen := map[string]bool{}
	var res []*record.Package
	for len(res) < n {
		id := fmt.Sprintf("TUR%d", 10000+rng.Intn(90000))
		if seen[id] {
			continue
		}
		seen[id] = true
		p := &record.Package{
			PackageID:   id,
			Destination: destinations[rng.Intn(len(destinations))],
			HotelName:   hotels[rng.Intn(len(hotels))],
			StartDate:   record.Date(2024, time.Month(1+rng.Intn(12)), 1+rng.Intn(28)),
			Duration:    7 + rng.Intn(8),
			Price:       30000 + rng.Float64()*120000,
		}
		res = append(res, p)
	}
	return res
}

func pkg(id string, price float64) *record.Package {
	return &record.Package{
		PackageID:   id,
		Destination: "Cyprus",
		HotelName:   "Sea View",
		StartDate:   record.Date(2024, time.June, 1),
		Duration:    10,
		Price:       price,
	}
}

func openTestStore(t testing.TB, kind IndexKind) *Store {
	s := &Store{
		DataPath: filepath.Join(t.TempDir(), "travel_packages.dat"),
		Index:    kind,
	}
	err := OpenStore(s)
	assert.NoError(t, err)
	return s
}

func appendAll(t testing.TB, s *Store, pkgs []*record.Package) {
	for _, p := range pkgs {
		_, err := s.Append(p)
		assert.NoError(t, err)
	}
}

func encodedSize(t testing.TB, p *record.Package) int64 {
	d, err := record.Encode(p)
	assert.NoError(t, err)
	return int64(len(d))
}

func assertSameRecord(t *testing.T, exp, got *record.Package) {
	assert.True(t, exp.Equal(got), "exp:\n%s\ngot:\n%s", spew.Sdump(exp), spew.Sdump(got))
}

func entryKeys(entries []IndexEntry) []string {
	var res []string
	for _, e := range entries {
		res = append(res, e.Key)
	}
	return res
}

func TestScenario(t *testing.T) {
	for _, kind := range indexKinds {
		s := openTestStore(t, kind)
		a1, a3, a2 := pkg("A1", 100), pkg("A3", 300), pkg("A2", 200)
		appendAll(t, s, []*record.Package{a1, a3, a2})

		assert.Equal(t, []string{"A1", "A2", "A3"}, entryKeys(s.Entries()), kind.String())

		got, err := s.SearchByIndex("A2")
		assert.NoError(t, err)
		assertSameRecord(t, a2, got)

		got, err = s.SearchSequential("A2")
		assert.NoError(t, err)
		assertSameRecord(t, a2, got)

		_, err = s.SearchByIndex("Z9")
		assert.Equal(t, ErrNotFound, err)
		_, err = s.SearchSequential("Z9")
		assert.Equal(t, ErrNotFound, err)
	}
}

func TestAppendAndSearch(t *testing.T) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for _, kind := range indexKinds {
		s := openTestStore(t, kind)
		pkgs := genRandomPackages(rng, 500)

		var expSize int64
		for i, p := range pkgs {
			e, err := s.Append(p)
			assert.NoError(t, err)
			assert.Equal(t, p.PackageID, e.Key)
			assert.Equal(t, expSize, e.Offset, "record %d", i)
			expSize += encodedSize(t, p)
		}
		assert.Equal(t, len(pkgs), s.Len())
		size, err := s.Size()
		assert.NoError(t, err)
		assert.Equal(t, expSize, size)

		entries := s.Entries()
		assert.Equal(t, len(pkgs), len(entries))
		assert.True(t, sort.SliceIsSorted(entries, func(i, j int) bool {
			return entries[i].Key < entries[j].Key
		}), kind.String())

		for _, p := range pkgs {
			byIndex, err := s.SearchByIndex(p.PackageID)
			assert.NoError(t, err)
			assertSameRecord(t, p, byIndex)

			seq, err := s.SearchSequential(p.PackageID)
			assert.NoError(t, err)
			assertSameRecord(t, byIndex, seq)
		}

		_, err = s.SearchByIndex("TUR1")
		assert.Equal(t, ErrNotFound, err)
		_, err = s.SearchSequential("TUR1")
		assert.Equal(t, ErrNotFound, err)
	}
}

func TestSortedInvariantRandomOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, kind := range indexKinds {
		s := openTestStore(t, kind)
		var keys []string
		for i := 0; i < 200; i++ {
			// small key space so that we get duplicates
			k := fmt.Sprintf("K%02d", rng.Intn(50))
			keys = append(keys, k)
			_, err := s.Append(pkg(k, float64(i)))
			assert.NoError(t, err)

			got := entryKeys(s.Entries())
			assert.True(t, sort.StringsAreSorted(got), "after %d appends: %v", i+1, got)
		}
		sort.Strings(keys)
		assert.Equal(t, keys, entryKeys(s.Entries()))
	}
}

func TestEmptyStore(t *testing.T) {
	s := openTestStore(t, IndexSorted)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, len(s.Entries()))

	_, err := s.SearchByIndex("A1")
	assert.Equal(t, ErrNotFound, err)
	// data file doesn't exist yet
	_, err = s.SearchSequential("A1")
	assert.Equal(t, ErrNotFound, err)
	size, err := s.Size()
	assert.NoError(t, err)
	assert.Equal(t, int64(0), size)
	_, err = os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestDuplicateKeys(t *testing.T) {
	for _, kind := range indexKinds {
		s := openTestStore(t, kind)
		first, second, third := pkg("A", 1), pkg("A", 2), pkg("A", 3)
		e1, err := s.Append(first)
		assert.NoError(t, err)
		_, err = s.Append(pkg("B", 10))
		assert.NoError(t, err)
		e2, err := s.Append(second)
		assert.NoError(t, err)
		e3, err := s.Append(third)
		assert.NoError(t, err)

		assert.Equal(t, 4, s.Len())
		// newest first among equal keys
		exp := []IndexEntry{e3, e2, e1, {Key: "B", Offset: e1.Offset + encodedSize(t, first)}}
		assert.Equal(t, exp, s.Entries(), kind.String())

		got, err := s.SearchByIndex("A")
		assert.NoError(t, err)
		assertSameRecord(t, third, got)

		got, err = s.SearchSequential("A")
		assert.NoError(t, err)
		assertSameRecord(t, first, got)

		e, ok := s.Lookup("A")
		assert.True(t, ok)
		assert.Equal(t, e3, e)
		_, ok = s.Lookup("C")
		assert.False(t, ok)
	}
}

func TestReopen(t *testing.T) {
	s := openTestStore(t, IndexSorted)
	old := pkg("OLD1", 1)
	appendAll(t, s, []*record.Package{old, pkg("OLD2", 2)})

	s2, err := Open(s.DataPath)
	assert.NoError(t, err)
	// index is not rebuilt from the file
	assert.Equal(t, 0, s2.Len())
	_, err = s2.SearchByIndex("OLD1")
	assert.Equal(t, ErrNotFound, err)
	got, err := s2.SearchSequential("OLD1")
	assert.NoError(t, err)
	assertSameRecord(t, old, got)

	// new appends go after existing records
	newer := pkg("NEW1", 3)
	e, err := s2.Append(newer)
	assert.NoError(t, err)
	size, err := s.Size()
	assert.NoError(t, err)
	assert.Equal(t, size-encodedSize(t, newer), e.Offset)
	got, err = s2.SearchByIndex("NEW1")
	assert.NoError(t, err)
	assertSameRecord(t, newer, got)

	var ids []string
	err = s2.Scan(func(off int64, p *record.Package) error {
		ids = append(ids, p.PackageID)
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"OLD1", "OLD2", "NEW1"}, ids)
}

func TestScan(t *testing.T) {
	s := openTestStore(t, IndexSorted)
	pkgs := []*record.Package{pkg("C", 1), pkg("A", 2), pkg("B", 3)}
	var offsets []int64
	for _, p := range pkgs {
		e, err := s.Append(p)
		assert.NoError(t, err)
		offsets = append(offsets, e.Offset)
	}

	i := 0
	err := s.Scan(func(off int64, p *record.Package) error {
		assert.Equal(t, offsets[i], off)
		assertSameRecord(t, pkgs[i], p)
		i++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, i)

	errStop := errors.New("stop")
	n := 0
	err = s.Scan(func(off int64, p *record.Package) error {
		n++
		return errStop
	})
	assert.Equal(t, errStop, err)
	assert.Equal(t, 1, n)
}

func TestTruncatedDataFile(t *testing.T) {
	s := openTestStore(t, IndexSorted)
	appendAll(t, s, []*record.Package{pkg("A1", 1), pkg("A2", 2)})
	e3, err := s.Append(pkg("A3", 3))
	assert.NoError(t, err)

	// index points past the end of file
	err = os.Truncate(s.Path(), e3.Offset)
	assert.NoError(t, err)
	_, err = s.SearchByIndex("A3")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, record.ErrCorrupt), "err: %v", err)
	// file ends at a record boundary
	_, err = s.SearchSequential("A3")
	assert.Equal(t, ErrNotFound, err)

	// cut A2 in half
	e2 := s.Entries()[1]
	assert.Equal(t, "A2", e2.Key)
	err = os.Truncate(s.Path(), e2.Offset+5)
	assert.NoError(t, err)
	_, err = s.SearchByIndex("A2")
	assert.True(t, errors.Is(err, record.ErrCorrupt), "err: %v", err)
	_, err = s.SearchSequential("missing")
	assert.True(t, errors.Is(err, record.ErrCorrupt), "err: %v", err)
	// found before reaching corruption
	_, err = s.SearchSequential("A1")
	assert.NoError(t, err)
}

func TestAppendRejectsUnencodableDate(t *testing.T) {
	for _, kind := range indexKinds {
		s := openTestStore(t, kind)
		a1, a2 := pkg("A1", 100), pkg("A2", 200)
		bad := pkg("Y10K", 300)
		bad.StartDate = record.Date(10000, time.January, 1)

		_, err := s.Append(a1)
		assert.NoError(t, err)
		sizeBefore, err := s.Size()
		assert.NoError(t, err)

		_, err = s.Append(bad)
		assert.True(t, errors.Is(err, record.ErrInvalid), "err: %v", err)
		size, err := s.Size()
		assert.NoError(t, err)
		assert.Equal(t, sizeBefore, size)
		assert.Equal(t, 1, s.Len())

		_, err = s.Append(a2)
		assert.NoError(t, err)

		_, err = s.SearchByIndex("Y10K")
		assert.Equal(t, ErrNotFound, err)
		got, err := s.SearchSequential("A2")
		assert.NoError(t, err)
		assertSameRecord(t, a2, got)
		got, err = s.SearchByIndex("A2")
		assert.NoError(t, err)
		assertSameRecord(t, a2, got)
	}
}

func TestFailedAppendKeepsIndex(t *testing.T) {
	dir := t.TempDir()
	notDir := filepath.Join(dir, "file")
	err := os.WriteFile(notDir, []byte("x"), 0644)
	assert.NoError(t, err)

	s, err := Open(filepath.Join(notDir, "data.dat"))
	assert.NoError(t, err)
	_, err = s.Append(pkg("A1", 1))
	assert.Error(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestOpenStoreErrors(t *testing.T) {
	err := OpenStore(&Store{})
	assert.Error(t, err)

	err = OpenStore(&Store{DataPath: t.TempDir()})
	assert.Error(t, err)

	err = OpenStore(&Store{DataPath: "x.dat", Index: IndexKind(7)})
	assert.Error(t, err)
}

func TestParseIndexKind(t *testing.T) {
	for _, kind := range indexKinds {
		got, ok := ParseIndexKind(kind.String())
		assert.True(t, ok)
		assert.Equal(t, kind, got)
	}
	got, ok := ParseIndexKind("")
	assert.True(t, ok)
	assert.Equal(t, IndexSorted, got)
	_, ok = ParseIndexKind("hash")
	assert.False(t, ok)
}

func TestConcurrentAppends(t *testing.T) {
	s := openTestStore(t, IndexBTree)
	pkgs := genRandomPackages(rand.New(rand.NewSource(2)), 200)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; i < len(pkgs); i += 4 {
				_, err := s.Append(pkgs[i])
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, len(pkgs), s.Len())
	for _, p := range pkgs {
		got, err := s.SearchByIndex(p.PackageID)
		assert.NoError(t, err)
		assertSameRecord(t, p, got)
	}
}

func TestSyncWrite(t *testing.T) {
	s := &Store{
		DataPath:  filepath.Join(t.TempDir(), "sub", "dir", "synced.dat"),
		SyncWrite: true,
	}
	err := OpenStore(s)
	assert.NoError(t, err)
	p := pkg("S1", 1)
	_, err = s.Append(p)
	assert.NoError(t, err)
	got, err := s.SearchByIndex("S1")
	assert.NoError(t, err)
	assertSameRecord(t, p, got)
}

func benchmarkSearch(b *testing.B, kind IndexKind, sequential bool) {
	rng := rand.New(rand.NewSource(1))
	s := openTestStore(b, kind)
	pkgs := genRandomPackages(rng, 500)
	appendAll(b, s, pkgs)
	key := pkgs[len(pkgs)/2].PackageID
	search := s.SearchByIndex
	if sequential {
		search = s.SearchSequential
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := search(key); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSearchByIndexSorted(b *testing.B) {
	benchmarkSearch(b, IndexSorted, false)
}

func BenchmarkSearchByIndexBTree(b *testing.B) {
	benchmarkSearch(b, IndexBTree, false)
}

func BenchmarkSearchSequential(b *testing.B) {
	benchmarkSearch(b, IndexSorted, true)
}

func BenchmarkAppend(b *testing.B) {
	for _, kind := range indexKinds {
		b.Run(kind.String(), func(b *testing.B) {
			rng := rand.New(rand.NewSource(1))
			s := openTestStore(b, kind)
			pkgs := genRandomPackages(rng, 1000)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := s.Append(pkgs[i%len(pkgs)]); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
