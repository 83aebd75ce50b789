// Package split partitions row indices into train/validation and test sets.
//
// All functions are deterministic for a given seed: the same inputs always
// produce the same partition.
package split

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	mlerrors "github.com/chazuruo/mlprep/internal/errors"
)

// ValidateTestSize checks a test size before the dataset size is known.
// Values in (0,1) are fractions; values >= 1 must be whole row counts.
func ValidateTestSize(testSize float64) error {
	if math.IsNaN(testSize) || math.IsInf(testSize, 0) || testSize <= 0 {
		return fmt.Errorf("test size must be a fraction in (0,1) or a row count >= 1, got %v: %w", testSize, mlerrors.ErrInvalid)
	}
	if testSize >= 1 && testSize != math.Trunc(testSize) {
		return fmt.Errorf("test size %v is neither a fraction in (0,1) nor a whole row count: %w", testSize, mlerrors.ErrInvalid)
	}
	return nil
}

// TestCount returns how many of n rows go to the test partition.
// Fractions round up; both partitions must end up non-empty.
func TestCount(n int, testSize float64) (int, error) {
	if err := ValidateTestSize(testSize); err != nil {
		return 0, err
	}

	var nTest int
	if testSize < 1 {
		x := testSize * float64(n)
		if r := math.Round(x); math.Abs(x-r) < 1e-9 {
			x = r
		}
		nTest = int(math.Ceil(x))
	} else {
		nTest = int(testSize)
	}

	if nTest < 1 || nTest >= n {
		return 0, fmt.Errorf("test size %v with %d rows leaves %d test and %d train/validation rows; both must be non-empty: %w",
			testSize, n, nTest, n-nTest, mlerrors.ErrInvalid)
	}
	return nTest, nil
}

// Random shuffles 0..n-1 with the seed and takes the first nTest indices as
// the test partition.
func Random(n, nTest int, seed int64) (train, test []int) {
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(n)
	return perm[nTest:], perm[:nTest]
}

// stratum is one distinct label value and the rows carrying it.
type stratum struct {
	label   string
	members []int
	nTest   int
	rem     float64
}

// Stratified splits rows so each label keeps its share of the test partition.
// labels[i] is the stratum of row i.
//
// Per-stratum test counts are the floor of the proportional share; the rows
// left over go to the strata with the largest fractional parts, ties in order
// of first appearance. Every stratum needs at least two members, and each
// partition must be able to hold one row per stratum.
func Stratified(labels []string, nTest int, seed int64) (train, test []int, err error) {
	n := len(labels)
	if nTest < 1 || nTest >= n {
		return nil, nil, fmt.Errorf("test count %d out of range for %d rows: %w", nTest, n, mlerrors.ErrInvalid)
	}

	var strata []*stratum
	byLabel := make(map[string]*stratum)
	for i, label := range labels {
		s, ok := byLabel[label]
		if !ok {
			s = &stratum{label: label}
			byLabel[label] = s
			strata = append(strata, s)
		}
		s.members = append(s.members, i)
	}

	for _, s := range strata {
		if len(s.members) < 2 {
			return nil, nil, fmt.Errorf("stratum %q has only %d member; every stratum needs at least 2: %w",
				s.label, len(s.members), mlerrors.ErrInvalid)
		}
	}
	if nTest < len(strata) {
		return nil, nil, fmt.Errorf("test partition of %d rows cannot hold %d strata: %w", nTest, len(strata), mlerrors.ErrInvalid)
	}
	if n-nTest < len(strata) {
		return nil, nil, fmt.Errorf("train/validation partition of %d rows cannot hold %d strata: %w", n-nTest, len(strata), mlerrors.ErrInvalid)
	}

	allocate(strata, n, nTest)

	rng := rand.New(rand.NewSource(seed))
	for _, s := range strata {
		perm := rng.Perm(len(s.members))
		for j, p := range perm {
			if j < s.nTest {
				test = append(test, s.members[p])
			} else {
				train = append(train, s.members[p])
			}
		}
	}
	rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
	rng.Shuffle(len(test), func(i, j int) { test[i], test[j] = test[j], test[i] })

	return train, test, nil
}

// allocate distributes nTest rows over strata by largest remainder.
func allocate(strata []*stratum, n, nTest int) {
	assigned := 0
	for _, s := range strata {
		exact := float64(len(s.members)) * float64(nTest) / float64(n)
		s.nTest = int(math.Floor(exact))
		s.rem = exact - float64(s.nTest)
		assigned += s.nTest
	}

	order := make([]*stratum, len(strata))
	copy(order, strata)
	sort.SliceStable(order, func(i, j int) bool { return order[i].rem > order[j].rem })

	for i := 0; assigned < nTest; i = (i + 1) % len(order) {
		if order[i].nTest < len(order[i].members) {
			order[i].nTest++
			assigned++
		}
	}
}
