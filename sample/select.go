package sample

import (
	"math"
	"math/rand"
	"sort"
)

// selectOrdinals draws round(n*density) distinct voxel ordinals uniformly
// from [0, n) without replacement and returns them sorted ascending, so the
// orchestrator can resolve them in one forward pass over the blocks.
//
// The draw is a partial Fisher-Yates shuffle over a sparse view of the
// identity permutation: only swapped slots are stored, so cost is O(sp) time
// and space no matter how large n is.  A density >= 1 short-circuits to the
// full enumeration [0, n).
func selectOrdinals(rng *rand.Rand, n uint64, density float64) ([]uint64, error) {
	if density <= 0 || density > 1 {
		return nil, ErrInvalidDensity
	}
	if density == 1 {
		ordinals := make([]uint64, n)
		for i := range ordinals {
			ordinals[i] = uint64(i)
		}
		return ordinals, nil
	}
	sp := uint64(math.Round(float64(n) * density))
	if sp > n {
		sp = n
	}
	if sp == 0 {
		return nil, nil
	}

	swapped := make(map[uint64]uint64, sp)
	ordinals := make([]uint64, 0, sp)
	for i := uint64(0); i < sp; i++ {
		j := i + uint64(rng.Int63n(int64(n-i)))
		picked, ok := swapped[j]
		if !ok {
			picked = j
		}
		displaced, ok := swapped[i]
		if !ok {
			displaced = i
		}
		swapped[j] = displaced
		ordinals = append(ordinals, picked)
	}
	sort.Slice(ordinals, func(a, b int) bool { return ordinals[a] < ordinals[b] })
	return ordinals, nil
}
