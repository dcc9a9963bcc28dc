package allocator

// Retry attempts reshuffle tie-broken candidate orderings with a
// deterministic generator so the same seed always reproduces the same
// schedule. A seeded math/rand would tie reproducibility to the Go release,
// so the generator is spelled out here.

const (
	lcgMultiplier = 1103515245
	lcgIncrement  = 12345
	lcgModMask    = 0x7fffffff
)

// lcg is a linear-congruential pseudo-random source
type lcg struct {
	state int64
}

func newLCG(seed int64) *lcg {
	return &lcg{state: seed & lcgModMask}
}

// next returns a pseudo-random value in [0, n)
func (g *lcg) next(n int) int {
	g.state = (g.state*lcgMultiplier + lcgIncrement) & lcgModMask
	return int(g.state % int64(n))
}

// Shuffle reorders items in place using a Fisher-Yates walk driven by the
// seed. Same seed and same input order always produce the same output.
func Shuffle[T any](items []T, seed int64) {
	g := newLCG(seed)
	for i := len(items) - 1; i > 0; i-- {
		j := g.next(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}
