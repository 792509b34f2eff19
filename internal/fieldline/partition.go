package fieldline

import "runtime"

// span is a half-open index range [lo, hi).
type span struct{ lo, hi int }

// partition splits [0, n) into at most parts contiguous spans of near-equal
// size. It returns nil for n == 0.
func partition(n, parts int) []span {
	if n <= 0 {
		return nil
	}
	if parts < 1 {
		parts = 1
	}
	if parts > n {
		parts = n
	}
	out := make([]span, 0, parts)
	size, rem := n/parts, n%parts
	lo := 0
	for p := 0; p < parts; p++ {
		hi := lo + size
		if p < rem {
			hi++
		}
		out = append(out, span{lo: lo, hi: hi})
		lo = hi
	}
	return out
}

// resolveWorkers maps a configured worker count to a usable one.
func resolveWorkers(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}
