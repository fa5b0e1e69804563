package cardstate

// lcg is a 32-bit linear congruential generator (Numerical Recipes constants).
// It is deterministic for replay and audit and is not cryptographically fair.
type lcg struct{ state uint32 }

func (l *lcg) next() uint32 {
	l.state = l.state*1664525 + 1013904223
	return l.state
}

// SeededShuffle permutes refs in place with a Fisher–Yates walk driven by an
// LCG seeded with seed. The same seed always yields the same order.
func SeededShuffle(refs []CardRef, seed int64) {
	g := &lcg{state: uint32(seed) ^ uint32(seed>>32)}
	for i := len(refs) - 1; i > 0; i-- {
		j := int(g.next() % uint32(i+1))
		refs[i], refs[j] = refs[j], refs[i]
	}
}
