// Package gf28 implements GF(2^8) arithmetic, the ECMA-130 RSPC P/Q parity
// derivation for raw CD-ROM sectors, and the ECMA-130 sector scrambler
// (spec §4.8). It has no dependency on anything else in this module: it is
// a pure function library over byte slices, grounded on
// original_source/libburn/ecma130ab.c.
package gf28

// Primitive polynomial x^8+x^4+x^3+x^2+1 (0x11d); generator alpha = x (2).
const primPoly = 0x11d

// gfpow enumerates powers of alpha: gfpow[i] = alpha^i. The table is
// unrolled to 509 entries (more than 2*254) so that a sum of two logarithms
// (each at most 254) never needs a modulo before being used as an index.
var gfpow [509]byte

// gflog is the inverse of gfpow over one period; gflog[0] is an unused
// sentinel (zero has no logarithm).
var gflog [256]byte

func init() {
	v := 1
	for i := 0; i < 255; i++ {
		gfpow[i] = byte(v)
		gflog[v] = byte(i)
		v <<= 1
		if v&0x100 != 0 {
			v ^= primPoly
		}
	}
	// Repeat the period so indices up to 508 are valid without a modulo.
	for i := 255; i < 509; i++ {
		gfpow[i] = gfpow[i-255]
	}
}

// Add is GF(2^8) addition (and subtraction): bitwise XOR.
func Add(a, b byte) byte { return a ^ b }

// Mul is GF(2^8) multiplication.
func Mul(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return gfpow[int(gflog[a])+int(gflog[b])]
}

// MulAlpha multiplies a by the generator alpha (x, i.e. 2).
func MulAlpha(a byte) byte { return Mul(a, 2) }

// Pow returns alpha^e for e in [0, 508].
func Pow(e int) byte { return gfpow[e] }

// DivByThree divides a by the fixed divisor 3 = alpha - 1 = 1 XOR alpha,
// which is the constant denominator that falls out of the RSPC parity
// derivation for any payload length n (spec §4.8): the H-matrix's two
// trailing coefficients are always alpha^1 and alpha^0, whose GF difference
// is 1 XOR alpha = 3 regardless of n.
func DivByThree(a byte) byte {
	if a == 0 {
		return 0
	}
	return gfpow[230+int(gflog[a])]
}
