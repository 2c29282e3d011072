package gf28

import "testing"

func TestScramblerIsInvolution(t *testing.T) {
	sector := make([]byte, RawSectorSize)
	for i := range sector {
		sector[i] = byte(i * 7)
	}
	orig := append([]byte(nil), sector...)

	Scramble(sector)
	Scramble(sector)

	for i := range sector {
		if sector[i] != orig[i] {
			t.Fatalf("scramble not an involution at byte %d: got %x want %x", i, sector[i], orig[i])
		}
	}
}

func TestScramblerZeroSectorLeavesParityRegionZero(t *testing.T) {
	sector := make([]byte, RawSectorSize)
	ParityP(sector)
	ParityQ(sector)
	for i := 2076; i < RawSectorSize; i++ {
		if sector[i] != 0 {
			t.Fatalf("zero sector parity byte %d = %x, want 0", i, sector[i])
		}
	}
}

// checkParity verifies H x V = 0 for a payload vector and its parity pair,
// using the same closed-form H row the production code derives from.
func checkParity(t *testing.T, v []byte, p0, p1 byte) {
	t.Helper()
	n := len(v)
	var sum byte
	var weighted byte
	for i, vi := range v {
		sum = Add(sum, vi)
		weighted = Add(weighted, Mul(Pow(n+1-i), vi))
	}
	weighted = Add(weighted, Mul(Pow(1), p0))
	weighted = Add(weighted, Mul(Pow(0), p1))
	sum = Add(sum, p0)
	sum = Add(sum, p1)
	if sum != 0 || weighted != 0 {
		t.Fatalf("H x V != 0: row-sum residual=%x weighted residual=%x", sum, weighted)
	}
}

func TestPParitySatisfiesLinearCheck(t *testing.T) {
	sector := make([]byte, RawSectorSize)
	for i := matrixOff; i < 2076; i++ {
		sector[i] = byte(i*31 + 17)
	}
	ParityP(sector)

	for col := 0; col < pCols; col++ {
		var vLSB, vMSB [pRows]byte
		for row := 0; row < pRows; row++ {
			off := wordOffset(row, col)
			vLSB[row] = sector[off]
			vMSB[row] = sector[off+1]
		}
		p0L, p1L := sector[2162+2*col], sector[2076+2*col]
		p0M, p1M := sector[2162+2*col+1], sector[2076+2*col+1]
		checkParity(t, vLSB[:], p0L, p1L)
		checkParity(t, vMSB[:], p0M, p1M)
	}
}

func TestQParitySatisfiesLinearCheck(t *testing.T) {
	sector := make([]byte, RawSectorSize)
	for i := matrixOff; i < 2076; i++ {
		sector[i] = byte(i*13 + 5)
	}
	ParityP(sector)
	ParityQ(sector)

	for d := 0; d < qRows; d++ {
		var vLSB, vMSB [pCols]byte
		row := d
		for col := 0; col < pCols; col++ {
			off := wordOffset(row, col)
			vLSB[col] = sector[off]
			vMSB[col] = sector[off+1]
			row = (row + 1) % qRows
		}
		p0L, p1L := sector[2300+2*d], sector[2248+2*d]
		p0M, p1M := sector[2300+2*d+1], sector[2248+2*d+1]
		checkParity(t, vLSB[:], p0L, p1L)
		checkParity(t, vMSB[:], p0M, p1M)
	}
}
