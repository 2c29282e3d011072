package gf28

// RawSectorSize is the size in bytes of an audio-sized (raw) CD-ROM sector.
const RawSectorSize = 2352

// matrix geometry over bytes 12..2075 of a raw sector (spec §4.8).
const (
	pRows   = 24 // P-matrix payload rows per column
	pCols   = 43 // columns, shared by P and Q
	qRows   = 26 // P-matrix rows (24) plus the two appended P-parity rows
	matrixOff = 12
)

// wordOffset returns the byte offset of word (row, col) in the flat
// 26-row x 43-col word matrix that starts at byte 12 of the sector.
func wordOffset(row, col int) int {
	return matrixOff + (row*pCols+col)*2
}

// parityPair computes the two RSPC parity values (p0, p1) for a payload
// vector v of length n, such that H x (v_0..v_{n-1}, p0, p1) = 0 over
// GF(2^8), where H's second row is [alpha^(n+1), alpha^n, ..., alpha^1, 1]
// for n payload columns followed by the two parity columns (spec §4.8).
// The same closed form serves both the 24-element P columns and the
// 43-element Q diagonals; only n differs.
func parityPair(v []byte) (p0, p1 byte) {
	n := len(v)
	var sum byte
	var weighted byte
	for i, vi := range v {
		sum = Add(sum, vi)
		weighted = Add(weighted, Mul(Pow(n+1-i), vi))
	}
	p0 = DivByThree(Add(MulAlpha(sum), weighted))
	p1 = Add(sum, p0)
	return p0, p1
}

// ParityP computes and writes the P-parity bytes for all 43 columns of a
// raw sector's LSB and MSB word planes, storing them at image positions
// 2162+2i (p0) and 2076+2i (p1), interleaving the LSB-plane byte and the
// MSB-plane byte of each parity pair (spec §4.8). sector must be
// RawSectorSize bytes and already hold the 24x43 payload word matrix at
// bytes 12..2075.
func ParityP(sector []byte) {
	for col := 0; col < pCols; col++ {
		var vLSB, vMSB [pRows]byte
		for row := 0; row < pRows; row++ {
			off := wordOffset(row, col)
			vLSB[row] = sector[off]
			vMSB[row] = sector[off+1]
		}
		p0L, p1L := parityPair(vLSB[:])
		p0M, p1M := parityPair(vMSB[:])
		sector[2076+2*col] = p1L
		sector[2076+2*col+1] = p1M
		sector[2162+2*col] = p0L
		sector[2162+2*col+1] = p0M
	}
}

// ParityQ computes and writes the Q-parity bytes for the 26 diagonals of
// the extended (24 payload + 2 P-parity) 26x43 matrix, storing them at
// image positions 2300+2i (q0) and 2248+2i (q1) (spec §4.8). Must be
// called after ParityP has populated the two appended P rows.
func ParityQ(sector []byte) {
	for d := 0; d < qRows; d++ {
		var vLSB, vMSB [pCols]byte
		row := d
		for col := 0; col < pCols; col++ {
			off := wordOffset(row, col)
			vLSB[col] = sector[off]
			vMSB[col] = sector[off+1]
			row = (row + 1) % qRows
		}
		p0L, p1L := parityPair(vLSB[:])
		p0M, p1M := parityPair(vMSB[:])
		sector[2248+2*d] = p1L
		sector[2248+2*d+1] = p1M
		sector[2300+2*d] = p0L
		sector[2300+2*d+1] = p0M
	}
}
