// Package ldpc implements LdpcCodec: loading AList parity-check matrices
// and the systematic encoder / hard-decision bit-flipping decoder (spec
// §4.3, §6). Grounded on the teacher's table-driven FEC idiom
// (pkg/ysf/golay.go, pkg/ysf/crc.go): a precomputed table built once at
// init/load time, then cheap per-call lookups, with syndrome-based
// correction as the decode strategy.
package ldpc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

var (
	ErrAListMalformed     = errors.New("ldpc: alist malformed")
	ErrInfoLengthMismatch = errors.New("ldpc: info bit length mismatch")
	ErrCodewordLengthMismatch = errors.New("ldpc: codeword length mismatch")
)

// Matrix is an immutable sparse parity-check matrix loaded from an AList
// file. ColIndices[v] lists the 0-indexed check nodes incident to variable
// node v; RowIndices[c] lists the 0-indexed variable nodes incident to
// check node c. Both are read-only after Load/Parse returns (spec §3:
// "LdpcCodec matrices are immutable after load and are shared by read-only
// reference").
type Matrix struct {
	NRows, NCols int
	ColIndices   [][]int
	RowIndices   [][]int

	// parityInv is the inverse of the NRows x NRows submatrix formed by the
	// last NRows columns (the parity columns, since systematic info bits
	// occupy the low indices per spec §3). Computed lazily on first Encode.
	parityInv [][]byte
}

// InfoLen returns the number of systematic information bits: NCols - NRows.
func (m *Matrix) InfoLen() int { return m.NCols - m.NRows }

// CodewordLen returns the codeword length in bits: NCols.
func (m *Matrix) CodewordLen() int { return m.NCols }

// LoadAList opens and parses an AList matrix file (spec §6).
func LoadAList(path string) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAListMalformed, err)
	}
	defer f.Close()
	return ParseAList(f)
}

// ParseAList parses the bit-exact AList format described in spec §6:
//
//	line 1: nrows ncols
//	line 2: max_col_degree max_row_degree
//	line 3: column-degree list (ncols integers)
//	line 4: row-degree list (nrows integers)
//	lines 5..5+ncols-1: 1-indexed row positions per column, zero-padded
//	remaining nrows lines: 1-indexed column positions per row, zero-padded
func ParseAList(r io.Reader) (*Matrix, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	sc.Split(bufio.ScanWords)

	next := func() (int, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return 0, fmt.Errorf("%w: %v", ErrAListMalformed, err)
			}
			return 0, fmt.Errorf("%w: unexpected end of input", ErrAListMalformed)
		}
		v, err := strconv.Atoi(sc.Text())
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrAListMalformed, err)
		}
		return v, nil
	}

	nrows, err := next()
	if err != nil {
		return nil, err
	}
	ncols, err := next()
	if err != nil {
		return nil, err
	}
	if nrows <= 0 || ncols <= 0 || ncols <= nrows {
		return nil, fmt.Errorf("%w: nonsensical dimensions %dx%d", ErrAListMalformed, nrows, ncols)
	}

	maxColDeg, err := next()
	if err != nil {
		return nil, err
	}
	maxRowDeg, err := next()
	if err != nil {
		return nil, err
	}

	colDeg := make([]int, ncols)
	for i := range colDeg {
		if colDeg[i], err = next(); err != nil {
			return nil, err
		}
	}
	rowDeg := make([]int, nrows)
	for i := range rowDeg {
		if rowDeg[i], err = next(); err != nil {
			return nil, err
		}
	}

	colIndices := make([][]int, ncols)
	for c := 0; c < ncols; c++ {
		idx := make([]int, 0, colDeg[c])
		for j := 0; j < maxColDeg; j++ {
			v, err := next()
			if err != nil {
				return nil, err
			}
			if v > 0 {
				idx = append(idx, v-1)
			}
		}
		if len(idx) != colDeg[c] {
			return nil, fmt.Errorf("%w: column %d degree mismatch", ErrAListMalformed, c)
		}
		for _, row := range idx {
			if row < 0 || row >= nrows {
				return nil, fmt.Errorf("%w: column %d row index out of range", ErrAListMalformed, c)
			}
		}
		colIndices[c] = idx
	}

	rowIndices := make([][]int, nrows)
	for r := 0; r < nrows; r++ {
		idx := make([]int, 0, rowDeg[r])
		for j := 0; j < maxRowDeg; j++ {
			v, err := next()
			if err != nil {
				return nil, err
			}
			if v > 0 {
				idx = append(idx, v-1)
			}
		}
		if len(idx) != rowDeg[r] {
			return nil, fmt.Errorf("%w: row %d degree mismatch", ErrAListMalformed, r)
		}
		for _, col := range idx {
			if col < 0 || col >= ncols {
				return nil, fmt.Errorf("%w: row %d column index out of range", ErrAListMalformed, r)
			}
		}
		rowIndices[r] = idx
	}

	return &Matrix{NRows: nrows, NCols: ncols, ColIndices: colIndices, RowIndices: rowIndices}, nil
}

// parityInverse computes (and caches) the inverse of the square parity
// submatrix via Gauss-Jordan elimination over GF(2). Encoding solves
// H·c = 0 for the parity bits given the systematic info bits (spec §4.3):
// H_info·info XOR H_parity·parity = 0, so parity = H_parity^-1 · (H_info·info).
func (m *Matrix) parityInverse() ([][]byte, error) {
	if m.parityInv != nil {
		return m.parityInv, nil
	}
	n := m.NRows
	k := m.InfoLen()

	aug := make([][]byte, n)
	for i := range aug {
		aug[i] = make([]byte, 2*n)
		aug[i][n+i] = 1
	}
	for r := 0; r < n; r++ {
		for _, col := range m.RowIndices[r] {
			if col >= k {
				aug[r][col-k] ^= 1
			}
		}
	}

	row := 0
	for col := 0; col < n && row < n; col++ {
		pivot := -1
		for r := row; r < n; r++ {
			if aug[r][col] == 1 {
				pivot = r
				break
			}
		}
		if pivot == -1 {
			return nil, fmt.Errorf("%w: parity submatrix is singular", ErrAListMalformed)
		}
		aug[row], aug[pivot] = aug[pivot], aug[row]
		for r := 0; r < n; r++ {
			if r != row && aug[r][col] == 1 {
				for c := 0; c < 2*n; c++ {
					aug[r][c] ^= aug[row][c]
				}
			}
		}
		row++
	}
	if row < n {
		return nil, fmt.Errorf("%w: parity submatrix is singular", ErrAListMalformed)
	}

	inv := make([][]byte, n)
	for i := range inv {
		inv[i] = append([]byte(nil), aug[i][n:]...)
	}
	m.parityInv = inv
	return inv, nil
}

// Encode places infoBits at the systematic prefix and solves for the
// parity suffix so that H·c = 0 bit-for-bit. Each bit is a single byte
// holding 0 or 1. Deterministic: same input always yields the same
// codeword.
func (m *Matrix) Encode(infoBits []byte) ([]byte, error) {
	k := m.InfoLen()
	if len(infoBits) != k {
		return nil, fmt.Errorf("%w: got %d want %d", ErrInfoLengthMismatch, len(infoBits), k)
	}
	inv, err := m.parityInverse()
	if err != nil {
		return nil, err
	}

	target := make([]byte, m.NRows)
	for r := 0; r < m.NRows; r++ {
		var s byte
		for _, col := range m.RowIndices[r] {
			if col < k {
				s ^= infoBits[col]
			}
		}
		target[r] = s
	}

	codeword := make([]byte, m.NCols)
	copy(codeword[:k], infoBits)
	for r := 0; r < m.NRows; r++ {
		var p byte
		row := inv[r]
		for c := 0; c < m.NRows; c++ {
			if row[c] == 1 {
				p ^= target[c]
			}
		}
		codeword[k+r] = p
	}
	return codeword, nil
}

// checkFailures returns, for each check node, 1 if its parity equation is
// violated by codeword.
func (m *Matrix) checkFailures(codeword []byte) []byte {
	fails := make([]byte, m.NRows)
	for r := 0; r < m.NRows; r++ {
		var s byte
		for _, col := range m.RowIndices[r] {
			s ^= codeword[col]
		}
		fails[r] = s
	}
	return fails
}

// Syndrome returns the per-check failure vector for codeword: all-zero iff
// H·codeword = 0.
func (m *Matrix) Syndrome(codeword []byte) ([]byte, error) {
	if len(codeword) != m.NCols {
		return nil, fmt.Errorf("%w: got %d want %d", ErrCodewordLengthMismatch, len(codeword), m.NCols)
	}
	return m.checkFailures(codeword), nil
}

func countOnes(b []byte) int {
	n := 0
	for _, v := range b {
		if v != 0 {
			n++
		}
	}
	return n
}

// Result is the outcome of a hard-decision decode (spec §4.3).
type Result struct {
	InfoBits            []byte
	ResidualParityFails int
	Converged           bool
	// DecoderType names the decoding strategy used. Today it is always
	// "hard"; a future sum-product/min-sum soft-decision decoder behind
	// the same interface would report "soft" here, so callers that
	// surface this in status events do not need to change (spec §9).
	DecoderType string
}

// DecodeHard runs the iterative bit-flipping decoder (spec §4.3): at each
// iteration, every variable node is flipped iff strictly more than half of
// its incident check equations fail, with no flip on a tie. Terminates
// early on zero syndrome. maxIters=0 returns the systematic bits unchanged
// with converged = (syndrome == 0).
func (m *Matrix) DecodeHard(received []byte, maxIters int) (Result, error) {
	if len(received) != m.NCols {
		return Result{}, fmt.Errorf("%w: got %d want %d", ErrCodewordLengthMismatch, len(received), m.NCols)
	}
	k := m.InfoLen()
	bits := append([]byte(nil), received...)

	fails := m.checkFailures(bits)
	converged := countOnes(fails) == 0

	for iter := 0; iter < maxIters && !converged; iter++ {
		flips := make([]bool, m.NCols)
		any := false
		for v := 0; v < m.NCols; v++ {
			total := len(m.ColIndices[v])
			if total == 0 {
				continue
			}
			failed := 0
			for _, c := range m.ColIndices[v] {
				if fails[c] != 0 {
					failed++
				}
			}
			if failed*2 > total {
				flips[v] = true
				any = true
			}
		}
		if !any {
			break
		}
		for v, f := range flips {
			if f {
				bits[v] ^= 1
			}
		}
		fails = m.checkFailures(bits)
		converged = countOnes(fails) == 0
	}

	return Result{
		InfoBits:            append([]byte(nil), bits[:k]...),
		ResidualParityFails: countOnes(fails),
		Converged:           converged,
		DecoderType:         "hard",
	}, nil
}
