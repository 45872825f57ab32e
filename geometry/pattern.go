package geometry

import (
	"fmt"
	"sort"

	"github.com/james-bowman/sparse"
)

// Connectivity selects which mesh relation generates the sparsity pattern:
// point-to-point edge adjacency for finite volume, element node coupling for
// finite element. For graph-backed meshes both reduce to the point adjacency.
type Connectivity uint8

const (
	FiniteVolume Connectivity = iota
	FiniteElement
)

// Pattern is a block-CSR sparsity pattern. Rows cover locally owned points
// only; column indices may reference halo points beyond NRows. Within each
// row the column indices are sorted ascending, which the factorization
// algorithms rely on to separate lower and upper entries around DiaPtr.
type Pattern struct {
	NRows  int
	RowPtr []int // length NRows+1
	ColInd []int // length Nnz, sorted within each row
	DiaPtr []int // length NRows, index of the diagonal entry of each row
}

func (p *Pattern) Nnz() int {
	return p.RowPtr[p.NRows]
}

// NewPattern assembles a pattern from per-row adjacency. The diagonal entry
// is inserted whether or not adj reports it. nCols >= nRows; columns in
// [nRows,nCols) are halo points.
func NewPattern(nRows, nCols int, adj func(i int) []int) *Pattern {
	dok := sparse.NewDOK(nRows, nCols)
	for i := 0; i < nRows; i++ {
		dok.Set(i, i, 1)
		for _, j := range adj(i) {
			if j < 0 || j >= nCols {
				panic(fmt.Errorf("adjacency of point %d references %d, out of range [0,%d)", i, j, nCols))
			}
			dok.Set(i, j, 1)
		}
	}
	csr := dok.ToCSR()
	raw := csr.RawMatrix()

	p := &Pattern{
		NRows:  nRows,
		RowPtr: make([]int, nRows+1),
		ColInd: make([]int, len(raw.Ind)),
		DiaPtr: make([]int, nRows),
	}
	copy(p.RowPtr, raw.Indptr)
	copy(p.ColInd, raw.Ind)
	p.sortRowsAndIndexDiagonal()
	return p
}

func (p *Pattern) sortRowsAndIndexDiagonal() {
	for i := 0; i < p.NRows; i++ {
		row := p.ColInd[p.RowPtr[i]:p.RowPtr[i+1]]
		sort.Ints(row)
		dia := -1
		for k, col := range row {
			if col == i {
				dia = p.RowPtr[i] + k
				break
			}
		}
		if dia < 0 {
			panic(fmt.Errorf("pattern row %d has no diagonal entry", i))
		}
		p.DiaPtr[i] = dia
	}
}

// WithFill returns the pattern expanded with ILU(level) symbolic fill: a new
// entry (i,j) created while eliminating row i with pivot row k gets level
// lev(i,k)+lev(k,j)+1 and is kept when that does not exceed level. Original
// entries have level zero, so level 0 returns the receiver unchanged.
func (p *Pattern) WithFill(level int) *Pattern {
	if level <= 0 {
		return p
	}
	var (
		nr      = p.NRows
		rowCols = make([][]int, nr) // finalized columns per row, sorted
		rowLevs = make([][]int, nr)
	)
	for i := 0; i < nr; i++ {
		lev := make(map[int]int)
		for idx := p.RowPtr[i]; idx < p.RowPtr[i+1]; idx++ {
			lev[p.ColInd[idx]] = 0
		}

		// Eliminate pivots k < i in ascending order. Fill created at a
		// column below i becomes a pivot itself, so re-scan until no
		// unprocessed pivot remains.
		done := make(map[int]bool)
		for {
			k := -1
			for col := range lev {
				if col < i && !done[col] && (k == -1 || col < k) {
					k = col
				}
			}
			if k == -1 {
				break
			}
			done[k] = true
			lik := lev[k]
			for kk, j := range rowCols[k] {
				if j <= k {
					continue
				}
				l := lik + rowLevs[k][kk] + 1
				if have, ok := lev[j]; ok {
					if l < have {
						lev[j] = l
					}
				} else if l <= level {
					lev[j] = l
				}
			}
		}

		cols := make([]int, 0, len(lev))
		for col := range lev {
			cols = append(cols, col)
		}
		sort.Ints(cols)
		levs := make([]int, len(cols))
		for k, col := range cols {
			levs[k] = lev[col]
		}
		rowCols[i], rowLevs[i] = cols, levs
	}

	out := &Pattern{
		NRows:  nr,
		RowPtr: make([]int, nr+1),
		DiaPtr: make([]int, nr),
	}
	for i := 0; i < nr; i++ {
		out.RowPtr[i+1] = out.RowPtr[i] + len(rowCols[i])
	}
	out.ColInd = make([]int, out.RowPtr[nr])
	for i := 0; i < nr; i++ {
		copy(out.ColInd[out.RowPtr[i]:], rowCols[i])
	}
	out.sortRowsAndIndexDiagonal()
	return out
}
