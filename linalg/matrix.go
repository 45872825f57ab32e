package linalg

import (
	"fmt"

	"github.com/AdityaSkhorne/SU2/comms"
	"github.com/AdityaSkhorne/SU2/config"
	"github.com/AdityaSkhorne/SU2/geometry"
	"github.com/AdityaSkhorne/SU2/utils"
)

// Matrix is a block-CSR sparse matrix: one dense NVar x NEqn block per
// nonzero of the mesh sparsity pattern, blocks stored row-major in a single
// contiguous buffer ordered like the column-index array. The pattern arrays
// are referenced from the mesh, not copied; a second, independently sized
// pattern and buffer hold the ILU factorization when one is requested.
type Matrix[T utils.Float] struct {
	NVar, NEqn           int
	nPoint, nPointDomain int

	nnz            int
	rowPtr, colInd []int
	diaPtr         []int
	vals           []T

	iluFillIn            int
	nnzILU               int
	rowPtrILU, colIndILU []int
	diaPtrILU            []int
	iluVals              []T

	// invM caches inverse diagonal blocks, shared by the Jacobi, ILU and
	// linelet preconditioners.
	invM []T

	// Per-instance scratch blocks and row vectors, sized NVar.
	block, blockWeight                  []T
	auxVector, sumVector, prodRowVector []T

	kern   denseKernels[T]
	comm   *comms.Partition[T]
	direct DirectSolver[T]

	// Linelet state, filled once by BuildLineletPreconditioner.
	linelets  [][]int
	inLinelet []bool
	llInvDiag []T
	llVector  []T
	llUpper   [][]T

	initialized bool
}

// Initialize performs the one-time setup: pattern lookup, buffer allocation
// and kernel selection. A second call on the same instance is fatal. comm
// may be nil for a single-partition run, in which case the halo exchanges
// become no-ops.
func (m *Matrix[T]) Initialize(nPoint, nPointDomain, nVar, nEqn int,
	edgeConnect bool, geom geometry.MeshGraph, cfg *config.Parameters,
	comm *comms.Partition[T]) {

	if m.initialized {
		panic(fmt.Errorf("matrix can only be initialized once"))
	}
	m.initialized = true

	// Application of this matrix, FVM or FEM
	conn := geometry.FiniteElement
	if edgeConnect {
		conn = geometry.FiniteVolume
	}

	var (
		prec      = cfg.Precond()
		iluNeeded = prec == config.ILU
		invNeeded = iluNeeded || prec == config.Jacobi || prec == config.Linelet
	)

	m.NVar, m.NEqn = nVar, nEqn
	m.nPoint, m.nPointDomain = nPoint, nPointDomain
	m.kern = newKernels[T](cfg.BLASKernels)
	m.comm = comm

	// The pattern data is owned by the mesh to allow re-use across matrices.
	csr := geom.SparsePattern(conn, 0)
	m.rowPtr, m.colInd, m.diaPtr = csr.RowPtr, csr.ColInd, csr.DiaPtr
	m.nnz = csr.Nnz()

	if iluNeeded {
		m.iluFillIn = cfg.ILUFillIn
		csrILU := geom.SparsePattern(conn, m.iluFillIn)
		m.rowPtrILU, m.colIndILU, m.diaPtrILU = csrILU.RowPtr, csrILU.ColInd, csrILU.DiaPtr
		m.nnzILU = csrILU.Nnz()
		m.iluVals = make([]T, m.nnzILU*nVar*nEqn)
	}

	m.vals = make([]T, m.nnz*nVar*nEqn)

	m.block = make([]T, nVar*nEqn)
	m.blockWeight = make([]T, nVar*nEqn)
	m.auxVector = make([]T, nVar)
	m.sumVector = make([]T, nVar)
	m.prodRowVector = make([]T, nVar)

	if invNeeded {
		m.invM = make([]T, nPointDomain*nVar*nEqn)
	}
}

func (m *Matrix[T]) NumPoints() int      { return m.nPoint }
func (m *Matrix[T]) NumOwnedPoints() int { return m.nPointDomain }

func (m *Matrix[T]) SetValZero() {
	utils.ZeroSlice(m.vals)
}

// blockIndex locates the nonzero index of entry (i,j) in the primary
// pattern, -1 when the entry does not exist.
func (m *Matrix[T]) blockIndex(i, j int) int {
	for index := m.rowPtr[i]; index < m.rowPtr[i+1]; index++ {
		if m.colInd[index] == j {
			return index
		}
	}
	return -1
}

// GetBlock returns the mutable block at (i,j), nil when the entry is not in
// the pattern.
func (m *Matrix[T]) GetBlock(i, j int) []T {
	index := m.blockIndex(i, j)
	if index < 0 {
		return nil
	}
	sz := m.NVar * m.NEqn
	return m.vals[index*sz : (index+1)*sz]
}

func (m *Matrix[T]) SetBlock(i, j int, block []T) {
	dst := m.GetBlock(i, j)
	if dst == nil {
		panic(fmt.Errorf("entry (%d,%d) is not in the sparsity pattern", i, j))
	}
	copy(dst, block)
}

func (m *Matrix[T]) AddBlock(i, j int, block []T) {
	dst := m.GetBlock(i, j)
	if dst == nil {
		panic(fmt.Errorf("entry (%d,%d) is not in the sparsity pattern", i, j))
	}
	for k, v := range block {
		dst[k] += v
	}
}

func (m *Matrix[T]) SubtractBlock(i, j int, block []T) {
	dst := m.GetBlock(i, j)
	if dst == nil {
		panic(fmt.Errorf("entry (%d,%d) is not in the sparsity pattern", i, j))
	}
	for k, v := range block {
		dst[k] -= v
	}
}

// AddVal2Diag adds val to every diagonal scalar of point i's diagonal block,
// the usual way a time-step term enters the Jacobian.
func (m *Matrix[T]) AddVal2Diag(i int, val T) {
	sz := m.NVar * m.NEqn
	blk := m.vals[m.diaPtr[i]*sz : (m.diaPtr[i]+1)*sz]
	for v := 0; v < m.NVar; v++ {
		blk[v*m.NEqn+v] += val
	}
}

// InverseDiagonalBlock inverts the diagonal block of point i into inv,
// transposing it first when transpose is set.
func (m *Matrix[T]) InverseDiagonalBlock(i int, inv []T, transpose bool) {
	sz := m.NVar * m.NEqn
	d := m.vals[m.diaPtr[i]*sz : (m.diaPtr[i]+1)*sz]
	if transpose {
		transposeBlock(m.NVar, d, m.blockWeight)
		d = m.blockWeight
	}
	matrixInverse(m.NVar, d, m.block, inv)
}

// InitiateComms begins a halo exchange round for vec. On a single partition
// (nil comm) the call is a no-op.
func (m *Matrix[T]) InitiateComms(vec *Vector[T], kind comms.Kind) {
	if m.comm != nil {
		m.comm.Initiate(vec.Data, m.NVar, kind)
	}
}

func (m *Matrix[T]) CompleteComms(vec *Vector[T], kind comms.Kind) {
	if m.comm != nil {
		m.comm.Complete(vec.Data, m.NVar, kind)
	}
}

func (m *Matrix[T]) checkConforming(vec, prod *Vector[T]) {
	if m.NVar != vec.NVar || m.NVar != prod.NVar {
		panic(fmt.Errorf("nVar values incompatible: matrix %d, vec %d, prod %d",
			m.NVar, vec.NVar, prod.NVar))
	}
	if m.nPoint != vec.NPoint || m.nPoint != prod.NPoint {
		panic(fmt.Errorf("nPoint values incompatible: matrix %d, vec %d, prod %d",
			m.nPoint, vec.NPoint, prod.NPoint))
	}
}

// MatrixVectorProduct computes prod = A vec over the owned rows, then
// exchanges halo values so ghost entries of prod reflect neighbor-computed
// results.
func (m *Matrix[T]) MatrixVectorProduct(vec, prod *Vector[T]) {
	m.checkConforming(vec, prod)

	sz := m.NVar * m.NEqn
	prod.SetValZero()
	for rowI := 0; rowI < m.nPointDomain; rowI++ {
		prodBegin := rowI * m.NVar
		for index := m.rowPtr[rowI]; index < m.rowPtr[rowI+1]; index++ {
			vecBegin := m.colInd[index] * m.NVar
			m.kern.MatVecAdd(m.NVar, m.NEqn, m.vals[index*sz:(index+1)*sz],
				vec.Data[vecBegin:vecBegin+m.NEqn], prod.Data[prodBegin:prodBegin+m.NVar])
		}
	}

	m.InitiateComms(prod, comms.Solution)
	m.CompleteComms(prod, comms.Solution)
}

// MatrixVectorProductTransposed computes prod = A^T vec by scattering each
// block's transposed contribution into the column point's slot. Partial sums
// landing on halo points travel back to their owners in the reverse
// exchange, which accumulates instead of overwriting.
func (m *Matrix[T]) MatrixVectorProductTransposed(vec, prod *Vector[T]) {
	m.checkConforming(vec, prod)

	sz := m.NVar * m.NEqn
	prod.SetValZero()
	for rowI := 0; rowI < m.nPointDomain; rowI++ {
		vecBegin := rowI * m.NVar
		for index := m.rowPtr[rowI]; index < m.rowPtr[rowI+1]; index++ {
			prodBegin := m.colInd[index] * m.NVar
			m.kern.MatVecTransAdd(m.NVar, m.NEqn, m.vals[index*sz:(index+1)*sz],
				vec.Data[vecBegin:vecBegin+m.NVar], prod.Data[prodBegin:prodBegin+m.NEqn])
		}
	}

	m.InitiateComms(prod, comms.SolutionReverse)
	m.CompleteComms(prod, comms.SolutionReverse)
}

// RowProduct leaves A[rowI] . vec in the scratch row vector.
func (m *Matrix[T]) RowProduct(vec *Vector[T], rowI int) {
	sz := m.NVar * m.NEqn
	utils.ZeroSlice(m.prodRowVector)
	for index := m.rowPtr[rowI]; index < m.rowPtr[rowI+1]; index++ {
		colJ := m.colInd[index]
		m.kern.MatVecAdd(m.NVar, m.NEqn, m.vals[index*sz:(index+1)*sz],
			vec.Block(colJ), m.prodRowVector)
	}
}

// LowerProduct accumulates the strictly lower part of row rowI times vec.
func (m *Matrix[T]) LowerProduct(vec *Vector[T], rowI int) {
	sz := m.NVar * m.NEqn
	utils.ZeroSlice(m.prodRowVector)
	for index := m.rowPtr[rowI]; index < m.diaPtr[rowI]; index++ {
		colJ := m.colInd[index]
		m.kern.MatVecAdd(m.NVar, m.NEqn, m.vals[index*sz:(index+1)*sz],
			vec.Block(colJ), m.prodRowVector)
	}
}

// UpperProduct accumulates the strictly upper part of row rowI times vec.
func (m *Matrix[T]) UpperProduct(vec *Vector[T], rowI int) {
	sz := m.NVar * m.NEqn
	utils.ZeroSlice(m.prodRowVector)
	for index := m.diaPtr[rowI] + 1; index < m.rowPtr[rowI+1]; index++ {
		colJ := m.colInd[index]
		m.kern.MatVecAdd(m.NVar, m.NEqn, m.vals[index*sz:(index+1)*sz],
			vec.Block(colJ), m.prodRowVector)
	}
}

// DiagonalProduct computes the diagonal block of rowI times vec.
func (m *Matrix[T]) DiagonalProduct(vec *Vector[T], rowI int) {
	sz := m.NVar * m.NEqn
	index := m.diaPtr[rowI]
	m.kern.MatVec(m.NVar, m.NEqn, m.vals[index*sz:(index+1)*sz],
		vec.Block(rowI), m.prodRowVector)
}

// ComputeResidual computes res = A sol - f over the owned points.
func (m *Matrix[T]) ComputeResidual(sol, f, res *Vector[T]) {
	for iPoint := 0; iPoint < m.nPointDomain; iPoint++ {
		m.RowProduct(sol, iPoint)
		vectorSubtraction(m.NVar, m.prodRowVector, f.Block(iPoint), res.Block(iPoint))
	}
}

// DeleteRowAndSetIdentity zeroes scalar row i of the matrix (i indexes the
// flattened nPoint*nVar system) and puts a one on its diagonal, leaving the
// equation "x_i = rhs_i".
func (m *Matrix[T]) DeleteRowAndSetIdentity(i int) {
	var (
		sz     = m.NVar * m.NEqn
		blockI = i / m.NVar
		row    = i - blockI*m.NVar
	)
	for index := m.rowPtr[blockI]; index < m.rowPtr[blockI+1]; index++ {
		for iVar := 0; iVar < m.NVar; iVar++ {
			m.vals[index*sz+row*m.NEqn+iVar] = 0
		}
		if m.colInd[index] == blockI {
			m.vals[index*sz+row*m.NEqn+row] = 1
		}
	}
}

// EnforceDirichletAtPoint eliminates both the row and the column of point
// node to impose the known value x at it while preserving any symmetry the
// matrix had. The removed column's effect is folded into b, and the
// diagonal block becomes the identity with b[node] = x.
func (m *Matrix[T]) EnforceDirichletAtPoint(node int, x []T, b *Vector[T]) {
	sz := m.NVar * m.NEqn

	// Delete the whole block row first
	for k := m.rowPtr[node] * sz; k < m.rowPtr[node+1]*sz; k++ {
		m.vals[k] = 0
	}

	// Update b with the column product and delete the column
	for iPoint := 0; iPoint < m.nPoint; iPoint++ {
		if iPoint >= len(m.rowPtr)-1 {
			break // halo points have no rows of their own
		}
		for index := m.rowPtr[iPoint]; index < m.rowPtr[iPoint+1]; index++ {
			if m.colInd[index] != node {
				continue
			}
			matBegin := index * sz
			for iVar := 0; iVar < m.NVar; iVar++ {
				for jVar := 0; jVar < m.NVar; jVar++ {
					b.Data[iPoint*m.NVar+iVar] -= m.vals[matBegin+iVar*m.NEqn+jVar] * x[jVar]
				}
			}
			if iPoint == node {
				for iVar := 0; iVar < m.NVar; iVar++ {
					m.vals[matBegin+iVar*(m.NEqn+1)] = 1
				}
			} else {
				for k := 0; k < sz; k++ {
					m.vals[matBegin+k] = 0
				}
			}
		}
	}

	// Set the known solution in the rhs vector
	copy(b.Block(node), x)
}

// gaussEliminateDiagonal solves D_i y = y in place using a scratch copy of
// point i's diagonal block.
func (m *Matrix[T]) gaussEliminateDiagonal(i int, y []T) {
	sz := m.NVar * m.NEqn
	copy(m.block, m.vals[m.diaPtr[i]*sz:(m.diaPtr[i]+1)*sz])
	gaussianEliminate(m.NVar, m.block, y)
}
