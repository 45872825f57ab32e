package linalg

import (
	"fmt"

	"github.com/AdityaSkhorne/SU2/comms"
)

// iluBlockIndex locates entry (i,j) in the ILU pattern, -1 when absent.
func (m *Matrix[T]) iluBlockIndex(i, j int) int {
	for index := m.rowPtrILU[i]; index < m.rowPtrILU[i+1]; index++ {
		if m.colIndILU[index] == j {
			return index
		}
	}
	return -1
}

func (m *Matrix[T]) getBlockILU(i, j int) []T {
	index := m.iluBlockIndex(i, j)
	if index < 0 {
		return nil
	}
	sz := m.NVar * m.NEqn
	return m.iluVals[index*sz : (index+1)*sz]
}

func (m *Matrix[T]) setBlockILU(i, j int, block []T) {
	dst := m.getBlockILU(i, j)
	if dst == nil {
		panic(fmt.Errorf("entry (%d,%d) is not in the ILU pattern", i, j))
	}
	copy(dst, block)
}

func (m *Matrix[T]) setBlockTransposedILU(i, j int, block []T) {
	dst := m.getBlockILU(i, j)
	if dst == nil {
		panic(fmt.Errorf("entry (%d,%d) is not in the ILU pattern", i, j))
	}
	transposeBlock(m.NVar, block, dst)
}

func (m *Matrix[T]) inverseDiagonalBlockILU(i int, inv []T) {
	sz := m.NVar * m.NEqn
	d := m.iluVals[m.diaPtrILU[i]*sz : (m.diaPtrILU[i]+1)*sz]
	matrixInverse(m.NVar, d, m.block, inv)
}

// BuildILUPreconditioner factorizes the matrix in place in the ILU buffer:
// for every owned point in increasing order, each sub-diagonal entry (i,j)
// becomes the weight A_ij inv(A_jj), and every upper entry (j,k) of the
// pivot row updates A_ik when (i,k) exists in the ILU pattern. Entries
// outside the pattern are dropped, which is the defining approximation of
// the incomplete factorization. The stored weights are reused as the lower
// factor during the solves, and invM ends up holding the inverses of the
// eliminated diagonal blocks.
func (m *Matrix[T]) BuildILUPreconditioner(transposed bool) {
	if m.iluVals == nil {
		panic(fmt.Errorf("matrix was not initialized for an ILU preconditioner"))
	}
	sz := m.NVar * m.NEqn

	// Move coefficients into the ILU buffer to factorize in place.
	if m.iluFillIn == 0 && !transposed {
		// ILU0, direct copy
		copy(m.iluVals, m.vals)
	} else {
		// ILUn and the transposed variant scatter block-by-block, so the
		// buffer is cleared first: entries coupling to halo columns have no
		// transposed counterpart among the owned rows and must not keep
		// values from a previous build.
		if m.iluFillIn > 0 || transposed {
			for k := range m.iluVals {
				m.iluVals[k] = 0
			}
		}
		for iPoint := 0; iPoint < m.nPointDomain; iPoint++ {
			for index := m.rowPtr[iPoint]; index < m.rowPtr[iPoint+1]; index++ {
				jPoint := m.colInd[index]
				blockIJ := m.vals[index*sz : (index+1)*sz]
				if transposed {
					if jPoint < m.nPointDomain {
						m.setBlockTransposedILU(jPoint, iPoint, blockIJ)
					}
				} else {
					m.setBlockILU(iPoint, jPoint, blockIJ)
				}
			}
		}
	}

	// Transform the system into an upper block matrix
	for iPoint := 1; iPoint < m.nPointDomain; iPoint++ {

		// Invert and store the previous diagonal block to compute weights
		m.inverseDiagonalBlockILU(iPoint-1, m.invM[(iPoint-1)*sz:iPoint*sz])

		for index := m.rowPtrILU[iPoint]; index < m.diaPtrILU[iPoint]; index++ {
			jPoint := m.colIndILU[index]

			// blockWeight = A_ij inv(A_jj)
			blockIJ := m.iluVals[index*sz : (index+1)*sz]
			m.kern.MatMat(m.NVar, blockIJ, m.invM[jPoint*sz:(jPoint+1)*sz], m.blockWeight)

			// Visit the upper part of row jPoint: A_ik -= A_ij inv(A_jj) A_jk
			for index2 := m.diaPtrILU[jPoint] + 1; index2 < m.rowPtrILU[jPoint+1]; index2++ {
				kPoint := m.colIndILU[index2]
				blockIK := m.getBlockILU(iPoint, kPoint)
				if blockIK != nil {
					blockJK := m.iluVals[index2*sz : (index2+1)*sz]
					m.kern.MatMat(m.NVar, m.blockWeight, blockJK, m.block)
					matrixSubtraction(m.NVar, blockIK, m.block, blockIK)
				}
			}

			// Store the weight in the lower triangular slot for the
			// forward substitution of the solve phase.
			copy(blockIJ, m.blockWeight)
		}
	}

	m.inverseDiagonalBlockILU(m.nPointDomain-1, m.invM[(m.nPointDomain-1)*sz:m.nPointDomain*sz])
}

// ComputeILUPreconditioner applies prod = (LU)^{-1} vec: forward substitution
// with the stored weights in increasing point order, backward substitution
// with the upper blocks and cached diagonal inverses in decreasing order,
// then a halo exchange of the result.
func (m *Matrix[T]) ComputeILUPreconditioner(vec, prod *Vector[T]) {
	sz := m.NVar * m.NEqn

	copy(prod.Data[:m.nPointDomain*m.NVar], vec.Data[:m.nPointDomain*m.NVar])

	// Forward solve with the stored lower weights, overwriting prod in place
	for iPoint := 1; iPoint < m.nPointDomain; iPoint++ {
		for index := m.rowPtrILU[iPoint]; index < m.diaPtrILU[iPoint]; index++ {
			jPoint := m.colIndILU[index]
			m.kern.MatVecSub(m.NVar, m.NEqn, m.iluVals[index*sz:(index+1)*sz],
				prod.Block(jPoint), prod.Block(iPoint))
		}
	}

	// Backwards substitution, starting at the last owned row
	for iPoint := m.nPointDomain - 1; iPoint >= 0; iPoint-- {
		copy(m.sumVector, prod.Block(iPoint))
		for index := m.diaPtrILU[iPoint] + 1; index < m.rowPtrILU[iPoint+1]; index++ {
			jPoint := m.colIndILU[index]
			if jPoint < m.nPointDomain {
				m.kern.MatVecSub(m.NVar, m.NEqn, m.iluVals[index*sz:(index+1)*sz],
					prod.Block(jPoint), m.sumVector)
			}
		}
		m.kern.MatVec(m.NVar, m.NVar, m.invM[iPoint*sz:(iPoint+1)*sz],
			m.sumVector, prod.Block(iPoint))
	}

	m.InitiateComms(prod, comms.Solution)
	m.CompleteComms(prod, comms.Solution)
}
