package linalg

import (
	"fmt"

	"github.com/AdityaSkhorne/SU2/comms"
)

// BuildJacobiPreconditioner computes and caches the inverse of every owned
// diagonal block (M = D). With transpose set the transposed blocks are
// inverted, for the adjoint formulation.
func (m *Matrix[T]) BuildJacobiPreconditioner(transpose bool) {
	if m.invM == nil {
		panic(fmt.Errorf("matrix was not initialized for a Jacobi-family preconditioner"))
	}
	sz := m.NVar * m.NVar
	for iPoint := 0; iPoint < m.nPointDomain; iPoint++ {
		m.InverseDiagonalBlock(iPoint, m.invM[iPoint*sz:(iPoint+1)*sz], transpose)
	}
}

// ComputeJacobiPreconditioner applies prod = D^{-1} vec using the cached
// inverses, then restores halo consistency of prod.
func (m *Matrix[T]) ComputeJacobiPreconditioner(vec, prod *Vector[T]) {
	sz := m.NVar * m.NVar
	for iPoint := 0; iPoint < m.nPointDomain; iPoint++ {
		m.kern.MatVec(m.NVar, m.NVar, m.invM[iPoint*sz:(iPoint+1)*sz],
			vec.Block(iPoint), prod.Block(iPoint))
	}

	m.InitiateComms(prod, comms.Solution)
	m.CompleteComms(prod, comms.Solution)
}
