package linalg

import "github.com/AdityaSkhorne/SU2/comms"

// ComputeLUSGSPreconditioner runs one symmetric Gauss-Seidel sweep,
// prod = (D+U)^{-1} D (D+L)^{-1} vec, factoring each diagonal block on the
// fly, so it needs no build phase and no invM cache.
func (m *Matrix[T]) ComputeLUSGSPreconditioner(vec, prod *Vector[T]) {
	m.checkConforming(vec, prod)

	// First part of the symmetric iteration: (D+L) x* = b
	for iPoint := 0; iPoint < m.nPointDomain; iPoint++ {
		m.LowerProduct(prod, iPoint) // L x*
		vectorSubtraction(m.NVar, vec.Block(iPoint), m.prodRowVector, prod.Block(iPoint))
		m.gaussEliminateDiagonal(iPoint, prod.Block(iPoint)) // solve D x* = b - L x*
	}

	m.InitiateComms(prod, comms.Solution)
	m.CompleteComms(prod, comms.Solution)

	// Second part of the symmetric iteration: (D+U) x_(n+1) = D x*
	for iPoint := m.nPointDomain - 1; iPoint >= 0; iPoint-- {
		m.DiagonalProduct(prod, iPoint) // D x*
		copy(m.auxVector, m.prodRowVector)
		m.UpperProduct(prod, iPoint) // U x_(n+1)
		vectorSubtraction(m.NVar, m.auxVector, m.prodRowVector, prod.Block(iPoint))
		m.gaussEliminateDiagonal(iPoint, prod.Block(iPoint)) // solve D x = D x* - U x
	}

	m.InitiateComms(prod, comms.Solution)
	m.CompleteComms(prod, comms.Solution)
}
