package linalg

import (
	"fmt"

	"github.com/AdityaSkhorne/SU2/comms"
	"github.com/AdityaSkhorne/SU2/utils"
)

// DirectSolver is the capability interface for an external sparse direct
// factorization backend (the PaStiX role in the original tool chain):
// factorize once, solve many times. The core never branches on the concrete
// type; register an implementation with SetDirectSolver before selecting
// the DIRECT preconditioner.
type DirectSolver[T utils.Float] interface {
	// Factorize ingests the matrix coefficients in block-CSR form.
	Factorize(nVar, nPoint, nPointDomain int, rowPtr, colInd []int, vals []T, transposed bool) error
	// Solve computes prod = A^{-1} vec for owned points.
	Solve(vec, prod []T)
}

func (m *Matrix[T]) SetDirectSolver(s DirectSolver[T]) {
	m.direct = s
}

// BuildDirectPreconditioner delegates factorization to the registered
// backend. Using it without one is a configuration defect, not a runtime
// condition, and is fatal.
func (m *Matrix[T]) BuildDirectPreconditioner(transposed bool) {
	if m.direct == nil {
		panic(fmt.Errorf("not built with external direct solver support, register one with SetDirectSolver"))
	}
	if err := m.direct.Factorize(m.NVar, m.nPoint, m.nPointDomain,
		m.rowPtr, m.colInd, m.vals, transposed); err != nil {
		panic(fmt.Errorf("external direct factorization failed: %w", err))
	}
}

// ComputeDirectPreconditioner solves with the external factorization and
// restores halo consistency, matching the contract of the other
// preconditioners so the outer solver stays agnostic.
func (m *Matrix[T]) ComputeDirectPreconditioner(vec, prod *Vector[T]) {
	if m.direct == nil {
		panic(fmt.Errorf("not built with external direct solver support, register one with SetDirectSolver"))
	}
	m.checkConforming(vec, prod)
	m.direct.Solve(vec.Data, prod.Data)

	m.InitiateComms(prod, comms.Solution)
	m.CompleteComms(prod, comms.Solution)
}
