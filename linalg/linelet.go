package linalg

import (
	"fmt"

	"github.com/AdityaSkhorne/SU2/comms"
	"github.com/AdityaSkhorne/SU2/geometry"
)

// lineletAlpha is the anisotropy threshold for growing a chain: a neighbor
// extends the chain only when its face weight exceeds this fraction of the
// strongest candidate weight at the tip.
const lineletAlpha = 0.9

// BuildLineletPreconditioner discovers the quasi-1-D chains of the mesh.
// Chains are seeded at boundary vertices of wall-type markers and grow
// toward the single dominant unvisited neighbor; two or more qualifying
// neighbors mean the tip reached an isotropic zone and the chain stops.
// Discovery depends only on topology and metric, not coefficients, so it
// runs once per mesh. The returned value is the mean chain length across
// all partitions, for diagnostics. A mesh with no qualifying markers yields
// zero chains, and application degrades to plain Jacobi.
func (m *Matrix[T]) BuildLineletPreconditioner(geom geometry.MeshGraph) (meanPoints int) {
	if m.invM == nil {
		panic(fmt.Errorf("matrix was not initialized for a linelet preconditioner"))
	}

	var (
		nPoint = geom.NumPoints()
		check  = make([]bool, nPoint)
	)
	for i := range check {
		check[i] = true
	}
	m.inLinelet = make([]bool, nPoint)
	m.linelets = nil

	// One seed chain per vertex of the wall-type markers
	for _, marker := range geom.Markers() {
		if !marker.Kind.IsLineletSeed() {
			continue
		}
		for _, iPoint := range marker.Points {
			m.linelets = append(m.linelets, []int{iPoint})
			check[iPoint] = false
		}
	}

	weight := func(i, j int) float64 {
		return 0.5 * geom.FaceArea(i, j) * (1.0/geom.Volume(i) + 1.0/geom.Volume(j))
	}

	for iLinelet := range m.linelets {
		indexPoint := 0
		for {
			iPoint := m.linelets[iLinelet][indexPoint]

			// Largest face weight over the unvisited owned neighbors
			maxWeight := 0.0
			for _, jPoint := range geom.Neighbors(iPoint) {
				if check[jPoint] && geom.Owned(jPoint) {
					if w := weight(iPoint, jPoint); w > maxWeight {
						maxWeight = w
					}
				}
			}

			// A neighbor qualifies when it is unvisited, owned, close to
			// the dominant weight, and not the point we came from
			addPoint := false
			counter := 0
			nextPoint := -1
			for _, jPoint := range geom.Neighbors(iPoint) {
				if check[jPoint] && weight(iPoint, jPoint)/maxWeight > lineletAlpha && geom.Owned(jPoint) &&
					(indexPoint == 0 || jPoint != m.linelets[iLinelet][indexPoint-1]) {
					addPoint = true
					nextPoint = jPoint
					counter++
				}
			}

			// More than one candidate: we have arrived at an isotropic zone
			if counter > 1 {
				addPoint = false
			}
			if !addPoint {
				break
			}
			m.linelets[iLinelet] = append(m.linelets[iLinelet], nextPoint)
			check[nextPoint] = false
			indexPoint++
		}
	}

	maxNElem := 0
	localPoints := 0
	for _, chain := range m.linelets {
		for _, iPoint := range chain {
			m.inLinelet[iPoint] = true
		}
		if len(chain) > maxNElem {
			maxNElem = len(chain)
		}
		localPoints += len(chain)
	}

	// Mean chain length is a global diagnostic across all partitions
	globalPoints := float64(localPoints)
	globalChains := float64(len(m.linelets))
	if m.comm != nil {
		globalPoints = m.comm.World().AllreduceSum(globalPoints)
		globalChains = m.comm.World().AllreduceSum(globalChains)
	}
	if globalChains > 0 {
		meanPoints = int(globalPoints / globalChains)
	}

	sz := m.NVar * m.NVar
	m.llUpper = make([][]T, maxNElem)
	m.llInvDiag = make([]T, maxNElem*sz)
	m.llVector = make([]T, maxNElem*m.NVar)
	return
}

// ComputeLineletPreconditioner solves each chain exactly as a block
// tridiagonal system via the Thomas algorithm and falls back to the cached
// Jacobi inverses everywhere else, so BuildJacobiPreconditioner must have
// run after the last coefficient change.
func (m *Matrix[T]) ComputeLineletPreconditioner(vec, prod *Vector[T]) {
	m.checkConforming(vec, prod)
	var (
		sz   = m.NVar * m.NVar
		nVar = m.NVar
	)

	// Jacobi preconditioning where there is no linelet
	for iPoint := 0; iPoint < m.nPointDomain; iPoint++ {
		if !m.inLinelet[iPoint] {
			m.kern.MatVec(nVar, nVar, m.invM[iPoint*sz:(iPoint+1)*sz],
				vec.Block(iPoint), prod.Block(iPoint))
		}
	}

	m.InitiateComms(prod, comms.Solution)
	m.CompleteComms(prod, comms.Solution)

	// Solve each chain with the Thomas algorithm
	for _, chain := range m.linelets {
		nElem := len(chain)

		for iElem, iPoint := range chain {
			copy(m.llVector[iElem*nVar:(iElem+1)*nVar], vec.Block(iPoint))
		}

		// Forward pass: eliminate lower entries, modifying diagonals and rhs
		d := m.GetBlock(chain[0], chain[0])
		copy(m.llInvDiag[:sz], d)

		for iElem := 1; iElem < nElem; iElem++ {
			var (
				im1Point = chain[iElem-1]
				iPoint   = chain[iElem]

				l = m.GetBlock(iPoint, im1Point)
				u = m.GetBlock(im1Point, iPoint)

				invDm1 = m.llInvDiag[(iElem-1)*sz : iElem*sz]
				dPrime = m.llInvDiag[iElem*sz : (iElem+1)*sz]
				bPrime = m.llVector[iElem*nVar : (iElem+1)*nVar]
			)
			d = m.GetBlock(iPoint, iPoint)

			// Invert the previous modified diagonal in place
			matrixInverse(nVar, invDm1, m.block, invDm1)

			// weight = l inv(d'_{k-1}); d'_k = d_k - weight u_{k-1}
			m.kern.MatMat(nVar, l, invDm1, m.blockWeight)
			m.kern.MatMat(nVar, m.blockWeight, u, dPrime)
			matrixSubtraction(nVar, d, dPrime, dPrime)

			// b'_k = b_k - weight b'_{k-1}
			m.kern.MatVec(nVar, nVar, m.blockWeight,
				m.llVector[(iElem-1)*nVar:iElem*nVar], m.auxVector)
			vectorSubtraction(nVar, bPrime, m.auxVector, bPrime)

			// Cache the upper block for the backward substitution phase
			m.llUpper[iElem-1] = u
		}

		// Backward pass, llVector becomes the solution: x_n = inv(d'_n) b'_n
		gaussianEliminate(nVar, m.llInvDiag[(nElem-1)*sz:nElem*sz],
			m.llVector[(nElem-1)*nVar:nElem*nVar])

		// x_k = inv(d'_k) (b'_k - u_k x_{k+1})
		for iElem := nElem - 1; iElem > 0; iElem-- {
			invDm1 := m.llInvDiag[(iElem-1)*sz : iElem*sz]
			m.kern.MatVec(nVar, nVar, m.llUpper[iElem-1],
				m.llVector[iElem*nVar:(iElem+1)*nVar], m.auxVector)
			vectorSubtraction(nVar, m.llVector[(iElem-1)*nVar:iElem*nVar],
				m.auxVector, m.auxVector)
			m.kern.MatVec(nVar, nVar, invDm1, m.auxVector,
				m.llVector[(iElem-1)*nVar:iElem*nVar])
		}

		for iElem, iPoint := range chain {
			copy(prod.Block(iPoint), m.llVector[iElem*nVar:(iElem+1)*nVar])
		}
	}

	m.InitiateComms(prod, comms.Solution)
	m.CompleteComms(prod, comms.Solution)
}
