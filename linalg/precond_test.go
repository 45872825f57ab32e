package linalg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/AdityaSkhorne/SU2/geometry"
	"github.com/AdityaSkhorne/SU2/utils"
)

// denseSolve is the oracle: x = A^{-1} b over the flattened system.
func denseSolve(a *mat.Dense, b []float64) []float64 {
	var x mat.VecDense
	if err := x.SolveVec(a, mat.NewVecDense(len(b), b)); err != nil {
		panic(err)
	}
	return x.RawVector().Data
}

func TestJacobiPreconditioner(t *testing.T) {
	// Single point with a scaled identity block: the application is b/5
	{
		var (
			mesh = geometry.NewGraph(1, 1)
			m    Matrix[float64]
			b    = NewVector[float64](1, 1, 3, 0)
			z    = NewVector[float64](1, 1, 3, 0)
		)
		m.Initialize(1, 1, 3, 3, true, mesh, testParams("JACOBI"), nil)
		m.SetBlock(0, 0, []float64{5, 0, 0, 0, 5, 0, 0, 0, 5})
		copy(b.Data, []float64{1, 2, 3})
		m.BuildJacobiPreconditioner(false)
		m.ComputeJacobiPreconditioner(b, z)
		assert.True(t, nearVec([]float64{0.2, 0.4, 0.6}, z.Data, 1.e-14))
	}
	// On a block-diagonal matrix Jacobi is an exact solve
	{
		var (
			n, nVar = 4, 2
			mesh    = geometry.NewGraph(n, n) // no edges: diagonal pattern
			m       Matrix[float64]
		)
		m.Initialize(n, n, nVar, nVar, true, mesh, testParams("JACOBI"), nil)
		for i := 0; i < n; i++ {
			m.SetBlock(i, i, []float64{4, 1, -1, float64(3 + i)})
		}
		m.BuildJacobiPreconditioner(false)

		var (
			b = NewVector[float64](n, n, nVar, 1)
			z = NewVector[float64](n, n, nVar, 0)
		)
		m.ComputeJacobiPreconditioner(b, z)
		want := denseSolve(toDense(&m), b.Data)
		assert.True(t, nearVec(want, z.Data, 1.e-13))
	}
	// Transposed build inverts the transposed blocks
	{
		var (
			mesh = geometry.NewGraph(2, 2)
			m    Matrix[float64]
		)
		m.Initialize(2, 2, 2, 2, true, mesh, testParams("JACOBI"), nil)
		m.SetBlock(0, 0, []float64{2, 1, 0, 3})
		m.SetBlock(1, 1, []float64{1, -1, 2, 5})
		m.BuildJacobiPreconditioner(true)

		var (
			b = NewVector[float64](2, 2, 2, 1)
			z = NewVector[float64](2, 2, 2, 0)
		)
		m.ComputeJacobiPreconditioner(b, z)
		var dt mat.Dense
		dt.CloneFrom(toDense(&m).T())
		assert.True(t, nearVec(denseSolve(&dt, b.Data), z.Data, 1.e-13))
	}
	// On a coupled matrix one application is not the solve
	{
		m, _ := lineMatrix(5, 1, "JACOBI")
		m.BuildJacobiPreconditioner(false)
		var (
			b = NewVector[float64](5, 5, 1, 1)
			z = NewVector[float64](5, 5, 1, 0)
			r = NewVector[float64](5, 5, 1, 0)
		)
		m.ComputeJacobiPreconditioner(b, z)
		m.ComputeResidual(z, b, r)
		assert.True(t, r.Norm() > 1.e-3)
		assert.True(t, r.Norm() < b.Norm()) // but it does contract
	}
}

func TestILUPreconditioner(t *testing.T) {
	// ILU(0) of a block tridiagonal matrix is its complete factorization,
	// so the application is an exact solve
	{
		var (
			n, nVar = 8, 2
			m, _    = lineMatrix(n, nVar, "ILU")
			b       = NewVector[float64](n, n, nVar, 0)
			z       = NewVector[float64](n, n, nVar, 0)
		)
		for i := range b.Data {
			b.Data[i] = math.Cos(float64(i))
		}
		m.BuildILUPreconditioner(false)
		m.ComputeILUPreconditioner(b, z)
		assert.True(t, nearVec(denseSolve(toDense(m), b.Data), z.Data, 1.e-11))
	}
	// The transposed build solves with A^T
	{
		var (
			n    = 6
			mesh = geometry.NewLineMesh(n, nil, utils.BCHeatFlux, false)
			m    Matrix[float64]
		)
		m.Initialize(n, n, 1, 1, true, mesh, testParams("ILU"), nil)
		for i := 0; i < n; i++ {
			m.SetBlock(i, i, []float64{4})
			if i > 0 {
				m.SetBlock(i, i-1, []float64{-1.5}) // nonsymmetric couplings
			}
			if i+1 < n {
				m.SetBlock(i, i+1, []float64{-0.5})
			}
		}
		var (
			b = NewVector[float64](n, n, 1, 1)
			z = NewVector[float64](n, n, 1, 0)
		)
		m.BuildILUPreconditioner(true)
		m.ComputeILUPreconditioner(b, z)
		var dt mat.Dense
		dt.CloneFrom(toDense(&m).T())
		assert.True(t, nearVec(denseSolve(&dt, b.Data), z.Data, 1.e-11))
	}
	// On a 2-D mesh ILU(0) is approximate; added fill tightens it
	{
		res := func(fill int) float64 {
			var (
				mesh = geometry.NewBoxMesh(5, 5, 1.4)
				ip   = testParams("ILU")
				m    Matrix[float64]
			)
			ip.ILUFillIn = fill
			m.Initialize(25, 25, 1, 1, true, mesh, ip, nil)
			assembleAnisotropic(&m, mesh)
			var (
				b = NewVector[float64](25, 25, 1, 1)
				z = NewVector[float64](25, 25, 1, 0)
				r = NewVector[float64](25, 25, 1, 0)
			)
			m.BuildILUPreconditioner(false)
			m.ComputeILUPreconditioner(b, z)
			m.ComputeResidual(z, b, r)
			return r.Norm()
		}
		var (
			r0 = res(0)
			r1 = res(1)
			r3 = res(3)
		)
		assert.True(t, r0 > 1.e-10) // genuinely incomplete
		assert.True(t, r1 < r0)
		assert.True(t, r3 < r1)
	}
	// Rebuilding after a coefficient change gives the new factorization
	{
		var (
			n    = 4
			m, _ = lineMatrix(n, 1, "ILU")
			b    = NewVector[float64](n, n, 1, 1)
			z    = NewVector[float64](n, n, 1, 0)
		)
		m.BuildILUPreconditioner(false)
		m.ComputeILUPreconditioner(b, z)

		m.AddVal2Diag(2, 10)
		m.BuildILUPreconditioner(false)
		m.ComputeILUPreconditioner(b, z)
		assert.True(t, nearVec(denseSolve(toDense(m), b.Data), z.Data, 1.e-11))
	}
}

func TestLUSGSPreconditioner(t *testing.T) {
	// Exact on a block lower triangular matrix (empty upper part)
	{
		var (
			n, nVar = 5, 2
			m, _    = lineMatrix(n, nVar, "LU_SGS")
			zero    = make([]float64, nVar*nVar)
		)
		for i := 0; i+1 < n; i++ {
			m.SetBlock(i, i+1, zero)
		}
		var (
			b = NewVector[float64](n, n, nVar, 1)
			z = NewVector[float64](n, n, nVar, 0)
		)
		m.ComputeLUSGSPreconditioner(b, z)
		assert.True(t, nearVec(denseSolve(toDense(m), b.Data), z.Data, 1.e-12))
	}
	// One symmetric sweep contracts the residual on a diffusion operator
	{
		var (
			n, nVar = 10, 1
			m, _    = lineMatrix(n, nVar, "LU_SGS")
			b       = NewVector[float64](n, n, nVar, 1)
			z       = NewVector[float64](n, n, nVar, 0)
			r       = NewVector[float64](n, n, nVar, 0)
		)
		m.ComputeLUSGSPreconditioner(b, z)
		m.ComputeResidual(z, b, r)
		assert.True(t, r.Norm() < 0.5*b.Norm())
	}
}

func TestLineletPreconditioner(t *testing.T) {
	// A uniform line seeded at one end grows a single chain spanning the
	// whole mesh, so the Thomas solve is exact
	{
		var (
			n, nVar = 7, 2
			m, mesh = lineMatrix(n, nVar, "LINELET")
			b       = NewVector[float64](n, n, nVar, 0)
			z       = NewVector[float64](n, n, nVar, 0)
		)
		for i := range b.Data {
			b.Data[i] = math.Sin(float64(i) + 0.5)
		}
		m.BuildJacobiPreconditioner(false)
		meanPoints := m.BuildLineletPreconditioner(mesh)
		assert.Equal(t, n, meanPoints) // one chain of n points

		m.ComputeLineletPreconditioner(b, z)
		assert.True(t, nearVec(denseSolve(toDense(m), b.Data), z.Data, 1.e-11))
	}
	// Classic 5-point tridiagonal chain: diagonal 2, off-diagonals -1,
	// rhs of ones. The single chain spans the mesh, so the application is
	// the exact solve x = (2.5, 4, 4.5, 4, 2.5).
	{
		var (
			n    = 5
			mesh = geometry.NewLineMesh(n, nil, utils.BCHeatFlux, false)
			m    Matrix[float64]
			b    = NewVector[float64](n, n, 1, 1)
			z    = NewVector[float64](n, n, 1, 0)
		)
		m.Initialize(n, n, 1, 1, true, mesh, testParams("LINELET"), nil)
		for i := 0; i < n; i++ {
			m.SetBlock(i, i, []float64{2})
			if i > 0 {
				m.SetBlock(i, i-1, []float64{-1})
			}
			if i+1 < n {
				m.SetBlock(i, i+1, []float64{-1})
			}
		}
		m.BuildJacobiPreconditioner(false)
		m.BuildLineletPreconditioner(mesh)
		m.ComputeLineletPreconditioner(b, z)
		assert.True(t, nearVec([]float64{2.5, 4, 4.5, 4, 2.5}, z.Data, 1.e-10))
	}
	// Without seed markers there are no chains and the application
	// degrades to plain Jacobi
	{
		var (
			n    = 5
			mesh = geometry.NewLineMesh(n, nil, utils.BCFarfield, false)
			m    Matrix[float64]
		)
		m.Initialize(n, n, 1, 1, true, mesh, testParams("LINELET"), nil)
		assembleAnisotropic(&m, mesh)
		m.BuildJacobiPreconditioner(false)
		meanPoints := m.BuildLineletPreconditioner(mesh)
		assert.Equal(t, 0, meanPoints)

		var (
			b  = NewVector[float64](n, n, 1, 1)
			z  = NewVector[float64](n, n, 1, 0)
			zj = NewVector[float64](n, n, 1, 0)
		)
		m.ComputeLineletPreconditioner(b, z)
		m.ComputeJacobiPreconditioner(b, zj)
		assert.True(t, nearVec(zj.Data, z.Data, 1.e-14))
	}
	// On a stretched box the wall seeds one chain per wall point and the
	// chains cover each point at most once
	{
		var (
			nx, ny = 4, 6
			nPt    = nx * ny
			mesh   = geometry.NewBoxMesh(nx, ny, 3.0)
			m      Matrix[float64]
		)
		m.Initialize(nPt, nPt, 1, 1, true, mesh, testParams("LINELET"), nil)
		assembleAnisotropic(&m, mesh)
		m.BuildJacobiPreconditioner(false)
		meanPoints := m.BuildLineletPreconditioner(mesh)
		assert.Equal(t, nx, len(m.linelets))
		assert.True(t, meanPoints > 1)

		// The first chain follows the dominant wall-normal couplings at
		// least the full height of its column; later seeds may find their
		// surroundings already claimed and stay short.
		assert.True(t, len(m.linelets[0]) >= ny)
		covered := make(map[int]bool)
		for _, chain := range m.linelets {
			for k, p := range chain {
				assert.False(t, covered[p])
				covered[p] = true
				assert.True(t, m.inLinelet[p])
				if k > 0 {
					// consecutive chain points are mesh neighbors
					found := false
					for _, q := range mesh.Neighbors(chain[k-1]) {
						if q == p {
							found = true
						}
					}
					assert.True(t, found)
				}
			}
		}

		// The application is approximate, but on this anisotropy it must
		// leave a smaller residual than plain Jacobi.
		var (
			b  = NewVector[float64](nPt, nPt, 1, 1)
			z  = NewVector[float64](nPt, nPt, 1, 0)
			r  = NewVector[float64](nPt, nPt, 1, 0)
			zj = NewVector[float64](nPt, nPt, 1, 0)
			rj = NewVector[float64](nPt, nPt, 1, 0)
		)
		m.ComputeLineletPreconditioner(b, z)
		m.ComputeResidual(z, b, r)
		m.ComputeJacobiPreconditioner(b, zj)
		m.ComputeResidual(zj, b, rj)
		assert.True(t, r.Norm() < rj.Norm())
	}
}

// denseDirect adapts a gonum dense LU factorization to the DirectSolver
// interface, standing in for an external backend.
type denseDirect struct {
	lu   mat.LU
	n    int
	nVar int
}

func (d *denseDirect) Factorize(nVar, nPoint, nPointDomain int, rowPtr, colInd []int, vals []float64, transposed bool) error {
	var (
		n  = nPointDomain * nVar
		a  = mat.NewDense(n, n, nil)
		sz = nVar * nVar
	)
	for i := 0; i < nPointDomain; i++ {
		for index := rowPtr[i]; index < rowPtr[i+1]; index++ {
			j := colInd[index]
			if j >= nPointDomain {
				continue
			}
			for iv := 0; iv < nVar; iv++ {
				for jv := 0; jv < nVar; jv++ {
					v := vals[index*sz+iv*nVar+jv]
					if transposed {
						a.Set(j*nVar+jv, i*nVar+iv, v)
					} else {
						a.Set(i*nVar+iv, j*nVar+jv, v)
					}
				}
			}
		}
	}
	d.n, d.nVar = n, nVar
	d.lu.Factorize(a)
	return nil
}

func (d *denseDirect) Solve(vec, prod []float64) {
	var x mat.VecDense
	if err := d.lu.SolveVecTo(&x, false, mat.NewVecDense(d.n, vec[:d.n])); err != nil {
		panic(err)
	}
	copy(prod[:d.n], x.RawVector().Data)
}

func TestDirectPreconditioner(t *testing.T) {
	// Unregistered backend is a configuration defect
	{
		m, _ := lineMatrix(3, 1, "DIRECT")
		assert.Panics(t, func() { m.BuildDirectPreconditioner(false) })
	}
	// A registered backend makes the application an exact solve
	{
		var (
			n, nVar = 6, 2
			m, _    = lineMatrix(n, nVar, "DIRECT")
			b       = NewVector[float64](n, n, nVar, 1)
			z       = NewVector[float64](n, n, nVar, 0)
		)
		m.SetDirectSolver(&denseDirect{})
		m.BuildDirectPreconditioner(false)
		m.ComputeDirectPreconditioner(b, z)
		require.True(t, nearVec(denseSolve(toDense(m), b.Data), z.Data, 1.e-11))
	}
}
