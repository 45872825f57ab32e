package linalg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/AdityaSkhorne/SU2/comms"
	"github.com/AdityaSkhorne/SU2/config"
	"github.com/AdityaSkhorne/SU2/geometry"
	"github.com/AdityaSkhorne/SU2/utils"
)

func testParams(precond string) *config.Parameters {
	ip := config.DefaultParameters()
	ip.Preconditioner = precond
	return ip
}

// assembleAnisotropic fills m with the diffusion stencil of its mesh plus a
// unit shift: off-diagonals -w_ij I, diagonal (1 + sum_j w_ij) I, where w is
// the face-based anisotropy weight. The result is SPD for scalar blocks.
func assembleAnisotropic(m *Matrix[float64], mesh geometry.MeshGraph) {
	var (
		nVar = m.NVar
		blk  = make([]float64, nVar*nVar)
	)
	setScaledIdentity := func(s float64) {
		for k := range blk {
			blk[k] = 0
		}
		for v := 0; v < nVar; v++ {
			blk[v*nVar+v] = s
		}
	}
	for i := 0; i < mesh.NumOwnedPoints(); i++ {
		diag := 0.0
		for _, j := range mesh.Neighbors(i) {
			w := 0.5 * mesh.FaceArea(i, j) * (1.0/mesh.Volume(i) + 1.0/mesh.Volume(j))
			setScaledIdentity(-w)
			m.SetBlock(i, j, blk)
			diag += w
		}
		setScaledIdentity(diag)
		m.SetBlock(i, i, blk)
		m.AddVal2Diag(i, 1.0)
	}
}

// toDense expands the owned rows of m into a dense matrix for oracle checks.
// Only valid for single-partition matrices, where nPoint == nPointDomain.
func toDense(m *Matrix[float64]) *mat.Dense {
	var (
		n  = m.nPointDomain * m.NVar
		d  = mat.NewDense(n, n, nil)
		sz = m.NVar * m.NEqn
	)
	for i := 0; i < m.nPointDomain; i++ {
		for index := m.rowPtr[i]; index < m.rowPtr[i+1]; index++ {
			var (
				j   = m.colInd[index]
				blk = m.vals[index*sz : (index+1)*sz]
			)
			for iv := 0; iv < m.NVar; iv++ {
				for jv := 0; jv < m.NEqn; jv++ {
					d.Set(i*m.NVar+iv, j*m.NEqn+jv, blk[iv*m.NEqn+jv])
				}
			}
		}
	}
	return d
}

func lineMatrix(n, nVar int, precond string) (*Matrix[float64], *geometry.Graph) {
	var (
		mesh = geometry.NewLineMesh(n, nil, utils.BCHeatFlux, false)
		m    Matrix[float64]
	)
	m.Initialize(n, n, nVar, nVar, true, mesh, testParams(precond), nil)
	assembleAnisotropic(&m, mesh)
	return &m, mesh
}

func TestBlockAccess(t *testing.T) {
	m, _ := lineMatrix(4, 2, "JACOBI")

	// In-pattern entries are readable, off-pattern returns nil
	assert.NotNil(t, m.GetBlock(0, 1))
	assert.Nil(t, m.GetBlock(0, 3))
	assert.Panics(t, func() { m.SetBlock(0, 3, make([]float64, 4)) })

	// Add and subtract are inverses
	var (
		before = append([]float64{}, m.GetBlock(1, 2)...)
		delta  = []float64{1, 2, 3, 4}
	)
	m.AddBlock(1, 2, delta)
	m.SubtractBlock(1, 2, delta)
	assert.True(t, nearVec(before, m.GetBlock(1, 2), 1.e-15))

	// AddVal2Diag touches only the diagonal scalars
	d0 := append([]float64{}, m.GetBlock(2, 2)...)
	m.AddVal2Diag(2, 5)
	d1 := m.GetBlock(2, 2)
	assert.Equal(t, d0[0]+5, d1[0])
	assert.Equal(t, d0[1], d1[1])
	assert.Equal(t, d0[2], d1[2])
	assert.Equal(t, d0[3]+5, d1[3])

	// Double initialization is fatal
	assert.Panics(t, func() {
		mesh := geometry.NewLineMesh(4, nil, utils.BCHeatFlux, false)
		m.Initialize(4, 4, 2, 2, true, mesh, testParams("JACOBI"), nil)
	})
}

func TestMatrixVectorProduct(t *testing.T) {
	var (
		n, nVar = 6, 3
		m, _    = lineMatrix(n, nVar, "JACOBI")
		dense   = toDense(m)
		x       = NewVector[float64](n, n, nVar, 0)
		y       = NewVector[float64](n, n, nVar, 0)
	)
	for i := range x.Data {
		x.Data[i] = math.Sin(float64(i) + 1)
	}

	// Forward product against the dense oracle
	{
		m.MatrixVectorProduct(x, y)
		var want mat.VecDense
		want.MulVec(dense, mat.NewVecDense(n*nVar, x.Data))
		assert.True(t, nearVec(want.RawVector().Data, y.Data, 1.e-13))
	}
	// Transposed product
	{
		m.MatrixVectorProductTransposed(x, y)
		var want mat.VecDense
		want.MulVec(dense.T(), mat.NewVecDense(n*nVar, x.Data))
		assert.True(t, nearVec(want.RawVector().Data, y.Data, 1.e-13))
	}
	// ComputeResidual: res = A x - f vanishes for f = A x
	{
		var (
			f   = NewVector[float64](n, n, nVar, 0)
			res = NewVector[float64](n, n, nVar, 1)
		)
		m.MatrixVectorProduct(x, f)
		m.ComputeResidual(x, f, res)
		assert.True(t, near(0, res.Norm(), 1.e-13))
	}
	// Row splitting: L + D + U recovers the full row product
	{
		for iPoint := 0; iPoint < n; iPoint++ {
			m.RowProduct(x, iPoint)
			full := append([]float64{}, m.prodRowVector...)
			sum := make([]float64, nVar)
			m.LowerProduct(x, iPoint)
			for k := range sum {
				sum[k] += m.prodRowVector[k]
			}
			m.DiagonalProduct(x, iPoint)
			for k := range sum {
				sum[k] += m.prodRowVector[k]
			}
			m.UpperProduct(x, iPoint)
			for k := range sum {
				sum[k] += m.prodRowVector[k]
			}
			assert.True(t, nearVec(full, sum, 1.e-13))
		}
	}
}

func TestDeleteRowAndSetIdentity(t *testing.T) {
	var (
		n, nVar = 4, 2
		m, _    = lineMatrix(n, nVar, "JACOBI")
		i       = 3 // scalar row: second variable of point 1
	)
	m.DeleteRowAndSetIdentity(i)
	dense := toDense(m)
	for col := 0; col < n*nVar; col++ {
		want := 0.0
		if col == i {
			want = 1.0
		}
		assert.Equal(t, want, dense.At(i, col))
	}
	// Neighboring rows untouched
	assert.NotEqual(t, 0.0, dense.At(2, 2))
}

func TestEnforceDirichletAtPoint(t *testing.T) {
	var (
		n, nVar = 5, 2
		node    = 2
		xBC     = []float64{3, -1}
	)
	m, _ := lineMatrix(n, nVar, "JACOBI")

	// Reference solution of the untouched system with the constraint built
	// in by substitution on the dense oracle
	var (
		dense0 = toDense(m)
		b      = NewVector[float64](n, n, nVar, 1)
	)

	m.EnforceDirichletAtPoint(node, xBC, b)
	dense1 := toDense(m)

	// Constraint row and column removed, diagonal identity
	for k := 0; k < n*nVar; k++ {
		for v := 0; v < nVar; v++ {
			var (
				r    = node*nVar + v
				want = 0.0
			)
			if k == r {
				want = 1.0
			}
			assert.Equal(t, want, dense1.At(r, k), "row")
			assert.Equal(t, want, dense1.At(k, r), "col")
		}
	}
	// Symmetry preserved
	var diff mat.Dense
	diff.Sub(dense1, dense1.T())
	assert.True(t, near(0, mat.Norm(&diff, 2), 1.e-13))

	// Solving the modified system reproduces the BC value and satisfies the
	// original equations away from the constrained point
	var sol mat.VecDense
	require.Nil(t, sol.SolveVec(dense1, mat.NewVecDense(n*nVar, b.Data)))
	assert.True(t, nearVec(xBC, sol.RawVector().Data[node*nVar:(node+1)*nVar], 1.e-12))
	var resid mat.VecDense
	resid.MulVec(dense0, &sol)
	for p := 0; p < n; p++ {
		if p == node {
			continue
		}
		for v := 0; v < nVar; v++ {
			assert.True(t, near(1.0, resid.AtVec(p*nVar+v), 1.e-12))
		}
	}
}

func TestVector(t *testing.T) {
	v := NewVector[float64](3, 2, 2, 1)
	assert.Equal(t, 6, len(v.Data))

	// Dot counts owned points only
	w := NewVector[float64](3, 2, 2, 2)
	assert.Equal(t, 8.0, v.Dot(w))
	assert.True(t, near(2.0, v.Norm()))

	v.Block(1)[0] = 5
	assert.Equal(t, 5.0, v.Data[2])

	w.CopyFrom(v)
	assert.Equal(t, v.Data, w.Data)
	w.PlusEqual(v)
	w.MinusEqual(v)
	assert.Equal(t, v.Data, w.Data)

	u := v.Copy()
	u.SetValZero()
	assert.Equal(t, 5.0, v.Data[2]) // deep copy
	assert.Equal(t, 0.0, u.Data[2])

	assert.Panics(t, func() { v.Dot(NewVector[float64](4, 4, 2, 0)) })
}

func TestComms_NilPartitionIsNoop(t *testing.T) {
	m, _ := lineMatrix(3, 1, "JACOBI")
	v := NewVector[float64](3, 3, 1, 7)
	m.InitiateComms(v, comms.Solution)
	m.CompleteComms(v, comms.Solution)
	assert.Equal(t, []float64{7, 7, 7}, v.Data)
}
