package linalg

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
)

// blasKernels routes the dense block arithmetic through gonum's blas64 for
// float64 runs. Selected by the BLASKernels config switch; other scalar
// instantiations always use the native loops.
type blasKernels struct{}

func general(n, m int, a []float64) blas64.General {
	return blas64.General{Rows: n, Cols: m, Stride: m, Data: a}
}

func vec(n int, x []float64) blas64.Vector {
	return blas64.Vector{N: n, Inc: 1, Data: x}
}

func (blasKernels) MatVec(n, m int, a, x, y []float64) {
	blas64.Gemv(blas.NoTrans, 1, general(n, m, a), vec(m, x), 0, vec(n, y))
}

func (blasKernels) MatVecAdd(n, m int, a, x, y []float64) {
	blas64.Gemv(blas.NoTrans, 1, general(n, m, a), vec(m, x), 1, vec(n, y))
}

func (blasKernels) MatVecSub(n, m int, a, x, y []float64) {
	blas64.Gemv(blas.NoTrans, -1, general(n, m, a), vec(m, x), 1, vec(n, y))
}

func (blasKernels) MatVecTransAdd(n, m int, a, x, y []float64) {
	blas64.Gemv(blas.Trans, 1, general(n, m, a), vec(n, x), 1, vec(m, y))
}

func (blasKernels) MatMat(n int, a, b, c []float64) {
	blas64.Gemm(blas.NoTrans, blas.NoTrans, 1, general(n, n, a), general(n, n, b), 0, general(n, n, c))
}
