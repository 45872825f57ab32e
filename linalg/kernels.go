package linalg

import (
	"fmt"

	"github.com/AdityaSkhorne/SU2/utils"
)

// denseKernels is the block-level arithmetic backend. The factorization and
// product algorithms are agnostic to which implementation executes it; the
// native generic loops work for every scalar instantiation, while the blas64
// backend accelerates float64 runs.
type denseKernels[T utils.Float] interface {
	// MatVec computes y = A x for a row-major n x m block.
	MatVec(n, m int, a, x, y []T)
	// MatVecAdd computes y += A x.
	MatVecAdd(n, m int, a, x, y []T)
	// MatVecSub computes y -= A x.
	MatVecSub(n, m int, a, x, y []T)
	// MatVecTransAdd computes y += A^T x.
	MatVecTransAdd(n, m int, a, x, y []T)
	// MatMat computes c = A B for n x n blocks.
	MatMat(n int, a, b, c []T)
}

func newKernels[T utils.Float](useBLAS bool) denseKernels[T] {
	if useBLAS {
		if k, ok := any(blasKernels{}).(denseKernels[T]); ok {
			return k
		}
		// Non-float64 instantiation, fall through to the native loops.
	}
	return nativeKernels[T]{}
}

type nativeKernels[T utils.Float] struct{}

func (nativeKernels[T]) MatVec(n, m int, a, x, y []T) {
	for i := 0; i < n; i++ {
		var sum T
		for j := 0; j < m; j++ {
			sum += a[i*m+j] * x[j]
		}
		y[i] = sum
	}
}

func (nativeKernels[T]) MatVecAdd(n, m int, a, x, y []T) {
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			y[i] += a[i*m+j] * x[j]
		}
	}
}

func (nativeKernels[T]) MatVecSub(n, m int, a, x, y []T) {
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			y[i] -= a[i*m+j] * x[j]
		}
	}
}

func (nativeKernels[T]) MatVecTransAdd(n, m int, a, x, y []T) {
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			y[j] += a[i*m+j] * x[i]
		}
	}
}

func (nativeKernels[T]) MatMat(n int, a, b, c []T) {
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var sum T
			for k := 0; k < n; k++ {
				sum += a[i*n+k] * b[k*n+j]
			}
			c[i*n+j] = sum
		}
	}
}

// gaussianEliminate solves A b = rhs in place: a is reduced to upper
// triangular form without pivoting and b becomes the solution. Blocks are
// assumed well conditioned; an exactly zero pivot is a hard breakdown of the
// factorization and aborts rather than poisoning the solve with NaNs.
func gaussianEliminate[T utils.Float](n int, a, b []T) {
	// Transform system into an upper triangular matrix
	for i := 1; i < n; i++ {
		for j := 0; j < i; j++ {
			piv := a[j*n+j]
			if piv == 0 {
				panic(fmt.Errorf("zero pivot in block Gaussian elimination (row %d of %d)", j, n))
			}
			weight := a[i*n+j] / piv
			for k := j; k < n; k++ {
				a[i*n+k] -= weight * a[j*n+k]
			}
			b[i] -= weight * b[j]
		}
	}

	// Backwards substitution
	for i := n - 1; i >= 0; i-- {
		for j := i + 1; j < n; j++ {
			b[i] -= a[i*n+j] * b[j]
		}
		piv := a[i*n+i]
		if piv == 0 {
			panic(fmt.Errorf("zero pivot in block Gaussian elimination (row %d of %d)", i, n))
		}
		b[i] /= piv
	}
}

// matrixInverse computes inv = A^{-1} by eliminating against the identity,
// the multi-rhs generalization of gaussianEliminate. scratch receives a
// working copy of a; both scratch and inv must hold n*n scalars.
func matrixInverse[T utils.Float](n int, a, scratch, inv []T) {
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			scratch[i*n+j] = a[i*n+j]
			if i == j {
				inv[i*n+j] = 1
			} else {
				inv[i*n+j] = 0
			}
		}
	}

	for i := 1; i < n; i++ {
		for j := 0; j < i; j++ {
			piv := scratch[j*n+j]
			if piv == 0 {
				panic(fmt.Errorf("zero pivot in block inversion (row %d of %d)", j, n))
			}
			weight := scratch[i*n+j] / piv
			for k := j; k < n; k++ {
				scratch[i*n+k] -= weight * scratch[j*n+k]
			}
			// inv is still lower triangular here, only cols <= j update
			for k := 0; k <= j; k++ {
				inv[i*n+k] -= weight * inv[j*n+k]
			}
		}
	}

	for i := n - 1; i >= 0; i-- {
		for j := i + 1; j < n; j++ {
			for k := 0; k < n; k++ {
				inv[i*n+k] -= scratch[i*n+j] * inv[j*n+k]
			}
		}
		piv := scratch[i*n+i]
		if piv == 0 {
			panic(fmt.Errorf("zero pivot in block inversion (row %d of %d)", i, n))
		}
		for k := 0; k < n; k++ {
			inv[i*n+k] /= piv
		}
	}
}

func matrixSubtraction[T utils.Float](n int, a, b, c []T) {
	for i := 0; i < n*n; i++ {
		c[i] = a[i] - b[i]
	}
}

func vectorSubtraction[T utils.Float](n int, a, b, c []T) {
	for i := 0; i < n; i++ {
		c[i] = a[i] - b[i]
	}
}

func transposeBlock[T utils.Float](n int, a, at []T) {
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			at[j*n+i] = a[i*n+j]
		}
	}
}
