package utils

// Float covers the scalar instantiations of the solver core. float64 is the
// working precision for ordinary solves; float32 is available for reduced
// precision or externally differentiated runs where the tape stores the
// primal values separately.
type Float interface {
	~float32 | ~float64
}

func ConstSlice[T Float](N int, val T) (v []T) {
	v = make([]T, N)
	for i := range v {
		v[i] = val
	}
	return
}

func ZeroSlice[T Float](v []T) {
	for i := range v {
		v[i] = 0
	}
}

func MaxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
