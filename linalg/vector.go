// Package linalg holds the distributed block-sparse matrix core: block-CSR
// storage, the dense block kernels, and the Jacobi, ILU(n), linelet, LU-SGS
// and external-direct preconditioners used inside the linear solver loop.
package linalg

import (
	"fmt"
	"math"

	"github.com/AdityaSkhorne/SU2/utils"
)

// Vector is a block-structured vector: NPoint blocks of NVar scalars in one
// contiguous buffer. Points below NPointDomain are locally owned; the rest
// are halo points mirrored from neighboring partitions.
type Vector[T utils.Float] struct {
	NPoint, NPointDomain, NVar int
	Data                       []T
}

func NewVector[T utils.Float](nPoint, nPointDomain, nVar int, val T) *Vector[T] {
	if nPointDomain > nPoint || nVar < 1 {
		panic(fmt.Errorf("invalid vector dims: nPoint=%d nPointDomain=%d nVar=%d",
			nPoint, nPointDomain, nVar))
	}
	return &Vector[T]{
		NPoint:       nPoint,
		NPointDomain: nPointDomain,
		NVar:         nVar,
		Data:         utils.ConstSlice(nPoint*nVar, val),
	}
}

func (v *Vector[T]) SetValZero() {
	utils.ZeroSlice(v.Data)
}

// Block returns the mutable block of point i.
func (v *Vector[T]) Block(i int) []T {
	return v.Data[i*v.NVar : (i+1)*v.NVar]
}

func (v *Vector[T]) Copy() *Vector[T] {
	r := NewVector[T](v.NPoint, v.NPointDomain, v.NVar, 0)
	copy(r.Data, v.Data)
	return r
}

func (v *Vector[T]) CopyFrom(o *Vector[T]) {
	v.checkConforming(o)
	copy(v.Data, o.Data)
}

func (v *Vector[T]) PlusEqual(o *Vector[T]) {
	v.checkConforming(o)
	for i, val := range o.Data {
		v.Data[i] += val
	}
}

func (v *Vector[T]) MinusEqual(o *Vector[T]) {
	v.checkConforming(o)
	for i, val := range o.Data {
		v.Data[i] -= val
	}
}

// Dot is the inner product over locally owned points only, so halo entries
// are not double counted across partitions.
func (v *Vector[T]) Dot(o *Vector[T]) (sum T) {
	v.checkConforming(o)
	for i := 0; i < v.NPointDomain*v.NVar; i++ {
		sum += v.Data[i] * o.Data[i]
	}
	return
}

func (v *Vector[T]) Norm() float64 {
	return math.Sqrt(float64(v.Dot(v)))
}

func (v *Vector[T]) checkConforming(o *Vector[T]) {
	if v.NVar != o.NVar || v.NPoint != o.NPoint {
		panic(fmt.Errorf("nonconforming vectors: (%d pts x %d vars) vs (%d pts x %d vars)",
			v.NPoint, v.NVar, o.NPoint, o.NVar))
	}
}
