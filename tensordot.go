// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package einsum

import (
	"github.com/gomlx/einsum/tensors"
	"github.com/gomlx/exceptions"
)

// adjustAxes converts negative axes (counting from the end) to their positive
// equivalents, and panics for axes out of range. Operation name used for error messages.
func adjustAxes(opName string, axes []int, rank int) []int {
	adjusted := make([]int, len(axes))
	for ii, axis := range axes {
		adjustedAxis := axis
		if adjustedAxis < 0 {
			adjustedAxis = rank + adjustedAxis
		}
		if adjustedAxis < 0 || adjustedAxis >= rank {
			exceptions.Panicf("%s: axis %d is out of range for rank %d", opName, axis, rank)
		}
		adjusted[ii] = adjustedAxis
	}
	return adjusted
}

// TensorDot contracts each axis in lhsAxes of lhs with the pairwise-matching axis in
// rhsAxes of rhs: the paired axes are multiplied and summed away, and the output shape
// is the surviving lhs axes (in order) followed by the surviving rhs axes. Contracting
// all axes yields a scalar.
//
// Both axes lists must have the same length; axes can be negative, in which case they
// count from the end. Paired axes must have the same extent, except that an axis of
// extent 1 contracts with any extent: the non-trivial side is then reduce-summed over
// its axis (broadcast contraction).
//
//	TensorDot(matrixA, matrixB, []int{1}, []int{0})  // the usual matrix multiplication
//	TensorDot(vectorA, vectorB, []int{0}, []int{0})  // dot product, a scalar
func TensorDot(lhs, rhs *tensors.Tensor, lhsAxes, rhsAxes []int) *tensors.Tensor {
	lhs.AssertValid()
	rhs.AssertValid()
	if lhs.DType() != rhs.DType() {
		exceptions.Panicf("TensorDot: operands have different dtypes (%s and %s)", lhs.DType(), rhs.DType())
	}
	if len(lhsAxes) != len(rhsAxes) {
		exceptions.Panicf("TensorDot: both axes lists must have the same length, got %d and %d",
			len(lhsAxes), len(rhsAxes))
	}
	lhsAxes = adjustAxes("TensorDot", lhsAxes, lhs.Rank())
	rhsAxes = adjustAxes("TensorDot", rhsAxes, rhs.Rank())

	// Extents are read from the original operands: an extent-1 axis contracts with any
	// extent by reduce-summing the other side, everything else must match and multiplies
	// into the contraction size.
	contractedSize := 1
	t1, t2 := lhs, rhs
	for ii := range lhsAxes {
		lhsSize := lhs.Shape().Dimensions[lhsAxes[ii]]
		rhsSize := rhs.Shape().Dimensions[rhsAxes[ii]]
		if rhsSize == 1 {
			t1 = tensors.ReduceAndKeep(t1, tensors.ReduceSum, lhsAxes[ii])
		} else if lhsSize == 1 {
			t2 = tensors.ReduceAndKeep(t2, tensors.ReduceSum, rhsAxes[ii])
		} else {
			if lhsSize != rhsSize {
				exceptions.Panicf("TensorDot: contracted axes need to match, but lhs has extent %d on axis %d and rhs has extent %d on axis %d",
					lhsSize, lhsAxes[ii], rhsSize, rhsAxes[ii])
			}
			contractedSize *= lhsSize
		}
	}

	// lhs goes to [surviving axes..., contracted axes...], rhs to the mirrored
	// [contracted axes..., surviving axes...], so the contraction becomes a single
	// matrix multiplication.
	lhsContracted := make([]bool, lhs.Rank())
	for _, axis := range lhsAxes {
		lhsContracted[axis] = true
	}
	rhsContracted := make([]bool, rhs.Rank())
	for _, axis := range rhsAxes {
		rhsContracted[axis] = true
	}

	var resultDims []int
	lhsPerm := make([]int, 0, lhs.Rank())
	lhsSurvivingSize := 1
	for axis := 0; axis < lhs.Rank(); axis++ {
		if lhsContracted[axis] {
			continue
		}
		lhsPerm = append(lhsPerm, axis)
		lhsSurvivingSize *= t1.Shape().Dimensions[axis]
		resultDims = append(resultDims, t1.Shape().Dimensions[axis])
	}
	lhsPerm = append(lhsPerm, lhsAxes...)

	rhsPerm := append([]int{}, rhsAxes...)
	rhsSurvivingSize := 1
	for axis := 0; axis < rhs.Rank(); axis++ {
		if rhsContracted[axis] {
			continue
		}
		rhsPerm = append(rhsPerm, axis)
		rhsSurvivingSize *= t2.Shape().Dimensions[axis]
		resultDims = append(resultDims, t2.Shape().Dimensions[axis])
	}

	t1 = tensors.Reshape(tensors.TransposeAllAxes(t1, lhsPerm...), 1, lhsSurvivingSize, contractedSize)
	t2 = tensors.Reshape(tensors.TransposeAllAxes(t2, rhsPerm...), 1, contractedSize, rhsSurvivingSize)
	return tensors.Reshape(tensors.BatchedMatMul(t1, t2), resultDims...)
}
