package einsum

import (
	"github.com/gomlx/einsum/tensors"
	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"
)

// sumProductPair multiplies left and right and sums the result over sumAxes, without
// materializing the full elementwise product: axes summed on one side only are reduced
// upfront, and the rest is evaluated as one batched matrix multiplication.
//
// Both operands must have the same rank; on every axis their extents must either match
// or one of them must be 1 (which broadcasts). With keepDims=true the summed axes are
// kept in the output with size 1, otherwise they are removed.
func sumProductPair(left, right *tensors.Tensor, sumAxes []int, keepDims bool) *tensors.Tensor {
	rank := left.Rank()
	if right.Rank() != rank {
		exceptions.Panicf("sumProductPair: operands must have the same rank, got shapes %s and %s",
			left.Shape(), right.Shape())
	}
	if len(sumAxes) == 0 {
		return tensors.Mul(left, right)
	}
	summed := make([]bool, rank)
	for _, axis := range sumAxes {
		summed[axis] = true
	}

	// Classify each axis by the sides where it is non-trivial (extent > 1): axes summed
	// on one side only can be reduced right away; axes summed on both sides become the
	// contracting group of the matmul; kept axes split into batch (lro: non-trivial on
	// both sides) and cross groups (lo and ro; ro also takes the axes trivial on both).
	var lro, lo, ro []int
	lroSize, loSize, roSize, sumSize := 1, 1, 1, 1
	for axis := 0; axis < rank; axis++ {
		leftSize := left.Shape().Dimensions[axis]
		rightSize := right.Shape().Dimensions[axis]
		leftNonTrivial := leftSize != 1
		rightNonTrivial := rightSize != 1
		if summed[axis] {
			if leftNonTrivial && rightNonTrivial {
				if leftSize != rightSize {
					exceptions.Panicf("sumProductPair: non-broadcast axes must match, got shapes %s and %s on axis %d",
						left.Shape(), right.Shape(), axis)
				}
				sumSize *= leftSize
			} else if leftNonTrivial {
				left = tensors.ReduceAndKeep(left, tensors.ReduceSum, axis)
			} else if rightNonTrivial {
				right = tensors.ReduceAndKeep(right, tensors.ReduceSum, axis)
			}
		} else if leftNonTrivial && rightNonTrivial {
			lro = append(lro, axis)
			lroSize *= leftSize
		} else if leftNonTrivial {
			lo = append(lo, axis)
			loSize *= leftSize
		} else {
			ro = append(ro, axis)
			roSize *= rightSize
		}
	}
	klog.V(2).Infof("sumProductPair: batch axes %v, left cross axes %v, right cross axes %v, contracting axes %v",
		lro, lo, ro, sumAxes)

	// The output in the permuted frame: [lro..., lo..., one 1 per summed axis, ro...].
	// Note the sizes must be read after the one-sided reductions above.
	outSize := make([]int, 0, rank)
	for _, axis := range lro {
		outSize = append(outSize, left.Shape().Dimensions[axis])
	}
	for _, axis := range lo {
		outSize = append(outSize, left.Shape().Dimensions[axis])
	}
	for range sumAxes {
		outSize = append(outSize, 1)
	}
	for _, axis := range ro {
		outSize = append(outSize, right.Shape().Dimensions[axis])
	}

	lperm := make([]int, 0, rank)
	lperm = append(lperm, lro...)
	lperm = append(lperm, lo...)
	lperm = append(lperm, sumAxes...)
	lperm = append(lperm, ro...)

	rperm := make([]int, 0, rank)
	rperm = append(rperm, lro...)
	rperm = append(rperm, sumAxes...)
	rperm = append(rperm, ro...)
	rperm = append(rperm, lo...)

	// opermutation maps each original axis to its position in the permuted frame, which
	// is exactly the permutation that restores the original axis order.
	opermutation := make([]int, rank)
	permutedPos := 0
	for _, group := range [][]int{lro, lo, sumAxes, ro} {
		for _, axis := range group {
			opermutation[axis] = permutedPos
			permutedPos++
		}
	}

	left = tensors.Reshape(tensors.TransposeAllAxes(left, lperm...), lroSize, loSize, sumSize)
	right = tensors.Reshape(tensors.TransposeAllAxes(right, rperm...), lroSize, sumSize, roSize)
	result := tensors.BatchedMatMul(left, right)
	result = tensors.TransposeAllAxes(tensors.Reshape(result, outSize...), opermutation...)

	if !keepDims {
		result = tensors.Squeeze(result, sumAxes...)
	}
	return result
}
