package einsum

import (
	"github.com/gomlx/einsum/shapes"
	"github.com/gomlx/einsum/tensors"
	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"
)

// Trilinear computes ReduceSum(expand(i1) * expand(i2) * expand(i3), sumAxes) without
// materializing the full three-way product.
//
// All three operands are first expanded to a common rank with size-1 axes at the
// positions given by expand1, expand2 and expand3 (positions in the common frame, so
// operandRank + len(expandN) must be the same for all three); sumAxes (also in the
// common frame) are then summed away.
//
// The evaluation never multiplies all three operands at once: it unrolls over
// unrollAxis, and for each slice evaluates two pairwise sum-products -- axes summed away
// that are expanded in i3 don't exist in the third operand, so they are contracted
// already with the first pair; the remaining ones with the second.
//
// Every axis of the common frame must be non-expanded in at least one operand.
func Trilinear(i1, i2, i3 *tensors.Tensor, expand1, expand2, expand3, sumAxes []int, unrollAxis int) *tensors.Tensor {
	i1.AssertValid()
	i2.AssertValid()
	i3.AssertValid()
	dtype := i1.DType()
	if i2.DType() != dtype || i3.DType() != dtype {
		exceptions.Panicf("Trilinear: operands must have the same dtype, got %s, %s and %s",
			i1.DType(), i2.DType(), i3.DType())
	}
	totalRank := i1.Rank() + len(expand1)
	if i2.Rank()+len(expand2) != totalRank || i3.Rank()+len(expand3) != totalRank {
		exceptions.Panicf("Trilinear: operands must expand to the same rank, got %d+%d, %d+%d and %d+%d axes",
			i1.Rank(), len(expand1), i2.Rank(), len(expand2), i3.Rank(), len(expand3))
	}
	if unrollAxis < 0 || unrollAxis >= totalRank {
		exceptions.Panicf("Trilinear: unrollAxis must be in [0, %d), got %d", totalRank, unrollAxis)
	}
	expand1 = adjustAxes("Trilinear", expand1, totalRank)
	expand2 = adjustAxes("Trilinear", expand2, totalRank)
	expand3 = adjustAxes("Trilinear", expand3, totalRank)
	sumAxes = adjustAxes("Trilinear", sumAxes, totalRank)

	expanded1 := make([]bool, totalRank)
	for _, axis := range expand1 {
		expanded1[axis] = true
	}
	expanded2 := make([]bool, totalRank)
	for _, axis := range expand2 {
		expanded2[axis] = true
	}
	expanded3 := make([]bool, totalRank)
	for _, axis := range expand3 {
		expanded3[axis] = true
	}
	summed := make([]bool, totalRank)
	for _, axis := range sumAxes {
		summed[axis] = true
	}

	i1 = tensors.ExpandAxes(i1, expand1...)
	i2 = tensors.ExpandAxes(i2, expand2...)
	i3 = tensors.ExpandAxes(i3, expand3...)

	// Axes summed away that are expanded in i3 can be contracted already with the first
	// pair (i1 x i2), the remaining ones with the second (x i3). The unroll axis is
	// handled by the unroll loop itself.
	var sumAxes12, sumAxes23 []int
	outputDims := make([]int, totalRank)
	unrollSize := -1
	for axis := 0; axis < totalRank; axis++ {
		if expanded1[axis] && expanded2[axis] && expanded3[axis] {
			exceptions.Panicf("Trilinear: axis %d is expanded in all three operands, it must carry an extent in at least one",
				axis)
		}
		size := 0
		if !expanded1[axis] {
			size = i1.Shape().Dimensions[axis]
		}
		if !expanded2[axis] {
			size = i2.Shape().Dimensions[axis]
		}
		if expanded3[axis] {
			if summed[axis] && axis != unrollAxis {
				sumAxes12 = append(sumAxes12, axis)
			}
		} else {
			size = i3.Shape().Dimensions[axis]
			if summed[axis] && axis != unrollAxis {
				sumAxes23 = append(sumAxes23, axis)
			}
		}
		if summed[axis] {
			outputDims[axis] = 1
		} else {
			outputDims[axis] = size
		}
		if axis == unrollAxis {
			unrollSize = size
		}
	}
	klog.V(2).Infof("Trilinear: unrolling axis %d (size %d), first-pair sum axes %v, second-pair sum axes %v",
		unrollAxis, unrollSize, sumAxes12, sumAxes23)

	// Operands expanded on the unroll axis contribute their (only) index 0 slice to
	// every unroll step.
	sliceStep1, sliceStep2, sliceStep3 := 1, 1, 1
	if expanded1[unrollAxis] {
		sliceStep1 = 0
	}
	if expanded2[unrollAxis] {
		sliceStep2 = 0
	}
	if expanded3[unrollAxis] {
		sliceStep3 = 0
	}

	var result *tensors.Tensor
	switch {
	case unrollSize == 0:
		result = tensors.FromShape(shapes.Make(dtype, outputDims...))
	case summed[unrollAxis]:
		// The unroll axis itself is summed: accumulate the slices.
		for k := 0; k < unrollSize; k++ {
			buf := sumProductPair(
				tensors.SliceAxis(i1, unrollAxis, k*sliceStep1, k*sliceStep1+1),
				tensors.SliceAxis(i2, unrollAxis, k*sliceStep2, k*sliceStep2+1),
				sumAxes12, true)
			buf = sumProductPair(buf,
				tensors.SliceAxis(i3, unrollAxis, k*sliceStep3, k*sliceStep3+1),
				sumAxes23, true)
			if result == nil {
				result = buf
			} else {
				result = tensors.Add(result, buf)
			}
		}
	default:
		// Each unroll step becomes one slice of the output.
		slices := make([]*tensors.Tensor, unrollSize)
		for k := 0; k < unrollSize; k++ {
			buf := sumProductPair(
				tensors.SliceAxis(i1, unrollAxis, k*sliceStep1, k*sliceStep1+1),
				tensors.SliceAxis(i2, unrollAxis, k*sliceStep2, k*sliceStep2+1),
				sumAxes12, true)
			slices[k] = sumProductPair(buf,
				tensors.SliceAxis(i3, unrollAxis, k*sliceStep3, k*sliceStep3+1),
				sumAxes23, true)
		}
		result = tensors.Concatenate(slices, unrollAxis)
	}

	if len(sumAxes) > 0 {
		result = tensors.Squeeze(result, sumAxes...)
	}
	return result
}

// Bilinear applies the bilinear transformation
//
//	output[..., o] = bias[o] + Σ_{i,j} x1[..., i] * weight[o, i, j] * x2[..., j]
//
// where x1 and x2 have matching batch axes (all but the last), weight is shaped
// [outputFeatures, x1Features, x2Features] and bias -- which may be nil -- is shaped
// [outputFeatures]. The output has the batch axes followed by outputFeatures.
//
// The contraction is evaluated with Trilinear, unrolling over the output features, so
// the [batch, outputFeatures, x1Features, x2Features] product is never materialized.
func Bilinear(x1, x2, weight, bias *tensors.Tensor) *tensors.Tensor {
	x1.AssertValid()
	x2.AssertValid()
	weight.AssertValid()
	dtype := x1.DType()
	if x2.DType() != dtype || weight.DType() != dtype {
		exceptions.Panicf("Bilinear: operands must have the same dtype, got x1=%s, x2=%s and weight=%s",
			x1.DType(), x2.DType(), weight.DType())
	}
	rank := x1.Rank()
	if rank < 1 || x2.Rank() != rank {
		exceptions.Panicf("Bilinear: inputs must have equal ranks of at least 1, got shapes %s and %s",
			x1.Shape(), x2.Shape())
	}
	for axis := 0; axis < rank-1; axis++ {
		if x1.Shape().Dimensions[axis] != x2.Shape().Dimensions[axis] {
			exceptions.Panicf("Bilinear: input batch dimensions do not match on axis %d, got shapes %s and %s",
				axis, x1.Shape(), x2.Shape())
		}
	}
	if weight.Rank() != 3 {
		exceptions.Panicf("Bilinear: weight must be rank-3, shaped [outputFeatures, x1Features, x2Features], got shape %s",
			weight.Shape())
	}
	if x1.Shape().Dim(-1) != weight.Shape().Dim(1) {
		exceptions.Panicf("Bilinear: x1 features (%d) do not match weight's second axis (shape %s)",
			x1.Shape().Dim(-1), weight.Shape())
	}
	if x2.Shape().Dim(-1) != weight.Shape().Dim(2) {
		exceptions.Panicf("Bilinear: x2 features (%d) do not match weight's third axis (shape %s)",
			x2.Shape().Dim(-1), weight.Shape())
	}
	if bias != nil {
		bias.AssertValid()
		if bias.DType() != dtype {
			exceptions.Panicf("Bilinear: bias has dtype %s, but the operands have dtype %s", bias.DType(), dtype)
		}
		if bias.Rank() != 1 || bias.Shape().Dim(0) != weight.Shape().Dim(0) {
			exceptions.Panicf("Bilinear: bias must be shaped [outputFeatures=%d], got shape %s",
				weight.Shape().Dim(0), bias.Shape())
		}
	}

	// Flatten the batch axes, evaluate on [batchSize, features] inputs and restore the
	// batch axes at the end.
	batchSize := 1
	for _, dim := range x1.Shape().Dimensions[:rank-1] {
		batchSize *= dim
	}
	x1Flat := tensors.Reshape(x1, batchSize, x1.Shape().Dim(-1))
	x2Flat := tensors.Reshape(x2, batchSize, x2.Shape().Dim(-1))

	output := Trilinear(x1Flat, weight, x2Flat,
		[]int{1, 3}, []int{0}, []int{1, 2}, []int{2, 3}, 1)

	outputDims := make([]int, 0, rank)
	outputDims = append(outputDims, x1.Shape().Dimensions[:rank-1]...)
	outputDims = append(outputDims, weight.Shape().Dim(0))
	output = tensors.Reshape(output, outputDims...)
	if bias != nil {
		output = tensors.Add(output, tensors.ExpandLeftToRank(bias, output.Rank()))
	}
	return output
}
