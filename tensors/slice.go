// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"reflect"

	"github.com/gomlx/einsum/shapes"
	"github.com/gomlx/exceptions"
)

// SliceAxis returns the sub-tensor with indices in the range [from, to) on the given
// axis, and everything on the other axes. The axis can be negative, in which case it
// counts from the end.
func SliceAxis(t *Tensor, axis, from, to int) *Tensor {
	t.AssertValid()
	axis = adjustAxisToRank(axis, t.Rank(), "axis")
	dim := t.shape.Dimensions[axis]
	if from < 0 || from > to || to > dim {
		exceptions.Panicf("SliceAxis: invalid range [%d, %d) for axis %d of shape %s", from, to, axis, t.shape)
	}
	outputDims := make([]int, t.Rank())
	copy(outputDims, t.shape.Dimensions)
	outputDims[axis] = to - from
	output := FromShape(shapes.Make(t.DType(), outputDims...))
	if output.Size() == 0 {
		return output
	}

	// A contiguous slice on one axis is a strided sequence of block copies.
	innerSize := 1
	for _, d := range t.shape.Dimensions[axis+1:] {
		innerSize *= d
	}
	outerSize := 1
	for _, d := range t.shape.Dimensions[:axis] {
		outerSize *= d
	}
	blockSize := (to - from) * innerSize
	for outerIdx := 0; outerIdx < outerSize; outerIdx++ {
		srcStartIdx := outerIdx*dim*innerSize + from*innerSize
		dstStartIdx := outerIdx * blockSize
		copyFlatRange(output, t, dstStartIdx, srcStartIdx, blockSize)
	}
	return output
}

// Concatenate the operands along the given axis. All other axes must have matching
// dimensions, and all operands must have the same dtype and rank. Scalars are reshaped
// to [1] before concatenating.
func Concatenate(operands []*Tensor, axis int) *Tensor {
	if len(operands) == 0 {
		exceptions.Panicf("cannot Concatenate with 0 operands")
	}
	for _, t := range operands {
		t.AssertValid()
	}
	rank := operands[0].Rank()
	if rank == 0 {
		// Scalars will be converted to [1] before concatenating.
		for ii, t := range operands {
			operands[ii] = InsertAxes(t, 0)
		}
		rank = 1
	}
	if len(operands) == 1 {
		// Trivial solution.
		return operands[0].Clone()
	}
	baseShape := operands[0].shape
	adjustedAxis := adjustAxisToRank(axis, rank, "axis")
	concatDim := baseShape.Dimensions[adjustedAxis]
	for ii, t := range operands[1:] {
		if t.DType() != baseShape.DType {
			exceptions.Panicf("Concatenate operand #%d has different dtype (%s) than operand 0's dtype (%s)",
				ii+1, t.DType(), baseShape.DType)
		}
		if t.Rank() != rank {
			exceptions.Panicf("Concatenate operand #%d has different rank (%d) than operand 0's rank (%d)",
				ii+1, t.Rank(), rank)
		}
		for axisIdx, dim := range t.shape.Dimensions {
			if axisIdx == adjustedAxis {
				// Dimension being concatenated can be different.
				continue
			}
			if baseShape.Dimensions[axisIdx] != dim {
				exceptions.Panicf(
					"Concatenate(axis=%d) operand #%d has incompatible shape (%s) with operand 0's shape (%s) "+
						"-- except for axis %d, the dimensions on all other axes must match",
					axis, ii+1, t.shape, baseShape, axis)
			}
		}
		concatDim += t.shape.Dimensions[adjustedAxis]
	}

	outputDims := make([]int, rank)
	copy(outputDims, baseShape.Dimensions)
	outputDims[adjustedAxis] = concatDim
	output := FromShape(shapes.Make(baseShape.DType, outputDims...))
	if output.Size() == 0 {
		return output
	}

	innerSize := 1
	for _, d := range outputDims[adjustedAxis+1:] {
		innerSize *= d
	}
	outerSize := 1
	for _, d := range outputDims[:adjustedAxis] {
		outerSize *= d
	}
	outputBlockSize := concatDim * innerSize
	dstOffsetIdx := 0
	for _, t := range operands {
		operandBlockSize := t.shape.Dimensions[adjustedAxis] * innerSize
		for outerIdx := 0; outerIdx < outerSize; outerIdx++ {
			copyFlatRange(output, t,
				outerIdx*outputBlockSize+dstOffsetIdx, outerIdx*operandBlockSize, operandBlockSize)
		}
		dstOffsetIdx += operandBlockSize
	}
	return output
}

// copyFlatRange copies n flat elements from src (starting at srcStartIdx) into dst
// (starting at dstStartIdx). Both tensors must have the same dtype.
func copyFlatRange(dst, src *Tensor, dstStartIdx, srcStartIdx, n int) {
	if n == 0 {
		return
	}
	dstV := reflect.ValueOf(dst.flat).Slice(dstStartIdx, dstStartIdx+n)
	srcV := reflect.ValueOf(src.flat).Slice(srcStartIdx, srcStartIdx+n)
	reflect.Copy(dstV, srcV)
}
