// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"slices"

	"github.com/gomlx/einsum/shapes"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// ReduceSum sums the values of t across the given axes, which are removed from the
// output shape. Axes can be negative, in which case they count from the end.
//
// If no axes are given, it sums across all axes and returns a scalar.
//
// Reducing an axis of dimension 0 yields the sum of no elements, that is, zero.
func ReduceSum(t *Tensor, reduceAxes ...int) *Tensor {
	t.AssertValid()
	if len(reduceAxes) == 0 {
		reduceAxes = make([]int, t.Rank())
		for axis := range reduceAxes {
			reduceAxes[axis] = axis
		}
	} else {
		reduceAxes = adjustAxesToRank(t.Rank(), reduceAxes, "reduceAxes")
		slices.Sort(reduceAxes)
		for ii := 1; ii < len(reduceAxes); ii++ {
			if reduceAxes[ii] == reduceAxes[ii-1] {
				exceptions.Panicf("ReduceSum: axis %d appears more than once in reduceAxes", reduceAxes[ii])
			}
		}
	}

	reduced := make([]bool, t.Rank())
	for _, axis := range reduceAxes {
		reduced[axis] = true
	}
	outputDims := make([]int, 0, t.Rank()-len(reduceAxes))
	for axis, dim := range t.shape.Dimensions {
		if !reduced[axis] {
			outputDims = append(outputDims, dim)
		}
	}
	output := FromShape(shapes.Make(t.DType(), outputDims...))
	if t.Size() == 0 || output.Size() == 0 {
		// Sum of an empty set of elements: the output is left as zeros.
		return output
	}

	switch t.DType() {
	case dtypes.Int8:
		reduceSumGeneric[int8](t, output, reduced)
	case dtypes.Int16:
		reduceSumGeneric[int16](t, output, reduced)
	case dtypes.Int32:
		reduceSumGeneric[int32](t, output, reduced)
	case dtypes.Int64:
		reduceSumGeneric[int64](t, output, reduced)
	case dtypes.Uint8:
		reduceSumGeneric[uint8](t, output, reduced)
	case dtypes.Uint16:
		reduceSumGeneric[uint16](t, output, reduced)
	case dtypes.Uint32:
		reduceSumGeneric[uint32](t, output, reduced)
	case dtypes.Uint64:
		reduceSumGeneric[uint64](t, output, reduced)
	case dtypes.Float32:
		reduceSumGeneric[float32](t, output, reduced)
	case dtypes.Float64:
		reduceSumGeneric[float64](t, output, reduced)
	case dtypes.Float16:
		reduceSumFloat16(t, output, reduced)
	case dtypes.BFloat16:
		reduceSumBFloat16(t, output, reduced)
	default:
		exceptions.Panicf("ReduceSum: unsupported dtype %s", t.DType())
	}
	return output
}

// reduceOutputIterator returns an axesIterator over the input dimensions that yields,
// for each input element in row-major order, the flat index of the output element it
// accumulates into: reduced axes contribute stride 0.
func reduceOutputIterator(input, output *Tensor, reduced []bool) *axesIterator {
	perAxisStrides := make([]int, input.Rank())
	outputStrides := output.shape.Strides()
	outputAxis := 0
	for axis := range perAxisStrides {
		if reduced[axis] {
			continue
		}
		perAxisStrides[axis] = outputStrides[outputAxis]
		outputAxis++
	}
	return newAxesIterator(input.shape.Dimensions, perAxisStrides)
}

func reduceSumGeneric[T PODNumericConstraints](input, output *Tensor, reduced []bool) {
	inputFlat := input.flat.([]T)
	outputFlat := output.flat.([]T)
	it := reduceOutputIterator(input, output, reduced)
	for _, value := range inputFlat {
		outputFlat[it.next()] += value
	}
}

// ReduceAndKeep applies the given reduction function to the given axes, but instead of
// removing them it restores them with dimension 1, so the output has the same rank as t.
func ReduceAndKeep(t *Tensor, reduceFn func(t *Tensor, reduceAxes ...int) *Tensor, reduceAxes ...int) *Tensor {
	t.AssertValid()
	rank := t.Rank()
	reduceAxes = adjustAxesToRank(rank, reduceAxes, "reduceAxes")
	slices.Sort(reduceAxes)
	reduced := reduceFn(t, reduceAxes...)
	keptDims := slices.Clone(t.shape.Dimensions)
	if len(reduceAxes) == 0 {
		// Reduction across all axes.
		for axis := range keptDims {
			keptDims[axis] = 1
		}
	} else {
		for _, axis := range reduceAxes {
			keptDims[axis] = 1
		}
	}
	return Reshape(reduced, keptDims...)
}
