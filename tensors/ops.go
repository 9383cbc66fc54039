// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"slices"

	"github.com/gomlx/einsum/shapes"
	"github.com/gomlx/exceptions"
)

// adjustAxisToRank returns a positive axis, adjusting negative numbers to count from the
// end -- so axis=-1 refers to the last axis. It panics if out-of-range.
func adjustAxisToRank(axis, rank int, paramName string) int {
	adjusted := axis
	if adjusted < 0 {
		adjusted += rank
	}
	if adjusted < 0 || adjusted >= rank {
		exceptions.Panicf("%s: axis %d is out-of-range for rank %d", paramName, axis, rank)
	}
	return adjusted
}

// adjustAxesToRank not-inplace, it returns an adjusted copy of the given axesWithNegatives.
// An axis set to -1 is converted to rank - 1.
// It panics if any of the axes is out-of-range for the given rank.
func adjustAxesToRank(rank int, axesWithNegatives []int, paramName string) []int {
	axes := slices.Clone(axesWithNegatives)
	for ii := range axes {
		if axes[ii] < 0 {
			axes[ii] = rank + axes[ii]
		}
		if axes[ii] < 0 || axes[ii] >= rank {
			exceptions.Panicf("%s's axis #%d of %v = %v given is out-of-range for rank %d",
				paramName, ii, axesWithNegatives, axesWithNegatives[ii], rank)
		}
	}
	return axes
}

// Reshape returns t reshaped to the given dimensions. The total size must not change.
// The data is copied, t is left untouched.
func Reshape(t *Tensor, dimensions ...int) *Tensor {
	t.AssertValid()
	newShape := shapes.Make(t.shape.DType, dimensions...)
	if newShape.Size() != t.Size() {
		exceptions.Panicf("Reshape: shapes (t.shape=%s, new shape=%s) have different total sizes (from %d to %d), reshape not possible",
			t.shape, newShape, t.Size(), newShape.Size())
	}
	return t.withDimensions(dimensions...)
}

// InsertAxes returns t with new axes of dimension 1 inserted just before the axes given --
// beforeAxes point to positions on the original tensor t, and they can be repeated, in
// case one wants to insert more than one new axis in the given position.
//
// If beforeAxes[ii] < 0, then they are counted from the end -- -1 represents a new axis
// after the end of the original shape.
//
// The rank is increased by len(beforeAxes); the total size and contents are unchanged.
//
// See also ExpandAxes, where the new axes are given as positions in the target shape.
func InsertAxes(t *Tensor, beforeAxes ...int) *Tensor {
	t.AssertValid()
	if len(beforeAxes) == 0 {
		return t.Clone()
	}

	fromRank := t.Rank()
	toRank := fromRank + len(beforeAxes)

	// Copy axes, so we don't change the callers' values, and replace negatives.
	newAxes := slices.Clone(beforeAxes)
	for ii, axis := range newAxes {
		if axis < 0 {
			newAxes[ii] = fromRank + 1 + axis
		}
		if newAxes[ii] < 0 || newAxes[ii] > fromRank {
			exceptions.Panicf("InsertAxes: axis %d is out-of-range for rank %d", beforeAxes[ii], fromRank)
		}
	}
	slices.Sort(newAxes)

	// Create new target dimensions.
	toDims := make([]int, toRank)
	iiOriginal, iiNewAxes := 0, 0
	for ii := range toDims {
		if iiNewAxes < len(newAxes) && newAxes[iiNewAxes] <= iiOriginal || iiOriginal == fromRank {
			toDims[ii] = 1
			iiNewAxes++
		} else {
			toDims[ii] = t.shape.Dimensions[iiOriginal]
			iiOriginal++
		}
	}
	return t.withDimensions(toDims...)
}

// ExpandAxes returns t with new axes of dimension 1 at the positions given by newAxes --
// the positions are given at the target shape.
//
// If newAxes[ii] < 0, then they are counted from the end of the new shape -- -1 represents
// the last axis in the new shape.
//
// There should be no repeated values in newAxes -- since they represent positions in the
// returned shape, it wouldn't make sense.
//
// See also InsertAxes, where the new axes are given as positions in the original shape.
func ExpandAxes(t *Tensor, newAxes ...int) *Tensor {
	t.AssertValid()
	if len(newAxes) == 0 {
		return t.Clone()
	}

	fromRank := t.Rank()
	toRank := fromRank + len(newAxes)

	adjustedNewAxes := adjustAxesToRank(toRank, newAxes, "ExpandAxes' newAxes")
	slices.Sort(adjustedNewAxes)
	for ii := range adjustedNewAxes {
		if ii > 0 && adjustedNewAxes[ii] == adjustedNewAxes[ii-1] {
			exceptions.Panicf("ExpandAxes(t, newAxes=%v) got repeated new axis %d which doesn't make sense -- likely an error",
				newAxes, adjustedNewAxes[ii])
		}
	}

	toDims := make([]int, toRank)
	iiOriginal, iiNewAxes := 0, 0
	for axis := range toDims {
		if iiNewAxes < len(adjustedNewAxes) && adjustedNewAxes[iiNewAxes] == axis {
			toDims[axis] = 1
			iiNewAxes++
		} else {
			toDims[axis] = t.shape.Dimensions[iiOriginal]
			iiOriginal++
		}
	}
	return t.withDimensions(toDims...)
}

// ExpandLeftToRank prepends axes of dimension 1 to t, until it reaches rank newRank.
func ExpandLeftToRank(t *Tensor, newRank int) *Tensor {
	t.AssertValid()
	if newRank < t.Rank() {
		exceptions.Panicf("ExpandLeftToRank(newRank=%d), but t already has rank %d", newRank, t.Rank())
	}
	if newRank == t.Rank() {
		return t.Clone()
	}
	newDims := make([]int, 0, newRank)
	for ii := 0; ii < newRank-t.Rank(); ii++ {
		newDims = append(newDims, 1)
	}
	newDims = append(newDims, t.shape.Dimensions...)
	return t.withDimensions(newDims...)
}

// Squeeze removes axes of dimension 1. If axes is not set, all axes of dimension 1 are
// removed. Otherwise, only the provided axes are removed -- and it panics if any of the
// given axes is not of dimension 1.
//
// If all dimensions are removed, it returns a scalar.
func Squeeze(t *Tensor, axes ...int) *Tensor {
	t.AssertValid()
	// Squeezed axes are marked with -1: zero is a valid dimension here.
	newDims := slices.Clone(t.shape.Dimensions)
	if len(axes) == 0 {
		for ii, dim := range newDims {
			if dim == 1 {
				newDims[ii] = -1
			}
		}
	} else {
		for axisIdx, axis := range axes {
			adjusted := adjustAxisToRank(axis, t.Rank(), "Squeeze")
			if newDims[adjusted] == -1 {
				exceptions.Panicf("Squeeze() for t.shape=%s, axis %d was selected twice!?", t.shape, axes[axisIdx])
			}
			if newDims[adjusted] != 1 {
				exceptions.Panicf("Squeeze() for t.shape=%s, axis %d does not have dimension 1", t.shape, axes[axisIdx])
			}
			newDims[adjusted] = -1
		}
	}

	tgtAxisIdx := 0
	for _, dim := range newDims {
		if dim >= 0 {
			newDims[tgtAxisIdx] = dim
			tgtAxisIdx++
		}
	}
	newDims = newDims[:tgtAxisIdx] // May reduce to a scalar.
	return t.withDimensions(newDims...)
}
