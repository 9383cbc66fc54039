package tensors

import (
	"github.com/gomlx/einsum/shapes"
	"github.com/gomlx/exceptions"
)

// broadcastIterator allows one to iterate over the flat indices of a tensor that is being
// broadcast (some dimensions of size 1 will grow).
//
// Each Next() call returns the flat index on the "from" tensor for the next element of
// the (larger) "to" tensor, iterated in row-major order.
type broadcastIterator struct {
	flatIdx     int
	perAxesIdx  []int
	targetDims  []int
	isBroadcast []bool
	strides     []int
}

// newBroadcastIterator returns an iterator over the flat indices of a tensor that is
// being broadcast to toShape.
//
// Pre-requisite: fromShape.Rank() == toShape.Rank(), and each axis either matches or is 1
// on fromShape.
func newBroadcastIterator(fromShape, toShape shapes.Shape) *broadcastIterator {
	rank := fromShape.Rank()
	if rank != toShape.Rank() {
		exceptions.Panicf("broadcastIterator: rank mismatch fromShape=%s, toShape=%s", fromShape, toShape)
	}
	bi := &broadcastIterator{
		perAxesIdx:  make([]int, rank),
		targetDims:  toShape.Dimensions,
		isBroadcast: make([]bool, rank),
		strides:     make([]int, rank),
	}
	stride := 1
	for axis := rank - 1; axis >= 0; axis-- {
		bi.strides[axis] = stride
		stride *= fromShape.Dimensions[axis]
		bi.isBroadcast[axis] = fromShape.Dimensions[axis] != toShape.Dimensions[axis]
	}
	return bi
}

func (bi *broadcastIterator) Next() (flatIdx int) {
	flatIdx = bi.flatIdx
	bi.flatIdx++
	rank := len(bi.perAxesIdx)
	for axis := rank - 1; axis >= 0; axis-- {
		bi.perAxesIdx[axis]++
		if bi.perAxesIdx[axis] < bi.targetDims[axis] {
			if bi.isBroadcast[axis] {
				// If we are broadcasting on this axis, we need to go back and repeat the same slice of the tensor.
				bi.flatIdx -= bi.strides[axis]
			}
			break
		}
		bi.perAxesIdx[axis] = 0
	}
	return
}

// axesIterator walks the indices of a shape in row-major order while maintaining a flat
// index into a differently laid out buffer, given the stride that each axis has there.
//
// It drives the transpose kernel (iterating the input, the flat index points into the
// output), the diagonal kernel (iterating the output, the flat index points into the
// input) and the reduce kernels (iterating the input, the flat index points into the
// output, with stride 0 on the reduced axes).
type axesIterator struct {
	perAxisIdx     []int
	dimensions     []int
	perAxisStrides []int
	flatIdx        int
}

func newAxesIterator(dimensions []int, perAxisStrides []int) *axesIterator {
	return &axesIterator{
		perAxisIdx:     make([]int, len(dimensions)),
		dimensions:     dimensions,
		perAxisStrides: perAxisStrides,
	}
}

func (it *axesIterator) next() (flatIdx int) {
	flatIdx = it.flatIdx
	for axis := len(it.dimensions) - 1; axis >= 0; axis-- {
		it.perAxisIdx[axis]++
		it.flatIdx += it.perAxisStrides[axis]
		if it.perAxisIdx[axis] < it.dimensions[axis] {
			break
		}
		// This axis rolled over, rewind its contribution and move to the next one.
		it.perAxisIdx[axis] = 0
		it.flatIdx -= it.dimensions[axis] * it.perAxisStrides[axis]
	}
	return
}
