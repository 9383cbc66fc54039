package tensors

import (
	"sync"

	"github.com/gomlx/einsum/shapes"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// This file implements the elementwise binary operations.
//
// Operands must have the same dtype and either the same rank -- in which case each axis
// must have the same dimension on both sides, or dimension 1 on one of them (which is
// then broadcast) -- or one of the operands must be a scalar, which broadcasts to the
// whole shape of the other.

// binaryOperandsAndOutput validates the operands, promotes a scalar side to the required
// rank and allocates the (zero-initialized) output.
func binaryOperandsAndOutput(opName string, lhs, rhs *Tensor) (lhsB, rhsB, output *Tensor) {
	lhs.AssertValid()
	rhs.AssertValid()
	if lhs.DType() != rhs.DType() {
		exceptions.Panicf("%s: operands have different dtypes (%s and %s)", opName, lhs.DType(), rhs.DType())
	}
	if lhs.Rank() != rhs.Rank() {
		if lhs.IsScalar() {
			lhs = scalarToRank(lhs, rhs.Rank())
		} else if rhs.IsScalar() {
			rhs = scalarToRank(rhs, lhs.Rank())
		} else {
			exceptions.Panicf("%s: operands must have the same rank, or one of them must be a scalar, got shapes %s and %s",
				opName, lhs.shape, rhs.shape)
		}
	}
	dims := make([]int, lhs.Rank())
	for axis := range dims {
		lhsDim, rhsDim := lhs.shape.Dimensions[axis], rhs.shape.Dimensions[axis]
		switch {
		case lhsDim == rhsDim:
			dims[axis] = lhsDim
		case lhsDim == 1:
			dims[axis] = rhsDim
		case rhsDim == 1:
			dims[axis] = lhsDim
		default:
			exceptions.Panicf("%s: shapes %s and %s are not broadcast-compatible on axis %d",
				opName, lhs.shape, rhs.shape, axis)
		}
	}
	output = FromShape(shapes.Make(lhs.DType(), dims...))
	return lhs, rhs, output
}

// scalarToRank reshapes a scalar to the given rank, with all dimensions set to 1.
func scalarToRank(t *Tensor, rank int) *Tensor {
	ones := make([]int, rank)
	for ii := range ones {
		ones[ii] = 1
	}
	return t.withDimensions(ones...)
}

// Mul returns the elementwise multiplication of lhs and rhs, with broadcasting of
// size-1 axes (and of scalars).
func Mul(lhs, rhs *Tensor) *Tensor {
	lhs, rhs, output := binaryOperandsAndOutput("Mul", lhs, rhs)
	if output.Size() == 0 {
		return output
	}
	switch output.DType() {
	case dtypes.Int8:
		mulGeneric[int8](lhs, rhs, output)
	case dtypes.Int16:
		mulGeneric[int16](lhs, rhs, output)
	case dtypes.Int32:
		mulGeneric[int32](lhs, rhs, output)
	case dtypes.Int64:
		mulGeneric[int64](lhs, rhs, output)
	case dtypes.Uint8:
		mulGeneric[uint8](lhs, rhs, output)
	case dtypes.Uint16:
		mulGeneric[uint16](lhs, rhs, output)
	case dtypes.Uint32:
		mulGeneric[uint32](lhs, rhs, output)
	case dtypes.Uint64:
		mulGeneric[uint64](lhs, rhs, output)
	case dtypes.Float32:
		mulGeneric[float32](lhs, rhs, output)
	case dtypes.Float64:
		mulGeneric[float64](lhs, rhs, output)
	case dtypes.Float16:
		mulFloat16(lhs, rhs, output)
	case dtypes.BFloat16:
		mulBFloat16(lhs, rhs, output)
	default:
		exceptions.Panicf("Mul: unsupported dtype %s", output.DType())
	}
	return output
}

// Add returns the elementwise addition of lhs and rhs, with broadcasting of size-1 axes
// (and of scalars).
func Add(lhs, rhs *Tensor) *Tensor {
	lhs, rhs, output := binaryOperandsAndOutput("Add", lhs, rhs)
	if output.Size() == 0 {
		return output
	}
	switch output.DType() {
	case dtypes.Int8:
		addGeneric[int8](lhs, rhs, output)
	case dtypes.Int16:
		addGeneric[int16](lhs, rhs, output)
	case dtypes.Int32:
		addGeneric[int32](lhs, rhs, output)
	case dtypes.Int64:
		addGeneric[int64](lhs, rhs, output)
	case dtypes.Uint8:
		addGeneric[uint8](lhs, rhs, output)
	case dtypes.Uint16:
		addGeneric[uint16](lhs, rhs, output)
	case dtypes.Uint32:
		addGeneric[uint32](lhs, rhs, output)
	case dtypes.Uint64:
		addGeneric[uint64](lhs, rhs, output)
	case dtypes.Float32:
		addGeneric[float32](lhs, rhs, output)
	case dtypes.Float64:
		addGeneric[float64](lhs, rhs, output)
	case dtypes.Float16:
		addFloat16(lhs, rhs, output)
	case dtypes.BFloat16:
		addBFloat16(lhs, rhs, output)
	default:
		exceptions.Panicf("Add: unsupported dtype %s", output.DType())
	}
	return output
}

// minParallelizeChunk is the minimum number of elements to parallelize over.
const minParallelizeChunk = 4096

// elementwiseChunked applies op over same-length flat slices, splitting the work across
// the workers pool when there is enough of it. Each chunk writes a disjoint range of
// outputFlat, so the result doesn't depend on the parallelism.
func elementwiseChunked[T PODNumericConstraints](lhsFlat, rhsFlat, outputFlat []T, op func(lhs, rhs, output []T)) {
	n := len(outputFlat)
	if !workers.IsEnabled() || n <= minParallelizeChunk {
		op(lhsFlat, rhsFlat, outputFlat)
		return
	}
	var wg sync.WaitGroup
	for ii := 0; ii < n; ii += minParallelizeChunk {
		iiEnd := min(ii+minParallelizeChunk, n)
		wg.Add(1)
		workers.WaitToStart(func() {
			op(lhsFlat[ii:iiEnd], rhsFlat[ii:iiEnd], outputFlat[ii:iiEnd])
			wg.Done()
		})
	}
	wg.Wait()
}

func mulChunk[T PODNumericConstraints](lhsFlat, rhsFlat, outputFlat []T) {
	for ii := range outputFlat {
		outputFlat[ii] = lhsFlat[ii] * rhsFlat[ii]
	}
}

func addChunk[T PODNumericConstraints](lhsFlat, rhsFlat, outputFlat []T) {
	for ii := range outputFlat {
		outputFlat[ii] = lhsFlat[ii] + rhsFlat[ii]
	}
}

func mulGeneric[T PODNumericConstraints](lhs, rhs, output *Tensor) {
	lhsFlat := lhs.flat.([]T)
	rhsFlat := rhs.flat.([]T)
	outputFlat := output.flat.([]T)
	if lhs.shape.EqualDimensions(rhs.shape) {
		// No broadcasting involved.
		elementwiseChunked(lhsFlat, rhsFlat, outputFlat, mulChunk[T])
		return
	}
	lhsIter := newBroadcastIterator(lhs.shape, output.shape)
	rhsIter := newBroadcastIterator(rhs.shape, output.shape)
	for ii := range outputFlat {
		outputFlat[ii] = lhsFlat[lhsIter.Next()] * rhsFlat[rhsIter.Next()]
	}
}

func addGeneric[T PODNumericConstraints](lhs, rhs, output *Tensor) {
	lhsFlat := lhs.flat.([]T)
	rhsFlat := rhs.flat.([]T)
	outputFlat := output.flat.([]T)
	if lhs.shape.EqualDimensions(rhs.shape) {
		// No broadcasting involved.
		elementwiseChunked(lhsFlat, rhsFlat, outputFlat, addChunk[T])
		return
	}
	lhsIter := newBroadcastIterator(lhs.shape, output.shape)
	rhsIter := newBroadcastIterator(rhs.shape, output.shape)
	for ii := range outputFlat {
		outputFlat[ii] = lhsFlat[lhsIter.Next()] + rhsFlat[rhsIter.Next()]
	}
}
