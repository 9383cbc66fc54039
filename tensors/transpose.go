package tensors

import (
	"github.com/gomlx/einsum/shapes"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/x448/float16"
)

// TransposeAllAxes returns t with its axes permuted with the given permutation, so
// ∀ i, 0 ≤ i < rank ⇒ input_dimensions[permutations[i]] = output_dimensions[i].
//
// There must be one permutation entry per axis of t.
func TransposeAllAxes(t *Tensor, permutations ...int) *Tensor {
	t.AssertValid()
	rank := t.Rank()
	if len(permutations) != rank {
		exceptions.Panicf("TransposeAllAxes(t, %v): there must be one permutation per axis of t, but t rank is %d",
			permutations, rank)
	}
	adjusted := adjustAxesToRank(rank, permutations, "TransposeAllAxes' permutations")
	used := make([]bool, rank)
	for _, axis := range adjusted {
		if used[axis] {
			exceptions.Panicf("TransposeAllAxes(t, %v): axis %d appears more than once", permutations, axis)
		}
		used[axis] = true
	}

	newDims := make([]int, rank)
	for ii, axis := range adjusted {
		newDims[ii] = t.shape.Dim(axis)
	}
	output := FromShape(shapes.Make(t.shape.DType, newDims...))
	if output.Size() == 0 {
		return output
	}

	switch t.DType() {
	case dtypes.Int8:
		transposeGeneric[int8](t, output, adjusted)
	case dtypes.Int16:
		transposeGeneric[int16](t, output, adjusted)
	case dtypes.Int32:
		transposeGeneric[int32](t, output, adjusted)
	case dtypes.Int64:
		transposeGeneric[int64](t, output, adjusted)
	case dtypes.Uint8:
		transposeGeneric[uint8](t, output, adjusted)
	case dtypes.Uint16:
		transposeGeneric[uint16](t, output, adjusted)
	case dtypes.Uint32:
		transposeGeneric[uint32](t, output, adjusted)
	case dtypes.Uint64:
		transposeGeneric[uint64](t, output, adjusted)
	case dtypes.Float32:
		transposeGeneric[float32](t, output, adjusted)
	case dtypes.Float64:
		transposeGeneric[float64](t, output, adjusted)
	case dtypes.Float16:
		transposeGeneric[float16.Float16](t, output, adjusted)
	case dtypes.BFloat16:
		transposeGeneric[bfloat16.BFloat16](t, output, adjusted)
	default:
		exceptions.Panicf("TransposeAllAxes: unsupported dtype %s", t.DType())
	}
	return output
}

// transposeGeneric iterates the input sequentially, scattering each value to its
// transposed position in the output.
func transposeGeneric[T SupportedTypesConstraints](input, output *Tensor, permutations []int) {
	inputFlat := input.flat.([]T)
	outputFlat := output.flat.([]T)

	// The stride (in the output buffer) of each input axis.
	rank := input.Rank()
	outputStrides := output.shape.Strides()
	perAxisStrides := make([]int, rank)
	for ii, axis := range permutations {
		perAxisStrides[axis] = outputStrides[ii]
	}

	it := newAxesIterator(input.shape.Dimensions, perAxisStrides)
	for _, value := range inputFlat {
		outputFlat[it.next()] = value
	}
}
