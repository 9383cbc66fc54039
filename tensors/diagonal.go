package tensors

import (
	"github.com/gomlx/einsum/shapes"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"

	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/x448/float16"
)

// Diagonal extracts the main diagonal over the two given axes, which must have the same
// dimension. Both axes are removed from the shape and a new axis with the diagonal, of
// the same dimension, is appended at the end.
//
// Example: a [3, 5, 3] tensor with axis1=0 and axis2=2 yields a [5, 3] tensor with
// output[j, i] = input[i, j, i].
func Diagonal(t *Tensor, axis1, axis2 int) *Tensor {
	t.AssertValid()
	axis1 = adjustAxisToRank(axis1, t.Rank(), "axis1")
	axis2 = adjustAxisToRank(axis2, t.Rank(), "axis2")
	if axis1 == axis2 {
		exceptions.Panicf("Diagonal: axis1 and axis2 must be different, got both = %d for shape %s", axis1, t.shape)
	}
	diagDim := t.shape.Dimensions[axis1]
	if diagDim != t.shape.Dimensions[axis2] {
		exceptions.Panicf("Diagonal: axes %d and %d must have the same dimension, got shape %s", axis1, axis2, t.shape)
	}

	outputDims := make([]int, 0, t.Rank()-1)
	for axis, dim := range t.shape.Dimensions {
		if axis == axis1 || axis == axis2 {
			continue
		}
		outputDims = append(outputDims, dim)
	}
	outputDims = append(outputDims, diagDim)
	output := FromShape(shapes.Make(t.DType(), outputDims...))
	if output.Size() == 0 {
		return output
	}

	// Walking the output in row-major order, the corresponding input flat index moves by
	// the input stride of each kept axis, and by the sum of both input strides for the
	// diagonal axis.
	inputStrides := t.shape.Strides()
	perAxisStrides := make([]int, 0, len(outputDims))
	for axis := range t.shape.Dimensions {
		if axis == axis1 || axis == axis2 {
			continue
		}
		perAxisStrides = append(perAxisStrides, inputStrides[axis])
	}
	perAxisStrides = append(perAxisStrides, inputStrides[axis1]+inputStrides[axis2])

	switch t.DType() {
	case dtypes.Int8:
		diagonalGeneric[int8](t, output, perAxisStrides)
	case dtypes.Int16:
		diagonalGeneric[int16](t, output, perAxisStrides)
	case dtypes.Int32:
		diagonalGeneric[int32](t, output, perAxisStrides)
	case dtypes.Int64:
		diagonalGeneric[int64](t, output, perAxisStrides)
	case dtypes.Uint8:
		diagonalGeneric[uint8](t, output, perAxisStrides)
	case dtypes.Uint16:
		diagonalGeneric[uint16](t, output, perAxisStrides)
	case dtypes.Uint32:
		diagonalGeneric[uint32](t, output, perAxisStrides)
	case dtypes.Uint64:
		diagonalGeneric[uint64](t, output, perAxisStrides)
	case dtypes.Float32:
		diagonalGeneric[float32](t, output, perAxisStrides)
	case dtypes.Float64:
		diagonalGeneric[float64](t, output, perAxisStrides)
	case dtypes.Float16:
		diagonalGeneric[float16.Float16](t, output, perAxisStrides)
	case dtypes.BFloat16:
		diagonalGeneric[bfloat16.BFloat16](t, output, perAxisStrides)
	default:
		exceptions.Panicf("Diagonal: unsupported dtype %s", t.DType())
	}
	return output
}

func diagonalGeneric[T SupportedTypesConstraints](input, output *Tensor, perAxisStrides []int) {
	inputFlat := input.flat.([]T)
	outputFlat := output.flat.([]T)
	it := newAxesIterator(output.shape.Dimensions, perAxisStrides)
	for ii := range outputFlat {
		outputFlat[ii] = inputFlat[it.next()]
	}
}
