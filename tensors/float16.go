package tensors

// Half-precision (Float16 and BFloat16) kernels: there is no native Go arithmetic for
// these dtypes, so each operation converts to float32, computes and converts back.

import (
	"github.com/gomlx/einsum/shapes"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/x448/float16"
)

func binaryFloat16(opFn func(a, b float32) float32, lhs, rhs, output *Tensor) {
	lhsFlat := lhs.flat.([]float16.Float16)
	rhsFlat := rhs.flat.([]float16.Float16)
	outputFlat := output.flat.([]float16.Float16)
	if lhs.shape.EqualDimensions(rhs.shape) {
		// Exact same shapes, no broadcasting.
		for ii := range outputFlat {
			outputFlat[ii] = float16.Fromfloat32(opFn(lhsFlat[ii].Float32(), rhsFlat[ii].Float32()))
		}
		return
	}
	lhsIter := newBroadcastIterator(lhs.shape, output.shape)
	rhsIter := newBroadcastIterator(rhs.shape, output.shape)
	for ii := range outputFlat {
		a := lhsFlat[lhsIter.Next()].Float32()
		b := rhsFlat[rhsIter.Next()].Float32()
		outputFlat[ii] = float16.Fromfloat32(opFn(a, b))
	}
}

func binaryBFloat16(opFn func(a, b float32) float32, lhs, rhs, output *Tensor) {
	lhsFlat := lhs.flat.([]bfloat16.BFloat16)
	rhsFlat := rhs.flat.([]bfloat16.BFloat16)
	outputFlat := output.flat.([]bfloat16.BFloat16)
	if lhs.shape.EqualDimensions(rhs.shape) {
		// Exact same shapes, no broadcasting.
		for ii := range outputFlat {
			outputFlat[ii] = bfloat16.FromFloat32(opFn(lhsFlat[ii].Float32(), rhsFlat[ii].Float32()))
		}
		return
	}
	lhsIter := newBroadcastIterator(lhs.shape, output.shape)
	rhsIter := newBroadcastIterator(rhs.shape, output.shape)
	for ii := range outputFlat {
		a := lhsFlat[lhsIter.Next()].Float32()
		b := rhsFlat[rhsIter.Next()].Float32()
		outputFlat[ii] = bfloat16.FromFloat32(opFn(a, b))
	}
}

func mulFloat16(lhs, rhs, output *Tensor) {
	binaryFloat16(func(a, b float32) float32 { return a * b }, lhs, rhs, output)
}

func mulBFloat16(lhs, rhs, output *Tensor) {
	binaryBFloat16(func(a, b float32) float32 { return a * b }, lhs, rhs, output)
}

func addFloat16(lhs, rhs, output *Tensor) {
	binaryFloat16(func(a, b float32) float32 { return a + b }, lhs, rhs, output)
}

func addBFloat16(lhs, rhs, output *Tensor) {
	binaryBFloat16(func(a, b float32) float32 { return a + b }, lhs, rhs, output)
}

func reduceSumFloat16(input, output *Tensor, reduced []bool) {
	inputFlat := input.flat.([]float16.Float16)
	outputFlat := output.flat.([]float16.Float16)
	it := reduceOutputIterator(input, output, reduced)
	for _, value := range inputFlat {
		idx := it.next()
		outputFlat[idx] = float16.Fromfloat32(outputFlat[idx].Float32() + value.Float32())
	}
}

func reduceSumBFloat16(input, output *Tensor, reduced []bool) {
	inputFlat := input.flat.([]bfloat16.BFloat16)
	outputFlat := output.flat.([]bfloat16.BFloat16)
	it := reduceOutputIterator(input, output, reduced)
	for _, value := range inputFlat {
		idx := it.next()
		outputFlat[idx] = bfloat16.FromFloat32(outputFlat[idx].Float32() + value.Float32())
	}
}

// toFloat32 converts a Float16 or BFloat16 tensor to Float32.
func toFloat32(t *Tensor) *Tensor {
	output := FromShape(shapes.Make(dtypes.Float32, t.shape.Dimensions...))
	outputFlat := output.flat.([]float32)
	switch t.DType() {
	case dtypes.Float16:
		for ii, value := range t.flat.([]float16.Float16) {
			outputFlat[ii] = value.Float32()
		}
	case dtypes.BFloat16:
		for ii, value := range t.flat.([]bfloat16.BFloat16) {
			outputFlat[ii] = value.Float32()
		}
	default:
		exceptions.Panicf("toFloat32: dtype %s not supported", t.DType())
	}
	return output
}

// fromFloat32 converts a Float32 tensor to the given half-precision dtype.
func fromFloat32(t *Tensor, dtype dtypes.DType) *Tensor {
	inputFlat := t.flat.([]float32)
	output := FromShape(shapes.Make(dtype, t.shape.Dimensions...))
	switch dtype {
	case dtypes.Float16:
		outputFlat := output.flat.([]float16.Float16)
		for ii, value := range inputFlat {
			outputFlat[ii] = float16.Fromfloat32(value)
		}
	case dtypes.BFloat16:
		outputFlat := output.flat.([]bfloat16.BFloat16)
		for ii, value := range inputFlat {
			outputFlat[ii] = bfloat16.FromFloat32(value)
		}
	default:
		exceptions.Panicf("fromFloat32: dtype %s not supported", dtype)
	}
	return output
}

// toFloat64Slice returns the tensor's flat values converted to float64. Only defined for
// the float dtypes.
func toFloat64Slice(t *Tensor) []float64 {
	flat := make([]float64, t.Size())
	switch t.DType() {
	case dtypes.Float16:
		for ii, value := range t.flat.([]float16.Float16) {
			flat[ii] = float64(value.Float32())
		}
	case dtypes.BFloat16:
		for ii, value := range t.flat.([]bfloat16.BFloat16) {
			flat[ii] = float64(value.Float32())
		}
	case dtypes.Float32:
		for ii, value := range t.flat.([]float32) {
			flat[ii] = float64(value)
		}
	case dtypes.Float64:
		copy(flat, t.flat.([]float64))
	default:
		exceptions.Panicf("toFloat64Slice: dtype %s is not a float dtype", t.DType())
	}
	return flat
}
