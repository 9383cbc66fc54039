// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tensors implements a dense, row-major, CPU-resident Tensor and the primitive
// operations needed by tensor-contraction pipelines: axis permutation, reshaping,
// broadcasting multiply/add, reductions, batched matrix multiplication, diagonal
// extraction, axis slicing and concatenation.
//
// All operations are pure: they never mutate their inputs and return newly allocated
// tensors. That makes every function in this package safe for concurrent use. The
// larger kernels split their work across a bounded pool of goroutines; see
// SetMaxParallelism to control (or disable) the parallelism.
//
// The underlying data is stored as a flat Go slice of the dtype ("row-major" or
// "C order"): the last axis is the fastest-changing one. Supported dtypes are the
// signed and unsigned integers, float32, float64, and the 16-bit floats Float16
// (github.com/x448/float16) and BFloat16 (github.com/gomlx/gopjrt/dtypes/bfloat16).
// Arithmetic on the 16-bit floats is performed in float32 and rounded back on store.
//
// Operations validate their inputs eagerly and panic with a descriptive error built
// with github.com/gomlx/exceptions -- use exceptions.TryCatch to convert the panics
// to errors where that is preferable.
package tensors

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/gomlx/einsum/internal/workerspool"
	"github.com/gomlx/einsum/shapes"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// workers bounds the goroutines the compute kernels (BatchedMatMul, Mul, Add) use to
// split large amounts of work.
var workers = workerspool.New()

// SetMaxParallelism limits the number of goroutines the compute kernels use.
// Zero disables parallelism, -1 makes it unlimited. The default is runtime.NumCPU().
func SetMaxParallelism(maxParallelism int) {
	workers.SetMaxParallelism(maxParallelism)
}

// Tensor holds a dense multi-dimensional array of one of the supported dtypes.
//
// The zero value of a Tensor is invalid: use FromShape, FromValue,
// FromFlatDataAndDimensions or one of the operations in this package to build one.
type Tensor struct {
	shape shapes.Shape
	flat  any // []T with T matching shape.DType.
}

// AssertValid panics if t is nil or doesn't hold data.
func (t *Tensor) AssertValid() {
	if t == nil {
		exceptions.Panicf("tensors.Tensor is nil")
	}
	if !t.shape.Ok() {
		exceptions.Panicf("tensors.Tensor shape is invalid")
	}
	if t.flat == nil {
		exceptions.Panicf("tensors.Tensor has no data")
	}
}

// Shape of the tensor.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType of the tensor's elements.
func (t *Tensor) DType() dtypes.DType { return t.shape.DType }

// Rank returns the number of axes.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// Size returns the number of elements.
func (t *Tensor) Size() int { return t.shape.Size() }

// IsScalar returns whether the tensor holds a single value.
func (t *Tensor) IsScalar() bool { return t.shape.IsScalar() }

// LayoutStrides return the strides for each axis. This can be handy when manipulating the flat data.
func (t *Tensor) LayoutStrides() (strides []int) {
	return t.shape.Strides()
}

// FromShape creates a Tensor of the given shape, with the data initialized to zeros.
func FromShape(shape shapes.Shape) *Tensor {
	if !shape.Ok() {
		exceptions.Panicf("tensors.FromShape(): invalid shape %s", shape)
	}
	if err := checkSupported(shape.DType); err != "" {
		exceptions.Panicf("tensors.FromShape(%s): %s", shape, err)
	}
	size := shape.Size()
	flatV := reflect.MakeSlice(reflect.SliceOf(shape.DType.GoType()), size, size)
	return &Tensor{shape: shape.Clone(), flat: flatV.Interface()}
}

// checkSupported returns a non-empty description if dtype is not supported by this package.
func checkSupported(dtype dtypes.DType) string {
	switch dtype {
	case dtypes.Int8, dtypes.Int16, dtypes.Int32, dtypes.Int64,
		dtypes.Uint8, dtypes.Uint16, dtypes.Uint32, dtypes.Uint64,
		dtypes.Float32, dtypes.Float64, dtypes.Float16, dtypes.BFloat16:
		return ""
	}
	return fmt.Sprintf("dtype %s is not supported", dtype)
}

// FromScalar creates a tensor with the given scalar.
// The DType is inferred from the value.
func FromScalar[T dtypes.Supported](value T) *Tensor {
	return FromScalarAndDimensions(value)
}

// FromScalarAndDimensions creates a tensor with the given dimensions, filled with the
// given scalar value replicated everywhere.
// The DType is inferred from the value.
func FromScalarAndDimensions[T dtypes.Supported](value T, dimensions ...int) *Tensor {
	dtype := dtypes.FromGenericsType[T]()
	t := FromShape(shapes.Make(dtype, dimensions...))
	MutableFlatData(t, func(flat []T) {
		for ii := range flat {
			flat[ii] = value
		}
	})
	return t
}

// FromFlatDataAndDimensions creates a tensor with the given dimensions, filled with
// the flattened values given in data. The data is copied.
// The DType is inferred from the data type.
func FromFlatDataAndDimensions[T dtypes.Supported](data []T, dimensions ...int) *Tensor {
	dtype := dtypes.FromGenericsType[T]()
	shape := shapes.Make(dtype, dimensions...)
	if len(data) != shape.Size() {
		exceptions.Panicf("tensors.FromFlatDataAndDimensions(%s): data size is %d, but dimensions size is %d",
			shape, len(data), shape.Size())
	}
	t := FromShape(shape)
	MutableFlatData(t, func(flat []T) {
		copy(flat, data)
	})
	return t
}

// FromValue returns a tensor constructed from the given multi-dimension slice (or scalar).
// If the rank of the value is larger than 1, the shape of all sub-slices must be the same.
//
// It panics if the shape is not regular or the base type is not supported.
//
// Notice that FromFlatDataAndDimensions is much faster if speed here is a concern.
func FromValue[S MultiDimensionSlice](value S) *Tensor {
	return FromAnyValue(value)
}

// FromAnyValue is a non-generic version of FromValue.
// The input is expected to be either a scalar or a slice of slices with homogeneous dimensions.
// If the input is a *Tensor already, it is returned unchanged.
func FromAnyValue(value any) *Tensor {
	if valueT, ok := value.(*Tensor); ok {
		return valueT
	}
	shape, err := shapes.FromAnyValue(value)
	if err != nil {
		panic(err)
	}
	if msg := checkSupported(shape.DType); msg != "" {
		exceptions.Panicf("tensors.FromAnyValue(%T): %s", value, msg)
	}
	t := FromShape(shape)
	t.MutableFlatData(func(flatAny any) {
		flatV := reflect.ValueOf(flatAny)
		if shape.IsScalar() {
			flatV.Index(0).Set(reflect.ValueOf(value))
			return
		}
		copySlicesRecursively(flatV, reflect.ValueOf(value), shape.Strides())
	})
	return t
}

// copySlicesRecursively copy values on a multi-dimension slice to a flat data slice
// assuming the strides for each dimension.
func copySlicesRecursively(data reflect.Value, mdSlice reflect.Value, strides []int) {
	if len(strides) == 1 {
		// Last level of slice, just copy over the slice.
		reflect.Copy(data, mdSlice)
		return
	}

	numElements := mdSlice.Len()
	subStrides := strides[1:]
	for ii := 0; ii < numElements; ii++ {
		start := ii * strides[0]
		end := (ii + 1) * strides[0]
		subData := data.Slice(start, end)
		copySlicesRecursively(subData, mdSlice.Index(ii), subStrides)
	}
}

// ConstFlatData calls accessFn with the tensor's flat data (an []T where T matches the
// tensor's dtype). The callee must not modify the data.
//
// See the generic package function ConstFlatData[T] for a typed version.
func (t *Tensor) ConstFlatData(accessFn func(flat any)) {
	t.AssertValid()
	accessFn(t.flat)
}

// MutableFlatData calls accessFn with the tensor's flat data (an []T where T matches
// the tensor's dtype). The callee is allowed to modify the data in place.
func (t *Tensor) MutableFlatData(accessFn func(flat any)) {
	t.AssertValid()
	accessFn(t.flat)
}

// ConstFlatData calls accessFn with the typed flat data of the tensor.
// The callee must not modify the data.
//
// It panics if T doesn't match the tensor's dtype.
func ConstFlatData[T dtypes.Supported](t *Tensor, accessFn func(flat []T)) {
	t.AssertValid()
	accessFn(flatOf[T](t, "tensors.ConstFlatData"))
}

// MutableFlatData calls accessFn with the typed flat data of the tensor, which may be
// modified in place.
//
// It panics if T doesn't match the tensor's dtype.
func MutableFlatData[T dtypes.Supported](t *Tensor, accessFn func(flat []T)) {
	t.AssertValid()
	accessFn(flatOf[T](t, "tensors.MutableFlatData"))
}

// CopyFlatData returns a copy of the flat data of the tensor.
//
// It panics if T doesn't match the tensor's dtype.
func CopyFlatData[T dtypes.Supported](t *Tensor) []T {
	t.AssertValid()
	flat := flatOf[T](t, "tensors.CopyFlatData")
	flatCopy := make([]T, len(flat))
	copy(flatCopy, flat)
	return flatCopy
}

// ToScalar returns the value of the scalar tensor t.
//
// It panics if T doesn't match the tensor's dtype or if t is not a scalar.
func ToScalar[T dtypes.Supported](t *Tensor) T {
	t.AssertValid()
	if !t.IsScalar() {
		exceptions.Panicf("tensors.ToScalar(): tensor is not a scalar, shape=%s", t.shape)
	}
	return flatOf[T](t, "tensors.ToScalar")[0]
}

// flatOf returns the typed flat data, panicking with a proper message on dtype mismatch.
func flatOf[T dtypes.Supported](t *Tensor, fnName string) []T {
	requested := dtypes.FromGenericsType[T]()
	if t.shape.DType != requested {
		exceptions.Panicf("%s[%s] does not match tensor dtype %s", fnName, requested, t.shape.DType)
	}
	return t.flat.([]T)
}

// Value returns a multidimensional slice (except if the shape is a scalar) containing a
// copy of the values stored in the tensor.
// This is expensive and usually only used for smaller tensors in tests and to print results.
func (t *Tensor) Value() any {
	t.AssertValid()
	var mdSlice any
	t.ConstFlatData(func(flat any) {
		srcV := reflect.ValueOf(flat)
		if t.shape.IsScalar() {
			mdSlice = srcV.Index(0).Interface()
			return
		}

		// Create a copy of the flat data, and re-slice it recursively into the
		// multi-dimensional value.
		flatCopyV := reflect.MakeSlice(reflect.SliceOf(t.shape.DType.GoType()), t.Size(), t.Size())
		reflect.Copy(flatCopyV, srcV)
		mdSlice = convertDataToSlices(flatCopyV, t.shape.Dimensions...).Interface()
	})
	return mdSlice
}

// convertDataToSlices takes data as a flat slice and creates a multidimensional slice
// with the given dimensions that points to the given data.
func convertDataToSlices(dataV reflect.Value, dimensions ...int) reflect.Value {
	if len(dimensions) <= 1 {
		return dataV
	}
	resultT := dataV.Type().Elem()
	for range dimensions {
		resultT = reflect.SliceOf(resultT)
	}
	strides := make([]int, len(dimensions))
	currentStride := 1
	for dim := len(dimensions) - 1; dim >= 0; dim-- {
		strides[dim] = currentStride
		currentStride *= dimensions[dim]
	}
	return createSlicesRecursively(resultT, dataV, dimensions, strides)
}

// createSlicesRecursively recursively creates slices that point to the ranges of the
// flat data, assuming the strides for each dimension.
func createSlicesRecursively(resultT reflect.Type, data reflect.Value, dimensions []int, strides []int) reflect.Value {
	if len(strides) == 1 {
		// Last level of slice, just return the flat slice range.
		return data
	}

	numElements := dimensions[0]
	slice := reflect.MakeSlice(resultT, numElements, numElements)

	subStrides := strides[1:]
	subDimensions := dimensions[1:]
	subResultT := resultT.Elem()
	for ii := 0; ii < numElements; ii++ {
		start := ii * strides[0]
		end := (ii + 1) * strides[0]
		subData := data.Slice(start, end)
		subSlice := createSlicesRecursively(subResultT, subData, subDimensions, subStrides)
		slice.Index(ii).Set(subSlice)
	}
	return slice
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	t.AssertValid()
	return t.withDimensions(t.shape.Dimensions...)
}

// withDimensions returns a new tensor with a copy of t's flat data and the given
// dimensions. The total size must match -- the callers guarantee it.
func (t *Tensor) withDimensions(dimensions ...int) *Tensor {
	newT := FromShape(shapes.Make(t.shape.DType, dimensions...))
	reflect.Copy(reflect.ValueOf(newT.flat), reflect.ValueOf(t.flat))
	return newT
}

// Equal checks whether t == otherTensor: shapes (dtype included) and every element.
// If they are the same pointer, they are considered equal.
//
// Slow implementation: fine for small tensors, but write something specialized for the
// DType if speed is desired.
func (t *Tensor) Equal(otherTensor *Tensor) bool {
	t.AssertValid()
	otherTensor.AssertValid()

	if t == otherTensor {
		return true
	}
	if !t.shape.Equal(otherTensor.shape) {
		return false
	}
	equal := true // Set to false at the first difference.
	t.ConstFlatData(func(flat0 any) {
		otherTensor.ConstFlatData(func(flat1 any) {
			t0V := reflect.ValueOf(flat0)
			t1V := reflect.ValueOf(flat1)
			for ii := range t0V.Len() {
				if !t0V.Index(ii).Equal(t1V.Index(ii)) {
					equal = false
					return
				}
			}
		})
	})
	return equal
}

// InDelta checks whether Abs(t - otherTensor) < delta for every element.
// If they are the same pointer, they are considered equal.
// If the shapes are different, it returns false.
// It panics if the DType is not a float.
//
// Slow implementation: fine for small tensors, but write something specialized for the
// DType if speed is desired.
func (t *Tensor) InDelta(otherTensor *Tensor, delta float64) bool {
	t.AssertValid()
	otherTensor.AssertValid()

	if t == otherTensor {
		return true
	}
	if !t.shape.Equal(otherTensor.shape) {
		return false
	}
	if !t.shape.DType.IsFloat() {
		exceptions.Panicf("Tensor.InDelta() only works for float dtypes, got %s", t.shape.DType)
	}
	if t.shape.IsZeroSize() {
		// If any of the axes is zero-dimensional, there is no data to compare.
		return true
	}

	inDelta := true // Set to false at the first difference.
	lhs := toFloat64Slice(t)
	rhs := toFloat64Slice(otherTensor)
	for ii := range lhs {
		diff := lhs[ii] - rhs[ii]
		if diff < -delta || diff > delta {
			inDelta = false
			break
		}
	}
	return inDelta
}

// maxElementsToPrint caps how many elements Tensor.String renders.
const maxElementsToPrint = 100

// String prints the shape and the values of the tensor, if it is not too large.
func (t *Tensor) String() string {
	t.AssertValid()
	if t.Size() > maxElementsToPrint {
		return fmt.Sprintf("%s: (... %d values ...)", t.shape, t.Size())
	}
	if t.IsScalar() {
		return fmt.Sprintf("%s: %v", t.shape, t.Value())
	}
	valueStr := fmt.Sprintf("%v", t.Value())
	valueStr = strings.ReplaceAll(valueStr, "] [", "], [")
	return fmt.Sprintf("%s: %s", t.shape, valueStr)
}
