// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"fmt"
	"testing"

	"github.com/gomlx/einsum/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestFromShape(t *testing.T) {
	tensor := FromShape(shapes.Make(dtypes.Float32, 2, 3))
	require.True(t, tensor.Shape().Equal(shapes.Make(dtypes.Float32, 2, 3)))
	require.Equal(t, [][]float32{{0, 0, 0}, {0, 0, 0}}, tensor.Value())

	require.Panics(t, func() { FromShape(shapes.Invalid()) })
	require.Panics(t, func() { FromShape(shapes.Make(dtypes.Complex64, 2)) })

	// Zero-sized shapes are valid, they just hold no data.
	zero := FromShape(shapes.Make(dtypes.Float64, 2, 0))
	require.Equal(t, 0, zero.Size())
}

func TestFromScalarAndDimensions(t *testing.T) {
	tensor := FromScalarAndDimensions(float32(7), 2, 2)
	require.Equal(t, [][]float32{{7, 7}, {7, 7}}, tensor.Value())

	scalar := FromScalar(int64(-3))
	require.True(t, scalar.IsScalar())
	require.Equal(t, int64(-3), scalar.Value())
	require.Equal(t, int64(-3), ToScalar[int64](scalar))
}

func TestFromFlatDataAndDimensions(t *testing.T) {
	tensor := FromFlatDataAndDimensions([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	require.Equal(t, [][]float64{{1, 2, 3}, {4, 5, 6}}, tensor.Value())
	require.Equal(t, []float64{1, 2, 3, 4, 5, 6}, CopyFlatData[float64](tensor))

	require.Panics(t, func() { FromFlatDataAndDimensions([]float64{1, 2, 3}, 2, 3) })
}

func TestFromValue(t *testing.T) {
	tensor := FromValue([][][]int32{{{1, 2}, {3, 4}}, {{5, 6}, {7, 8}}})
	require.True(t, tensor.Shape().Equal(shapes.Make(dtypes.Int32, 2, 2, 2)))
	require.Equal(t, []int32{1, 2, 3, 4, 5, 6, 7, 8}, CopyFlatData[int32](tensor))

	bf16 := FromValue([]bfloat16.BFloat16{bfloat16.FromFloat32(1), bfloat16.FromFloat32(2)})
	require.Equal(t, dtypes.BFloat16, bf16.DType())

	// Irregular sub-slices panic.
	require.Panics(t, func() { FromAnyValue([][]float32{{1, 2}, {3}}) })
	// Go `int` has platform-dependent size, it is not accepted.
	require.Panics(t, func() { FromAnyValue([]int{1, 2}) })

	// FromAnyValue is a pass-through for tensors.
	require.Same(t, tensor, FromAnyValue(tensor))
}

func TestFlatDataAccess(t *testing.T) {
	tensor := FromFlatDataAndDimensions([]float32{1, 2, 3, 4}, 2, 2)
	ConstFlatData(tensor, func(flat []float32) {
		require.Equal(t, []float32{1, 2, 3, 4}, flat)
	})
	MutableFlatData(tensor, func(flat []float32) {
		for ii := range flat {
			flat[ii] *= 10
		}
	})
	require.Equal(t, [][]float32{{10, 20}, {30, 40}}, tensor.Value())

	// Generic access with the wrong dtype panics.
	require.Panics(t, func() {
		ConstFlatData(tensor, func(flat []float64) {})
	})
	require.Panics(t, func() {
		MutableFlatData(tensor, func(flat []int32) {})
	})

	// The copy returned by CopyFlatData is independent of the tensor data.
	flatCopy := CopyFlatData[float32](tensor)
	flatCopy[0] = -1
	require.Equal(t, [][]float32{{10, 20}, {30, 40}}, tensor.Value())

	require.Equal(t, []int{2, 1}, tensor.LayoutStrides())
}

func TestClone(t *testing.T) {
	tensor := FromFlatDataAndDimensions([]int64{1, 2, 3, 4, 5, 6}, 3, 2)
	clone := tensor.Clone()
	require.True(t, tensor.Equal(clone))
	MutableFlatData(clone, func(flat []int64) { flat[0] = 100 })
	require.Equal(t, int64(1), CopyFlatData[int64](tensor)[0])
	require.False(t, tensor.Equal(clone))
}

func TestEqual(t *testing.T) {
	tensor := FromValue([][]float32{{1, 2}, {3, 4}})
	require.True(t, tensor.Equal(tensor))
	require.True(t, tensor.Equal(FromValue([][]float32{{1, 2}, {3, 4}})))
	require.False(t, tensor.Equal(FromValue([][]float32{{1, 2}, {3, 5}})))
	require.False(t, tensor.Equal(FromValue([]float32{1, 2, 3, 4})))
	require.False(t, tensor.Equal(FromValue([][]float64{{1, 2}, {3, 4}})))
}

func TestInDelta(t *testing.T) {
	tensor := FromValue([]float64{1, 2, 3})
	require.True(t, tensor.InDelta(FromValue([]float64{1.0001, 1.9999, 3}), 1e-3))
	require.False(t, tensor.InDelta(FromValue([]float64{1.1, 2, 3}), 1e-3))
	require.False(t, tensor.InDelta(FromValue([]float64{1, 2}), 1e-3))

	f16 := FromValue([]float16.Float16{float16.Fromfloat32(1.5), float16.Fromfloat32(-2)})
	require.True(t, f16.InDelta(FromValue([]float16.Float16{float16.Fromfloat32(1.5), float16.Fromfloat32(-2)}), 1e-3))

	require.Panics(t, func() {
		_ = FromValue([]int32{1}).InDelta(FromValue([]int32{1}), 1e-3)
	})
}

func TestValue(t *testing.T) {
	want := [][]uint8{{1, 2, 3}, {4, 5, 6}}
	tensor := FromValue(want)
	got := tensor.Value().([][]uint8)
	require.Equal(t, want, got)

	// The returned multi-dimensional slice is a copy.
	got[0][0] = 100
	require.Equal(t, uint8(1), CopyFlatData[uint8](tensor)[0])
}

func TestString(t *testing.T) {
	tensor := FromValue([][]float32{{1, 2}, {3, 4}})
	fmt.Printf("\ttensor=%s\n", tensor)
	assert.Equal(t, "(Float32)[2 2]: [[1 2], [3 4]]", tensor.String())

	scalar := FromScalar(float64(3.5))
	assert.Equal(t, "(Float64): 3.5", scalar.String())

	big := FromShape(shapes.Make(dtypes.Float32, 101))
	assert.Equal(t, "(Float32)[101]: (... 101 values ...)", big.String())
}
