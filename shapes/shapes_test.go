// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"fmt"
	"testing"

	. "github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape(t *testing.T) {
	invalidShape := Invalid()
	require.False(t, invalidShape.Ok())

	shape0 := Make(Float64)
	require.True(t, shape0.Ok())
	require.True(t, shape0.IsScalar())
	require.Equal(t, 0, shape0.Rank())
	require.Len(t, shape0.Dimensions, 0)
	require.Equal(t, 1, shape0.Size())
	require.Equal(t, 8, int(shape0.Memory()))

	shape1 := Make(Float32, 4, 3, 2)
	require.True(t, shape1.Ok())
	require.False(t, shape1.IsScalar())
	require.Equal(t, 3, shape1.Rank())
	require.Len(t, shape1.Dimensions, 3)
	require.Equal(t, 4*3*2, shape1.Size())
	require.Equal(t, 4*4*3*2, int(shape1.Memory()))

	require.Equal(t, shape0, Scalar[float64]())

	// Dimensions of size zero are valid, negative ones are not.
	shapeZero := Make(Int32, 2, 0, 3)
	require.True(t, shapeZero.Ok())
	require.Equal(t, 0, shapeZero.Size())
	require.True(t, shapeZero.IsZeroSize())
	require.False(t, shape1.IsZeroSize())
	require.False(t, shape0.IsZeroSize())
	require.Panics(t, func() { Make(Float32, 2, -1) })
}

func TestDim(t *testing.T) {
	shape := Make(Float32, 4, 3, 2)
	require.Equal(t, 4, shape.Dim(0))
	require.Equal(t, 3, shape.Dim(1))
	require.Equal(t, 2, shape.Dim(2))
	require.Equal(t, 4, shape.Dim(-3))
	require.Equal(t, 3, shape.Dim(-2))
	require.Equal(t, 2, shape.Dim(-1))
	require.Panics(t, func() { _ = shape.Dim(3) })
	require.Panics(t, func() { _ = shape.Dim(-4) })
}

func TestStrides(t *testing.T) {
	shape := Make(Float32, 4, 3, 2)
	require.Equal(t, []int{6, 2, 1}, shape.Strides())
	require.Empty(t, Make(Float32).Strides())
	require.Equal(t, []int{1}, Make(Float32, 7).Strides())
}

func TestString(t *testing.T) {
	assert.Equal(t, "(Float32)[4 3 2]", Make(Float32, 4, 3, 2).String())
	assert.Equal(t, "(Float64)", Make(Float64).String())
}

func TestEqual(t *testing.T) {
	shape := Make(Float32, 4, 3, 2)
	assert.True(t, shape.Equal(Make(Float32, 4, 3, 2)))
	assert.False(t, shape.Equal(Make(Float64, 4, 3, 2)))
	assert.False(t, shape.Equal(Make(Float32, 4, 3)))
	assert.False(t, shape.Equal(Make(Float32, 4, 3, 1)))

	assert.True(t, shape.EqualDimensions(Make(Float64, 4, 3, 2)))
	assert.False(t, shape.EqualDimensions(Make(Float32, 2, 3, 4)))
	assert.True(t, Make(Int64).EqualDimensions(Make(Uint8)))
}

func TestClone(t *testing.T) {
	shape := Make(Float32, 4, 3, 2)
	shape2 := shape.Clone()
	require.True(t, shape.Equal(shape2))
	shape2.Dimensions[0] = 7
	require.Equal(t, 4, shape.Dimensions[0])
}

func TestConcatenateDimensions(t *testing.T) {
	s1 := Make(Float32, 2, 3)
	s2 := Make(Float32, 4)
	require.Equal(t, Make(Float32, 2, 3, 4), ConcatenateDimensions(s1, s2))
	require.Equal(t, s1, ConcatenateDimensions(s1, Make(Float32)))
	require.Equal(t, s2, ConcatenateDimensions(Make(Float32), s2))
	require.False(t, ConcatenateDimensions(s1, Make(Float64, 4)).Ok())
}

func TestFromAnyValue(t *testing.T) {
	shape, err := FromAnyValue([][]float32{{0, 0}, {1, 1}, {2, 2}})
	require.NoError(t, err)
	require.True(t, shape.Equal(Make(Float32, 3, 2)))

	shape, err = FromAnyValue([][][]float64{{{1}}})
	require.NoError(t, err)
	require.True(t, shape.Equal(Make(Float64, 1, 1, 1)))

	shape, err = FromAnyValue(int32(7))
	require.NoError(t, err)
	require.True(t, shape.Equal(Make(Int32)))

	// Go `int` is platform-dependent, not convertible.
	_, err = FromAnyValue(5)
	require.Error(t, err)

	_, err = FromAnyValue([][]string{{"blah"}})
	require.Error(t, err)

	// Irregularly shaped slices.
	_, err = FromAnyValue([][][]int32{{{1}}, {{1, 2}}})
	require.Error(t, err)
	fmt.Printf("\tExpected error: %v\n", err)

	_, err = FromAnyValue([]float32{})
	require.Error(t, err)
}
