package tensors

import (
	"testing"

	"github.com/gomlx/einsum/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestMul(t *testing.T) {
	lhs := FromValue([][]float32{{1, 2}, {3, 4}})
	rhs := FromValue([][]float32{{10, 20}, {30, 40}})
	require.Equal(t, [][]float32{{10, 40}, {90, 160}}, Mul(lhs, rhs).Value())

	// Broadcasting a size-1 axis.
	row := FromValue([][]float32{{10, 100}})
	require.Equal(t, [][]float32{{10, 200}, {30, 400}}, Mul(lhs, row).Value())
	column := FromValue([][]float32{{10}, {100}})
	require.Equal(t, [][]float32{{10, 20}, {300, 400}}, Mul(lhs, column).Value())
	require.Equal(t, [][]float32{{100, 1000}, {1000, 10000}}, Mul(row, column).Value())

	// Broadcasting a scalar.
	require.Equal(t, [][]float32{{2, 4}, {6, 8}}, Mul(lhs, FromScalar(float32(2))).Value())
	require.Equal(t, [][]float32{{2, 4}, {6, 8}}, Mul(FromScalar(float32(2)), lhs).Value())

	require.Equal(t, []int32{4, 10, 18}, Mul(FromValue([]int32{1, 2, 3}), FromValue([]int32{4, 5, 6})).Value())
}

func TestAdd(t *testing.T) {
	lhs := FromValue([][]float64{{1, 2}, {3, 4}})
	rhs := FromValue([][]float64{{10, 20}, {30, 40}})
	require.Equal(t, [][]float64{{11, 22}, {33, 44}}, Add(lhs, rhs).Value())

	row := FromValue([][]float64{{10, 100}})
	require.Equal(t, [][]float64{{11, 102}, {13, 104}}, Add(lhs, row).Value())

	require.Equal(t, [][]float64{{0, 1}, {2, 3}}, Add(lhs, FromScalar(float64(-1))).Value())
}

func TestBinaryFloat16(t *testing.T) {
	f16 := func(values ...float32) []float16.Float16 {
		converted := make([]float16.Float16, len(values))
		for ii, v := range values {
			converted[ii] = float16.Fromfloat32(v)
		}
		return converted
	}
	lhs := FromFlatDataAndDimensions(f16(1, 2, 3, 4), 2, 2)
	rhs := FromFlatDataAndDimensions(f16(10, 20, 30, 40), 2, 2)
	require.Equal(t, f16(10, 40, 90, 160), CopyFlatData[float16.Float16](Mul(lhs, rhs)))
	require.Equal(t, f16(11, 22, 33, 44), CopyFlatData[float16.Float16](Add(lhs, rhs)))

	// Broadcast path.
	row := FromFlatDataAndDimensions(f16(10, 100), 1, 2)
	require.Equal(t, f16(10, 200, 30, 400), CopyFlatData[float16.Float16](Mul(lhs, row)))

	bf16 := func(values ...float32) []bfloat16.BFloat16 {
		converted := make([]bfloat16.BFloat16, len(values))
		for ii, v := range values {
			converted[ii] = bfloat16.FromFloat32(v)
		}
		return converted
	}
	bLhs := FromFlatDataAndDimensions(bf16(1, 2, 3, 4), 2, 2)
	bRhs := FromFlatDataAndDimensions(bf16(10, 20, 30, 40), 2, 2)
	require.Equal(t, bf16(10, 40, 90, 160), CopyFlatData[bfloat16.BFloat16](Mul(bLhs, bRhs)))
	require.Equal(t, bf16(11, 22, 33, 44), CopyFlatData[bfloat16.BFloat16](Add(bLhs, bRhs)))
}

func TestBinaryLargeParallel(t *testing.T) {
	// More elements than minParallelizeChunk, exercising the chunked parallel path.
	const n = 3*minParallelizeChunk + 100
	lhs := FromShape(shapes.Make(dtypes.Float32, n))
	MutableFlatData(lhs, func(flat []float32) {
		for ii := range flat {
			flat[ii] = float32(ii % 17)
		}
	})
	rhs := FromShape(shapes.Make(dtypes.Float32, n))
	MutableFlatData(rhs, func(flat []float32) {
		for ii := range flat {
			flat[ii] = float32(ii % 5)
		}
	})

	product := Mul(lhs, rhs)
	ConstFlatData(product, func(flat []float32) {
		for ii := range flat {
			require.Equal(t, float32((ii%17)*(ii%5)), flat[ii], "element #%d", ii)
		}
	})
	total := Add(lhs, rhs)
	ConstFlatData(total, func(flat []float32) {
		for ii := range flat {
			require.Equal(t, float32(ii%17+ii%5), flat[ii], "element #%d", ii)
		}
	})
}

func TestBinaryErrors(t *testing.T) {
	require.Panics(t, func() {
		Mul(FromValue([]float32{1}), FromValue([]float64{1}))
	})
	require.Panics(t, func() {
		Mul(FromValue([]float32{1, 2}), FromValue([][]float32{{1, 2}}))
	})
	require.Panics(t, func() {
		Add(FromValue([]float32{1, 2}), FromValue([]float32{1, 2, 3}))
	})
}

func TestBinaryZeroSize(t *testing.T) {
	lhs := FromShape(shapes.Make(dtypes.Float32, 2, 0))
	rhs := FromShape(shapes.Make(dtypes.Float32, 2, 1))
	product := Mul(lhs, rhs)
	require.Equal(t, []int{2, 0}, product.Shape().Dimensions)
	require.Equal(t, 0, product.Size())
}
