// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package einsum

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/gomlx/einsum/shapes"
	"github.com/gomlx/einsum/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

// randomFloat64 returns a tensor with the given dimensions, filled with values in
// [-1, 1).
func randomFloat64(rng *rand.Rand, dimensions ...int) *tensors.Tensor {
	t := tensors.FromShape(shapes.Make(dtypes.Float64, dimensions...))
	tensors.MutableFlatData(t, func(flat []float64) {
		for ii := range flat {
			flat[ii] = rng.Float64()*2 - 1
		}
	})
	return t
}

func TestEinsumMatrixMul(t *testing.T) {
	lhs := tensors.FromValue([][]float32{{1, 2, 3, 4}, {5, 6, 7, 8}})
	rhs := tensors.FromScalarAndDimensions(float32(0.1), 4, 3)
	got := Einsum("ij,jk->ik", lhs, rhs)
	fmt.Printf("\tEinsum(\"ij,jk->ik\")=%s\n", got)
	want := tensors.FromValue([][]float32{{1, 1, 1}, {2.6, 2.6, 2.6}})
	require.True(t, got.InDelta(want, 1e-4))
}

func TestEinsumDotProduct(t *testing.T) {
	lhs := tensors.FromValue([]float32{1, 2, 3, 4})
	rhs := tensors.FromScalarAndDimensions(float32(0.1), 4)
	got := Einsum("i,i->", lhs, rhs)
	require.True(t, got.IsScalar())
	require.InDelta(t, 1.0, float64(tensors.ToScalar[float32](got)), 1e-4)
}

func TestEinsumOuterProduct(t *testing.T) {
	lhs := tensors.FromValue([]float32{1, 2, 3, 4})
	rhs := tensors.FromValue([]float32{1, 2, 3})
	got := Einsum("i,j->ij", lhs, rhs)
	require.Equal(t, [][]float32{{1, 2, 3}, {2, 4, 6}, {3, 6, 9}, {4, 8, 12}}, got.Value())
}

func TestEinsumBatchedMatrixMul(t *testing.T) {
	lhs := tensors.FromFlatDataAndDimensions([]int64{
		1, 2,
		3, 4,

		5, 6,
		7, 8,
	}, 2, 2, 2)
	rhs := tensors.FromFlatDataAndDimensions([]int64{
		1, 0,
		0, 1,

		2, 0,
		0, 2,
	}, 2, 2, 2)
	got := Einsum("bij,bjk->bik", lhs, rhs)
	require.Equal(t, [][][]int64{
		{{1, 2}, {3, 4}},
		{{10, 12}, {14, 16}},
	}, got.Value())

	// Output axes can come in any order.
	got = Einsum("bij,bjk->kbi", lhs, rhs)
	require.Equal(t, [][][]int64{
		{{1, 3}, {10, 14}},
		{{2, 4}, {12, 16}},
	}, got.Value())
}

func TestEinsumSingleOperand(t *testing.T) {
	matrix := tensors.FromValue([][]float32{{1, 2, 3}, {4, 5, 6}})
	require.Equal(t, [][]float32{{1, 4}, {2, 5}, {3, 6}}, Einsum("ij->ji", matrix).Value())
	require.Equal(t, []float32{6, 15}, Einsum("ij->i", matrix).Value())
	require.Equal(t, []float32{5, 7, 9}, Einsum("ij->j", matrix).Value())
	require.Equal(t, float32(21), Einsum("ij->", matrix).Value())
	require.Equal(t, matrix.Value(), Einsum("ij->ij", matrix).Value())
}

func TestEinsumImplicitOutput(t *testing.T) {
	lhs := tensors.FromValue([][]float32{{1, 2}, {3, 4}})
	rhs := tensors.FromValue([][]float32{{5, 6}, {7, 8}})

	// Subscripts that appear exactly once form the output, in alphabetical order.
	require.True(t, Einsum("ij,jk", lhs, rhs).Equal(Einsum("ij,jk->ik", lhs, rhs)))
	require.True(t, Einsum("ij", lhs).Equal(Einsum("ij->ij", lhs)))

	// "ji" reads the axes in reverse order, so the result is the transpose.
	require.Equal(t, [][]float32{{1, 3}, {2, 4}}, Einsum("ji", lhs).Value())

	// Repeated subscripts are summed away: "ii" is the trace.
	require.Equal(t, float32(5), Einsum("ii", lhs).Value())
	require.Equal(t, float32(32), Einsum("i,i", tensors.FromValue([]float32{1, 2, 3}), tensors.FromValue([]float32{4, 5, 6})).Value())
}

func TestEinsumDiagonal(t *testing.T) {
	matrix := tensors.FromValue([][]float32{{1, 2}, {3, 4}})
	require.Equal(t, []float32{1, 4}, Einsum("ii->i", matrix).Value())
	require.Equal(t, float32(5), Einsum("ii->", matrix).Value())

	// A repeated subscript with one extra axis: output[i, j] = input[i, i, j].
	cube := tensors.FromFlatDataAndDimensions([]float32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, 2, 2, 3)
	require.Equal(t, [][]float32{{0, 1, 2}, {9, 10, 11}}, Einsum("iij->ij", cube).Value())

	// Subscripts repeated three times merge all three axes.
	triple := tensors.FromFlatDataAndDimensions([]float32{0, 1, 2, 3, 4, 5, 6, 7}, 2, 2, 2)
	require.Equal(t, []float32{0, 7}, Einsum("iii->i", triple).Value())

	require.Panics(t, func() { Einsum("ii->i", tensors.FromValue([][]float32{{1, 2, 3}, {4, 5, 6}})) })
}

func TestEinsumMultipleOperands(t *testing.T) {
	a := tensors.FromValue([][]float32{{1, 2}, {3, 4}})
	identity := tensors.FromValue([][]float32{{1, 0}, {0, 1}})
	c := tensors.FromValue([][]float32{{1, 0}, {0, 2}})
	require.Equal(t, [][]float32{{1, 4}, {3, 8}}, Einsum("ij,jk,kl->il", a, identity, c).Value())

	// Triple dot product.
	dot3 := Einsum("i,i,i->",
		tensors.FromValue([]float32{1, 2}),
		tensors.FromValue([]float32{3, 4}),
		tensors.FromValue([]float32{5, 6}))
	require.Equal(t, float32(63), dot3.Value())

	// Triple outer product.
	outer := Einsum("i,j,k->ijk",
		tensors.FromValue([]float32{1, 2}),
		tensors.FromValue([]float32{10}),
		tensors.FromValue([]float32{100, 200}))
	require.Equal(t, [][][]float32{{{1000, 2000}}, {{2000, 4000}}}, outer.Value())
}

func TestEinsumBroadcast(t *testing.T) {
	// Axes bound to the same subscript broadcast when one side has extent 1.
	lhs := tensors.FromValue([][]float32{{2}, {3}})
	rhs := tensors.FromValue([][]float32{{1, 2, 3}, {4, 5, 6}})
	require.Equal(t, [][]float32{{2, 4, 6}, {12, 15, 18}}, Einsum("ij,ij->ij", lhs, rhs).Value())
	require.Equal(t, float32(57), Einsum("ij,ij->", lhs, rhs).Value())

	// Extents other than 1 must match.
	require.Panics(t, func() {
		Einsum("i,i->i", tensors.FromValue([]float32{1, 2}), tensors.FromValue([]float32{1, 2, 3}))
	})
}

func TestEinsumScalarOperands(t *testing.T) {
	scalar := tensors.FromScalar(float32(3))
	require.Equal(t, float32(21), Einsum(",", scalar, tensors.FromScalar(float32(7))).Value())
	require.Equal(t, []float32{3, 6}, Einsum(",i->i", scalar, tensors.FromValue([]float32{1, 2})).Value())
}

func TestEinsumZeroSize(t *testing.T) {
	lhs := tensors.FromShape(shapes.Make(dtypes.Float32, 2, 0))
	rhs := tensors.FromShape(shapes.Make(dtypes.Float32, 0, 3))
	got := Einsum("ij,jk->ik", lhs, rhs)
	require.Equal(t, [][]float32{{0, 0, 0}, {0, 0, 0}}, got.Value())

	require.Equal(t, []int{0}, Einsum("ij->i", tensors.FromShape(shapes.Make(dtypes.Float32, 0, 3))).Shape().Dimensions)
}

func TestEinsumFloat16(t *testing.T) {
	// Contractions accumulate in float32: summing 2048+1+1 in float16 arithmetic
	// would get stuck at 2048.
	lhs := tensors.FromFlatDataAndDimensions([]float16.Float16{
		float16.Fromfloat32(2048), float16.Fromfloat32(1), float16.Fromfloat32(1),
	}, 3)
	ones := tensors.FromScalarAndDimensions(float16.Fromfloat32(1), 3)
	got := Einsum("i,i->", lhs, ones)
	require.Equal(t, dtypes.Float16, got.DType())
	require.Equal(t, float16.Fromfloat32(2050), tensors.ToScalar[float16.Float16](got))

	bLhs := tensors.FromFlatDataAndDimensions([]bfloat16.BFloat16{
		bfloat16.FromFloat32(1), bfloat16.FromFloat32(2),
		bfloat16.FromFloat32(3), bfloat16.FromFloat32(4),
	}, 2, 2)
	bGot := Einsum("ii->i", bLhs)
	require.Equal(t,
		[]bfloat16.BFloat16{bfloat16.FromFloat32(1), bfloat16.FromFloat32(4)},
		tensors.CopyFlatData[bfloat16.BFloat16](bGot))
}

func TestEinsumAgainstNaive(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 42))
	lhs := randomFloat64(rng, 3, 5, 4)
	rhs := randomFloat64(rng, 3, 4, 6)
	got := Einsum("bij,bjk->bik", lhs, rhs)

	want := tensors.FromShape(shapes.Make(dtypes.Float64, 3, 5, 6))
	lhsFlat := tensors.CopyFlatData[float64](lhs)
	rhsFlat := tensors.CopyFlatData[float64](rhs)
	tensors.MutableFlatData(want, func(flat []float64) {
		for b := 0; b < 3; b++ {
			for i := 0; i < 5; i++ {
				for k := 0; k < 6; k++ {
					sum := 0.0
					for j := 0; j < 4; j++ {
						sum += lhsFlat[(b*5+i)*4+j] * rhsFlat[(b*4+j)*6+k]
					}
					flat[(b*5+i)*6+k] = sum
				}
			}
		}
	})
	require.True(t, got.InDelta(want, 1e-9))
}

func TestEinsumOperandOrderIrrelevant(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	a := randomFloat64(rng, 2, 3)
	b := randomFloat64(rng, 3, 4)
	c := randomFloat64(rng, 4, 5)
	left := Einsum("ij,jk,kl->il", a, b, c)
	right := Einsum("kl,ij,jk->il", c, a, b)
	require.True(t, left.InDelta(right, 1e-9))
}

func TestEinsumRelabeledTranspose(t *testing.T) {
	// Relabeling the equation and transposing the operands accordingly must
	// yield the transposed result: "ji,kj->ki" on (Aᵀ, Bᵀ) is ("ij,jk->ik")ᵀ.
	rng := rand.New(rand.NewPCG(11, 11))
	lhs := randomFloat64(rng, 2, 3)
	rhs := randomFloat64(rng, 3, 4)
	want := tensors.TransposeAllAxes(Einsum("ij,jk->ik", lhs, rhs), 1, 0)
	got := Einsum("ji,kj->ki", tensors.TransposeAllAxes(lhs, 1, 0), tensors.TransposeAllAxes(rhs, 1, 0))
	require.True(t, got.Equal(want))
}

func TestEinsumErrors(t *testing.T) {
	matrix := tensors.FromValue([][]float32{{1, 2}, {3, 4}})
	vector := tensors.FromValue([]float32{1, 2})

	require.Panics(t, func() { Einsum("ij,jk->ik", matrix) })
	require.Panics(t, func() { Einsum("ij", matrix, matrix) })
	require.Panics(t, func() { Einsum("i✗j->ij", matrix) })
	require.Panics(t, func() { Einsum("ijk->ij", matrix) })
	require.Panics(t, func() { Einsum("ij->ik", matrix) })
	require.Panics(t, func() { Einsum("ij->iji", matrix) })
	require.Panics(t, func() { Einsum("ij->i->j", matrix) })
	require.Panics(t, func() { Einsum("ij,jk->ik", matrix, tensors.FromValue([][]float32{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}})) })
	require.Panics(t, func() { Einsum("ij", matrix, nil) })
	require.Panics(t, func() { Einsum("i,i->i", vector, tensors.FromValue([]float64{1, 2})) })
	require.Panics(t, func() { Einsum("") })
}

func TestEinsumSpacesIgnored(t *testing.T) {
	lhs := tensors.FromValue([][]float32{{1, 2}, {3, 4}})
	rhs := tensors.FromValue([][]float32{{5, 6}, {7, 8}})
	require.True(t, Einsum("ij,jk->ik", lhs, rhs).Equal(Einsum(" ij , jk -> ik ", lhs, rhs)))
}

func TestParseEinsumEquation(t *testing.T) {
	operands := []*tensors.Tensor{
		tensors.FromShape(shapes.Make(dtypes.Float32, 2, 3)),
		tensors.FromShape(shapes.Make(dtypes.Float32, 3, 4)),
	}
	p := parseEinsumEquation("ij,jk->ik", operands)
	assert.Equal(t, 2, p.outputRank)
	assert.Equal(t, 3, p.numSlots())
	// Output slots first ("i", "k"), then the summed "j".
	assert.Equal(t, []int{labelIndex('i'), labelIndex('k'), labelIndex('j')}, p.slotLabels)
	assert.Equal(t, [][]int{
		{labelIndex('i'), labelIndex('j')},
		{labelIndex('j'), labelIndex('k')},
	}, p.operandLabels)

	// Implicit output keeps the subscripts that appear exactly once, sorted.
	p = parseEinsumEquation("ba", []*tensors.Tensor{operands[0]})
	assert.Equal(t, 2, p.outputRank)
	assert.Equal(t, []int{labelIndex('a'), labelIndex('b')}, p.slotLabels)

	// Lowercase sorts before uppercase.
	p = parseEinsumEquation("Ba", []*tensors.Tensor{operands[0]})
	assert.Equal(t, []int{labelIndex('a'), labelIndex('B')}, p.slotLabels)
}
