package tensors

import (
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/x448/float16"
)

// SupportedTypesConstraints enumerates the Go types this package can store.
type SupportedTypesConstraints interface {
	int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64 |
		float16.Float16 | bfloat16.BFloat16
}

// PODNumericConstraints are used for generics for the Golang pod (plain-old-data) types.
// Float16 and BFloat16 are not included because they are specialized types, with no native
// Go arithmetic: see the float16 variants of the kernels.
type PODNumericConstraints interface {
	int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64
}

// Float16Constraints are the 16-bit float types, whose arithmetic is performed in
// float32 space.
type Float16Constraints interface {
	float16.Float16 | bfloat16.BFloat16
}

// MultiDimensionSlice lists the Go types a Tensor can be converted to/from. There are no
// recursions in generics' constraint definitions, so we list up to 7 levels of slices.
// The implementation works with any arbitrary number.
type MultiDimensionSlice interface {
	int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64 | float16.Float16 | bfloat16.BFloat16 |
		[]int8 | []int16 | []int32 | []int64 | []uint8 | []uint16 | []uint32 | []uint64 | []float32 | []float64 | []float16.Float16 | []bfloat16.BFloat16 |
		[][]int8 | [][]int16 | [][]int32 | [][]int64 | [][]uint8 | [][]uint16 | [][]uint32 | [][]uint64 | [][]float32 | [][]float64 | [][]float16.Float16 | [][]bfloat16.BFloat16 |
		[][][]int8 | [][][]int16 | [][][]int32 | [][][]int64 | [][][]uint8 | [][][]uint16 | [][][]uint32 | [][][]uint64 | [][][]float32 | [][][]float64 | [][][]float16.Float16 | [][][]bfloat16.BFloat16 |
		[][][][]int8 | [][][][]int16 | [][][][]int32 | [][][][]int64 | [][][][]uint8 | [][][][]uint16 | [][][][]uint32 | [][][][]uint64 | [][][][]float32 | [][][][]float64 | [][][][]float16.Float16 | [][][][]bfloat16.BFloat16 |
		[][][][][]int8 | [][][][][]int16 | [][][][][]int32 | [][][][][]int64 | [][][][][]uint8 | [][][][][]uint16 | [][][][][]uint32 | [][][][][]uint64 | [][][][][]float32 | [][][][][]float64 | [][][][][]float16.Float16 | [][][][][]bfloat16.BFloat16 |
		[][][][][][]int8 | [][][][][][]int16 | [][][][][][]int32 | [][][][][][]int64 | [][][][][][]uint8 | [][][][][][]uint16 | [][][][][][]uint32 | [][][][][][]uint64 | [][][][][][]float32 | [][][][][][]float64 | [][][][][][]float16.Float16 | [][][][][][]bfloat16.BFloat16
}
