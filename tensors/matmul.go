// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"github.com/gomlx/einsum/shapes"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// BatchedMatMul multiplies lhs, shaped [batchSize, crossSize, contractingSize], by rhs,
// shaped [batchSize, contractingSize, rhsCrossSize], and returns the result shaped
// [batchSize, crossSize, rhsCrossSize].
//
// Both operands must be rank-3 and have the same dtype. If contractingSize is 0 the
// result is all zeros (a sum over no products).
//
// Float16 and BFloat16 operands are accumulated in float32 and converted back at the end.
func BatchedMatMul(lhs, rhs *Tensor) *Tensor {
	lhs.AssertValid()
	rhs.AssertValid()
	if lhs.DType() != rhs.DType() {
		exceptions.Panicf("BatchedMatMul: operands have different dtypes (%s and %s)", lhs.DType(), rhs.DType())
	}
	if lhs.Rank() != 3 || rhs.Rank() != 3 {
		exceptions.Panicf("BatchedMatMul: operands must be rank-3, got shapes %s and %s", lhs.shape, rhs.shape)
	}
	if lhs.shape.Dimensions[0] != rhs.shape.Dimensions[0] {
		exceptions.Panicf("BatchedMatMul: operands have different batch sizes, got shapes %s and %s", lhs.shape, rhs.shape)
	}
	if lhs.shape.Dimensions[2] != rhs.shape.Dimensions[1] {
		exceptions.Panicf("BatchedMatMul: contracting dimensions don't match, got shapes %s and %s", lhs.shape, rhs.shape)
	}
	dtype := lhs.DType()
	if dtype == dtypes.Float16 || dtype == dtypes.BFloat16 {
		// Accumulate in float32, and convert back at the end.
		widened := BatchedMatMul(toFloat32(lhs), toFloat32(rhs))
		return fromFloat32(widened, dtype)
	}

	batchSize := lhs.shape.Dimensions[0]
	crossSize := lhs.shape.Dimensions[1]
	contractingSize := lhs.shape.Dimensions[2]
	rhsCrossSize := rhs.shape.Dimensions[2]
	output := FromShape(shapes.Make(dtype, batchSize, crossSize, rhsCrossSize))
	if output.Size() == 0 || lhs.Size() == 0 {
		// Either an empty output, or a contraction over zero products: all zeros.
		return output
	}

	// Normalize rhs to [batchSize, rhsCrossSize, contractingSize], so both operands are
	// accessed with stride 1 over the contracting axis.
	rhsT := TransposeAllAxes(rhs, 0, 2, 1)

	switch dtype {
	case dtypes.Int8:
		batchedMatMulGeneric[int8](lhs, rhsT, output, batchSize, crossSize, contractingSize, rhsCrossSize)
	case dtypes.Int16:
		batchedMatMulGeneric[int16](lhs, rhsT, output, batchSize, crossSize, contractingSize, rhsCrossSize)
	case dtypes.Int32:
		batchedMatMulGeneric[int32](lhs, rhsT, output, batchSize, crossSize, contractingSize, rhsCrossSize)
	case dtypes.Int64:
		batchedMatMulGeneric[int64](lhs, rhsT, output, batchSize, crossSize, contractingSize, rhsCrossSize)
	case dtypes.Uint8:
		batchedMatMulGeneric[uint8](lhs, rhsT, output, batchSize, crossSize, contractingSize, rhsCrossSize)
	case dtypes.Uint16:
		batchedMatMulGeneric[uint16](lhs, rhsT, output, batchSize, crossSize, contractingSize, rhsCrossSize)
	case dtypes.Uint32:
		batchedMatMulGeneric[uint32](lhs, rhsT, output, batchSize, crossSize, contractingSize, rhsCrossSize)
	case dtypes.Uint64:
		batchedMatMulGeneric[uint64](lhs, rhsT, output, batchSize, crossSize, contractingSize, rhsCrossSize)
	case dtypes.Float32:
		batchedMatMulGeneric[float32](lhs, rhsT, output, batchSize, crossSize, contractingSize, rhsCrossSize)
	case dtypes.Float64:
		batchedMatMulGeneric[float64](lhs, rhsT, output, batchSize, crossSize, contractingSize, rhsCrossSize)
	default:
		exceptions.Panicf("BatchedMatMul: unsupported dtype %s", dtype)
	}
	return output
}

// Minimum number of multiply-adds per worker: below this, the sequential loop wins.
const minMatMulFlopsPerWorker = 1024

// batchedMatMulGeneric computes output = lhs x rhsT per batch example.
//
// lhs is [batchSize, crossSize, contractingSize], rhsT is already transposed to
// [batchSize, rhsCrossSize, contractingSize] and output is [batchSize, crossSize, rhsCrossSize].
//
// The work is split along the batchSize*crossSize output rows: each row is computed by
// exactly one worker, with the same loop order as the sequential path, so the results
// are identical whatever the parallelism.
func batchedMatMulGeneric[T PODNumericConstraints](lhs, rhsT, output *Tensor,
	batchSize, crossSize, contractingSize, rhsCrossSize int) {
	lhsFlat := lhs.flat.([]T)
	rhsFlat := rhsT.flat.([]T)
	outputFlat := output.flat.([]T)

	numRows := batchSize * crossSize
	rowFlops := rhsCrossSize * contractingSize
	maxWorkers := workers.MaxParallelism()
	if maxWorkers == 0 || maxWorkers == 1 || numRows == 1 || numRows*rowFlops < minMatMulFlopsPerWorker {
		matMulRowRange[T](lhsFlat, rhsFlat, outputFlat, 0, numRows, crossSize, contractingSize, rhsCrossSize)
		return
	}

	rowsPerTask := max(1, minMatMulFlopsPerWorker/rowFlops)
	if maxWorkers > 0 {
		// Make parallelization more fine-grained if there are enough workers.
		rowsPerTask = min(rowsPerTask, max(1, numRows/maxWorkers))
	}

	// Create the work that needs doing in a buffered channel, and let the pool workers
	// drain it.
	type rowRange struct {
		start, end int
	}
	numChunks := (numRows + rowsPerTask - 1) / rowsPerTask
	work := make(chan rowRange, numChunks)
	for row := 0; row < numRows; row += rowsPerTask {
		work <- rowRange{row, min(row+rowsPerTask, numRows)}
	}
	close(work)
	workers.Saturate(func() {
		for w := range work {
			matMulRowRange[T](lhsFlat, rhsFlat, outputFlat, w.start, w.end, crossSize, contractingSize, rhsCrossSize)
		}
	})
}

// matMulRowRange computes the output rows in [rowStart, rowEnd), where a "row" indexes
// the flattened [batchSize, crossSize] leading axes of the output.
func matMulRowRange[T PODNumericConstraints](lhsFlat, rhsFlat, outputFlat []T,
	rowStart, rowEnd, crossSize, contractingSize, rhsCrossSize int) {
	rhsBatchStride := rhsCrossSize * contractingSize
	for row := rowStart; row < rowEnd; row++ {
		batchIdx := row / crossSize
		lhsRowStartIdx := row * contractingSize
		rhsBaseIdx := batchIdx * rhsBatchStride
		outputRowStartIdx := row * rhsCrossSize
		for idxRhsCross := 0; idxRhsCross < rhsCrossSize; idxRhsCross++ {
			rhsRowStartIdx := rhsBaseIdx + idxRhsCross*contractingSize
			var sum T

			// Unroll the innermost loop for better vectorization.
			idxContracting := 0
			for ; idxContracting+7 < contractingSize; idxContracting += 8 {
				sum += lhsFlat[lhsRowStartIdx+idxContracting]*rhsFlat[rhsRowStartIdx+idxContracting] +
					lhsFlat[lhsRowStartIdx+idxContracting+1]*rhsFlat[rhsRowStartIdx+idxContracting+1] +
					lhsFlat[lhsRowStartIdx+idxContracting+2]*rhsFlat[rhsRowStartIdx+idxContracting+2] +
					lhsFlat[lhsRowStartIdx+idxContracting+3]*rhsFlat[rhsRowStartIdx+idxContracting+3] +
					lhsFlat[lhsRowStartIdx+idxContracting+4]*rhsFlat[rhsRowStartIdx+idxContracting+4] +
					lhsFlat[lhsRowStartIdx+idxContracting+5]*rhsFlat[rhsRowStartIdx+idxContracting+5] +
					lhsFlat[lhsRowStartIdx+idxContracting+6]*rhsFlat[rhsRowStartIdx+idxContracting+6] +
					lhsFlat[lhsRowStartIdx+idxContracting+7]*rhsFlat[rhsRowStartIdx+idxContracting+7]
			}
			// Remaining elements.
			for ; idxContracting < contractingSize; idxContracting++ {
				sum += lhsFlat[lhsRowStartIdx+idxContracting] * rhsFlat[rhsRowStartIdx+idxContracting]
			}
			outputFlat[outputRowStartIdx+idxRhsCross] = sum
		}
	}
}
