// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package einsum implements Einstein-summation style tensor contractions on the CPU:
//
//   - Einsum: N-ary einsum with the usual equation mini-language ("ij,jk->ik").
//   - TensorDot: contraction of explicitly given axis pairs.
//   - Bilinear: the bilinear form out[..., o] = bias[o] + Σ_{i,j} x1[..., i]*weight[o, i, j]*x2[..., j].
//   - Trilinear: the unrolled expand-multiply-reduce combinator behind Bilinear.
//
// Operands are *tensors.Tensor values (dense, row-major, local CPU); all operands of one
// call must have the same dtype. Every function is pure -- inputs are never mutated --
// and safe for concurrent use from multiple goroutines.
//
// Validation failures panic with a descriptive error; use exceptions.TryCatch (from
// github.com/gomlx/exceptions) to capture them as errors:
//
//	err := exceptions.TryCatch[error](func() {
//		result = einsum.Einsum("ij,jk->ik", matrixA, matrixB)
//	})
//
// Examples:
//
//   - Einsum("ij,jk->ik", matrixA, matrixB) performs the usual matrix multiplication.
//   - Einsum("bij,bjk->bik", batchedA, batchedB) performs a batched matrix multiplication.
//   - Einsum("i,i->", vectorA, vectorB) performs a dot product.
//   - Einsum("i,j->ij", vectorA, vectorB) performs an outer (cross) product.
//   - Einsum("ii->i", matrixA) extracts the diagonal.
//
// Subscripts missing from the output (after "->") are reduce-summed. Without a "->" the
// output subscripts are those that appear exactly once in the inputs, in alphabetical
// order (lowercase before uppercase).
package einsum

import (
	"strings"

	"github.com/gomlx/einsum/tensors"
	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"
)

// totalLabels is the size of the subscript alphabet: 'a'-'z' followed by 'A'-'Z'.
const totalLabels = 52

// labelIndex maps a subscript letter to its index in the alphabet, or -1 if the rune is
// not a valid subscript.
func labelIndex(label rune) int {
	switch {
	case label >= 'a' && label <= 'z':
		return int(label - 'a')
	case label >= 'A' && label <= 'Z':
		return 26 + int(label-'A')
	}
	return -1
}

// indexLabel is the inverse of labelIndex, for error messages and logging.
func indexLabel(index int) rune {
	if index < 26 {
		return rune('a' + index)
	}
	return rune('A' + index - 26)
}

// einsumPlan is the parsed equation resolved into a global frame of axes ("slots"):
// output subscripts take slots 0..outputRank-1 in output order, and every subscript that
// is summed away takes one of the remaining slots, in alphabetical order.
type einsumPlan struct {
	equation      string
	operandLabels [][]int // per operand, the subscript (its labelIndex) of each axis.
	labelSlots    []int   // indexed by label, the slot of each subscript, or -1 if absent.
	slotLabels    []int   // inverse of labelSlots.
	outputRank    int
}

func (p *einsumPlan) numSlots() int { return len(p.slotLabels) }

// labelsDescription formats a list of labels the way they appeared in the equation.
func labelsDescription(labels []int) string {
	var sb strings.Builder
	for _, label := range labels {
		sb.WriteRune(indexLabel(label))
	}
	return sb.String()
}

// parseEinsumEquation parses and validates the equation against the operands' ranks, and
// assigns a global slot to every subscript. Spaces in the equation are ignored.
func parseEinsumEquation(equation string, operands []*tensors.Tensor) *einsumPlan {
	inOutParts := strings.Split(equation, "->")
	if len(inOutParts) > 2 {
		exceptions.Panicf("Einsum(%q) has more than one \"->\" separating inputs from the output, there can be at most one",
			equation)
	}
	equationInputs := strings.Split(inOutParts[0], ",")
	if len(equationInputs) != len(operands) {
		exceptions.Panicf("Einsum(%q) equation describes %d operands (separated by \",\"), but %d operands were given",
			equation, len(equationInputs), len(operands))
	}

	p := &einsumPlan{
		equation:      equation,
		operandLabels: make([][]int, len(operands)),
		labelSlots:    make([]int, totalLabels),
	}
	for label := range p.labelSlots {
		p.labelSlots[label] = -1
	}

	labelCount := make([]int, totalLabels)
	for opIdx, str := range equationInputs {
		labels := make([]int, 0, len(str))
		for _, r := range str {
			if r == ' ' {
				continue
			}
			label := labelIndex(r)
			if label == -1 {
				exceptions.Panicf("Einsum(%q): invalid subscript %q for operand #%d, subscripts must be letters in [a-zA-Z]",
					equation, r, opIdx)
			}
			labelCount[label]++
			labels = append(labels, label)
		}
		if len(labels) != operands[opIdx].Rank() {
			exceptions.Panicf("Einsum(%q): %d subscripts given for operand #%d, but its rank is %d (shape %s)",
				equation, len(labels), opIdx, operands[opIdx].Rank(), operands[opIdx].Shape())
		}
		p.operandLabels[opIdx] = labels
	}

	if len(inOutParts) == 2 {
		// Explicit output.
		for _, r := range inOutParts[1] {
			if r == ' ' {
				continue
			}
			label := labelIndex(r)
			if label == -1 {
				exceptions.Panicf("Einsum(%q): invalid subscript %q in the output, subscripts must be letters in [a-zA-Z]",
					equation, r)
			}
			if labelCount[label] == 0 {
				exceptions.Panicf("Einsum(%q): output subscript %q does not appear for any input operand", equation, r)
			}
			if p.labelSlots[label] != -1 {
				exceptions.Panicf("Einsum(%q): output subscript %q appears more than once in the output", equation, r)
			}
			p.labelSlots[label] = p.outputRank
			p.slotLabels = append(p.slotLabels, label)
			p.outputRank++
		}
	} else {
		// Implicit output: the subscripts that appear exactly once, in alphabetical order.
		for label := 0; label < totalLabels; label++ {
			if labelCount[label] == 1 {
				p.labelSlots[label] = p.outputRank
				p.slotLabels = append(p.slotLabels, label)
				p.outputRank++
			}
		}
	}

	// The summed subscripts take the remaining slots, in alphabetical order.
	for label := 0; label < totalLabels; label++ {
		if labelCount[label] > 0 && p.labelSlots[label] == -1 {
			p.labelSlots[label] = len(p.slotLabels)
			p.slotLabels = append(p.slotLabels, label)
		}
	}
	return p
}

// alignOperand transforms one operand into the plan's global frame: repeated subscripts
// are merged by taking their diagonal, one size-1 axis is appended per slot whose
// subscript is missing and a final transposition moves every axis to its slot.
func (p *einsumPlan) alignOperand(opIdx int, operand *tensors.Tensor) *tensors.Tensor {
	numSlots := p.numSlots()
	permShape := make([]int, numSlots)
	for ii := range permShape {
		permShape[ii] = -1
	}
	labelAxis := make([]int, totalLabels)
	for ii := range labelAxis {
		labelAxis[ii] = -1
	}

	axisIdx := 0
	for _, label := range p.operandLabels[opIdx] {
		if firstAxis := labelAxis[label]; firstAxis != -1 {
			// Repeated subscript: merge this axis into the first occurrence by taking
			// their diagonal. The axis count shrinks by one and axisIdx now points at the
			// next unprocessed axis, so it is not incremented.
			dims := operand.Shape().Dimensions
			if dims[axisIdx] != dims[firstAxis] {
				exceptions.Panicf("Einsum(%q): subscript %q is repeated for operand #%d but the extents don't match (%d != %d)",
					p.equation, indexLabel(label), opIdx, dims[firstAxis], dims[axisIdx])
			}
			operand = moveLastAxisTo(tensors.Diagonal(operand, firstAxis, axisIdx), firstAxis)
		} else {
			labelAxis[label] = axisIdx
			permShape[p.labelSlots[label]] = axisIdx
			axisIdx++
		}
	}

	// One size-1 axis appended per missing slot, in slot order.
	var missing int
	for _, idx := range permShape {
		if idx == -1 {
			missing++
		}
	}
	if missing > 0 {
		appendAxes := make([]int, missing)
		for ii := range appendAxes {
			appendAxes[ii] = -1
		}
		operand = tensors.InsertAxes(operand, appendAxes...)
		for ii := range permShape {
			if permShape[ii] == -1 {
				permShape[ii] = axisIdx
				axisIdx++
			}
		}
	}
	return tensors.TransposeAllAxes(operand, permShape...)
}

// moveLastAxisTo moves the last axis of t to position toAxis, shifting the axes in
// between one position up.
func moveLastAxisTo(t *tensors.Tensor, toAxis int) *tensors.Tensor {
	rank := t.Rank()
	permutations := make([]int, rank)
	for ii := range permutations {
		switch {
		case ii < toAxis:
			permutations[ii] = ii
		case ii == toAxis:
			permutations[ii] = rank - 1
		default:
			permutations[ii] = ii - 1
		}
	}
	return tensors.TransposeAllAxes(t, permutations...)
}

// Einsum evaluates the "Einstein summation" described by the equation over any number of
// operands: inner, outer and batched products on arbitrary axes, diagonals for repeated
// subscripts and reduce-sums for subscripts missing from the output. See the package
// documentation for the equation mini-language.
//
// All operands must have the same dtype. Axes bound to the same subscript must either
// have the same extent or extent 1, in which case they broadcast.
//
// The contraction is evaluated pairwise: operands are multiplied in the order given, and
// each summed subscript is contracted -- as a batched matrix multiplication -- at the
// earliest pair after which it no longer appears. The order of the operands can have a
// dramatic impact on the speed and memory usage, consider reordering them.
func Einsum(equation string, operands ...*tensors.Tensor) *tensors.Tensor {
	if len(operands) == 0 {
		exceptions.Panicf("Einsum(%q): at least one operand is required", equation)
	}
	dtype := operands[0].DType()
	for opIdx, operand := range operands {
		operand.AssertValid()
		if operand.DType() != dtype {
			exceptions.Panicf("Einsum(%q): operand #%d has dtype %s, but operand #0 has dtype %s",
				equation, opIdx, operand.DType(), dtype)
		}
	}

	p := parseEinsumEquation(equation, operands)
	numSlots := p.numSlots()
	klog.V(2).Infof("Einsum(%q): output subscripts %q, summed subscripts %q",
		equation, labelsDescription(p.slotLabels[:p.outputRank]), labelsDescription(p.slotLabels[p.outputRank:]))

	aligned := make([]*tensors.Tensor, len(operands))
	for opIdx, operand := range operands {
		aligned[opIdx] = p.alignOperand(opIdx, operand)
	}

	// Resolve the extent of each slot across operands, and find the last operand where
	// the slot is non-trivial: after that operand is multiplied in, the slot can be
	// contracted.
	slotLastOperand := make([]int, numSlots)
	for slot := 0; slot < numSlots; slot++ {
		extent := 1
		for opIdx, operand := range aligned {
			size := operand.Shape().Dimensions[slot]
			if size == 1 {
				continue
			}
			if extent != 1 && extent != size {
				exceptions.Panicf("Einsum(%q): subscript %q has extent %d for operand #%d, which doesn't broadcast with previously seen extent %d",
					equation, indexLabel(p.slotLabels[slot]), size, opIdx, extent)
			}
			extent = size
			slotLastOperand[slot] = opIdx
		}
	}

	// Pairwise reduction: summed slots are kept as size-1 axes (keepDims=true) so the
	// slot numbering stays stable throughout the loop.
	result := aligned[0]
	summed := make([]bool, numSlots)
	for opIdx := 1; opIdx < len(aligned); opIdx++ {
		var sumAxes []int
		for slot := p.outputRank; slot < numSlots; slot++ {
			if !summed[slot] && slotLastOperand[slot] <= opIdx {
				sumAxes = append(sumAxes, slot)
				summed[slot] = true
			}
		}
		klog.V(2).Infof("Einsum(%q): operand #%d contracts slots %v", equation, opIdx, sumAxes)
		result = sumProductPair(result, aligned[opIdx], sumAxes, true)
	}

	// Drop the summed slots, which trail the output slots. After the pairwise loop they
	// all have size 1; in the single-operand case they still carry their original
	// extents and this ReduceSum does the actual summing.
	if numSlots > p.outputRank {
		trailing := make([]int, numSlots-p.outputRank)
		for ii := range trailing {
			trailing[ii] = p.outputRank + ii
		}
		result = tensors.ReduceSum(result, trailing...)
	}
	return result
}
