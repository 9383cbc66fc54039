// einsum evaluates one Einstein-summation equation over randomly initialized operands
// and reports the result, timing and memory usage:
//
//	einsum -equation "bij,bjk->bik" -dims "2x3x4,2x4x5"
//	einsum -equation "ii->i" -dims "4x4" -dtype float64
//
// Use -v=2 to log the contraction plan and the pairwise reduction steps.
package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/einsum"
	"github.com/gomlx/einsum/shapes"
	"github.com/gomlx/einsum/tensors"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/janpfeifer/must"
	"github.com/x448/float16"
	"k8s.io/klog/v2"
)

var (
	flagEquation = flag.String("equation", "ij,jk->ik", "Einsum equation to evaluate.")
	flagDims     = flag.String("dims", "4x8,8x16", "Comma-separated list with the dimensions of each operand, "+
		"each operand given as its extents joined by \"x\" (e.g. \"2x3x4,2x4x5\"). "+
		"An empty entry denotes a scalar operand.")
	flagDType = flag.String("dtype", "float32", "DType of the operands: float32, float64, float16, bfloat16, "+
		"int32 or int64.")
	flagSeed = flag.Uint64("seed", 42, "Seed for the pseudo-random operand values.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if *flagEquation == "" {
		klog.Errorf("Missing -equation to evaluate. See 'einsum -help'.")
		os.Exit(1)
	}
	dtype := must.M1(dtypes.DTypeString(*flagDType))

	rng := rand.New(rand.NewPCG(*flagSeed, *flagSeed))
	allDims := parseOperandDims(*flagDims)
	operands := make([]*tensors.Tensor, len(allDims))
	var inputBytes uintptr
	for ii, dims := range allDims {
		operands[ii] = randomOperand(rng, dtype, dims)
		inputBytes += operands[ii].Shape().Memory()
		fmt.Printf("\toperand #%d: %s (%s values)\n",
			ii, operands[ii].Shape(), humanize.Comma(int64(operands[ii].Size())))
	}

	var result *tensors.Tensor
	start := time.Now()
	err := exceptions.TryCatch[error](func() {
		result = einsum.Einsum(*flagEquation, operands...)
	})
	if err != nil {
		klog.Errorf("Failed to evaluate %q: %+v", *flagEquation, err)
		os.Exit(1)
	}
	elapsed := time.Since(start)

	fmt.Printf("Einsum(%q) -> %s, evaluated in %s\n", *flagEquation, result.Shape(), elapsed)
	fmt.Printf("\tresult: %s\n", result)
	fmt.Printf("\tmemory: %s of inputs, %s of output\n",
		humanize.Bytes(uint64(inputBytes)), humanize.Bytes(uint64(result.Shape().Memory())))
}

// parseOperandDims parses the -dims flag: one entry per operand, extents joined by "x".
func parseOperandDims(spec string) [][]int {
	parts := strings.Split(spec, ",")
	allDims := make([][]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			// A scalar operand.
			allDims = append(allDims, nil)
			continue
		}
		var dims []int
		for _, field := range strings.Split(part, "x") {
			dim, err := strconv.Atoi(strings.TrimSpace(field))
			if err != nil {
				klog.Errorf("Invalid dimension %q in -dims=%q: %v", field, spec, err)
				os.Exit(1)
			}
			dims = append(dims, dim)
		}
		allDims = append(allDims, dims)
	}
	return allDims
}

// randomOperand creates a tensor with the given dtype and dimensions, filled with
// pseudo-random values: floats in [-1, 1), integers in [0, 10).
func randomOperand(rng *rand.Rand, dtype dtypes.DType, dims []int) *tensors.Tensor {
	t := tensors.FromShape(shapes.Make(dtype, dims...))
	switch dtype {
	case dtypes.Float32:
		tensors.MutableFlatData(t, func(flat []float32) {
			for ii := range flat {
				flat[ii] = rng.Float32()*2 - 1
			}
		})
	case dtypes.Float64:
		tensors.MutableFlatData(t, func(flat []float64) {
			for ii := range flat {
				flat[ii] = rng.Float64()*2 - 1
			}
		})
	case dtypes.Float16:
		tensors.MutableFlatData(t, func(flat []float16.Float16) {
			for ii := range flat {
				flat[ii] = float16.Fromfloat32(rng.Float32()*2 - 1)
			}
		})
	case dtypes.BFloat16:
		tensors.MutableFlatData(t, func(flat []bfloat16.BFloat16) {
			for ii := range flat {
				flat[ii] = bfloat16.FromFloat32(rng.Float32()*2 - 1)
			}
		})
	case dtypes.Int32:
		tensors.MutableFlatData(t, func(flat []int32) {
			for ii := range flat {
				flat[ii] = rng.Int32N(10)
			}
		})
	case dtypes.Int64:
		tensors.MutableFlatData(t, func(flat []int64) {
			for ii := range flat {
				flat[ii] = rng.Int64N(10)
			}
		})
	default:
		klog.Errorf("Unsupported -dtype=%q, use one of: float32, float64, float16, bfloat16, int32, int64.", dtype)
		os.Exit(1)
	}
	return t
}
