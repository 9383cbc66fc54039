// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"reflect"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// FromAnyValue infers the Shape of the given Go value: a scalar of one of the supported
// dtypes or a (nested) slice of them. All sub-slices at one level must have the same
// length, otherwise an error is returned.
//
// Empty slices are not convertible: there is no way to tell the shape of the missing
// sub-slices -- use Make directly for zero-sized shapes.
func FromAnyValue(value any) (shape Shape, err error) {
	err = fromValueRecursive(&shape, reflect.ValueOf(value), reflect.TypeOf(value))
	return
}

func fromValueRecursive(shape *Shape, v reflect.Value, t reflect.Type) error {
	if t == nil {
		return errors.Errorf("cannot convert nil to a shape")
	}
	switch t.Kind() {
	case reflect.Slice:
		if v.Len() == 0 {
			return errors.Errorf("cannot infer a shape from an empty slice (%T) -- use shapes.Make for zero-sized shapes", v.Interface())
		}
		t = t.Elem()
		shape.Dimensions = append(shape.Dimensions, v.Len())
		shapePrefix := shape.Clone()

		// The first element is the reference.
		if err := fromValueRecursive(shape, v.Index(0), t); err != nil {
			return err
		}

		// Test that other elements have the same shape as the first one.
		for ii := 1; ii < v.Len(); ii++ {
			shapeTest := shapePrefix.Clone()
			if err := fromValueRecursive(&shapeTest, v.Index(ii), t); err != nil {
				return err
			}
			if !shape.Equal(shapeTest) {
				return errors.Errorf("sub-slices have irregular shapes, found shapes %q, and %q", shape, shapeTest)
			}
		}
	case reflect.Pointer:
		return errors.Errorf("cannot convert pointer (%s) to a shape", t)
	case reflect.Int, reflect.Uint:
		// Their size is platform-dependent, the flat data would not be addressable generically.
		return errors.Errorf("cannot convert %s to a shape, use an explicitly sized integer type (int32, int64, ...)", t)
	default:
		shape.DType = dtypes.FromGoType(t)
		if shape.DType == dtypes.InvalidDType {
			return errors.Errorf("cannot convert type %s to a tensor dtype", t)
		}
	}
	return nil
}
