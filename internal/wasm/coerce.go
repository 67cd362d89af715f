package wasm

import (
	"github.com/tetratelabs/wazero/api"
)

// lowerArgs converts host values to wasm stack values following the export's
// declared parameter types. Integers and floats are converted to the declared
// type; anything else is rejected.
func lowerArgs(name string, types []api.ValueType, args []any) ([]uint64, error) {
	if len(types) != len(args) {
		return nil, &ArityError{FunctionName: name, Want: len(types), Got: len(args)}
	}

	stack := make([]uint64, len(args))
	for i, arg := range args {
		v, ok := lower(types[i], arg)
		if !ok {
			return nil, &ArgumentTypeError{FunctionName: name, Index: i, Value: arg}
		}
		stack[i] = v
	}
	return stack, nil
}

func lower(t api.ValueType, arg any) (uint64, bool) {
	if f, isFloat := asFloat(arg); isFloat {
		switch t {
		case api.ValueTypeF32:
			return api.EncodeF32(float32(f)), true
		case api.ValueTypeF64:
			return api.EncodeF64(f), true
		case api.ValueTypeI32:
			return api.EncodeI32(int32(f)), true
		case api.ValueTypeI64:
			return api.EncodeI64(int64(f)), true
		}
		return 0, false
	}

	n, ok := asInt(arg)
	if !ok {
		return 0, false
	}
	switch t {
	case api.ValueTypeI32:
		return api.EncodeI32(int32(n)), true
	case api.ValueTypeI64:
		return api.EncodeI64(n), true
	case api.ValueTypeF32:
		return api.EncodeF32(float32(n)), true
	case api.ValueTypeF64:
		return api.EncodeF64(float64(n)), true
	}
	return 0, false
}

func asFloat(arg any) (float64, bool) {
	switch v := arg.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

func asInt(arg any) (int64, bool) {
	switch v := arg.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// liftInt reads the first result as a signed integer of the declared type.
func liftInt(types []api.ValueType, results []uint64) (int64, bool) {
	if len(results) == 0 || len(types) == 0 {
		return 0, false
	}
	switch types[0] {
	case api.ValueTypeI32:
		return int64(api.DecodeI32(results[0])), true
	case api.ValueTypeI64:
		return int64(results[0]), true
	}
	return 0, false
}
