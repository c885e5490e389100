// Package value provides the immutable object graph produced by the decoders.
//
// Every accessor tolerates absence: indexing past the end of an array, looking up a
// missing key or asking a string for a number yields Null or a zero default instead
// of an error. A nil *Value behaves exactly like Null.
package value

import (
	"fmt"
	"slices"
	"strconv"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns the JSON name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is one node of a decoded JSON document. Values are never modified after
// construction.
type Value struct {
	kind  Kind
	b     bool
	isInt bool
	i     int64
	f     float64
	s     string
	arr   []*Value
	obj   map[string]*Value
}

var (
	// Null is the JSON null singleton.
	Null = &Value{kind: KindNull}
	// True and False are the boolean singletons.
	True  = &Value{kind: KindBool, b: true}
	False = &Value{kind: KindBool, b: false}
	// EmptyArray and EmptyObject are returned for `[]` and `{}`.
	EmptyArray  = &Value{kind: KindArray}
	EmptyObject = &Value{kind: KindObject, obj: map[string]*Value{}}
)

// Bool returns the boolean singleton for b.
func Bool(b bool) *Value {
	if b {
		return True
	}
	return False
}

// Int returns an exact integer number.
func Int(n int64) *Value {
	return &Value{kind: KindNumber, isInt: true, i: n}
}

// Float returns a floating point number.
func Float(f float64) *Value {
	return &Value{kind: KindNumber, f: f}
}

// String returns a string value.
func String(s string) *Value {
	return &Value{kind: KindString, s: s}
}

// Array takes ownership of items; callers must not modify the slice afterwards.
func Array(items []*Value) *Value {
	if len(items) == 0 {
		return EmptyArray
	}
	return &Value{kind: KindArray, arr: items}
}

// Object takes ownership of fields; callers must not modify the map afterwards.
func Object(fields map[string]*Value) *Value {
	if len(fields) == 0 {
		return EmptyObject
	}
	return &Value{kind: KindObject, obj: fields}
}

// Kind returns the variant tag.
func (v *Value) Kind() Kind {
	if v == nil {
		return KindNull
	}
	return v.kind
}

func (v *Value) IsNull() bool { return v == nil || v.kind == KindNull }

// IsInteger reports whether v is a number that was read without fraction or exponent.
func (v *Value) IsInteger() bool { return v != nil && v.kind == KindNumber && v.isInt }

// Len returns the element count of arrays and objects, 0 otherwise.
func (v *Value) Len() int {
	switch v.Kind() {
	case KindArray:
		return len(v.arr)
	case KindObject:
		return len(v.obj)
	default:
		return 0
	}
}

// Index returns the i-th array element, or Null.
func (v *Value) Index(i int) *Value {
	if v.Kind() != KindArray || i < 0 || i >= len(v.arr) {
		return Null
	}
	return v.arr[i]
}

// Get returns the value stored under key, or Null.
func (v *Value) Get(key string) *Value {
	if item, ok := v.TryGet(key); ok {
		return item
	}
	return Null
}

func (v *Value) ContainsKey(key string) bool {
	_, ok := v.TryGet(key)
	return ok
}

// TryGet reports whether key exists. A key explicitly mapped to null exists.
func (v *Value) TryGet(key string) (*Value, bool) {
	if v.Kind() != KindObject {
		return nil, false
	}
	item, ok := v.obj[key]
	return item, ok
}

// Keys returns the object keys in sorted order.
func (v *Value) Keys() []string {
	if v.Kind() != KindObject {
		return nil
	}
	keys := make([]string, 0, len(v.obj))
	for k := range v.obj {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Items returns the array elements. The slice must not be modified.
func (v *Value) Items() []*Value {
	if v.Kind() != KindArray {
		return nil
	}
	return v.arr
}

// StringOK returns the text of a string value.
func (v *Value) StringOK() (string, bool) {
	if v.Kind() != KindString {
		return "", false
	}
	return v.s, true
}

// Int64OK returns numbers as int64; floats are truncated.
func (v *Value) Int64OK() (int64, bool) {
	if v.Kind() != KindNumber {
		return 0, false
	}
	if v.isInt {
		return v.i, true
	}
	return int64(v.f), true
}

func (v *Value) IntOK() (int, bool) {
	n, ok := v.Int64OK()
	return int(n), ok
}

func (v *Value) Float64OK() (float64, bool) {
	if v.Kind() != KindNumber {
		return 0, false
	}
	if v.isInt {
		return float64(v.i), true
	}
	return v.f, true
}

func (v *Value) BoolOK() (bool, bool) {
	if v.Kind() != KindBool {
		return false, false
	}
	return v.b, true
}

func (v *Value) AsString() string {
	s, _ := v.StringOK()
	return s
}

func (v *Value) AsInt64() int64 {
	n, _ := v.Int64OK()
	return n
}

func (v *Value) AsInt() int {
	n, _ := v.IntOK()
	return n
}

func (v *Value) AsFloat64() float64 {
	f, _ := v.Float64OK()
	return f
}

func (v *Value) AsBool() bool {
	b, _ := v.BoolOK()
	return b
}

// Interface converts v into plain Go values: nil, bool, int64, float64, string,
// []any and map[string]any.
func (v *Value) Interface() any {
	switch v.Kind() {
	case KindBool:
		return v.b
	case KindNumber:
		if v.isInt {
			return v.i
		}
		return v.f
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, item := range v.obj {
			out[k] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// String renders scalars as text and containers as a short summary.
func (v *Value) String() string {
	switch v.Kind() {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		if v.isInt {
			return strconv.FormatInt(v.i, 10)
		}
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	case KindArray:
		return fmt.Sprintf("[array len=%d]", len(v.arr))
	case KindObject:
		return fmt.Sprintf("{object len=%d}", len(v.obj))
	default:
		return "null"
	}
}
