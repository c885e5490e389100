package value

// Equal compares v against another *Value or a plain Go value. Null equals nil,
// strings equal Go strings, numbers equal any Go integer or float type. Arrays and
// objects are only equal to themselves.
func (v *Value) Equal(other any) bool {
	if o, ok := other.(*Value); ok {
		return v.equalValue(o)
	}

	switch v.Kind() {
	case KindNull:
		return other == nil
	case KindBool:
		b, ok := other.(bool)
		return ok && b == v.b
	case KindString:
		s, ok := other.(string)
		return ok && s == v.s
	case KindNumber:
		if v.isInt {
			if n, ok := toInt64(other); ok {
				return n == v.i
			}
		}
		f, ok := toFloat64(other)
		if !ok {
			return false
		}
		current, _ := v.Float64OK()
		return current == f
	default:
		return false
	}
}

func (v *Value) equalValue(o *Value) bool {
	if v.Kind() != o.Kind() {
		return false
	}

	switch v.Kind() {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindString:
		return v.s == o.s
	case KindNumber:
		if v.isInt && o.isInt {
			return v.i == o.i
		}
		a, _ := v.Float64OK()
		b, _ := o.Float64OK()
		return a == b
	default:
		return v == o
	}
}

// DeepEqual compares two trees structurally. Integer and float numbers with the
// same numeric value are equal.
func DeepEqual(a, b *Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}

	switch a.Kind() {
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !DeepEqual(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.obj) != len(b.obj) {
			return false
		}
		for k, av := range a.obj {
			bv, ok := b.obj[k]
			if !ok || !DeepEqual(av, bv) {
				return false
			}
		}
		return true
	default:
		return a.equalValue(b)
	}
}

// toInt64 converts integer-typed values into int64.
func toInt64(value any) (int64, bool) {
	switch current := value.(type) {
	case int:
		return int64(current), true
	case int8:
		return int64(current), true
	case int16:
		return int64(current), true
	case int32:
		return int64(current), true
	case int64:
		return current, true
	case uint:
		return int64(current), current <= 1<<63-1
	case uint8:
		return int64(current), true
	case uint16:
		return int64(current), true
	case uint32:
		return int64(current), true
	case uint64:
		return int64(current), current <= 1<<63-1
	default:
		return 0, false
	}
}

// toFloat64 converts supported numeric values to float64.
func toFloat64(value any) (float64, bool) {
	switch current := value.(type) {
	case float32:
		return float64(current), true
	case float64:
		return current, true
	case uint:
		return float64(current), true
	case uint64:
		return float64(current), true
	default:
		n, ok := toInt64(value)
		return float64(n), ok
	}
}
