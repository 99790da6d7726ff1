package compare

import (
	"reflect"
)

// Strategy selects the equality policy applied by Equal.
type Strategy string

const (
	// StrategyReference performs an identity check. It is the cheapest
	// strategy and the default for stores.
	StrategyReference Strategy = "reference"

	// StrategyShallow compares one level of keys/elements/fields, using
	// identity for the contained values.
	StrategyShallow Strategy = "shallow"

	// StrategyDeep walks the full structure recursively.
	StrategyDeep Strategy = "deep"

	// StrategyCustom delegates to Options.Custom.
	StrategyCustom Strategy = "custom"
)

// Func is a caller supplied equality predicate used by StrategyCustom.
type Func func(a, b any) bool

// Options configures a single comparison. The zero value means
// StrategyReference with no limits.
type Options struct {
	// Strategy selects the comparison policy. Empty defaults to reference.
	Strategy Strategy

	// Custom is required when Strategy is StrategyCustom. A nil Custom with
	// StrategyCustom panics; supplying a throwing comparator is a caller
	// error and is not recovered.
	Custom Func

	// MaxDepth bounds deep comparison recursion. Zero means unlimited.
	// When the limit is reached the remaining subtrees are compared by
	// identity.
	MaxDepth int

	// IgnoreKeys lists map keys and struct field names excluded from
	// shallow and deep comparison.
	IgnoreKeys []string

	// CircularCheck tracks visited object pairs during deep comparison.
	// A revisited pair is treated as equal rather than recursed into,
	// which keeps cyclic structures from looping forever.
	CircularCheck bool
}

// Equal reports whether a and b are equal under the given options.
func Equal(a, b any, opts Options) bool {
	switch opts.Strategy {
	case StrategyShallow:
		return shallowEqual(a, b, opts)
	case StrategyDeep:
		d := &deepComparer{opts: opts}
		if opts.CircularCheck {
			d.visited = map[visit]bool{}
		}
		return d.equal(reflect.ValueOf(a), reflect.ValueOf(b), 0)
	case StrategyCustom:
		if opts.Custom == nil {
			panic("compare: StrategyCustom requires a Custom func")
		}
		return opts.Custom(a, b)
	default:
		return Identical(a, b)
	}
}

// Identical reports whether a and b refer to the same value. Pointers, maps,
// slices, channels and funcs compare by address; comparable values compare
// with ==; everything else is unequal.
func Identical(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Len() == vb.Len() && (va.Len() == 0 || va.Pointer() == vb.Pointer())
	}
	if va.Comparable() {
		return va.Interface() == vb.Interface()
	}
	return false
}

func ignored(key string, opts Options) bool {
	for _, k := range opts.IgnoreKeys {
		if k == key {
			return true
		}
	}
	return false
}

// shallowEqual compares one level of structure: map keys, slice/array
// elements or exported struct fields. Contained values are compared by
// identity. Non-container values fall back to Identical.
func shallowEqual(a, b any, opts Options) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}

	switch va.Kind() {
	case reflect.Map:
		if va.Len() != vb.Len() {
			return false
		}
		iter := va.MapRange()
		for iter.Next() {
			k := iter.Key()
			if k.Kind() == reflect.String && ignored(k.String(), opts) {
				continue
			}
			other := vb.MapIndex(k)
			if !other.IsValid() {
				return false
			}
			if !Identical(iter.Value().Interface(), other.Interface()) {
				return false
			}
		}
		return true

	case reflect.Slice, reflect.Array:
		if va.Len() != vb.Len() {
			return false
		}
		for i := 0; i < va.Len(); i++ {
			if !Identical(va.Index(i).Interface(), vb.Index(i).Interface()) {
				return false
			}
		}
		return true

	case reflect.Struct:
		return shallowStructEqual(va, vb, opts)

	case reflect.Pointer:
		if va.Pointer() == vb.Pointer() {
			return true
		}
		if va.Elem().Kind() == reflect.Struct {
			return shallowStructEqual(va.Elem(), vb.Elem(), opts)
		}
		return false
	}

	return Identical(a, b)
}

func shallowStructEqual(va, vb reflect.Value, opts Options) bool {
	t := va.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || ignored(f.Name, opts) {
			continue
		}
		if !Identical(va.Field(i).Interface(), vb.Field(i).Interface()) {
			return false
		}
	}
	return true
}

// visit identifies a pair of addressable values already seen during a deep
// walk. Tracking pairs (not single addresses) matches the revisit-is-equal
// contract for cyclic structures.
type visit struct {
	a, b uintptr
	typ  reflect.Type
}

type deepComparer struct {
	opts    Options
	visited map[visit]bool
}

func (d *deepComparer) equal(va, vb reflect.Value, depth int) bool {
	if !va.IsValid() || !vb.IsValid() {
		return va.IsValid() == vb.IsValid()
	}
	if va.Type() != vb.Type() {
		return false
	}
	if d.opts.MaxDepth > 0 && depth >= d.opts.MaxDepth {
		return Identical(va.Interface(), vb.Interface())
	}

	if d.visited != nil {
		switch va.Kind() {
		case reflect.Pointer, reflect.Map, reflect.Slice:
			if !va.IsNil() && !vb.IsNil() {
				v := visit{a: va.Pointer(), b: vb.Pointer(), typ: va.Type()}
				if d.visited[v] {
					return true
				}
				d.visited[v] = true
			}
		}
	}

	switch va.Kind() {
	case reflect.Pointer, reflect.Interface:
		if va.IsNil() || vb.IsNil() {
			return va.IsNil() == vb.IsNil()
		}
		return d.equal(va.Elem(), vb.Elem(), depth)

	case reflect.Map:
		if va.IsNil() != vb.IsNil() || va.Len() != vb.Len() {
			return false
		}
		iter := va.MapRange()
		for iter.Next() {
			k := iter.Key()
			if k.Kind() == reflect.String && ignored(k.String(), d.opts) {
				continue
			}
			other := vb.MapIndex(k)
			if !other.IsValid() {
				return false
			}
			if !d.equal(iter.Value(), other, depth+1) {
				return false
			}
		}
		return true

	case reflect.Slice, reflect.Array:
		if va.Kind() == reflect.Slice && va.IsNil() != vb.IsNil() {
			return false
		}
		if va.Len() != vb.Len() {
			return false
		}
		for i := 0; i < va.Len(); i++ {
			if !d.equal(va.Index(i), vb.Index(i), depth+1) {
				return false
			}
		}
		return true

	case reflect.Struct:
		t := va.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() || ignored(f.Name, d.opts) {
				continue
			}
			if !d.equal(va.Field(i), vb.Field(i), depth+1) {
				return false
			}
		}
		return true
	}

	if va.Comparable() {
		return va.Interface() == vb.Interface()
	}
	return false
}
