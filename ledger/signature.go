package ledger

import (
	"fmt"
	"reflect"
	"runtime"
	"strconv"
	"unsafe"
)

const maxSignatureString = 64

// identity is the key a value is cached under within one capture window.
// Only reference values have one.
type identity struct {
	typ  reflect.Type
	ptr  uintptr
	size int
}

// identityOf returns the identity of a reference value. Two references are
// the same value exactly when their identities are equal.
func identityOf(v any) (identity, bool) {
	if v == nil {
		return identity{}, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.UnsafePointer:
		return identity{typ: rv.Type(), ptr: rv.Pointer()}, true
	case reflect.Slice:
		return identity{typ: rv.Type(), ptr: rv.Pointer(), size: rv.Len()}, true
	case reflect.Func:
		// Every closure instance has its own func value; the code pointer is
		// shared by all closures created from one literal.
		return identity{typ: rv.Type(), ptr: funcValuePointer(v)}, true
	default:
		return identity{}, false
	}
}

// funcValuePointer returns the data word of the interface holding a func,
// which points at the closure's func value.
func funcValuePointer(v any) uintptr {
	type eface struct {
		typ  unsafe.Pointer
		data unsafe.Pointer
	}
	return uintptr((*eface)(unsafe.Pointer(&v)).data)
}

// Same reports whether prev and next are the same value: identical
// references, or equal plain values.
func Same(prev, next any) bool {
	if prev == nil || next == nil {
		return prev == nil && next == nil
	}
	if reflect.TypeOf(prev) != reflect.TypeOf(next) {
		return false
	}
	if a, ok := identityOf(prev); ok {
		b, _ := identityOf(next)
		return a == b
	}
	return equalValues(prev, next)
}

func equalValues(a, b any) (equal bool) {
	if !reflect.TypeOf(a).Comparable() {
		return false
	}
	// Interface fields holding non-comparable values still panic on ==.
	defer func() {
		if recover() != nil {
			equal = false
		}
	}()
	return a == b
}

// isStructural reports whether v is a record or a callable, the categories
// whose re-creation is worth flagging.
func isStructural(v any) bool {
	if v == nil {
		return false
	}
	t := reflect.TypeOf(v)
	switch t.Kind() {
	case reflect.Map, reflect.Struct, reflect.Func:
		return true
	case reflect.Pointer:
		return t.Elem().Kind() == reflect.Struct
	default:
		return false
	}
}

// signature summarizes v by shape only: records by key count, struct
// instances by type name, slices and arrays by length, funcs by the name of
// the literal that produced them. Pointer chains to anything but a struct are
// followed maxDepth levels deep.
func (c *Classifier) signature(v any) string {
	if v == nil {
		return "nil"
	}
	if id, ok := identityOf(v); ok {
		if sig, hit := c.cache[id]; hit {
			c.hits++
			return sig
		}
		sig := c.summarize(reflect.ValueOf(v), 0)
		c.cache[id] = sig
		c.misses++
		return sig
	}
	return c.summarize(reflect.ValueOf(v), 0)
}

func (c *Classifier) summarize(rv reflect.Value, depth int) string {
	if !rv.IsValid() {
		return "nil"
	}
	if depth > c.maxDepth {
		return rv.Type().String()
	}
	switch rv.Kind() {
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64)
	case reflect.Complex64, reflect.Complex128:
		return fmt.Sprint(rv.Complex())
	case reflect.String:
		s := rv.String()
		if len(s) > maxSignatureString {
			s = s[:maxSignatureString] + "…"
		}
		return strconv.Quote(s)
	case reflect.Slice, reflect.Array:
		return "[" + strconv.Itoa(rv.Len()) + "]"
	case reflect.Map:
		if rv.Len() == 0 {
			return "{}"
		}
		return "{" + strconv.Itoa(rv.Len()) + "}"
	case reflect.Struct:
		return rv.Type().String() + "{…}"
	case reflect.Pointer:
		if rv.IsNil() {
			return "nil"
		}
		if rv.Elem().Kind() == reflect.Struct {
			return "*" + rv.Elem().Type().String() + "{…}"
		}
		return "*" + c.summarize(rv.Elem(), depth+1)
	case reflect.Interface:
		if rv.IsNil() {
			return "nil"
		}
		return c.summarize(rv.Elem(), depth)
	case reflect.Func:
		if rv.IsNil() {
			return "nil"
		}
		if fn := runtime.FuncForPC(rv.Pointer()); fn != nil {
			return "func " + fn.Name()
		}
		return "func"
	default:
		return rv.Type().String()
	}
}
