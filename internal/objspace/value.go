package objspace

// VKind identifies the kind of a boxed value.
type VKind uint8

const (
	VKNil VKind = iota
	VKInt
	VKBool
	VKHandle
)

// Value is a small tagged value as seen by generated code: either an
// immediate or a handle to a heap object.
type Value struct {
	Kind VKind
	H    Handle
	I    int64
}

// Nil is the zero Value.
var Nil = Value{}

// Int boxes an immediate integer.
func Int(i int64) Value { return Value{Kind: VKInt, I: i} }

// Bool boxes an immediate boolean.
func Bool(b bool) Value {
	v := Value{Kind: VKBool}
	if b {
		v.I = 1
	}
	return v
}

// Ref boxes a heap handle.
func Ref(h Handle) Value { return Value{Kind: VKHandle, H: h} }
