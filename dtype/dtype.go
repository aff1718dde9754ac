// Package dtype defines the closed set of sample types an image can hold,
// and the promotion rules used to pick a computation type for an operation.
package dtype

// Type is the runtime tag for the element type of an image.
//
// The ordering is meaningful: types are sorted by "reach", so that for two
// promoted types the larger tag can represent the result of combining both.
// The promotion functions below rely on this.
type Type int

// Supported sample types.
const (
	Binary Type = iota
	Uint8
	Int8
	Uint16
	Int16
	Uint32
	Int32
	Uint64
	Int64
	Float32
	Float64
	Complex64
	Complex128
)

// SizeOf returns the byte size of one sample of this type.
func (t Type) SizeOf() int {
	switch t {
	case Binary, Uint8, Int8:
		return 1
	case Uint16, Int16:
		return 2
	case Uint32, Int32, Float32:
		return 4
	case Uint64, Int64, Float64, Complex64:
		return 8
	case Complex128:
		return 16
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the type.
func (t Type) String() string {
	switch t {
	case Binary:
		return "binary"
	case Uint8:
		return "uint8"
	case Int8:
		return "int8"
	case Uint16:
		return "uint16"
	case Int16:
		return "int16"
	case Uint32:
		return "uint32"
	case Int32:
		return "int32"
	case Uint64:
		return "uint64"
	case Int64:
		return "int64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Complex64:
		return "complex64"
	case Complex128:
		return "complex128"
	default:
		return "unknown"
	}
}

// IsBinary returns true for the binary (boolean) type.
func (t Type) IsBinary() bool {
	return t == Binary
}

// IsUInt returns true for the unsigned integer types.
func (t Type) IsUInt() bool {
	switch t {
	case Uint8, Uint16, Uint32, Uint64:
		return true
	}
	return false
}

// IsSInt returns true for the signed integer types.
func (t Type) IsSInt() bool {
	switch t {
	case Int8, Int16, Int32, Int64:
		return true
	}
	return false
}

// IsInteger returns true for signed and unsigned integer types.
func (t Type) IsInteger() bool {
	return t.IsUInt() || t.IsSInt()
}

// IsFloat returns true for the floating-point types.
func (t Type) IsFloat() bool {
	return t == Float32 || t == Float64
}

// IsComplex returns true for the complex types.
func (t Type) IsComplex() bool {
	return t == Complex64 || t == Complex128
}

// IsReal returns true for integer and floating-point types (not binary, not
// complex).
func (t Type) IsReal() bool {
	return t.IsInteger() || t.IsFloat()
}

// IsUnsigned returns true for binary and unsigned integer types.
func (t Type) IsUnsigned() bool {
	return t.IsBinary() || t.IsUInt()
}

// IsSigned returns true for signed integer, floating-point and complex types.
func (t Type) IsSigned() bool {
	return t.IsSInt() || t.IsFloat() || t.IsComplex()
}

// Class is a bit set of type classes, used by filters to declare which
// computation types they support. Dispatch rejects anything outside the set
// instead of silently coercing.
type Class uint8

// Type classes.
const (
	ClassBinary Class = 1 << iota
	ClassInteger
	ClassFloat
	ClassComplex
)

// Common class combinations.
const (
	ClassReal       = ClassInteger | ClassFloat
	ClassFlex       = ClassFloat | ClassComplex
	ClassAll        = ClassBinary | ClassInteger | ClassFloat | ClassComplex
	ClassNonComplex = ClassBinary | ClassInteger | ClassFloat
)

// ClassOf returns the class a type belongs to.
func ClassOf(t Type) Class {
	switch {
	case t.IsBinary():
		return ClassBinary
	case t.IsInteger():
		return ClassInteger
	case t.IsFloat():
		return ClassFloat
	default:
		return ClassComplex
	}
}

// In reports whether the type's class is in the set.
func (t Type) In(set Class) bool {
	return ClassOf(t)&set != 0
}
