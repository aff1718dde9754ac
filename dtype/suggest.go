package dtype

// The Suggest functions compute a type suitable to hold the result of an
// operation, promoting where the natural result would not fit. Operations
// resolve these once per call, never per sample.

// SuggestFloat returns a floating-point type that can hold samples of t
// without meaningful precision loss.
func SuggestFloat(t Type) Type {
	switch t {
	case Uint32, Int32, Uint64, Int64, Float64, Complex128:
		return Float64
	default:
		return Float32
	}
}

// SuggestComplex returns a complex type that can hold samples of t.
func SuggestComplex(t Type) Type {
	switch t {
	case Uint32, Int32, Uint64, Int64, Float64, Complex128:
		return Complex128
	default:
		return Complex64
	}
}

// SuggestFlex returns a floating-point or complex type that can hold samples
// of t.
func SuggestFlex(t Type) Type {
	switch t {
	case Complex64:
		return Complex64
	case Complex128:
		return Complex128
	default:
		return SuggestFloat(t)
	}
}

// SuggestFlexBin is like SuggestFlex but leaves binary samples binary, so
// that logical operations on binary images stay binary.
func SuggestFlexBin(t Type) Type {
	if t == Binary {
		return Binary
	}
	return SuggestFlex(t)
}

// SuggestDouble returns a double-precision type (real or complex) that can
// hold large sums of samples of t.
func SuggestDouble(t Type) Type {
	if t.IsComplex() {
		return Complex128
	}
	return Float64
}

// SuggestReal returns a real type that can hold the samples of t; complex
// types map to the floating-point type of their components, binary maps to
// uint8.
func SuggestReal(t Type) Type {
	switch t {
	case Binary:
		return Uint8
	case Complex64:
		return Float32
	case Complex128:
		return Float64
	default:
		return t
	}
}

// SuggestAbs returns a type that can hold the absolute value of samples of t:
// signed integers map to the unsigned integer of the same size, complex types
// to the floating-point type of their components.
func SuggestAbs(t Type) Type {
	switch t {
	case Int8:
		return Uint8
	case Int16:
		return Uint16
	case Int32:
		return Uint32
	case Int64:
		return Uint64
	case Complex64:
		return Float32
	case Complex128:
		return Float64
	default:
		return t
	}
}

// SuggestArithmetic returns a flex or binary type that can hold the result of
// an arithmetic computation combining the two types. Both inputs are first
// promoted with SuggestFlexBin, then the wider of the two wins; mixing a
// single-precision complex with a double-precision float yields a
// double-precision complex.
func SuggestArithmetic(t1, t2 Type) Type {
	t1 = SuggestFlexBin(t1)
	t2 = SuggestFlexBin(t2)
	if t2 > t1 {
		t1, t2 = t2, t1
	}
	switch {
	case t1 == Complex128:
		return Complex128
	case t1 == Complex64 && t2 == Float64:
		return Complex128
	case t1 == Complex64:
		return Complex64
	case t1 == Float64:
		return Float64
	case t1 == Float32:
		return Float32
	default:
		return Binary
	}
}

// SuggestDyadicOperation returns a type that can hold any sample of either of
// the two types, promoting where neither input type covers both ranges
// (uint8 and int8 yield int16, uint64 and int64 yield int64, a
// single-precision float and a 32- or 64-bit integer yield a double, etc.).
func SuggestDyadicOperation(t1, t2 Type) Type {
	if t1 == t2 {
		return t1
	}
	if t2 > t1 {
		t1, t2 = t2, t1
	}
	// t1 is the "larger" tag of the two.
	switch {
	case t2 == Binary:
		return t1
	case t1.IsComplex():
		if t1 == Complex128 || t2 == Float64 || (t2.IsInteger() && t2.SizeOf() >= 4) {
			return Complex128
		}
		return Complex64
	case t1 == Float64:
		return Float64
	case t1 == Float32:
		if t2.SizeOf() >= 4 {
			return Float64
		}
		return Float32
	}
	// Both are integers.
	return suggestIntegerPair(t1, t2)
}

func suggestIntegerPair(t1, t2 Type) Type {
	if t1.IsSInt() == t2.IsSInt() {
		// Same signedness: the wider one holds both.
		if t2.SizeOf() > t1.SizeOf() {
			return t2
		}
		return t1
	}
	s, u := t1, t2
	if t2.IsSInt() {
		s, u = t2, t1
	}
	if u.SizeOf() < s.SizeOf() {
		return s
	}
	// The unsigned type is at least as wide as the signed one: a signed type
	// of twice the unsigned width holds both, capped at 64 bits.
	switch u {
	case Uint8:
		return Int16
	case Uint16:
		return Int32
	default:
		return Int64
	}
}
