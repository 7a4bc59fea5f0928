// Package ptr holds helpers for the optional fields of declared resources.
package ptr

// To creates a pointer to the given value.
func To[T any](v T) *T {
	return &v
}

// Deref returns the pointed-to value, or def when p is nil.
func Deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

// Positive returns *p when p is set and strictly positive, otherwise def.
// Declared files use zero and negatives to mean "unset".
func Positive(p *int, def int) int {
	if p == nil || *p <= 0 {
		return def
	}
	return *p
}

// Clone returns a new pointer holding a copy of *p, or nil.
func Clone[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
