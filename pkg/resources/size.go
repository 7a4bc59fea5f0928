package resources

import "strings"

// SizeClass is a widget sizing tier.
type SizeClass string

// Size classes.
const (
	SizeSmall  SizeClass = "small"
	SizeMedium SizeClass = "medium"
	SizeLarge  SizeClass = "large"
)

// DefaultSize applies when a placement declares no size.
const DefaultSize = SizeMedium

// SizeClasses lists the known size classes.
func SizeClasses() []SizeClass {
	return []SizeClass{SizeSmall, SizeMedium, SizeLarge}
}

// String returns the string representation of a size class.
func (s SizeClass) String() string {
	return string(s)
}

// IsValid reports whether s is one of the known size classes.
func (s SizeClass) IsValid() bool {
	switch s {
	case SizeSmall, SizeMedium, SizeLarge:
		return true
	}
	return false
}

// ParseSizeClass normalizes a declared size; empty means the default.
func ParseSizeClass(s string) (SizeClass, bool) {
	if strings.TrimSpace(s) == "" {
		return DefaultSize, true
	}
	size := SizeClass(strings.ToLower(strings.TrimSpace(s)))
	return size, size.IsValid()
}
