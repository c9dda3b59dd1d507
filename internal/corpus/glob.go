package corpus

import "github.com/bmatcuk/doublestar/v4"

// Match reports whether the slash-separated name matches pattern. A "**"
// segment matches zero or more path segments. Malformed patterns match
// nothing.
func Match(pattern, name string) bool {
	ok, err := doublestar.Match(pattern, name)
	return err == nil && ok
}

// ValidGlob reports whether pattern is well formed.
func ValidGlob(pattern string) bool {
	return doublestar.ValidatePattern(pattern)
}
