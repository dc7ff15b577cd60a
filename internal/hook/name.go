package hook

import "strings"

// NamespaceSeparator separates the segments of a hook name.
const NamespaceSeparator = "/"

// Namespace returns the first segment of a hook name.
// Names without a separator are their own namespace.
func Namespace(name string) string {
	if i := strings.Index(name, NamespaceSeparator); i >= 0 {
		return name[:i]
	}
	return name
}

// Segments splits a hook name into its slash-separated parts.
func Segments(name string) []string {
	if name == "" {
		return nil
	}
	return strings.Split(name, NamespaceSeparator)
}

// validateName reports whether name can be registered.
func validateName(name string) error {
	if name == "" {
		return ErrInvalidHookName
	}
	return nil
}
