package mcp

// Ptr returns a pointer to the given value.
// This is useful for constructing optional fields in structs that use pointer types.
//
// Example:
//
//	total := 100.0
//	handler(progress, Ptr(total), "uploading")
func Ptr[T any](v T) *T {
	return &v
}
