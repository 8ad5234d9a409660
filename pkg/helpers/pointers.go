package helpers

// PtrOf returns a pointer to a copy of v. Handy for optional config fields.
//
// Example:
//
//	cfg.Temperature = helpers.PtrOf(float32(0))
func PtrOf[T any](v T) *T { return &v }
