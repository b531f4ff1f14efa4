package model

// Context carries the caller-supplied facts about an operation.
// Accessors are fail-closed: a missing or mistyped field reads as the
// least favorable value for whichever check consults it.
type Context map[string]any

// Bool returns the named field as a bool. Absent or non-bool values
// read as false.
func (c Context) Bool(key string) bool {
	if c == nil {
		return false
	}
	v, ok := c[key].(bool)
	return ok && v
}

// String returns the named field as a string. Absent or non-string
// values read as "".
func (c Context) String(key string) string {
	if c == nil {
		return ""
	}
	s, _ := c[key].(string)
	return s
}

// Has reports whether the field is present with a non-empty value.
func (c Context) Has(key string) bool {
	if c == nil {
		return false
	}
	v, ok := c[key]
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr {
		return s != ""
	}
	return true
}

// Clone returns a shallow copy so stored summaries cannot be mutated
// by the caller after submission.
func (c Context) Clone() Context {
	if c == nil {
		return nil
	}
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
