/*
Package slice contains byte slice helpers.
*/
package slice

// Copy is a helper for copying slice data. Unlike append([]byte(nil), b...)
// it keeps empty non-nil slices non-nil.
func Copy(b []byte) []byte {
	if b == nil {
		return nil
	}
	d := make([]byte, len(b))
	copy(d, b)
	return d
}
