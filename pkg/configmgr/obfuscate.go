package configmgr

// Rot13 rotates ASCII letters by 13 places; applying it twice restores the
// input. It only keeps stored passwords from being read at a glance and is
// not encryption.
func Rot13(s string) string {
	out := []rune(s)
	for i, r := range out {
		switch {
		case r >= 'a' && r <= 'z':
			out[i] = 'a' + (r-'a'+13)%26
		case r >= 'A' && r <= 'Z':
			out[i] = 'A' + (r-'A'+13)%26
		}
	}
	return string(out)
}
