package lifepower

// sanitizeText keeps the characters version strings are known to use.
// The firmware pads its replies with bytes that decode to nothing useful
// (likely GB2312 noise), those are dropped rather than replaced.
func sanitizeText(b []byte) string {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		switch {
		case c >= 'a' && c <= 'z',
			c >= 'A' && c <= 'Z',
			c >= '0' && c <= '9',
			c == '-', c == '.', c == '_', c == ' ':
			out = append(out, c)
		}
	}
	return string(out)
}
