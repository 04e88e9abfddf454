package util

// MaskToken obscures an offer token for logging purposes, showing only the
// first and last few characters.
func MaskToken(token string) string {
	if len(token) > 8 {
		return token[:4] + "..." + token[len(token)-4:]
	} else if len(token) > 4 {
		return token[:2] + "..." + token[len(token)-2:]
	} else if len(token) > 2 {
		return token[:1] + "..." + token[len(token)-1:]
	}
	return token
}
