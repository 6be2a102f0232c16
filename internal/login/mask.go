package login

import "strings"

// MaskEmail keeps enough of an address to correlate log lines. It cuts on
// runes so the result stays valid UTF-8.
func MaskEmail(e string) string {
	e = strings.TrimSpace(e)
	local, domain, ok := strings.Cut(e, "@")
	if !ok {
		if r := []rune(e); len(r) > 3 {
			return string(r[:3]) + "***"
		}
		return "***"
	}
	if r := []rune(local); len(r) > 2 {
		local = string(r[:2])
	}
	return local + "***@" + domain
}
