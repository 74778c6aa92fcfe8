package logging

import "strings"

// RedactEmail keeps the first character of the local part and the domain:
// "alice@example.com" becomes "a***@example.com".
func RedactEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return "***"
	}
	return local[:1] + "***@" + domain
}
