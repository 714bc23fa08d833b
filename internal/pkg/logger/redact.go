package logger

import "strings"

// RedactEmail masks an email address for safe logging.
// "marie.dupont@orsg-ctps.fr" → "ma***@orsg-ctps.fr"
// Short local parts (≤2 chars) are fully masked: "jp@orsg-ctps.fr" → "***@orsg-ctps.fr"
func RedactEmail(email string) string {
	name, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***@***"
	}
	if len(name) > 2 {
		return name[:2] + "***@" + domain
	}
	return "***@" + domain
}
