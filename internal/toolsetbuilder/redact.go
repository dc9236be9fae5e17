package toolsetbuilder

import "regexp"

// secretLike matches the common secret-literal shapes a user might
// accidentally paste into a builder chat message, spec §4.8's "best-effort
// secret redaction of the message" for the chat operation.
var secretLike = []*regexp.Regexp{
	regexp.MustCompile(`sk-[A-Za-z0-9]{16,}`),
	regexp.MustCompile(`ghp_[A-Za-z0-9]{20,}`),
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._-]{20,}`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`-----BEGIN [A-Z ]+PRIVATE KEY-----`),
}

// redactSecrets replaces any recognized secret-literal substrings with a
// fixed placeholder. It is best-effort: it catches common token shapes,
// not an exhaustive secret scanner.
func redactSecrets(text string) string {
	for _, re := range secretLike {
		text = re.ReplaceAllString(text, "[REDACTED]")
	}
	return text
}
