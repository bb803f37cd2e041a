package threading

import (
	"regexp"
	"strings"
)

// SubjectKeyPrefix marks keys derived from the subject so they never collide with message ids
const SubjectKeyPrefix = "subject:"

// reply and forward markers, optionally counted ("Re[2]:") and localised ("AW:")
var replyPrefix = regexp.MustCompile(`(?i)^\s*(re|fwd|fw|aw)\s*(\[\d+\])?\s*:\s*`)

// NormalizeSubject strips leading reply and forward markers, trims and lowercases
func NormalizeSubject(subject string) string {
	s := strings.TrimSpace(subject)
	for {
		stripped := replyPrefix.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = stripped
	}
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// SubjectKey is the fallback thread key of a subject
func SubjectKey(subject string) string {
	return SubjectKeyPrefix + NormalizeSubject(subject)
}
