package utils

import (
	"strings"
)

func NormalizeMessageID(messageID string) string {
	messageID = strings.TrimSpace(messageID)
	messageID = strings.TrimPrefix(messageID, "<")
	messageID = strings.TrimSuffix(messageID, ">")
	return messageID
}

// SplitMessageIDs splits a header value holding one or more message ids.
func SplitMessageIDs(value string) []string {
	value = strings.NewReplacer("\r\n", " ", "\n", " ", "\t", " ", ",", " ").Replace(value)
	var ids []string
	for _, part := range strings.Fields(value) {
		ids = AppendUnique(ids, NormalizeMessageID(part))
	}
	return ids
}

func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max]
}
