package ordermatch

import (
	"regexp"
	"strings"
)

// candidatePatterns run in priority order, the most specific first. Each has
// exactly one capture group holding the number.
var candidatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\breturn\s+request\s*(?:no\.?|number)?\s*#?\s*(\d{1,10})\b`),
	regexp.MustCompile(`(?i)\border\s*(?:no\.?|number|nr\.?)?\s*#?\s*(\d{1,10})\b`),
	regexp.MustCompile(`#\s?(\d{1,10})\b`),
	// loose on purpose, also hits phone numbers and years
	regexp.MustCompile(`\b(\d{3,6})\b`),
}

// ExtractCandidates returns the order numbers mentioned in text, deduplicated and
// ordered by pattern priority, then by position.
func ExtractCandidates(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	seen := make(map[string]bool)
	var candidates []string
	for _, pattern := range candidatePatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			number := strings.TrimLeft(match[1], " ")
			if number == "" || seen[number] {
				continue
			}
			seen[number] = true
			candidates = append(candidates, number)
		}
	}
	return candidates
}

// lookupNumbers expands candidates into the stored forms, "N" and "#N"
func lookupNumbers(candidates []string) []string {
	numbers := make([]string, 0, len(candidates)*2)
	for _, c := range candidates {
		numbers = append(numbers, c, "#"+c)
	}
	return numbers
}

// paddedNumbers zero-pads each candidate to every width up to maxWidth
func paddedNumbers(candidates []string, maxWidth int) []string {
	var padded []string
	for _, c := range candidates {
		for width := len(c) + 1; width <= maxWidth; width++ {
			padded = append(padded, strings.Repeat("0", width-len(c))+c)
		}
	}
	return padded
}
