package ingest

import (
	"regexp"
	"strings"
)

// emailRe is deliberately permissive; the denylist below handles the known
// false positives. Full RFC validation is not the goal.
var emailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

// placeholderSubstrings filter out documentation-style addresses that show
// up in scraped tender text.
var placeholderSubstrings = []string{"example.", "test."}

// placeholderPrefixes filter out unattended mailboxes.
var placeholderPrefixes = []string{"no-reply", "noreply"}

// ExtractEmails scans arbitrary text for email-shaped tokens and filters
// known placeholders. It does not deduplicate within the call; dedup across
// calls is the contact registry's responsibility.
func ExtractEmails(text string) []string {
	if text == "" {
		return nil
	}

	matches := emailRe.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	emails := make([]string, 0, len(matches))
	for _, m := range matches {
		if isPlaceholder(m) {
			continue
		}
		emails = append(emails, m)
	}
	return emails
}

func isPlaceholder(email string) bool {
	lower := strings.ToLower(email)
	for _, sub := range placeholderSubstrings {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	for _, prefix := range placeholderPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
