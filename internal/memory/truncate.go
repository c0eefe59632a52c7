package memory

import "strings"

// Truncation policy names. Kept in sync with the config package; duplicated
// here so memory has no config dependency.
const (
	truncateChars     = "chars"
	truncateParagraph = "paragraph"
)

// truncateNote bounds a person note to limit characters (runes). The result
// is always a literal prefix of the source, possibly with trailing
// whitespace removed only by virtue of where the cut lands — content is
// never reformatted.
//
// "chars" cuts at the limit, backing up to the last space when the cut
// would land mid-word. "paragraph" cuts at the last blank-line boundary
// within the limit, falling back to the chars rule when the first paragraph
// alone exceeds it.
func truncateNote(s string, limit int, policy string) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	switch policy {
	case truncateParagraph:
		prefix := string(runes[:limit])
		if i := strings.LastIndex(prefix, "\n\n"); i > 0 {
			return prefix[:i]
		}
		return cutAtChars(runes, limit)
	default: // truncateChars
		return cutAtChars(runes, limit)
	}
}

func cutAtChars(runes []rune, limit int) string {
	// Mid-word cut: back up to the last space so the prefix ends cleanly.
	if runes[limit] != ' ' && runes[limit-1] != ' ' {
		prefix := string(runes[:limit])
		if i := strings.LastIndexByte(prefix, ' '); i > 0 {
			return prefix[:i]
		}
		return prefix
	}
	return string(runes[:limit])
}
