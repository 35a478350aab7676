package agent

import (
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"
)

// The model's responses follow a tagged-block protocol: named sections like
// <thinking>, <plan>, <code> and <sql>. Each caller extracts exactly one
// section; a missing required section is a hard failure for that attempt.

var (
	tagPatternMu sync.Mutex
	tagPatterns  = map[string]*regexp.Regexp{}
)

func tagPattern(tag string) *regexp.Regexp {
	tagPatternMu.Lock()
	defer tagPatternMu.Unlock()
	if re, ok := tagPatterns[tag]; ok {
		return re
	}
	re := regexp.MustCompile(`(?s)<` + regexp.QuoteMeta(tag) + `>(.*?)</` + regexp.QuoteMeta(tag) + `>`)
	tagPatterns[tag] = re
	return re
}

// ExtractTag pulls the content of the first <tag>...</tag> section, trimmed.
// Returns "" when the section is absent.
func ExtractTag(text, tag string) string {
	m := tagPattern(tag).FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// truncate caps s at roughly n bytes for diagnostics, backing off to a
// rune boundary so a multi-byte character is never cut in half.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "... (truncated)"
}
