package processor

import (
	"regexp"
	"strings"
)

var (
	codeFenceRe = regexp.MustCompile("(?i)```(?:sql)?")
	selectRe    = regexp.MustCompile(`(?is)(select\b.*)`)
)

// CleanModelSQL strips markdown fences and leading commentary from raw
// model output, keeping everything from the first SELECT onward. If no
// SELECT is found the de-fenced text is returned as-is and left for the
// safety gate to reject.
func CleanModelSQL(raw string) string {
	if raw == "" {
		return raw
	}

	sql := strings.TrimSpace(raw)
	sql = strings.TrimSpace(codeFenceRe.ReplaceAllString(sql, ""))

	if m := selectRe.FindStringSubmatch(sql); m != nil {
		return strings.TrimSpace(m[1])
	}

	return sql
}
