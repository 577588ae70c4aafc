package processor

import (
	"strings"

	"github.com/querypilot/querypilot/internal/errors"
)

// SafetyChecker validates SQL statements before execution.
// Only single SELECT statements are allowed through.
type SafetyChecker struct {
	ForbiddenTokens []string
}

// Substrings that block a statement outright. Matching is naive on the
// lowercased text, so a column literally named "update_count" would also
// trip it. That tradeoff is accepted for a read-only analytics gate.
var defaultForbiddenTokens = []string{
	"insert",
	"update",
	"delete",
	"drop",
	"alter",
	"create",
	"attach",
	"pragma",
	"vacuum",
	";--",
	"--",
}

// NewSafetyChecker creates a new safety checker with default settings
func NewSafetyChecker() *SafetyChecker {
	return &SafetyChecker{
		ForbiddenTokens: defaultForbiddenTokens,
	}
}

// IsSQLSafe reports whether the statement passes the safety gate
func (sc *SafetyChecker) IsSQLSafe(sql string) bool {
	return sc.Validate(sql) == nil
}

// Validate checks a statement against the safety policy and returns a
// typed error naming the violated rule
func (sc *SafetyChecker) Validate(sql string) error {
	if strings.TrimSpace(sql) == "" {
		return errors.NewUnsafeSQLError("empty SQL statement")
	}

	sqlLower := strings.ToLower(strings.TrimSpace(sql))

	if !strings.HasPrefix(sqlLower, "select") {
		return errors.NewNotSelectError()
	}

	for _, token := range sc.ForbiddenTokens {
		if strings.Contains(sqlLower, token) {
			return errors.NewForbiddenTokenError(token)
		}
	}

	// One trailing semicolon is tolerated, anything more means stacked statements
	if strings.Count(sqlLower, ";") > 1 {
		return errors.NewMultipleStatementsError()
	}

	return nil
}
