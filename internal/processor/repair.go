package processor

import (
	"fmt"
	"strings"
	"unicode"
)

// JoinRepairer patches generated queries that read name columns off the
// sales table without joining the lookup tables that hold them. The model
// is told to join, but smaller models regularly forget.
type JoinRepairer struct{}

// NewJoinRepairer creates a new join repairer
func NewJoinRepairer() *JoinRepairer {
	return &JoinRepairer{}
}

// Column references that require a join to resolve
var joinedColumnRefs = []string{"product_name", "customer_name", "customers.name"}

// Repair rewrites the FROM clause of a bare sales query to LEFT JOIN
// products and customers. The returned bool reports whether the statement
// was changed. Statements that already join, or that do not reference
// joined columns, pass through untouched, so the repair is idempotent.
func (jr *JoinRepairer) Repair(sql string) (string, bool) {
	sqlLower := strings.ToLower(sql)

	if !strings.Contains(sqlLower, "from sales") {
		return sql, false
	}

	needsJoin := false
	for _, ref := range joinedColumnRefs {
		if strings.Contains(sqlLower, ref) {
			needsJoin = true
			break
		}
	}
	if !needsJoin {
		return sql, false
	}

	if strings.Contains(sqlLower, "join products") || strings.Contains(sqlLower, "join customers") {
		return sql, false
	}

	// Locate the top-level FROM clause rather than substituting on the
	// first textual match, so subqueries and string literals are safe.
	clause, ok := findFromClause(sql)
	if !ok || !strings.EqualFold(clause.table, "sales") {
		return sql, false
	}

	alias := clause.alias
	if alias == "" {
		alias = "s"
	}

	repaired := fmt.Sprintf(
		"FROM sales %s\nLEFT JOIN products p ON %s.product_id = p.product_id\nLEFT JOIN customers c ON %s.customer_id = c.customer_id",
		alias, alias, alias)

	return sql[:clause.start] + repaired + sql[clause.end:], true
}

// fromClause is the minimal parsed shape of a top-level FROM source
type fromClause struct {
	start int // byte offset of the FROM keyword
	end   int // byte offset just past the table (and alias, if any)
	table string
	alias string
}

// Keywords that terminate the table reference inside a FROM clause
var clauseTerminators = map[string]bool{
	"where": true, "group": true, "order": true, "having": true,
	"limit": true, "join": true, "left": true, "right": true,
	"inner": true, "cross": true, "on": true, "union": true, "as": true,
}

// findFromClause scans for the first FROM keyword outside parentheses and
// string literals, then reads the table name and an optional alias.
func findFromClause(sql string) (fromClause, bool) {
	depth := 0
	inString := false

	for i := 0; i < len(sql); i++ {
		ch := sql[i]

		if inString {
			if ch == '\'' {
				inString = false
			}
			continue
		}

		switch ch {
		case '\'':
			inString = true
			continue
		case '(':
			depth++
			continue
		case ')':
			depth--
			continue
		}

		if depth != 0 {
			continue
		}

		if (ch == 'f' || ch == 'F') && isWordBoundary(sql, i) &&
			i+4 <= len(sql) && strings.EqualFold(sql[i:i+4], "from") &&
			(i+4 == len(sql) || !isIdentChar(rune(sql[i+4]))) {
			return parseFromSource(sql, i)
		}
	}

	return fromClause{}, false
}

// parseFromSource reads the table name and optional alias following FROM
func parseFromSource(sql string, fromIdx int) (fromClause, bool) {
	pos := fromIdx + len("from")

	table, tableEnd := readIdentifier(sql, pos)
	if table == "" {
		return fromClause{}, false
	}

	clause := fromClause{start: fromIdx, end: tableEnd, table: table}

	// An alias is the next identifier unless it is itself a clause keyword
	next, nextEnd := readIdentifier(sql, tableEnd)
	if next != "" && !clauseTerminators[strings.ToLower(next)] {
		clause.alias = next
		clause.end = nextEnd
	} else if strings.EqualFold(next, "as") {
		// Explicit alias form: FROM sales AS s
		aliasName, aliasEnd := readIdentifier(sql, nextEnd)
		if aliasName != "" {
			clause.alias = aliasName
			clause.end = aliasEnd
		}
	}

	return clause, true
}

// readIdentifier skips whitespace and returns the next identifier token
func readIdentifier(sql string, pos int) (string, int) {
	for pos < len(sql) && unicode.IsSpace(rune(sql[pos])) {
		pos++
	}

	start := pos
	for pos < len(sql) && isIdentChar(rune(sql[pos])) {
		pos++
	}

	return sql[start:pos], pos
}

func isIdentChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.'
}

func isWordBoundary(sql string, i int) bool {
	return i == 0 || !isIdentChar(rune(sql[i-1]))
}
