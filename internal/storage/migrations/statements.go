package migrations

import (
	"fmt"
	"strings"
)

// splitStatements splits a migration into statements on semicolons that are
// outside single-quoted literals and "--" comments. Literals may escape
// quotes as '' or \'.
func splitStatements(sql string) ([]string, error) {
	var (
		stmts    []string
		cur      strings.Builder
		inString bool
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}

	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		switch {
		case inString:
			cur.WriteByte(ch)
			switch {
			case ch == '\\' && i+1 < len(sql):
				i++
				cur.WriteByte(sql[i])
			case ch == '\'' && i+1 < len(sql) && sql[i+1] == '\'':
				i++
				cur.WriteByte(sql[i])
			case ch == '\'':
				inString = false
			}
		case ch == '\'':
			inString = true
			cur.WriteByte(ch)
		case ch == '-' && i+1 < len(sql) && sql[i+1] == '-':
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
			cur.WriteByte('\n')
		case ch == ';':
			flush()
		default:
			cur.WriteByte(ch)
		}
	}
	if inString {
		return nil, fmt.Errorf("unterminated string literal")
	}
	flush()
	return stmts, nil
}
