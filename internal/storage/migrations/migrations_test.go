package migrations

import (
	"strings"
	"testing"
)

func TestEmbeddedMigrations(t *testing.T) {
	pg, err := loadFiles(PostgresFS, "postgres")
	if err != nil {
		t.Fatalf("loadFiles postgres: %v", err)
	}
	if len(pg) != 2 || pg[0].Name != "001_raw_events.sql" {
		t.Errorf("Unexpected postgres migrations: %+v", names(pg))
	}

	ch, err := loadFiles(ClickhouseFS, "clickhouse")
	if err != nil {
		t.Fatalf("loadFiles clickhouse: %v", err)
	}
	if len(ch) != 2 {
		t.Errorf("Expected 2 clickhouse migrations, got %+v", names(ch))
	}
	for _, f := range ch {
		stmts, err := splitStatements(f.SQL)
		if err != nil {
			t.Errorf("%s: %v", f.Name, err)
		}
		if len(stmts) != 1 {
			t.Errorf("%s: expected 1 statement, got %d", f.Name, len(stmts))
		}
	}
}

func names(files []migrationFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Name
	}
	return out
}

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name  string
		sql   string
		want  []string
		isErr bool
	}{
		{
			name: "comments and blank lines",
			sql:  "-- header\nCREATE TABLE a (x Int8);\n\n-- second; not a split\nCREATE TABLE b (y Int8);\n",
			want: []string{"CREATE TABLE a (x Int8)", "CREATE TABLE b (y Int8)"},
		},
		{
			name: "semicolon inside literal",
			sql:  "SELECT 'a;b'; SELECT 2",
			want: []string{"SELECT 'a;b'", "SELECT 2"},
		},
		{
			name: "escaped quotes",
			sql:  `SELECT 'it''s;'; SELECT 'x\';y'`,
			want: []string{`SELECT 'it''s;'`, `SELECT 'x\';y'`},
		},
		{
			name: "comment marker inside literal",
			sql:  "SELECT '--keep'",
			want: []string{"SELECT '--keep'"},
		},
		{
			name:  "unterminated literal",
			sql:   "SELECT 'oops",
			isErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := splitStatements(tt.sql)
			if tt.isErr {
				if err == nil {
					t.Fatalf("Expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("splitStatements: %v", err)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default:@localhost:9000/readmodel")
	if err != nil || db != "readmodel" {
		t.Errorf("Expected readmodel, got %q (%v)", db, err)
	}
	if _, err := databaseFromDSN("clickhouse://localhost:9000"); err == nil {
		t.Error("Expected error for DSN without database")
	}
	if _, err := databaseFromDSN("clickhouse://localhost:9000/read%60model"); err == nil {
		t.Error("Expected error for database name with a backtick")
	}
}
