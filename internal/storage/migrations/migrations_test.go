package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatements(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "comments dropped",
			in:   "-- header\nCREATE TABLE a (x Int32) ENGINE = Memory;\n\n-- second\nCREATE TABLE b (y String) ENGINE = Memory;\n",
			want: []string{"CREATE TABLE a (x Int32) ENGINE = Memory", "CREATE TABLE b (y String) ENGINE = Memory"},
		},
		{
			name: "semicolon inside literal",
			in:   "INSERT INTO t VALUES ('a;b'); SELECT 1",
			want: []string{"INSERT INTO t VALUES ('a;b')", "SELECT 1"},
		},
		{
			name: "doubled and escaped quotes",
			in:   `SELECT 'it''s;fine'; SELECT 'x\';y'`,
			want: []string{`SELECT 'it''s;fine'`, `SELECT 'x\';y'`},
		},
		{
			name: "block comment with semicolon",
			in:   "SELECT /* a; b */ 1;",
			want: []string{"SELECT   1"},
		},
		{
			name: "only comments",
			in:   "-- nothing here;\n",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Statements(tt.in))
		})
	}
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default@localhost:9000/pricebot")
	require.NoError(t, err)
	assert.Equal(t, "pricebot", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)

	_, err = databaseFromDSN("clickhouse://localhost:9000/bad`name")
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	for _, dialect := range []string{Postgres, Clickhouse} {
		migrations, err := Load(dialect)
		require.NoError(t, err, dialect)
		require.NotEmpty(t, migrations, dialect)
		for _, m := range migrations {
			assert.NotEmpty(t, Statements(m.SQL), m.Name)
		}
	}

	_, err := Load("sqlite")
	assert.Error(t, err)
}
