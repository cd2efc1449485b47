package store

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Masterminds/squirrel"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/mapforms/pkg/types"
)

// dbFileName is the SQLite database created inside DataDir.
const dbFileName = "mapforms.db"

// dialect captures the SQL differences between supported databases.
type dialect struct {
	name        string
	driver      string
	placeholder squirrel.PlaceholderFormat

	// upsert returns the suffix that turns an INSERT into an overwrite of
	// cols when the conflict key already exists.
	upsert func(conflict, cols []string) string

	// insertIgnore makes an INSERT a no-op when a unique key already exists.
	insertIgnore func(squirrel.InsertBuilder) squirrel.InsertBuilder
}

func onConflictUpsert(conflict, cols []string) string {
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = excluded.%s", c, c)
	}
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s",
		strings.Join(conflict, ", "), strings.Join(sets, ", "))
}

func onConflictIgnore(ib squirrel.InsertBuilder) squirrel.InsertBuilder {
	return ib.Suffix("ON CONFLICT DO NOTHING")
}

var dialects = map[string]dialect{
	types.BackendSQLite: {
		name:         types.BackendSQLite,
		driver:       "sqlite",
		placeholder:  squirrel.Question,
		upsert:       onConflictUpsert,
		insertIgnore: onConflictIgnore,
	},
	types.BackendPostgres: {
		name:         types.BackendPostgres,
		driver:       "pgx",
		placeholder:  squirrel.Dollar,
		upsert:       onConflictUpsert,
		insertIgnore: onConflictIgnore,
	},
	types.BackendMySQL: {
		name:        types.BackendMySQL,
		driver:      "mysql",
		placeholder: squirrel.Question,
		upsert: func(_, cols []string) string {
			sets := make([]string, len(cols))
			for i, c := range cols {
				sets[i] = fmt.Sprintf("%s = VALUES(%s)", c, c)
			}
			return "ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
		},
		insertIgnore: func(ib squirrel.InsertBuilder) squirrel.InsertBuilder {
			return ib.Options("IGNORE")
		},
	},
}

// dsnFor returns the data source name for config. SQLite builds one from
// DataDir unless an explicit DSN is set.
func dsnFor(d dialect, config types.Config, dataDir string) string {
	if config.DSN != "" || d.name != types.BackendSQLite {
		return config.DSN
	}
	path := filepath.Join(dataDir, dbFileName)
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}
