package vectorindex

import "database/sql"

// migrate creates the schema if it doesn't exist.
func migrate(db *sql.DB) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS passages (
			id          TEXT PRIMARY KEY,
			source      TEXT NOT NULL,
			chunk       INTEGER NOT NULL,
			content     TEXT NOT NULL,
			embedding   BLOB NOT NULL,
			created_at  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS passages_source ON passages(source);
	`
	_, err := db.Exec(schema)
	return err
}
