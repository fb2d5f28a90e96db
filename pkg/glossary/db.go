// Package glossary persists the batch extraction path: acronyms, the pages
// they were sighted on, and first-seen contexts. The hover cache is
// deliberately NOT stored here; resolved expansions live only for the page
// session.
package glossary

import (
	"database/sql"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

const migrationsSQL = `
CREATE TABLE IF NOT EXISTS acronyms (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	term TEXT NOT NULL,
	expansion TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	UNIQUE(term)
);

CREATE TABLE IF NOT EXISTS pages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	scanned_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(url, title)
);

CREATE TABLE IF NOT EXISTS sightings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	acronym_id INTEGER NOT NULL REFERENCES acronyms(id),
	page_id INTEGER NOT NULL REFERENCES pages(id),
	context TEXT NOT NULL DEFAULT '',
	occurrence_count INTEGER NOT NULL DEFAULT 1,
	first_seen_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(acronym_id, page_id)
);

CREATE INDEX IF NOT EXISTS idx_sightings_page ON sightings(page_id);
`

// InitDB runs migrations on the given DB connection using the embedded SQL.
func InitDB(db *sql.DB) error {
	stmts := strings.Split(migrationsSQL, ";")
	for _, s := range stmts {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}
