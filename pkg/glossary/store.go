package glossary

import (
	"database/sql"
	"fmt"
	"strings"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// isUniqueConstraintErr returns true when the error indicates a unique/constraint violation
func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unique") || strings.Contains(s, "constraint failed")
}

// CreateOrGetAcronym returns the existing acronym id or inserts a new entry
// and returns its id. Non-empty expansion/description values win over blanks
// already stored.
func CreateOrGetAcronym(db DBExecutor, term, expansion, description string) (int64, error) {
	trimmed := strings.TrimSpace(term)
	if trimmed == "" {
		return 0, fmt.Errorf("term must be non-empty")
	}

	var id int64
	query := `INSERT INTO acronyms (term, expansion, description)
			  VALUES (?, ?, ?)
			  ON CONFLICT(term)
			  DO UPDATE SET
			    expansion = COALESCE(NULLIF(excluded.expansion, ''), acronyms.expansion),
				description = COALESCE(NULLIF(excluded.description, ''), acronyms.description)
			  RETURNING id`

	err := db.QueryRow(query, trimmed, expansion, description).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert acronym: %w", err)
	}
	return id, nil
}

// CreateOrGetPage returns the existing page id or inserts a new page and
// returns its id.
func CreateOrGetPage(db DBExecutor, url, title string) (int64, error) {
	const maxRetries = 3

	var id int64
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := db.QueryRow(
			`SELECT id FROM pages WHERE IFNULL(url, '') = ? AND IFNULL(title, '') = ?`,
			url, title,
		).Scan(&id)
		if err == nil {
			return id, nil
		}
		if err != sql.ErrNoRows {
			return 0, err
		}

		res, err := db.Exec(`INSERT INTO pages (url, title) VALUES (?, ?)`, url, title)
		if err != nil {
			// Another transaction inserted the same page; retry the SELECT.
			if isUniqueConstraintErr(err) {
				continue
			}
			return 0, err
		}
		return res.LastInsertId()
	}

	return 0, fmt.Errorf("could not create or get page after %d retries", maxRetries)
}

// RecordSighting links an acronym with a page, accumulating occurrence
// counts. The stored context keeps the first sighting.
func RecordSighting(db DBExecutor, acronymID, pageID int64, context string, count int) error {
	if acronymID <= 0 {
		return fmt.Errorf("acronymID must be positive")
	}
	if pageID <= 0 {
		return fmt.Errorf("pageID must be positive")
	}
	if count < 1 {
		return fmt.Errorf("count must be positive, got %d", count)
	}

	_, err := db.Exec(`INSERT INTO sightings (acronym_id, page_id, context, occurrence_count)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(acronym_id, page_id) DO UPDATE SET
	  occurrence_count = sightings.occurrence_count + excluded.occurrence_count,
	  context = COALESCE(NULLIF(sightings.context, ''), excluded.context)`,
		acronymID, pageID, context, count)
	return err
}

// ImportRecords upserts a batch of extraction records, returning how many
// were written.
func ImportRecords(db DBExecutor, records []Acronym) (int, error) {
	written := 0
	for _, r := range records {
		if strings.TrimSpace(r.Term) == "" {
			continue
		}
		if _, err := CreateOrGetAcronym(db, r.Term, r.Expansion, r.Description); err != nil {
			return written, fmt.Errorf("import %q: %w", r.Term, err)
		}
		written++
	}
	return written, nil
}

// GetAcronymsByPage returns the acronyms sighted on a given page.
func GetAcronymsByPage(db DBExecutor, pageID int64) ([]Acronym, error) {
	rows, err := db.Query(`SELECT a.id, a.term, a.expansion, a.description
		FROM acronyms a JOIN sightings s ON s.acronym_id = a.id
		WHERE s.page_id = ? ORDER BY a.term`, pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Acronym
	for rows.Next() {
		var a Acronym
		var expansion, description sql.NullString
		if err := rows.Scan(&a.ID, &a.Term, &expansion, &description); err != nil {
			return nil, err
		}
		if expansion.Valid {
			a.Expansion = expansion.String
		}
		if description.Valid {
			a.Description = description.String
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetAcronym looks up a single glossary entry by term.
func GetAcronym(db DBExecutor, term string) (*Acronym, error) {
	var a Acronym
	err := db.QueryRow(`SELECT id, term, expansion, description FROM acronyms WHERE term = ?`, term).
		Scan(&a.ID, &a.Term, &a.Expansion, &a.Description)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
