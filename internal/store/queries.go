package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// timeFormat is fixed-width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeFormat, s)
}

// Suspended tab operations

// PutSuspendedTab inserts or replaces the record for rec.TabID.
func (s *Store) PutSuspendedTab(rec *SuspendedTab) error {
	query := `
		INSERT OR REPLACE INTO suspended_tabs
		(tab_id, original_url, title, fav_icon_url, suspended_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		rec.TabID,
		rec.OriginalURL,
		rec.Title,
		rec.FavIconURL,
		formatTime(rec.SuspendedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert suspended tab %s: %w", rec.TabID, err)
	}

	return nil
}

// GetSuspendedTab retrieves the record for a tab. It returns an error
// wrapping ErrNotFound when the tab has no record.
func (s *Store) GetSuspendedTab(tabID string) (*SuspendedTab, error) {
	query := `
		SELECT tab_id, original_url, title, fav_icon_url, suspended_at
		FROM suspended_tabs
		WHERE tab_id = ?
	`

	rec, err := scanSuspendedTab(s.db.QueryRow(query, tabID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("suspended tab %s: %w", tabID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get suspended tab %s: %w", tabID, err)
	}

	return rec, nil
}

// FindSuspendedTabByURL returns the most recently suspended record whose
// original URL equals url.
func (s *Store) FindSuspendedTabByURL(url string) (*SuspendedTab, error) {
	query := `
		SELECT tab_id, original_url, title, fav_icon_url, suspended_at
		FROM suspended_tabs
		WHERE original_url = ?
		ORDER BY suspended_at DESC
		LIMIT 1
	`

	rec, err := scanSuspendedTab(s.db.QueryRow(query, url))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("suspended tab for %s: %w", url, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find suspended tab for %s: %w", url, err)
	}

	return rec, nil
}

// ListSuspendedTabs returns all records, oldest suspension first.
func (s *Store) ListSuspendedTabs() ([]*SuspendedTab, error) {
	query := `
		SELECT tab_id, original_url, title, fav_icon_url, suspended_at
		FROM suspended_tabs
		ORDER BY suspended_at
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list suspended tabs: %w", err)
	}
	defer rows.Close()

	var recs []*SuspendedTab
	for rows.Next() {
		rec, err := scanSuspendedTab(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan suspended tab row: %w", err)
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating suspended tabs: %w", err)
	}

	return recs, nil
}

// DeleteSuspendedTab removes the record for a tab and reports whether one
// existed.
func (s *Store) DeleteSuspendedTab(tabID string) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM suspended_tabs WHERE tab_id = ?`, tabID)
	if err != nil {
		return false, fmt.Errorf("failed to delete suspended tab %s: %w", tabID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

// RekeySuspendedTab moves a record to a new tab id. Used when a browser
// restart hands the same placeholder tab a new target id.
func (s *Store) RekeySuspendedTab(oldID, newID string) error {
	result, err := s.db.Exec(`UPDATE suspended_tabs SET tab_id = ? WHERE tab_id = ?`, newID, oldID)
	if err != nil {
		return fmt.Errorf("failed to rekey suspended tab %s -> %s: %w", oldID, newID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("suspended tab %s: %w", oldID, ErrNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSuspendedTab(row rowScanner) (*SuspendedTab, error) {
	var rec SuspendedTab
	var title, favIcon sql.NullString
	var suspendedAt string

	if err := row.Scan(&rec.TabID, &rec.OriginalURL, &title, &favIcon, &suspendedAt); err != nil {
		return nil, err
	}
	rec.Title = title.String
	rec.FavIconURL = favIcon.String

	t, err := parseTime(suspendedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse suspended_at for %s: %w", rec.TabID, err)
	}
	rec.SuspendedAt = t

	return &rec, nil
}

// Session operations

// InsertSession stores sess as the newest session and evicts the oldest
// sessions beyond limit. It returns the number of sessions evicted.
func (s *Store) InsertSession(sess *Session, limit int) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`INSERT INTO sessions (id, name, created_at) VALUES (?, ?, ?)`,
		sess.ID,
		sess.Name,
		formatTime(sess.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert session %s: %w", sess.ID, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO session_tabs (session_id, position, url, title, fav_icon_url)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare session tab insert: %w", err)
	}
	defer stmt.Close()

	for i, tab := range sess.Tabs {
		if _, err := stmt.Exec(sess.ID, i, tab.URL, tab.Title, tab.FavIconURL); err != nil {
			return 0, fmt.Errorf("failed to insert session tab %s: %w", tab.URL, err)
		}
	}

	result, err := tx.Exec(`
		DELETE FROM sessions
		WHERE seq NOT IN (SELECT seq FROM sessions ORDER BY seq DESC LIMIT ?)
	`, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to evict old sessions: %w", err)
	}
	evicted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit session %s: %w", sess.ID, err)
	}

	return int(evicted), nil
}

// GetSession retrieves a session and its tabs. It returns an error wrapping
// ErrNotFound when the id is unknown.
func (s *Store) GetSession(id string) (*Session, error) {
	var sess Session
	var createdAt string

	err := s.db.QueryRow(`SELECT id, name, created_at FROM sessions WHERE id = ?`, id).Scan(
		&sess.ID,
		&sess.Name,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}

	sess.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at for session %s: %w", id, err)
	}

	sess.Tabs, err = s.getSessionTabs(id)
	if err != nil {
		return nil, err
	}

	return &sess, nil
}

// ListSessions returns all sessions, newest first.
func (s *Store) ListSessions() ([]*Session, error) {
	rows, err := s.db.Query(`SELECT id, name, created_at FROM sessions ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var sessions []*Session
	for rows.Next() {
		var sess Session
		var createdAt string

		if err := rows.Scan(&sess.ID, &sess.Name, &createdAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}

		sess.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to parse created_at for session %s: %w", sess.ID, err)
		}

		sessions = append(sessions, &sess)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	// Release the single connection before the per-session tab queries.
	rows.Close()

	for _, sess := range sessions {
		sess.Tabs, err = s.getSessionTabs(sess.ID)
		if err != nil {
			return nil, err
		}
	}

	return sessions, nil
}

// DeleteSession removes a session and reports whether it existed.
func (s *Store) DeleteSession(id string) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete session %s: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

// CountSessions returns the number of stored sessions.
func (s *Store) CountSessions() (int, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

func (s *Store) getSessionTabs(id string) ([]SessionTab, error) {
	rows, err := s.db.Query(`
		SELECT url, title, fav_icon_url
		FROM session_tabs
		WHERE session_id = ?
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get tabs for session %s: %w", id, err)
	}
	defer rows.Close()

	tabs := []SessionTab{}
	for rows.Next() {
		var tab SessionTab
		var title, favIcon sql.NullString

		if err := rows.Scan(&tab.URL, &title, &favIcon); err != nil {
			return nil, fmt.Errorf("failed to scan session tab row: %w", err)
		}
		tab.Title = title.String
		tab.FavIconURL = favIcon.String

		tabs = append(tabs, tab)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session tabs: %w", err)
	}

	return tabs, nil
}
