package database

import "database/sql"

// GetPreview returns the cached preview for url, or nil if there is none.
func (db *DB) GetPreview(url string) (*Preview, error) {
	var p Preview
	err := db.conn.QueryRow(
		"SELECT url, title, excerpt, site_name, fetched_at FROM link_previews WHERE url = ?", url,
	).Scan(&p.URL, &p.Title, &p.Excerpt, &p.SiteName, &p.FetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// PutPreview inserts or replaces the cached preview for p.URL.
func (db *DB) PutPreview(p Preview) error {
	_, err := db.conn.Exec(
		`INSERT INTO link_previews (url, title, excerpt, site_name) VALUES (?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			title = excluded.title,
			excerpt = excluded.excerpt,
			site_name = excluded.site_name,
			fetched_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')`,
		p.URL, p.Title, p.Excerpt, p.SiteName,
	)
	return err
}
