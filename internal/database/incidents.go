package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// ErrDuplicate is returned by InsertIncident when the URL or fingerprint
// uniqueness constraint fires. Callers treat it as a duplicate lost to a
// concurrent writer, not a fatal error.
var ErrDuplicate = errors.New("incident already exists")

// ErrNotFound is returned when a keyed lookup matches nothing.
var ErrNotFound = errors.New("not found")

const defaultPageSize = 20

const incidentColumns = `id, title, description, content, url, source, published_at,
	discovered_at, status, fingerprint, severity, attack_type, risk_score, analysis,
	content_fetched, region`

// ExistsByURL reports whether an incident with the given normalized URL exists.
func (db *DB) ExistsByURL(url string) (bool, error) {
	var n int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM incidents WHERE url = ?", url).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking url: %w", err)
	}
	return n > 0, nil
}

// ExistsByFingerprint reports whether an incident with the given content
// fingerprint exists.
func (db *DB) ExistsByFingerprint(fingerprint string) (bool, error) {
	var n int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM incidents WHERE fingerprint = ?", fingerprint).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking fingerprint: %w", err)
	}
	return n > 0, nil
}

// InsertIncident inserts a new incident in pending status. Returns
// ErrDuplicate if the URL or fingerprint is already present.
func (db *DB) InsertIncident(in NewIncident) (*Incident, error) {
	result, err := db.conn.Exec(
		`INSERT INTO incidents (title, description, content, url, source, published_at, fingerprint, region)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Title, in.Description, in.Content, in.URL, in.Source, in.PublishedAt, in.Fingerprint, in.Region,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("inserting incident: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading insert id: %w", err)
	}
	return db.GetIncident(id)
}

// GetIncident returns a single incident by ID, or ErrNotFound.
func (db *DB) GetIncident(id int64) (*Incident, error) {
	row := db.conn.QueryRow(
		"SELECT "+incidentColumns+" FROM incidents WHERE id = ?", id,
	)
	inc, err := scanIncident(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return inc, nil
}

// ListIncidents returns a page of incidents matching the filters plus the
// total match count, ordered by publication time descending.
func (db *DB) ListIncidents(opts ListOptions) ([]Incident, int, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}

	var conds []sq.Sqlizer
	if opts.Severity != "" {
		conds = append(conds, sq.Eq{"severity": opts.Severity})
	}
	if opts.AttackType != "" {
		conds = append(conds, sq.Eq{"attack_type": opts.AttackType})
	}
	if opts.Date != "" {
		conds = append(conds, sq.Expr("date(published_at) = ?", opts.Date))
	}
	if opts.Query != "" {
		conds = append(conds, textMatch(opts.Query))
	}

	countQ := sq.Select("COUNT(*)").From("incidents")
	listQ := sq.Select(incidentColumns).From("incidents").
		OrderBy("published_at DESC", "id DESC").
		Limit(uint64(limit)).Offset(uint64(opts.Offset))
	for _, c := range conds {
		countQ = countQ.Where(c)
		listQ = listQ.Where(c)
	}

	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("building count query: %w", err)
	}
	var total int
	if err := db.conn.QueryRow(countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting incidents: %w", err)
	}

	listSQL, listArgs, err := listQ.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("building list query: %w", err)
	}
	rows, err := db.conn.Query(listSQL, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing incidents: %w", err)
	}
	defer rows.Close()

	incidents, err := scanIncidents(rows)
	if err != nil {
		return nil, 0, err
	}
	return incidents, total, nil
}

// textMatch combines full-text search with a LIKE fallback so short or
// partial tokens still match.
func textMatch(query string) sq.Sqlizer {
	like := "%" + query + "%"
	// Quote the query as an FTS5 string so user input cannot break the
	// MATCH syntax.
	match := `"` + strings.ReplaceAll(query, `"`, `""`) + `"`
	return sq.Or{
		sq.Expr("id IN (SELECT rowid FROM incidents_fts WHERE incidents_fts MATCH ?)", match),
		sq.Like{"title": like},
		sq.Like{"description": like},
		sq.Like{"attack_type": like},
		sq.Like{"analysis": like},
	}
}

// ListUnanalyzed returns up to limit incidents still lacking a validated
// analysis payload. Items published today come first, then the oldest
// discovered, so fresh news is enriched before the backlog.
func (db *DB) ListUnanalyzed(limit int) ([]Incident, error) {
	rows, err := db.conn.Query(
		"SELECT "+incidentColumns+` FROM incidents
		WHERE status != 'analyzed'
		ORDER BY (date(published_at) = date('now')) DESC, discovered_at ASC, id ASC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing unanalyzed: %w", err)
	}
	defer rows.Close()
	return scanIncidents(rows)
}

// UpdateAnalysis stores a validated analysis payload and transitions the
// incident to analyzed status. Nil optional fields are left untouched.
func (db *DB) UpdateAnalysis(id int64, analysisJSON string, severity, attackType *string, riskScore *int) (*Incident, error) {
	q := sq.Update("incidents").
		Set("analysis", analysisJSON).
		Set("status", StatusAnalyzed).
		Where(sq.Eq{"id": id})
	if severity != nil {
		q = q.Set("severity", *severity)
	}
	if attackType != nil {
		q = q.Set("attack_type", *attackType)
	}
	if riskScore != nil {
		q = q.Set("risk_score", *riskScore)
	}

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building analysis update: %w", err)
	}
	res, err := db.conn.Exec(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("updating analysis: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return db.GetIncident(id)
}

// SetStatus updates only the lifecycle status of an incident.
func (db *DB) SetStatus(id int64, status string) error {
	res, err := db.conn.Exec("UPDATE incidents SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("setting status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListNeedingContent returns incidents whose feed entry carried no body and
// for which no fetch has been attempted yet.
func (db *DB) ListNeedingContent() ([]Incident, error) {
	rows, err := db.conn.Query(
		"SELECT " + incidentColumns + ` FROM incidents
		WHERE (content IS NULL OR content = '') AND content_fetched = 0
		ORDER BY discovered_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing incidents needing content: %w", err)
	}
	defer rows.Close()
	return scanIncidents(rows)
}

// UpdateContent stores fetched article content.
func (db *DB) UpdateContent(id int64, content string) error {
	_, err := db.conn.Exec(
		"UPDATE incidents SET content = ?, content_fetched = 1 WHERE id = ?",
		content, id,
	)
	return err
}

// MarkContentFetchAttempted records that a content fetch was tried.
func (db *DB) MarkContentFetchAttempted(id int64) error {
	_, err := db.conn.Exec("UPDATE incidents SET content_fetched = 1 WHERE id = ?", id)
	return err
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIncident(row rowScanner) (*Incident, error) {
	var inc Incident
	var fetched int
	err := row.Scan(&inc.ID, &inc.Title, &inc.Description, &inc.Content, &inc.URL,
		&inc.Source, &inc.PublishedAt, &inc.DiscoveredAt, &inc.Status, &inc.Fingerprint,
		&inc.Severity, &inc.AttackType, &inc.RiskScore, &inc.Analysis, &fetched, &inc.Region)
	if err != nil {
		return nil, err
	}
	inc.ContentFetched = fetched != 0
	return &inc, nil
}

func scanIncidents(rows *sql.Rows) ([]Incident, error) {
	var incidents []Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		incidents = append(incidents, *inc)
	}
	return incidents, rows.Err()
}
