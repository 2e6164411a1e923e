package data

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mchmarny/leadpulse/pkg/lead"
)

const (
	deleteLeadsSQL = `DELETE FROM lead`

	insertLeadSQL = `INSERT INTO lead (
			seq, lead_id, platform, status, loss_reason, treatment_type,
			spend_per_lead, lead_quality_score, scroll_depth_pct,
			session_duration_sec, x_ray_status, is_churn
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	insertImportSQL = `INSERT INTO import (source, rows, imported_at) VALUES (?, ?, ?)`

	selectLeadsSQL = `SELECT
			lead_id, platform, status, COALESCE(loss_reason, ''), treatment_type,
			spend_per_lead, lead_quality_score, scroll_depth_pct,
			session_duration_sec, x_ray_status, is_churn
		FROM lead
	`

	selectPlatformsSQL = `SELECT DISTINCT platform FROM lead WHERE platform != '' ORDER BY 1`

	selectLastImportSQL = `SELECT source, rows, imported_at FROM import ORDER BY id DESC LIMIT 1`
)

// ImportInfo describes the most recent snapshot import.
type ImportInfo struct {
	Source     string `json:"source" yaml:"source"`
	Rows       int    `json:"rows" yaml:"rows"`
	ImportedAt string `json:"imported_at" yaml:"importedAt"`
}

// SaveLeads replaces the stored snapshot with leads in a single transaction.
func SaveLeads(db *sql.DB, source string, leads []*lead.Lead) (int, error) {
	if db == nil {
		return 0, errDBNotInitialized
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.Exec(deleteLeadsSQL); err != nil {
		rollback(tx)
		return 0, fmt.Errorf("failed to clear previous snapshot: %w", err)
	}

	stmt, err := tx.Prepare(insertLeadSQL)
	if err != nil {
		rollback(tx)
		return 0, fmt.Errorf("failed to prepare lead insert statement: %w", err)
	}
	defer stmt.Close()

	for i, l := range leads {
		if l == nil {
			rollback(tx)
			return 0, fmt.Errorf("lead %d is nil", i)
		}
		if _, err := stmt.Exec(i+1, l.ID, l.Platform, l.Status, nullString(l.LossReason), l.TreatmentType,
			l.SpendPerLead, l.QualityScore, l.ScrollDepthPct, l.SessionDurationSec,
			l.XRaySubmitted, l.Churn); err != nil {
			rollback(tx)
			return 0, fmt.Errorf("failed to insert lead %d: %w", i, err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(insertImportSQL, source, len(leads), now); err != nil {
		rollback(tx)
		return 0, fmt.Errorf("failed to record import: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit snapshot: %w", err)
	}

	slog.Debug("snapshot saved", "source", source, "rows", len(leads))
	return len(leads), nil
}

// GetLeads returns the stored snapshot in import order, optionally
// restricted to the given platforms.
func GetLeads(db *sql.DB, platforms ...string) ([]*lead.Lead, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	q := selectLeadsSQL
	args := make([]any, 0, len(platforms))
	if len(platforms) > 0 {
		q += " WHERE platform IN (?" + strings.Repeat(", ?", len(platforms)-1) + ")"
		for _, p := range platforms {
			args = append(args, p)
		}
	}
	q += " ORDER BY seq"

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	list := make([]*lead.Lead, 0)
	for rows.Next() {
		l := &lead.Lead{}
		if err := rows.Scan(&l.ID, &l.Platform, &l.Status, &l.LossReason, &l.TreatmentType,
			&l.SpendPerLead, &l.QualityScore, &l.ScrollDepthPct, &l.SessionDurationSec,
			&l.XRaySubmitted, &l.Churn); err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		list = append(list, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate leads: %w", err)
	}

	return list, nil
}

// GetPlatforms returns the distinct acquisition platforms in the snapshot.
func GetPlatforms(db *sql.DB) ([]string, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := db.Query(selectPlatformsSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query platforms: %w", err)
	}
	defer rows.Close()

	list := make([]string, 0)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan platform: %w", err)
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// GetLastImport returns the latest import record or nil when nothing was imported.
func GetLastImport(db *sql.DB) (*ImportInfo, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	info := &ImportInfo{}
	err := db.QueryRow(selectLastImportSQL).Scan(&info.Source, &info.Rows, &info.ImportedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query last import: %w", err)
	}
	return info, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
