package data

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/mchmarny/leadpulse/pkg/lead"
	"gonum.org/v1/gonum/stat"
)

// ErrInvalidThreshold is returned for an engaged session threshold that is
// not a positive finite number of seconds.
var ErrInvalidThreshold = errors.New("invalid engaged session threshold")

const (
	percent = 100.0

	XRaySubmitted    = "Submitted"
	XRayNotSubmitted = "Not Submitted"

	ChurnYes = "Churn"
	ChurnNo  = "Retained"

	selectSummarySQL = `SELECT
			COUNT(*),
			COALESCE(SUM(spend_per_lead), 0),
			COALESCE(AVG(spend_per_lead), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(is_churn), 0)
		FROM lead
	`

	// group column is one of the fixed expressions in groupPlatform, groupTreatment or groupXRay
	selectGroupStatusSQL = `SELECT
			%s AS grp,
			COUNT(*),
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END)
		FROM lead
		GROUP BY grp
		ORDER BY grp
	`

	groupPlatform  = `COALESCE(NULLIF(platform, ''), 'Unknown')`
	groupTreatment = `COALESCE(NULLIF(treatment_type, ''), 'Unknown')`
	groupXRay      = `CASE WHEN x_ray_status = 1 THEN '` + XRaySubmitted + `' ELSE '` + XRayNotSubmitted + `' END`

	selectLossReasonsSQL = `SELECT loss_reason, COUNT(*) AS cnt
		FROM lead
		WHERE status = ?
		  AND loss_reason IS NOT NULL
		  AND loss_reason != ''
		GROUP BY loss_reason
		ORDER BY cnt DESC, loss_reason
	`

	selectDurationSQL = `SELECT session_duration_sec, is_churn FROM lead`

	selectFunnelSQL = `SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN session_duration_sec > ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(x_ray_status), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM lead
	`
)

// Summary holds the top-level KPIs of the snapshot.
type Summary struct {
	Leads        int     `json:"leads" yaml:"leads"`
	Won          int     `json:"won" yaml:"won"`
	Churned      int     `json:"churned" yaml:"churned"`
	TotalSpend   float64 `json:"total_spend" yaml:"totalSpend"`
	AvgCPL       float64 `json:"avg_cpl" yaml:"avgCPL"`
	WonRatePct   float64 `json:"won_rate_pct" yaml:"wonRatePct"`
	ChurnRatePct float64 `json:"churn_rate_pct" yaml:"churnRatePct"`
}

// GroupStatus is the status breakdown of one group of leads.
type GroupStatus struct {
	Group      string  `json:"group" yaml:"group"`
	Total      int     `json:"total" yaml:"total"`
	Won        int     `json:"won" yaml:"won"`
	Lost       int     `json:"lost" yaml:"lost"`
	Nurturing  int     `json:"nurturing" yaml:"nurturing"`
	NoResponse int     `json:"no_response" yaml:"noResponse"`
	WonRatePct float64 `json:"won_rate_pct" yaml:"wonRatePct"`
}

// CountItem is one labeled share of a distribution.
type CountItem struct {
	Label    string  `json:"label" yaml:"label"`
	Count    int     `json:"count" yaml:"count"`
	SharePct float64 `json:"share_pct" yaml:"sharePct"`
}

// Distribution is the five-number summary of a sample.
type Distribution struct {
	Label  string  `json:"label" yaml:"label"`
	Count  int     `json:"count" yaml:"count"`
	Min    float64 `json:"min" yaml:"min"`
	Q1     float64 `json:"q1" yaml:"q1"`
	Median float64 `json:"median" yaml:"median"`
	Q3     float64 `json:"q3" yaml:"q3"`
	Max    float64 `json:"max" yaml:"max"`
	Mean   float64 `json:"mean" yaml:"mean"`
}

// FunnelStep is one stage of the conversion funnel.
type FunnelStep struct {
	Stage      string  `json:"stage" yaml:"stage"`
	Count      int     `json:"count" yaml:"count"`
	InitialPct float64 `json:"initial_pct" yaml:"initialPct"`
	StepPct    float64 `json:"step_pct" yaml:"stepPct"`
}

// Funnel is the awareness to won progression of the snapshot.
type Funnel struct {
	EngagedSec float64       `json:"engaged_sec" yaml:"engagedSec"`
	Steps      []*FunnelStep `json:"steps" yaml:"steps"`
}

// GetSummary returns the snapshot KPIs.
func GetSummary(db *sql.DB) (*Summary, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	s := &Summary{}
	if err := db.QueryRow(selectSummarySQL, lead.StatusWon).Scan(
		&s.Leads, &s.TotalSpend, &s.AvgCPL, &s.Won, &s.Churned); err != nil {
		return nil, fmt.Errorf("failed to query summary: %w", err)
	}

	s.WonRatePct = pct(s.Won, s.Leads)
	s.ChurnRatePct = pct(s.Churned, s.Leads)
	return s, nil
}

// GetPlatformStatus returns status counts and won rate per acquisition platform.
func GetPlatformStatus(db *sql.DB) ([]*GroupStatus, error) {
	return getGroupStatus(db, groupPlatform)
}

// GetTreatmentStatus returns status counts per treatment type.
func GetTreatmentStatus(db *sql.DB) ([]*GroupStatus, error) {
	return getGroupStatus(db, groupTreatment)
}

// GetXRayOutcome returns status counts for leads with and without an x-ray submission.
func GetXRayOutcome(db *sql.DB) ([]*GroupStatus, error) {
	return getGroupStatus(db, groupXRay)
}

func getGroupStatus(db *sql.DB, group string) ([]*GroupStatus, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := db.Query(fmt.Sprintf(selectGroupStatusSQL, group),
		lead.StatusWon, lead.StatusLost, lead.StatusNurturing, lead.StatusNoResponse)
	if err != nil {
		return nil, fmt.Errorf("failed to query status breakdown: %w", err)
	}
	defer rows.Close()

	list := make([]*GroupStatus, 0)
	for rows.Next() {
		g := &GroupStatus{}
		if err := rows.Scan(&g.Group, &g.Total, &g.Won, &g.Lost, &g.Nurturing, &g.NoResponse); err != nil {
			return nil, fmt.Errorf("failed to scan status breakdown row: %w", err)
		}
		g.WonRatePct = pct(g.Won, g.Total)
		list = append(list, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate status breakdown: %w", err)
	}

	return list, nil
}

// GetLossReasons returns the loss-reason distribution over lost leads, most frequent first.
func GetLossReasons(db *sql.DB) ([]*CountItem, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := db.Query(selectLossReasonsSQL, lead.StatusLost)
	if err != nil {
		return nil, fmt.Errorf("failed to query loss reasons: %w", err)
	}
	defer rows.Close()

	list := make([]*CountItem, 0)
	var total int
	for rows.Next() {
		c := &CountItem{}
		if err := rows.Scan(&c.Label, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan loss reason row: %w", err)
		}
		total += c.Count
		list = append(list, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate loss reasons: %w", err)
	}

	for _, c := range list {
		c.SharePct = pct(c.Count, total)
	}

	return list, nil
}

// GetDurationByChurn returns the session duration distribution of retained and churned leads.
func GetDurationByChurn(db *sql.DB) ([]*Distribution, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := db.Query(selectDurationSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query session durations: %w", err)
	}
	defer rows.Close()

	var retained, churned []float64
	for rows.Next() {
		var d float64
		var c bool
		if err := rows.Scan(&d, &c); err != nil {
			return nil, fmt.Errorf("failed to scan session duration row: %w", err)
		}
		if c {
			churned = append(churned, d)
		} else {
			retained = append(retained, d)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session durations: %w", err)
	}

	return []*Distribution{
		describe(ChurnNo, retained),
		describe(ChurnYes, churned),
	}, nil
}

// describe sorts x in place and summarizes it with empirical quantiles.
func describe(label string, x []float64) *Distribution {
	d := &Distribution{Label: label, Count: len(x)}
	if len(x) == 0 {
		return d
	}

	sort.Float64s(x)
	d.Min = x[0]
	d.Max = x[len(x)-1]
	d.Q1 = stat.Quantile(0.25, stat.Empirical, x, nil)
	d.Median = stat.Quantile(0.5, stat.Empirical, x, nil)
	d.Q3 = stat.Quantile(0.75, stat.Empirical, x, nil)
	d.Mean = stat.Mean(x, nil)
	return d
}

// GetFunnel returns total, engaged (session longer than engagedSec),
// x-ray submitted and won counts with initial and step conversion rates.
func GetFunnel(db *sql.DB, engagedSec float64) (*Funnel, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	if !(engagedSec > 0) || math.IsInf(engagedSec, 1) {
		return nil, fmt.Errorf("%w: %v, must be a positive number of seconds", ErrInvalidThreshold, engagedSec)
	}

	var total, engaged, xray, won int
	if err := db.QueryRow(selectFunnelSQL, engagedSec, lead.StatusWon).Scan(
		&total, &engaged, &xray, &won); err != nil {
		return nil, fmt.Errorf("failed to query funnel: %w", err)
	}

	f := &Funnel{EngagedSec: engagedSec}
	stages := []struct {
		name  string
		count int
	}{
		{"Total Leads", total},
		{"Engaged", engaged},
		{"X-Ray Submitted", xray},
		{"Won", won},
	}

	prev := total
	for _, s := range stages {
		f.Steps = append(f.Steps, &FunnelStep{
			Stage:      s.name,
			Count:      s.count,
			InitialPct: pct(s.count, total),
			StepPct:    pct(s.count, prev),
		})
		prev = s.count
	}

	return f, nil
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * percent
}
